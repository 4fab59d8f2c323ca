package store

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
)

// Money is an exact decimal amount stored as a DynamoDB number, so currency
// values survive round trips without float drift.
type Money struct {
	decimal.Decimal
}

// NewMoney parses a decimal string into Money.
func NewMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: bad amount %q", ErrValidation, s)
	}
	return Money{d}, nil
}

// MoneyFromDecimal wraps a decimal as Money.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{d}
}

// MarshalDynamoDBAttributeValue implements attributevalue.Marshaler.
func (m Money) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberN{Value: m.String()}, nil
}

// UnmarshalDynamoDBAttributeValue implements attributevalue.Unmarshaler.
func (m *Money) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	n, ok := av.(*types.AttributeValueMemberN)
	if !ok {
		return fmt.Errorf("money: expected number attribute, got %T", av)
	}
	d, err := decimal.NewFromString(n.Value)
	if err != nil {
		return fmt.Errorf("money: %w", err)
	}
	m.Decimal = d
	return nil
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return Money{m.Decimal.Add(other.Decimal)}
}

// MulInt returns m multiplied by an integer quantity.
func (m Money) MulInt(n int64) Money {
	return Money{m.Decimal.Mul(decimal.NewFromInt(n))}
}

// Negative reports whether the amount is below zero.
func (m Money) Negative() bool {
	return m.Decimal.IsNegative()
}
