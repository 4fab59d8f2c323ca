package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jacentio/ledger/internal/partition"
)

// RecordPayment creates a payment against an existing order. The caller
// supplies the order's composite key; the write path verifies the referenced
// order in-transaction and owns the denormalized order_created_at column —
// it is copied from the verified reference and never caller-settable.
//
// A missing order yields ErrParentNotFound; an order that exists under a
// different created_at yields ErrStaleParentReference.
func (s *Store) RecordPayment(ctx context.Context, orderID, orderCreatedAt string, amount Money, method string) (*Payment, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: payment amount must be positive", ErrValidation)
	}
	if method == "" {
		return nil, fmt.Errorf("%w: payment method is required", ErrValidation)
	}

	orderTable, err := s.orderTableFor(orderCreatedAt)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	createdAt := now.Format(time.RFC3339Nano)
	paymentTable, err := s.scheme.RangeTable(partition.KindPayments, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPartitionOutOfRange, err)
	}

	payment := Payment{
		ID:             uuid.NewString(),
		CreatedAt:      createdAt,
		OrderID:        orderID,
		OrderCreatedAt: orderCreatedAt,
		Amount:         amount,
		Method:         method,
		Status:         PaymentPending,
		TransactionID:  uuid.NewString(),
		UpdatedAt:      createdAt,
		Version:        1,
	}
	attrs, err := attributevalue.MarshalMap(payment)
	if err != nil {
		return nil, fmt.Errorf("marshal payment: %w", err)
	}

	// Only live orders accept payments; a cancelled order fails the check.
	items := []types.TransactWriteItem{
		{
			ConditionCheck: &types.ConditionCheck{
				TableName: aws.String(orderTable),
				Key: PK{
					"id":         strAttr(orderID),
					"created_at": strAttr(orderCreatedAt),
				},
				ConditionExpression: aws.String("attribute_exists(id) AND #status <> :cancelled"),
				ExpressionAttributeNames: map[string]string{
					"#status": "status",
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":cancelled": strAttr(OrderCancelled),
				},
			},
		},
		{
			Put: &types.Put{
				TableName:           aws.String(paymentTable),
				Item:                attrs,
				ConditionExpression: aws.String("attribute_not_exists(id)"),
			},
		},
	}

	err = s.transactWrite(ctx, items, []error{errProbeParent, ErrAlreadyExists})
	if errors.Is(err, errProbeParent) {
		return nil, s.classifyParentRef(ctx,
			s.scheme.RangeTables(partition.KindOrders), "id", orderID, orderCreatedAt,
			fmt.Errorf("%w: order %s is not payable", ErrValidation, orderID))
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetPayment is the fast-path lookup by full composite key.
func (s *Store) GetPayment(ctx context.Context, id, createdAt string) (*Payment, error) {
	table, err := s.paymentTableFor(createdAt)
	if err != nil {
		return nil, err
	}

	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key: PK{
			"id":         strAttr(id),
			"created_at": strAttr(createdAt),
		},
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, ErrNotFound
	}

	var p Payment
	if err := attributevalue.UnmarshalMap(result.Item, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// FindPaymentByID is the slow-path lookup probing every payment partition in
// parallel. Prefer GetPayment when the composite key is known.
func (s *Store) FindPaymentByID(ctx context.Context, id string) (*Payment, error) {
	item, err := s.findRawByID(ctx, s.scheme.RangeTables(partition.KindPayments), "id", id)
	if err != nil {
		return nil, err
	}
	var p Payment
	if err := attributevalue.UnmarshalMap(item, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SettlePayment marks a payment completed and stores the gateway's response
// blob for audit, in the payment's original partition.
func (s *Store) SettlePayment(ctx context.Context, id, createdAt, gatewayResponse string) error {
	return s.updatePayment(ctx, id, createdAt, PaymentCompleted, gatewayResponse)
}

// UpdatePaymentStatus transitions a payment's status.
func (s *Store) UpdatePaymentStatus(ctx context.Context, id, createdAt, status string) error {
	if !validPaymentStatus(status) {
		return fmt.Errorf("%w: unknown payment status %q", ErrValidation, status)
	}
	return s.updatePayment(ctx, id, createdAt, status, "")
}

func (s *Store) updatePayment(ctx context.Context, id, createdAt, status, gatewayResponse string) error {
	table, err := s.paymentTableFor(createdAt)
	if err != nil {
		return err
	}

	expr := "SET #status = :status, #updated_at = :now, #version = #version + :one"
	names := map[string]string{
		"#status":     "status",
		"#updated_at": "updated_at",
		"#version":    "version",
	}
	values := map[string]types.AttributeValue{
		":status": strAttr(status),
		":now":    strAttr(nowStamp()),
		":one":    &types.AttributeValueMemberN{Value: "1"},
	}
	if gatewayResponse != "" {
		expr += ", gateway_response = :resp"
		values[":resp"] = strAttr(gatewayResponse)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(table),
		Key:                       PK{"id": strAttr(id), "created_at": strAttr(createdAt)},
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("attribute_exists(id)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrNotFound
		}
	}
	return err
}

// IssueRefund records a refund against a completed payment and moves the
// payment to REFUNDED in the same transaction. The caller supplies the
// payment's composite key; a mismatched payment_created_at yields
// ErrStaleParentReference, an absent payment ErrParentNotFound, and a
// payment in any status other than COMPLETED fails validation.
func (s *Store) IssueRefund(ctx context.Context, paymentID, paymentCreatedAt string, amount Money, reason string) (*Refund, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: refund amount must be positive", ErrValidation)
	}

	paymentTable, err := s.paymentTableFor(paymentCreatedAt)
	if err != nil {
		return nil, err
	}

	now := nowStamp()
	refund := Refund{
		ID:               uuid.NewString(),
		PaymentID:        paymentID,
		PaymentCreatedAt: paymentCreatedAt,
		Amount:           amount,
		Reason:           reason,
		Status:           RefundCompleted,
		CreatedAt:        now,
		UpdatedAt:        now,
		Version:          1,
	}
	attrs, err := attributevalue.MarshalMap(refund)
	if err != nil {
		return nil, fmt.Errorf("marshal refund: %w", err)
	}

	items := []types.TransactWriteItem{
		{
			Update: &types.Update{
				TableName: aws.String(paymentTable),
				Key: PK{
					"id":         strAttr(paymentID),
					"created_at": strAttr(paymentCreatedAt),
				},
				UpdateExpression:    aws.String("SET #status = :refunded, #updated_at = :now, #version = #version + :one"),
				ConditionExpression: aws.String("attribute_exists(id) AND #status = :completed"),
				ExpressionAttributeNames: map[string]string{
					"#status":     "status",
					"#updated_at": "updated_at",
					"#version":    "version",
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":refunded":  strAttr(PaymentRefunded),
					":completed": strAttr(PaymentCompleted),
					":now":       strAttr(now),
					":one":       &types.AttributeValueMemberN{Value: "1"},
				},
			},
		},
		{
			Put: &types.Put{
				TableName:           aws.String(s.table("refunds")),
				Item:                attrs,
				ConditionExpression: aws.String("attribute_not_exists(id)"),
			},
		},
	}

	err = s.transactWrite(ctx, items, []error{errProbeParent, ErrAlreadyExists})
	if errors.Is(err, errProbeParent) {
		return nil, s.classifyParentRef(ctx,
			s.scheme.RangeTables(partition.KindPayments), "id", paymentID, paymentCreatedAt,
			fmt.Errorf("%w: payment %s is not refundable", ErrValidation, paymentID))
	}
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

// GetRefund retrieves a refund by id.
func (s *Store) GetRefund(ctx context.Context, id string) (*Refund, error) {
	var r Refund
	if err := s.getRecord(ctx, "refunds", strKey("id", id), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// paymentTableFor resolves the physical payment partition for a composite-key
// timestamp.
func (s *Store) paymentTableFor(createdAt string) (string, error) {
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return "", fmt.Errorf("%w: bad created_at %q", ErrValidation, createdAt)
	}
	table, err := s.scheme.RangeTable(partition.KindPayments, t)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPartitionOutOfRange, err)
	}
	return table, nil
}

func validPaymentStatus(status string) bool {
	switch status {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}
