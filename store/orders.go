package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jacentio/ledger/internal/partition"
)

// maxOrderLines bounds one order to fit a single DynamoDB transaction
// (each line costs three transact items next to the fixed checks).
const maxOrderLines = 30

// OrderLine is one requested item in a checkout.
type OrderLine struct {
	ProductID string
	VariantID string
	Quantity  int64
}

// PlaceOrder atomically creates an order with its items and decrements
// inventory. Either every row commits or none does: a missing user or
// address, an inactive product, or an inventory decrement that would go
// below zero cancels the whole transaction.
//
// The returned order carries the composite key (ID, CreatedAt) that callers
// must retain for subsequent payment and item operations.
func (s *Store) PlaceOrder(ctx context.Context, userID, addressID string, lines []OrderLine) (*Order, error) {
	if len(lines) == 0 || len(lines) > maxOrderLines {
		return nil, fmt.Errorf("%w: order must have between 1 and %d lines", ErrValidation, maxOrderLines)
	}
	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, fmt.Errorf("%w: line quantity must be at least 1", ErrValidation)
		}
	}

	now := time.Now().UTC()
	createdAt := now.Format(time.RFC3339Nano)

	orderTable, err := s.scheme.RangeTable(partition.KindOrders, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPartitionOutOfRange, err)
	}

	// Price the lines from the current catalog. The in-transaction product
	// checks fail the commit if anything changes under us.
	order := Order{
		ID:                uuid.NewString(),
		CreatedAt:         createdAt,
		UserID:            userID,
		DeliveryAddressID: addressID,
		Status:            OrderPending,
		UpdatedAt:         createdAt,
		Version:           1,
	}

	orderItems := make([]OrderItem, 0, len(lines))
	for _, line := range lines {
		product, err := s.GetProduct(ctx, line.ProductID)
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: product %s", ErrParentNotFound, line.ProductID)
		}
		if err != nil {
			return nil, err
		}
		if !product.IsActive {
			return nil, fmt.Errorf("%w: product %s is not active", ErrValidation, line.ProductID)
		}

		unitPrice := product.BasePrice
		if line.VariantID != "" {
			variant, err := s.GetVariant(ctx, line.VariantID)
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("%w: variant %s", ErrParentNotFound, line.VariantID)
			}
			if err != nil {
				return nil, err
			}
			if variant.ProductID != line.ProductID {
				return nil, fmt.Errorf("%w: variant %s does not belong to product %s", ErrValidation, line.VariantID, line.ProductID)
			}
			unitPrice = unitPrice.Add(variant.PriceModifier)
		}

		orderItems = append(orderItems, OrderItem{
			OrderID:        order.ID,
			ID:             uuid.NewString(),
			OrderCreatedAt: createdAt,
			ProductID:      line.ProductID,
			VariantID:      line.VariantID,
			ProductName:    product.Name,
			UnitPrice:      unitPrice,
			Quantity:       line.Quantity,
		})
		order.TotalAmount = order.TotalAmount.Add(unitPrice.MulInt(line.Quantity))
	}

	items, failures, err := s.orderTransactionItems(orderTable, order, orderItems)
	if err != nil {
		return nil, err
	}
	if err := s.transactWrite(ctx, items, failures); err != nil {
		return nil, err
	}
	return &order, nil
}

// orderTransactionItems assembles the checkout transaction: user and address
// checks, the order put, one product check and one aggregated inventory
// decrement per distinct product, and the item puts. A transaction may touch
// each row at most once, so lines sharing a product (two variants of one
// product) collapse into a single guarded decrement.
func (s *Store) orderTransactionItems(orderTable string, order Order, orderItems []OrderItem) ([]types.TransactWriteItem, []error, error) {
	nowUnix := time.Now().Unix()
	var items []types.TransactWriteItem
	var failures []error

	// User and address checks; the address must belong to the user.
	items = append(items, s.parentCheckItem(ConditionCheck{
		Table: "users",
		Key:   strKey("id", order.UserID),
	}, nowUnix))
	failures = append(failures, fmt.Errorf("%w: user %s", ErrParentNotFound, order.UserID))

	items = append(items, s.parentCheckItem(ConditionCheck{
		Table:         "addresses",
		Key:           strKey("id", order.DeliveryAddressID),
		ConditionExpr: ParentExistsCondition("id") + " AND user_id = :uid",
		Values:        map[string]types.AttributeValue{":uid": strAttr(order.UserID)},
	}, nowUnix))
	failures = append(failures, fmt.Errorf("%w: address %s for user %s", ErrParentNotFound, order.DeliveryAddressID, order.UserID))

	// The order row.
	orderAttrs, err := attributevalue.MarshalMap(order)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal order: %w", err)
	}
	items = append(items, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(orderTable),
			Item:                orderAttrs,
			ConditionExpression: aws.String("attribute_not_exists(id)"),
		},
	})
	failures = append(failures, ErrAlreadyExists)

	// Per distinct product: liveness check, guarded decrement of the summed
	// quantity.
	productIDs, quantities := aggregateLineQuantities(orderItems)
	for _, pid := range productIDs {
		items = append(items, s.parentCheckItem(ConditionCheck{
			Table:         "products",
			Key:           strKey("id", pid),
			ConditionExpr: ParentExistsCondition("id") + " AND is_active = :active",
			Values:        map[string]types.AttributeValue{":active": &types.AttributeValueMemberBOOL{Value: true}},
		}, nowUnix))
		failures = append(failures, fmt.Errorf("%w: product %s", ErrParentNotFound, pid))

		items = append(items, types.TransactWriteItem{
			Update: &types.Update{
				TableName:           aws.String(s.table("inventory")),
				Key:                 strKey("product_id", pid),
				UpdateExpression:    aws.String("SET quantity = quantity - :n, updated_at = :ts, #version = #version + :one"),
				ConditionExpression: aws.String("attribute_exists(product_id) AND quantity >= :n"),
				ExpressionAttributeNames: map[string]string{
					"#version": "version",
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":n":   &types.AttributeValueMemberN{Value: strconv.FormatInt(quantities[pid], 10)},
					":ts":  strAttr(order.CreatedAt),
					":one": &types.AttributeValueMemberN{Value: "1"},
				},
			},
		})
		failures = append(failures, fmt.Errorf("%w: product %s", ErrInsufficientInventory, pid))
	}

	// Per line: the item put.
	for _, oi := range orderItems {
		itemAttrs, err := attributevalue.MarshalMap(oi)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal order item: %w", err)
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(s.scheme.BucketTable(partition.KindOrderItems, oi.OrderID)),
				Item:      itemAttrs,
			},
		})
		failures = append(failures, nil)
	}

	return items, failures, nil
}

// aggregateLineQuantities sums quantities per distinct product, preserving
// first-seen order.
func aggregateLineQuantities(orderItems []OrderItem) ([]string, map[string]int64) {
	ids := make([]string, 0, len(orderItems))
	totals := make(map[string]int64, len(orderItems))
	for _, oi := range orderItems {
		if _, seen := totals[oi.ProductID]; !seen {
			ids = append(ids, oi.ProductID)
		}
		totals[oi.ProductID] += oi.Quantity
	}
	return ids, totals
}

// GetOrder is the fast-path lookup: with the full composite key the read is
// a single keyed fetch from one partition.
func (s *Store) GetOrder(ctx context.Context, id, createdAt string) (*Order, error) {
	table, err := s.orderTableFor(createdAt)
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

	var o Order
	if err := attributevalue.UnmarshalMap(result.Item, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// FindOrderByID is the slow-path lookup: without the partition key every
// range partition is probed in parallel. Cost grows with the number of
// configured windows; prefer GetOrder when the composite key is known.
func (s *Store) FindOrderByID(ctx context.Context, id string) (*Order, error) {
	item, err := s.findRawByID(ctx, s.scheme.RangeTables(partition.KindOrders), "id", id)
	if err != nil {
		return nil, err
	}
	var o Order
	if err := attributevalue.UnmarshalMap(item, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// UpdateOrderStatus transitions an order's status in its original partition;
// rows never move between partitions after creation.
func (s *Store) UpdateOrderStatus(ctx context.Context, id, createdAt, status string) error {
	if !validOrderStatus(status) {
		return fmt.Errorf("%w: unknown order status %q", ErrValidation, status)
	}
	table, err := s.orderTableFor(createdAt)
	if err != nil {
		return err
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(table),
		Key:                 PK{"id": strAttr(id), "created_at": strAttr(createdAt)},
		UpdateExpression:    aws.String("SET #status = :status, #updated_at = :now, #version = #version + :one"),
		ConditionExpression: aws.String("attribute_exists(id)"),
		ExpressionAttributeNames: map[string]string{
			"#status":     "status",
			"#updated_at": "updated_at",
			"#version":    "version",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": strAttr(status),
			":now":    strAttr(nowStamp()),
			":one":    &types.AttributeValueMemberN{Value: "1"},
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrNotFound
		}
	}
	return err
}

// ListOrderItems returns every item of an order in key order. Items live in
// a single hash bucket keyed by order id, so this is one keyed query.
func (s *Store) ListOrderItems(ctx context.Context, orderID string) ([]*OrderItem, error) {
	table := s.scheme.BucketTable(partition.KindOrderItems, orderID)
	return queryAll[OrderItem](ctx, s, table, "order_id = :pk", PK{":pk": strAttr(orderID)})
}

// orderTableFor resolves the physical order partition for a composite-key
// timestamp.
func (s *Store) orderTableFor(createdAt string) (string, error) {
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return "", fmt.Errorf("%w: bad created_at %q", ErrValidation, createdAt)
	}
	table, err := s.scheme.RangeTable(partition.KindOrders, t)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPartitionOutOfRange, err)
	}
	return table, nil
}

func validOrderStatus(status string) bool {
	switch status {
	case OrderPending, OrderConfirmed, OrderInTransit, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}
