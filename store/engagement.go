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

// Reviews and notifications are hash-partitioned on their parent key, so
// creation routes through the bucket table and listings are single keyed
// queries. Neither carries a denormalized timestamp: their parents are not
// partitioned by time.

// AddReview creates a review for an existing product. A non-empty userID is
// validated as well.
func (s *Store) AddReview(ctx context.Context, productID, userID string, rating int, comment string) (*Review, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}

	review := Review{
		ProductID: productID,
		ID:        uuid.NewString(),
		UserID:    userID,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: nowStamp(),
	}
	attrs, err := attributevalue.MarshalMap(review)
	if err != nil {
		return nil, fmt.Errorf("marshal review: %w", err)
	}

	nowUnix := time.Now().Unix()
	items := []types.TransactWriteItem{
		s.parentCheckItem(ConditionCheck{Table: "products", Key: strKey("id", productID)}, nowUnix),
	}
	failures := []error{fmt.Errorf("%w: product %s", ErrParentNotFound, productID)}

	if userID != "" {
		items = append(items, s.parentCheckItem(ConditionCheck{Table: "users", Key: strKey("id", userID)}, nowUnix))
		failures = append(failures, fmt.Errorf("%w: user %s", ErrParentNotFound, userID))
	}

	items = append(items, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(s.scheme.BucketTable(partition.KindReviews, productID)),
			Item:                attrs,
			ConditionExpression: aws.String("attribute_not_exists(id)"),
		},
	})
	failures = append(failures, ErrAlreadyExists)

	if err := s.transactWrite(ctx, items, failures); err != nil {
		return nil, err
	}
	return &review, nil
}

// ListReviewsForProduct returns every review of a product in key order.
// Reviews for one product share a bucket, so this is a single keyed query.
func (s *Store) ListReviewsForProduct(ctx context.Context, productID string) ([]*Review, error) {
	table := s.scheme.BucketTable(partition.KindReviews, productID)
	return queryAll[Review](ctx, s, table, "product_id = :pk", PK{":pk": strAttr(productID)})
}

// Notify creates a notification for an existing user.
func (s *Store) Notify(ctx context.Context, userID, message, notificationType, referenceID string) (*Notification, error) {
	if message == "" {
		return nil, fmt.Errorf("%w: notification message is required", ErrValidation)
	}

	n := Notification{
		UserID:      userID,
		ID:          uuid.NewString(),
		Message:     message,
		Type:        notificationType,
		ReferenceID: referenceID,
		CreatedAt:   nowStamp(),
	}
	attrs, err := attributevalue.MarshalMap(n)
	if err != nil {
		return nil, fmt.Errorf("marshal notification: %w", err)
	}

	items := []types.TransactWriteItem{
		s.parentCheckItem(ConditionCheck{Table: "users", Key: strKey("id", userID)}, time.Now().Unix()),
		{
			Put: &types.Put{
				TableName:           aws.String(s.scheme.BucketTable(partition.KindNotifications, userID)),
				Item:                attrs,
				ConditionExpression: aws.String("attribute_not_exists(id)"),
			},
		},
	}

	if err := s.transactWrite(ctx, items, []error{fmt.Errorf("%w: user %s", ErrParentNotFound, userID), ErrAlreadyExists}); err != nil {
		return nil, err
	}
	return &n, nil
}

// ListNotificationsForUser returns a user's notifications in key order from
// the user's bucket.
func (s *Store) ListNotificationsForUser(ctx context.Context, userID string) ([]*Notification, error) {
	table := s.scheme.BucketTable(partition.KindNotifications, userID)
	return queryAll[Notification](ctx, s, table, "user_id = :pk", PK{":pk": strAttr(userID)})
}

// MarkNotificationRead flips the read flag. Routing needs the user id — the
// partition key — next to the notification id.
func (s *Store) MarkNotificationRead(ctx context.Context, notificationID, userID string) error {
	table := s.scheme.BucketTable(partition.KindNotifications, userID)

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(table),
		Key: PK{
			"user_id": strAttr(userID),
			"id":      strAttr(notificationID),
		},
		UpdateExpression:    aws.String("SET #read = :true"),
		ConditionExpression: aws.String("attribute_exists(id)"),
		ExpressionAttributeNames: map[string]string{
			"#read": "read",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true": &types.AttributeValueMemberBOOL{Value: true},
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
