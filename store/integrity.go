package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Cross-entity consistency is enforced synchronously on the write path:
// every composite reference rides inside the same TransactWriteItems call as
// the row it guards, so a dangling or mismatched reference cancels the whole
// transaction. There is no database-native cross-partition foreign key to
// fall back on.

// errProbeParent marks a cancelled parent check whose cause must be
// classified by re-probing the parent's partitions (absent vs stale).
var errProbeParent = errors.New("ledger: parent check failed")

// errAlreadyDeleted marks a delete of an already soft-deleted row.
var errAlreadyDeleted = errors.New("ledger: entity is already deleted")

// parentCheckItem builds the transaction ConditionCheck validating one
// parent reference: the row exists and is not soft-deleted, plus any custom
// condition the reference carries.
func (s *Store) parentCheckItem(check ConditionCheck, nowUnix int64) types.TransactWriteItem {
	condExpr := check.ConditionExpr
	if condExpr == "" {
		condExpr = ParentExistsCondition(keyAttrNames(check.Key)[0])
	}

	names := map[string]string{"#ttl": "ttl"}
	for k, v := range check.Names {
		names[k] = v
	}
	values := map[string]types.AttributeValue{
		":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(nowUnix, 10)},
	}
	for k, v := range check.Values {
		values[k] = v
	}

	return types.TransactWriteItem{
		ConditionCheck: &types.ConditionCheck{
			TableName:                 aws.String(s.table(check.Table)),
			Key:                       check.Key,
			ConditionExpression:       aws.String(condExpr),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		},
	}
}

// maxTransactRetries bounds re-submission of a transaction cancelled purely
// by item-level write contention.
const maxTransactRetries = 3

// transactWrite submits a transaction. A cancellation caused only by
// TransactionConflict is retried so contenders re-evaluate their condition
// checks against the winner's state; the final outcome is mapped onto the
// registered typed failures.
func (s *Store) transactWrite(ctx context.Context, items []types.TransactWriteItem, failures []error) error {
	var err error
	for attempt := 0; attempt < maxTransactRetries; attempt++ {
		_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: items,
		})
		if !isTransactionConflict(err) {
			break
		}
	}
	return mapTransactionError(err, failures)
}

// isTransactionConflict reports whether a cancellation was caused solely by
// item-level write contention, with no condition failures.
func isTransactionConflict(err error) bool {
	var txErr *types.TransactionCanceledException
	if !errors.As(err, &txErr) {
		return false
	}
	conflict := false
	for _, reason := range txErr.CancellationReasons {
		switch aws.ToString(reason.Code) {
		case "None":
		case "TransactionConflict":
			conflict = true
		default:
			return false
		}
	}
	return conflict
}

// mapTransactionError translates a TransactionCanceledException into the
// typed error registered for the first failed item. failures runs parallel
// to the transaction's item list; a nil entry means that item carries no
// condition and cannot be the cause. A cancellation caused only by write
// contention maps to ErrConcurrentModification.
func mapTransactionError(err error, failures []error) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for i, reason := range txErr.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				if i < len(failures) && failures[i] != nil {
					return failures[i]
				}
				return fmt.Errorf("ledger: unexpected condition failure at item %d: %w", i, err)
			}
		}
		if isTransactionConflict(err) {
			return ErrConcurrentModification
		}
	}

	return err
}

// findRawByID scans a set of physical partitions for a row keyed by id,
// fanning out one query per partition with early cancellation on the first
// hit. This is the slow path: cost grows with the number of partitions,
// where the fast path is a single keyed read.
func (s *Store) findRawByID(ctx context.Context, tables []string, keyAttr, id string) (map[string]types.AttributeValue, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	found := make(chan map[string]types.AttributeValue, 1)
	errs := make(chan error, len(tables))
	var wg sync.WaitGroup

	for _, table := range tables {
		wg.Add(1)
		go func(table string) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				return
			default:
			}

			result, err := s.client.Query(ctx, &dynamodb.QueryInput{
				TableName:              aws.String(table),
				KeyConditionExpression: aws.String("#k = :id"),
				ExpressionAttributeNames: map[string]string{
					"#k": keyAttr,
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":id": strAttr(id),
				},
				Limit: aws.Int32(1),
			})
			if err != nil {
				errs <- err
				return
			}
			if len(result.Items) > 0 {
				select {
				case found <- result.Items[0]:
					cancel()
				default:
				}
			}
		}(table)
	}

	go func() {
		wg.Wait()
		close(found)
		close(errs)
	}()

	select {
	case item, ok := <-found:
		if ok {
			return item, nil
		}
	case err := <-errs:
		if err != nil && !errors.Is(err, context.Canceled) {
			return nil, err
		}
	}

	for err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) {
			return nil, err
		}
	}
	if item, ok := <-found; ok {
		return item, nil
	}

	return nil, ErrNotFound
}

// classifyParentRef turns a cancelled composite-parent check into its typed
// cause: the parent is absent in every partition (ParentNotFound), present
// with a different partition-key column (StaleParentReference), or present
// and matching, in which case the supplied fallback explains the failure
// (e.g., a status condition on the parent).
func (s *Store) classifyParentRef(ctx context.Context, tables []string, keyAttr, id, suppliedStamp string, fallback error) error {
	item, err := s.findRawByID(ctx, tables, keyAttr, id)
	if errors.Is(err, ErrNotFound) {
		return ErrParentNotFound
	}
	if err != nil {
		return err
	}
	if stored := stringAttrValue(item, "created_at"); stored != suppliedStamp {
		return fmt.Errorf("%w: stored created_at %s, supplied %s", ErrStaleParentReference, stored, suppliedStamp)
	}
	return fallback
}
