package store

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/ledger/internal/partition"
)

// The search index is an auxiliary table of trigram tokens, maintained
// transparently inside the same transaction as the entity write. Each token
// row is keyed by a hashed (type, field, token) partition key with the
// owner's entity ref as sort key, so fuzzy lookups are a handful of keyed
// queries instead of a table scan.

// maxQueryTokens caps how many token partitions a search fans out to.
const maxQueryTokens = 5

// trigrams returns the distinct 3-grams of a normalized string. Strings
// shorter than 3 runes index as a single token.
func trigrams(s string) []string {
	norm := strings.ToLower(strings.Join(strings.Fields(s), " "))
	runes := []rune(norm)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) < 3 {
		return []string{string(runes)}
	}

	seen := make(map[string]bool)
	var out []string
	for i := 0; i+3 <= len(runes); i++ {
		g := string(runes[i : i+3])
		if !seen[g] {
			seen[g] = true
			out = append(out, g)
		}
	}
	return out
}

// tokenPutItems builds the index puts for every token of every indexed field.
func (s *Store) tokenPutItems(entityType, entityRef string, fields map[string]string) []types.TransactWriteItem {
	var items []types.TransactWriteItem
	for field, value := range fields {
		for _, g := range trigrams(value) {
			items = append(items, types.TransactWriteItem{
				Put: &types.Put{
					TableName: aws.String(s.config.SearchTable),
					Item: map[string]types.AttributeValue{
						"pk":          strAttr(partition.TokenPK(entityType, field, g)),
						"sk":          strAttr(entityRef),
						"entity_type": strAttr(entityType),
						"field_name":  strAttr(field),
						"token":       strAttr(g),
					},
				},
			})
		}
	}
	return items
}

// tokenDeleteItems builds the index deletes for every token of one field's
// old value.
func (s *Store) tokenDeleteItems(entityType, entityRef, field, oldValue string) []types.TransactWriteItem {
	var items []types.TransactWriteItem
	for _, g := range trigrams(oldValue) {
		items = append(items, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName: aws.String(s.config.SearchTable),
				Key: PK{
					"pk": strAttr(partition.TokenPK(entityType, field, g)),
					"sk": strAttr(entityRef),
				},
			},
		})
	}
	return items
}

// searchRefs queries up to maxQueryTokens token partitions and returns the
// entity refs matching every queried token, best-first by match count.
func (s *Store) searchRefs(ctx context.Context, entityType, field, query string) ([]string, error) {
	tokens := trigrams(query)
	if len(tokens) == 0 {
		return nil, nil
	}
	if len(tokens) > maxQueryTokens {
		tokens = tokens[:maxQueryTokens]
	}

	counts := make(map[string]int)
	for _, g := range tokens {
		paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
			TableName:              aws.String(s.config.SearchTable),
			KeyConditionExpression: aws.String("pk = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": strAttr(partition.TokenPK(entityType, field, g)),
			},
		})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return nil, err
			}
			for _, item := range page.Items {
				if ref := stringAttrValue(item, "sk"); ref != "" {
					counts[ref]++
				}
			}
		}
	}

	var refs []string
	for ref, n := range counts {
		if n == len(tokens) {
			refs = append(refs, ref)
		}
	}
	sort.Strings(refs)
	return refs, nil
}

// SearchProducts performs a fuzzy name lookup through the trigram index.
// Results are fetched in ref order; deleted products are filtered out.
func (s *Store) SearchProducts(ctx context.Context, query string, limit int) ([]*Product, error) {
	refs, err := s.searchRefs(ctx, "product", "name", query)
	if err != nil {
		return nil, err
	}

	var out []*Product
	for _, ref := range refs {
		if limit > 0 && len(out) >= limit {
			break
		}
		p, err := s.GetProduct(ctx, refID(ref))
		if err == nil {
			out = append(out, p)
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return out, nil
}

// SearchUsers performs a fuzzy lookup on user email through the trigram
// index.
func (s *Store) SearchUsers(ctx context.Context, query string, limit int) ([]*User, error) {
	refs, err := s.searchRefs(ctx, "user", "email", query)
	if err != nil {
		return nil, err
	}

	var out []*User
	for _, ref := range refs {
		if limit > 0 && len(out) >= limit {
			break
		}
		u, err := s.GetUser(ctx, refID(ref))
		if err == nil {
			out = append(out, u)
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return out, nil
}
