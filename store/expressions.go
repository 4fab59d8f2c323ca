package store

import (
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Entity Store rows are soft-deleted by setting a ttl attribute; every read
// and parent check filters expired rows out.

// IsDeleted checks if an item has an expired TTL (is marked for deletion).
func IsDeleted(item map[string]types.AttributeValue) bool {
	ttlAttr, exists := item["ttl"]
	if !exists {
		return false
	}
	ttlNum, ok := ttlAttr.(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	ttl, err := strconv.ParseInt(ttlNum.Value, 10, 64)
	if err != nil {
		return false
	}
	return ttl <= time.Now().Unix()
}

// TTLFilterExpr returns the filter expression excluding deleted items.
func TTLFilterExpr() string {
	return "attribute_not_exists(#ttl) OR #ttl > :now"
}

// ParentExistsCondition returns the condition expression for parent
// validation: the row exists and is not deleted.
func ParentExistsCondition(keyAttr string) string {
	return "attribute_exists(" + keyAttr + ") AND (attribute_not_exists(#ttl) OR #ttl > :now)"
}

// keyAttrNames returns the attribute names of a primary key, "id" first when
// present so condition expressions are stable.
func keyAttrNames(key PK) []string {
	names := make([]string, 0, len(key))
	if _, ok := key["id"]; ok {
		names = append(names, "id")
	}
	for k := range key {
		if k != "id" {
			names = append(names, k)
		}
	}
	return names
}
