package store

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// PK represents a DynamoDB primary key.
type PK map[string]types.AttributeValue

// Record is the base interface for all non-partitioned storable types.
// TableName returns the logical name; the Store applies the table prefix.
type Record interface {
	// TableName returns the logical table name (e.g., "users").
	TableName() string

	// GetKey returns the primary key for this record.
	GetKey() PK

	// EntityRef returns the type-qualified reference (e.g., "user#uuid").
	EntityRef() string

	// EntityType returns the entity type name (e.g., "user").
	EntityType() string
}

// ParentChecker is implemented by records that reference a parent row.
type ParentChecker interface {
	// ParentChecks returns the condition checks validating every referenced
	// parent. Empty for root records.
	ParentChecks() []ConditionCheck
}

// ConditionCheck defines a parent existence check for transactions.
type ConditionCheck struct {
	// Table is the logical table name of the parent.
	Table string
	Key   PK

	// ConditionExpr is an optional custom condition expression. If empty,
	// ParentExistsCondition() is used (checks existence and not deleted).
	ConditionExpr string

	// Names and Values extend the expression attribute maps for custom
	// conditions (e.g., ownership checks).
	Names  map[string]string
	Values map[string]types.AttributeValue
}

// UniqueFielder is implemented by records with globally unique fields.
type UniqueFielder interface {
	// UniqueFields returns field name to value mappings for fields that
	// must be unique across the entity type.
	UniqueFields() map[string]string
}

// Searchable is implemented by records whose text fields feed the
// trigram search index.
type Searchable interface {
	// SearchFields returns field name to value mappings for indexed text.
	SearchFields() map[string]string
}
