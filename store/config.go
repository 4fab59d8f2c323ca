package store

import (
	"time"

	"github.com/jacentio/ledger/internal/partition"
)

// Config holds configuration for the Store.
//
// The partition map is fixed at schema-creation time: changing bucket counts
// or range windows requires a full offline re-partition. Range windows are
// calendar months covering [RangeStart, RangeEnd).
type Config struct {
	// TablePrefix prefixes every physical table name.
	// Default: "ledger"
	TablePrefix string

	// UniqueTable is the name of the uniqueness-constraint table.
	// Default: "ledger_unique_constraints"
	UniqueTable string

	// SearchTable is the name of the search-index token table.
	// Default: "ledger_search_index"
	SearchTable string

	// RangeStart is the inclusive start of the first order/payment window.
	// Default: January 1 of the current year (UTC).
	RangeStart time.Time

	// RangeEnd is the exclusive end of the last order/payment window.
	// Default: January 1 of the next year (UTC).
	RangeEnd time.Time

	// OrderItemBuckets is the hash-partition modulus for order items.
	// Default: 16. Max: 256.
	OrderItemBuckets int

	// ReviewBuckets is the hash-partition modulus for reviews.
	// Default: 16. Max: 256.
	ReviewBuckets int

	// NotificationBuckets is the hash-partition modulus for notifications.
	// Default: 16. Max: 256.
	NotificationBuckets int
}

// DefaultConfig returns sensible defaults: one year of monthly windows
// starting at the current calendar year, 16 buckets per hash kind.
func DefaultConfig() Config {
	year := time.Now().UTC().Year()
	return Config{
		TablePrefix:         "ledger",
		UniqueTable:         "ledger_unique_constraints",
		SearchTable:         "ledger_search_index",
		RangeStart:          time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:            time.Date(year+1, 1, 1, 0, 0, 0, 0, time.UTC),
		OrderItemBuckets:    16,
		ReviewBuckets:       16,
		NotificationBuckets: 16,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.TablePrefix == "" {
		c.TablePrefix = "ledger"
	}
	if c.UniqueTable == "" {
		c.UniqueTable = "ledger_unique_constraints"
	}
	if c.SearchTable == "" {
		c.SearchTable = "ledger_search_index"
	}
	if c.RangeStart.IsZero() || c.RangeEnd.IsZero() || !c.RangeStart.Before(c.RangeEnd) {
		year := time.Now().UTC().Year()
		c.RangeStart = time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
		c.RangeEnd = time.Date(year+1, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	c.OrderItemBuckets = clampBuckets(c.OrderItemBuckets)
	c.ReviewBuckets = clampBuckets(c.ReviewBuckets)
	c.NotificationBuckets = clampBuckets(c.NotificationBuckets)
}

// scheme builds the immutable partition map from the validated config.
func (c *Config) scheme() *partition.Scheme {
	return partition.NewScheme(c.TablePrefix, c.RangeStart, c.RangeEnd, map[string]int{
		partition.KindOrderItems:    c.OrderItemBuckets,
		partition.KindReviews:       c.ReviewBuckets,
		partition.KindNotifications: c.NotificationBuckets,
	})
}

func clampBuckets(n int) int {
	if n < 1 {
		return 16
	}
	if n > 256 {
		return 256
	}
	return n
}
