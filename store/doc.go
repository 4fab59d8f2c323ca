// Package store provides a DynamoDB data access layer for a partitioned
// eCommerce ledger: orders, payments, order items, reviews, and
// notifications are spread across physical partitions while referential
// integrity is enforced by the write path.
//
// # Partitioning
//
// Orders and payments are range-partitioned into monthly tables by creation
// time; order items, reviews, and notifications are hash-partitioned into a
// fixed number of buckets by order, product, and user id respectively. The
// partition map is static configuration: changing bucket counts or range
// windows requires an offline re-partition.
//
// Because a partitioned row's physical location depends on its partition
// key, partitioned primary keys are composite — (id, created_at) for orders
// and payments — and children must reference the full composite key. Child
// rows carry a denormalized copy of the parent's created_at that is written
// only by this package and verified against the parent inside the same
// transaction.
//
// # Integrity
//
// Every multi-row write is a single TransactWriteItems call: parent
// condition checks, uniqueness-constraint rows, search-index tokens, and
// guarded inventory arithmetic commit or cancel together. Violations
// surface as typed errors:
//
//   - [ErrNotFound] - entity doesn't exist or is deleted
//   - [ErrParentNotFound] - referenced parent absent in every partition
//   - [ErrStaleParentReference] - parent exists, partition key mismatch
//   - [ErrDuplicateValue] - unique constraint violated
//   - [ErrInsufficientInventory] - decrement would go below zero
//   - [ErrPartitionOutOfRange] - timestamp outside configured windows
//   - [ErrConcurrentModification] - optimistic lock failed
//
// # Lookups
//
// Partitioned reads expose a fast path requiring the full composite key
// ([Store.GetOrder]) and a slow path that probes every partition in
// parallel ([Store.FindOrderByID]). The slow path costs one query per
// configured partition; callers should retain composite keys.
//
// # Maintenance
//
// Every mutating operation touches updated_at and bumps the optimistic-lock
// version in the same write. Exact-match lookups (email, username, sku) ride
// on the uniqueness-constraint table; fuzzy lookups on a trigram token
// table. Both are maintained transactionally and never by callers.
package store
