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

// Store provides DynamoDB operations for the partitioned eCommerce ledger.
type Store struct {
	client *dynamodb.Client
	config Config
	scheme *partition.Scheme
}

// New creates a new Store instance.
func New(client *dynamodb.Client, config Config) *Store {
	config.validate()
	return &Store{
		client: client,
		config: config,
		scheme: config.scheme(),
	}
}

// table applies the configured prefix to a logical table name.
func (s *Store) table(name string) string {
	return s.config.TablePrefix + "_" + name
}

// nowStamp returns the canonical timestamp encoding. Exact string equality
// on these values is what composite references are checked against.
func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// --- Entity Store: create ---

// create inserts a record with parent validation, unique constraints, and
// search-index maintenance in a single transaction. Managed fields
// (created_at, updated_at, version) must already be set on the record.
func (s *Store) create(ctx context.Context, rec Record) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", rec.EntityType(), err)
	}
	item["entity_ref"] = strAttr(rec.EntityRef())

	nowUnix := time.Now().Unix()
	var items []types.TransactWriteItem
	var failures []error

	// 1. Parent condition checks
	if checker, ok := rec.(ParentChecker); ok {
		for _, check := range checker.ParentChecks() {
			items = append(items, s.parentCheckItem(check, nowUnix))
			failures = append(failures, ErrParentNotFound)
		}
	}

	// 2. Unique constraints
	if uf, ok := rec.(UniqueFielder); ok {
		for field, value := range uf.UniqueFields() {
			items = append(items, s.constraintPutItem(rec, field, value))
			failures = append(failures, ErrDuplicateValue)
		}
	}

	// 3. Search index tokens (unconditional puts, cannot fail a condition)
	if sf, ok := rec.(Searchable); ok {
		for _, put := range s.tokenPutItems(rec.EntityType(), rec.EntityRef(), sf.SearchFields()) {
			items = append(items, put)
			failures = append(failures, nil)
		}
	}

	// 4. The record itself
	keyAttr := keyAttrNames(rec.GetKey())[0]
	items = append(items, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(s.table(rec.TableName())),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(" + keyAttr + ")"),
		},
	})
	failures = append(failures, ErrAlreadyExists)

	return s.transactWrite(ctx, items, failures)
}

// constraintPutItem builds the uniqueness-constraint put for one field.
func (s *Store) constraintPutItem(rec Record, field, value string) types.TransactWriteItem {
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName: aws.String(s.config.UniqueTable),
			Item: map[string]types.AttributeValue{
				"pk":          strAttr(partition.ConstraintPK(rec.EntityType(), field, value)),
				"sk":          strAttr("CONSTRAINT"),
				"entity_type": strAttr(rec.EntityType()),
				"field_name":  strAttr(field),
				"field_value": strAttr(value),
				"entity_ref":  strAttr(rec.EntityRef()),
			},
			ConditionExpression: aws.String("attribute_not_exists(pk)"),
		},
	}
}

// --- Entity Store: read ---

// getRecord retrieves one row and unmarshals it, treating soft-deleted rows
// as absent.
func (s *Store) getRecord(ctx context.Context, table string, key PK, out any) error {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table(table)),
		Key:       key,
	})
	if err != nil {
		return err
	}
	if result.Item == nil || IsDeleted(result.Item) {
		return ErrNotFound
	}
	return attributevalue.UnmarshalMap(result.Item, out)
}

// lookupUnique resolves a unique field value to its owner's entity ref via
// the constraint table. This doubles as the exact-match secondary index for
// email, username, sku, and one-cart-per-user lookups.
func (s *Store) lookupUnique(ctx context.Context, entityType, field, value string) (string, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.config.UniqueTable),
		Key: PK{
			"pk": strAttr(partition.ConstraintPK(entityType, field, value)),
			"sk": strAttr("CONSTRAINT"),
		},
	})
	if err != nil {
		return "", err
	}
	if result.Item == nil {
		return "", ErrNotFound
	}
	ref, ok := result.Item["entity_ref"].(*types.AttributeValueMemberS)
	if !ok {
		return "", ErrNotFound
	}
	return ref.Value, nil
}

// --- Entity Store: update ---

// Update mutates a record with optimistic locking, touching updated_at in
// the same write. If unique fields changed, old constraints are deleted and
// new ones created transactionally; search tokens are reindexed likewise.
func (s *Store) Update(ctx context.Context, rec Record, expectedVersion int64) error {
	uf, hasUnique := rec.(UniqueFielder)
	sf, hasSearch := rec.(Searchable)
	if !hasUnique && !hasSearch {
		return s.updateSimple(ctx, rec, expectedVersion)
	}

	// Fetch the current row to diff unique and indexed fields.
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table(rec.TableName())),
		Key:       rec.GetKey(),
	})
	if err != nil {
		return err
	}
	if result.Item == nil || IsDeleted(result.Item) {
		return ErrNotFound
	}
	current := result.Item

	var items []types.TransactWriteItem
	var failures []error

	if hasUnique {
		for field, newValue := range uf.UniqueFields() {
			oldValue := stringAttrValue(current, field)
			if oldValue == newValue {
				continue
			}
			if oldValue != "" {
				items = append(items, types.TransactWriteItem{
					Delete: &types.Delete{
						TableName: aws.String(s.config.UniqueTable),
						Key: PK{
							"pk": strAttr(partition.ConstraintPK(rec.EntityType(), field, oldValue)),
							"sk": strAttr("CONSTRAINT"),
						},
					},
				})
				failures = append(failures, nil)
			}
			items = append(items, s.constraintPutItem(rec, field, newValue))
			failures = append(failures, ErrDuplicateValue)
		}
	}

	if hasSearch {
		for field, newValue := range sf.SearchFields() {
			oldValue := stringAttrValue(current, field)
			if oldValue == newValue {
				continue
			}
			for _, del := range s.tokenDeleteItems(rec.EntityType(), rec.EntityRef(), field, oldValue) {
				items = append(items, del)
				failures = append(failures, nil)
			}
			for _, put := range s.tokenPutItems(rec.EntityType(), rec.EntityRef(), map[string]string{field: newValue}) {
				items = append(items, put)
				failures = append(failures, nil)
			}
		}
	}

	// No constraint or index churn: plain conditional update.
	if len(items) == 0 {
		return s.updateSimple(ctx, rec, expectedVersion)
	}

	update, err := s.updateItemFor(rec, expectedVersion)
	if err != nil {
		return err
	}
	items = append(items, types.TransactWriteItem{Update: update})
	failures = append(failures, ErrConcurrentModification)

	return s.transactWrite(ctx, items, failures)
}

// updateSimple performs a conditional update without constraint handling.
func (s *Store) updateSimple(ctx context.Context, rec Record, expectedVersion int64) error {
	update, err := s.updateItemFor(rec, expectedVersion)
	if err != nil {
		return err
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 update.TableName,
		Key:                       update.Key,
		UpdateExpression:          update.UpdateExpression,
		ConditionExpression:       update.ConditionExpression,
		ExpressionAttributeNames:  update.ExpressionAttributeNames,
		ExpressionAttributeValues: update.ExpressionAttributeValues,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConcurrentModification
		}
		return err
	}
	return nil
}

// updateItemFor builds the SET expression for a record update: every
// non-managed attribute, plus updated_at and a version bump, guarded by the
// expected version and liveness.
func (s *Store) updateItemFor(rec Record, expectedVersion int64) (*types.Update, error) {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", rec.EntityType(), err)
	}

	skip := map[string]bool{
		"entity_ref": true, "version": true,
		"created_at": true, "updated_at": true, "ttl": true,
	}
	for _, k := range keyAttrNames(rec.GetKey()) {
		skip[k] = true
	}

	var setClauses []string
	exprNames := map[string]string{
		"#updated_at": "updated_at",
		"#version":    "version",
		"#ttl":        "ttl",
	}
	exprValues := map[string]types.AttributeValue{
		":updated_at":       strAttr(nowStamp()),
		":one":              &types.AttributeValueMemberN{Value: "1"},
		":expected_version": &types.AttributeValueMemberN{Value: strconv.FormatInt(expectedVersion, 10)},
	}

	i := 0
	for k, v := range item {
		if skip[k] {
			continue
		}
		nameKey := fmt.Sprintf("#attr%d", i)
		valueKey := fmt.Sprintf(":val%d", i)
		exprNames[nameKey] = k
		exprValues[valueKey] = v
		setClauses = append(setClauses, nameKey+" = "+valueKey)
		i++
	}
	setClauses = append(setClauses, "#updated_at = :updated_at", "#version = #version + :one")

	return &types.Update{
		TableName:                 aws.String(s.table(rec.TableName())),
		Key:                       rec.GetKey(),
		UpdateExpression:          aws.String("SET " + joinStrings(setClauses, ", ")),
		ConditionExpression:       aws.String("#version = :expected_version AND attribute_not_exists(#ttl)"),
		ExpressionAttributeNames:  exprNames,
		ExpressionAttributeValues: exprValues,
	}, nil
}

// --- Entity Store: delete ---

// Delete soft-deletes a record by setting its TTL, releasing its unique
// constraints and search tokens in the same transaction. Deleting an absent
// or already-deleted record is a no-op. The caller passes the current record
// so constraint values can be located.
func (s *Store) Delete(ctx context.Context, rec Record) error {
	var items []types.TransactWriteItem
	var failures []error

	items = append(items, s.softDeleteItem(rec, time.Now().Unix()))
	failures = append(failures, errAlreadyDeleted)

	if uf, ok := rec.(UniqueFielder); ok {
		for field, value := range uf.UniqueFields() {
			items = append(items, types.TransactWriteItem{
				Delete: &types.Delete{
					TableName: aws.String(s.config.UniqueTable),
					Key: PK{
						"pk": strAttr(partition.ConstraintPK(rec.EntityType(), field, value)),
						"sk": strAttr("CONSTRAINT"),
					},
				},
			})
			failures = append(failures, nil)
		}
	}
	if sf, ok := rec.(Searchable); ok {
		for field, value := range sf.SearchFields() {
			for _, del := range s.tokenDeleteItems(rec.EntityType(), rec.EntityRef(), field, value) {
				items = append(items, del)
				failures = append(failures, nil)
			}
		}
	}

	err := s.transactWrite(ctx, items, failures)
	if errors.Is(err, errAlreadyDeleted) {
		return nil
	}
	return err
}

// softDeleteItem builds the TTL-setting update for a soft delete. The
// condition requires a live row: an absent or already-deleted row fails the
// condition check rather than erroring on the version arithmetic.
func (s *Store) softDeleteItem(rec Record, nowUnix int64) types.TransactWriteItem {
	keyAttr := keyAttrNames(rec.GetKey())[0]
	return types.TransactWriteItem{
		Update: &types.Update{
			TableName:           aws.String(s.table(rec.TableName())),
			Key:                 rec.GetKey(),
			UpdateExpression:    aws.String("SET #ttl = :now, #version = #version + :one"),
			ConditionExpression: aws.String("attribute_exists(" + keyAttr + ") AND attribute_not_exists(#ttl)"),
			ExpressionAttributeNames: map[string]string{
				"#ttl":     "ttl",
				"#version": "version",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(nowUnix, 10)},
				":one": &types.AttributeValueMemberN{Value: "1"},
			},
		},
	}
}

// --- Typed entity operations ---

// CreateUser inserts a user. Email and username are unique.
func (s *Store) CreateUser(ctx context.Context, u *User) error {
	if u.Email == "" || u.Username == "" {
		return fmt.Errorf("%w: email and username are required", ErrValidation)
	}
	stampNew(&u.ID, &u.CreatedAt, &u.UpdatedAt, &u.Version)
	return s.create(ctx, *u)
}

// GetUser retrieves a user by id.
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	if err := s.getRecord(ctx, "users", strKey("id", id), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByEmail resolves a user through the exact-match email index.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	ref, err := s.lookupUnique(ctx, "user", "email", email)
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, refID(ref))
}

// CreateCategory inserts a category. Name is unique; a non-empty parent must
// exist.
func (s *Store) CreateCategory(ctx context.Context, c *Category) error {
	if c.Name == "" {
		return fmt.Errorf("%w: category name is required", ErrValidation)
	}
	stampNew(&c.ID, &c.CreatedAt, &c.UpdatedAt, &c.Version)
	return s.create(ctx, *c)
}

// GetCategory retrieves a category by id.
func (s *Store) GetCategory(ctx context.Context, id string) (*Category, error) {
	var c Category
	if err := s.getRecord(ctx, "categories", strKey("id", id), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// SetCategoryParent re-parents a category after walking the new ancestor
// chain with a visited set; a walk that reaches the category itself would
// form a cycle and fails validation before anything is written.
func (s *Store) SetCategoryParent(ctx context.Context, categoryID, parentID string, expectedVersion int64) error {
	if parentID == categoryID {
		return fmt.Errorf("%w: category cannot be its own parent", ErrValidation)
	}
	visited := map[string]bool{categoryID: true}
	for cur := parentID; cur != ""; {
		if visited[cur] {
			return fmt.Errorf("%w: category parent chain forms a cycle", ErrValidation)
		}
		visited[cur] = true
		ancestor, err := s.GetCategory(ctx, cur)
		if errors.Is(err, ErrNotFound) {
			return ErrParentNotFound
		}
		if err != nil {
			return err
		}
		cur = ancestor.ParentID
	}

	cat, err := s.GetCategory(ctx, categoryID)
	if err != nil {
		return err
	}
	cat.ParentID = parentID
	return s.Update(ctx, *cat, expectedVersion)
}

// CreateProduct inserts a product under an existing category.
func (s *Store) CreateProduct(ctx context.Context, p *Product) error {
	if p.Name == "" || p.CategoryID == "" {
		return fmt.Errorf("%w: product name and category are required", ErrValidation)
	}
	if p.BasePrice.Negative() {
		return fmt.Errorf("%w: base price cannot be negative", ErrValidation)
	}
	stampNew(&p.ID, &p.CreatedAt, &p.UpdatedAt, &p.Version)
	return s.create(ctx, *p)
}

// GetProduct retrieves a product by id.
func (s *Store) GetProduct(ctx context.Context, id string) (*Product, error) {
	var p Product
	if err := s.getRecord(ctx, "products", strKey("id", id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateVariant inserts a product variant. SKU is unique; the price modifier
// may be negative.
func (s *Store) CreateVariant(ctx context.Context, v *ProductVariant) error {
	if v.SKU == "" || v.ProductID == "" {
		return fmt.Errorf("%w: variant sku and product are required", ErrValidation)
	}
	stampNew(&v.ID, &v.CreatedAt, &v.UpdatedAt, &v.Version)
	return s.create(ctx, *v)
}

// GetVariant retrieves a variant by id.
func (s *Store) GetVariant(ctx context.Context, id string) (*ProductVariant, error) {
	var v ProductVariant
	if err := s.getRecord(ctx, "variants", strKey("id", id), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// CreateAddress inserts a delivery address for an existing user.
func (s *Store) CreateAddress(ctx context.Context, a *Address) error {
	if a.UserID == "" || a.Street1 == "" {
		return fmt.Errorf("%w: address user and street are required", ErrValidation)
	}
	if a.AddressType == "" {
		a.AddressType = AddressHome
	}
	stampNew(&a.ID, &a.CreatedAt, &a.UpdatedAt, &a.Version)
	return s.create(ctx, *a)
}

// GetAddress retrieves an address by id.
func (s *Store) GetAddress(ctx context.Context, id string) (*Address, error) {
	var a Address
	if err := s.getRecord(ctx, "addresses", strKey("id", id), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// EnsureCart returns the user's cart, creating it if absent. The one-cart-
// per-user rule rides on the user_id unique constraint.
func (s *Store) EnsureCart(ctx context.Context, userID string) (*Cart, error) {
	if ref, err := s.lookupUnique(ctx, "cart", "user_id", userID); err == nil {
		return s.GetCart(ctx, refID(ref))
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	c := Cart{UserID: userID}
	stampNew(&c.ID, &c.CreatedAt, &c.UpdatedAt, &c.Version)
	err := s.create(ctx, c)
	if errors.Is(err, ErrDuplicateValue) {
		// Raced with a concurrent EnsureCart; the winner's cart is ours too.
		ref, lerr := s.lookupUnique(ctx, "cart", "user_id", userID)
		if lerr != nil {
			return nil, lerr
		}
		return s.GetCart(ctx, refID(ref))
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCart retrieves a cart by id.
func (s *Store) GetCart(ctx context.Context, id string) (*Cart, error) {
	var c Cart
	if err := s.getRecord(ctx, "carts", strKey("id", id), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// AddCartItem inserts a selection into a cart.
func (s *Store) AddCartItem(ctx context.Context, ci *CartItem) error {
	if ci.CartID == "" || ci.ProductID == "" {
		return fmt.Errorf("%w: cart and product are required", ErrValidation)
	}
	if ci.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	}
	stampNew(&ci.ID, &ci.CreatedAt, &ci.UpdatedAt, &ci.Version)
	return s.create(ctx, *ci)
}

// ListCartItems returns all selections in a cart in key order.
func (s *Store) ListCartItems(ctx context.Context, cartID string) ([]*CartItem, error) {
	return queryAll[CartItem](ctx, s, s.table("cart_items"), "cart_id = :pk", PK{":pk": strAttr(cartID)})
}

// ClearCart removes every selection from a cart.
func (s *Store) ClearCart(ctx context.Context, cartID string) error {
	items, err := s.ListCartItems(ctx, cartID)
	if err != nil {
		return err
	}
	for _, ci := range items {
		_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.table("cart_items")),
			Key:       ci.GetKey(),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// CreateGateway inserts a payment gateway. Name is unique.
func (s *Store) CreateGateway(ctx context.Context, g *PaymentGateway) error {
	if g.Name == "" {
		return fmt.Errorf("%w: gateway name is required", ErrValidation)
	}
	stampNew(&g.ID, &g.CreatedAt, &g.UpdatedAt, &g.Version)
	return s.create(ctx, *g)
}

// GetGateway retrieves a gateway by id.
func (s *Store) GetGateway(ctx context.Context, id string) (*PaymentGateway, error) {
	var g PaymentGateway
	if err := s.getRecord(ctx, "gateways", strKey("id", id), &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// LogWebhook records a raw gateway callback for later settlement.
func (s *Store) LogWebhook(ctx context.Context, w *PaymentWebhookLog) error {
	if w.GatewayID == "" || w.Payload == "" {
		return fmt.Errorf("%w: webhook gateway and payload are required", ErrValidation)
	}
	stampNew(&w.ID, &w.CreatedAt, &w.UpdatedAt, &w.Version)
	return s.create(ctx, *w)
}

// GetWebhookLog retrieves a webhook log by id.
func (s *Store) GetWebhookLog(ctx context.Context, id string) (*PaymentWebhookLog, error) {
	var w PaymentWebhookLog
	if err := s.getRecord(ctx, "webhook_logs", strKey("id", id), &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// MarkWebhookProcessed flips the processed flag on a webhook log.
func (s *Store) MarkWebhookProcessed(ctx context.Context, id string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.table("webhook_logs")),
		Key:                 strKey("id", id),
		UpdateExpression:    aws.String("SET #processed = :true, #updated_at = :now, #version = #version + :one"),
		ConditionExpression: aws.String("attribute_exists(id)"),
		ExpressionAttributeNames: map[string]string{
			"#processed":  "processed",
			"#updated_at": "updated_at",
			"#version":    "version",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true": &types.AttributeValueMemberBOOL{Value: true},
			":now":  strAttr(nowStamp()),
			":one":  &types.AttributeValueMemberN{Value: "1"},
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

// --- Inventory ---

// UpsertInventory creates or replaces the inventory row for a product,
// validating the product in the same transaction.
func (s *Store) UpsertInventory(ctx context.Context, productID string, quantity, lowStockThreshold int64) error {
	if quantity < 0 {
		return fmt.Errorf("%w: quantity cannot be negative", ErrValidation)
	}
	now := nowStamp()
	items := []types.TransactWriteItem{
		s.parentCheckItem(ConditionCheck{Table: "products", Key: strKey("id", productID)}, time.Now().Unix()),
		{
			Update: &types.Update{
				TableName: aws.String(s.table("inventory")),
				Key:       strKey("product_id", productID),
				UpdateExpression: aws.String(
					"SET quantity = :q, low_stock_threshold = :t, " +
						"created_at = if_not_exists(created_at, :now), updated_at = :now, " +
						"#version = if_not_exists(#version, :zero) + :one"),
				ExpressionAttributeNames: map[string]string{"#version": "version"},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":q":    &types.AttributeValueMemberN{Value: strconv.FormatInt(quantity, 10)},
					":t":    &types.AttributeValueMemberN{Value: strconv.FormatInt(lowStockThreshold, 10)},
					":now":  strAttr(now),
					":zero": &types.AttributeValueMemberN{Value: "0"},
					":one":  &types.AttributeValueMemberN{Value: "1"},
				},
			},
		},
	}
	return s.transactWrite(ctx, items, []error{ErrParentNotFound, nil})
}

// GetInventory retrieves the inventory row for a product.
func (s *Store) GetInventory(ctx context.Context, productID string) (*Inventory, error) {
	var inv Inventory
	if err := s.getRecord(ctx, "inventory", strKey("product_id", productID), &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// AdjustInventory applies an atomic read-modify-write delta to on-hand
// quantity. A decrement that would go below zero fails with
// ErrInsufficientInventory and writes nothing.
func (s *Store) AdjustInventory(ctx context.Context, productID string, delta int64) error {
	cond := "attribute_exists(product_id)"
	values := map[string]types.AttributeValue{
		":d":   &types.AttributeValueMemberN{Value: strconv.FormatInt(delta, 10)},
		":now": strAttr(nowStamp()),
		":one": &types.AttributeValueMemberN{Value: "1"},
	}
	if delta < 0 {
		cond += " AND quantity >= :need"
		values[":need"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(-delta, 10)}
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table("inventory")),
		Key:                       strKey("product_id", productID),
		UpdateExpression:          aws.String("SET quantity = quantity + :d, updated_at = :now, #version = #version + :one"),
		ConditionExpression:       aws.String(cond),
		ExpressionAttributeNames:  map[string]string{"#version": "version"},
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			if delta < 0 {
				return ErrInsufficientInventory
			}
			return ErrNotFound
		}
	}
	return err
}

// --- shared helpers ---

// stampNew fills id and managed fields for a fresh record.
func stampNew(id, createdAt, updatedAt *string, version *int64) {
	if *id == "" {
		*id = uuid.NewString()
	}
	now := nowStamp()
	*createdAt = now
	*updatedAt = now
	*version = 1
}

// refID strips the "type#" prefix from an entity ref.
func refID(ref string) string {
	for i := 0; i < len(ref); i++ {
		if ref[i] == '#' {
			return ref[i+1:]
		}
	}
	return ref
}

// stringAttrValue extracts a string attribute, empty if absent or non-string.
func stringAttrValue(item map[string]types.AttributeValue, key string) string {
	if v, ok := item[key].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

// queryAll pages through a key-condition query and unmarshals every row,
// filtering soft-deleted items server-side.
func queryAll[T any](ctx context.Context, s *Store, table, keyCond string, values PK) ([]*T, error) {
	exprValues := make(map[string]types.AttributeValue, len(values)+1)
	for k, v := range values {
		exprValues[k] = v
	}
	exprValues[":now"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(time.Now().Unix(), 10)}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(table),
		KeyConditionExpression:    aws.String(keyCond),
		FilterExpression:          aws.String(TTLFilterExpr()),
		ExpressionAttributeNames:  map[string]string{"#ttl": "ttl"},
		ExpressionAttributeValues: exprValues,
	}

	var out []*T
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Items {
			var rec T
			if err := attributevalue.UnmarshalMap(raw, &rec); err != nil {
				return nil, err
			}
			out = append(out, &rec)
		}
	}
	return out, nil
}

// joinStrings joins strings with a separator.
func joinStrings(strs []string, sep string) string {
	if len(strs) == 0 {
		return ""
	}
	result := strs[0]
	for _, str := range strs[1:] {
		result += sep + str
	}
	return result
}
