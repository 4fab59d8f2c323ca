//go:build e2e

// Package e2e contains end-to-end integration tests using real DynamoDB tables.
// Run with: go test -tags=e2e -v ./e2e/...
package e2e

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jacentio/ledger/internal/partition"
	"github.com/jacentio/ledger/store"
)

// Test configuration
const awsProfile = "jacent-alpha-cp"

var (
	testPrefix string
	testConfig store.Config

	ddbClient *dynamodb.Client
	testStore *store.Store
)

// --- Test Setup & Teardown ---

func TestMain(m *testing.M) {
	// Unique prefix per run to avoid table-name conflicts
	testID := uuid.New().String()[:8]
	testPrefix = "ledger_e2e_" + testID

	// A narrow window and tiny bucket counts keep the table fan-out small.
	windowStart := time.Date(time.Now().UTC().Year(), time.Now().UTC().Month(), 1, 0, 0, 0, 0, time.UTC)
	testConfig = store.Config{
		TablePrefix:         testPrefix,
		UniqueTable:         testPrefix + "_unique",
		SearchTable:         testPrefix + "_search",
		RangeStart:          windowStart,
		RangeEnd:            windowStart.AddDate(0, 2, 0),
		OrderItemBuckets:    2,
		ReviewBuckets:       2,
		NotificationBuckets: 2,
	}

	fmt.Printf("Test prefix: %s\n", testPrefix)

	ctx := context.Background()
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithSharedConfigProfile(awsProfile),
	)
	if err != nil {
		fmt.Printf("Failed to load AWS config: %v\n", err)
		os.Exit(1)
	}

	ddbClient = dynamodb.NewFromConfig(cfg)

	if err := createTables(ctx); err != nil {
		fmt.Printf("Failed to create tables: %v\n", err)
		os.Exit(1)
	}

	testStore = store.New(ddbClient, testConfig)

	code := m.Run()

	if err := deleteTables(ctx); err != nil {
		fmt.Printf("Failed to delete tables: %v\n", err)
	}

	os.Exit(code)
}

// allTables enumerates every physical table the test config maps to.
func allTables() map[string][]string {
	scheme := partition.NewScheme(testPrefix, testConfig.RangeStart, testConfig.RangeEnd, map[string]int{
		partition.KindOrderItems:    testConfig.OrderItemBuckets,
		partition.KindReviews:       testConfig.ReviewBuckets,
		partition.KindNotifications: testConfig.NotificationBuckets,
	})

	tables := map[string][]string{}

	// Entity tables keyed on id alone.
	for _, name := range []string{"users", "categories", "products", "variants", "addresses", "carts", "gateways", "webhook_logs", "refunds"} {
		tables["id"] = append(tables["id"], testPrefix+"_"+name)
	}
	tables["product_id"] = []string{testPrefix + "_inventory"}
	tables["cart_id,id"] = []string{testPrefix + "_cart_items"}

	// Range partitions keyed on (id, created_at).
	tables["id,created_at"] = append(
		scheme.RangeTables(partition.KindOrders),
		scheme.RangeTables(partition.KindPayments)...,
	)

	// Hash buckets keyed on (parent, id).
	tables["order_id,id"] = scheme.BucketTables(partition.KindOrderItems)
	tables["product_id,id"] = scheme.BucketTables(partition.KindReviews)
	tables["user_id,id"] = scheme.BucketTables(partition.KindNotifications)

	// Constraint and search tables keyed on (pk, sk).
	tables["pk,sk"] = []string{testConfig.UniqueTable, testConfig.SearchTable}

	return tables
}

func createTables(ctx context.Context) error {
	fmt.Println("Creating test tables...")

	var created []string
	for keySpec, names := range allTables() {
		schema, defs := keySchemaFor(keySpec)
		for _, name := range names {
			_, err := ddbClient.CreateTable(ctx, &dynamodb.CreateTableInput{
				TableName:            aws.String(name),
				KeySchema:            schema,
				AttributeDefinitions: defs,
				BillingMode:          types.BillingModePayPerRequest,
			})
			if err != nil {
				return fmt.Errorf("create table %s: %w", name, err)
			}
			created = append(created, name)
		}
	}

	for _, name := range created {
		waiter := dynamodb.NewTableExistsWaiter(ddbClient)
		if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{
			TableName: aws.String(name),
		}, 2*time.Minute); err != nil {
			return fmt.Errorf("wait for table %s: %w", name, err)
		}
	}

	fmt.Printf("All %d tables created and active\n", len(created))
	return nil
}

func keySchemaFor(keySpec string) ([]types.KeySchemaElement, []types.AttributeDefinition) {
	var hash, rangeKey string
	for i := 0; i < len(keySpec); i++ {
		if keySpec[i] == ',' {
			hash, rangeKey = keySpec[:i], keySpec[i+1:]
			break
		}
	}
	if hash == "" {
		hash = keySpec
	}

	schema := []types.KeySchemaElement{
		{AttributeName: aws.String(hash), KeyType: types.KeyTypeHash},
	}
	defs := []types.AttributeDefinition{
		{AttributeName: aws.String(hash), AttributeType: types.ScalarAttributeTypeS},
	}
	if rangeKey != "" {
		schema = append(schema, types.KeySchemaElement{AttributeName: aws.String(rangeKey), KeyType: types.KeyTypeRange})
		defs = append(defs, types.AttributeDefinition{AttributeName: aws.String(rangeKey), AttributeType: types.ScalarAttributeTypeS})
	}
	return schema, defs
}

func deleteTables(ctx context.Context) error {
	fmt.Println("Deleting test tables...")

	for _, names := range allTables() {
		for _, name := range names {
			_, err := ddbClient.DeleteTable(ctx, &dynamodb.DeleteTableInput{
				TableName: aws.String(name),
			})
			if err != nil {
				fmt.Printf("Warning: failed to delete table %s: %v\n", name, err)
			}
		}
	}

	fmt.Println("Tables deleted")
	return nil
}

// --- Fixtures ---

func mustMoney(t *testing.T, s string) store.Money {
	t.Helper()
	m, err := store.NewMoney(s)
	if err != nil {
		t.Fatalf("NewMoney(%q): %v", s, err)
	}
	return m
}

func createUser(t *testing.T, ctx context.Context) *store.User {
	t.Helper()
	suffix := uuid.New().String()[:8]
	u := &store.User{
		Username: "user-" + suffix,
		Email:    "user-" + suffix + "@example.com",
		IsActive: true,
	}
	if err := testStore.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return u
}

func createCatalog(t *testing.T, ctx context.Context, price string, stock int64) *store.Product {
	t.Helper()
	suffix := uuid.New().String()[:8]

	cat := &store.Category{Name: "Category " + suffix}
	if err := testStore.CreateCategory(ctx, cat); err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}

	p := &store.Product{
		Name:       "Product " + suffix,
		BasePrice:  mustMoney(t, price),
		CategoryID: cat.ID,
		IsActive:   true,
	}
	if err := testStore.CreateProduct(ctx, p); err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	if err := testStore.UpsertInventory(ctx, p.ID, stock, 2); err != nil {
		t.Fatalf("UpsertInventory failed: %v", err)
	}
	return p
}

func createAddress(t *testing.T, ctx context.Context, userID string) *store.Address {
	t.Helper()
	a := &store.Address{
		UserID:  userID,
		Street1: "1 Test Street",
		City:    "Lagos",
		Country: "NG",
	}
	if err := testStore.CreateAddress(ctx, a); err != nil {
		t.Fatalf("CreateAddress failed: %v", err)
	}
	return a
}

// --- Checkout Lifecycle ---

func TestCheckout_FullLifecycle(t *testing.T) {
	ctx := context.Background()

	user := createUser(t, ctx)
	product := createCatalog(t, ctx, "25.00", 10)
	address := createAddress(t, ctx, user.ID)

	order, err := testStore.PlaceOrder(ctx, user.ID, address.ID, []store.OrderLine{
		{ProductID: product.ID, Quantity: 2},
	})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}

	if order.Status != store.OrderPending {
		t.Errorf("expected status %q, got %q", store.OrderPending, order.Status)
	}
	if order.TotalAmount.String() != "50" {
		t.Errorf("expected total 50, got %s", order.TotalAmount)
	}

	// Inventory decremented atomically with the order.
	inv, err := testStore.GetInventory(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetInventory failed: %v", err)
	}
	if inv.Quantity != 8 {
		t.Errorf("expected inventory 8, got %d", inv.Quantity)
	}

	// Order items carry catalog snapshots.
	items, err := testStore.ListOrderItems(ctx, order.ID)
	if err != nil {
		t.Fatalf("ListOrderItems failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 order item, got %d", len(items))
	}
	if items[0].ProductName != product.Name {
		t.Errorf("expected product name snapshot %q, got %q", product.Name, items[0].ProductName)
	}
	if items[0].OrderCreatedAt != order.CreatedAt {
		t.Error("expected item to carry the order's composite timestamp")
	}

	// Payment against the composite key.
	payment, err := testStore.RecordPayment(ctx, order.ID, order.CreatedAt, order.TotalAmount, "card")
	if err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}
	if payment.Status != store.PaymentPending {
		t.Errorf("expected status %q, got %q", store.PaymentPending, payment.Status)
	}

	if err := testStore.SettlePayment(ctx, payment.ID, payment.CreatedAt, `{"status":"success"}`); err != nil {
		t.Fatalf("SettlePayment failed: %v", err)
	}
	settled, err := testStore.GetPayment(ctx, payment.ID, payment.CreatedAt)
	if err != nil {
		t.Fatalf("GetPayment failed: %v", err)
	}
	if settled.Status != store.PaymentCompleted {
		t.Errorf("expected status %q, got %q", store.PaymentCompleted, settled.Status)
	}
	if settled.GatewayResponse == "" {
		t.Error("expected gateway response to be stored for audit")
	}

	// Refund flips the payment and records the refund atomically.
	refund, err := testStore.IssueRefund(ctx, payment.ID, payment.CreatedAt, payment.Amount, "customer request")
	if err != nil {
		t.Fatalf("IssueRefund failed: %v", err)
	}
	got, err := testStore.GetRefund(ctx, refund.ID)
	if err != nil {
		t.Fatalf("GetRefund failed: %v", err)
	}
	if got.PaymentID != payment.ID {
		t.Errorf("expected refund against payment %s, got %s", payment.ID, got.PaymentID)
	}

	refunded, err := testStore.GetPayment(ctx, payment.ID, payment.CreatedAt)
	if err != nil {
		t.Fatalf("GetPayment after refund failed: %v", err)
	}
	if refunded.Status != store.PaymentRefunded {
		t.Errorf("expected status %q, got %q", store.PaymentRefunded, refunded.Status)
	}

	// A second refund must fail: the payment is no longer COMPLETED.
	if _, err := testStore.IssueRefund(ctx, payment.ID, payment.CreatedAt, payment.Amount, "again"); !errors.Is(err, store.ErrValidation) {
		t.Errorf("expected ErrValidation for double refund, got %v", err)
	}
}

func TestPlaceOrder_TwoVariantsOfOneProduct(t *testing.T) {
	ctx := context.Background()

	user := createUser(t, ctx)
	product := createCatalog(t, ctx, "10.00", 5)
	address := createAddress(t, ctx, user.ID)

	suffix := uuid.New().String()[:8]
	small := &store.ProductVariant{ProductID: product.ID, Name: "Small", SKU: "sku-s-" + suffix, PriceModifier: mustMoney(t, "0")}
	large := &store.ProductVariant{ProductID: product.ID, Name: "Large", SKU: "sku-l-" + suffix, PriceModifier: mustMoney(t, "2.50")}
	for _, v := range []*store.ProductVariant{small, large} {
		if err := testStore.CreateVariant(ctx, v); err != nil {
			t.Fatalf("CreateVariant failed: %v", err)
		}
	}

	order, err := testStore.PlaceOrder(ctx, user.ID, address.ID, []store.OrderLine{
		{ProductID: product.ID, VariantID: small.ID, Quantity: 1},
		{ProductID: product.ID, VariantID: large.ID, Quantity: 2},
	})
	if err != nil {
		t.Fatalf("PlaceOrder with two variants of one product failed: %v", err)
	}

	// 1x10.00 + 2x12.50
	if order.TotalAmount.String() != "35" {
		t.Errorf("expected total 35, got %s", order.TotalAmount)
	}

	inv, err := testStore.GetInventory(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetInventory failed: %v", err)
	}
	if inv.Quantity != 2 {
		t.Errorf("expected single decrement of summed quantity (5-3=2), got %d", inv.Quantity)
	}

	items, err := testStore.ListOrderItems(ctx, order.ID)
	if err != nil {
		t.Fatalf("ListOrderItems failed: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("expected 2 order items, got %d", len(items))
	}
}

func TestPlaceOrder_InsufficientInventory(t *testing.T) {
	ctx := context.Background()

	user := createUser(t, ctx)
	product := createCatalog(t, ctx, "10.00", 1)
	address := createAddress(t, ctx, user.ID)

	_, err := testStore.PlaceOrder(ctx, user.ID, address.ID, []store.OrderLine{
		{ProductID: product.ID, Quantity: 5},
	})
	if !errors.Is(err, store.ErrInsufficientInventory) {
		t.Fatalf("expected ErrInsufficientInventory, got %v", err)
	}

	// Nothing committed: stock untouched.
	inv, err := testStore.GetInventory(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetInventory failed: %v", err)
	}
	if inv.Quantity != 1 {
		t.Errorf("expected inventory 1 after failed order, got %d", inv.Quantity)
	}
}

func TestPlaceOrder_AddressOwnership(t *testing.T) {
	ctx := context.Background()

	owner := createUser(t, ctx)
	other := createUser(t, ctx)
	product := createCatalog(t, ctx, "10.00", 5)
	address := createAddress(t, ctx, owner.ID)

	_, err := testStore.PlaceOrder(ctx, other.ID, address.ID, []store.OrderLine{
		{ProductID: product.ID, Quantity: 1},
	})
	if !errors.Is(err, store.ErrParentNotFound) {
		t.Errorf("expected ErrParentNotFound for someone else's address, got %v", err)
	}
}

// --- Concurrent checkout ---

func TestConcurrentCheckout_NeverOversells(t *testing.T) {
	ctx := context.Background()

	user := createUser(t, ctx)
	product := createCatalog(t, ctx, "10.00", 5)
	address := createAddress(t, ctx, user.ID)

	const workers = 4
	results := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = testStore.PlaceOrder(ctx, user.ID, address.ID, []store.OrderLine{
				{ProductID: product.ID, Quantity: 3},
			})
		}(i)
	}
	wg.Wait()

	successes := 0
	for i, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, store.ErrInsufficientInventory):
			// expected for the losers
		default:
			t.Errorf("worker %d: unexpected error %v", i, err)
		}
	}
	if successes != 1 {
		t.Errorf("expected exactly 1 of %d concurrent orders to win, got %d", workers, successes)
	}

	inv, err := testStore.GetInventory(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetInventory failed: %v", err)
	}
	if inv.Quantity != 2 {
		t.Errorf("expected inventory 2 after one 3-unit order, got %d", inv.Quantity)
	}
	if inv.Quantity < 0 {
		t.Errorf("inventory went negative: %d", inv.Quantity)
	}
}

// --- Composite-key integrity ---

func TestRecordPayment_ParentClassification(t *testing.T) {
	ctx := context.Background()

	user := createUser(t, ctx)
	product := createCatalog(t, ctx, "10.00", 5)
	address := createAddress(t, ctx, user.ID)

	order, err := testStore.PlaceOrder(ctx, user.ID, address.ID, []store.OrderLine{
		{ProductID: product.ID, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}

	// Wrong created_at for a real order: stale reference, not absence.
	wrongStamp := testConfig.RangeStart.Add(time.Hour).Format(time.RFC3339Nano)
	_, err = testStore.RecordPayment(ctx, order.ID, wrongStamp, mustMoney(t, "10.00"), "card")
	if !errors.Is(err, store.ErrStaleParentReference) {
		t.Errorf("expected ErrStaleParentReference, got %v", err)
	}

	// Unknown order id: absent in every partition.
	_, err = testStore.RecordPayment(ctx, uuid.New().String(), order.CreatedAt, mustMoney(t, "10.00"), "card")
	if !errors.Is(err, store.ErrParentNotFound) {
		t.Errorf("expected ErrParentNotFound, got %v", err)
	}
}

func TestRecordPayment_CancelledOrderRejected(t *testing.T) {
	ctx := context.Background()

	user := createUser(t, ctx)
	product := createCatalog(t, ctx, "10.00", 5)
	address := createAddress(t, ctx, user.ID)

	order, err := testStore.PlaceOrder(ctx, user.ID, address.ID, []store.OrderLine{
		{ProductID: product.ID, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	if err := testStore.UpdateOrderStatus(ctx, order.ID, order.CreatedAt, store.OrderCancelled); err != nil {
		t.Fatalf("UpdateOrderStatus failed: %v", err)
	}

	_, err = testStore.RecordPayment(ctx, order.ID, order.CreatedAt, mustMoney(t, "10.00"), "card")
	if !errors.Is(err, store.ErrValidation) {
		t.Errorf("expected ErrValidation for payment against cancelled order, got %v", err)
	}
}

func TestUpdateOrderStatus_OutOfRangePartition(t *testing.T) {
	ctx := context.Background()

	stale := testConfig.RangeStart.AddDate(0, -1, 0).Format(time.RFC3339Nano)
	err := testStore.UpdateOrderStatus(ctx, uuid.New().String(), stale, store.OrderConfirmed)
	if !errors.Is(err, store.ErrPartitionOutOfRange) {
		t.Errorf("expected ErrPartitionOutOfRange, got %v", err)
	}
}

// --- Lookup paths ---

func TestSlowPathLookup_MatchesFastPath(t *testing.T) {
	ctx := context.Background()

	user := createUser(t, ctx)
	product := createCatalog(t, ctx, "10.00", 5)
	address := createAddress(t, ctx, user.ID)

	order, err := testStore.PlaceOrder(ctx, user.ID, address.ID, []store.OrderLine{
		{ProductID: product.ID, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}

	fast, err := testStore.GetOrder(ctx, order.ID, order.CreatedAt)
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	slow, err := testStore.FindOrderByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("FindOrderByID failed: %v", err)
	}
	if fast.ID != slow.ID || fast.CreatedAt != slow.CreatedAt {
		t.Errorf("slow path returned a different row: %+v vs %+v", fast, slow)
	}

	if _, err := testStore.FindOrderByID(ctx, uuid.New().String()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown id, got %v", err)
	}
}

// --- Uniqueness and lookup tables ---

func TestUniqueEmail_EnforcedAndIndexed(t *testing.T) {
	ctx := context.Background()

	user := createUser(t, ctx)

	dup := &store.User{Username: "other-" + uuid.New().String()[:8], Email: user.Email}
	if err := testStore.CreateUser(ctx, dup); !errors.Is(err, store.ErrDuplicateValue) {
		t.Errorf("expected ErrDuplicateValue for duplicate email, got %v", err)
	}

	found, err := testStore.GetUserByEmail(ctx, user.Email)
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if found.ID != user.ID {
		t.Errorf("expected user %s, got %s", user.ID, found.ID)
	}
}

func TestEnsureCart_OnePerUser(t *testing.T) {
	ctx := context.Background()

	user := createUser(t, ctx)

	first, err := testStore.EnsureCart(ctx, user.ID)
	if err != nil {
		t.Fatalf("EnsureCart failed: %v", err)
	}
	second, err := testStore.EnsureCart(ctx, user.ID)
	if err != nil {
		t.Fatalf("second EnsureCart failed: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("expected one cart per user, got %s and %s", first.ID, second.ID)
	}
}

func TestSearchProducts_FuzzyMatch(t *testing.T) {
	ctx := context.Background()

	product := createCatalog(t, ctx, "15.00", 3)

	// Query on an inner substring of the generated name.
	results, err := testStore.SearchProducts(ctx, product.Name[3:10], 10)
	if err != nil {
		t.Fatalf("SearchProducts failed: %v", err)
	}

	found := false
	for _, p := range results {
		if p.ID == product.ID {
			found = true
		}
	}
	if !found {
		t.Errorf("expected product %s in search results", product.ID)
	}
}

// --- Maintenance ---

func TestUpdate_TouchesFreshness(t *testing.T) {
	ctx := context.Background()

	product := createCatalog(t, ctx, "10.00", 1)

	product.Description = "updated"
	if err := testStore.Update(ctx, *product, 1); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := testStore.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if got.Version != 2 {
		t.Errorf("expected version 2, got %d", got.Version)
	}
	created, err := time.Parse(time.RFC3339Nano, got.CreatedAt)
	if err != nil {
		t.Fatalf("bad created_at %q: %v", got.CreatedAt, err)
	}
	updated, err := time.Parse(time.RFC3339Nano, got.UpdatedAt)
	if err != nil {
		t.Fatalf("bad updated_at %q: %v", got.UpdatedAt, err)
	}
	if updated.Before(created) {
		t.Errorf("expected updated_at to advance past created_at, got %s < %s", got.UpdatedAt, got.CreatedAt)
	}

	// Stale version loses.
	if err := testStore.Update(ctx, *product, 1); !errors.Is(err, store.ErrConcurrentModification) {
		t.Errorf("expected ErrConcurrentModification for stale version, got %v", err)
	}
}

func TestDelete_SoftAndIdempotent(t *testing.T) {
	ctx := context.Background()

	user := createUser(t, ctx)

	if err := testStore.Delete(ctx, *user); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := testStore.GetUser(ctx, user.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := testStore.Delete(ctx, *user); err != nil {
		t.Errorf("second delete should be idempotent, got %v", err)
	}

	// Deleting a record that never existed is the same no-op.
	ghost := store.User{ID: uuid.New().String(), Username: "ghost", Email: "ghost@example.com"}
	if err := testStore.Delete(ctx, ghost); err != nil {
		t.Errorf("delete of a nonexistent record should be a no-op, got %v", err)
	}

	// The email is released for reuse.
	reuse := &store.User{Username: "reuse-" + uuid.New().String()[:8], Email: user.Email}
	if err := testStore.CreateUser(ctx, reuse); err != nil {
		t.Errorf("expected released email to be reusable, got %v", err)
	}
}

// --- Engagement ---

func TestReviewsAndNotifications(t *testing.T) {
	ctx := context.Background()

	user := createUser(t, ctx)
	product := createCatalog(t, ctx, "10.00", 1)

	review, err := testStore.AddReview(ctx, product.ID, user.ID, 5, "great")
	if err != nil {
		t.Fatalf("AddReview failed: %v", err)
	}
	reviews, err := testStore.ListReviewsForProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("ListReviewsForProduct failed: %v", err)
	}
	if len(reviews) != 1 || reviews[0].ID != review.ID {
		t.Errorf("expected review %s in listing, got %v", review.ID, reviews)
	}

	if _, err := testStore.AddReview(ctx, uuid.New().String(), user.ID, 4, "x"); !errors.Is(err, store.ErrParentNotFound) {
		t.Errorf("expected ErrParentNotFound for unknown product, got %v", err)
	}

	n, err := testStore.Notify(ctx, user.ID, "order shipped", "order", uuid.New().String())
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if err := testStore.MarkNotificationRead(ctx, n.ID, user.ID); err != nil {
		t.Fatalf("MarkNotificationRead failed: %v", err)
	}
	notifications, err := testStore.ListNotificationsForUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListNotificationsForUser failed: %v", err)
	}
	if len(notifications) != 1 || !notifications[0].Read {
		t.Errorf("expected one read notification, got %v", notifications)
	}
}
