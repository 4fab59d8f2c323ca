package store

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Order statuses, following the settlement flow: a paid order moves from
// PENDING to CONFIRMED when its payment completes.
const (
	OrderPending   = "PENDING"
	OrderConfirmed = "CONFIRMED"
	OrderInTransit = "IN_TRANSIT"
	OrderDelivered = "DELIVERED"
	OrderCancelled = "CANCELLED"
)

// Payment statuses.
const (
	PaymentPending   = "PENDING"
	PaymentCompleted = "COMPLETED"
	PaymentFailed    = "FAILED"
	PaymentRefunded  = "REFUNDED"
)

// Refund statuses.
const (
	RefundPending   = "PENDING"
	RefundCompleted = "COMPLETED"
)

// Address types.
const (
	AddressHome  = "HOME"
	AddressWork  = "WORK"
	AddressOther = "OTHER"
)

func strKey(attr, value string) PK {
	return PK{attr: &types.AttributeValueMemberS{Value: value}}
}

func strAttr(value string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: value}
}

// --- Entity Store records ---

// User is a customer or staff account.
type User struct {
	ID          string `dynamodbav:"id"`
	Username    string `dynamodbav:"username"`
	Email       string `dynamodbav:"email"`
	FirstName   string `dynamodbav:"first_name,omitempty"`
	LastName    string `dynamodbav:"last_name,omitempty"`
	PhoneNumber string `dynamodbav:"phone_number,omitempty"`
	IsStaff     bool   `dynamodbav:"is_staff"`
	IsActive    bool   `dynamodbav:"is_active"`
	CreatedAt   string `dynamodbav:"created_at"`
	UpdatedAt   string `dynamodbav:"updated_at"`
	Version     int64  `dynamodbav:"version"`
}

func (u User) TableName() string  { return "users" }
func (u User) EntityType() string { return "user" }
func (u User) EntityRef() string  { return "user#" + u.ID }
func (u User) GetKey() PK         { return strKey("id", u.ID) }

func (u User) UniqueFields() map[string]string {
	return map[string]string{"email": u.Email, "username": u.Username}
}

func (u User) SearchFields() map[string]string {
	return map[string]string{"email": u.Email, "username": u.Username}
}

// Category is a product grouping. ParentID forms a tree; parent updates are
// cycle-checked by the store.
type Category struct {
	ID          string `dynamodbav:"id"`
	Name        string `dynamodbav:"name"`
	Description string `dynamodbav:"description,omitempty"`
	ParentID    string `dynamodbav:"parent_id,omitempty"`
	CreatedAt   string `dynamodbav:"created_at"`
	UpdatedAt   string `dynamodbav:"updated_at"`
	Version     int64  `dynamodbav:"version"`
}

func (c Category) TableName() string  { return "categories" }
func (c Category) EntityType() string { return "category" }
func (c Category) EntityRef() string  { return "category#" + c.ID }
func (c Category) GetKey() PK         { return strKey("id", c.ID) }

func (c Category) UniqueFields() map[string]string {
	return map[string]string{"name": c.Name}
}

func (c Category) ParentChecks() []ConditionCheck {
	if c.ParentID == "" {
		return nil
	}
	return []ConditionCheck{{Table: "categories", Key: strKey("id", c.ParentID)}}
}

// Product is a sellable item. Its effective price is BasePrice plus the
// selected variant's PriceModifier.
type Product struct {
	ID          string `dynamodbav:"id"`
	Name        string `dynamodbav:"name"`
	Description string `dynamodbav:"description,omitempty"`
	BasePrice   Money  `dynamodbav:"base_price"`
	CategoryID  string `dynamodbav:"category_id"`
	IsActive    bool   `dynamodbav:"is_active"`
	ImageURL    string `dynamodbav:"image_url,omitempty"`
	CreatedAt   string `dynamodbav:"created_at"`
	UpdatedAt   string `dynamodbav:"updated_at"`
	Version     int64  `dynamodbav:"version"`
}

func (p Product) TableName() string  { return "products" }
func (p Product) EntityType() string { return "product" }
func (p Product) EntityRef() string  { return "product#" + p.ID }
func (p Product) GetKey() PK         { return strKey("id", p.ID) }

func (p Product) ParentChecks() []ConditionCheck {
	return []ConditionCheck{{Table: "categories", Key: strKey("id", p.CategoryID)}}
}

func (p Product) SearchFields() map[string]string {
	return map[string]string{"name": p.Name}
}

// ProductVariant is a purchasable variation of a product. PriceModifier may
// be negative.
type ProductVariant struct {
	ID            string `dynamodbav:"id"`
	ProductID     string `dynamodbav:"product_id"`
	Name          string `dynamodbav:"name"`
	PriceModifier Money  `dynamodbav:"price_modifier"`
	SKU           string `dynamodbav:"sku"`
	CreatedAt     string `dynamodbav:"created_at"`
	UpdatedAt     string `dynamodbav:"updated_at"`
	Version       int64  `dynamodbav:"version"`
}

func (v ProductVariant) TableName() string  { return "variants" }
func (v ProductVariant) EntityType() string { return "variant" }
func (v ProductVariant) EntityRef() string  { return "variant#" + v.ID }
func (v ProductVariant) GetKey() PK         { return strKey("id", v.ID) }

func (v ProductVariant) UniqueFields() map[string]string {
	return map[string]string{"sku": v.SKU}
}

func (v ProductVariant) ParentChecks() []ConditionCheck {
	return []ConditionCheck{{Table: "products", Key: strKey("id", v.ProductID)}}
}

// Inventory tracks on-hand quantity, one row per product by construction.
type Inventory struct {
	ProductID         string `dynamodbav:"product_id"`
	Quantity          int64  `dynamodbav:"quantity"`
	LowStockThreshold int64  `dynamodbav:"low_stock_threshold"`
	CreatedAt         string `dynamodbav:"created_at"`
	UpdatedAt         string `dynamodbav:"updated_at"`
	Version           int64  `dynamodbav:"version"`
}

func (i Inventory) TableName() string  { return "inventory" }
func (i Inventory) EntityType() string { return "inventory" }
func (i Inventory) EntityRef() string  { return "inventory#" + i.ProductID }
func (i Inventory) GetKey() PK         { return strKey("product_id", i.ProductID) }

func (i Inventory) ParentChecks() []ConditionCheck {
	return []ConditionCheck{{Table: "products", Key: strKey("id", i.ProductID)}}
}

// Address is a user delivery address. IsDefault uniqueness is app-level.
type Address struct {
	ID            string `dynamodbav:"id"`
	UserID        string `dynamodbav:"user_id"`
	AddressType   string `dynamodbav:"address_type"`
	RecipientName string `dynamodbav:"recipient_name,omitempty"`
	Street1       string `dynamodbav:"street_address1"`
	Street2       string `dynamodbav:"street_address2,omitempty"`
	City          string `dynamodbav:"city,omitempty"`
	State         string `dynamodbav:"state,omitempty"`
	PostalCode    string `dynamodbav:"postal_code,omitempty"`
	Country       string `dynamodbav:"country,omitempty"`
	IsDefault     bool   `dynamodbav:"is_default"`
	CreatedAt     string `dynamodbav:"created_at"`
	UpdatedAt     string `dynamodbav:"updated_at"`
	Version       int64  `dynamodbav:"version"`
}

func (a Address) TableName() string  { return "addresses" }
func (a Address) EntityType() string { return "address" }
func (a Address) EntityRef() string  { return "address#" + a.ID }
func (a Address) GetKey() PK         { return strKey("id", a.ID) }

func (a Address) ParentChecks() []ConditionCheck {
	return []ConditionCheck{{Table: "users", Key: strKey("id", a.UserID)}}
}

// Cart holds a user's pending selections. The user_id unique constraint
// enforces one cart per user.
type Cart struct {
	ID        string `dynamodbav:"id"`
	UserID    string `dynamodbav:"user_id"`
	CreatedAt string `dynamodbav:"created_at"`
	UpdatedAt string `dynamodbav:"updated_at"`
	Version   int64  `dynamodbav:"version"`
}

func (c Cart) TableName() string  { return "carts" }
func (c Cart) EntityType() string { return "cart" }
func (c Cart) EntityRef() string  { return "cart#" + c.ID }
func (c Cart) GetKey() PK         { return strKey("id", c.ID) }

func (c Cart) UniqueFields() map[string]string {
	return map[string]string{"user_id": c.UserID}
}

func (c Cart) ParentChecks() []ConditionCheck {
	return []ConditionCheck{{Table: "users", Key: strKey("id", c.UserID)}}
}

// CartItem is one selection in a cart.
type CartItem struct {
	CartID    string `dynamodbav:"cart_id"`
	ID        string `dynamodbav:"id"`
	ProductID string `dynamodbav:"product_id"`
	VariantID string `dynamodbav:"variant_id,omitempty"`
	Quantity  int64  `dynamodbav:"quantity"`
	CreatedAt string `dynamodbav:"created_at"`
	UpdatedAt string `dynamodbav:"updated_at"`
	Version   int64  `dynamodbav:"version"`
}

func (ci CartItem) TableName() string  { return "cart_items" }
func (ci CartItem) EntityType() string { return "cart_item" }
func (ci CartItem) EntityRef() string  { return "cart_item#" + ci.ID }
func (ci CartItem) GetKey() PK {
	return PK{
		"cart_id": strAttr(ci.CartID),
		"id":      strAttr(ci.ID),
	}
}

func (ci CartItem) ParentChecks() []ConditionCheck {
	checks := []ConditionCheck{
		{Table: "carts", Key: strKey("id", ci.CartID)},
		{Table: "products", Key: strKey("id", ci.ProductID)},
	}
	if ci.VariantID != "" {
		checks = append(checks, ConditionCheck{Table: "variants", Key: strKey("id", ci.VariantID)})
	}
	return checks
}

// PaymentGateway is a configured payment provider.
type PaymentGateway struct {
	ID        string `dynamodbav:"id"`
	Name      string `dynamodbav:"name"`
	Active    bool   `dynamodbav:"active"`
	Config    string `dynamodbav:"config,omitempty"`
	CreatedAt string `dynamodbav:"created_at"`
	UpdatedAt string `dynamodbav:"updated_at"`
	Version   int64  `dynamodbav:"version"`
}

func (g PaymentGateway) TableName() string  { return "gateways" }
func (g PaymentGateway) EntityType() string { return "gateway" }
func (g PaymentGateway) EntityRef() string  { return "gateway#" + g.ID }
func (g PaymentGateway) GetKey() PK         { return strKey("id", g.ID) }

func (g PaymentGateway) UniqueFields() map[string]string {
	return map[string]string{"name": g.Name}
}

// PaymentWebhookLog is a raw gateway callback awaiting settlement.
type PaymentWebhookLog struct {
	ID        string `dynamodbav:"id"`
	GatewayID string `dynamodbav:"gateway_id"`
	Payload   string `dynamodbav:"payload"`
	Signature string `dynamodbav:"signature,omitempty"`
	Processed bool   `dynamodbav:"processed"`
	CreatedAt string `dynamodbav:"created_at"`
	UpdatedAt string `dynamodbav:"updated_at"`
	Version   int64  `dynamodbav:"version"`
}

func (w PaymentWebhookLog) TableName() string  { return "webhook_logs" }
func (w PaymentWebhookLog) EntityType() string { return "webhook_log" }
func (w PaymentWebhookLog) EntityRef() string  { return "webhook_log#" + w.ID }
func (w PaymentWebhookLog) GetKey() PK         { return strKey("id", w.ID) }

func (w PaymentWebhookLog) ParentChecks() []ConditionCheck {
	return []ConditionCheck{{Table: "gateways", Key: strKey("id", w.GatewayID)}}
}

// Refund references a payment through its full composite key. Rows are
// immutable after creation except for status transitions.
type Refund struct {
	ID               string `dynamodbav:"id"`
	PaymentID        string `dynamodbav:"payment_id"`
	PaymentCreatedAt string `dynamodbav:"payment_created_at"`
	Amount           Money  `dynamodbav:"amount"`
	Reason           string `dynamodbav:"reason,omitempty"`
	Status           string `dynamodbav:"status"`
	CreatedAt        string `dynamodbav:"created_at"`
	UpdatedAt        string `dynamodbav:"updated_at"`
	Version          int64  `dynamodbav:"version"`
}

func (r Refund) TableName() string  { return "refunds" }
func (r Refund) EntityType() string { return "refund" }
func (r Refund) EntityRef() string  { return "refund#" + r.ID }
func (r Refund) GetKey() PK         { return strKey("id", r.ID) }

// --- Ledger Store records ---
//
// Partitioned rows don't implement Record: their physical table is a
// function of the partition key and is resolved through the partition
// scheme on every operation.

// Order is range-partitioned by CreatedAt. Its primary key is the composite
// (id, created_at); children must reference both columns.
type Order struct {
	ID                string `dynamodbav:"id"`
	CreatedAt         string `dynamodbav:"created_at"`
	UserID            string `dynamodbav:"user_id"`
	DeliveryAddressID string `dynamodbav:"delivery_address_id"`
	TotalAmount       Money  `dynamodbav:"total_amount"`
	Status            string `dynamodbav:"status"`
	UpdatedAt         string `dynamodbav:"updated_at"`
	Version           int64  `dynamodbav:"version"`
}

func (o Order) GetKey() PK {
	return PK{
		"id":         strAttr(o.ID),
		"created_at": strAttr(o.CreatedAt),
	}
}

// Payment is range-partitioned by CreatedAt. OrderCreatedAt is denormalized
// from the parent order by the write path and is never caller-settable.
type Payment struct {
	ID              string `dynamodbav:"id"`
	CreatedAt       string `dynamodbav:"created_at"`
	OrderID         string `dynamodbav:"order_id"`
	OrderCreatedAt  string `dynamodbav:"order_created_at"`
	Amount          Money  `dynamodbav:"amount"`
	Method          string `dynamodbav:"method"`
	Status          string `dynamodbav:"status"`
	TransactionID   string `dynamodbav:"transaction_id,omitempty"`
	GatewayResponse string `dynamodbav:"gateway_response,omitempty"`
	UpdatedAt       string `dynamodbav:"updated_at"`
	Version         int64  `dynamodbav:"version"`
}

func (p Payment) GetKey() PK {
	return PK{
		"id":         strAttr(p.ID),
		"created_at": strAttr(p.CreatedAt),
	}
}

// OrderItem is hash-partitioned by OrderID. ProductName and UnitPrice are
// snapshots taken at order time so later catalog edits don't rewrite history.
type OrderItem struct {
	OrderID        string `dynamodbav:"order_id"`
	ID             string `dynamodbav:"id"`
	OrderCreatedAt string `dynamodbav:"order_created_at"`
	ProductID      string `dynamodbav:"product_id"`
	VariantID      string `dynamodbav:"variant_id,omitempty"`
	ProductName    string `dynamodbav:"product_name"`
	UnitPrice      Money  `dynamodbav:"unit_price"`
	Quantity       int64  `dynamodbav:"quantity"`
}

func (oi OrderItem) GetKey() PK {
	return PK{
		"order_id": strAttr(oi.OrderID),
		"id":       strAttr(oi.ID),
	}
}

// Review is hash-partitioned by ProductID.
type Review struct {
	ProductID string `dynamodbav:"product_id"`
	ID        string `dynamodbav:"id"`
	UserID    string `dynamodbav:"user_id,omitempty"`
	Rating    int    `dynamodbav:"rating"`
	Comment   string `dynamodbav:"comment,omitempty"`
	CreatedAt string `dynamodbav:"created_at"`
}

func (r Review) GetKey() PK {
	return PK{
		"product_id": strAttr(r.ProductID),
		"id":         strAttr(r.ID),
	}
}

// Notification is hash-partitioned by UserID.
type Notification struct {
	UserID      string `dynamodbav:"user_id"`
	ID          string `dynamodbav:"id"`
	Message     string `dynamodbav:"message"`
	Type        string `dynamodbav:"type,omitempty"`
	ReferenceID string `dynamodbav:"reference_id,omitempty"`
	Read        bool   `dynamodbav:"read"`
	CreatedAt   string `dynamodbav:"created_at"`
}

func (n Notification) GetKey() PK {
	return PK{
		"user_id": strAttr(n.UserID),
		"id":      strAttr(n.ID),
	}
}
