package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Address is a postal address stored as a JSONB document
type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zip_code,omitempty"`
	Country string `json:"country,omitempty"`
}

func (a Address) Value() (driver.Value, error) { return jsonValue(a, a == Address{}) }

func (a *Address) Scan(src interface{}) error { return jsonScan(src, a) }

// StoreInfo is the seller storefront profile
type StoreInfo struct {
	StoreName   string `json:"store_name,omitempty"`
	Description string `json:"description,omitempty"`
	Logo        string `json:"logo,omitempty"`
}

func (s StoreInfo) Value() (driver.Value, error) { return jsonValue(s, s == StoreInfo{}) }

func (s *StoreInfo) Scan(src interface{}) error { return jsonScan(src, s) }

// User represents a registered identity
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         Role      `db:"role" json:"role"`
	Address      Address   `db:"address" json:"address"`
	Phone        string    `db:"phone" json:"phone,omitempty"`
	StoreInfo    StoreInfo `db:"store_info" json:"store_info"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Review is a customer rating attached to a product
type Review struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ProductID uuid.UUID `db:"product_id" json:"-"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Name      string    `db:"name" json:"name"`
	Rating    int       `db:"rating" json:"rating"`
	Comment   string    `db:"comment" json:"comment"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Product represents a catalog entry owned by exactly one seller
type Product struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	Description   string          `db:"description" json:"description"`
	Price         decimal.Decimal `db:"price" json:"price"`
	DiscountPrice decimal.Decimal `db:"discount_price" json:"discount_price"`
	Quantity      int             `db:"quantity" json:"quantity"`
	Image         string          `db:"image" json:"image,omitempty"`
	Category      Category        `db:"category" json:"category"`
	Subcategory   string          `db:"subcategory" json:"subcategory,omitempty"`
	Rating        decimal.Decimal `db:"rating" json:"rating"`
	NumReviews    int             `db:"num_reviews" json:"num_reviews"`
	SellerID      uuid.UUID       `db:"seller_id" json:"seller_id"`
	Reviews       []Review        `db:"-" json:"reviews,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// EffectivePrice is the price a buyer pays right now
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.DiscountPrice.IsPositive() && p.DiscountPrice.LessThan(p.Price) {
		return p.DiscountPrice
	}
	return p.Price
}

// ShippingAddress is the delivery address captured on an order
type ShippingAddress struct {
	Street  string `json:"street" binding:"required"`
	City    string `json:"city" binding:"required"`
	State   string `json:"state" binding:"required"`
	ZipCode string `json:"zip_code" binding:"required"`
	Country string `json:"country" binding:"required"`
}

func (a ShippingAddress) Value() (driver.Value, error) { return jsonValue(a, false) }

func (a *ShippingAddress) Scan(src interface{}) error { return jsonScan(src, a) }

// PaymentResult holds the fields returned by the payment gateway
type PaymentResult struct {
	PaymentID      string `json:"payment_id,omitempty"`
	GatewayOrderID string `json:"gateway_order_id,omitempty"`
	Signature      string `json:"signature,omitempty"`
	Status         string `json:"status,omitempty"`
}

func (p PaymentResult) Value() (driver.Value, error) { return jsonValue(p, p == PaymentResult{}) }

func (p *PaymentResult) Scan(src interface{}) error { return jsonScan(src, p) }

// OrderItem is a line item; name, image and price are snapshots taken when
// the order was placed
type OrderItem struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	OrderID   uuid.UUID       `db:"order_id" json:"-"`
	ProductID uuid.UUID       `db:"product_id" json:"product_id"`
	Name      string          `db:"name" json:"name"`
	Image     string          `db:"image" json:"image,omitempty"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Quantity  int             `db:"quantity" json:"quantity"`
}

// Order represents a customer order
type Order struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	UserID          uuid.UUID       `db:"user_id" json:"user_id"`
	Items           []OrderItem     `db:"-" json:"order_items"`
	ShippingAddress ShippingAddress `db:"shipping_address" json:"shipping_address"`
	PaymentMethod   string          `db:"payment_method" json:"payment_method"`
	PaymentResult   PaymentResult   `db:"payment_result" json:"payment_result"`
	GatewayOrderID  string          `db:"gateway_order_id" json:"gateway_order_id,omitempty"`
	ItemsPrice      decimal.Decimal `db:"items_price" json:"items_price"`
	TaxPrice        decimal.Decimal `db:"tax_price" json:"tax_price"`
	ShippingPrice   decimal.Decimal `db:"shipping_price" json:"shipping_price"`
	TotalPrice      decimal.Decimal `db:"total_price" json:"total_price"`
	IsPaid          bool            `db:"is_paid" json:"is_paid"`
	PaidAt          *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	IsDelivered     bool            `db:"is_delivered" json:"is_delivered"`
	DeliveredAt     *time.Time      `db:"delivered_at" json:"delivered_at,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// Payment result statuses
const (
	PaymentStatusCompleted = "COMPLETED"
)

func jsonValue(v interface{}, empty bool) (driver.Value, error) {
	if empty {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func jsonScan(src interface{}, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("cannot scan %T into %T", src, dst)
	}
}
