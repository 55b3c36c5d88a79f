package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus constants
const (
	OrderStatusCompleted = "completed"
)

// PaymentStatus constants, always derived from paid vs total
const (
	PaymentStatusUnpaid  = "unpaid"
	PaymentStatusPartial = "partial"
	PaymentStatusPaid    = "paid"
)

// SalesOrder is the header of a point-of-sale order. It is written once, together with its items.
type SalesOrder struct {
	ID             uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderNumber    string           `gorm:"type:varchar(50);uniqueIndex;not null" json:"order_number"`
	CustomerID     *uuid.UUID       `gorm:"type:uuid;index" json:"customer_id"` // unchecked reference unless VALIDATE_CUSTOMER is set
	Customer       *Partner         `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Status         string           `gorm:"type:varchar(30);not null;default:'completed'" json:"status"`
	PaymentStatus  string           `gorm:"type:varchar(20);not null;index" json:"payment_status"`
	PaymentMethod  *string          `gorm:"type:varchar(30)" json:"payment_method"`
	Subtotal       decimal.Decimal  `gorm:"type:decimal(18,4);not null" json:"subtotal"`
	TaxAmount      decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0" json:"tax_amount"`
	DiscountAmount decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0" json:"discount_amount"`
	TotalAmount    decimal.Decimal  `gorm:"type:decimal(18,4);not null" json:"total_amount"` // subtotal - discount + tax
	PaidAmount     decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0" json:"paid_amount"`
	Notes          string           `gorm:"type:text" json:"notes"`
	OrderDate      time.Time        `gorm:"not null;index" json:"order_date"`
	UserID         *uuid.UUID       `gorm:"type:uuid;index" json:"user_id"`
	Items          []SalesOrderItem `gorm:"foreignKey:SalesOrderID" json:"items"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// SalesOrderItem is an immutable order line
type SalesOrderItem struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SalesOrderID uuid.UUID       `gorm:"type:uuid;not null;index" json:"sales_order_id"`
	LineNo       int             `gorm:"type:int;not null" json:"line_no"`
	ProductID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	Product      Product         `gorm:"foreignKey:ProductID" json:"-"`
	Quantity     int             `gorm:"type:int;not null;check:quantity > 0" json:"quantity"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"unit_price"`
	TaxRate      decimal.Decimal `gorm:"type:decimal(7,4);not null;default:0" json:"tax_rate"`      // percent
	DiscountRate decimal.Decimal `gorm:"type:decimal(7,4);not null;default:0" json:"discount_rate"` // percent
	TotalAmount  decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"total_amount"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Payment reference types
const (
	PaymentRefTypeSale = "sale"
)

// Payment records money received against an order
type Payment struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PaymentNumber string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"payment_number"`
	ReferenceType string          `gorm:"type:varchar(20);not null;index:idx_payments_reference" json:"reference_type"`
	ReferenceID   uuid.UUID       `gorm:"type:uuid;not null;index:idx_payments_reference" json:"reference_id"`
	PaymentMethod string          `gorm:"type:varchar(30);not null" json:"payment_method"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	UserID        *uuid.UUID      `gorm:"type:uuid" json:"user_id"`
	CreatedAt     time.Time       `json:"created_at"`
}
