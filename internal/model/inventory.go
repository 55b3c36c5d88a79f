package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product represents a sellable catalog item and its on-hand stock
type Product struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SKU          string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"sku"`
	Name         string          `gorm:"type:varchar(255);not null" json:"name"`
	Barcode      string          `gorm:"type:varchar(100);index" json:"barcode"`
	Unit         string          `gorm:"type:varchar(30);not null;default:'pcs'" json:"unit"`
	CurrentStock int             `gorm:"type:int;default:0;not null;check:current_stock >= 0" json:"current_stock"`
	CostPrice    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"cost_price"`
	SellingPrice decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"selling_price"`
	ReorderPoint int             `gorm:"type:int;not null;default:0" json:"reorder_point"`
	IsActive     bool            `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	DeletedAt    gorm.DeletedAt  `gorm:"index" json:"-"`
}

// NeedsReorder reports whether stock has fallen to the reorder point
func (p Product) NeedsReorder() bool {
	return p.CurrentStock <= p.ReorderPoint
}

// MovementType values
const (
	MovementTypeIn         = "in"
	MovementTypeOut        = "out"
	MovementTypeAdjustment = "adjustment"
)

// Movement reference types
const (
	RefTypeSale       = "sale"
	RefTypeAdjustment = "adjustment"
)

// StockMovement is the append-only stock card. Quantity is positive for in/out rows;
// adjustment rows carry the signed change.
type StockMovement struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ProductID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"product_id"`
	MovementType  string     `gorm:"type:varchar(20);not null" json:"movement_type"`
	Quantity      int        `gorm:"type:int;not null" json:"quantity"`
	StockAfter    int        `gorm:"type:int;not null" json:"stock_after"`
	ReferenceType string     `gorm:"type:varchar(30);not null;index:idx_stock_movements_reference" json:"reference_type"`
	ReferenceID   *uuid.UUID `gorm:"type:uuid;index:idx_stock_movements_reference" json:"reference_id"`
	Note          string     `gorm:"type:text" json:"note,omitempty"`
	UserID        *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`
}
