package repository

import (
	"context"

	"retailpos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SalesOrderRepository interface {
	Create(ctx context.Context, order *model.SalesOrder) error
	CreateItem(ctx context.Context, item *model.SalesOrderItem) error
	FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.SalesOrder, error)
}

type salesOrderRepository struct {
	db *gorm.DB
}

func NewSalesOrderRepository(db *gorm.DB) SalesOrderRepository {
	return &salesOrderRepository{db: db}
}

// Create inserts only the header; items are written one by one with CreateItem
func (r *salesOrderRepository) Create(ctx context.Context, order *model.SalesOrder) error {
	return GetDB(ctx, r.db).Omit("Items", "Customer").Create(order).Error
}

func (r *salesOrderRepository) CreateItem(ctx context.Context, item *model.SalesOrderItem) error {
	return GetDB(ctx, r.db).Omit("Product").Create(item).Error
}

// FindByIDWithItems loads the header, the customer name and the lines in insertion order.
// Soft-deleted products and partners still resolve so historic orders keep their display names.
func (r *salesOrderRepository) FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.SalesOrder, error) {
	var order model.SalesOrder
	if err := GetDB(ctx, r.db).
		Preload("Customer", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("line_no ASC") }).
		Preload("Items.Product", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}
