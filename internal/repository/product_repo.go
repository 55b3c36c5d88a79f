package repository

import (
	"context"
	"errors"

	"retailpos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrStockUnderflow is returned when a decrement would take current_stock below zero
var ErrStockUnderflow = errors.New("stock would become negative")

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	FindBySKU(ctx context.Context, sku string) (*model.Product, error)
	// FindByIDForUpdate takes an exclusive row lock held until the enclosing transaction ends
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Product, error)
	DecrementStock(ctx context.Context, id uuid.UUID, quantity int) error
	UpdateStock(ctx context.Context, id uuid.UUID, stock int) error
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, product *model.Product) error {
	return GetDB(ctx, r.db).Create(product).Error
}

func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	if err := GetDB(ctx, r.db).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindBySKU also sees soft-deleted rows: the unique index on sku still covers them
func (r *productRepository) FindBySKU(ctx context.Context, sku string) (*model.Product, error) {
	var product model.Product
	if err := GetDB(ctx, r.db).Unscoped().Where("sku = ?", sku).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// DecrementStock subtracts quantity in place. The guard in the WHERE clause keeps the
// non-negative invariant even if a caller skipped the locked read.
func (r *productRepository) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) error {
	res := GetDB(ctx, r.db).Model(&model.Product{}).
		Where("id = ? AND current_stock >= ?", id, quantity).
		Update("current_stock", gorm.Expr("current_stock - ?", quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStockUnderflow
	}
	return nil
}

func (r *productRepository) UpdateStock(ctx context.Context, id uuid.UUID, stock int) error {
	return GetDB(ctx, r.db).Model(&model.Product{}).Where("id = ?", id).Update("current_stock", stock).Error
}
