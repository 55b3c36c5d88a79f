package repository

import (
	"context"

	"retailpos/internal/model"

	"gorm.io/gorm"
)

// StockMovementRepository is append-only: movements are never updated or deleted
type StockMovementRepository interface {
	Create(ctx context.Context, movement *model.StockMovement) error
}

type stockMovementRepository struct {
	db *gorm.DB
}

func NewStockMovementRepository(db *gorm.DB) StockMovementRepository {
	return &stockMovementRepository{db: db}
}

func (r *stockMovementRepository) Create(ctx context.Context, movement *model.StockMovement) error {
	return GetDB(ctx, r.db).Create(movement).Error
}
