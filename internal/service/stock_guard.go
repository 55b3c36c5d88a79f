package service

import (
	"context"
	"errors"

	"retailpos/internal/model"
	"retailpos/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockGuard enforces the non-negative stock invariant for one product.
// CheckAndReserve must be called with a transaction context: the product row stays
// locked until that transaction commits or rolls back, so the caller's decrement
// happens under the same lock as the check.
type StockGuard interface {
	CheckAndReserve(ctx context.Context, productID uuid.UUID, quantity int) (*model.Product, error)
}

type stockGuard struct {
	productRepo repository.ProductRepository
}

func NewStockGuard(productRepo repository.ProductRepository) StockGuard {
	return &stockGuard{productRepo: productRepo}
}

func (g *stockGuard) CheckAndReserve(ctx context.Context, productID uuid.UUID, quantity int) (*model.Product, error) {
	product, err := g.productRepo.FindByIDForUpdate(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "product", ID: productID}
		}
		return nil, &PersistenceError{Op: "lock product " + productID.String(), Err: err}
	}

	if product.CurrentStock < quantity {
		return nil, &InsufficientStockError{
			ProductID: productID,
			Available: product.CurrentStock,
			Requested: quantity,
		}
	}

	return product, nil
}
