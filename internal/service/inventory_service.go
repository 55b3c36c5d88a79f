package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"retailpos/internal/model"
	"retailpos/internal/pricing"
	"retailpos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DTOs
type CreateProductRequest struct {
	SKU          string          `json:"sku" binding:"required"`
	Name         string          `json:"name" binding:"required"`
	Barcode      string          `json:"barcode"`
	Unit         string          `json:"unit"`
	CostPrice    decimal.Decimal `json:"cost_price" swaggertype:"string" example:"4.50"`
	SellingPrice decimal.Decimal `json:"selling_price" swaggertype:"string" example:"9.99"`
	ReorderPoint int             `json:"reorder_point" binding:"min=0"`
	InitialStock int             `json:"initial_stock" binding:"min=0"`
}

type AdjustStockRequest struct {
	Delta int    `json:"delta" binding:"ne=0"`
	Note  string `json:"note"`
}

type ProductResponse struct {
	ID           string `json:"id"`
	SKU          string `json:"sku"`
	Name         string `json:"name"`
	Barcode      string `json:"barcode"`
	Unit         string `json:"unit"`
	CurrentStock int    `json:"current_stock"`
	CostPrice    string `json:"cost_price"`
	SellingPrice string `json:"selling_price"`
	ReorderPoint int    `json:"reorder_point"`
	LowStock     bool   `json:"low_stock"`
}

type InventoryService interface {
	GetProduct(ctx context.Context, id string) (ProductResponse, error)
	CreateProduct(ctx context.Context, userID string, req CreateProductRequest) (ProductResponse, error)
	AdjustStock(ctx context.Context, userID string, id string, req AdjustStockRequest) (ProductResponse, error)
}

type inventoryService struct {
	productRepo  repository.ProductRepository
	movementRepo repository.StockMovementRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	notifier     StockNotifier
	logger       *zap.Logger
}

// NewInventoryService builds the catalog service. notifier may be nil.
func NewInventoryService(
	productRepo repository.ProductRepository,
	movementRepo repository.StockMovementRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	notifier StockNotifier,
	logger *zap.Logger,
) InventoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &inventoryService{
		productRepo:  productRepo,
		movementRepo: movementRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		notifier:     notifier,
		logger:       logger,
	}
}

func (s *inventoryService) GetProduct(ctx context.Context, id string) (ProductResponse, error) {
	productID, err := uuid.Parse(id)
	if err != nil {
		return ProductResponse{}, &ValidationError{Field: "id", Reason: "is not a valid id"}
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ProductResponse{}, &NotFoundError{Entity: "product", ID: productID}
		}
		return ProductResponse{}, &PersistenceError{Op: "load product", Err: err}
	}

	return toProductResponse(*product), nil
}

func (s *inventoryService) CreateProduct(ctx context.Context, userID string, req CreateProductRequest) (ProductResponse, error) {
	req.SKU = strings.TrimSpace(req.SKU)
	req.Name = strings.TrimSpace(req.Name)
	if err := validateRequest(req); err != nil {
		return ProductResponse{}, err
	}
	if err := checkAmount("cost_price", req.CostPrice); err != nil {
		return ProductResponse{}, err
	}
	if err := checkAmount("selling_price", req.SellingPrice); err != nil {
		return ProductResponse{}, err
	}

	unit := req.Unit
	if unit == "" {
		unit = "pcs"
	}
	product := model.Product{
		SKU:          req.SKU,
		Name:         req.Name,
		Barcode:      req.Barcode,
		Unit:         unit,
		CurrentStock: req.InitialStock,
		CostPrice:    req.CostPrice,
		SellingPrice: req.SellingPrice,
		ReorderPoint: req.ReorderPoint,
		IsActive:     true,
	}
	actor := parseActor(userID)

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.productRepo.FindBySKU(txCtx, product.SKU); err == nil {
			return &ConflictError{Reason: "sku " + product.SKU + " already exists"}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return &PersistenceError{Op: "look up sku", Err: err}
		}

		if err := s.productRepo.Create(txCtx, &product); err != nil {
			// a concurrent create won the unique index between lookup and insert
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return &ConflictError{Reason: "sku " + product.SKU + " already exists"}
			}
			return &PersistenceError{Op: "create product", Err: err}
		}

		if product.CurrentStock > 0 {
			movement := &model.StockMovement{
				ProductID:     product.ID,
				MovementType:  model.MovementTypeIn,
				Quantity:      product.CurrentStock,
				StockAfter:    product.CurrentStock,
				ReferenceType: model.RefTypeAdjustment,
				Note:          "initial stock",
				UserID:        actor,
			}
			if err := s.movementRepo.Create(txCtx, movement); err != nil {
				return &PersistenceError{Op: "record initial stock", Err: err}
			}
		}

		details, _ := json.Marshal(req)
		audit := &model.AuditLog{
			UserID:     actor,
			Action:     model.ActionCreateProduct,
			EntityID:   product.ID.String(),
			EntityName: product.Name,
			Details:    string(details),
		}
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return &PersistenceError{Op: "write audit log", Err: err}
		}
		return nil
	})
	if err != nil {
		return ProductResponse{}, err
	}

	s.logger.Info("product created", zap.String("product_id", product.ID.String()), zap.String("sku", product.SKU))
	s.notify(product)
	return toProductResponse(product), nil
}

func (s *inventoryService) AdjustStock(ctx context.Context, userID string, id string, req AdjustStockRequest) (ProductResponse, error) {
	productID, err := uuid.Parse(id)
	if err != nil {
		return ProductResponse{}, &ValidationError{Field: "id", Reason: "is not a valid id"}
	}
	if err := validateRequest(req); err != nil {
		return ProductResponse{}, err
	}
	actor := parseActor(userID)

	var product *model.Product
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		p, err := s.productRepo.FindByIDForUpdate(txCtx, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entity: "product", ID: productID}
			}
			return &PersistenceError{Op: "lock product", Err: err}
		}

		newStock := p.CurrentStock + req.Delta
		if newStock < 0 {
			return &InsufficientStockError{ProductID: productID, Available: p.CurrentStock, Requested: -req.Delta}
		}
		if err := s.productRepo.UpdateStock(txCtx, productID, newStock); err != nil {
			return &PersistenceError{Op: "update stock", Err: err}
		}
		p.CurrentStock = newStock

		movement := &model.StockMovement{
			ProductID:     productID,
			MovementType:  model.MovementTypeAdjustment,
			Quantity:      req.Delta,
			StockAfter:    newStock,
			ReferenceType: model.RefTypeAdjustment,
			Note:          req.Note,
			UserID:        actor,
		}
		if err := s.movementRepo.Create(txCtx, movement); err != nil {
			return &PersistenceError{Op: "record stock movement", Err: err}
		}

		details, _ := json.Marshal(map[string]interface{}{
			"delta":       req.Delta,
			"note":        req.Note,
			"stock_after": newStock,
		})
		audit := &model.AuditLog{
			UserID:     actor,
			Action:     model.ActionAdjustStock,
			EntityID:   productID.String(),
			EntityName: p.Name,
			Details:    string(details),
		}
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return &PersistenceError{Op: "write audit log", Err: err}
		}

		product = p
		return nil
	})
	if err != nil {
		return ProductResponse{}, err
	}

	s.logger.Info("stock adjusted",
		zap.String("product_id", productID.String()),
		zap.Int("delta", req.Delta),
		zap.Int("stock_after", product.CurrentStock),
	)
	s.notify(*product)
	return toProductResponse(*product), nil
}

func (s *inventoryService) notify(product model.Product) {
	if s.notifier != nil {
		s.notifier.StockChanged(product)
	}
}

func toProductResponse(p model.Product) ProductResponse {
	return ProductResponse{
		ID:           p.ID.String(),
		SKU:          p.SKU,
		Name:         p.Name,
		Barcode:      p.Barcode,
		Unit:         p.Unit,
		CurrentStock: p.CurrentStock,
		CostPrice:    p.CostPrice.StringFixed(pricing.Scale),
		SellingPrice: p.SellingPrice.StringFixed(pricing.Scale),
		ReorderPoint: p.ReorderPoint,
		LowStock:     p.NeedsReorder(),
	}
}
