package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"retailpos/internal/metrics"
	"retailpos/internal/model"
	"retailpos/internal/numbering"
	"retailpos/internal/pricing"
	"retailpos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// --- DTOs ---

// Rates are percentages (0-100). Decimal ranges are checked by the pricing calculator.
type OrderItemRequest struct {
	ProductID    string          `json:"product_id" binding:"required,uuid"`
	Quantity     int             `json:"quantity" binding:"gt=0"`
	UnitPrice    decimal.Decimal `json:"unit_price" swaggertype:"string" example:"9.99"`
	TaxRate      decimal.Decimal `json:"tax_rate" swaggertype:"string" example:"10"`
	DiscountRate decimal.Decimal `json:"discount_rate" swaggertype:"string" example:"0"`
}

type CreateOrderRequest struct {
	CustomerID    string             `json:"customer_id" binding:"omitempty,uuid"`
	Items         []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	PaymentMethod string             `json:"payment_method"`
	PaymentAmount decimal.Decimal    `json:"payment_amount" swaggertype:"string" example:"20.00"`
	Notes         string             `json:"notes"`
}

type OrderSummary struct {
	ID            string `json:"id"`
	OrderNumber   string `json:"order_number"`
	TotalAmount   string `json:"total_amount"`
	PaidAmount    string `json:"paid_amount"`
	PaymentStatus string `json:"payment_status"`
}

type OrderItemResponse struct {
	ID           string `json:"id"`
	ProductID    string `json:"product_id"`
	ProductName  string `json:"product_name"`
	Quantity     int    `json:"quantity"`
	UnitPrice    string `json:"unit_price"`
	TaxRate      string `json:"tax_rate"`
	DiscountRate string `json:"discount_rate"`
	TotalAmount  string `json:"total_amount"`
}

type OrderDetail struct {
	ID             string              `json:"id"`
	OrderNumber    string              `json:"order_number"`
	CustomerID     *string             `json:"customer_id"`
	CustomerName   *string             `json:"customer_name"`
	Status         string              `json:"status"`
	PaymentStatus  string              `json:"payment_status"`
	PaymentMethod  *string             `json:"payment_method"`
	Subtotal       string              `json:"subtotal"`
	TaxAmount      string              `json:"tax_amount"`
	DiscountAmount string              `json:"discount_amount"`
	TotalAmount    string              `json:"total_amount"`
	PaidAmount     string              `json:"paid_amount"`
	Notes          string              `json:"notes"`
	OrderDate      string              `json:"order_date"`
	Items          []OrderItemResponse `json:"items"`
}

// --- Collaborators ---

// StockNotifier is told about every product whose stock changed, after commit
type StockNotifier interface {
	StockChanged(product model.Product)
}

// OrderCache stores committed order details; a miss or any error falls back to the store
type OrderCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type OrderOptions struct {
	TxTimeout        time.Duration
	AllowOverpayment bool
	ValidateCustomer bool
	CacheTTL         time.Duration
}

type OrderServiceDeps struct {
	ProductRepo  repository.ProductRepository
	OrderRepo    repository.SalesOrderRepository
	MovementRepo repository.StockMovementRepository
	PaymentRepo  repository.PaymentRepository
	PartnerRepo  repository.PartnerRepository
	AuditRepo    repository.AuditRepository
	TxManager    repository.TransactionManager
	Guard        StockGuard // defaults to NewStockGuard(ProductRepo)
	Numbers      numbering.Generator
	Notifier     StockNotifier         // optional
	Cache        OrderCache            // optional
	Metrics      *metrics.OrderMetrics // optional
	Logger       *zap.Logger
	Options      OrderOptions
}

// --- Interface ---

type OrderService interface {
	CreateOrder(ctx context.Context, userID string, req CreateOrderRequest) (OrderSummary, error)
	GetOrder(ctx context.Context, id string) (OrderDetail, error)
}

type orderService struct {
	OrderServiceDeps
}

func NewOrderService(deps OrderServiceDeps) OrderService {
	if deps.Guard == nil {
		deps.Guard = NewStockGuard(deps.ProductRepo)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Options.TxTimeout <= 0 {
		deps.Options.TxTimeout = 10 * time.Second
	}
	if deps.Options.CacheTTL <= 0 {
		deps.Options.CacheTTL = 10 * time.Minute
	}
	return &orderService{OrderServiceDeps: deps}
}

// --- Implementation ---

// preparedOrder is a validated request with its totals computed
type preparedOrder struct {
	customerID    *uuid.UUID
	productIDs    []uuid.UUID
	totals        pricing.Totals
	paidAmount    decimal.Decimal
	paymentMethod *string
	paymentStatus string
}

func (s *orderService) CreateOrder(ctx context.Context, userID string, req CreateOrderRequest) (OrderSummary, error) {
	started := time.Now()

	prepared, err := s.prepare(ctx, req)
	if err != nil {
		s.recordFailure(err, started)
		return OrderSummary{}, err
	}

	order, touched, err := s.persist(ctx, userID, req, prepared)
	if err != nil {
		s.recordFailure(err, started)
		return OrderSummary{}, err
	}

	units := 0
	for _, item := range req.Items {
		units += item.Quantity
	}
	s.Metrics.OrderCreated(units, time.Since(started))
	s.Logger.Info("sales order created",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("total_amount", order.TotalAmount.StringFixed(pricing.Scale)),
		zap.String("payment_status", order.PaymentStatus),
		zap.Int("items", len(req.Items)),
	)

	if s.Notifier != nil {
		for _, product := range touched {
			s.Notifier.StockChanged(product)
		}
	}

	return OrderSummary{
		ID:            order.ID.String(),
		OrderNumber:   order.OrderNumber,
		TotalAmount:   order.TotalAmount.StringFixed(pricing.Scale),
		PaidAmount:    order.PaidAmount.StringFixed(pricing.Scale),
		PaymentStatus: order.PaymentStatus,
	}, nil
}

// prepare validates the request and prices it. Nothing is written.
func (s *orderService) prepare(ctx context.Context, req CreateOrderRequest) (preparedOrder, error) {
	if err := validateRequest(req); err != nil {
		return preparedOrder{}, err
	}

	p := preparedOrder{productIDs: make([]uuid.UUID, len(req.Items))}
	lines := make([]pricing.Line, len(req.Items))
	for i, item := range req.Items {
		pid, err := uuid.Parse(item.ProductID)
		if err != nil {
			return preparedOrder{}, &ValidationError{Field: "product_id", Reason: "is not a valid id", Item: itemIndex(i)}
		}
		p.productIDs[i] = pid
		lines[i] = pricing.Line{
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			TaxRate:      item.TaxRate,
			DiscountRate: item.DiscountRate,
		}
	}

	totals, err := pricing.Calculate(lines)
	if err != nil {
		var lineErr *pricing.LineError
		if errors.As(err, &lineErr) {
			return preparedOrder{}, &ValidationError{Field: lineErr.Field, Reason: lineErr.Reason, Item: itemIndex(lineErr.Index)}
		}
		return preparedOrder{}, &ValidationError{Field: "items", Reason: err.Error()}
	}
	p.totals = totals

	p.paidAmount = req.PaymentAmount
	if err := checkAmount("payment_amount", p.paidAmount); err != nil {
		return preparedOrder{}, err
	}
	if !s.Options.AllowOverpayment && p.paidAmount.GreaterThan(totals.TotalAmount) {
		return preparedOrder{}, &ValidationError{Field: "payment_amount", Reason: "exceeds order total " + totals.TotalAmount.StringFixed(pricing.Scale)}
	}
	p.paymentStatus = pricing.PaymentStatus(p.paidAmount, totals.TotalAmount)
	if req.PaymentMethod != "" {
		method := req.PaymentMethod
		p.paymentMethod = &method
	}

	if req.CustomerID != "" {
		cid, err := uuid.Parse(req.CustomerID)
		if err != nil {
			return preparedOrder{}, &ValidationError{Field: "customer_id", Reason: "is not a valid id"}
		}
		if s.Options.ValidateCustomer {
			if err := s.checkCustomer(ctx, cid); err != nil {
				return preparedOrder{}, err
			}
		}
		p.customerID = &cid
	}

	return p, nil
}

func (s *orderService) checkCustomer(ctx context.Context, id uuid.UUID) error {
	partner, err := s.PartnerRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{Entity: "customer", ID: id}
		}
		return &PersistenceError{Op: "look up customer", Err: err}
	}
	if !partner.IsCustomer() {
		return &ValidationError{Field: "customer_id", Reason: "does not refer to a customer"}
	}
	return nil
}

// persist writes header, lines, stock decrements, movements and the optional payment
// in one transaction bounded by the configured timeout. It returns the committed order
// and the final state of every product it touched.
func (s *orderService) persist(ctx context.Context, userID string, req CreateOrderRequest, p preparedOrder) (*model.SalesOrder, map[uuid.UUID]model.Product, error) {
	actor := parseActor(userID)

	orderNumber, err := s.Numbers.Next(ctx, numbering.PrefixSalesOrder)
	if err != nil {
		return nil, nil, &PersistenceError{Op: "generate order number", Err: err}
	}

	order := &model.SalesOrder{
		OrderNumber:    orderNumber,
		CustomerID:     p.customerID,
		Status:         model.OrderStatusCompleted,
		PaymentStatus:  p.paymentStatus,
		PaymentMethod:  p.paymentMethod,
		Subtotal:       p.totals.Subtotal,
		TaxAmount:      p.totals.TaxAmount,
		DiscountAmount: p.totals.DiscountAmount,
		TotalAmount:    p.totals.TotalAmount,
		PaidAmount:     p.paidAmount,
		Notes:          req.Notes,
		OrderDate:      time.Now().UTC(),
		UserID:         actor,
	}
	touched := make(map[uuid.UUID]model.Product, len(req.Items))

	txCtx, cancel := context.WithTimeout(ctx, s.Options.TxTimeout)
	defer cancel()

	err = s.TxManager.RunInTx(txCtx, func(txCtx context.Context) error {
		if err := s.OrderRepo.Create(txCtx, order); err != nil {
			return &PersistenceError{Op: "create sales order", Err: err}
		}

		type auditItem struct {
			ProductID   string `json:"product_id"`
			ProductName string `json:"product_name"`
			Quantity    int    `json:"quantity"`
			UnitPrice   string `json:"unit_price"`
		}
		auditItems := make([]auditItem, 0, len(req.Items))

		for i, itemReq := range req.Items {
			pid := p.productIDs[i]

			product, err := s.Guard.CheckAndReserve(txCtx, pid, itemReq.Quantity)
			if err != nil {
				return withItem(err, i)
			}

			item := &model.SalesOrderItem{
				SalesOrderID: order.ID,
				LineNo:       i + 1,
				ProductID:    pid,
				Quantity:     itemReq.Quantity,
				UnitPrice:    itemReq.UnitPrice,
				TaxRate:      itemReq.TaxRate,
				DiscountRate: itemReq.DiscountRate,
				TotalAmount:  p.totals.Lines[i].Total,
			}
			if err := s.OrderRepo.CreateItem(txCtx, item); err != nil {
				return &PersistenceError{Op: fmt.Sprintf("create item %d", i), Err: err}
			}

			if err := s.ProductRepo.DecrementStock(txCtx, pid, itemReq.Quantity); err != nil {
				if errors.Is(err, repository.ErrStockUnderflow) {
					return withItem(&InsufficientStockError{ProductID: pid, Available: product.CurrentStock, Requested: itemReq.Quantity}, i)
				}
				return &PersistenceError{Op: "deduct stock for product " + pid.String(), Err: err}
			}
			product.CurrentStock -= itemReq.Quantity

			movement := &model.StockMovement{
				ProductID:     pid,
				MovementType:  model.MovementTypeOut,
				Quantity:      itemReq.Quantity,
				StockAfter:    product.CurrentStock,
				ReferenceType: model.RefTypeSale,
				ReferenceID:   &order.ID,
				UserID:        actor,
			}
			if err := s.MovementRepo.Create(txCtx, movement); err != nil {
				return &PersistenceError{Op: "record stock movement", Err: err}
			}

			touched[pid] = *product
			auditItems = append(auditItems, auditItem{
				ProductID:   pid.String(),
				ProductName: product.Name,
				Quantity:    itemReq.Quantity,
				UnitPrice:   itemReq.UnitPrice.StringFixed(pricing.Scale),
			})
		}

		if p.paidAmount.IsPositive() && p.paymentMethod != nil {
			paymentNumber, err := s.Numbers.Next(txCtx, numbering.PrefixPayment)
			if err != nil {
				return &PersistenceError{Op: "generate payment number", Err: err}
			}
			payment := &model.Payment{
				PaymentNumber: paymentNumber,
				ReferenceType: model.PaymentRefTypeSale,
				ReferenceID:   order.ID,
				PaymentMethod: *p.paymentMethod,
				Amount:        p.paidAmount,
				UserID:        actor,
			}
			if err := s.PaymentRepo.Create(txCtx, payment); err != nil {
				return &PersistenceError{Op: "record payment", Err: err}
			}
		}

		details, _ := json.Marshal(map[string]interface{}{
			"order_number": order.OrderNumber,
			"total_amount": order.TotalAmount.StringFixed(pricing.Scale),
			"paid_amount":  order.PaidAmount.StringFixed(pricing.Scale),
			"items":        auditItems,
		})
		audit := &model.AuditLog{
			UserID:     actor,
			Action:     model.ActionCreateSalesOrder,
			EntityID:   order.ID.String(),
			EntityName: order.OrderNumber,
			Details:    string(details),
		}
		if err := s.AuditRepo.Log(txCtx, audit); err != nil {
			return &PersistenceError{Op: "write audit log", Err: err}
		}

		return nil
	})

	if err != nil {
		return nil, nil, classifyTxError(txCtx, err, s.Options.TxTimeout)
	}
	return order, touched, nil
}

// classifyTxError turns deadline expiry into TimeoutError and any untyped failure
// (commit, rollback) into PersistenceError. Business errors pass through unchanged.
func classifyTxError(txCtx context.Context, err error, timeout time.Duration) error {
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrInsufficientStock) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(txCtx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{After: timeout}
	}
	if errors.Is(err, ErrPersistence) {
		return err
	}
	return &PersistenceError{Op: "commit sales order", Err: err}
}

func (s *orderService) recordFailure(err error, started time.Time) {
	reason := failureReason(err)
	s.Metrics.OrderFailed(reason, time.Since(started))

	switch reason {
	case metrics.ReasonPersistence, metrics.ReasonTimeout:
		s.Logger.Error("sales order rolled back", zap.String("reason", reason), zap.Error(err))
	default:
		s.Logger.Warn("sales order rejected", zap.String("reason", reason), zap.Error(err))
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return metrics.ReasonValidation
	case errors.Is(err, ErrNotFound):
		return metrics.ReasonNotFound
	case errors.Is(err, ErrInsufficientStock):
		return metrics.ReasonInsufficientStock
	case errors.Is(err, ErrTimeout):
		return metrics.ReasonTimeout
	default:
		return metrics.ReasonPersistence
	}
}

func (s *orderService) GetOrder(ctx context.Context, id string) (OrderDetail, error) {
	orderID, err := uuid.Parse(id)
	if err != nil {
		return OrderDetail{}, &ValidationError{Field: "id", Reason: "is not a valid id"}
	}

	cacheKey := "sales_order:" + orderID.String()
	if s.Cache != nil {
		var cached OrderDetail
		if err := s.Cache.GetJSON(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	order, err := s.OrderRepo.FindByIDWithItems(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return OrderDetail{}, &NotFoundError{Entity: "sales order", ID: orderID}
		}
		return OrderDetail{}, &PersistenceError{Op: "load sales order", Err: err}
	}

	detail := toOrderDetail(*order)
	if s.Cache != nil {
		if err := s.Cache.SetJSON(ctx, cacheKey, detail, s.Options.CacheTTL); err != nil {
			s.Logger.Warn("failed to cache sales order", zap.String("order_id", id), zap.Error(err))
		}
	}
	return detail, nil
}

// --- Mapping ---

func parseActor(userID string) *uuid.UUID {
	if parsed, err := uuid.Parse(userID); err == nil {
		return &parsed
	}
	return nil
}

func toOrderDetail(o model.SalesOrder) OrderDetail {
	detail := OrderDetail{
		ID:             o.ID.String(),
		OrderNumber:    o.OrderNumber,
		Status:         o.Status,
		PaymentStatus:  o.PaymentStatus,
		PaymentMethod:  o.PaymentMethod,
		Subtotal:       o.Subtotal.StringFixed(pricing.Scale),
		TaxAmount:      o.TaxAmount.StringFixed(pricing.Scale),
		DiscountAmount: o.DiscountAmount.StringFixed(pricing.Scale),
		TotalAmount:    o.TotalAmount.StringFixed(pricing.Scale),
		PaidAmount:     o.PaidAmount.StringFixed(pricing.Scale),
		Notes:          o.Notes,
		OrderDate:      o.OrderDate.Format(time.RFC3339),
		Items:          make([]OrderItemResponse, 0, len(o.Items)),
	}

	if o.CustomerID != nil {
		cid := o.CustomerID.String()
		detail.CustomerID = &cid
	}
	if o.Customer != nil {
		name := o.Customer.Name
		detail.CustomerName = &name
	}

	for _, item := range o.Items {
		detail.Items = append(detail.Items, OrderItemResponse{
			ID:           item.ID.String(),
			ProductID:    item.ProductID.String(),
			ProductName:  item.Product.Name,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice.StringFixed(pricing.Scale),
			TaxRate:      item.TaxRate.StringFixed(pricing.Scale),
			DiscountRate: item.DiscountRate.StringFixed(pricing.Scale),
			TotalAmount:  item.TotalAmount.StringFixed(pricing.Scale),
		})
	}

	return detail
}
