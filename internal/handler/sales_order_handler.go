package handler

import (
	"net/http"

	"retailpos/internal/middleware"
	"retailpos/internal/service"
	"retailpos/pkg/response"

	"github.com/gin-gonic/gin"
)

type SalesOrderHandler struct {
	orderService service.OrderService
}

func NewSalesOrderHandler(orderService service.OrderService) *SalesOrderHandler {
	return &SalesOrderHandler{orderService: orderService}
}

func (h *SalesOrderHandler) RegisterRoutes(router *gin.RouterGroup, secret []byte) {
	sales := router.Group("/api/sales", middleware.RequireAuth(secret))
	{
		sales.POST("/orders", h.CreateOrder)
		sales.GET("/orders/:id", h.GetOrder)
	}
}

// CreateOrder records a completed sale: lines, stock deduction and optional payment in one transaction
// @Summary      Create sales order
// @Description  Prices the cart, deducts stock and records an optional payment atomically
// @Tags         sales
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateOrderRequest  true  "Create Sales Order Payload"
// @Success      201      {object}  response.Response{data=service.OrderSummary}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Failure      504      {object}  response.Response
// @Failure      500      {object}  response.Response
// @Router       /api/sales/orders [post]
func (h *SalesOrderHandler) CreateOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	userID := c.GetString(middleware.ContextUserID)

	summary, err := h.orderService.CreateOrder(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, summary))
}

// GetOrder returns a committed sales order with its lines
// @Summary      Get sales order
// @Tags         sales
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Sales Order ID"
// @Success      200  {object}  response.Response{data=service.OrderDetail}
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/sales/orders/{id} [get]
func (h *SalesOrderHandler) GetOrder(c *gin.Context) {
	detail, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, detail))
}
