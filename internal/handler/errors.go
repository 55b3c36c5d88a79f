package handler

import (
	"errors"
	"net/http"

	"retailpos/internal/service"
	"retailpos/pkg/response"

	"github.com/gin-gonic/gin"
)

// respondError maps service errors onto HTTP statuses. Unexpected failures are
// reported with a generic message; the cause goes to the request log via c.Error.
func respondError(c *gin.Context, err error) {
	var (
		validation   *service.ValidationError
		notFound     *service.NotFoundError
		insufficient *service.InsufficientStockError
		conflict     *service.ConflictError
		timeout      *service.TimeoutError
	)

	switch {
	case errors.As(err, &validation):
		details := map[string]interface{}{"field": validation.Field}
		if validation.Item != nil {
			details["item_index"] = *validation.Item
		}
		c.JSON(http.StatusBadRequest, response.ErrorWithDetails(http.StatusBadRequest, err.Error(), details))

	case errors.As(err, &notFound):
		details := map[string]interface{}{"entity": notFound.Entity, "id": notFound.ID.String()}
		if notFound.Item != nil {
			details["item_index"] = *notFound.Item
		}
		c.JSON(http.StatusNotFound, response.ErrorWithDetails(http.StatusNotFound, err.Error(), details))

	case errors.As(err, &insufficient):
		details := map[string]interface{}{
			"product_id": insufficient.ProductID.String(),
			"available":  insufficient.Available,
			"requested":  insufficient.Requested,
			"shortfall":  insufficient.Shortfall(),
		}
		if insufficient.Item != nil {
			details["item_index"] = *insufficient.Item
		}
		c.JSON(http.StatusConflict, response.ErrorWithDetails(http.StatusConflict, err.Error(), details))

	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, response.Error(http.StatusConflict, err.Error()))

	case errors.As(err, &timeout):
		_ = c.Error(err)
		c.JSON(http.StatusGatewayTimeout, response.Error(http.StatusGatewayTimeout, "The request took too long and was rolled back"))

	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Internal server error"))
	}
}
