package handler

import (
	"errors"
	"net/http"

	"retailpos/internal/service"
	"retailpos/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func init() {
	// report binding failures by json key, matching the service's own validation
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(service.JSONFieldName)
	}
}

// bindJSON decodes the body into req. Tag rule failures are answered like any other
// ValidationError; undecodable bodies get a plain 400.
func bindJSON(c *gin.Context, req interface{}) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		respondError(c, service.FromValidator(errs))
		return false
	}
	c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
	return false
}
