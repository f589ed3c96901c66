package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/grobertson/Rosey-Robot-sub001/internal/expr"
	"github.com/grobertson/Rosey-Robot-sub001/internal/models"
	"github.com/grobertson/Rosey-Robot-sub001/internal/query"
)

// writeError maps core errors onto HTTP responses. Validation errors are
// caller-correctable (400/404); execution errors are storage failures (500).
func writeError(c *gin.Context, err error) {
	var vErr *expr.ValidationError
	if errors.As(err, &vErr) {
		status := http.StatusBadRequest
		if vErr.Kind == expr.KindUnknownTable {
			status = http.StatusNotFound
		}
		c.JSON(status, models.ErrorResponse{Error: models.ErrorDetail{
			Kind:     string(vErr.Kind),
			Detail:   vErr.Detail,
			Field:    vErr.Field,
			Operator: vErr.Operator,
		}})
		return
	}

	var xErr *query.ExecutionError
	if errors.As(err, &xErr) {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: models.ErrorDetail{
			Kind:   "execution_error",
			Detail: xErr.Detail,
			Code:   xErr.Code,
		}})
		return
	}

	c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: models.ErrorDetail{
		Kind:   "internal_error",
		Detail: err.Error(),
	}})
}
