package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/grobertson/Rosey-Robot-sub001/internal/expr"
	"github.com/grobertson/Rosey-Robot-sub001/internal/models"
	"github.com/grobertson/Rosey-Robot-sub001/internal/query"
)

// QueryHandler exposes search/update/aggregate over HTTP. It only decodes
// request documents and relays the core's structured results and errors.
type QueryHandler struct {
	executor *query.Executor
}

// NewQueryHandler creates a QueryHandler
func NewQueryHandler(executor *query.Executor) *QueryHandler {
	return &QueryHandler{executor: executor}
}

// Search handles POST /v1/tables/:table/search. With an aggregate present
// the response is a single result row instead of a row set.
func (h *QueryHandler) Search(c *gin.Context) {
	table := c.Param("table")

	var req models.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: models.ErrorDetail{
			Kind: "malformed_expression", Detail: "request body must be a JSON object",
		}})
		return
	}

	filter, err := expr.ParseFilter(req.Filter)
	if err != nil {
		writeError(c, err)
		return
	}

	if len(req.Aggregate) > 0 {
		agg, err := expr.ParseAggregate(req.Aggregate)
		if err != nil {
			writeError(c, err)
			return
		}
		result, err := h.executor.Aggregate(c.Request.Context(), table, filter, agg)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.AggregateResponse{Result: result})
		return
	}

	sort, err := expr.ParseSort(req.Sort)
	if err != nil {
		writeError(c, err)
		return
	}
	rows, err := h.executor.Search(c.Request.Context(), table, filter, sort, req.Limit, req.Offset)
	if err != nil {
		writeError(c, err)
		return
	}
	if rows == nil {
		rows = []query.Row{}
	}
	c.JSON(http.StatusOK, models.SearchResponse{Rows: rows})
}

// Update handles POST /v1/tables/:table/update.
func (h *QueryHandler) Update(c *gin.Context) {
	table := c.Param("table")

	var req models.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: models.ErrorDetail{
			Kind: "malformed_expression", Detail: "request body must be a JSON object",
		}})
		return
	}
	if len(req.Update) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: models.ErrorDetail{
			Kind: "malformed_expression", Detail: "update document is required",
		}})
		return
	}

	filter, err := expr.ParseFilter(req.Filter)
	if err != nil {
		writeError(c, err)
		return
	}
	update, err := expr.ParseUpdate(req.Update)
	if err != nil {
		writeError(c, err)
		return
	}

	affected, err := h.executor.Update(c.Request.Context(), table, filter, update)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.UpdateResponse{AffectedCount: affected})
}
