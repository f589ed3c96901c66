package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/grobertson/Rosey-Robot-sub001/internal/migration"
	"github.com/grobertson/Rosey-Robot-sub001/internal/models"
)

// MigrationHandler exposes apply/rollback/status over HTTP.
type MigrationHandler struct {
	executor *migration.Executor
}

// NewMigrationHandler creates a MigrationHandler
func NewMigrationHandler(executor *migration.Executor) *MigrationHandler {
	return &MigrationHandler{executor: executor}
}

// Apply handles POST /v1/namespaces/:namespace/migrations/apply.
// An absent target means "latest".
func (h *MigrationHandler) Apply(c *gin.Context) {
	namespace := c.Param("namespace")

	// No body at all is a plain "apply to latest".
	var req models.MigrationRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: models.ErrorDetail{
			Kind: "malformed_expression", Detail: "request body must be a JSON object",
		}})
		return
	}
	if req.Target == "" {
		req.Target = "latest"
	}
	target, err := migration.ParseTarget(req.Target)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: models.ErrorDetail{
			Kind: "malformed_expression", Detail: err.Error(),
		}})
		return
	}

	report, err := h.executor.Apply(c.Request.Context(), namespace, target, req.DryRun)
	if err != nil {
		if errors.Is(err, migration.ErrMigrationInProgress) {
			c.JSON(http.StatusConflict, models.Rejected())
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.FromReport(report))
}

// Rollback handles POST /v1/namespaces/:namespace/migrations/rollback.
// The target version is required and must be numeric.
func (h *MigrationHandler) Rollback(c *gin.Context) {
	namespace := c.Param("namespace")

	var req models.MigrationRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: models.ErrorDetail{
			Kind: "malformed_expression", Detail: "request body must be a JSON object",
		}})
		return
	}
	target, err := migration.ParseTarget(req.Target)
	if err != nil || target.Latest {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: models.ErrorDetail{
			Kind: "malformed_expression", Detail: "rollback target must be a version number",
		}})
		return
	}

	report, err := h.executor.Rollback(c.Request.Context(), namespace, target.Version, req.DryRun)
	if err != nil {
		if errors.Is(err, migration.ErrMigrationInProgress) {
			c.JSON(http.StatusConflict, models.Rejected())
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.FromReport(report))
}

// Status handles GET /v1/namespaces/:namespace/migrations/status.
func (h *MigrationHandler) Status(c *gin.Context) {
	namespace := c.Param("namespace")

	report, err := h.executor.Status(c.Request.Context(), namespace)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
