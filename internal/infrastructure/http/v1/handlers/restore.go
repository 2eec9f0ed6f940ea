package handlers

import (
	"github.com/gin-gonic/gin"

	"posledger/internal/domain/restore"
	"posledger/internal/infrastructure/http/v1/dto"
)

// RestoreHandler handles HTTP requests for activity restores.
type RestoreHandler struct {
	*BaseHandler
	engine *restore.Engine
}

// NewRestoreHandler creates a new restore handler.
func NewRestoreHandler(base *BaseHandler, engine *restore.Engine) *RestoreHandler {
	return &RestoreHandler{BaseHandler: base, engine: engine}
}

// Create handles POST /restore - reverses a past activity.
// With dryRun set the response is a preview and nothing is applied.
func (h *RestoreHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.RestoreRequest
	if !h.BindJSON(c, &req) {
		return
	}

	restoreReq, err := req.ToRequest()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.engine.Restore(ctx, restoreReq)
	if err != nil {
		h.Error(c, err)
		return
	}

	if restoreReq.DryRun {
		h.OK(c, dto.FromRestoreResult(result, true))
		return
	}
	h.CreatedBody(c, dto.FromRestoreResult(result, false))
}

// RegisterRoutes registers restore routes.
func (h *RestoreHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
}
