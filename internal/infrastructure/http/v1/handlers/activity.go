package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"posledger/internal/core/entity"
	"posledger/internal/domain/activity"
	"posledger/internal/infrastructure/http/v1/dto"
)

// ActivityHandler handles HTTP requests for the activity log.
type ActivityHandler struct {
	*BaseHandler
	service *activity.Service
}

// NewActivityHandler creates a new activity handler.
func NewActivityHandler(base *BaseHandler, service *activity.Service) *ActivityHandler {
	return &ActivityHandler{BaseHandler: base, service: service}
}

// List handles GET /activities - lists entries newest first.
func (h *ActivityHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := activity.ListFilter{
		BranchID: h.ParseIDQuery(c, "branchId"),
		ActorID:  h.ParseIDQuery(c, "actorId"),
		Limit:    h.ParseIntQuery(c, "limit", 50),
		Offset:   h.ParseIntQuery(c, "offset", 0),
	}

	if activityType := c.Query("type"); activityType != "" {
		at := entity.ActivityType(activityType)
		filter.Type = &at
	}
	if from := c.Query("from"); from != "" {
		if parsed, err := time.Parse(time.RFC3339, from); err == nil {
			filter.From = &parsed
		}
	}
	if to := c.Query("to"); to != "" {
		if parsed, err := time.Parse(time.RFC3339, to); err == nil {
			filter.To = &parsed
		}
	}

	entries, err := h.service.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.ActivityResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.FromActivity(&entries[i]))
	}

	h.OK(c, dto.ListResponse{
		Items:  items,
		Count:  len(items),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// Get handles GET /activities/:id.
func (h *ActivityHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	activityID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	entry, err := h.service.Get(ctx, activityID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromActivity(entry))
}

// Patch handles PATCH /activities/:id - updates title/description only.
func (h *ActivityHandler) Patch(c *gin.Context) {
	ctx := c.Request.Context()

	activityID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.PatchActivityRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if req.Type != nil {
		h.Error(c, activity.RejectImmutable("type"))
		return
	}
	if len(req.Delta) > 0 {
		h.Error(c, activity.RejectImmutable("delta"))
		return
	}

	entry, err := h.service.Patch(ctx, activityID, activity.PatchFields{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromActivity(entry))
}

// RegisterRoutes registers activity routes.
func (h *ActivityHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.PATCH("/:id", h.Patch)
}
