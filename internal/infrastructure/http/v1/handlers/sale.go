package handlers

import (
	"github.com/gin-gonic/gin"

	"posledger/internal/domain/sales"
	"posledger/internal/infrastructure/http/v1/dto"
)

// SaleHandler handles HTTP requests for sale transactions.
type SaleHandler struct {
	*BaseHandler
	processor *sales.Processor
}

// NewSaleHandler creates a new sale handler.
func NewSaleHandler(base *BaseHandler, processor *sales.Processor) *SaleHandler {
	return &SaleHandler{BaseHandler: base, processor: processor}
}

// Create handles POST /sales - commits a sale transaction.
func (h *SaleHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	sellReq, err := req.ToRequest()
	if err != nil {
		h.Error(c, err)
		return
	}

	sale, err := h.processor.Sell(ctx, sellReq)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.CreatedBody(c, dto.FromSale(sale, nil))
}

// Get handles GET /sales/:id - returns a sale with its lines.
func (h *SaleHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	saleID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	sale, lines, err := h.processor.Get(ctx, saleID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromSale(sale, lines))
}

// RegisterRoutes registers sale routes.
func (h *SaleHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
}
