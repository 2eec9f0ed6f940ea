package handlers

import (
	"github.com/gin-gonic/gin"

	"posledger/internal/core/apperror"
	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/core/types"
	"posledger/internal/domain/inventory"
	"posledger/internal/infrastructure/http/v1/dto"
)

// InventoryHandler handles HTTP requests for on-hand quantities.
type InventoryHandler struct {
	*BaseHandler
	store *inventory.Store
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(base *BaseHandler, store *inventory.Store) *InventoryHandler {
	return &InventoryHandler{BaseHandler: base, store: store}
}

// ListBalances handles GET /inventory/balances - on-hand rows for one branch.
func (h *InventoryHandler) ListBalances(c *gin.Context) {
	ctx := c.Request.Context()

	branchID, err := id.Parse(c.Query("branchId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("branchId query parameter is required"))
		return
	}

	filter := inventory.ListFilter{
		ProductID:   h.ParseIDQuery(c, "productId"),
		ExcludeZero: c.Query("excludeZero") == "true",
		Limit:       h.ParseIntQuery(c, "limit", 50),
		Offset:      h.ParseIntQuery(c, "offset", 0),
	}

	rows, err := h.store.ListByBranch(ctx, branchID, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.BalanceResponse, 0, len(rows))
	for i := range rows {
		items = append(items, dto.FromBalance(&rows[i]))
	}

	h.OK(c, dto.ListResponse{
		Items:  items,
		Count:  len(items),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// GetBalance handles GET /inventory/balance - one on-hand row by triple.
// A missing row reads as zero quantity.
func (h *InventoryHandler) GetBalance(c *gin.Context) {
	ctx := c.Request.Context()

	triple, ok := h.tripleFromQuery(c)
	if !ok {
		return
	}

	row, err := h.store.Get(ctx, triple)
	if err != nil {
		if apperror.IsNotFound(err) {
			h.OK(c, dto.BalanceResponse{
				ProductID:   triple.ProductID.String(),
				BranchID:    triple.BranchID.String(),
				VariationID: variationString(triple.VariationID),
			})
			return
		}
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromBalance(row))
}

// SetLevels handles PUT /inventory/levels - sets min/max stock levels.
func (h *InventoryHandler) SetLevels(c *gin.Context) {
	ctx := c.Request.Context()

	triple, ok := h.tripleFromQuery(c)
	if !ok {
		return
	}

	var req dto.SetLevelsRequest
	if !h.BindJSON(c, &req) {
		return
	}

	patch := inventory.LevelsPatch{}
	if req.MinStockLevel != nil {
		minLevel := types.Quantity(*req.MinStockLevel)
		patch.MinStockLevel = &minLevel
	}
	if req.MaxStockLevel != nil {
		maxLevel := types.Quantity(*req.MaxStockLevel)
		patch.MaxStockLevel = &maxLevel
	}

	if err := h.store.SetLevels(ctx, triple, patch); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "stock levels updated")
}

func (h *InventoryHandler) tripleFromQuery(c *gin.Context) (entity.Triple, bool) {
	productID, err := id.Parse(c.Query("productId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("productId query parameter is required"))
		return entity.Triple{}, false
	}
	branchID, err := id.Parse(c.Query("branchId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("branchId query parameter is required"))
		return entity.Triple{}, false
	}
	return entity.Triple{
		ProductID:   productID,
		VariationID: h.ParseIDQuery(c, "variationId"),
		BranchID:    branchID,
	}, true
}

func variationString(variationID *id.ID) *string {
	if variationID == nil {
		return nil
	}
	s := variationID.String()
	return &s
}

// RegisterRoutes registers inventory routes.
func (h *InventoryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/balances", h.ListBalances)
	rg.GET("/balance", h.GetBalance)
	rg.PUT("/levels", h.SetLevels)
}
