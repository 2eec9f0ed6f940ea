package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"posledger/internal/core/entity"
	"posledger/internal/domain/ledger"
	"posledger/internal/domain/movement"
	"posledger/internal/infrastructure/http/v1/dto"
)

// MovementHandler handles HTTP requests for stock movements and transfers.
type MovementHandler struct {
	*BaseHandler
	processor *movement.Processor
	ledger    *ledger.Service
}

// NewMovementHandler creates a new movement handler.
func NewMovementHandler(base *BaseHandler, processor *movement.Processor, ledgerSvc *ledger.Service) *MovementHandler {
	return &MovementHandler{BaseHandler: base, processor: processor, ledger: ledgerSvc}
}

// Create handles POST /stock-movements - applies a manual stock-in or stock-out.
func (h *MovementHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateMovementRequest
	if !h.BindJSON(c, &req) {
		return
	}

	applyReq, err := req.ToRequest()
	if err != nil {
		h.Error(c, err)
		return
	}

	rec, err := h.processor.Apply(ctx, applyReq)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.CreatedBody(c, dto.FromMovement(rec))
}

// Transfer handles POST /stock-transfers - moves stock between branches.
func (h *MovementHandler) Transfer(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateTransferRequest
	if !h.BindJSON(c, &req) {
		return
	}

	transferReq, err := req.ToRequest()
	if err != nil {
		h.Error(c, err)
		return
	}

	number, err := h.processor.Transfer(ctx, transferReq)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.CreatedBody(c, dto.TransferResponse{Number: number})
}

// History handles GET /stock-movements - lists ledger entries with filtering.
func (h *MovementHandler) History(c *gin.Context) {
	ctx := c.Request.Context()

	filter := ledger.HistoryFilter{
		ProductID:   h.ParseIDQuery(c, "productId"),
		VariationID: h.ParseIDQuery(c, "variationId"),
		BranchID:    h.ParseIDQuery(c, "branchId"),
		ReferenceID: h.ParseIDQuery(c, "referenceId"),
		Limit:       h.ParseIntQuery(c, "limit", 50),
		Offset:      h.ParseIntQuery(c, "offset", 0),
	}

	if movementType := c.Query("type"); movementType != "" {
		mt := entity.MovementType(movementType)
		filter.MovementType = &mt
	}
	if refType := c.Query("referenceType"); refType != "" {
		rt := entity.ReferenceType(refType)
		filter.ReferenceType = &rt
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

	records, err := h.ledger.History(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.MovementResponse, 0, len(records))
	for i := range records {
		items = append(items, dto.FromMovement(&records[i]))
	}

	h.OK(c, dto.ListResponse{
		Items:  items,
		Count:  len(items),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}
