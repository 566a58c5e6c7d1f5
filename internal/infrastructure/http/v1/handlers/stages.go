package handlers

import (
	"github.com/gin-gonic/gin"

	"shopfloor/internal/domain/adjustment"
	"shopfloor/internal/domain/allocation"
	"shopfloor/internal/domain/production"
	"shopfloor/internal/domain/stages"
	"shopfloor/internal/infrastructure/http/v1/dto"
)

// StageHandler serves stage counters, WIP and manual adjustments.
type StageHandler struct {
	*BaseHandler
	stages    *stages.Service
	store     *production.Store
	allocator *allocation.Allocator
	adjust    *adjustment.Service
}

// NewStageHandler creates a stage handler.
func NewStageHandler(base *BaseHandler, stageSvc *stages.Service, store *production.Store, alloc *allocation.Allocator, adjust *adjustment.Service) *StageHandler {
	return &StageHandler{BaseHandler: base, stages: stageSvc, store: store, allocator: alloc, adjust: adjust}
}

// Get handles GET /stages/:id.
func (h *StageHandler) Get(c *gin.Context) {
	stageID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	stage, err := h.stages.GetByID(c.Request.Context(), stageID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromStage(stage))
}

// Archive handles POST /stages/:id/archive.
func (h *StageHandler) Archive(c *gin.Context) {
	stageID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	stage, err := h.stages.Archive(c.Request.Context(), stageID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromStage(stage))
}

// WIP handles GET /stages/:id/wip.
func (h *StageHandler) WIP(c *gin.Context) {
	stageID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	balances, err := h.store.Aggregate(c.Request.Context(), stageID, production.AggregateOptions{
		IncludeArchived: c.Query("includeArchived") == "true",
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	if balances == nil {
		balances = []production.WIPBalance{}
	}
	h.OK(c, gin.H{"stageId": stageID.String(), "batches": balances})
}

// AllocationDraft handles POST /stages/:id/allocation-draft.
func (h *StageHandler) AllocationDraft(c *gin.Context) {
	stageID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.AllocationDraftRequest
	if !h.BindJSON(c, &req) {
		return
	}
	draft, err := h.allocator.Draft(c.Request.Context(), allocation.DraftRequest{
		StageID:  stageID,
		Quantity: req.Quantity,
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, draft)
}

// Adjust handles POST /stages/:id/adjustments.
func (h *StageHandler) Adjust(c *gin.Context) {
	stageID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.AdjustmentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	kind, err := production.ParseKind(req.Kind)
	if err != nil {
		h.Error(c, err)
		return
	}

	adj := adjustment.Request{
		StageID:   stageID,
		Kind:      kind,
		Quantity:  req.Quantity,
		BatchCode: req.BatchCode,
		Note:      req.Note,
	}
	if req.Date != nil {
		adj.Date = *req.Date
	}

	res, err := h.adjust.Post(c.Request.Context(), adj)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, gin.H{
		"report": dto.FromReport(res.Report),
		"stage":  dto.FromStage(res.Stage),
		"scrap":  res.Scrap,
	})
}
