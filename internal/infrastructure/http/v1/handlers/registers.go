package handlers

import (
	"github.com/gin-gonic/gin"

	"shopfloor/internal/domain/registers/finishedgoods"
	"shopfloor/internal/domain/registers/scrap"
)

// RegisterHandler serves finished-goods stock and scrap records.
type RegisterHandler struct {
	*BaseHandler
	finished *finishedgoods.Service
	scrap    *scrap.Service
}

// NewRegisterHandler creates a register handler.
func NewRegisterHandler(base *BaseHandler, fg *finishedgoods.Service, scrapSvc *scrap.Service) *RegisterHandler {
	return &RegisterHandler{BaseHandler: base, finished: fg, scrap: scrapSvc}
}

// ListFinishedGoods handles GET /finished-goods.
func (h *RegisterHandler) ListFinishedGoods(c *gin.Context) {
	filter := finishedgoods.BalanceFilter{
		ListFilter:  h.ListFilter(c, "product_name"),
		ExcludeZero: c.Query("excludeZero") == "true",
		BelowMin:    c.Query("belowMin") == "true",
	}
	res, err := h.finished.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// GetFinishedGoods handles GET /finished-goods/:productId with its movements.
func (h *RegisterHandler) GetFinishedGoods(c *gin.Context) {
	productID, ok := h.ParamID(c, "productId")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	balance, err := h.finished.GetBalance(ctx, productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	movements, err := h.finished.Movements(ctx, productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if movements == nil {
		movements = []*finishedgoods.Movement{}
	}
	h.OK(c, gin.H{
		"balance":      balance,
		"belowMinimum": balance.BelowMinimum(),
		"movements":    movements,
	})
}

// ListScrap handles GET /scrap.
func (h *RegisterHandler) ListScrap(c *gin.Context) {
	filter := scrap.ListFilter{ListFilter: h.ListFilter(c, "-date")}

	var ok bool
	if filter.ProductID, ok = h.QueryID(c, "productId"); !ok {
		return
	}
	if filter.StageID, ok = h.QueryID(c, "stageId"); !ok {
		return
	}
	if filter.OrderID, ok = h.QueryID(c, "orderId"); !ok {
		return
	}
	if s := c.Query("source"); s != "" {
		source := scrap.Source(s)
		filter.Source = &source
	}

	res, err := h.scrap.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}
