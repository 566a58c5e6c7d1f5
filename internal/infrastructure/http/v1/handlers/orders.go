package handlers

import (
	"github.com/gin-gonic/gin"

	"shopfloor/internal/domain/orders"
	"shopfloor/internal/domain/progress"
	"shopfloor/internal/domain/stages"
	"shopfloor/internal/infrastructure/http/v1/dto"
)

// OrderHandler serves orders and their stages.
type OrderHandler struct {
	*BaseHandler
	orders   *orders.Service
	stages   *stages.Service
	progress *progress.Service
}

// NewOrderHandler creates an order handler.
func NewOrderHandler(base *BaseHandler, orderSvc *orders.Service, stageSvc *stages.Service, progressSvc *progress.Service) *OrderHandler {
	return &OrderHandler{BaseHandler: base, orders: orderSvc, stages: stageSvc, progress: progressSvc}
}

// Create handles POST /orders.
func (h *OrderHandler) Create(c *gin.Context) {
	var req dto.CreateOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	order, err := req.ToEntity()
	if err != nil {
		h.Error(c, err)
		return
	}
	if err := h.orders.Create(c.Request.Context(), order); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromOrder(order))
}

// List handles GET /orders.
func (h *OrderHandler) List(c *gin.Context) {
	filter := orders.ListFilter{ListFilter: h.ListFilter(c, "-created_at")}
	if s := c.Query("status"); s != "" {
		status := orders.Status(s)
		filter.Status = &status
	}
	productID, ok := h.QueryID(c, "productId")
	if !ok {
		return
	}
	filter.ProductID = productID

	res, err := h.orders.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromListResult(res, dto.FromOrder))
}

// Get handles GET /orders/:id.
func (h *OrderHandler) Get(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	order, err := h.orders.GetByID(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromOrder(order))
}

// Delete handles DELETE /orders/:id. Reports keep their snapshot fields.
func (h *OrderHandler) Delete(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.orders.Delete(c.Request.Context(), orderID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// CreateStage handles POST /orders/:id/stages.
func (h *OrderHandler) CreateStage(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.CreateStageRequest
	if !h.BindJSON(c, &req) {
		return
	}
	stage := req.ToEntity(orderID)
	if err := h.stages.Create(c.Request.Context(), stage); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromStage(stage))
}

// ListStages handles GET /orders/:id/stages.
func (h *OrderHandler) ListStages(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	list, err := h.stages.ListByOrder(c.Request.Context(), orderID, c.Query("includeArchived") == "true")
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": dto.FromStages(list)})
}

// Progress handles GET /orders/:id/progress.
func (h *OrderHandler) Progress(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	summary, err := h.progress.Order(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, summary)
}
