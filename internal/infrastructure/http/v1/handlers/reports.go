package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"shopfloor/internal/core/apperror"
	appctx "shopfloor/internal/core/context"
	"shopfloor/internal/domain/approval"
	"shopfloor/internal/domain/production"
	"shopfloor/internal/domain/submission"
	"shopfloor/internal/infrastructure/http/v1/dto"
)

// ReportHandler serves submission, review and approval of reports.
type ReportHandler struct {
	*BaseHandler
	submit *submission.Service
	store  *production.Store
	engine *approval.Engine
}

// NewReportHandler creates a report handler.
func NewReportHandler(base *BaseHandler, submitSvc *submission.Service, store *production.Store, engine *approval.Engine) *ReportHandler {
	return &ReportHandler{BaseHandler: base, submit: submitSvc, store: store, engine: engine}
}

// Submit handles POST /reports.
func (h *ReportHandler) Submit(c *gin.Context) {
	var body dto.SubmitReportRequest
	if !h.BindJSON(c, &body) {
		return
	}
	req, err := body.ToRequest()
	if err != nil {
		h.Error(c, err)
		return
	}
	res, err := h.submit.Submit(c.Request.Context(), req)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromSubmission(res))
}

// List handles GET /reports. Workers only see their own reports.
func (h *ReportHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	filter := production.ListFilter{ListFilter: h.ListFilter(c, "-date")}

	var ok bool
	if filter.StageID, ok = h.QueryID(c, "stageId"); !ok {
		return
	}
	if filter.OrderID, ok = h.QueryID(c, "orderId"); !ok {
		return
	}
	if s := c.Query("status"); s != "" {
		status := production.Status(s)
		filter.Status = &status
	}
	if k := c.Query("kind"); k != "" {
		kind, err := production.ParseKind(k)
		if err != nil {
			h.Error(c, err)
			return
		}
		filter.Kind = &kind
	}
	if b := c.Query("batchCode"); b != "" {
		filter.BatchCode = &b
	}
	for param, dst := range map[string]**time.Time{"dateFrom": &filter.DateFrom, "dateTo": &filter.DateTo} {
		raw := c.Query(param)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid date").WithDetail("param", param))
			return
		}
		*dst = &t
	}

	if appctx.HasAnyRole(ctx, appctx.RoleApprover, appctx.RoleAdmin) {
		if w := c.Query("workerId"); w != "" {
			filter.WorkerID = &w
		}
	} else {
		self := appctx.GetUserID(ctx)
		filter.WorkerID = &self
	}

	res, err := h.store.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromListResult(res, dto.FromReport))
}

// Get handles GET /reports/:id. A worker asking for another worker's
// report gets NOT_FOUND, as in List.
func (h *ReportHandler) Get(c *gin.Context) {
	reportID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	r, err := h.store.GetByID(ctx, reportID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if !production.CanAccess(ctx, r) {
		h.Error(c, apperror.NewNotFound("report", reportID.String()))
		return
	}
	h.OK(c, dto.FromReport(r))
}

// Edit handles PUT /reports/:id.
func (h *ReportHandler) Edit(c *gin.Context) {
	reportID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var body dto.EditReportRequest
	if !h.BindJSON(c, &body) {
		return
	}
	r, err := h.store.EditPending(c.Request.Context(), production.EditRequest{
		ReportID:      reportID,
		Quantity:      body.Quantity,
		ScrapQuantity: body.ScrapQuantity,
		Note:          body.Note,
		Version:       body.Version,
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromReport(r))
}

// Approve handles POST /reports/:id/approve.
func (h *ReportHandler) Approve(c *gin.Context) {
	reportID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	out, err := h.engine.Approve(c.Request.Context(), reportID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{
		"report":   dto.FromReport(out.Report),
		"stage":    dto.FromStage(out.Stage),
		"receipt":  out.Receipt,
		"scrap":    out.Scrap,
		"consumed": out.Consumed,
	})
}

// Reject handles POST /reports/:id/reject.
func (h *ReportHandler) Reject(c *gin.Context) {
	reportID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var body dto.RejectReportRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &body) {
		return
	}
	r, err := h.engine.Reject(c.Request.Context(), reportID, body.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromReport(r))
}
