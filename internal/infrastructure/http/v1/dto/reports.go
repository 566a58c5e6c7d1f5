package dto

import (
	"time"

	"shopfloor/internal/core/types"
	"shopfloor/internal/domain/allocation"
	"shopfloor/internal/domain/production"
	"shopfloor/internal/domain/submission"
)

// SelectionRequest names how much of one upstream batch a report consumes.
type SelectionRequest struct {
	ReportID string         `json:"reportId" binding:"required"`
	Quantity types.Quantity `json:"quantity"`
}

// SubmitReportRequest is a worker's production report.
type SubmitReportRequest struct {
	StageID       string             `json:"stageId" binding:"required"`
	Quantity      types.Quantity     `json:"quantity"`
	ScrapQuantity types.Quantity     `json:"scrapQuantity"`
	BatchCode     string             `json:"batchCode,omitempty"`
	Note          string             `json:"note,omitempty"`
	Date          *time.Time         `json:"date,omitempty"`
	Selections    []SelectionRequest `json:"selections,omitempty" binding:"dive"`
}

// ToRequest converts the body into a submission request.
func (r *SubmitReportRequest) ToRequest() (submission.Request, error) {
	stageID, err := parseID("stageId", r.StageID)
	if err != nil {
		return submission.Request{}, err
	}
	req := submission.Request{
		StageID:       stageID,
		Quantity:      r.Quantity,
		ScrapQuantity: r.ScrapQuantity,
		BatchCode:     r.BatchCode,
		Note:          r.Note,
	}
	if r.Date != nil {
		req.Date = *r.Date
	}
	for _, sel := range r.Selections {
		reportID, err := parseID("selections.reportId", sel.ReportID)
		if err != nil {
			return submission.Request{}, err
		}
		req.Selections = append(req.Selections, allocation.Selection{ReportID: reportID, Quantity: sel.Quantity})
	}
	return req, nil
}

// EditReportRequest changes the split of a pending report.
type EditReportRequest struct {
	Quantity      types.Quantity `json:"quantity"`
	ScrapQuantity types.Quantity `json:"scrapQuantity"`
	Note          *string        `json:"note,omitempty"`
	Version       int            `json:"version" binding:"required,min=1"`
}

// RejectReportRequest carries the rejection reason.
type RejectReportRequest struct {
	Reason string `json:"reason"`
}

// ReportResponse is the API view of a production report.
type ReportResponse struct {
	*production.Report
	Remaining types.Quantity `json:"remaining"`
}

// FromReport creates ReportResponse from production.Report.
func FromReport(r *production.Report) ReportResponse {
	return ReportResponse{Report: r, Remaining: r.Remaining()}
}

// SubmitReportResponse is the submission result with shortfall warnings.
type SubmitReportResponse struct {
	Report   ReportResponse                         `json:"report"`
	Warnings []allocation.InsufficientSupplyWarning `json:"warnings"`
}

// FromSubmission maps a submission result.
func FromSubmission(res *submission.Result) SubmitReportResponse {
	warnings := res.Warnings
	if warnings == nil {
		warnings = []allocation.InsufficientSupplyWarning{}
	}
	return SubmitReportResponse{Report: FromReport(res.Report), Warnings: warnings}
}
