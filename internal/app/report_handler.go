package app

import (
	"net/http"

	"commentengine/internal/service"
	"commentengine/internal/util"

	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	reportService service.ReportService
}

func NewReportHandler(reportService service.ReportService) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
	}
}

// SubmitReport handles a reader reporting a comment
// POST /api/v1/reports
func (h *ReportHandler) SubmitReport(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	var req service.SubmitReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	report, reportCount, err := h.reportService.SubmitReport(c.Request.Context(), userID.(string), req)
	if err != nil {
		util.FromError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusCreated, "Report submitted successfully", gin.H{
		"report":       report,
		"report_count": reportCount,
	})
}

// ListOpenReports handles the moderator review list
// GET /api/v1/moderation/reports
func (h *ReportHandler) ListOpenReports(c *gin.Context) {
	limit, offset := paginationParams(c, 20, 100)

	reports, total, err := h.reportService.ListOpenReports(c.Request.Context(), limit, offset)
	if err != nil {
		util.FromError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Reports retrieved successfully", gin.H{
		"reports": reports,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// ListReportsByComment handles listing all reports against one comment
// GET /api/v1/moderation/comments/:id/reports
func (h *ReportHandler) ListReportsByComment(c *gin.Context) {
	commentID := c.Param("id")
	if commentID == "" {
		util.BadRequest(c, "Comment ID is required")
		return
	}

	reports, err := h.reportService.ListReportsByComment(c.Request.Context(), commentID)
	if err != nil {
		util.FromError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Reports retrieved successfully", gin.H{"reports": reports})
}

// DismissReport handles closing a report as unfounded
// POST /api/v1/moderation/reports/:id/dismiss
func (h *ReportHandler) DismissReport(c *gin.Context) {
	moderatorID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	reportID := c.Param("id")
	if reportID == "" {
		util.BadRequest(c, "Report ID is required")
		return
	}

	if err := h.reportService.DismissReport(c.Request.Context(), moderatorID.(string), reportID); err != nil {
		util.FromError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Report dismissed", nil)
}

// ConfirmReport handles closing a report as valid
// POST /api/v1/moderation/reports/:id/confirm
func (h *ReportHandler) ConfirmReport(c *gin.Context) {
	moderatorID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	reportID := c.Param("id")
	if reportID == "" {
		util.BadRequest(c, "Report ID is required")
		return
	}

	if err := h.reportService.ConfirmReport(c.Request.Context(), moderatorID.(string), reportID); err != nil {
		util.FromError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Report confirmed", nil)
}
