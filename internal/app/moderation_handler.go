package app

import (
	"net/http"
	"time"

	"commentengine/internal/repository"
	"commentengine/internal/service"
	"commentengine/internal/util"

	"github.com/gin-gonic/gin"
)

type ModerationHandler struct {
	queueService service.QueueService
}

func NewModerationHandler(queueService service.QueueService) *ModerationHandler {
	return &ModerationHandler{
		queueService: queueService,
	}
}

// BulkActionRequest carries one moderator action over a batch of comments.
// Notify defaults to true when omitted.
type BulkActionRequest struct {
	Action     string   `json:"action" binding:"required,oneof=approve reject hide spam"`
	CommentIDs []string `json:"comment_ids" binding:"required,min=1,max=100,dive,uuid"`
	Note       string   `json:"note" binding:"omitempty,max=500"`
	Notify     *bool    `json:"notify"`
}

// ListQueue handles the filtered moderation queue listing
// GET /api/v1/moderation/queue
func (h *ModerationHandler) ListQueue(c *gin.Context) {
	limit, offset := paginationParams(c, 20, 100)

	filter := repository.QueueFilter{
		RiskLevel: c.Query("risk_level"),
		Keyword:   c.Query("keyword"),
		Limit:     limit,
		Offset:    offset,
	}
	if statuses, ok := c.GetQueryArray("status"); ok {
		filter.Statuses = statuses
	}
	if from := c.Query("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filter.From = &t
		}
	}
	if to := c.Query("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filter.To = &t
		}
	}

	comments, total, err := h.queueService.ListQueue(c.Request.Context(), filter)
	if err != nil {
		util.FromError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Queue retrieved successfully", gin.H{
		"comments": comments,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

// BulkAction handles applying one action to a batch of comments
// POST /api/v1/moderation/actions
func (h *ModerationHandler) BulkAction(c *gin.Context) {
	moderatorID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	var req BulkActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	notify := req.Notify == nil || *req.Notify
	results := h.queueService.BulkAction(c.Request.Context(), moderatorID.(string), service.BulkActionInput{
		Action:     req.Action,
		CommentIDs: req.CommentIDs,
		Note:       req.Note,
		Notify:     notify,
	})

	// The batch call itself succeeds; per-comment outcomes are in the body.
	util.SuccessResponse(c, http.StatusOK, "Bulk action processed", gin.H{"results": results})
}

// GetModerationStats handles the moderator dashboard aggregates
// GET /api/v1/moderation/stats
func (h *ModerationHandler) GetModerationStats(c *gin.Context) {
	stats, err := h.queueService.GetModerationStats(c.Request.Context())
	if err != nil {
		util.FromError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Moderation stats retrieved successfully", gin.H{"stats": stats})
}

// GetModerationHistory handles the audit trail for one comment
// GET /api/v1/moderation/comments/:id/history
func (h *ModerationHandler) GetModerationHistory(c *gin.Context) {
	commentID := c.Param("id")
	if commentID == "" {
		util.BadRequest(c, "Comment ID is required")
		return
	}

	history, err := h.queueService.GetModerationHistory(c.Request.Context(), commentID)
	if err != nil {
		util.FromError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Moderation history retrieved successfully", gin.H{"history": history})
}
