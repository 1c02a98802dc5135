package app

import (
	"net/http"
	"strconv"

	"commentengine/internal/service"
	"commentengine/internal/util"

	"github.com/gin-gonic/gin"
)

type CommentHandler struct {
	commentService service.CommentService
}

func NewCommentHandler(commentService service.CommentService) *CommentHandler {
	return &CommentHandler{
		commentService: commentService,
	}
}

// CreateComment handles comment creation
// POST /api/v1/comments
func (h *CommentHandler) CreateComment(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	var req service.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	comment, err := h.commentService.CreateComment(c.Request.Context(), userID.(string), req)
	if err != nil {
		util.FromError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusCreated, "Comment created successfully", gin.H{"comment": comment})
}

// GetComment handles getting a comment by ID
// GET /api/v1/comments/:id
func (h *CommentHandler) GetComment(c *gin.Context) {
	commentID := c.Param("id")
	if commentID == "" {
		util.BadRequest(c, "Comment ID is required")
		return
	}

	comment, err := h.commentService.GetCommentByID(c.Request.Context(), commentID)
	if err != nil {
		util.FromError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Comment retrieved successfully", gin.H{"comment": comment})
}

// GetCommentsByPost handles getting the comment tree for a post
// GET /api/v1/posts/:id/comments
func (h *CommentHandler) GetCommentsByPost(c *gin.Context) {
	postID := c.Param("id")
	if postID == "" {
		util.BadRequest(c, "Post ID is required")
		return
	}

	limit, offset := paginationParams(c, 50, 500)

	comments, total, err := h.commentService.GetCommentsByPostID(c.Request.Context(), postID, limit, offset)
	if err != nil {
		util.FromError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Comments retrieved successfully", gin.H{
		"comments": comments,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

// GetThread handles getting a comment with its full reply subtree
// GET /api/v1/comments/:id/thread
func (h *CommentHandler) GetThread(c *gin.Context) {
	commentID := c.Param("id")
	if commentID == "" {
		util.BadRequest(c, "Comment ID is required")
		return
	}

	thread, err := h.commentService.GetThread(c.Request.Context(), commentID)
	if err != nil {
		util.FromError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Thread retrieved successfully", gin.H{"thread": thread})
}

// DeleteComment handles the author soft-deleting their own comment
// DELETE /api/v1/comments/:id
func (h *CommentHandler) DeleteComment(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	commentID := c.Param("id")
	if commentID == "" {
		util.BadRequest(c, "Comment ID is required")
		return
	}

	if err := h.commentService.DeleteComment(c.Request.Context(), userID.(string), commentID); err != nil {
		util.FromError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Comment deleted successfully", nil)
}

// GetCommentStats handles getting aggregate stats for a post's discussion
// GET /api/v1/posts/:id/comments/stats
func (h *CommentHandler) GetCommentStats(c *gin.Context) {
	postID := c.Param("id")
	if postID == "" {
		util.BadRequest(c, "Post ID is required")
		return
	}

	stats, err := h.commentService.GetCommentStats(c.Request.Context(), postID)
	if err != nil {
		util.FromError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Comment stats retrieved successfully", gin.H{"stats": stats})
}

func paginationParams(c *gin.Context, defaultLimit, maxLimit int) (int, int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	return limit, offset
}
