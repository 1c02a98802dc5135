package app

import (
	"net/http"

	"commentengine/internal/service"
	"commentengine/internal/util"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notificationService service.NotificationService
}

func NewNotificationHandler(notificationService service.NotificationService) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
	}
}

// GetNotifications handles listing the caller's notifications
// GET /api/v1/notifications
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	limit, offset := paginationParams(c, 20, 100)

	notifications, err := h.notificationService.GetNotifications(c.Request.Context(), userID.(string), limit, offset)
	if err != nil {
		util.FromError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Notifications retrieved successfully", gin.H{
		"notifications": notifications,
		"limit":         limit,
		"offset":        offset,
	})
}

// GetUnreadCount handles getting the caller's unread notification count
// GET /api/v1/notifications/unread/count
func (h *NotificationHandler) GetUnreadCount(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	count, err := h.notificationService.CountUnread(c.Request.Context(), userID.(string))
	if err != nil {
		util.FromError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Unread count retrieved successfully", gin.H{"count": count})
}

// MarkAsRead handles marking one notification as read
// PUT /api/v1/notifications/:id/read
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	notificationID := c.Param("id")
	if notificationID == "" {
		util.BadRequest(c, "Notification ID is required")
		return
	}

	count, err := h.notificationService.MarkAsRead(c.Request.Context(), userID.(string), notificationID)
	if err != nil {
		util.FromError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Notification marked as read", gin.H{"unread_count": count})
}

// MarkAllAsRead handles marking every notification as read
// PUT /api/v1/notifications/read-all
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	count, err := h.notificationService.MarkAllAsRead(c.Request.Context(), userID.(string))
	if err != nil {
		util.FromError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "All notifications marked as read", gin.H{"unread_count": count})
}
