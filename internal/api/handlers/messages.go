package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dohuyhi210/realtime-chat-app/internal/api/middleware"
	"github.com/dohuyhi210/realtime-chat-app/internal/logger"
	"github.com/dohuyhi210/realtime-chat-app/internal/store"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// MessagesHandler serves paginated chat history and unread counts.
type MessagesHandler struct {
	messages store.MessageQueries
	groups   store.GroupQueries
}

// NewMessagesHandler creates a messages handler.
func NewMessagesHandler(messages store.MessageQueries, groups store.GroupQueries) *MessagesHandler {
	return &MessagesHandler{messages: messages, groups: groups}
}

type messageItem struct {
	ID             string `json:"id"`
	SenderID       string `json:"senderId"`
	SenderNickname string `json:"senderNickname"`
	ReceiverID     string `json:"receiverId,omitempty"`
	GroupID        string `json:"groupId,omitempty"`
	Content        string `json:"content"`
	Timestamp      int64  `json:"timestamp"`
	IsRead         bool   `json:"isRead"`
}

func toMessageItems(msgs []store.Message) []messageItem {
	items := make([]messageItem, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, messageItem{
			ID:             m.ID,
			SenderID:       m.SenderID,
			SenderNickname: m.SenderNickname,
			ReceiverID:     m.ReceiverID,
			GroupID:        m.GroupID,
			Content:        m.Content,
			Timestamp:      m.Timestamp,
			IsRead:         m.IsRead,
		})
	}
	return items
}

// pageParams parses 1-based pagination query parameters.
func pageParams(c *gin.Context) (page, pageSize int) {
	page = 1
	if raw := c.Query("page"); raw != "" {
		if p, err := strconv.Atoi(raw); err == nil && p > 0 {
			page = p
		}
	}
	pageSize = defaultPageSize
	if raw := c.Query("pageSize"); raw != "" {
		if s, err := strconv.Atoi(raw); err == nil && s > 0 {
			pageSize = s
		}
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// GetPrivateHistory returns one page of the private thread between the
// caller and the given user, most recent first.
func (h *MessagesHandler) GetPrivateHistory(c *gin.Context) {
	callerID, _ := middleware.GetUserID(c)
	otherID := c.Param("userId")
	page, pageSize := pageParams(c)

	msgs, total, err := h.messages.PrivateHistory(c.Request.Context(), callerID, otherID, page, pageSize)
	if err != nil {
		logger.Errorf("private history %s<->%s: %v", callerID, otherID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"count":      len(msgs),
		"messages":   toMessageItems(msgs),
		"pagination": store.NewPage(page, pageSize, total),
	})
}

// GetGroupHistory returns one page of a group thread, most recent first.
// Only current members may read it.
func (h *MessagesHandler) GetGroupHistory(c *gin.Context) {
	callerID, _ := middleware.GetUserID(c)
	groupID := c.Param("groupId")
	page, pageSize := pageParams(c)

	member, err := h.groups.IsGroupMember(c.Request.Context(), groupID, callerID)
	if err != nil {
		logger.Errorf("check membership of %s in %s: %v", callerID, groupID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member of this group"})
		return
	}

	msgs, total, err := h.messages.GroupHistory(c.Request.Context(), groupID, page, pageSize)
	if err != nil {
		logger.Errorf("group history %s: %v", groupID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"count":      len(msgs),
		"messages":   toMessageItems(msgs),
		"pagination": store.NewPage(page, pageSize, total),
	})
}

// GetUnreadCounts returns the caller's unread private message counts keyed
// by sender id.
func (h *MessagesHandler) GetUnreadCounts(c *gin.Context) {
	callerID, _ := middleware.GetUserID(c)

	counts, err := h.messages.UnreadCounts(c.Request.Context(), callerID)
	if err != nil {
		logger.Errorf("unread counts for %s: %v", callerID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"unread":  counts,
	})
}
