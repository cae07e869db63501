package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dohuyhi210/realtime-chat-app/internal/api/middleware"
	"github.com/dohuyhi210/realtime-chat-app/internal/logger"
	"github.com/dohuyhi210/realtime-chat-app/internal/store"
	"github.com/dohuyhi210/realtime-chat-app/internal/websocket"
)

// UsersHandler lists users with their presence state.
type UsersHandler struct {
	users    store.UserQueries
	presence *websocket.Presence
}

// NewUsersHandler creates a users handler.
func NewUsersHandler(users store.UserQueries, presence *websocket.Presence) *UsersHandler {
	return &UsersHandler{users: users, presence: presence}
}

type userListItem struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
	IsOnline bool   `json:"isOnline"`
	LastSeen int64  `json:"lastSeen"`
}

// ListUsers returns every other user. The isOnline flag is read from the
// connection registry, the same source the realtime presence events use.
func (h *UsersHandler) ListUsers(c *gin.Context) {
	callerID, _ := middleware.GetUserID(c)

	users, err := h.users.ListUsers(c.Request.Context())
	if err != nil {
		logger.Errorf("list users: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	online := h.presence.OnlineSet()
	items := make([]userListItem, 0, len(users))
	for _, u := range users {
		if u.ID == callerID {
			continue
		}
		_, isOnline := online[u.ID]
		items = append(items, userListItem{
			ID:       u.ID,
			Username: u.Username,
			Nickname: u.Nickname,
			IsOnline: isOnline,
			LastSeen: u.LastSeen,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"users":   items,
	})
}
