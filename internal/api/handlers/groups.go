package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dohuyhi210/realtime-chat-app/internal/api/middleware"
	"github.com/dohuyhi210/realtime-chat-app/internal/logger"
	"github.com/dohuyhi210/realtime-chat-app/internal/store"
)

// GroupsHandler manages group chats and their membership.
type GroupsHandler struct {
	groups store.GroupQueries
	users  store.UserQueries
}

// NewGroupsHandler creates a groups handler.
func NewGroupsHandler(groups store.GroupQueries, users store.UserQueries) *GroupsHandler {
	return &GroupsHandler{groups: groups, users: users}
}

type createGroupRequest struct {
	Name string `json:"name" binding:"required"`
}

type addMemberRequest struct {
	UserID string `json:"userId" binding:"required"`
}

type groupListItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	OwnerID     string `json:"ownerId"`
	MemberCount int    `json:"memberCount"`
}

// CreateGroup creates a group owned by the caller. The owner becomes the
// first member.
func (h *GroupsHandler) CreateGroup(c *gin.Context) {
	callerID, _ := middleware.GetUserID(c)

	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := h.groups.CreateGroup(c.Request.Context(), req.Name, callerID)
	if err != nil {
		logger.Errorf("create group %q: %v", req.Name, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"group":   groupListItem{ID: group.ID, Name: group.Name, OwnerID: group.OwnerID, MemberCount: 1},
	})
}

// AddMember adds a user to a group. Only current members may add others.
func (h *GroupsHandler) AddMember(c *gin.Context) {
	callerID, _ := middleware.GetUserID(c)
	groupID := c.Param("id")

	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()

	member, err := h.groups.IsGroupMember(ctx, groupID, callerID)
	if err != nil {
		logger.Errorf("check membership of %s in %s: %v", callerID, groupID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member of this group"})
		return
	}

	exists, err := h.users.UserExists(ctx, req.UserID)
	if err != nil {
		logger.Errorf("check user %s: %v", req.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "user does not exist"})
		return
	}

	if err := h.groups.AddGroupMember(ctx, groupID, req.UserID); err != nil {
		logger.Errorf("add member %s to group %s: %v", req.UserID, groupID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListGroups returns the caller's groups.
func (h *GroupsHandler) ListGroups(c *gin.Context) {
	callerID, _ := middleware.GetUserID(c)
	ctx := c.Request.Context()

	groups, err := h.groups.ListGroups(ctx, callerID)
	if err != nil {
		logger.Errorf("list groups for %s: %v", callerID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	items := make([]groupListItem, 0, len(groups))
	for _, g := range groups {
		memberIDs, err := h.groups.GroupMemberIDs(ctx, g.ID)
		if err != nil {
			logger.Errorf("resolve members of group %s: %v", g.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		items = append(items, groupListItem{
			ID:          g.ID,
			Name:        g.Name,
			OwnerID:     g.OwnerID,
			MemberCount: len(memberIDs),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"groups":  items,
	})
}
