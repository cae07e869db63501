package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/dohuyhi210/realtime-chat-app/internal/crypto"
	"github.com/dohuyhi210/realtime-chat-app/internal/logger"
	"github.com/dohuyhi210/realtime-chat-app/internal/store"
)

// AuthHandler handles account registration and login.
type AuthHandler struct {
	users      store.UserQueries
	jwtManager *crypto.JWTManager
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(users store.UserQueries, jwtManager *crypto.JWTManager) *AuthHandler {
	return &AuthHandler{users: users, jwtManager: jwtManager}
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
	Nickname string `json:"nickname" binding:"required"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
}

// PostRegister creates a new account and returns a token for it.
func (h *AuthHandler) PostRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.users.GetUserByUsername(c.Request.Context(), req.Username); err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		logger.Errorf("lookup username %s: %v", req.Username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Errorf("hash password: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	user, err := h.users.CreateUser(c.Request.Context(), req.Username, req.Nickname, string(hash))
	if err != nil {
		logger.Errorf("create user %s: %v", req.Username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	token, err := h.jwtManager.CreateToken(user.ID, user.Nickname)
	if err != nil {
		logger.Errorf("create token for %s: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   token,
		"user":    userResponse{ID: user.ID, Username: user.Username, Nickname: user.Nickname},
	})
}

// PostLogin verifies credentials and returns a token.
func (h *AuthHandler) PostLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
			return
		}
		logger.Errorf("lookup username %s: %v", req.Username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}

	token, err := h.jwtManager.CreateToken(user.ID, user.Nickname)
	if err != nil {
		logger.Errorf("create token for %s: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   token,
		"user":    userResponse{ID: user.ID, Username: user.Username, Nickname: user.Nickname},
	})
}
