package websocket

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dohuyhi210/realtime-chat-app/internal/crypto"
	"github.com/dohuyhi210/realtime-chat-app/internal/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server owns the websocket endpoint: it authenticates the handshake,
// registers the connection, and drives the per-connection read loop.
type Server struct {
	registry   *Registry
	presence   *Presence
	router     *Router
	jwtManager *crypto.JWTManager
}

// NewServer wires the websocket endpoint.
func NewServer(registry *Registry, presence *Presence, router *Router, jwtManager *crypto.JWTManager) *Server {
	return &Server{
		registry:   registry,
		presence:   presence,
		router:     router,
		jwtManager: jwtManager,
	}
}

// HandleWebSocket upgrades an authenticated request and runs its read loop.
//
// Identity is verified before the upgrade; a connection that cannot be
// authenticated is refused before any registry entry exists.
func (s *Server) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	claims, err := s.jwtManager.VerifyToken(token)
	if err != nil {
		logger.Warnf("websocket auth failed: %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	userID := claims.UserID

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("websocket upgrade error for user %s: %v", userID, err)
		return
	}

	peer := NewPeer(userID, conn)
	ctx := c.Request.Context()

	s.registry.Register(userID, peer)
	s.presence.Connected(ctx, userID)

	defer func() {
		// A superseded connection fails the handle match here and must not
		// broadcast offline for a user who is still online on a newer socket.
		// The request context may already be canceled at teardown, so the
		// last-seen persist runs on a fresh one.
		if s.registry.Unregister(userID, peer) {
			s.presence.Disconnected(context.Background(), userID)
		}
		peer.Close()
	}()

	for {
		frame, err := peer.ReadFrame()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warnf("websocket read error for user %s: %v", userID, err)
			}
			return
		}
		s.router.HandleFrame(ctx, userID, frame)
	}
}
