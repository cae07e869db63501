package main

import (
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/dohuyhi210/realtime-chat-app/internal/api/handlers"
	"github.com/dohuyhi210/realtime-chat-app/internal/api/middleware"
	"github.com/dohuyhi210/realtime-chat-app/internal/config"
	"github.com/dohuyhi210/realtime-chat-app/internal/crypto"
	"github.com/dohuyhi210/realtime-chat-app/internal/logger"
	"github.com/dohuyhi210/realtime-chat-app/internal/store"
	"github.com/dohuyhi210/realtime-chat-app/internal/websocket"
)

func main() {
	cfg, err := config.Load(config.Overrides{})
	if err != nil {
		logger.Errorf("Failed to load config: %v", err)
		os.Exit(1)
	}

	if cfg.Debug {
		logger.SetLevel(logger.LevelDebug)
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Infof("Opening database: %s", cfg.DatabasePath)
	db, err := store.OpenSQLite(cfg.DatabasePath)
	if err != nil {
		logger.Errorf("Failed to open database: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	jwtManager, err := crypto.NewJWTManager(cfg.MasterSecret)
	if err != nil {
		logger.Errorf("Failed to create JWT manager: %v", err)
		os.Exit(1)
	}

	// Realtime core: registry -> fanout -> presence -> router.
	registry := websocket.NewRegistry()
	fanout := websocket.NewFanout(registry)
	presence := websocket.NewPresence(registry, fanout, db, time.Now)
	wsRouter := websocket.NewRouter(db, db, db, registry, fanout)
	wsServer := websocket.NewServer(registry, presence, wsRouter, jwtManager)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"*"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	router.GET("/", func(c *gin.Context) {
		c.String(200, "Welcome to Chat Server!")
	})

	authHandler := handlers.NewAuthHandler(db, jwtManager)
	usersHandler := handlers.NewUsersHandler(db, presence)
	groupsHandler := handlers.NewGroupsHandler(db, db)
	messagesHandler := handlers.NewMessagesHandler(db, db)

	v1 := router.Group("/v1")
	{
		v1.POST("/auth/register", authHandler.PostRegister)
		v1.POST("/auth/login", authHandler.PostLogin)
	}

	protected := v1.Group("")
	protected.Use(middleware.AuthMiddleware(jwtManager))
	{
		protected.GET("/users", usersHandler.ListUsers)

		protected.GET("/groups", groupsHandler.ListGroups)
		protected.POST("/groups", groupsHandler.CreateGroup)
		protected.POST("/groups/:id/members", groupsHandler.AddMember)

		protected.GET("/messages/private/:userId", messagesHandler.GetPrivateHistory)
		protected.GET("/messages/group/:groupId", messagesHandler.GetGroupHistory)
		protected.GET("/messages/unread", messagesHandler.GetUnreadCounts)
	}

	// The websocket handshake authenticates via ?token= before the upgrade.
	router.GET("/ws", wsServer.HandleWebSocket)

	logger.Infof("Chat server starting on http://localhost%s", cfg.Addr)
	if err := router.Run(cfg.Addr); err != nil {
		logger.Errorf("Failed to start server: %v", err)
		os.Exit(1)
	}
}
