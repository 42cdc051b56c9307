package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"eduhub-chat/internal/auth"
	"eduhub-chat/internal/chat"
	"eduhub-chat/internal/config"
	"eduhub-chat/internal/db"
	"eduhub-chat/internal/handlers"
	"eduhub-chat/internal/logger"
	"eduhub-chat/internal/middleware"
	"eduhub-chat/internal/observability"
	"eduhub-chat/internal/rabbitmq"
	"eduhub-chat/internal/repositories"
	"eduhub-chat/internal/telemetry"
	"eduhub-chat/internal/ws"
)

const serviceName = "eduhub-chat"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("load config: " + err.Error())
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic("init logger: " + err.Error())
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.OTLPEndpoint, serviceName, cfg.Env, log)
	if err != nil {
		log.Fatal("failed to init tracing", zap.Error(err))
	}

	database, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatal("failed to connect to db", zap.Error(err))
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	log.Info("event publisher ready",
		zap.String("mode", rabbitmq.PublisherMode(publisher)),
		zap.String("noop_reason", rabbitmq.PublisherNoopReason(publisher)))
	emitter := telemetry.NewAuditEmitter(publisher, "audit.chat", serviceName, cfg.Env, log)

	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET is empty, every socket connects as a guest")
	}
	verifier := auth.NewVerifier(cfg.JWTSecret)

	messageRepo := repositories.NewMessageRepo(database)
	roomRepo := repositories.NewRoomRepo(database)

	coord := chat.NewCoordinator(chat.Options{
		Resolver:         chat.NewIdentityResolver(verifier, nil, log),
		Store:            messageRepo,
		Logger:           log,
		TypingTimeout:    cfg.Chat.TypingTimeout,
		MessageCacheSize: cfg.Chat.MessageCacheSize,
		PersistTimeout:   cfg.Chat.PersistTimeout,
		EchoToSender:     cfg.Chat.EchoToSender,
	})
	coordDone := make(chan struct{})
	go func() {
		coord.Run(ctx)
		close(coordDone)
	}()

	messageHandler := handlers.NewMessageHandler(messageRepo, coord, emitter, log)
	roomHandler := handlers.NewRoomHandler(roomRepo, messageRepo, emitter, log)
	stickerHandler := handlers.NewStickerHandler(cfg.StickersDir, log)
	chatWS := ws.NewChatWebSocketHandler(coord, log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	requireIdentity := middleware.RequireIdentity(verifier)

	api := router.Group("/api")
	api.GET("/chats", messageHandler.ListMessages)
	api.GET("/chats/general", messageHandler.ListGeneral)
	api.POST("/chats", requireIdentity, messageHandler.SaveMessage)
	api.POST("/chats/general", requireIdentity, messageHandler.SaveGeneral)
	api.GET("/chats/online", messageHandler.OnlineUsers)
	api.PUT("/chats/:message_id/seen", requireIdentity, messageHandler.MarkSeen)

	api.GET("/rooms", middleware.OptionalIdentity(verifier), roomHandler.ListRooms)
	api.POST("/rooms", requireIdentity, roomHandler.CreateRoom)
	api.GET("/rooms/:room_id", roomHandler.GetRoom)
	api.POST("/rooms/:room_id/join", requireIdentity, roomHandler.JoinRoom)
	api.POST("/rooms/:room_id/leave", requireIdentity, roomHandler.LeaveRoom)
	api.GET("/rooms/:room_id/messages", roomHandler.RoomMessages)
	stickerHandler.Register(router, api)

	router.GET("/ws", chatWS.Handle)
	router.GET("/metrics", gin.WrapH(observability.Handler()))
	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	handlers.RegisterDebugRoutes(router, emitter, coord, cfg.DebugRoutes)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("chat service listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	<-coordDone
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracing shutdown", zap.Error(err))
	}
}
