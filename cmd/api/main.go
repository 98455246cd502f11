package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bookswap-go-api/internal/config"
	"github.com/noah-isme/bookswap-go-api/internal/database"
	"github.com/noah-isme/bookswap-go-api/internal/handler"
	"github.com/noah-isme/bookswap-go-api/internal/middleware"
	"github.com/noah-isme/bookswap-go-api/internal/models"
	"github.com/noah-isme/bookswap-go-api/internal/repository"
	"github.com/noah-isme/bookswap-go-api/internal/router"
	"github.com/noah-isme/bookswap-go-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.SwapNegotiation{}, &models.ChatMessage{}, &models.Notification{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, cross-node inbox fan-out disabled")
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		logger.Warn().Err(err).Msg("nats unavailable, cross-node notification fan-out disabled")
		natsConn = nil
	} else {
		defer natsConn.Close()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	negotiationRepo := repository.NewNegotiationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	userLookup := repository.NewUserLookup(db)
	bookLookup := repository.NewBookLookup(db)

	notifier := service.NewNotifierService(notificationRepo, redisClient, cfg.EventChannelBase, natsConn, cfg.DispatchQueue, logger)
	negotiationService := service.NewNegotiationService(negotiationRepo, userLookup, bookLookup, notifier, validate, logger)
	chatService := service.NewChatThreadService(negotiationRepo, messageRepo, notifier, validate, logger)
	inboxService := service.NewInboxService(negotiationRepo, messageRepo, userLookup, bookLookup, logger)

	runCtx, stopNotifier := context.WithCancel(context.Background())
	defer stopNotifier()
	notifier.Start(runCtx)

	negotiationHandler := handler.NewNegotiationHandler(negotiationService, logger)
	chatHandler := handler.NewChatHandler(chatService, logger)
	inboxHandler := handler.NewInboxHandler(inboxService, notifier, logger)
	notificationHandler := handler.NewNotificationHandler(notifier, logger, cfg.StreamKeepAlive)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		NegotiationHandler:  negotiationHandler,
		ChatHandler:         chatHandler,
		InboxHandler:        inboxHandler,
		NotificationHandler: notificationHandler,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
