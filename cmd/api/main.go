package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/guvercin/messaging-backend/internal/config"
	"github.com/guvercin/messaging-backend/internal/handler"
	"github.com/guvercin/messaging-backend/internal/middleware"
	"github.com/guvercin/messaging-backend/internal/migration"
	"github.com/guvercin/messaging-backend/internal/repository"
	"github.com/guvercin/messaging-backend/internal/routes"
	"github.com/guvercin/messaging-backend/internal/service"
	"github.com/guvercin/messaging-backend/internal/ws"
	"github.com/guvercin/messaging-backend/pkg/fcm"
	pkglogger "github.com/guvercin/messaging-backend/pkg/logger"
	pkgredis "github.com/guvercin/messaging-backend/pkg/redis"
	pkgstorage "github.com/guvercin/messaging-backend/pkg/storage"
)

// getConfigPath returns config file path based on APP_ENV environment variable
func getConfigPath() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("configs/config.%s.yaml", env)
}

func main() {
	config.LoadDotEnv()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	pkglogger.InitStructured(env)
	zlog := pkglogger.GetLogger()

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// MySQL: the durable message store
	db, err := initDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := migration.Run(db); err != nil {
		log.Fatalf("Failed to migrate schema: %v", err)
	}
	zlog.Info().Msg("Connected to MySQL")

	// Redis: user directory + push token store (read-only here)
	redisClient, err := pkgredis.NewClient(
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Redis.PoolSize,
	)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	zlog.Info().Msg("Connected to Redis")

	// Blob storage
	store, err := initStorage(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	// Push delivery
	var pushSender service.PushSender = service.DisabledSender{}
	if cfg.Push.Enabled {
		fcmClient, err := fcm.NewClient(context.Background(), cfg.Push.CredentialsFile)
		if err != nil {
			log.Fatalf("Failed to initialize FCM: %v", err)
		}
		pushSender = fcmClient
	} else {
		zlog.Info().Msg("Push delivery disabled")
	}

	// Repositories
	messageRepo := repository.NewMessageRepository(db)
	directory := repository.NewUserDirectory(redisClient)
	tokenStore := repository.NewPushTokenStore(redisClient)

	// Session registries: chat sessions and the seen channel
	sessions := ws.NewRegistry()
	seenSessions := ws.NewRegistry()

	// Services
	notifier := service.NewNotificationService(tokenStore, pushSender, cfg.Push.Title)
	fileService := service.NewFileService(messageRepo, store)
	deliveryService := service.NewDeliveryService(messageRepo, sessions, seenSessions, notifier)
	messageService := service.NewMessageService(messageRepo, fileService)

	// Handlers
	messageHandler := handler.NewMessageHandler(messageService)
	fileHandler := handler.NewFileHandler(fileService)
	directoryHandler := handler.NewDirectoryHandler(directory)
	wsHandler := handler.NewWSHandler(
		sessions, seenSessions,
		deliveryService, fileService, directory,
		cfg.Server.AllowedOrigins,
	)

	// Router
	if env != "local" && env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Metrics())
	router.Use(corsMiddleware(cfg))

	routes.Setup(router, messageHandler, fileHandler, directoryHandler, wsHandler)

	// Sample session gauges for /metrics
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			middleware.SetLiveSessions("chat", float64(sessions.Count()))
			middleware.SetLiveSessions("seen", float64(seenSessions.Count()))
		}
	}()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		zlog.Info().Int("port", cfg.Server.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zlog.Error().Err(err).Msg("server shutdown failed")
	}
}

func initDB(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	}
	db, err := gorm.Open(mysql.Open(cfg.Database.DSN()), gormCfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

func initStorage(cfg *config.Config) (pkgstorage.Storage, error) {
	switch cfg.Storage.Driver {
	case "s3":
		return pkgstorage.NewS3Client(pkgstorage.S3Config{
			Endpoint:        cfg.Storage.S3.Endpoint,
			Region:          cfg.Storage.S3.Region,
			AccessKeyID:     cfg.Storage.S3.AccessKeyID,
			SecretAccessKey: cfg.Storage.S3.SecretAccessKey,
			Bucket:          cfg.Storage.S3.Bucket,
			CDNURL:          cfg.Storage.S3.CDNURL,
			BasePath:        cfg.Storage.S3.BasePath,
			ForcePathStyle:  cfg.Storage.S3.ForcePathStyle,
		})
	case "local", "":
		return pkgstorage.NewLocal(cfg.Storage.LocalPath, cfg.Storage.PublicURL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	corsCfg := cors.DefaultConfig()
	if cfg.Server.AllowedOrigins == "" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = splitOrigins(cfg.Server.AllowedOrigins)
	}
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	return cors.New(corsCfg)
}

func splitOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
