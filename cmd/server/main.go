package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"obit-optout.backend/internal/config"
	"obit-optout.backend/internal/infrastructure/jobs"
	"obit-optout.backend/internal/infrastructure/repositories"
	"obit-optout.backend/internal/interfaces/http/handlers"
	"obit-optout.backend/internal/interfaces/http/middleware"
	"obit-optout.backend/internal/metrics"
	"obit-optout.backend/internal/notifier"
	"obit-optout.backend/internal/usecases"
	"obit-optout.backend/pkg/jwt"
	"obit-optout.backend/pkg/logger"
	"obit-optout.backend/pkg/redis"
)

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	initLog    = logger.Init
	initRedis  = redis.Init
	openDB     = func(dsn string) (*gorm.DB, error) {
		return gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), &gorm.Config{
			PrepareStmt: false,
		})
	}
	newNotifier = func(cfg notifier.Config) (notifier.Notifier, error) {
		return notifier.NewSMTPNotifier(cfg)
	}
	runServer = func(r *gin.Engine, port string) error { return r.Run(":" + port) }
	getStdDB  = func(db *gorm.DB) (*sql.DB, error) { return db.DB() }
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	// Load .env file
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := loadCfg()

	// Initialize Logger
	initLog(cfg.Server.Env)
	logger.Info(context.Background(), "Logger initialized", zap.String("env", cfg.Server.Env))

	// Initialize Redis
	if err := initRedis(cfg.Redis.URL, cfg.Redis.Password); err != nil {
		logger.Error(context.Background(), "Failed to initialize Redis", zap.Error(err))
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	logger.Info(context.Background(), "Redis initialized")

	// Set Gin mode
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database using GORM
	dsn := cfg.Database.URL()
	db, err := openDB(dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := getStdDB(db)
	if err != nil {
		return fmt.Errorf("failed to get generic database object: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		log.Printf("⚠️ Database not available: %v (endpoints will return errors)", err)
	} else {
		log.Println("✅ Connected to PostgreSQL via GORM")
	}

	// Initialize JWT service
	jwtService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry)

	// Initialize repositories
	suppressionRepo := repositories.NewSuppressionRepository(db)
	listingRepo := repositories.NewListingRepository(db)

	// Initialize rate limiter
	limiter := redis.NewFixedWindowLimiter(
		redis.GetClient(),
		"optout:rl",
		cfg.OptOut.RateLimitMax,
		cfg.OptOut.RateLimitWindow,
	)

	// Initialize mail notifier
	notif, err := newNotifier(notifier.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		FromName: cfg.SMTP.FromName,
		TLS:      cfg.SMTP.TLS,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize mail notifier: %w", err)
	}

	// Initialize usecases
	optOutUsecase := usecases.NewOptOutUsecase(suppressionRepo, listingRepo, limiter, notif, usecases.OptOutConfig{
		PublicBaseURL:       cfg.OptOut.PublicBaseURL,
		AdminEmail:          cfg.OptOut.AdminEmail,
		TokenTTL:            cfg.OptOut.TokenTTL,
		DuplicatePendingMax: cfg.OptOut.DuplicatePendingMax,
		NotifyTimeout:       cfg.OptOut.NotifyTimeout,
	})
	adminUsecase := usecases.NewAdminUsecase(suppressionRepo, listingRepo)

	// Initialize handlers
	optOutHandler := handlers.NewOptOutHandler(optOutUsecase)
	adminHandler := handlers.NewAdminHandler(adminUsecase, optOutUsecase)
	ingestHandler := handlers.NewIngestHandler(adminUsecase)

	// Operator auth middleware
	operatorAuth := middleware.OperatorAuthMiddleware(jwtService)

	// Register Prometheus collectors
	metrics.MustRegister()

	// Start background jobs
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	digestJob := jobs.NewReviewDigestJob(suppressionRepo, notif, cfg.OptOut.AdminEmail, cfg.OptOut.DigestInterval)
	go digestJob.Start(ctx)

	// Initialize router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())

	applyCORSMiddleware(r)
	registerHealthRoute(r)
	registerMetricsRoute(r)
	registerAPIV1Routes(r, routeDeps{
		optOutHandler: optOutHandler,
		adminHandler:  adminHandler,
		ingestHandler: ingestHandler,
		operatorAuth:  operatorAuth,
	})

	// Graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("🛑 Shutting down server...")
		digestJob.Stop()
		cancel()
	}()

	// Start server
	log.Printf("🚀 Obituary Opt-Out Backend starting on port %s", cfg.Server.Port)
	log.Printf("📚 API: http://localhost:%s/api/v1", cfg.Server.Port)
	log.Printf("❤️ Health: http://localhost:%s/health", cfg.Server.Port)

	if err := runServer(r, cfg.Server.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}
