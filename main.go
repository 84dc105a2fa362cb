// Package main provides the main entry point for the Kappa API
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/amirphl/Kappa/app/handlers"
	"github.com/amirphl/Kappa/app/middleware"
	"github.com/amirphl/Kappa/app/router"
	"github.com/amirphl/Kappa/app/services"
	businessflow "github.com/amirphl/Kappa/business_flow"
	"github.com/amirphl/Kappa/config"
	"github.com/amirphl/Kappa/migrations"
	"github.com/amirphl/Kappa/repository"
	"github.com/amirphl/Kappa/utils"
	"github.com/amirphl/Kappa/views"
	"github.com/gofiber/fiber/v3"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logWriter := initializeLogging(cfg.Logging)
	log.Println("Starting Kappa application...")

	app, err := initializeApplication(cfg, logWriter)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.router.Start(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	// after the server so in-flight renders can finish
	for _, fn := range app.stopFuncs {
		fn()
	}

	log.Println("Server stopped")
}

// initializeLogging routes the standard logger to stdout, a rotated file, or both
func initializeLogging(cfg config.LoggingConfig) io.Writer {
	log.SetFlags(0)

	if cfg.Output == "stdout" || cfg.FilePath == "" {
		log.SetOutput(os.Stdout)
		return os.Stdout
	}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		log.Printf("Failed to create log directory, logging to stdout: %v", err)
		return os.Stdout
	}

	rotated := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	var w io.Writer = rotated
	if cfg.Output == "both" {
		w = io.MultiWriter(os.Stdout, rotated)
	}
	log.SetOutput(w)
	return w
}

// runMigrations applies the embedded goose migrations over a lib/pq connection
func runMigrations(cfg config.DatabaseConfig) error {
	sqlDB, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer sqlDB.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := migrations.Up(ctx, sqlDB); err != nil {
		return err
	}
	log.Println("Database migrations applied")
	return nil
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache connects to redis when the cache is enabled
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established (db=%d)", cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor periodically pings redis. The returned function stops it.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(monitorCtx, 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

func initializeNotificationService(cfg config.EmailConfig) services.NotificationService {
	if cfg.Provider == "mock" || cfg.Host == "" {
		log.Println("Mail provider: mock")
		return services.NewNotificationService(services.NewMockEmailProvider())
	}
	return services.NewNotificationService(services.NewSMTPEmailProvider(
		cfg.Host, cfg.Port, cfg.Secure, cfg.Username, cfg.Password, cfg.FromEmail,
	))
}

func initializeRenderer(cfg config.RendererConfig) (*services.ChromePDFRenderer, *services.ChromePrinter, error) {
	var templates fs.FS = views.Templates
	if cfg.TemplatesDir != "" {
		templates = os.DirFS(cfg.TemplatesDir)
	}

	printer := services.NewChromePrinter(cfg.ChromePath)
	renderer, err := services.NewPDFRenderer(templates, printer, cfg.Timeout)
	if err != nil {
		printer.Close()
		return nil, nil, fmt.Errorf("failed to initialize renderer: %w", err)
	}
	return renderer, printer, nil
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig, logWriter io.Writer) (*Application, error) {
	var stopFuncs []func()

	if cfg.Database.AutoMigrate {
		if err := runMigrations(cfg.Database); err != nil {
			return nil, err
		}
	}

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, cfg.Cache.HealthInterval))
	}

	accountRepo := repository.NewAccountRepository(db)
	reportRepo := repository.NewReportLogRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	transactor := repository.NewGormTransactor(db)

	tokenService, err := services.NewTokenService(
		cfg.JWT.SessionTTL,
		cfg.JWT.ResetTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	notificationService := initializeNotificationService(cfg.Email)

	var (
		locker         services.KeyedLocker = services.NewMemoryLocker()
		consumedTokens services.ConsumedTokenStore
	)
	if rc != nil {
		locker = services.NewRedisLocker(rc, cfg.Cache.RedisPrefix, cfg.Renderer.Timeout+cfg.Completion.Timeout, 0)
	}
	if cfg.Policy.SingleUseResetTokens {
		if rc != nil {
			consumedTokens = services.NewRedisTokenStore(rc, cfg.Cache.RedisPrefix+utils.ConsumedResetKeyPrefix)
		} else {
			consumedTokens = services.NewMemoryTokenStore()
		}
	}

	var captchaService services.CaptchaService
	if cfg.Policy.CaptchaEnabled {
		var challenges services.ChallengeStore
		if rc != nil {
			challenges = services.NewRedisChallengeStore(rc, cfg.Cache.RedisPrefix+"captcha:")
		} else {
			storeCtx, cancel := context.WithCancel(context.Background())
			stopFuncs = append(stopFuncs, cancel)
			challenges = services.NewMemoryChallengeStore(storeCtx)
		}
		captchaService, err = services.NewCaptchaServiceRotate(challenges, cfg.Policy.CaptchaTTL, 15, 220)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize captcha: %w", err)
		}
	}

	fileStore, err := services.NewLocalFileStore(cfg.Storage.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize upload directory: %w", err)
	}

	renderer, printer, err := initializeRenderer(cfg.Renderer)
	if err != nil {
		return nil, err
	}
	stopFuncs = append(stopFuncs, printer.Close)

	completion := services.NewOpenAIClient(services.CompletionConfig{
		APIKey:      cfg.Completion.APIKey,
		BaseURL:     cfg.Completion.BaseURL,
		Model:       cfg.Completion.Model,
		Temperature: cfg.Completion.Temperature,
		Timeout:     cfg.Completion.Timeout,
		MaxRetries:  cfg.Completion.MaxRetries,
	})
	if cfg.Completion.APIKey == "" {
		log.Println("OPENAI_API_KEY not set, document generation will fail")
	}

	var archive services.ReportArchive
	if cfg.Storage.ArchiveEnabled {
		s3Archive, err := services.NewS3ReportArchive(context.Background(), services.S3ArchiveConfig{
			Region:     cfg.Storage.S3Region,
			Endpoint:   cfg.Storage.S3Endpoint,
			AccessKey:  cfg.Storage.S3AccessKey,
			SecretKey:  cfg.Storage.S3SecretKey,
			Bucket:     cfg.Storage.S3Bucket,
			PresignTTL: cfg.Storage.S3PresignTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize report archive: %w", err)
		}
		archive = s3Archive
		log.Printf("Report archive enabled (bucket=%s)", cfg.Storage.S3Bucket)
	}

	authFlow := businessflow.NewAuthFlow(
		accountRepo,
		auditRepo,
		transactor,
		tokenService,
		notificationService,
		captchaService,
		consumedTokens,
		businessflow.AuthPolicy{
			BcryptCost:            cfg.Security.BcryptCost,
			FrontendURL:           cfg.Frontend.URL,
			UniformForgotResponse: cfg.Policy.UniformForgotResponse,
			SingleUseResetTokens:  cfg.Policy.SingleUseResetTokens,
			CaptchaEnabled:        cfg.Policy.CaptchaEnabled,
		},
	)
	onboardingFlow := businessflow.NewOnboardingFlow(accountRepo, auditRepo)
	uploadFlow := businessflow.NewUploadFlow(accountRepo, auditRepo, fileStore, businessflow.UploadPolicy{
		MaxFileSize:      cfg.Storage.MaxFileSize,
		LogoMaxDimension: cfg.Storage.LogoMaxDimension,
	})
	documentFlow := businessflow.NewDocumentFlow(
		accountRepo,
		reportRepo,
		auditRepo,
		completion,
		renderer,
		fileStore,
		archive,
		locker,
	)
	adminFlow := businessflow.NewAdminFlow(
		accountRepo,
		reportRepo,
		auditRepo,
		transactor,
		notificationService,
		archive,
		businessflow.AdminPolicy{
			DefaultLimit: cfg.Policy.AdminListDefaultLimit,
			MaxLimit:     cfg.Policy.AdminListMaxLimit,
			FrontendURL:  cfg.Frontend.URL,
			BcryptCost:   cfg.Security.BcryptCost,
		},
	)

	authMiddleware := middleware.NewAuthMiddleware(tokenService, onboardingFlow)

	appRouter := router.NewFiberRouter(
		router.Config{
			Environment:     cfg.Environment,
			AllowedOrigins:  cfg.Security.AllowedOrigins,
			BodyLimit:       cfg.Server.BodyLimit,
			ReadTimeout:     cfg.Server.ReadTimeout,
			WriteTimeout:    cfg.Server.WriteTimeout,
			IdleTimeout:     cfg.Server.IdleTimeout,
			GlobalRateLimit: cfg.Security.GlobalRateLimit,
			AuthRateLimit:   cfg.Security.AuthRateLimit,
			RateLimitWindow: cfg.Security.RateLimitWindow,
			UploadDir:       cfg.Storage.UploadDir,
			MetricsEnabled:  cfg.Metrics.Enabled,
			MetricsPath:     cfg.Metrics.Path,
			RequireProfile:  cfg.Policy.OnboardingRequireProfile,
			LogWriter:       logWriter,
		},
		router.Handlers{
			Auth:       handlers.NewAuthHandler(authFlow),
			Onboarding: handlers.NewOnboardingHandler(onboardingFlow),
			Upload:     handlers.NewUploadHandler(uploadFlow),
			Document:   handlers.NewDocumentHandler(documentFlow),
			Admin:      handlers.NewAdminHandler(adminFlow),
		},
		authMiddleware,
	)

	return &Application{
		router:    appRouter,
		config:    cfg,
		server:    appRouter.GetApp(),
		stopFuncs: stopFuncs,
	}, nil
}
