// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/amirphl/Kappa/app/dto"
	"github.com/amirphl/Kappa/app/handlers"
	"github.com/amirphl/Kappa/app/middleware"
	_ "github.com/amirphl/Kappa/docs"
	"github.com/amirphl/Kappa/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/gofiber/fiber/v3/middleware/static"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggo/swag"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// Config holds the router level settings
type Config struct {
	Environment     string
	AllowedOrigins  []string
	BodyLimit       int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	GlobalRateLimit int
	AuthRateLimit   int
	RateLimitWindow time.Duration
	UploadDir       string
	MetricsEnabled  bool
	MetricsPath     string
	// RequireProfile adds the company name check to upload and AI routes
	RequireProfile bool
	// LogWriter receives access logs; nil means stdout
	LogWriter io.Writer
}

// Handlers groups the HTTP handlers mounted by the router
type Handlers struct {
	Auth       handlers.AuthHandlerInterface
	Onboarding handlers.OnboardingHandlerInterface
	Upload     handlers.UploadHandlerInterface
	Document   handlers.DocumentHandlerInterface
	Admin      handlers.AdminHandlerInterface
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app            *fiber.App
	cfg            Config
	handlers       Handlers
	authMiddleware *middleware.AuthMiddleware
	startedAt      time.Time
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(cfg Config, h Handlers, authMiddleware *middleware.AuthMiddleware) Router {
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = 60 * 1024 * 1024
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
	}
	if cfg.LogWriter == nil {
		cfg.LogWriter = os.Stdout
	}

	app := fiber.New(fiber.Config{
		AppName:      "Kappa API",
		ServerHeader: "Kappa",
		ErrorHandler: errorHandler,
		BodyLimit:    cfg.BodyLimit,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return &FiberRouter{
		app:            app,
		cfg:            cfg,
		handlers:       h,
		authMiddleware: authMiddleware,
		startedAt:      time.Now(),
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	r.setupMiddleware()

	r.app.Get("/health", r.healthCheck)
	if r.cfg.MetricsEnabled {
		r.app.Get(r.cfg.MetricsPath, adaptor.HTTPHandler(promhttp.Handler()))
	}

	// uploaded logos, images and stored reports
	r.app.Use("/uploads", static.New(r.cfg.UploadDir))
	r.app.Use("/api/uploads", static.New(r.cfg.UploadDir, static.Config{
		Next: func(c fiber.Ctx) bool {
			// multipart posts go to the upload handlers
			return c.Method() != fiber.MethodGet && c.Method() != fiber.MethodHead
		},
	}))

	api := r.app.Group("/api")
	api.Get("/health", r.apiHealthCheck)

	if r.cfg.Environment != "production" {
		api.Get("/swagger.json", r.serveSwaggerJSON)
		log.Println("API documentation enabled")
	}

	if r.cfg.GlobalRateLimit > 0 {
		api.Use(newLimiter(r.cfg.GlobalRateLimit, r.cfg.RateLimitWindow))
	}

	authLimit := func(c fiber.Ctx) error { return c.Next() }
	if r.cfg.AuthRateLimit > 0 {
		authLimit = newLimiter(r.cfg.AuthRateLimit, r.cfg.RateLimitWindow)
	}

	authenticate := r.authMiddleware.Authenticate()
	onboarded := r.authMiddleware.RequireOnboarding(r.cfg.RequireProfile)

	// Credential and session routes never pass the onboarding gate
	api.Post("/register", authLimit, r.handlers.Auth.Register)
	api.Post("/login", authLimit, r.handlers.Auth.Login)
	api.Post("/forgot-password", authLimit, r.handlers.Auth.ForgotPassword)
	api.Post("/reset-password", authLimit, r.handlers.Auth.ResetPassword)
	api.Get("/captcha", authLimit, r.handlers.Auth.Captcha)
	api.Patch("/update-password", authenticate, r.handlers.Auth.UpdatePassword)
	api.Patch("/update-profile", authenticate, r.handlers.Auth.UpdateProfile)
	api.Get("/profile", authenticate, r.handlers.Auth.GetProfile)
	api.Post("/changed-password", authenticate, r.handlers.Onboarding.ChangedPassword)
	api.Post("/accepted-terms", authenticate, r.handlers.Onboarding.AcceptedTerms)

	uploads := api.Group("/uploads", authenticate, onboarded)
	uploads.Post("/logo", r.handlers.Upload.UploadLogo)
	uploads.Post("/images", r.handlers.Upload.UploadImages)

	ai := api.Group("/ai", authenticate, onboarded)
	ai.Post("/invoice-demand", r.handlers.Document.InvoiceDemand)
	ai.Post("/leak-detection", r.handlers.Document.LeakDetection)

	admin := api.Group("/admin", authenticate, r.authMiddleware.RequireAdmin())
	admin.Get("/users", r.handlers.Admin.ListUsers)
	admin.Post("/users/invite", r.handlers.Admin.InviteUser)
	admin.Patch("/users/:id/promote", r.handlers.Admin.PromoteUser)
	admin.Delete("/users/:id", r.handlers.Admin.DeleteUser)
	admin.Get("/reports", r.handlers.Admin.ListReports)
	admin.Get("/reports/export", r.handlers.Admin.ExportReports)
	admin.Get("/reports/:id/download", r.handlers.Admin.DownloadReport)

	r.app.Use(r.notFoundHandler)

	log.Println("Routes configured successfully")
}

func (r *FiberRouter) setupMiddleware() {
	r.app.Use(requestid.New(requestid.Config{
		Header:    "X-Request-ID",
		Generator: generateRequestID,
	}))

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s","ip":"%s"}`,
				utils.UTCNow().Format(time.RFC3339),
				requestid.FromContext(c),
				e,
				c.Path(),
				c.Method(),
				c.IP(),
			)
		},
	}))

	// generated PDFs embed data URLs and are opened cross-origin by the frontend
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "0",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "SAMEORIGIN",
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		CrossOriginEmbedderPolicy: "unsafe-none",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "cross-origin",
		OriginAgentCluster:        "?1",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	allowCredentials := true
	for _, origin := range r.cfg.AllowedOrigins {
		if origin == "*" {
			// fiber rejects wildcard origins with credentials
			allowCredentials = false
		}
	}
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: r.cfg.AllowedOrigins,
		AllowMethods: []string{
			"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
			"X-Requested-With",
			"X-Request-ID",
		},
		ExposeHeaders: []string{
			"X-Request-ID",
			"X-Total-Count",
			"Content-Disposition",
		},
		AllowCredentials: allowCredentials,
		MaxAge:           utils.CORSMaxAge,
	}))

	r.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
		Next: func(c fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/api/ai/") ||
				strings.HasPrefix(c.Path(), "/uploads/")
		},
	}))

	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","pid":"${pid}","request_id":"${respHeader:X-Request-ID}","level":"info","method":"${method}","path":"${path}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Stream:     r.cfg.LogWriter,
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/health" || c.Path() == "/api/health"
		},
	}))

	if r.cfg.MetricsEnabled {
		r.app.Use(middleware.Metrics(r.cfg.MetricsPath))
	}
}

func newLimiter(max int, window time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return handlers.ErrorResponse(c, fiber.StatusTooManyRequests, "Too many requests. Please try again later.", "RATE_LIMIT_EXCEEDED")
		},
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/api/health"
		},
	})
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	log.Printf("Starting server on %s", address)
	return r.app.Listen(address)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// healthCheck reports liveness and process uptime
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} dto.HealthResponse
// @Router /health [get]
func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.HealthResponse{
		Status: "ok",
		Uptime: time.Since(r.startedAt).Seconds(),
	})
}

// apiHealthCheck
// @Summary API health check
// @Tags Health
// @Produce json
// @Success 200 {object} dto.MessageResponse
// @Router /api/health [get]
func (r *FiberRouter) apiHealthCheck(c fiber.Ctx) error {
	return c.JSON(dto.MessageResponse{Message: "API is running"})
}

func (r *FiberRouter) serveSwaggerJSON(c fiber.Ctx) error {
	doc, err := swag.ReadDoc()
	if err != nil {
		return handlers.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load Swagger documentation", "SWAGGER_LOAD_ERROR")
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.SendString(doc)
}

func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return handlers.ErrorResponse(c, fiber.StatusNotFound, "Not found", "NOT_FOUND")
}

// errorHandler turns unhandled errors into the flat error body
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		if code < fiber.StatusInternalServerError {
			message = e.Message
		}
	}

	log.Printf(`{"time":"%s","level":"error","request_id":"%s","status":%d,"path":"%s","error":%q}`,
		utils.UTCNow().Format(time.RFC3339),
		requestid.FromContext(c),
		code,
		c.Path(),
		err.Error(),
	)

	return handlers.ErrorResponse(c, code, message, "INTERNAL_ERROR")
}

func generateRequestID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
