// Package config provides configuration management and environment variable handling for the application
package config

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ProductionConfig holds all configuration for the service
type ProductionConfig struct {
	Environment string           `json:"environment"`
	Database    DatabaseConfig   `json:"database"`
	Server      ServerConfig     `json:"server"`
	Security    SecurityConfig   `json:"security"`
	JWT         JWTConfig        `json:"jwt"`
	Frontend    FrontendConfig   `json:"frontend"`
	Email       EmailConfig      `json:"email"`
	Completion  CompletionConfig `json:"completion"`
	Renderer    RendererConfig   `json:"renderer"`
	Storage     StorageConfig    `json:"storage"`
	Cache       CacheConfig      `json:"cache"`
	Policy      PolicyConfig     `json:"policy"`
	Logging     LoggingConfig    `json:"logging"`
	Metrics     MetricsConfig    `json:"metrics"`
}

type DatabaseConfig struct {
	URL             string        `json:"-"`
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"-"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	AutoMigrate     bool          `json:"auto_migrate"`
}

// DSN returns DATABASE_URL when set, otherwise a key/value DSN built from the parts
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	BodyLimit       int           `json:"body_limit"`
}

type SecurityConfig struct {
	AllowedOrigins  []string      `json:"allowed_origins"`
	AuthRateLimit   int           `json:"auth_rate_limit"`   // requests per window
	GlobalRateLimit int           `json:"global_rate_limit"` // requests per window
	RateLimitWindow time.Duration `json:"rate_limit_window"`
	BcryptCost      int           `json:"bcrypt_cost"`
}

type JWTConfig struct {
	SecretKey  string        `json:"-"`
	Issuer     string        `json:"issuer"`
	Audience   string        `json:"audience"`
	SessionTTL time.Duration `json:"session_ttl"`
	ResetTTL   time.Duration `json:"reset_ttl"`
}

type FrontendConfig struct {
	URL string `json:"url"`
}

type EmailConfig struct {
	Provider  string `json:"provider"` // smtp, mock
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Secure    bool   `json:"secure"`
	Username  string `json:"username"`
	Password  string `json:"-"`
	FromEmail string `json:"from_email"`
}

type CompletionConfig struct {
	APIKey      string        `json:"-"`
	BaseURL     string        `json:"base_url"`
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	Timeout     time.Duration `json:"timeout"`
	MaxRetries  int           `json:"max_retries"`
}

type RendererConfig struct {
	// TemplatesDir overrides the built-in templates when set
	TemplatesDir string        `json:"templates_dir"`
	ChromePath   string        `json:"chrome_path"`
	Timeout      time.Duration `json:"timeout"`
}

type StorageConfig struct {
	UploadDir        string        `json:"upload_dir"`
	MaxFileSize      int64         `json:"max_file_size"`
	LogoMaxDimension int           `json:"logo_max_dimension"`
	ArchiveEnabled   bool          `json:"archive_enabled"`
	S3Region         string        `json:"s3_region"`
	S3Endpoint       string        `json:"s3_endpoint"`
	S3AccessKey      string        `json:"-"`
	S3SecretKey      string        `json:"-"`
	S3Bucket         string        `json:"s3_bucket"`
	S3PresignTTL     time.Duration `json:"s3_presign_ttl"`
}

type CacheConfig struct {
	Enabled        bool          `json:"enabled"`
	RedisURL       string        `json:"redis_url"`
	RedisDB        int           `json:"redis_db"`
	RedisPrefix    string        `json:"redis_prefix"`
	HealthInterval time.Duration `json:"health_interval"`
}

// PolicyConfig holds behavior switches for auth, onboarding and admin listing
type PolicyConfig struct {
	UniformForgotResponse    bool          `json:"uniform_forgot_response"`
	SingleUseResetTokens     bool          `json:"single_use_reset_tokens"`
	OnboardingRequireProfile bool          `json:"onboarding_require_profile"`
	CaptchaEnabled           bool          `json:"captcha_enabled"`
	CaptchaTTL               time.Duration `json:"captcha_ttl"`
	AdminListDefaultLimit    int           `json:"admin_list_default_limit"`
	AdminListMaxLimit        int           `json:"admin_list_max_limit"`
}

type LoggingConfig struct {
	Level      string `json:"level"`  // debug, info, warn, error
	Output     string `json:"output"` // stdout, file, both
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// IsProduction reports whether APP_ENV is production
func (c *ProductionConfig) IsProduction() bool {
	return c.Environment == "production"
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	if err := loadEnvFile(".env"); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Environment: getEnvString("APP_ENV", "production"),
		Database: DatabaseConfig{
			URL:             getEnvString("DATABASE_URL", ""),
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "kappa"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("PORT", getEnvInt("SERVER_PORT", 3000)),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 3*time.Minute),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:       getEnvInt("SERVER_BODY_LIMIT", 60*1024*1024),
		},
		Security: SecurityConfig{
			AllowedOrigins:  getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AuthRateLimit:   getEnvInt("AUTH_RATE_LIMIT", 20),
			GlobalRateLimit: getEnvInt("GLOBAL_RATE_LIMIT", 600),
			RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
			BcryptCost:      getEnvInt("BCRYPT_COST", 10),
		},
		JWT: JWTConfig{
			SecretKey:  getEnvString("JWT_SECRET", ""),
			Issuer:     getEnvString("JWT_ISSUER", "kappa"),
			Audience:   getEnvString("JWT_AUDIENCE", "kappa-api"),
			SessionTTL: getEnvDuration("JWT_SESSION_TTL", time.Hour),
			ResetTTL:   getEnvDuration("JWT_RESET_TTL", 15*time.Minute),
		},
		Frontend: FrontendConfig{
			URL: getEnvString("FRONTEND_URL", ""),
		},
		Email: EmailConfig{
			Provider:  getEnvString("MAIL_PROVIDER", "smtp"),
			Host:      getEnvString("SMTP_HOST", ""),
			Port:      getEnvInt("SMTP_PORT", 587),
			Secure:    getEnvBool("SMTP_SECURE", false),
			Username:  getEnvString("SMTP_USER", ""),
			Password:  getEnvString("SMTP_PASS", ""),
			FromEmail: getEnvString("SMTP_FROM", ""),
		},
		Completion: CompletionConfig{
			APIKey:      getEnvString("OPENAI_API_KEY", ""),
			BaseURL:     getEnvString("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:       getEnvString("OPENAI_MODEL", "gpt-4o"),
			Temperature: getEnvFloat("OPENAI_TEMPERATURE", 0.3),
			Timeout:     getEnvDuration("OPENAI_TIMEOUT", 90*time.Second),
			MaxRetries:  getEnvInt("OPENAI_MAX_RETRIES", 3),
		},
		Renderer: RendererConfig{
			TemplatesDir: getEnvString("TEMPLATES_DIR", ""),
			ChromePath:   getEnvString("CHROME_PATH", ""),
			Timeout:      getEnvDuration("RENDER_TIMEOUT", 60*time.Second),
		},
		Storage: StorageConfig{
			UploadDir:        getEnvString("UPLOAD_DIR", "uploads"),
			MaxFileSize:      int64(getEnvInt("UPLOAD_MAX_FILE_SIZE", 10*1024*1024)),
			LogoMaxDimension: getEnvInt("LOGO_MAX_DIMENSION", 1024),
			ArchiveEnabled:   getEnvBool("REPORT_ARCHIVE_ENABLED", false),
			S3Region:         getEnvString("S3_REGION", "us-east-1"),
			S3Endpoint:       getEnvString("S3_ENDPOINT", ""),
			S3AccessKey:      getEnvString("S3_ACCESS_KEY", ""),
			S3SecretKey:      getEnvString("S3_SECRET_KEY", ""),
			S3Bucket:         getEnvString("S3_BUCKET", ""),
			S3PresignTTL:     getEnvDuration("S3_PRESIGN_TTL", 15*time.Minute),
		},
		Cache: CacheConfig{
			Enabled:        getEnvBool("CACHE_ENABLED", false),
			RedisURL:       getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:        getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix:    getEnvString("CACHE_REDIS_PREFIX", "kappa:"),
			HealthInterval: getEnvDuration("CACHE_HEALTH_INTERVAL", 30*time.Second),
		},
		Policy: PolicyConfig{
			UniformForgotResponse:    getEnvBool("AUTH_UNIFORM_FORGOT_RESPONSE", false),
			SingleUseResetTokens:     getEnvBool("RESET_TOKEN_SINGLE_USE", false),
			OnboardingRequireProfile: getEnvBool("ONBOARDING_REQUIRE_PROFILE", false),
			CaptchaEnabled:           getEnvBool("CAPTCHA_ENABLED", false),
			CaptchaTTL:               getEnvDuration("CAPTCHA_TTL", 2*time.Minute),
			AdminListDefaultLimit:    getEnvInt("ADMIN_LIST_DEFAULT_LIMIT", 0),
			AdminListMaxLimit:        getEnvInt("ADMIN_LIST_MAX_LIMIT", 500),
		},
		Logging: LoggingConfig{
			Level:      getEnvString("LOG_LEVEL", "info"),
			Output:     getEnvString("LOG_OUTPUT", "stdout"),
			FilePath:   getEnvString("LOG_FILE_PATH", "logs/kappa.log"),
			MaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:     getEnvInt("LOG_MAX_AGE", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
	}

	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads KEY=VALUE lines from path. Variables already present in
// the environment win.
func loadEnvFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if len(value) >= 2 && (value[0] == '"' && value[len(value)-1] == '"' ||
			value[0] == '\'' && value[len(value)-1] == '\'') {
			value = value[1 : len(value)-1]
		}

		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, value)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading %s: %w", path, err)
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") and bare seconds ("90")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig collects every configuration problem into one error
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	if cfg.JWT.SecretKey == "" {
		errors = append(errors, "JWT_SECRET is required")
	}
	if cfg.JWT.SessionTTL <= 0 {
		errors = append(errors, "JWT_SESSION_TTL must be positive")
	}
	if cfg.JWT.ResetTTL <= 0 {
		errors = append(errors, "JWT_RESET_TTL must be positive")
	}

	if cfg.Frontend.URL == "" {
		errors = append(errors, "FRONTEND_URL is required")
	} else if u, err := url.Parse(cfg.Frontend.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, "FRONTEND_URL must be an absolute URL")
	}

	if cfg.Database.URL == "" {
		if cfg.Database.Host == "" {
			errors = append(errors, "DB_HOST is required when DATABASE_URL is not set")
		}
		if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
			errors = append(errors, "DB_PORT must be between 1 and 65535")
		}
		if cfg.Database.Name == "" {
			errors = append(errors, "DB_NAME is required when DATABASE_URL is not set")
		}
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errors = append(errors, "SERVER_WRITE_TIMEOUT must be positive")
	}

	if cfg.Security.BcryptCost < 4 || cfg.Security.BcryptCost > 31 {
		errors = append(errors, "BCRYPT_COST must be between 4 and 31")
	}

	if cfg.Email.Provider != "smtp" && cfg.Email.Provider != "mock" {
		errors = append(errors, "MAIL_PROVIDER must be one of: smtp, mock")
	}
	if cfg.Email.Provider == "smtp" && cfg.Email.Host != "" && cfg.Email.FromEmail == "" {
		errors = append(errors, "SMTP_FROM is required when SMTP_HOST is set")
	}

	if cfg.Completion.Temperature < 0 || cfg.Completion.Temperature > 2 {
		errors = append(errors, "OPENAI_TEMPERATURE must be between 0 and 2")
	}
	if cfg.Completion.Timeout <= 0 {
		errors = append(errors, "OPENAI_TIMEOUT must be positive")
	}
	if cfg.Renderer.Timeout <= 0 {
		errors = append(errors, "RENDER_TIMEOUT must be positive")
	}

	if cfg.Storage.UploadDir == "" {
		errors = append(errors, "UPLOAD_DIR is required")
	}
	if cfg.Storage.MaxFileSize <= 0 {
		errors = append(errors, "UPLOAD_MAX_FILE_SIZE must be positive")
	}
	if cfg.Storage.ArchiveEnabled && cfg.Storage.S3Bucket == "" {
		errors = append(errors, "S3_BUCKET is required when REPORT_ARCHIVE_ENABLED is true")
	}

	if cfg.Cache.Enabled && cfg.Cache.RedisURL == "" {
		errors = append(errors, "CACHE_REDIS_URL is required when cache is enabled")
	}

	if cfg.Policy.AdminListDefaultLimit < 0 || cfg.Policy.AdminListMaxLimit < 0 {
		errors = append(errors, "ADMIN_LIST_DEFAULT_LIMIT and ADMIN_LIST_MAX_LIMIT must not be negative")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if cfg.Logging.Level != "" && !slices.Contains(validLevels, cfg.Logging.Level) {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
	}
	validOutputs := []string{"stdout", "file", "both"}
	if !slices.Contains(validOutputs, cfg.Logging.Output) {
		errors = append(errors, fmt.Sprintf("LOG_OUTPUT must be one of: %v", validOutputs))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
