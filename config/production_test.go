package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("FRONTEND_URL", "https://app.example.com")
}

func TestLoadProductionConfig_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadProductionConfig()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, time.Hour, cfg.JWT.SessionTTL)
	assert.Equal(t, 15*time.Minute, cfg.JWT.ResetTTL)
	assert.Equal(t, "gpt-4o", cfg.Completion.Model)
	assert.InDelta(t, 0.3, cfg.Completion.Temperature, 1e-9)
	assert.Equal(t, "uploads", cfg.Storage.UploadDir)
	assert.Equal(t, int64(10*1024*1024), cfg.Storage.MaxFileSize)
	assert.Equal(t, 10, cfg.Security.BcryptCost)
	assert.Equal(t, []string{"*"}, cfg.Security.AllowedOrigins)
	assert.False(t, cfg.Policy.UniformForgotResponse)
	assert.False(t, cfg.Policy.SingleUseResetTokens)
	assert.False(t, cfg.Policy.OnboardingRequireProfile)
	assert.False(t, cfg.Policy.CaptchaEnabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.True(t, cfg.IsProduction())
}

func TestLoadProductionConfig_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "8081")
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("OPENAI_TIMEOUT", "45")
	t.Setenv("RENDER_TIMEOUT", "2m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("ONBOARDING_REQUIRE_PROFILE", "true")
	t.Setenv("APP_ENV", "development")

	cfg, err := LoadProductionConfig()
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port, "PORT wins over SERVER_PORT")
	assert.Equal(t, 45*time.Second, cfg.Completion.Timeout)
	assert.Equal(t, 2*time.Minute, cfg.Renderer.Timeout)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Security.AllowedOrigins)
	assert.True(t, cfg.Policy.OnboardingRequireProfile)
	assert.False(t, cfg.IsProduction())
}

func TestLoadProductionConfig_MissingRequired(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("FRONTEND_URL", "")

	_, err := LoadProductionConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
	assert.Contains(t, err.Error(), "JWT_SECRET is required")
	assert.Contains(t, err.Error(), "FRONTEND_URL is required")
}

func TestValidateProductionConfig_Archive(t *testing.T) {
	setRequired(t)
	t.Setenv("REPORT_ARCHIVE_ENABLED", "true")
	t.Setenv("S3_BUCKET", "")

	_, err := LoadProductionConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S3_BUCKET is required")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "kappa", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=kappa sslmode=disable", d.DSN())

	d.URL = "postgres://u:p@db/kappa"
	assert.Equal(t, "postgres://u:p@db/kappa", d.DSN())
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nKAPPA_TEST_A=\"quoted\"\nexport KAPPA_TEST_B=plain\nKAPPA_TEST_C=from-file\nnot a pair\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("KAPPA_TEST_C", "from-env")
	t.Cleanup(func() {
		os.Unsetenv("KAPPA_TEST_A")
		os.Unsetenv("KAPPA_TEST_B")
	})

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "quoted", os.Getenv("KAPPA_TEST_A"))
	assert.Equal(t, "plain", os.Getenv("KAPPA_TEST_B"))
	assert.Equal(t, "from-env", os.Getenv("KAPPA_TEST_C"))

	assert.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}
