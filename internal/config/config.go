package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                   string        `mapstructure:"PORT"`
	Env                    string        `mapstructure:"ENV"`
	LogLevel               string        `mapstructure:"LOG_LEVEL"`
	DatabaseURL            string        `mapstructure:"DATABASE_URL"`
	DBMaxConns             int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns             int32         `mapstructure:"DB_MIN_CONNS"`
	JWTSecret              string        `mapstructure:"JWT_SECRET"`
	JWTTTL                 time.Duration `mapstructure:"JWT_TTL"`
	ResendAPIKey           string        `mapstructure:"RESEND_API_KEY"`
	EmailFrom              string        `mapstructure:"EMAIL_FROM"`
	FrontendURL            string        `mapstructure:"FRONTEND_URL"`
	CORSOrigins            []string      `mapstructure:"CORS_ORIGINS"`
	RedisURL               string        `mapstructure:"REDIS_URL"`
	RateLimitRPS           float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst         int           `mapstructure:"RATE_LIMIT_BURST"`
	AuthRateLimitPerMinute int           `mapstructure:"AUTH_RATE_LIMIT_PER_MINUTE"`
	RequestTimeout         time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit              string        `mapstructure:"BODY_LIMIT"`
	TrialDays              int           `mapstructure:"TRIAL_DAYS"`
	VerificationCodeTTL    time.Duration `mapstructure:"VERIFICATION_CODE_TTL"`
	ResetTokenTTL          time.Duration `mapstructure:"RESET_TOKEN_TTL"`
	ReminderEnabled        bool          `mapstructure:"REMINDER_ENABLED"`
	ReminderSchedule       string        `mapstructure:"REMINDER_SCHEDULE"`
	ReminderWindow         time.Duration `mapstructure:"REMINDER_WINDOW"`
	TrialWarning           time.Duration `mapstructure:"TRIAL_WARNING"`
	PaymentWebhookSecret   string        `mapstructure:"PAYMENT_WEBHOOK_SECRET"`
}

// devJWTSecret signs tokens when ENV=development and no secret is configured.
const devJWTSecret = "pacigest-development-secret-do-not-use-in-prod"

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("EMAIL_FROM", "PaciGest Plus <no-reply@pacigest.app>")
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("AUTH_RATE_LIMIT_PER_MINUTE", 10)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("BODY_LIMIT", "2M")
	v.SetDefault("TRIAL_DAYS", 7)
	v.SetDefault("VERIFICATION_CODE_TTL", "15m")
	v.SetDefault("RESET_TOKEN_TTL", "1h")
	v.SetDefault("REMINDER_ENABLED", true)
	v.SetDefault("REMINDER_SCHEDULE", "@every 10m")
	v.SetDefault("REMINDER_WINDOW", "15m")
	v.SetDefault("TRIAL_WARNING", "72h")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "LOG_LEVEL", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"JWT_SECRET", "JWT_TTL", "RESEND_API_KEY", "EMAIL_FROM", "FRONTEND_URL", "CORS_ORIGINS",
		"REDIS_URL", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "AUTH_RATE_LIMIT_PER_MINUTE",
		"REQUEST_TIMEOUT", "BODY_LIMIT", "TRIAL_DAYS", "VERIFICATION_CODE_TTL", "RESET_TOKEN_TTL",
		"REMINDER_ENABLED", "REMINDER_SCHEDULE", "REMINDER_WINDOW", "TRIAL_WARNING",
		"PAYMENT_WEBHOOK_SECRET",
	} {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 0 {
		origins := v.GetString("CORS_ORIGINS")
		if origins == "" {
			origins = cfg.FrontendURL
		}
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" && cfg.IsDev() {
		log.Println("WARNING: JWT_SECRET is not set; using the built-in development secret.")
		cfg.JWTSecret = devJWTSecret
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// EmailEnabled reports whether outbound mail goes to the Resend API rather
// than to the log.
func (c *Config) EmailEnabled() bool {
	return c.ResendAPIKey != ""
}

// Validate checks that the configuration is safe to run. Outside development
// JWT_SECRET must be set and at least 32 characters long, and the reminder
// window must not be wider than the lead time it brackets.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if !c.IsDev() && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters outside development, got %d", len(c.JWTSecret))
	}
	if !c.IsDev() && c.JWTSecret == devJWTSecret {
		return fmt.Errorf("JWT_SECRET must not use the development default when ENV=%q", c.Env)
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	if c.TrialDays < 0 {
		return fmt.Errorf("TRIAL_DAYS must not be negative")
	}
	if c.VerificationCodeTTL <= 0 || c.ResetTokenTTL <= 0 {
		return fmt.Errorf("VERIFICATION_CODE_TTL and RESET_TOKEN_TTL must be positive")
	}
	if c.ReminderEnabled {
		if c.ReminderSchedule == "" {
			return fmt.Errorf("REMINDER_SCHEDULE is required when REMINDER_ENABLED is true")
		}
		if c.ReminderWindow <= 0 || c.ReminderWindow >= 2*time.Hour {
			return fmt.Errorf("REMINDER_WINDOW must be between 0 and 2h, got %s", c.ReminderWindow)
		}
	}
	if c.IsProduction() && !c.EmailEnabled() {
		return fmt.Errorf("RESEND_API_KEY is required in production")
	}
	if c.PaymentWebhookSecret != "" && len(c.PaymentWebhookSecret) < 16 {
		return fmt.Errorf("PAYMENT_WEBHOOK_SECRET must be at least 16 characters")
	}
	return nil
}
