package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // LoadLocation in minimal images

	"github.com/zenbook/service-booking/internal/jobs"
	"github.com/zenbook/service-booking/internal/platform/config"
)

// StorageConfig selects and configures the image store.
type StorageConfig struct {
	Driver              string
	LocalRoot           string
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
}

// SuperAdminConfig describes the account bootstrapped at startup. Empty email disables it.
type SuperAdminConfig struct {
	Name     string
	Email    string
	Password string
}

// ServiceConfig holds all configuration for the booking service.
type ServiceConfig struct {
	Port           string
	AppEnv         string
	DBConfig       config.DatabaseConfig
	JWTConfig      config.JWTConfig
	KafkaConfig    config.KafkaConfig
	RedisConfig    config.RedisConfig
	Storage        StorageConfig
	PublicBaseURL  string
	FrontendURL    string
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
	ReminderCron   string
	// Location decides which calendar day is "today" for bookings and reminders.
	Location   *time.Location
	SuperAdmin SuperAdminConfig
}

// Load reads configuration from ZENBOOK_* environment variables.
func Load() (*ServiceConfig, error) {
	v, err := config.Load("ZENBOOK")
	if err != nil {
		return nil, err
	}

	v.SetDefault("DB_NAME", "zenbook")
	v.SetDefault("STORAGE_DRIVER", "local")
	v.SetDefault("STORAGE_LOCAL_ROOT", "./storage")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 1.0)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("REMINDER_CRON", jobs.DefaultReminderSpec)
	v.SetDefault("SUPERADMIN_NAME", "Super Admin")
	v.SetDefault("BUSINESS_TIMEZONE", "UTC")

	loc, err := time.LoadLocation(v.GetString("BUSINESS_TIMEZONE"))
	if err != nil {
		return nil, fmt.Errorf("invalid ZENBOOK_BUSINESS_TIMEZONE: %w", err)
	}

	cfg := &ServiceConfig{
		Port:        config.GetServicePort(v, "SERVICE_PORT"),
		AppEnv:      config.GetAppEnv(v),
		DBConfig:    config.LoadDatabaseConfig(v, "DB_NAME"),
		JWTConfig:   config.LoadJWTConfig(v),
		KafkaConfig: config.LoadKafkaConfig(v),
		RedisConfig: config.LoadRedisConfig(v),
		Storage: StorageConfig{
			Driver:              strings.ToLower(v.GetString("STORAGE_DRIVER")),
			LocalRoot:           v.GetString("STORAGE_LOCAL_ROOT"),
			CloudinaryCloudName: v.GetString("CLOUDINARY_CLOUD_NAME"),
			CloudinaryAPIKey:    v.GetString("CLOUDINARY_API_KEY"),
			CloudinaryAPISecret: v.GetString("CLOUDINARY_API_SECRET"),
		},
		PublicBaseURL:  strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),
		FrontendURL:    v.GetString("FRONTEND_URL"),
		AllowedOrigins: config.SplitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		RateLimitRPS:   v.GetFloat64("RATE_LIMIT_RPS"),
		RateLimitBurst: v.GetInt("RATE_LIMIT_BURST"),
		ReminderCron:   v.GetString("REMINDER_CRON"),
		Location:       loc,
		SuperAdmin: SuperAdminConfig{
			Name:     v.GetString("SUPERADMIN_NAME"),
			Email:    v.GetString("SUPERADMIN_EMAIL"),
			Password: v.GetString("SUPERADMIN_PASSWORD"),
		},
	}

	switch cfg.Storage.Driver {
	case "local":
	case "cloudinary":
		if cfg.Storage.CloudinaryCloudName == "" || cfg.Storage.CloudinaryAPIKey == "" || cfg.Storage.CloudinaryAPISecret == "" {
			return nil, fmt.Errorf("cloudinary storage requires ZENBOOK_CLOUDINARY_CLOUD_NAME, _API_KEY and _API_SECRET")
		}
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	return cfg, nil
}

// StorageBaseURL is the public prefix locally stored files are served under.
func (c *ServiceConfig) StorageBaseURL() string {
	return c.PublicBaseURL + "/api/v1/storage"
}
