package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/zenbook/service-booking/internal/application"
	"github.com/zenbook/service-booking/internal/config"
	"github.com/zenbook/service-booking/internal/events"
	"github.com/zenbook/service-booking/internal/handler"
	"github.com/zenbook/service-booking/internal/jobs"
	"github.com/zenbook/service-booking/internal/notification"
	"github.com/zenbook/service-booking/internal/platform/auth"
	"github.com/zenbook/service-booking/internal/platform/database"
	"github.com/zenbook/service-booking/internal/platform/health"
	"github.com/zenbook/service-booking/internal/platform/kafka"
	"github.com/zenbook/service-booking/internal/platform/logger"
	"github.com/zenbook/service-booking/internal/platform/metrics"
	"github.com/zenbook/service-booking/internal/platform/middleware"
	"github.com/zenbook/service-booking/internal/repository"
	"github.com/zenbook/service-booking/internal/storage"
	"github.com/zenbook/service-booking/migrations"
)

const serviceName = "service-booking"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting "+serviceName,
		zap.String("port", cfg.Port),
		zap.String("env", cfg.AppEnv),
		zap.String("storage", cfg.Storage.Driver),
	)

	// Connect to database and apply migrations
	dbConfig := database.PostgresConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.DBName,
		SSLMode:  cfg.DBConfig.SSLMode,
	}
	db, err := database.Connect(dbConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := database.RunMigrations(dbConfig.DatabaseURL(), migrations.FS, ".", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisConfig.Addr,
		Password: cfg.RedisConfig.Password,
		DB:       cfg.RedisConfig.DB,
	})
	defer func() { _ = redisClient.Close() }()

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(
		cfg.JWTConfig.Secret,
		cfg.JWTConfig.AccessTTL,
		cfg.JWTConfig.RefreshTTL,
	)

	// Initialize Kafka producer
	kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
	defer func() { _ = kafkaProducer.Close() }()

	// Initialize image storage
	store, err := newStore(cfg)
	if err != nil {
		log.Fatal("failed to initialize storage", zap.Error(err))
	}

	m := metrics.New()

	// Initialize repositories
	userRepo := repository.NewGormUserRepository(db)
	profileRepo := repository.NewGormTherapistRepository(db)
	bookingRepo := repository.NewGormBookingRepository(db)
	tokenStore := repository.NewRedisTokenStore(redisClient)

	// Initialize application services
	gate := application.NewAvailabilityGate(userRepo, profileRepo)
	bookingService := application.NewBookingService(bookingRepo, userRepo, gate, kafkaProducer, m, nil, log.Named("booking")).
		WithLocation(cfg.Location)
	therapistService := application.NewTherapistService(profileRepo, userRepo, bookingService, store.URL, kafkaProducer, nil, log.Named("therapist"))
	authService := application.NewAuthService(userRepo, profileRepo, tokenStore, jwtManager, application.AuthConfig{
		FrontendURL: cfg.FrontendURL,
	}, store.URL, kafkaProducer, nil, log.Named("auth"))
	profileService := application.NewProfileService(userRepo, profileRepo, store, nil, log.Named("profile"))
	adminService := application.NewAdminService(userRepo, profileRepo, bookingService, store, 0, nil, log.Named("admin"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.SuperAdmin.Email != "" {
		if err := adminService.EnsureSuperAdmin(ctx, cfg.SuperAdmin.Name, cfg.SuperAdmin.Email, cfg.SuperAdmin.Password); err != nil {
			log.Fatal("failed to bootstrap super admin", zap.Error(err))
		}
	}

	// Start notification consumer
	groupID := cfg.KafkaConfig.GroupPrefix + "booking-notifications"
	notificationConsumer := events.NewNotificationConsumer(
		cfg.KafkaConfig.Brokers,
		groupID,
		userRepo,
		notification.NewLogMailer(log.Named("mail")),
		log,
	)
	defer func() { _ = notificationConsumer.Close() }()

	go func() {
		log.Info("starting notification consumer")
		if err := notificationConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("notification consumer error", zap.Error(err))
		}
	}()

	// Start reminder job
	businessNow := func() time.Time { return time.Now().In(cfg.Location) }
	scheduler := jobs.NewScheduler(bookingService, businessNow, log.Named("jobs"))
	if err := scheduler.Start(cfg.ReminderCron); err != nil {
		log.Fatal("failed to schedule reminders", zap.Error(err))
	}
	defer scheduler.Stop()

	// Setup Gin router
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.AllowedOrigins...))
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.MetricsMiddleware(m))

	// Register health check and metrics routes
	healthHandler := health.NewHandler(db, serviceName,
		health.CheckFunc{Label: "redis", Fn: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}},
		health.CheckFunc{Label: "kafka", Fn: func(ctx context.Context) error {
			return pingKafka(ctx, cfg.KafkaConfig.Brokers)
		}},
	)
	healthHandler.RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	// Register routes
	api := &router.RouterGroup
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log)
	handler.NewAuthHandler(authService, limiter).RegisterRoutes(api, jwtManager)
	handler.NewProfileHandler(profileService).RegisterRoutes(api, jwtManager)
	handler.NewBookingHandler(bookingService, therapistService).RegisterRoutes(api, jwtManager)
	handler.NewStaffHandler(adminService).RegisterRoutes(api, jwtManager)
	handler.NewStorageHandler(store).RegisterRoutes(api)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down " + serviceName + "...")

	// Stop background work before draining requests
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info(serviceName + " stopped")
}

// newStore builds the configured image store.
func newStore(cfg *config.ServiceConfig) (storage.Store, error) {
	if cfg.Storage.Driver == "cloudinary" {
		return storage.NewCloudinaryStore(
			cfg.Storage.CloudinaryCloudName,
			cfg.Storage.CloudinaryAPIKey,
			cfg.Storage.CloudinaryAPISecret,
		)
	}

	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(cfg.Storage.LocalRoot, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return storage.NewLocalStore(afero.NewBasePathFs(osFs, cfg.Storage.LocalRoot), cfg.StorageBaseURL()), nil
}

// pingKafka checks that the first reachable broker accepts connections.
func pingKafka(ctx context.Context, brokers []string) error {
	var lastErr error
	for _, broker := range brokers {
		conn, err := kafkago.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	if lastErr == nil {
		lastErr = errors.New("no kafka brokers configured")
	}
	return lastErr
}
