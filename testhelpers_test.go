//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/zenbook/service-booking/internal/application"
	"github.com/zenbook/service-booking/internal/domain/identity"
	"github.com/zenbook/service-booking/internal/messages"
	"github.com/zenbook/service-booking/internal/notification"
	"github.com/zenbook/service-booking/internal/platform/auth"
	"github.com/zenbook/service-booking/internal/platform/database"
	"github.com/zenbook/service-booking/internal/platform/kafka"
	"github.com/zenbook/service-booking/internal/repository"
	"github.com/zenbook/service-booking/migrations"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	Redis        *redis.Client
	KafkaBrokers []string
	Cleanup      func()
}

// serviceStack holds the wired-up application services.
type serviceStack struct {
	Users     *repository.GormUserRepository
	Bookings  *application.BookingService
	Auth      *application.AuthService
	Admin     *application.AdminService
	Producer  *kafka.Producer
	SuperUser identity.Principal
}

// setupContainers starts PostgreSQL, Redis and Kafka testcontainers and migrates the schema.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()
	log := zap.NewNop()

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "test_zenbook",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dbConfig := database.PostgresConfig{
		Host:     pgHost,
		Port:     pgPort.Port(),
		User:     "test",
		Password: "test",
		DBName:   "test_zenbook",
		SSLMode:  "disable",
	}

	var db *gorm.DB
	require.Eventually(t, func() bool {
		db, err = database.Connect(dbConfig, log)
		return err == nil
	}, 30*time.Second, time.Second, "PostgreSQL not ready for connections")
	require.NoError(t, database.RunMigrations(dbConfig.DatabaseURL(), migrations.FS, ".", log))

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start Redis container")

	redisHost, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)
	redisClient := redis.NewClient(&redis.Options{Addr: net.JoinHostPort(redisHost, redisPort.Port())})
	require.NoError(t, redisClient.Ping(ctx).Err())

	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	createTopics(t, kafkaBrokers,
		messages.TopicBookingEvents,
		messages.TopicTherapistEvents,
		messages.TopicNotificationEvents,
	)

	cleanup := func() {
		_ = redisClient.Close()
		for name, c := range map[string]testcontainers.Container{
			"Kafka":      kafkaContainer,
			"Redis":      redisContainer,
			"PostgreSQL": pgContainer,
		} {
			if err := c.Terminate(ctx); err != nil {
				t.Logf("failed to terminate %s container: %v", name, err)
			}
		}
	}

	return &testInfra{
		DB:           db,
		Redis:        redisClient,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupServices wires the services against the containers and bootstraps a super admin.
func setupServices(t *testing.T, infra *testInfra) *serviceStack {
	t.Helper()
	log, _ := zap.NewDevelopment()

	users := repository.NewGormUserRepository(infra.DB)
	profiles := repository.NewGormTherapistRepository(infra.DB)
	bookings := repository.NewGormBookingRepository(infra.DB)
	tokens := repository.NewRedisTokenStore(infra.Redis)
	producer := kafka.NewProducer(infra.KafkaBrokers, log)
	t.Cleanup(func() { _ = producer.Close() })

	jwtManager := auth.NewJWTManager("integration-secret", 15*time.Minute, 24*time.Hour)
	gate := application.NewAvailabilityGate(users, profiles)
	bookingSvc := application.NewBookingService(bookings, users, gate, producer, nil, nil, log)
	authSvc := application.NewAuthService(users, profiles, tokens, jwtManager, application.AuthConfig{
		FrontendURL: "http://localhost:3000",
		HashCost:    bcrypt.MinCost,
	}, nil, producer, nil, log)
	adminSvc := application.NewAdminService(users, profiles, bookingSvc, nil, bcrypt.MinCost, nil, log)

	ctx := context.Background()
	require.NoError(t, adminSvc.EnsureSuperAdmin(ctx, "Root", "root@example.com", "rootpass1"))
	root, err := users.FindByEmail(ctx, "root@example.com")
	require.NoError(t, err)

	return &serviceStack{
		Users:     users,
		Bookings:  bookingSvc,
		Auth:      authSvc,
		Admin:     adminSvc,
		Producer:  producer,
		SuperUser: identity.Principal{ID: root.ID(), Role: identity.RoleSuperAdmin},
	}
}

// createAccount creates a verified account of the given kind through the back office.
func createAccount(t *testing.T, stack *serviceStack, role identity.Role, email string) identity.Principal {
	t.Helper()
	req := application.CreateAccountRequest{
		Name:                 "Test " + role.String(),
		Email:                email,
		Password:             "secret123",
		PasswordConfirmation: "secret123",
	}

	var (
		dto *application.UserDTO
		err error
	)
	switch role {
	case identity.RoleTherapist:
		dto, err = stack.Admin.CreateTherapist(context.Background(), stack.SuperUser, req)
	default:
		dto, err = stack.Admin.CreateUser(context.Background(), stack.SuperUser, req)
	}
	require.NoError(t, err)
	return identity.Principal{ID: dto.ID, Role: role}
}

// consumeOneEvent reads from a Kafka topic until it finds an event matching the predicate.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, match func(kafka.CloudEvent) bool, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType && (match == nil || match(ce)) {
			return ce
		}
	}
}

// captureMailer records sent mails.
type captureMailer struct {
	mu   sync.Mutex
	sent []notification.Mail
}

func newCaptureMailer() *captureMailer {
	return &captureMailer{}
}

func (m *captureMailer) Send(_ context.Context, mail notification.Mail) error {
	m.mu.Lock()
	m.sent = append(m.sent, mail)
	m.mu.Unlock()
	return nil
}

func (m *captureMailer) mails() []notification.Mail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notification.Mail(nil), m.sent...)
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
