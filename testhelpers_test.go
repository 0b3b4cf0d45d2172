//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/beleza-commerce/service-promo/internal/application"
	promoDomain "github.com/beleza-commerce/service-promo/internal/domain/promo"
	promoEvents "github.com/beleza-commerce/service-promo/internal/events"
	"github.com/beleza-commerce/service-promo/internal/repository"
	"github.com/beleza-commerce/service-promo/pkg/events"
	"github.com/beleza-commerce/service-promo/pkg/kafka"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// promoStack holds wired-up promo service components.
type promoStack struct {
	PromoRepo       promoDomain.PromoRepository
	OrderHistory    promoDomain.OrderHistory
	Consumer        *promoEvents.OrderEventConsumer
	CleanupProducer func()
}

// setupContainers starts PostgreSQL and Kafka testcontainers and returns a connected GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_promo",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=test_promo sslmode=disable", pgHost, pgPort.Port())

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
		if err != nil {
			return false
		}
		sqlDB, err := db.DB()
		if err != nil {
			return false
		}
		return sqlDB.Ping() == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, db.AutoMigrate(
		&repository.PromoCodeModel{},
		&repository.PromoUsageModel{},
		&repository.CustomerOrderModel{},
	))

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	// Pre-create required topics.
	createTopics(t, kafkaBrokers, events.TopicOrderEvents, events.TopicPromoEvents)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupPromoStack wires up the full promo service stack.
func setupPromoStack(t *testing.T, db *gorm.DB, brokers []string) *promoStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	promoRepo := repository.NewGormPromoRepository(db)
	orderHistory := repository.NewGormOrderHistory(db)
	producer := kafka.NewProducer(brokers, logger)
	usageSvc := application.NewUsageService(promoRepo, producer, logger)

	groupID := fmt.Sprintf("test-promo-%s", uuid.New().String()[:8])
	consumer := promoEvents.NewOrderEventConsumer(brokers, groupID, usageSvc, orderHistory, logger)

	return &promoStack{
		PromoRepo:       promoRepo,
		OrderHistory:    orderHistory,
		Consumer:        consumer,
		CleanupProducer: func() { _ = producer.Close() },
	}
}

// seedPromoCode inserts an active percentage code and returns its ID.
func seedPromoCode(t *testing.T, db *gorm.DB, code string, maxUses int) uuid.UUID {
	t.Helper()
	promoID := uuid.New()
	now := time.Now().UTC()
	model := repository.PromoCodeModel{
		ID:             promoID,
		Code:           code,
		Kind:           "percentage",
		Value:          decimal.NewFromInt(10),
		MaxUses:        maxUses,
		MaxUsesPerUser: 1,
		ValidFrom:      now.Add(-time.Hour),
		ValidTo:        now.Add(24 * time.Hour),
		TotalRevenue:   decimal.Zero,
		IsActive:       true,
		CreatedBy:      uuid.New(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, db.Create(&model).Error, "failed to seed promo code")
	return promoID
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType string, data interface{}) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := kafka.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := kafka.NewCloudEvent(source, eventType, data)
	require.NoError(t, err, "failed to create cloud event")

	err = producer.PublishEvent(context.Background(), topic, ce)
	require.NoError(t, err, "failed to publish event")
}

// orderConfirmed builds an OrderConfirmedEvent for the given promo and user.
func orderConfirmed(userID uuid.UUID, promoID *uuid.UUID, total, discount string) events.OrderConfirmedEvent {
	return events.OrderConfirmedEvent{
		OrderID:         uuid.New(),
		UserID:          userID,
		OrderTotal:      decimal.RequireFromString(total),
		PromoCodeID:     promoID,
		DiscountApplied: decimal.RequireFromString(discount),
		ConfirmedAt:     time.Now().UTC(),
		OccurredAt:      time.Now().UTC(),
	}
}

// waitForUsageCount polls promo_usages until the code has the expected number of rows.
func waitForUsageCount(t *testing.T, db *gorm.DB, promoID uuid.UUID, expected int64, timeout time.Duration) {
	t.Helper()
	require.Eventually(t, func() bool {
		var count int64
		if err := db.Model(&repository.PromoUsageModel{}).Where("promo_id = ?", promoID).Count(&count).Error; err != nil {
			return false
		}
		return count == expected
	}, timeout, 200*time.Millisecond, "promo did not reach %d usage rows", expected)
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) kafka.CloudEvent {
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
		if ce.Type == expectedType {
			return ce
		}
	}
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
	time.Sleep(2 * time.Second)
}
