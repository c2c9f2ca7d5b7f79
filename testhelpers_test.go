//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/ccc-cruise/service-promo/internal/application"
	"github.com/ccc-cruise/service-promo/internal/domain/capacity"
	promoDomain "github.com/ccc-cruise/service-promo/internal/domain/promo"
	promoEvents "github.com/ccc-cruise/service-promo/internal/events"
	"github.com/ccc-cruise/service-promo/internal/kafka"
	"github.com/ccc-cruise/service-promo/internal/repository"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// promoStack holds wired-up promo service components.
type promoStack struct {
	Reservation     *application.ReservationService
	Admin           *application.AdminService
	Ledger          *repository.GormCapacityLedger
	Consumer        *promoEvents.BookingEventConsumer
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
		&repository.UsageEntryModel{},
		&repository.CapacityCounterModel{},
		&repository.TravelerModel{},
	))

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	createTopics(t, kafkaBrokers, promoEvents.TopicBookingEvents, promoEvents.TopicPromoEvents)

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
	usageRepo := repository.NewGormUsageRepository(db)
	ledger := repository.NewGormCapacityLedger(db)
	travelerRepo := repository.NewGormTravelerRepository(db)
	txManager := repository.NewTxManager(db)

	producer := kafka.NewProducer(brokers, logger)
	publisher := promoEvents.NewPromoEventPublisher(producer, logger)

	reservationSvc := application.NewReservationService(txManager, promoRepo, usageRepo, ledger, travelerRepo, publisher, logger)
	adminSvc := application.NewAdminService(txManager, promoRepo, usageRepo, ledger, nil, logger)

	groupID := fmt.Sprintf("test-promo-%s", uuid.New().String()[:8])
	consumer := promoEvents.NewBookingEventConsumer(brokers, groupID, reservationSvc, logger)

	return &promoStack{
		Reservation:     reservationSvc,
		Admin:           adminSvc,
		Ledger:          ledger,
		Consumer:        consumer,
		CleanupProducer: func() { _ = producer.Close() },
	}
}

// seedPromoCode inserts an active promo code and returns its model.
func seedPromoCode(t *testing.T, db *gorm.DB, code string, codeType promoDomain.CodeType) repository.PromoCodeModel {
	t.Helper()
	now := time.Now().UTC()
	model := repository.PromoCodeModel{
		ID:        uuid.New(),
		Code:      code,
		CodeType:  string(codeType),
		Status:    string(promoDomain.StatusActive),
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, db.Create(&model).Error, "failed to seed promo code")
	return model
}

// seedTravelers inserts count travelers under one booking, indexed from 0.
func seedTravelers(t *testing.T, db *gorm.DB, bookingRef string, count int) []repository.TravelerModel {
	t.Helper()
	now := time.Now().UTC()
	travelers := make([]repository.TravelerModel, count)
	for i := 0; i < count; i++ {
		travelers[i] = repository.TravelerModel{
			ID:         uuid.New(),
			BookingRef: bookingRef,
			Idx:        i,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}
	require.NoError(t, db.Create(&travelers).Error, "failed to seed travelers")
	return travelers
}

// seedCapacity inserts one capacity counter row.
func seedCapacity(t *testing.T, ledger *repository.GormCapacityLedger, category string, codeType promoDomain.CodeType, limit int) {
	t.Helper()
	err := ledger.Seed(context.Background(), []capacity.Counter{
		{Category: category, CodeType: codeType, Cap: limit},
	})
	require.NoError(t, err, "failed to seed capacity counter")
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

// waitForUsageStatus polls the promo_usages table until the entry for the
// traveler reaches the expected status.
func waitForUsageStatus(t *testing.T, db *gorm.DB, travelerID uuid.UUID, expectedStatus string, timeout time.Duration) repository.UsageEntryModel {
	t.Helper()
	var result repository.UsageEntryModel
	require.Eventually(t, func() bool {
		var model repository.UsageEntryModel
		err := db.Where("traveler_id = ?", travelerID).
			Order("created_at DESC").
			First(&model).Error
		if err != nil {
			return false
		}
		if model.Status == expectedStatus {
			result = model
			return true
		}
		return false
	}, timeout, 200*time.Millisecond, "usage did not transition to %s", expectedStatus)
	return result
}

// claimedCount reads the claimed figure of one capacity counter row.
func claimedCount(t *testing.T, db *gorm.DB, category string, codeType promoDomain.CodeType) int {
	t.Helper()
	var model repository.CapacityCounterModel
	err := db.Where("category = ? AND code_type = ?", category, string(codeType)).First(&model).Error
	require.NoError(t, err, "capacity counter row missing")
	return model.Claimed
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
	time.Sleep(1 * time.Second)
}
