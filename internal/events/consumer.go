package events

import (
	"context"
	"strings"

	"github.com/ccc-cruise/service-promo/internal/application"
	"github.com/ccc-cruise/service-promo/internal/kafka"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// BookingEventConsumer listens to booking events and drives the
// reservation engine: payment confirmation consumes reserved usages,
// party resizes and cancellations release them.
type BookingEventConsumer struct {
	consumer    *kafka.Consumer
	reservation *application.ReservationService
	logger      *zap.Logger
}

// NewBookingEventConsumer creates a new consumer for booking events.
func NewBookingEventConsumer(
	brokers []string,
	groupID string,
	reservation *application.ReservationService,
	logger *zap.Logger,
) *BookingEventConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, TopicBookingEvents, logger)
	return &BookingEventConsumer{
		consumer:    consumer,
		reservation: reservation,
		logger:      logger,
	}
}

// Start begins consuming booking events. It blocks until the context is
// cancelled.
func (c *BookingEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// handleMessage routes incoming Kafka messages to the appropriate handler.
func (c *BookingEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from booking topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return err
	}

	c.logger.Info("received booking event",
		zap.String("type", cloudEvent.Type),
		zap.String("id", cloudEvent.ID),
	)

	switch {
	case strings.EqualFold(cloudEvent.Type, BookingPaymentConfirmed):
		return c.handlePaymentConfirmed(ctx, cloudEvent)

	case strings.EqualFold(cloudEvent.Type, BookingPartyResized):
		return c.handlePartyResized(ctx, cloudEvent)

	case strings.EqualFold(cloudEvent.Type, BookingCancelled):
		return c.handleBookingCancelled(ctx, cloudEvent)

	default:
		c.logger.Debug("ignoring unhandled booking event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

// handlePaymentConfirmed consumes every reserved usage under the booking.
func (c *BookingEventConsumer) handlePaymentConfirmed(ctx context.Context, ce kafka.CloudEvent) error {
	var event PaymentConfirmedEvent
	if err := ce.ParseData(&event); err != nil {
		c.logger.Error("failed to parse PaymentConfirmedEvent data", zap.Error(err))
		return err
	}

	return c.reservation.OnPaymentConfirmed(ctx, event.BookingRef)
}

// handlePartyResized trims travelers beyond the new count. Growth is a
// no-op here; only the shrink path releases reservations.
func (c *BookingEventConsumer) handlePartyResized(ctx context.Context, ce kafka.CloudEvent) error {
	var event PartyResizedEvent
	if err := ce.ParseData(&event); err != nil {
		c.logger.Error("failed to parse PartyResizedEvent data", zap.Error(err))
		return err
	}

	return c.reservation.OnGroupShrink(ctx, event.BookingRef, event.TravelerCount)
}

// handleBookingCancelled releases everything still reserved by treating a
// cancellation as a shrink to zero travelers.
func (c *BookingEventConsumer) handleBookingCancelled(ctx context.Context, ce kafka.CloudEvent) error {
	var event BookingCancelledEvent
	if err := ce.ParseData(&event); err != nil {
		c.logger.Error("failed to parse BookingCancelledEvent data", zap.Error(err))
		return err
	}

	return c.reservation.OnGroupShrink(ctx, event.BookingRef, 0)
}

// Close shuts the consumer down.
func (c *BookingEventConsumer) Close() error {
	return c.consumer.Close()
}
