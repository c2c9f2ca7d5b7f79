package events

import (
	"context"
	"time"

	"github.com/ccc-cruise/service-promo/internal/kafka"
	"go.uber.org/zap"
)

const eventSource = "service-promo"

// PromoEventPublisher emits promo lifecycle events to promo.events.
// Publishing is best-effort: a failed publish is logged, never propagated,
// since the state change has already committed.
type PromoEventPublisher struct {
	producer *kafka.Producer
	logger   *zap.Logger
}

// NewPromoEventPublisher creates a new PromoEventPublisher.
func NewPromoEventPublisher(producer *kafka.Producer, logger *zap.Logger) *PromoEventPublisher {
	return &PromoEventPublisher{producer: producer, logger: logger}
}

// PromoConsumed publishes a PromoConsumedEvent.
func (p *PromoEventPublisher) PromoConsumed(ctx context.Context, bookingRef string, count int64) {
	event := PromoConsumedEvent{
		BookingRef: bookingRef,
		Count:      count,
		OccurredAt: time.Now().UTC(),
	}
	p.publish(ctx, PromoConsumed, event)
}

// PromoReleased publishes a PromoReleasedEvent.
func (p *PromoEventPublisher) PromoReleased(ctx context.Context, bookingRef, code string) {
	event := PromoReleasedEvent{
		BookingRef: bookingRef,
		Code:       code,
		OccurredAt: time.Now().UTC(),
	}
	p.publish(ctx, PromoReleased, event)
}

func (p *PromoEventPublisher) publish(ctx context.Context, eventType string, data any) {
	cloudEvent, err := kafka.NewCloudEvent(eventSource, eventType, data)
	if err != nil {
		p.logger.Error("failed to create cloud event",
			zap.String("type", eventType),
			zap.Error(err),
		)
		return
	}
	if err := p.producer.PublishEvent(ctx, TopicPromoEvents, cloudEvent); err != nil {
		p.logger.Error("failed to publish promo event",
			zap.String("type", eventType),
			zap.Error(err),
		)
	}
}
