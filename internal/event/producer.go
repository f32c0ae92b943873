// Package event publishes session lifecycle events.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/sessionauth/internal/domain"
	pkgkafka "github.com/utafrali/sessionauth/pkg/kafka"
	"github.com/utafrali/sessionauth/pkg/logger"
)

// Topics for session lifecycle events.
var (
	TopicUserRegistered = pkgkafka.Topic("user", "registered")
	TopicSessionStarted = pkgkafka.Topic("session", "started")
	TopicSessionEnded   = pkgkafka.Topic("session", "ended")
)

// AggregateTypeUser is the aggregate every event in this service belongs to.
const AggregateTypeUser = "user"

// SourceSessionAuth identifies events originating from this service.
const SourceSessionAuth = "sessionauth"

// Publisher is the subset of *pkgkafka.Producer the event producer needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes session lifecycle events to Kafka.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	data := domain.UserRegisteredData{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
		Role:   user.Role,
	}
	return p.publish(ctx, TopicUserRegistered, domain.EventUserRegistered, user.ID, data)
}

// PublishSessionStarted publishes a session.started event. method is one of
// the domain.SessionMethod constants.
func (p *Producer) PublishSessionStarted(ctx context.Context, userID, method string) error {
	data := domain.SessionData{UserID: userID, Method: method}
	return p.publish(ctx, TopicSessionStarted, domain.EventSessionStarted, userID, data)
}

// PublishSessionEnded publishes a session.ended event.
func (p *Producer) PublishSessionEnded(ctx context.Context, userID string) error {
	data := domain.SessionData{UserID: userID}
	return p.publish(ctx, TopicSessionEnded, domain.EventSessionEnded, userID, data)
}

func (p *Producer) publish(ctx context.Context, topic, eventType, userID string, data any) error {
	event, err := pkgkafka.NewEvent(eventType, userID, AggregateTypeUser, SourceSessionAuth, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}

	p.logger.DebugContext(ctx, "published "+eventType+" event",
		slog.String("user_id", userID),
	)
	return nil
}

// Noop discards every event. It is used when no Kafka brokers are configured.
type Noop struct{}

func (Noop) PublishUserRegistered(context.Context, *domain.User) error { return nil }
func (Noop) PublishSessionStarted(context.Context, string, string) error { return nil }
func (Noop) PublishSessionEnded(context.Context, string) error { return nil }
