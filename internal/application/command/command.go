// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"

	"github.com/google/uuid"

	"github.com/classmark/classmark-hub/internal/domain/shared"
	"github.com/classmark/classmark-hub/pkg/logger"
)

// IDGenerator produces IDs for new entities.
type IDGenerator func() string

// NewUUID is the default IDGenerator.
func NewUUID() string {
	return uuid.New().String()
}

// invalid builds a validation error that the transport layer maps to 400.
func invalid(op, message string) error {
	return shared.NewDomainError("command", op, shared.ErrValidation, message)
}

// publish sends events. Bus errors never fail a command; they are logged.
func publish(ctx context.Context, bus shared.EventPublisher, events ...shared.Event) {
	if bus == nil {
		return
	}
	for _, e := range events {
		if err := bus.Publish(e); err != nil {
			logger.FromContext(ctx).Warn("failed to publish event",
				logger.String("event_type", string(e.EventType())),
				logger.String("aggregate_id", e.AggregateID()),
				logger.Err(err),
			)
		}
	}
}
