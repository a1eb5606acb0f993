package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	userDomain "github.com/zenbook/service-booking/internal/domain/user"
	"github.com/zenbook/service-booking/internal/messages"
	"github.com/zenbook/service-booking/internal/platform/apperror"
	"github.com/zenbook/service-booking/internal/platform/kafka"
)

// Clock returns the current time. Services take one so tests can pin "today".
type Clock func() time.Time

// SystemClock is the wall clock in UTC.
func SystemClock() time.Time { return time.Now().UTC() }

// EventPublisher publishes CloudEvents to a topic. *kafka.Producer satisfies it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, evt kafka.CloudEvent) error
}

// eventSink builds and publishes events; failures are logged, never returned.
type eventSink struct {
	publisher EventPublisher
	logger    *zap.Logger
}

func (s eventSink) publish(ctx context.Context, topic, eventType string, subject uuid.UUID, data interface{}) {
	if s.publisher == nil {
		return
	}
	cloudEvent, err := kafka.NewCloudEvent(messages.Source, eventType, data)
	if err != nil {
		s.logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}
	if subject != uuid.Nil {
		cloudEvent = cloudEvent.WithSubject(subject.String())
	}

	if err := s.publisher.PublishEvent(ctx, topic, cloudEvent); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("topic", topic),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}

// outcome labels a service call result for metrics.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := apperror.KindOf(err); kind != "" {
		return strings.ToLower(string(kind))
	}
	return "error"
}

// mergeFields appends extra messages for fields not already reported.
func mergeFields(errs apperror.FieldErrors, extra apperror.FieldErrors) apperror.FieldErrors {
	seen := make(map[string]bool, len(errs))
	for _, f := range errs {
		seen[f.Field] = true
	}
	for _, f := range extra {
		if !seen[f.Field] {
			errs = append(errs, f)
		}
	}
	return errs
}

// parseUUIDField parses a required UUID request field.
func parseUUIDField(errs *apperror.FieldErrors, field, raw string) uuid.UUID {
	if strings.TrimSpace(raw) == "" {
		errs.Add(field, "is required")
		return uuid.Nil
	}
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		errs.Add(field, "must be a valid UUID")
		return uuid.Nil
	}
	return id
}

// ensureEmailFree reports a field error when another account already uses email.
func ensureEmailFree(ctx context.Context, users userDomain.Repository, email string, exclude uuid.UUID) error {
	taken, err := users.ExistsByEmail(ctx, email, exclude)
	if err != nil {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if taken {
		var errs apperror.FieldErrors
		errs.Add("email", "The email has already been taken.")
		return errs.Err()
	}
	return nil
}

// normalizePage clamps paging parameters.
func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 15
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
