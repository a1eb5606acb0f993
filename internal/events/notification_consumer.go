package events

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	userDomain "github.com/zenbook/service-booking/internal/domain/user"
	"github.com/zenbook/service-booking/internal/messages"
	"github.com/zenbook/service-booking/internal/notification"
	"github.com/zenbook/service-booking/internal/platform/kafka"
)

// UserLookup resolves mail recipients.
type UserLookup interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*userDomain.User, error)
}

// NotificationConsumer turns notification events into mails.
type NotificationConsumer struct {
	consumer *kafka.Consumer
	users    UserLookup
	mailer   notification.Mailer
	logger   *zap.Logger
}

// NewNotificationConsumer creates a consumer of the notification topic.
func NewNotificationConsumer(
	brokers []string,
	groupID string,
	users UserLookup,
	mailer notification.Mailer,
	logger *zap.Logger,
) *NotificationConsumer {
	return &NotificationConsumer{
		consumer: kafka.NewConsumer(brokers, groupID, messages.TopicNotificationEvents, logger),
		users:    users,
		mailer:   mailer,
		logger:   logger,
	}
}

// Start begins consuming notification events. This blocks until the context is cancelled.
func (c *NotificationConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *NotificationConsumer) Close() error {
	return c.consumer.Close()
}

func (c *NotificationConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from notification topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}
	return c.handleEvent(ctx, cloudEvent)
}

func (c *NotificationConsumer) handleEvent(ctx context.Context, cloudEvent kafka.CloudEvent) error {
	switch cloudEvent.Type {
	case messages.NotificationEmailOTP:
		var n messages.EmailOTPNotification
		if !c.parse(cloudEvent, &n) {
			return nil
		}
		return c.send(ctx, notification.OTPMail(n))

	case messages.NotificationPasswordReset:
		var n messages.PasswordResetNotification
		if !c.parse(cloudEvent, &n) {
			return nil
		}
		return c.send(ctx, notification.PasswordResetMail(n))

	case messages.NotificationBookingReminder:
		var n messages.BookingReminderNotification
		if !c.parse(cloudEvent, &n) {
			return nil
		}
		recipients, err := c.recipients(ctx, n.CustomerID, n.TherapistID)
		if err != nil {
			return err
		}
		for _, r := range recipients {
			if err := c.send(ctx, notification.ReminderMail(r, n)); err != nil {
				return err
			}
		}
		return nil

	case messages.NotificationBookingStatus:
		var n messages.BookingStatusNotification
		if !c.parse(cloudEvent, &n) {
			return nil
		}
		recipients, err := c.recipients(ctx, n.CustomerID)
		if err != nil {
			return err
		}
		for _, r := range recipients {
			if err := c.send(ctx, notification.StatusMail(r, n)); err != nil {
				return err
			}
		}
		return nil

	default:
		c.logger.Debug("ignoring unhandled notification event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

func (c *NotificationConsumer) parse(cloudEvent kafka.CloudEvent, v interface{}) bool {
	if err := cloudEvent.ParseData(v); err != nil {
		c.logger.Error("failed to parse notification data",
			zap.String("type", cloudEvent.Type),
			zap.Error(err),
		)
		return false // Don't retry malformed data
	}
	return true
}

// recipients resolves accounts in the given order, skipping deleted ones.
func (c *NotificationConsumer) recipients(ctx context.Context, ids ...uuid.UUID) ([]notification.Recipient, error) {
	users, err := c.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipients: %w", err)
	}
	out := make([]notification.Recipient, 0, len(ids))
	for _, id := range ids {
		if u, ok := users[id]; ok {
			out = append(out, notification.Recipient{Name: u.Name(), Email: u.Email()})
		}
	}
	return out, nil
}

func (c *NotificationConsumer) send(ctx context.Context, m notification.Mail) error {
	if err := c.mailer.Send(ctx, m); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}
