// Package notification renders and delivers the plain-text mails triggered by service events.
package notification

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/zenbook/service-booking/internal/messages"
)

// Mail is a rendered plain-text message.
type Mail struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers mails.
type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

// LogMailer writes mails to the log instead of sending them.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send logs the envelope at Info and the body at Debug.
func (m *LogMailer) Send(_ context.Context, mail Mail) error {
	m.logger.Info("mail sent", zap.String("to", mail.To), zap.String("subject", mail.Subject))
	m.logger.Debug("mail body", zap.String("to", mail.To), zap.String("body", mail.Body))
	return nil
}

// Recipient is the name and address a mail goes to.
type Recipient struct {
	Name  string
	Email string
}

// OTPMail renders the email verification code mail.
func OTPMail(n messages.EmailOTPNotification) Mail {
	return Mail{
		To:      n.Email,
		Subject: "Verify your email address",
		Body: lines(
			fmt.Sprintf("Hello %s,", n.Name),
			"",
			fmt.Sprintf("Your verification code is %s.", n.Code),
			fmt.Sprintf("It expires in %d minutes.", n.ExpiresInMinutes),
			"",
			"If you did not create an account, no further action is required.",
		),
	}
}

// PasswordResetMail renders the password reset link mail.
func PasswordResetMail(n messages.PasswordResetNotification) Mail {
	return Mail{
		To:      n.Email,
		Subject: "Reset your password",
		Body: lines(
			fmt.Sprintf("Hello %s,", n.Name),
			"",
			"We received a request to reset the password for your account.",
			fmt.Sprintf("Reset it here: %s", n.ResetURL),
			fmt.Sprintf("This link expires in %d minutes.", n.ExpiresInMinutes),
			"",
			"If you did not request a password reset, no further action is required.",
		),
	}
}

// ReminderMail renders the day-before reminder for one participant of a booking.
func ReminderMail(to Recipient, n messages.BookingReminderNotification) Mail {
	return Mail{
		To:      to.Email,
		Subject: "Booking reminder",
		Body: lines(
			fmt.Sprintf("Hello %s,", to.Name),
			"",
			fmt.Sprintf("This is a reminder of your %s session on %s at %s.", n.ServiceType, n.BookingDate, n.BookingTime),
			fmt.Sprintf("Address: %s", n.Address),
		),
	}
}

// StatusMail renders the booking status update sent to the customer.
func StatusMail(to Recipient, n messages.BookingStatusNotification) Mail {
	return Mail{
		To:      to.Email,
		Subject: fmt.Sprintf("Your booking is %s", strings.ReplaceAll(n.Status, "_", " ")),
		Body: lines(
			fmt.Sprintf("Hello %s,", to.Name),
			"",
			fmt.Sprintf("Your booking on %s at %s is now %s.", n.BookingDate, n.BookingTime, strings.ReplaceAll(n.Status, "_", " ")),
		),
	}
}

func lines(l ...string) string {
	return strings.Join(l, "\n") + "\n"
}
