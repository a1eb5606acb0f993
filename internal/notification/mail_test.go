package notification

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zenbook/service-booking/internal/messages"
)

func TestOTPMail(t *testing.T) {
	m := OTPMail(messages.EmailOTPNotification{Email: "a@example.com", Name: "Aina", Code: "042917", ExpiresInMinutes: 10})

	assert.Equal(t, "a@example.com", m.To)
	assert.Contains(t, m.Body, "Hello Aina,")
	assert.Contains(t, m.Body, "042917")
	assert.Contains(t, m.Body, "10 minutes")
}

func TestPasswordResetMail(t *testing.T) {
	m := PasswordResetMail(messages.PasswordResetNotification{
		Email:            "b@example.com",
		Name:             "Ben",
		ResetURL:         "https://app.example.com/reset-password?token=abc&email=b%40example.com",
		ExpiresInMinutes: 60,
	})

	assert.Equal(t, "Reset your password", m.Subject)
	assert.Contains(t, m.Body, "token=abc")
}

func TestStatusMail_HumanizesStatus(t *testing.T) {
	m := StatusMail(Recipient{Name: "Chen", Email: "c@example.com"}, messages.BookingStatusNotification{
		BookingID:   uuid.New(),
		Status:      "in_progress",
		BookingDate: "2026-03-12",
		BookingTime: "10:00",
	})

	assert.Equal(t, "Your booking is in progress", m.Subject)
	assert.Contains(t, m.Body, "2026-03-12 at 10:00")
}

func TestLogMailer(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	mailer := NewLogMailer(zap.New(core))

	require.NoError(t, mailer.Send(context.Background(), Mail{To: "d@example.com", Subject: "Hi", Body: "body"}))

	entries := logs.FilterMessage("mail sent").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "d@example.com", entries[0].ContextMap()["to"])
	assert.Equal(t, 1, logs.FilterMessage("mail body").Len())
}
