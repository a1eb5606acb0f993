package kafka

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloudEvent_RoundTrip(t *testing.T) {
	type payload struct {
		BookingID string `json:"booking_id"`
	}

	evt, err := NewCloudEvent("service-booking", "booking.created", payload{BookingID: "b-1"})
	require.NoError(t, err)
	evt = evt.WithSubject("b-1")

	assert.Equal(t, "1.0", evt.SpecVersion)
	assert.NotEmpty(t, evt.ID)

	raw, err := json.Marshal(evt)
	require.NoError(t, err)

	parsed, err := ParseCloudEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, "booking.created", parsed.Type)
	assert.Equal(t, "b-1", parsed.Subject)

	var p payload
	require.NoError(t, parsed.ParseData(&p))
	assert.Equal(t, "b-1", p.BookingID)
}

func TestParseCloudEvent_RejectsMalformed(t *testing.T) {
	_, err := ParseCloudEvent([]byte("not json"))
	assert.Error(t, err)

	_, err = ParseCloudEvent([]byte(`{"id":"x"}`))
	assert.Error(t, err)
}
