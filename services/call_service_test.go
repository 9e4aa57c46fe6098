package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlaceCallRequiresConfiguration(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_PHONE_NUMBER", "")

	svc := NewCallService()
	_, err := svc.PlaceCall(context.Background(), "+15551234567", "Reminder: Dentist at noon")
	require.ErrorIs(t, err, ErrTelephonyConfigMissing)
}

func TestPlaceCallRequiresFromNumber(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "AC00000000000000000000000000000000")
	t.Setenv("TWILIO_AUTH_TOKEN", "secret")
	t.Setenv("TWILIO_PHONE_NUMBER", "")

	svc := NewCallService()
	_, err := svc.PlaceCall(context.Background(), "+15551234567", "hello")
	require.ErrorIs(t, err, ErrTelephonyConfigMissing)
}

func TestSayTwimlEscapesMessage(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{
			name:    "plain",
			message: "Reminder: Dentist at 2 PM",
			want:    "<Response><Say>Reminder: Dentist at 2 PM</Say></Response>",
		},
		{
			name:    "markup in event name",
			message: "Dinner & <drinks>",
			want:    "<Response><Say>Dinner &amp; &lt;drinks&gt;</Say></Response>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, sayTwiml(tt.message))
		})
	}
}
