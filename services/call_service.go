// services/call_service.go
package services

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// CallHandle identifies a dispatched call. Status is the provider's
// initial status ("queued"); completion arrives later on the status
// webhook.
type CallHandle struct {
	Sid    string
	Status string
}

// CallService wraps Twilio voice dispatch. Enqueueing the call is the
// unit of success for a reminder result; the gateway never waits for the
// call to progress.
type CallService struct {
	client      *twilio.RestClient
	from        string
	callbackURL string
}

func NewCallService() *CallService {
	accountSid := os.Getenv("TWILIO_ACCOUNT_SID")
	authToken := os.Getenv("TWILIO_AUTH_TOKEN")

	var client *twilio.RestClient
	if accountSid != "" && authToken != "" {
		client = twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSid,
			Password: authToken,
		})
	}

	return &CallService{
		client:      client,
		from:        os.Getenv("TWILIO_PHONE_NUMBER"),
		callbackURL: os.Getenv("STATUS_CALLBACK_URL"),
	}
}

// PlaceCall enqueues an outbound voice call that speaks message to the
// destination number.
func (s *CallService) PlaceCall(ctx context.Context, to, message string) (CallHandle, error) {
	if s.client == nil || s.from == "" {
		return CallHandle{}, ErrTelephonyConfigMissing
	}
	if err := ctx.Err(); err != nil {
		return CallHandle{}, fmt.Errorf("%w: %v", ErrTelephonyDispatchFailed, err)
	}

	params := &twilioApi.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetTwiml(sayTwiml(message))
	if s.callbackURL != "" {
		params.SetStatusCallback(s.callbackURL)
		params.SetStatusCallbackEvent([]string{"initiated", "ringing", "answered", "completed"})
		params.SetStatusCallbackMethod("POST")
	}

	resp, err := s.client.Api.CreateCall(params)
	if err != nil {
		return CallHandle{}, fmt.Errorf("%w: %v", ErrTelephonyDispatchFailed, err)
	}

	handle := CallHandle{}
	if resp.Sid != nil {
		handle.Sid = *resp.Sid
	}
	if resp.Status != nil {
		handle.Status = *resp.Status
	}
	return handle, nil
}

// sayTwiml builds the spoken-message script, escaping the text so event
// names cannot break the XML.
func sayTwiml(message string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(message))
	return "<Response><Say>" + buf.String() + "</Say></Response>"
}
