// services/calendar_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// LookaheadWindow is how far ahead of now the poll loop asks the provider
// for upcoming occurrences. Sized against the one-minute cadence so each
// occurrence is seen by several consecutive cycles.
const LookaheadWindow = 5 * time.Minute

// ProviderEvent is the transient per-cycle view of a calendar occurrence.
// It lives only for the duration of one matching pass.
type ProviderEvent struct {
	ID    string
	Start time.Time
}

// EventSpec describes a calendar entry to create remotely.
type EventSpec struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
}

// CalendarService wraps the Google Calendar API for the user's primary
// calendar. Every call runs on a fresh credential from CredentialService;
// a credential failure propagates without touching the provider.
type CalendarService struct {
	creds *CredentialService
}

func NewCalendarService(creds *CredentialService) *CalendarService {
	return &CalendarService{creds: creds}
}

func clientFor(ctx context.Context, token string) (*calendar.Service, error) {
	return calendar.NewService(ctx, option.WithTokenSource(
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})))
}

// ListUpcoming returns the user's single-event occurrences (recurring
// events expanded) starting within the lookahead window, in start-time
// order. An empty slice is a normal result.
func (s *CalendarService) ListUpcoming(ctx context.Context, userID uuid.UUID) ([]ProviderEvent, error) {
	token, err := s.creds.ValidToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	svc, err := clientFor(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCalendarFetchFailed, err)
	}

	now := time.Now()
	res, err := svc.Events.List("primary").
		TimeMin(now.Format(time.RFC3339)).
		TimeMax(now.Add(LookaheadWindow).Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCalendarFetchFailed, err)
	}

	events := make([]ProviderEvent, 0, len(res.Items))
	for _, item := range res.Items {
		events = append(events, ProviderEvent{ID: item.Id, Start: parseEventTime(item.Start)})
	}
	return events, nil
}

// Insert creates the event on the user's primary calendar and returns the
// provider-side record. Used by the event-creation handler, not the poll
// loop.
func (s *CalendarService) Insert(ctx context.Context, token string, spec EventSpec) (ProviderEvent, error) {
	svc, err := clientFor(ctx, token)
	if err != nil {
		return ProviderEvent{}, fmt.Errorf("%w: %v", ErrCalendarWriteFailed, err)
	}

	created, err := svc.Events.Insert("primary", &calendar.Event{
		Summary:     spec.Summary,
		Description: spec.Description,
		Start:       &calendar.EventDateTime{DateTime: spec.Start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: spec.End.Format(time.RFC3339)},
	}).Context(ctx).Do()
	if err != nil {
		return ProviderEvent{}, fmt.Errorf("%w: %v", ErrCalendarWriteFailed, err)
	}

	return ProviderEvent{ID: created.Id, Start: parseEventTime(created.Start)}, nil
}

// parseEventTime handles both timed (DateTime) and all-day (Date) entries.
func parseEventTime(edt *calendar.EventDateTime) time.Time {
	if edt == nil {
		return time.Time{}
	}
	if edt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, edt.DateTime); err == nil {
			return t
		}
	}
	if edt.Date != "" {
		if t, err := time.Parse("2006-01-02", edt.Date); err == nil {
			return t
		}
	}
	return time.Time{}
}
