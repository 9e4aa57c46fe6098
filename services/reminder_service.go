// services/reminder_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"callalert-backend/models"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// defaultUserTimeout bounds one user's pipeline (credential refresh +
// calendar fetch + dispatches) so a stalled provider cannot block the
// users queued behind it for the rest of the cycle.
const defaultUserTimeout = 30 * time.Second

// CalendarLister fetches a user's upcoming provider events.
type CalendarLister interface {
	ListUpcoming(ctx context.Context, userID uuid.UUID) ([]ProviderEvent, error)
}

// CallDispatcher places an outbound voice call.
type CallDispatcher interface {
	PlaceCall(ctx context.Context, to, message string) (CallHandle, error)
}

// EligibilitySource reports which users are worth polling this cycle.
type EligibilitySource interface {
	EligibleUserIDs() []uuid.UUID
}

// ResultPublisher receives the complete result list once per cycle.
type ResultPublisher interface {
	Publish(results []models.ReminderResult)
}

// ReminderService drives the polling loop: once a minute it walks the
// eligible users sequentially, matches their upcoming provider events
// against stored events, dispatches a call per fresh match, and publishes
// the cycle's result list as one snapshot.
type ReminderService struct {
	db          *gorm.DB
	calendar    CalendarLister
	dialer      CallDispatcher
	eligibility EligibilitySource
	publisher   ResultPublisher

	ledger      *dispatchLedger
	userTimeout time.Duration
	running     atomic.Bool

	now func() time.Time
}

func NewReminderService(db *gorm.DB, calendar CalendarLister, dialer CallDispatcher, eligibility EligibilitySource, publisher ResultPublisher) *ReminderService {
	timeout := defaultUserTimeout
	if env := os.Getenv("REMINDER_USER_TIMEOUT"); env != "" {
		if d, err := time.ParseDuration(env); err == nil && d > 0 {
			timeout = d
		}
	}
	return &ReminderService{
		db:          db,
		calendar:    calendar,
		dialer:      dialer,
		eligibility: eligibility,
		publisher:   publisher,
		ledger:      newDispatchLedger(2 * LookaheadWindow),
		userTimeout: timeout,
		now:         time.Now,
	}
}

// StartScheduler registers the once-a-minute tick and starts the cron
// runner. The returned cron can be stopped at shutdown.
func (s *ReminderService) StartScheduler(ctx context.Context) *cron.Cron {
	c := cron.New()
	c.AddFunc("* * * * *", func() { s.RunCycle(ctx) })
	c.Start()
	log.Println("Reminder scheduler started (every minute)")
	return c
}

// RunCycle executes one polling pass. A tick that lands while the
// previous pass is still in flight is skipped, keeping at most one pass
// running at a time.
func (s *ReminderService) RunCycle(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		log.Println("Reminder cycle still in progress, skipping tick")
		return
	}
	defer s.running.Store(false)

	s.ledger.Prune(s.now())

	userIDs := s.eligibility.EligibleUserIDs()
	if len(userIDs) == 0 {
		// Fast path: nobody is watching, so no provider calls at all.
		s.publisher.Publish([]models.ReminderResult{})
		return
	}

	log.Printf("Reminder cycle: polling %d user(s)", len(userIDs))
	results := make([]models.ReminderResult, 0, len(userIDs))
	for _, userID := range userIDs {
		results = append(results, s.processUser(ctx, userID)...)
	}

	s.publisher.Publish(results)
	log.Printf("Reminder cycle complete: %d result(s)", len(results))
}

// processUser runs one user's pipeline under its own deadline. Any
// failure becomes a single failed result and never aborts the cycle for
// the remaining users.
func (s *ReminderService) processUser(ctx context.Context, userID uuid.UUID) []models.ReminderResult {
	ctx, cancel := context.WithTimeout(ctx, s.userTimeout)
	defer cancel()

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.userFailure(userID, "", ErrUserNotFound.Error())
		}
		return s.userFailure(userID, "", "looking up user: "+err.Error())
	}

	providerEvents, err := s.calendar.ListUpcoming(ctx, userID)
	if err != nil {
		log.Printf("Reminder cycle: user %s: %v", user.Email, err)
		return s.userFailure(userID, user.Email, err.Error())
	}

	var results []models.ReminderResult
	for _, pe := range providerEvents {
		if pe.ID == "" {
			continue
		}

		var event models.Event
		err := s.db.WithContext(ctx).
			Where("google_event_id = ? AND user_id = ?", pe.ID, userID).
			First(&event).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Not an event this system tracks.
			continue
		}
		if err != nil {
			results = append(results, s.userFailure(userID, user.Email, "looking up event: "+err.Error())...)
			continue
		}

		if s.ledger.Seen(userID, pe.ID, s.now()) {
			continue
		}

		message := reminderMessage(event)
		handle, err := s.dialer.PlaceCall(ctx, event.PhoneNumber, message)
		if err != nil {
			// Not marked in the ledger: the next cycle retries while the
			// occurrence is still in-window.
			log.Printf("Reminder cycle: call to %s failed: %v", event.PhoneNumber, err)
			results = append(results, models.ReminderResult{
				UserID:    userID,
				Email:     user.Email,
				EventID:   event.GoogleEventID,
				EventName: event.Name,
				Phone:     event.PhoneNumber,
				Success:   false,
				Error:     err.Error(),
				Timestamp: s.now(),
			})
			continue
		}

		s.ledger.Mark(userID, pe.ID, s.now())
		log.Printf("Reminder call dispatched to %s (sid %s)", event.PhoneNumber, handle.Sid)
		results = append(results, models.ReminderResult{
			UserID:     userID,
			Email:      user.Email,
			EventID:    event.GoogleEventID,
			EventName:  event.Name,
			Phone:      event.PhoneNumber,
			CallSid:    handle.Sid,
			CallStatus: handle.Status,
			Success:    true,
			Timestamp:  s.now(),
		})
	}
	return results
}

func (s *ReminderService) userFailure(userID uuid.UUID, email, msg string) []models.ReminderResult {
	return []models.ReminderResult{{
		UserID:    userID,
		Email:     email,
		Success:   false,
		Error:     msg,
		Timestamp: s.now(),
	}}
}

func reminderMessage(event models.Event) string {
	return fmt.Sprintf("Reminder: %s at %s", event.Name, event.StartTime.Format("January 2 at 3:04 PM"))
}
