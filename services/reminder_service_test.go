package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"callalert-backend/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeCalendar struct {
	events map[uuid.UUID][]ProviderEvent
	errs   map[uuid.UUID]error
	calls  int
}

func (f *fakeCalendar) ListUpcoming(_ context.Context, userID uuid.UUID) ([]ProviderEvent, error) {
	f.calls++
	if err := f.errs[userID]; err != nil {
		return nil, err
	}
	return f.events[userID], nil
}

type dispatched struct {
	to      string
	message string
}

type fakeDialer struct {
	calls    []dispatched
	failNext int // fail this many dispatch attempts before succeeding
}

func (f *fakeDialer) PlaceCall(_ context.Context, to, message string) (CallHandle, error) {
	f.calls = append(f.calls, dispatched{to: to, message: message})
	if f.failNext > 0 {
		f.failNext--
		return CallHandle{}, fmt.Errorf("%w: provider rejected", ErrTelephonyDispatchFailed)
	}
	return CallHandle{Sid: fmt.Sprintf("CA%04d", len(f.calls)), Status: "queued"}, nil
}

type staticEligibility []uuid.UUID

func (s staticEligibility) EligibleUserIDs() []uuid.UUID { return s }

type capturingPublisher struct {
	published [][]models.ReminderResult
}

func (p *capturingPublisher) Publish(results []models.ReminderResult) {
	p.published = append(p.published, results)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A single connection keeps every query on the same in-memory DB.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Event{}))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email string) uuid.UUID {
	t.Helper()
	user := models.User{Email: email, Name: "Test User", RefreshToken: "rt"}
	require.NoError(t, db.Create(&user).Error)
	return user.ID
}

func seedEvent(t *testing.T, db *gorm.DB, userID uuid.UUID, name, googleEventID, phone string) models.Event {
	t.Helper()
	event := models.Event{
		UserID:        userID,
		Name:          name,
		StartTime:     time.Now().Add(2 * time.Minute),
		EndTime:       time.Now().Add(30 * time.Minute),
		PhoneNumber:   phone,
		Email:         "test@example.com",
		GoogleEventID: googleEventID,
	}
	require.NoError(t, db.Create(&event).Error)
	return event
}

func newTestService(db *gorm.DB, cal *fakeCalendar, dialer *fakeDialer, elig EligibilitySource, pub *capturingPublisher) *ReminderService {
	return &ReminderService{
		db:          db,
		calendar:    cal,
		dialer:      dialer,
		eligibility: elig,
		publisher:   pub,
		ledger:      newDispatchLedger(2 * LookaheadWindow),
		userTimeout: 5 * time.Second,
		now:         time.Now,
	}
}

func TestCycleSkipsWhenNoEligibleUsers(t *testing.T) {
	db := openTestDB(t)
	cal := &fakeCalendar{}
	dialer := &fakeDialer{}
	pub := &capturingPublisher{}

	svc := newTestService(db, cal, dialer, staticEligibility{}, pub)
	svc.RunCycle(context.Background())

	require.Zero(t, cal.calls, "no provider calls expected for an empty eligibility set")
	require.Empty(t, dialer.calls)
	require.Len(t, pub.published, 1)
	require.Empty(t, pub.published[0])
}

func TestCycleDispatchesMatchedEvent(t *testing.T) {
	db := openTestDB(t)
	userID := seedUser(t, db, "u@example.com")
	event := seedEvent(t, db, userID, "Dentist", "g1", "+15551234567")

	cal := &fakeCalendar{events: map[uuid.UUID][]ProviderEvent{
		userID: {{ID: "g1", Start: time.Now().Add(2 * time.Minute)}},
	}}
	dialer := &fakeDialer{}
	pub := &capturingPublisher{}

	svc := newTestService(db, cal, dialer, staticEligibility{userID}, pub)
	svc.RunCycle(context.Background())

	require.Len(t, dialer.calls, 1)
	require.Equal(t, "+15551234567", dialer.calls[0].to)
	require.True(t, strings.HasPrefix(dialer.calls[0].message, "Reminder: Dentist at "),
		"unexpected message %q", dialer.calls[0].message)

	require.Len(t, pub.published, 1)
	results := pub.published[0]
	require.Len(t, results, 1)
	require.True(t, results[0].Success)
	require.Equal(t, userID, results[0].UserID)
	require.Equal(t, "u@example.com", results[0].Email)
	require.Equal(t, event.GoogleEventID, results[0].EventID)
	require.Equal(t, "Dentist", results[0].EventName)
	require.Equal(t, "+15551234567", results[0].Phone)
	require.NotEmpty(t, results[0].CallSid)
}

func TestCycleIgnoresUntrackedProviderEvents(t *testing.T) {
	db := openTestDB(t)
	userID := seedUser(t, db, "u@example.com")
	seedEvent(t, db, userID, "Dentist", "g1", "+15551234567")

	cal := &fakeCalendar{events: map[uuid.UUID][]ProviderEvent{
		userID: {{ID: "g2", Start: time.Now().Add(time.Minute)}},
	}}
	dialer := &fakeDialer{}
	pub := &capturingPublisher{}

	svc := newTestService(db, cal, dialer, staticEligibility{userID}, pub)
	svc.RunCycle(context.Background())

	require.Empty(t, dialer.calls, "untracked provider events must be skipped silently")
	require.Len(t, pub.published, 1)
	require.Empty(t, pub.published[0])
}

func TestCycleSkipsProviderEventsWithoutID(t *testing.T) {
	db := openTestDB(t)
	userID := seedUser(t, db, "u@example.com")
	seedEvent(t, db, userID, "Dentist", "g1", "+15551234567")

	cal := &fakeCalendar{events: map[uuid.UUID][]ProviderEvent{
		userID: {{ID: ""}, {ID: "g1", Start: time.Now().Add(time.Minute)}},
	}}
	dialer := &fakeDialer{}
	pub := &capturingPublisher{}

	svc := newTestService(db, cal, dialer, staticEligibility{userID}, pub)
	svc.RunCycle(context.Background())

	require.Len(t, dialer.calls, 1)
}

func TestCycleIsolatesPerUserFailures(t *testing.T) {
	db := openTestDB(t)
	userA := seedUser(t, db, "a@example.com")
	userB := seedUser(t, db, "b@example.com")
	seedEvent(t, db, userB, "Dentist", "g1", "+15551234567")

	cal := &fakeCalendar{
		events: map[uuid.UUID][]ProviderEvent{
			userB: {{ID: "g1", Start: time.Now().Add(time.Minute)}},
		},
		errs: map[uuid.UUID]error{
			userA: fmt.Errorf("%w: token revoked", ErrCredentialRefreshFailed),
		},
	}
	dialer := &fakeDialer{}
	pub := &capturingPublisher{}

	svc := newTestService(db, cal, dialer, staticEligibility{userA, userB}, pub)
	svc.RunCycle(context.Background())

	require.Len(t, pub.published, 1)
	results := pub.published[0]
	require.Len(t, results, 2)

	require.False(t, results[0].Success)
	require.Equal(t, userA, results[0].UserID)
	require.Contains(t, results[0].Error, "credential refresh failed")

	require.True(t, results[1].Success, "user B must still be processed after user A failed")
	require.Equal(t, userB, results[1].UserID)
	require.Len(t, dialer.calls, 1)
}

func TestCycleDoesNotRedialWithinLedgerTTL(t *testing.T) {
	db := openTestDB(t)
	userID := seedUser(t, db, "u@example.com")
	seedEvent(t, db, userID, "Dentist", "g1", "+15551234567")

	cal := &fakeCalendar{events: map[uuid.UUID][]ProviderEvent{
		userID: {{ID: "g1", Start: time.Now().Add(2 * time.Minute)}},
	}}
	dialer := &fakeDialer{}
	pub := &capturingPublisher{}

	svc := newTestService(db, cal, dialer, staticEligibility{userID}, pub)

	// The same occurrence stays inside the sliding window for several
	// consecutive cycles; only the first one dispatches.
	svc.RunCycle(context.Background())
	svc.RunCycle(context.Background())
	svc.RunCycle(context.Background())

	require.Len(t, dialer.calls, 1)
	require.Len(t, pub.published, 3)
	require.Len(t, pub.published[0], 1)
	require.Empty(t, pub.published[1])
	require.Empty(t, pub.published[2])
}

func TestCycleRetriesFailedDispatchNextCycle(t *testing.T) {
	db := openTestDB(t)
	userID := seedUser(t, db, "u@example.com")
	seedEvent(t, db, userID, "Dentist", "g1", "+15551234567")

	cal := &fakeCalendar{events: map[uuid.UUID][]ProviderEvent{
		userID: {{ID: "g1", Start: time.Now().Add(2 * time.Minute)}},
	}}
	dialer := &fakeDialer{failNext: 1}
	pub := &capturingPublisher{}

	svc := newTestService(db, cal, dialer, staticEligibility{userID}, pub)

	svc.RunCycle(context.Background())
	require.Len(t, pub.published, 1)
	require.Len(t, pub.published[0], 1)
	require.False(t, pub.published[0][0].Success)
	require.Contains(t, pub.published[0][0].Error, "telephony dispatch failed")
	require.Equal(t, "Dentist", pub.published[0][0].EventName)

	// A failed dispatch is not marked in the ledger, so the next cycle
	// retries while the occurrence is still in-window.
	svc.RunCycle(context.Background())
	require.Len(t, dialer.calls, 2)
	require.Len(t, pub.published, 2)
	require.True(t, pub.published[1][0].Success)
}

func TestCycleMatchScopedToOwningUser(t *testing.T) {
	db := openTestDB(t)
	userA := seedUser(t, db, "a@example.com")
	userB := seedUser(t, db, "b@example.com")
	seedEvent(t, db, userA, "Dentist", "g1", "+15551234567")

	// Both polls surface the same provider event id, but only user A has
	// a stored event for it.
	cal := &fakeCalendar{events: map[uuid.UUID][]ProviderEvent{
		userA: {{ID: "g1", Start: time.Now().Add(time.Minute)}},
		userB: {{ID: "g1", Start: time.Now().Add(time.Minute)}},
	}}
	dialer := &fakeDialer{}
	pub := &capturingPublisher{}

	svc := newTestService(db, cal, dialer, staticEligibility{userA, userB}, pub)
	svc.RunCycle(context.Background())

	require.Len(t, dialer.calls, 1)
	require.Equal(t, "+15551234567", dialer.calls[0].to)
	require.Len(t, pub.published[0], 1)
	require.Equal(t, userA, pub.published[0][0].UserID)
}

func TestCycleSkippedWhileRunning(t *testing.T) {
	db := openTestDB(t)
	cal := &fakeCalendar{}
	dialer := &fakeDialer{}
	pub := &capturingPublisher{}

	svc := newTestService(db, cal, dialer, staticEligibility{uuid.New()}, pub)
	svc.running.Store(true)

	svc.RunCycle(context.Background())

	require.Zero(t, cal.calls)
	require.Empty(t, pub.published, "an overlapping tick must be dropped, not queued")
}

func TestCycleReportsUnknownEligibleUser(t *testing.T) {
	db := openTestDB(t)
	ghost := uuid.New()

	cal := &fakeCalendar{}
	dialer := &fakeDialer{}
	pub := &capturingPublisher{}

	svc := newTestService(db, cal, dialer, staticEligibility{ghost}, pub)
	svc.RunCycle(context.Background())

	require.Len(t, pub.published, 1)
	require.Len(t, pub.published[0], 1)
	require.False(t, pub.published[0][0].Success)
	require.Equal(t, ghost, pub.published[0][0].UserID)
	require.Contains(t, pub.published[0][0].Error, "user not found")
}
