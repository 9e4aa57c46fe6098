package models

import (
	"time"

	"github.com/google/uuid"
)

// ReminderResult is one entry of a polling cycle's outcome list: a
// dispatched call for a matched event, or a per-user failure. Results are
// not persisted; the broadcaster keeps only the latest cycle's list.
type ReminderResult struct {
	UserID     uuid.UUID `json:"userId"`
	Email      string    `json:"email,omitempty"`
	EventID    string    `json:"eventId,omitempty"`
	EventName  string    `json:"eventName,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	CallSid    string    `json:"callSid,omitempty"`
	CallStatus string    `json:"callStatus,omitempty"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// CallStatusUpdate is forwarded to observers when the telephony provider
// reports call progress on the status-callback webhook.
type CallStatusUpdate struct {
	CallSid    string    `json:"callSid"`
	CallStatus string    `json:"callStatus"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Timestamp  time.Time `json:"timestamp"`
}
