package services

import "errors"

// Failure taxonomy for the reminder pipeline. Callers classify with
// errors.Is; wrapped messages carry the provider detail.
var (
	ErrUserNotFound            = errors.New("user not found")
	ErrNoCredential            = errors.New("user has no stored credential")
	ErrCredentialRefreshFailed = errors.New("credential refresh failed")
	ErrCalendarFetchFailed     = errors.New("calendar fetch failed")
	ErrCalendarWriteFailed     = errors.New("calendar write failed")
	ErrTelephonyConfigMissing  = errors.New("telephony configuration missing")
	ErrTelephonyDispatchFailed = errors.New("telephony dispatch failed")
)
