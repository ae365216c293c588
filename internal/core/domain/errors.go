package domain

import "errors"

var (
	// ErrAlreadyActive indicates the principal already holds a live session.
	ErrAlreadyActive = errors.New("doublelife session already active")
	// ErrSystemDisabled indicates elevation is switched off by configuration.
	ErrSystemDisabled = errors.New("doublelife is disabled")
	// ErrNoEligibleProfile indicates none of the principal's groups map to a profile.
	ErrNoEligibleProfile = errors.New("no eligible doublelife profile")
	// ErrNoActiveSession indicates the principal has no live session.
	ErrNoActiveSession = errors.New("no active doublelife session")
	// ErrGrantServiceUnavailable indicates the permission service could not be reached or refused a change.
	ErrGrantServiceUnavailable = errors.New("permission service unavailable")
	// ErrNotificationRateLimited indicates the notification target asked us to back off.
	ErrNotificationRateLimited = errors.New("notification rate limited")
	// ErrNotificationFailed indicates a notification could not be delivered.
	ErrNotificationFailed = errors.New("notification failed")
)
