package usecase

import "errors"

// ErrDispatcherClosed is returned for notifications queued after Close.
var ErrDispatcherClosed = errors.New("notification dispatcher closed")
