package scheduler

import "errors"

var (
	ErrEmptyName      = errors.New("scheduler: job name is required")
	ErrNilJob         = errors.New("scheduler: job function is nil")
	ErrAlreadyStarted = errors.New("scheduler: already started")
	ErrNotStarted     = errors.New("scheduler: not started")
)
