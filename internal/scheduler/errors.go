package scheduler

import "errors"

var (
	// ErrInvalidTrigger is returned when a trigger rule does not fit its mode.
	ErrInvalidTrigger = errors.New("invalid trigger")
	// ErrJobNotFound is returned when the engine has no armed trigger for an id.
	ErrJobNotFound = errors.New("job not found")
	// ErrAlreadyArmed is returned when arming an id twice.
	ErrAlreadyArmed = errors.New("trigger already armed")
	// ErrExhausted is returned by Restore for one-shot triggers that already
	// fired or missed their grace window.
	ErrExhausted = errors.New("trigger exhausted")
)
