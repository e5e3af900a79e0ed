package reading

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrActionInFlight     = errors.New("another action is in progress")
	ErrStaleResult        = errors.New("result arrived for a session that moved on")
	ErrSessionClosed      = errors.New("reading session closed")
	ErrAlreadyStarted     = errors.New("reading already started")
	ErrCollectNotReady    = errors.New("reading time not completed yet")
	ErrAlreadyRewarded    = errors.New("reward already collected for this article")
	ErrGiftNotAllowed     = errors.New("gifts are available after collecting the reward")
	ErrInvalidGiftAmount  = errors.New("gift amount must be positive")
	ErrInsufficientPoints = errors.New("not enough reward points")
)

// InsufficientPointsError is the local gift pre-check failure.
type InsufficientPointsError struct {
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("cannot gift %s points: only %s reward points available",
		e.Requested.String(), e.Available.String())
}

func (e *InsufficientPointsError) Is(target error) bool {
	return target == ErrInsufficientPoints
}

// NotReadyError is returned by Collect before the countdown has completed.
// RequiredMinutes is how much longer the reader has to stay, rounded up.
type NotReadyError struct {
	RequiredMinutes  int
	RemainingSeconds int
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("%s: read for %d more minute(s)", ErrCollectNotReady.Error(), e.RequiredMinutes)
}

func (e *NotReadyError) Is(target error) bool {
	return target == ErrCollectNotReady
}

func newNotReadyError(remaining int) *NotReadyError {
	if remaining < 0 {
		remaining = 0
	}
	minutes := (remaining + 59) / 60
	if minutes == 0 {
		minutes = 1
	}
	return &NotReadyError{RequiredMinutes: minutes, RemainingSeconds: remaining}
}
