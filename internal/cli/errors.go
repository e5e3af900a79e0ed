package cli

import (
	"errors"

	"readearn/internal/api"
	"readearn/internal/publish"
	"readearn/internal/reading"
)

// Error codes shared by text and JSON output.
const (
	ErrCodeGeneric          = "error"
	ErrCodeConfig           = "config"
	ErrCodeUsage            = "usage"
	ErrCodeNotLoggedIn      = "not_logged_in"
	ErrCodeSessionExpired   = "session_expired"
	ErrCodeCancelled        = "cancelled"
	ErrCodeInsufficientPts  = "insufficient_points"
	ErrCodeBelowThreshold   = "balance_below_threshold"
	ErrCodeTopUpRequired    = "top_up_required"
	ErrCodeReadingTime      = "insufficient_reading_time"
	ErrCodeAlreadyRewarded  = "already_rewarded"
	ErrCodeValidation       = "validation"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeUpstream         = "upstream"
	ErrCodeInvalidArguments = "invalid_arguments"
)

var (
	errNotLoggedIn = errors.New("not logged in, run `readearn login` first")
	errCancelled   = errors.New("cancelled")
)

// classify maps the error taxonomy onto an output code and exit code.
func classify(err error) (string, int) {
	switch {
	case errors.Is(err, errNotLoggedIn):
		return ErrCodeNotLoggedIn, ExitCommandError
	case errors.Is(err, api.ErrSessionExpired):
		return ErrCodeSessionExpired, ExitCommandError
	case errors.Is(err, errCancelled):
		return ErrCodeCancelled, ExitFailure
	case errors.Is(err, reading.ErrInsufficientPoints):
		return ErrCodeInsufficientPts, ExitFailure
	case errors.Is(err, publish.ErrBlockedLocally):
		return ErrCodeBelowThreshold, ExitFailure
	case errors.Is(err, publish.ErrTopUpRequired), errors.Is(err, api.ErrInsufficientBalance):
		return ErrCodeTopUpRequired, ExitFailure
	case errors.Is(err, api.ErrInsufficientReadingTime):
		return ErrCodeReadingTime, ExitFailure
	case errors.Is(err, reading.ErrAlreadyRewarded), errors.Is(err, api.ErrAlreadyRewarded):
		return ErrCodeAlreadyRewarded, ExitFailure
	case errors.Is(err, api.ErrValidation):
		return ErrCodeValidation, ExitFailure
	case errors.Is(err, api.ErrUnauthorized):
		return ErrCodeForbidden, ExitFailure
	case errors.Is(err, api.ErrNotFound):
		return ErrCodeNotFound, ExitFailure
	case errors.Is(err, api.ErrTransient), errors.Is(err, api.ErrUnexpectedResponse):
		return ErrCodeUpstream, ExitFailure
	}
	return ErrCodeGeneric, ExitFailure
}

// fail reports err through f and returns the ExitError for cobra.
func fail(f *OutputFormatter, err error) error {
	code, exit := classify(err)

	var details interface{}
	var pointsErr *reading.InsufficientPointsError
	var notReady *reading.NotReadyError
	var apiErr *api.APIError
	switch {
	case errors.As(err, &pointsErr):
		details = map[string]string{
			"requested": pointsErr.Requested.String(),
			"available": pointsErr.Available.String(),
		}
	case errors.As(err, &notReady):
		details = map[string]int{
			"required_minutes":  notReady.RequiredMinutes,
			"remaining_seconds": notReady.RemainingSeconds,
		}
	case errors.Is(err, publish.ErrTopUpRequired):
		details = map[string]string{"redirect": publish.TopUpPath}
	case errors.As(err, &apiErr) && len(apiErr.Fields) > 0:
		details = apiErr.Fields
	}

	msg := api.Message(err)
	_ = f.Error(code, msg, details)
	return WrapExitError(exit, msg, err)
}

// usageError is a bad-argument failure reported before any API call.
func usageError(f *OutputFormatter, msg string) error {
	_ = f.Error(ErrCodeInvalidArguments, msg, nil)
	return NewExitError(ExitCommandError, msg)
}
