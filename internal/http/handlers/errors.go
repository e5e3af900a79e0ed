package handlers

import (
	"errors"
	"net/http"

	"readearn/internal/api"
	"readearn/internal/domain"
	"readearn/internal/logger"
	"readearn/internal/publish"
	"readearn/internal/reading"

	"github.com/gin-gonic/gin"
)

// writeError maps the error taxonomy onto HTTP responses. The body always
// has "error" with a message fit for display, and "code" when the UI has to
// react to the kind of failure.
func writeError(c *gin.Context, err error) {
	body := gin.H{"error": api.Message(err)}
	status := http.StatusInternalServerError

	var pointsErr *reading.InsufficientPointsError
	var notReady *reading.NotReadyError
	var apiErr *api.APIError

	switch {
	case errors.Is(err, api.ErrSessionExpired):
		status = http.StatusUnauthorized
		body["code"] = "session_expired"
		body["redirect"] = "/login"
	case errors.As(err, &pointsErr):
		status = http.StatusUnprocessableEntity
		body["code"] = "insufficient_points"
		body["requested"] = pointsErr.Requested
		body["available"] = pointsErr.Available
	case errors.Is(err, reading.ErrActionInFlight):
		status = http.StatusConflict
		body["code"] = "in_flight"
	case errors.Is(err, reading.ErrStaleResult), errors.Is(err, reading.ErrSessionClosed):
		status = http.StatusConflict
		body["code"] = "stale"
	case errors.Is(err, reading.ErrCollectNotReady), errors.Is(err, reading.ErrAlreadyStarted):
		status = http.StatusConflict
		body["code"] = "not_ready"
		if errors.As(err, &notReady) {
			body["required_minutes"] = notReady.RequiredMinutes
			body["remaining_seconds"] = notReady.RemainingSeconds
		}
	case errors.Is(err, reading.ErrAlreadyRewarded), errors.Is(err, api.ErrAlreadyRewarded):
		status = http.StatusConflict
		body["code"] = "already_rewarded"
	case errors.Is(err, reading.ErrGiftNotAllowed), errors.Is(err, reading.ErrInvalidGiftAmount):
		status = http.StatusBadRequest
		body["code"] = "gift_not_allowed"
	case errors.Is(err, publish.ErrBlockedLocally):
		status = http.StatusPaymentRequired
		body["code"] = "balance_below_threshold"
	case errors.Is(err, publish.ErrTopUpRequired), errors.Is(err, api.ErrInsufficientBalance):
		status = http.StatusConflict
		body["code"] = "top_up_required"
		body["redirect"] = publish.TopUpPath
	case errors.Is(err, api.ErrInsufficientReadingTime):
		status = http.StatusConflict
		body["code"] = "insufficient_reading_time"
		if errors.As(err, &apiErr) && apiErr.RequiredMinutes != nil {
			body["required_minutes"] = *apiErr.RequiredMinutes
		}
	case errors.Is(err, api.ErrValidation), errors.Is(err, domain.ErrMalformedAmount):
		status = http.StatusBadRequest
		body["code"] = "validation"
		if errors.As(err, &apiErr) && len(apiErr.Fields) > 0 {
			body["fields"] = apiErr.Fields
		}
	case errors.Is(err, api.ErrUnauthorized):
		status = http.StatusForbidden
		body["code"] = "forbidden"
	case errors.Is(err, api.ErrNotFound):
		status = http.StatusNotFound
		body["code"] = "not_found"
	case errors.Is(err, api.ErrTransient), errors.Is(err, api.ErrUnexpectedResponse):
		status = http.StatusBadGateway
		body["code"] = "upstream"
	case errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500:
		status = apiErr.Status
	}

	if status >= http.StatusInternalServerError {
		logger.WithContext(c.Request.Context()).Error("request failed",
			"path", c.FullPath(),
			"status", status,
			"error", err,
		)
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": "validation"})
}
