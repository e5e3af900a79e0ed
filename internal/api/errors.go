package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"unicode/utf8"
)

// Error taxonomy. *APIError and *TransportError match these through errors.Is.
var (
	ErrTransient               = errors.New("temporary failure, try again")
	ErrValidation              = errors.New("validation failed")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrSessionExpired          = errors.New("session expired, log in again")
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrInsufficientReadingTime = errors.New("insufficient reading time")
	ErrAlreadyRewarded         = errors.New("reward already collected")
	ErrNotFound                = errors.New("not found")
	ErrUnexpectedResponse      = errors.New("unexpected response shape")
)

// Machine codes the backend may put into "code".
const (
	CodeInsufficientBalance = "insufficient_balance"
	CodeInsufficientTime    = "insufficient_reading_time"
	CodeAlreadyRewarded     = "already_rewarded"
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int
	Code    string
	Message string
	// Fields holds per-field validation messages of a 400.
	Fields map[string][]string
	// RequiredMinutes is set when the backend refuses a reward because the
	// reader has not spent enough time on the article.
	RequiredMinutes *int
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api %d", e.Status)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrTransient:
		return e.Status >= 500
	case ErrValidation:
		return e.Status == http.StatusBadRequest && len(e.Fields) > 0
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrInsufficientBalance:
		if e.Code == CodeInsufficientBalance {
			return true
		}
		msg := strings.ToLower(e.Message)
		return strings.Contains(msg, "insufficient balance") || strings.Contains(msg, "insufficient funds")
	case ErrInsufficientReadingTime:
		return e.RequiredMinutes != nil || e.Code == CodeInsufficientTime
	case ErrAlreadyRewarded:
		if e.Code == CodeAlreadyRewarded {
			return true
		}
		msg := strings.ToLower(e.Message)
		return strings.Contains(msg, "already") &&
			(strings.Contains(msg, "reward") || strings.Contains(msg, "collected"))
	}
	return false
}

// TransportError is a request that never produced a response.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool {
	return target == ErrTransient
}

// errorBody is the union of the error shapes the backend produces.
type errorBody struct {
	Error           json.RawMessage `json:"error"`
	Detail          string          `json:"detail"`
	Message         string          `json:"message"`
	Code            string          `json:"code"`
	RequiredMinutes *int            `json:"required_minutes"`
}

// parseAPIError builds an *APIError from a non-2xx body. Bodies that are not
// JSON still produce an error carrying the status and the raw text.
func parseAPIError(status int, raw []byte) *APIError {
	apiErr := &APIError{Status: status}

	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		apiErr.Message = truncate(strings.TrimSpace(string(raw)), maxRawMessage)
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
		return apiErr
	}

	apiErr.Code = body.Code
	apiErr.RequiredMinutes = body.RequiredMinutes

	// "error" is either a string or {code, message}
	if len(body.Error) > 0 {
		var s string
		if err := json.Unmarshal(body.Error, &s); err == nil {
			apiErr.Message = s
		} else {
			var nested struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			}
			if err := json.Unmarshal(body.Error, &nested); err == nil {
				apiErr.Message = nested.Message
				if apiErr.Code == "" {
					apiErr.Code = nested.Code
				}
			}
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = body.Detail
	}
	if apiErr.Message == "" {
		apiErr.Message = body.Message
	}

	if status == http.StatusBadRequest {
		apiErr.Fields = fieldErrors(raw)
		if apiErr.Message == "" && len(apiErr.Fields) > 0 {
			apiErr.Message = firstFieldError(apiErr.Fields)
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

var reservedKeys = map[string]bool{
	"error": true, "detail": true, "message": true, "code": true, "required_minutes": true,
}

// fieldErrors picks {"field": ["msg", ...]} or {"field": "msg"} entries.
// maxRawMessage bounds how much of a non-JSON error body reaches the user.
const maxRawMessage = 200

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func fieldErrors(raw []byte) map[string][]string {
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil
	}
	out := make(map[string][]string)
	for key, val := range generic {
		if reservedKeys[key] {
			continue
		}
		var list []string
		if err := json.Unmarshal(val, &list); err == nil && len(list) > 0 {
			out[key] = list
			continue
		}
		var single string
		if err := json.Unmarshal(val, &single); err == nil && single != "" {
			out[key] = []string{single}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func firstFieldError(fields map[string][]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys[0] + ": " + fields[keys[0]][0]
}

// Message returns the human-readable part of err for display.
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if errors.Is(err, ErrTransient) {
		return ErrTransient.Error()
	}
	return err.Error()
}
