package apiclient

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// Kind classifies a failed API call. Transport-level classification happens
// once, here; no layer above the client inspects raw status codes.
type Kind string

const (
	KindNetwork      Kind = "network"      // no response received at all
	KindUnauthorized Kind = "unauthorized" // credential rejected, re-auth exhausted
	KindPermission   Kind = "permission"   // authenticated but forbidden
	KindNotFound     Kind = "not_found"
	KindValidation   Kind = "validation" // request payload rejected
	KindRateLimited  Kind = "rate_limited"
	KindServer       Kind = "server" // 5xx after retries exhausted
	KindUnknown      Kind = "unknown"
)

// User-facing messages used when the response body offers nothing better.
const (
	msgNetwork        = "Network error. Please check your internet connection."
	msgSessionExpired = "Your session has expired. Please log in again."
	msgPermission     = "You do not have permission to access this resource."
	msgNotFound       = "The requested resource was not found."
	msgValidation     = "Validation failed. Please check your input."
	msgRateLimited    = "Too many requests. Please try again later."
	msgServer         = "Server error. Please try again later."
	msgUnknown        = "An unexpected error occurred."
)

// Error is the single normalized error shape surfaced to callers.
type Error struct {
	Kind    Kind
	Status  int    // HTTP status, 0 for network failures
	Message string // human-readable, safe to show in UI
	// Fields carries field-level validation detail, when present.
	Fields map[string][]string
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
}

// KindOf extracts the error kind, or KindUnknown for foreign errors
func KindOf(err error) Kind {
	var apiErr *Error
	if stderrors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is an API error of the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// errorBody is the backend's error response envelope
type errorBody struct {
	Message string              `json:"message"`
	Code    string              `json:"code,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// classify reduces a non-2xx response to the normalized taxonomy. The 401
// path is handled by the request loop before classification; a 401 reaching
// here means re-authentication is off the table.
func classify(status int, body []byte) *Error {
	parsed := parseErrorBody(body)

	switch {
	case status == 401:
		return &Error{Kind: KindUnauthorized, Status: status, Message: msgSessionExpired}
	case status == 403:
		return &Error{Kind: KindPermission, Status: status, Message: msgPermission}
	case status == 404:
		return &Error{Kind: KindNotFound, Status: status, Message: msgNotFound}
	case status == 422:
		message := msgValidation
		if parsed != nil && parsed.Message != "" {
			message = parsed.Message
		}
		err := &Error{Kind: KindValidation, Status: status, Message: message}
		if parsed != nil {
			err.Fields = parsed.Errors
		}
		return err
	case status == 429:
		return &Error{Kind: KindRateLimited, Status: status, Message: msgRateLimited}
	case status >= 500:
		return &Error{Kind: KindServer, Status: status, Message: msgServer}
	default:
		message := msgUnknown
		if parsed != nil && parsed.Message != "" {
			message = parsed.Message
		}
		return &Error{Kind: KindUnknown, Status: status, Message: message}
	}
}

func parseErrorBody(body []byte) *errorBody {
	if len(body) == 0 {
		return nil
	}
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil
	}
	return &parsed
}
