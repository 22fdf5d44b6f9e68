package webhook

import (
	"errors"
	"net/http"
)

// Reason is the category label of a rejected delivery.
type Reason string

const (
	ReasonInvalidUserAgent Reason = "InvalidUserAgent"
	ReasonMissingSignature Reason = "MissingSignature"
	ReasonInvalidSignature Reason = "InvalidSignature"
	ReasonUnauthorizedIP   Reason = "UnauthorizedIP"
	ReasonValidationError  Reason = "ValidationError"
)

// RejectError is returned by Authenticate when a delivery must not reach a handler.
type RejectError struct {
	Reason Reason
}

func (e *RejectError) Error() string {
	return "webhook rejected: " + string(e.Reason)
}

// Status maps the reason onto the HTTP status sent to the caller.
func (e *RejectError) Status() int {
	switch e.Reason {
	case ReasonInvalidUserAgent, ReasonMissingSignature, ReasonInvalidSignature:
		return http.StatusUnauthorized
	case ReasonUnauthorizedIP:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Message is the human readable label returned in the response body.
func (e *RejectError) Message() string {
	switch e.Reason {
	case ReasonInvalidUserAgent:
		return "Invalid User-Agent"
	case ReasonMissingSignature:
		return "Missing signature"
	case ReasonInvalidSignature:
		return "Invalid signature"
	case ReasonUnauthorizedIP:
		return "Unauthorized IP"
	default:
		return "Validation error"
	}
}

func reject(r Reason) error {
	return &RejectError{Reason: r}
}

// ReasonOf extracts the rejection reason, or "" when err is not a RejectError.
func ReasonOf(err error) Reason {
	var re *RejectError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ""
}
