package response

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// WebhookAck is the body returned to Jira for an accepted delivery.
type WebhookAck struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	LogFile   string `json:"logFile,omitempty"`
}

// WebhookError is the body for rejected deliveries and unknown routes. It only
// carries a category label.
type WebhookError struct {
	Error     string `json:"error"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func Now() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}

// Accepted sends 200 {status:"accepted", timestamp}.
func Accepted(c echo.Context, logFile string) error {
	return c.JSON(http.StatusOK, WebhookAck{Status: "accepted", Timestamp: Now(), LogFile: logFile})
}

// Rejected sends status with {error, reason, timestamp}.
func Rejected(c echo.Context, status int, message, reason string) error {
	return c.JSON(status, WebhookError{Error: message, Reason: reason, Timestamp: Now()})
}
