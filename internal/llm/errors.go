package llm

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

var (
	// ErrCredentialMissing means no API key is available; the caller should
	// ask the user for one.
	ErrCredentialMissing = errors.New("OpenRouter API key not configured")

	// ErrNoModel means no model has been selected.
	ErrNoModel = errors.New("no model selected")

	// ErrAuthFailed matches APIErrors for 401 and 403 responses.
	ErrAuthFailed = errors.New("authentication failed")
)

// APIError is a non-success response from OpenRouter.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// Is allows errors.Is(err, ErrAuthFailed).
func (e *APIError) Is(target error) bool {
	if target == ErrAuthFailed {
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}

// newAPIError builds an APIError from a response body. The message is
// error.message, then message, then a generic text with the status code.
func newAPIError(statusCode int, body []byte) *APIError {
	msg := fmt.Sprintf("HTTP %d", statusCode)
	if gjson.ValidBytes(body) {
		for _, path := range []string{"error.message", "message"} {
			if r := gjson.GetBytes(body, path); r.Type == gjson.String && r.String() != "" {
				msg = r.String()
				break
			}
		}
	}
	return &APIError{StatusCode: statusCode, Message: msg}
}

func failureMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if err == nil {
		return "Unknown error"
	}
	return err.Error()
}
