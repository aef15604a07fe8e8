package calendar

import (
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

const (
	CodeAuth        = "AUTH"
	CodePermission  = "PERMISSION"
	CodeConflict    = "CONFLICT"
	CodeConflictTag = "CONFLICT_ETAG"
	CodeGoogleAPI   = "GOOGLE_API"
)

// ProviderError is a calendar failure reduced to a stable status, code and
// message. The underlying error is kept for logging only.
type ProviderError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// MapError classifies err. It never copies the provider response body into
// the message.
func MapError(err error) *ProviderError {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}

	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		return &ProviderError{Status: http.StatusUnauthorized, Code: CodeAuth, Message: "could not refresh Google credentials; check the configured client and token", Err: err}
	}

	var ge *googleapi.Error
	if !errors.As(err, &ge) {
		return &ProviderError{Status: http.StatusInternalServerError, Code: CodeGoogleAPI, Message: "Google API error", Err: err}
	}

	switch ge.Code {
	case http.StatusUnauthorized:
		return &ProviderError{Status: ge.Code, Code: CodeAuth, Message: "login required; check the configured Google credentials", Err: err}
	case http.StatusForbidden:
		return &ProviderError{Status: ge.Code, Code: CodePermission, Message: "insufficient permissions on the calendar", Err: err}
	case http.StatusConflict:
		return &ProviderError{Status: ge.Code, Code: CodeConflict, Message: "conflict", Err: err}
	case http.StatusPreconditionFailed:
		return &ProviderError{Status: ge.Code, Code: CodeConflictTag, Message: "etag mismatch", Err: err}
	}

	status := ge.Code
	if status < 400 || status > 599 {
		status = http.StatusInternalServerError
	}
	msg := "Google API error"
	if len(ge.Errors) > 0 && ge.Errors[0].Reason != "" {
		msg = fmt.Sprintf("Google API error (%s)", ge.Errors[0].Reason)
	}
	return &ProviderError{Status: status, Code: CodeGoogleAPI, Message: msg, Err: err}
}
