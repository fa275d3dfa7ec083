package directory

import (
	"errors"
	"fmt"
)

var (
	ErrMissingBaseURL    = errors.New("directory: provider url required")
	ErrMissingServiceKey = errors.New("directory: service key required")
	ErrMissingAccountID  = errors.New("directory: account id required")
)

// UpstreamError describes why the provider refused or failed a single call.
type UpstreamError struct {
	AccountID  string
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	subject := "provider call"
	if e.AccountID != "" {
		subject = fmt.Sprintf("delete %s", e.AccountID)
	}
	switch {
	case e.Err != nil:
		return fmt.Sprintf("directory: %s: %v", subject, e.Err)
	case e.Message != "":
		return fmt.Sprintf("directory: %s: status %d: %s", subject, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("directory: %s: status %d", subject, e.StatusCode)
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
