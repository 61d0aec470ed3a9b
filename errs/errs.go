// Package errs holds the error taxonomy shared by the sync, notification and account layers.
package errs

import (
	"errors"
	"fmt"
)

// ErrPermissionDenied is returned when the user refused a notification permission.
// Callers degrade instead of failing the primary action.
var ErrPermissionDenied = errors.New("permission denied")

// ValidationError reports an input that failed a local precondition.
// It never reaches the remote layer.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// Invalid is a shorthand for &ValidationError{Field: field, Reason: reason}.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// RemoteUnavailableError wraps a failed read, write or subscribe call on the remote store.
type RemoteUnavailableError struct {
	Op   string
	Path string
	Err  error
}

func (e *RemoteUnavailableError) Error() string {
	return fmt.Sprintf("remote %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *RemoteUnavailableError) Unwrap() error { return e.Err }

// StaleStateError means a message was appended but the chat preview update failed.
// The message is persisted; the chat list shows the previous preview until the next
// successful text send.
type StaleStateError struct {
	ChatID    string
	MessageID string
	Err       error
}

func (e *StaleStateError) Error() string {
	return fmt.Sprintf("chat %s: message %s sent, preview not updated: %v", e.ChatID, e.MessageID, e.Err)
}

func (e *StaleStateError) Unwrap() error { return e.Err }

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsRemote reports whether err carries a RemoteUnavailableError.
func IsRemote(err error) bool {
	var re *RemoteUnavailableError
	return errors.As(err, &re)
}
