package billing

import (
	"errors"
	"fmt"

	"folioAPI/internal/types/subscription"
)

var (
	// ErrMissingJoinKey means the event carries nothing that identifies a local row.
	ErrMissingJoinKey = errors.New("no user id, subscription id or email in event")
	// ErrUserNotFound is returned by stores when an email matches no user.
	ErrUserNotFound = errors.New("user not found")
	// ErrSubscriptionNotFound is returned by stores when a user has no row yet.
	ErrSubscriptionNotFound = errors.New("subscription not found")
	// ErrUnknownProvider is returned when no adapter is registered under a name.
	ErrUnknownProvider = errors.New("unknown payment provider")
)

// AuthenticationError rejects a delivery whose signature is missing, malformed
// or wrong. Nothing has been parsed or written when it is returned.
type AuthenticationError struct {
	Provider subscription.Provider
	Reason   string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("%s webhook: authentication failed: %s", e.Provider, e.Reason)
}

// ProcessingError wraps parse and persistence failures. The provider is
// expected to redeliver.
type ProcessingError struct {
	Provider subscription.Provider
	Event    string
	Err      error
}

func (e *ProcessingError) Error() string {
	if e.Event == "" {
		return fmt.Sprintf("%s webhook: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s webhook %s: %v", e.Provider, e.Event, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

func authError(provider subscription.Provider, format string, args ...any) *AuthenticationError {
	return &AuthenticationError{Provider: provider, Reason: fmt.Sprintf(format, args...)}
}
