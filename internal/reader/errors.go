// Package reader implements the managed-session connection lifecycle, the
// mutation protocol engine, the notification queue, and the reader
// registry.
package reader

import "errors"

// Sentinel errors surfaced by ManagedSession and the protocol engine.
var (
	// ErrNoTagInField indicates a routine requiring exactly one tag found
	// none in the commanded inventory.
	ErrNoTagInField = errors.New("reader: no tag in field")

	// ErrMultiTagInField indicates more than one tag answered an
	// inventory that a routine requires to see exactly one.
	ErrMultiTagInField = errors.New("reader: multiple tags in field")

	// ErrInvalidMediaID indicates the supplied media id was rejected by
	// the target format's validator.
	ErrInvalidMediaID = errors.New("reader: invalid media id")

	// ErrTagVerificationFailed indicates a re-inventory after an EPC
	// rewrite did not find the expected new identifier.
	ErrTagVerificationFailed = errors.New("reader: tag verification failed")

	// ErrTagWriteFailed indicates a block-write or lock retry ladder was
	// exhausted without a successful attempt.
	ErrTagWriteFailed = errors.New("reader: tag write failed")

	// ErrTIDReadInvalid indicates a TID-bank read did not return exactly
	// 12 bytes.
	ErrTIDReadInvalid = errors.New("reader: tid read invalid")

	// ErrRawFormatUnsupported indicates an edit/secure/unsecure routine
	// was invoked against a tag the factory classified as Raw.
	ErrRawFormatUnsupported = errors.New("reader: raw format does not support this operation")

	// ErrOperationInterrupted indicates the calling context was canceled
	// during a retry-ladder sleep.
	ErrOperationInterrupted = errors.New("reader: operation interrupted")

	// ErrOperationFailed is the terminal error surfaced when the
	// reconnect ladder is exhausted.
	ErrOperationFailed = errors.New("reader: operation failed")

	// ErrSessionClosed indicates execute was called on a session already
	// in the terminal Closed state.
	ErrSessionClosed = errors.New("reader: session closed")

	// ErrNotificationAlreadyActive indicates start_notification was
	// called while a notification listener was already running.
	ErrNotificationAlreadyActive = errors.New("reader: notification already active")

	// ErrSessionNotFound indicates no session exists for the given reader
	// name in the registry.
	ErrSessionNotFound = errors.New("reader: session not found")

	// ErrDuplicateSession indicates a reader name was already registered.
	ErrDuplicateSession = errors.New("reader: duplicate reader name")
)
