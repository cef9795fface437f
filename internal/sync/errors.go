package sync

import "errors"

// The engine distinguishes four error classes so callers never have to
// string-match messages to decide between "skip this item" and "halt":
//
//   - ConfigError: task definition contradicts destination state. Fatal;
//     requires an operator fix and a restart.
//   - IntegrityError: the ledger references staged files that no longer
//     exist anywhere. Fatal at startup; continuing risks duplicate
//     uploads.
//   - ConfirmationError: the destination accepted a call but the
//     post-condition check failed. Logged per item, no retry this cycle.
//   - everything else: transient per-item failures, logged and skipped
//     without aborting the batch.

// ConfigError reports a task definition the destination cannot satisfy.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "sync: configuration error: " + e.Reason
}

// IntegrityError reports a ledger entry whose staged file is missing from
// both staging locations. Whether the upload happened cannot be inferred,
// so startup refuses to continue.
type IntegrityError struct {
	Filename string
}

func (e *IntegrityError) Error() string {
	return "sync: integrity error: staged file " + e.Filename + " missing from both staging locations"
}

// ConfirmationError reports a link call the destination accepted without
// the item actually appearing in the playlist afterwards.
type ConfirmationError struct {
	Item     string
	Playlist string
}

func (e *ConfirmationError) Error() string {
	return "sync: destination did not confirm " + e.Item + " as a member of playlist " + e.Playlist
}

// Fatal reports whether err requires halting the process rather than
// skipping an item and continuing the cycle.
func Fatal(err error) bool {
	var (
		cfgErr       *ConfigError
		integrityErr *IntegrityError
	)

	return errors.As(err, &cfgErr) || errors.As(err, &integrityErr)
}
