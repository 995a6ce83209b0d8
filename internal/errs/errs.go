package errs

import "errors"

var (
	ErrTicketNotFound = errors.New("ticket not found")

	// ErrStoreUnavailable is returned when the record store could not be
	// initialised at startup. Callers must not retry.
	ErrStoreUnavailable = errors.New("ticket store not configured")

	// ErrInsertRejected marks an insert the store answered with row-level errors.
	ErrInsertRejected = errors.New("ticket insert rejected")

	ErrAgentUnavailable     = errors.New("conversational agent not configured")
	ErrTransportUnavailable = errors.New("messaging transport not configured")
)
