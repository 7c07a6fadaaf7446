package backend

import "errors"

var (
	// ErrUnavailable covers network failures and timeouts; callers retry
	// through the offline queue.
	ErrUnavailable = errors.New("backend unavailable")

	// ErrNotFound maps a 404 for a record or plan.
	ErrNotFound = errors.New("not found on server")

	// ErrLockConflict is a compare-and-swap miss on a lock write.
	ErrLockConflict = errors.New("lock write conflict")

	// ErrUnauthorized maps a 401; the access token is missing or expired.
	ErrUnauthorized = errors.New("unauthorized")
)
