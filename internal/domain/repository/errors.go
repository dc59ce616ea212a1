package repository

import "errors"

var (
	// ErrEntryNotFound is returned when an entry does not exist. For an
	// executing task this is fatal: the entry was deleted concurrently
	// and the task must be dropped, not retried.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrAnalysisNotFound is returned when no analysis artifact exists
	// for an entry.
	ErrAnalysisNotFound = errors.New("analysis not found")

	// ErrTaskNotFound is returned when a scheduled task does not exist.
	ErrTaskNotFound = errors.New("scheduled task not found")

	// ErrStaleState is returned when a compare-and-swap transition finds
	// the stored state differs from the expected one. It signals that
	// another execution already advanced the entry; callers treat it as
	// "already handled", not as a failure to surface.
	ErrStaleState = errors.New("stale processing state")
)
