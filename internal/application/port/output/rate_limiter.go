package output

import "github.com/google/uuid"

// CreationLimiter bounds how often a single user may create entries,
// protecting the AI collaborator from abuse. Injected as a capability
// so the in-process token bucket can be swapped for a distributed
// limiter without touching the pipeline.
type CreationLimiter interface {
	// Allow reports whether the user may create an entry now. It never
	// blocks.
	Allow(userID uuid.UUID) bool
}
