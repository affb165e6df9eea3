// Package negotiation runs WebDriver capability negotiation for incoming
// session requests.
// Transport-agnostic core: resolves the constraint profile (default or fetched
// by URL, cached) and runs capability processing against it.
// REST middleware extracts the profile URL from the Caps-Profile header.
// MCP handlers pass the profile URL explicitly from tool input.
package negotiation

import (
	"time"

	"webdriver-caps/internal/caps"
	"webdriver-caps/internal/model"
)

// FetchedProfile is a constraint profile retrieved from a URL.
type FetchedProfile struct {
	Profile *model.ConstraintProfile

	// Cache metadata - set by fetcher
	ProfileURL string
	FetchedAt  time.Time
	ExpiresAt  time.Time
}

// ResolvedProfile is the constraint profile chosen for one request.
// Stored in http.Request context for REST, passed explicitly for MCP handlers.
type ResolvedProfile struct {
	// ProfileURL is the requested profile URL, empty when the default was asked for
	ProfileURL string

	Profile *model.ConstraintProfile

	// FetchError is non-nil if the fetch failed and the default profile is used
	// instead. The caller should surface a warning when set.
	FetchError error
}

// Constraints returns the table to validate against.
func (r *ResolvedProfile) Constraints() caps.Constraints {
	if r == nil || r.Profile == nil {
		return nil
	}
	return r.Profile.Constraints
}

// NegotiatedContext is the result of a successful negotiation.
type NegotiatedContext struct {
	Profile *ResolvedProfile

	// Capabilities is the merged, prefix-resolved capability set
	Capabilities caps.Map

	// NonPrefixed lists non-standard capabilities sent without a vendor prefix
	NonPrefixed []string

	// Warnings are client-facing notes: prefix decisions, non-prefixed caps,
	// profile fallback
	Warnings []string
}

// contextKey is the type for context values to avoid collisions
type contextKey string

// ProfileContextKey is the context key for storing ResolvedProfile
const ProfileContextKey contextKey = "caps.profile"

// ProfileVersionUnsupported is the error code when a fetched profile is too old
const ProfileVersionUnsupported = "profile_version_unsupported"
