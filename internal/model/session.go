// Package model defines wire types for the WebDriver new-session exchange and
// constraint profile documents.
package model

import (
	"webdriver-caps/internal/caps"
)

// === Requests ===

// NewSessionRequest is the W3C "New Session" body.
// Capabilities stays undecoded beyond JSON so the negotiator can report shape
// errors ("must be a JSON object") exactly as the client sent them.
type NewSessionRequest struct {
	Capabilities any `json:"capabilities"`
}

// ValidateRequest asks for a single capability object to be checked.
// Constraints, when nil, default to the resolved constraint profile.
type ValidateRequest struct {
	Caps                   any              `json:"caps"`
	Constraints            caps.Constraints `json:"constraints,omitempty"`
	SkipPresenceConstraint bool             `json:"skipPresenceConstraint,omitempty"`
}

// MergeRequest asks for two capability objects to be merged.
type MergeRequest struct {
	Primary   caps.Map `json:"primary,omitempty"`
	Secondary caps.Map `json:"secondary,omitempty"`
}

// === Responses ===

// Envelope wraps every successful response as W3C does: {"value": ...}.
type Envelope struct {
	Value any `json:"value"`
}

// NegotiatedSession is the value of a successful new-session negotiation.
type NegotiatedSession struct {
	Capabilities caps.Map `json:"capabilities"`
	// Profile names the constraint profile the capabilities were checked against.
	Profile  string   `json:"profile,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// NonPrefixedResult lists non-standard capabilities missing a vendor prefix.
type NonPrefixedResult struct {
	NonPrefixed []string `json:"nonPrefixed"`
}
