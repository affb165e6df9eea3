package caps

import (
	"fmt"
	"strings"
)

// ParsedCaps is the intermediate result of Parse.
type ParsedCaps struct {
	// RequiredCaps is alwaysMatch after prefix resolution.
	RequiredCaps Map `json:"requiredCaps"`
	// AllFirstMatchCaps holds every firstMatch entry after prefix resolution.
	AllFirstMatchCaps []Map `json:"allFirstMatchCaps"`
	// ValidatedFirstMatchCaps holds the entries that passed validation.
	ValidatedFirstMatchCaps []Map `json:"validatedFirstMatchCaps"`
	// MatchedCaps is the negotiated capability set, nil when nothing matched.
	MatchedCaps Map `json:"matchedCaps"`

	// ValidationErrors collects why rejected alternatives were rejected.
	ValidationErrors []string `json:"validationErrors,omitempty"`
	// NonPrefixed lists non-standard keys missing a vendor prefix.
	NonPrefixed []string `json:"nonPrefixed,omitempty"`
	// Warnings describes prefix resolution decisions worth reporting.
	Warnings []string `json:"warnings,omitempty"`

	source string
}

// Result returns the negotiated capabilities, or a no-match error that lists
// every rejected alternative.
func (p *ParsedCaps) Result() (Map, error) {
	if p.MatchedCaps != nil {
		return p.MatchedCaps, nil
	}

	msg := fmt.Sprintf("Could not find matching capabilities from %s. "+
		"Maybe you raised a capability constraint that was not met", p.source)
	if len(p.ValidationErrors) > 0 {
		msg += ":\n" + strings.Join(p.ValidationErrors, "\n")
	}

	reasons := make([]string, len(p.ValidationErrors))
	copy(reasons, p.ValidationErrors)
	return nil, &ValidationError{Kind: FailureNoMatch, Message: msg, Reasons: reasons}
}

// Parse runs the W3C capability processing steps up to and including the
// selection of the first matching alternative.
//
// Shape errors and alwaysMatch violations fail immediately. A firstMatch
// entry that violates the table is dropped and its reason recorded; Parse
// still succeeds when no entry survives, leaving MatchedCaps nil.
func Parse(request any, table Constraints) (*ParsedCaps, error) {
	req, ok := asMap(request)
	if !ok {
		return nil, newError(FailureMalformed, "", fmt.Sprintf(
			"capabilities %s must be a JSON object", render(request)))
	}

	always := Map{}
	if raw, present := req["alwaysMatch"]; present && raw != nil {
		m, ok := asMap(raw)
		if !ok {
			return nil, newError(FailureMalformed, "alwaysMatch", fmt.Sprintf(
				"alwaysMatch %s must be a JSON object", render(raw)))
		}
		always = m
	}

	entries := []any{Map{}}
	if raw, present := req["firstMatch"]; present {
		list, ok := asSlice(raw)
		if !ok {
			return nil, newError(FailureMalformed, "firstMatch", fmt.Sprintf(
				"firstMatch %s must be a JSON array or undefined", render(raw)))
		}
		if len(list) > 0 {
			entries = list
		}
	}

	parsed := &ParsedCaps{
		NonPrefixed: FindNonPrefixed(req),
		source:      render(req),
	}

	required, report := StripPrefixes(always)
	parsed.Warnings = append(parsed.Warnings, report.Warnings(always)...)
	if _, err := Validate(required, table, ValidateOptions{SkipPresenceConstraint: true}); err != nil {
		return nil, err
	}
	parsed.RequiredCaps = required

	parsed.AllFirstMatchCaps = make([]Map, 0, len(entries))
	for i, entry := range entries {
		m, ok := asMap(entry)
		if !ok {
			return nil, newError(FailureMalformed, "firstMatch", fmt.Sprintf(
				"firstMatch[%d] %s must be a JSON object", i, render(entry)))
		}
		stripped, report := StripPrefixes(m)
		parsed.Warnings = append(parsed.Warnings, report.Warnings(m)...)
		parsed.AllFirstMatchCaps = append(parsed.AllFirstMatchCaps, stripped)
	}

	// Keys already fixed by alwaysMatch were checked above; presence of the
	// rest is judged on each alternative.
	remaining := table.Without(required)
	parsed.ValidatedFirstMatchCaps = make([]Map, 0, len(parsed.AllFirstMatchCaps))
	for _, alt := range parsed.AllFirstMatchCaps {
		if _, err := Validate(alt, remaining, ValidateOptions{}); err != nil {
			parsed.ValidationErrors = append(parsed.ValidationErrors, err.Error())
			continue
		}
		parsed.ValidatedFirstMatchCaps = append(parsed.ValidatedFirstMatchCaps, alt)
	}

	for _, alt := range parsed.ValidatedFirstMatchCaps {
		merged, err := Merge(required, alt)
		if err != nil {
			parsed.ValidationErrors = append(parsed.ValidationErrors, err.Error())
			continue
		}
		if _, err := Validate(merged, table, ValidateOptions{}); err != nil {
			parsed.ValidationErrors = append(parsed.ValidationErrors, err.Error())
			continue
		}
		parsed.MatchedCaps = merged
		break
	}

	return parsed, nil
}

// Process negotiates a capability request against table and returns the
// merged, prefix-resolved capabilities of the first matching alternative.
func Process(request any, table Constraints) (Map, error) {
	parsed, err := Parse(request, table)
	if err != nil {
		return nil, err
	}
	return parsed.Result()
}
