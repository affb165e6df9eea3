package negotiation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/mod/semver"

	"webdriver-caps/internal/caps"
	"webdriver-caps/internal/model"
)

// Options tunes a Negotiator.
type Options struct {
	// MinProfileVersion rejects fetched profiles older than this semver.
	// Empty accepts any version.
	MinProfileVersion string

	// StrictProfiles fails resolution when a named profile cannot be fetched
	// instead of falling back to the default profile.
	StrictProfiles bool

	Logger *slog.Logger
}

// Negotiator resolves constraint profiles and negotiates capability requests
// against them.
type Negotiator struct {
	fetcher        ProfileFetcher
	defaultProfile *model.ConstraintProfile
	minVersion     string
	strict         bool
	logger         *slog.Logger
}

// NewNegotiator creates a negotiator with the given fetcher and default profile.
// The fetcher may be nil to disable remote profiles.
func NewNegotiator(fetcher ProfileFetcher, defaultProfile *model.ConstraintProfile, opts Options) *Negotiator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Negotiator{
		fetcher:        fetcher,
		defaultProfile: defaultProfile,
		minVersion:     opts.MinProfileVersion,
		strict:         opts.StrictProfiles,
		logger:         logger,
	}
}

// DefaultProfile returns the profile used when a request names none.
func (n *Negotiator) DefaultProfile() *model.ConstraintProfile {
	return n.defaultProfile
}

// Resolve picks the constraint profile for a request.
// An empty URL selects the default profile. If the fetch fails, the default
// profile is returned with FetchError set, or in strict mode an upstream
// *model.WebDriverError is returned. A fetched profile older than the
// configured minimum version is rejected with a VersionError.
func (n *Negotiator) Resolve(ctx context.Context, profileURL string) (*ResolvedProfile, error) {
	return n.ResolveRef(ctx, ProfileRef{URL: profileURL})
}

// ResolveRef is Resolve with a per-request minimum version. The fetched
// profile must satisfy both the configured and the requested minimum; a
// fallback to the default profile is not version checked.
func (n *Negotiator) ResolveRef(ctx context.Context, ref ProfileRef) (*ResolvedProfile, error) {
	profileURL := ref.URL
	if profileURL == "" {
		return &ResolvedProfile{Profile: n.defaultProfile}, nil
	}

	if n.fetcher == nil {
		return n.fallback(profileURL, fmt.Errorf("remote constraint profiles are disabled"))
	}

	fetched, err := n.fetcher.Fetch(ctx, profileURL)
	if err != nil {
		return n.fallback(profileURL, err)
	}

	for _, floor := range []string{n.minVersion, ref.MinVersion} {
		if err := validateVersion(floor, fetched.Profile.Version); err != nil {
			return nil, err
		}
	}

	return &ResolvedProfile{
		ProfileURL: profileURL,
		Profile:    fetched.Profile,
	}, nil
}

func (n *Negotiator) fallback(profileURL string, fetchErr error) (*ResolvedProfile, error) {
	if n.strict {
		return nil, model.NewUpstreamError("constraint profile", fetchErr)
	}
	return &ResolvedProfile{
		ProfileURL: profileURL,
		Profile:    n.defaultProfile,
		FetchError: fetchErr,
	}, nil
}

// Negotiate processes a capability request (the object inside the
// "capabilities" envelope) against the resolved profile.
// Validation failures are returned unchanged as *caps.ValidationError.
func (n *Negotiator) Negotiate(ctx context.Context, resolved *ResolvedProfile, request any) (*NegotiatedContext, error) {
	if resolved == nil {
		resolved = &ResolvedProfile{Profile: n.defaultProfile}
	}

	parsed, err := caps.Parse(request, resolved.Constraints())
	if err != nil {
		return nil, err
	}

	matched, err := parsed.Result()
	if err != nil {
		return nil, err
	}

	warnings := append([]string{}, parsed.Warnings...)
	if len(parsed.NonPrefixed) > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"All non-standard capabilities should have a vendor prefix. The following capabilities did not have one: %s",
			strings.Join(parsed.NonPrefixed, ", ")))
	}
	if resolved.FetchError != nil {
		warnings = append(warnings, fmt.Sprintf(
			"constraint profile %s unavailable, validated against %s", resolved.ProfileURL, profileLabel(resolved.Profile)))
	}

	for _, w := range warnings {
		n.logger.WarnContext(ctx, "capability negotiation warning",
			slog.String("profile", profileLabel(resolved.Profile)),
			slog.String("warning", w))
	}

	return &NegotiatedContext{
		Profile:      resolved,
		Capabilities: matched,
		NonPrefixed:  parsed.NonPrefixed,
		Warnings:     warnings,
	}, nil
}

func profileLabel(p *model.ConstraintProfile) string {
	if p == nil {
		return "no constraints"
	}
	return p.Label()
}

// validateVersion checks a fetched profile against the minimum version.
// Versions are semver, with or without the leading "v".
func validateVersion(minVersion, profileVersion string) error {
	if minVersion == "" {
		return nil
	}

	pv := normalizeVersion(profileVersion)
	mv := normalizeVersion(minVersion)

	if !semver.IsValid(pv) {
		return &VersionError{
			Code:           ProfileVersionUnsupported,
			Message:        fmt.Sprintf("constraint profile version %q is not a semantic version", profileVersion),
			ProfileVersion: profileVersion,
			MinVersion:     minVersion,
		}
	}

	if semver.Compare(pv, mv) < 0 {
		return &VersionError{
			Code:           ProfileVersionUnsupported,
			Message:        fmt.Sprintf("constraint profile version %s is older than required %s", profileVersion, minVersion),
			ProfileVersion: profileVersion,
			MinVersion:     minVersion,
		}
	}

	return nil
}

// VersionError is returned when a fetched profile's version is unsupported.
type VersionError struct {
	Code           string
	Message        string
	ProfileVersion string
	MinVersion     string
}

func (e *VersionError) Error() string {
	return e.Message
}

// normalizeVersion adds "v" prefix if needed for semver parsing.
func normalizeVersion(v string) string {
	if v == "" {
		return "v0.0.0"
	}
	if v[0] != 'v' {
		return "v" + v
	}
	return v
}
