package negotiation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dunglas/httpsfv"
	"golang.org/x/mod/semver"
)

// ProfileRef names a constraint profile and, optionally, the oldest profile
// version the caller will accept.
type ProfileRef struct {
	URL        string
	MinVersion string
}

// ParseCapsProfileHeader reads the Caps-Profile header, an RFC 8941 Dictionary
// whose "profile" member is the profile URL. A "version" parameter on that
// member sets the minimum accepted profile version for this request.
//
// Examples:
//   - profile="https://grid.example/xcuitest.yaml"
//   - profile="https://grid.example/xcuitest.yaml";version="1.2.0"
//   - driver=espresso, profile="https://foo.bar/p";version=2
func ParseCapsProfileHeader(header string) (ProfileRef, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return ProfileRef{}, errors.New("empty Caps-Profile header")
	}

	dict, err := httpsfv.UnmarshalDictionary([]string{header})
	if err != nil {
		return ProfileRef{}, fmt.Errorf("malformed structured field: %w", err)
	}

	member, ok := dict.Get("profile")
	if !ok {
		return ProfileRef{}, errors.New("profile key not found")
	}
	item, ok := member.(httpsfv.Item)
	if !ok {
		return ProfileRef{}, errors.New("profile must be a single URL, not a list")
	}
	url, ok := item.Value.(string)
	if !ok || url == "" {
		return ProfileRef{}, errors.New("profile must be a non-empty string")
	}

	ref := ProfileRef{URL: url}
	if raw, ok := item.Params.Get("version"); ok {
		if ref.MinVersion, err = versionParam(raw); err != nil {
			return ProfileRef{}, err
		}
	}
	return ref, nil
}

// versionParam accepts "1.2.0", v1.2.0 (token) or 2 (integer major version).
func versionParam(raw any) (string, error) {
	var v string
	switch val := raw.(type) {
	case string:
		v = val
	case httpsfv.Token:
		v = string(val)
	case int64:
		v = strconv.FormatInt(val, 10)
	default:
		return "", fmt.Errorf("version must be a string, token or integer")
	}

	if !semver.IsValid(normalizeVersion(v)) {
		return "", fmt.Errorf("version %q is not a semantic version", v)
	}
	return v, nil
}

// FormatCapsProfileHeader renders ref as a Caps-Profile header value.
func FormatCapsProfileHeader(ref ProfileRef) (string, error) {
	item := httpsfv.NewItem(ref.URL)
	if ref.MinVersion != "" {
		item.Params.Add("version", ref.MinVersion)
	}

	dict := httpsfv.NewDictionary()
	dict.Add("profile", item)
	return httpsfv.Marshal(dict)
}
