package caps

import (
	"fmt"
	"strings"
)

// VendorPrefix marks capabilities this server owns.
const VendorPrefix = "appium:"

// standardCaps are the capability names defined by W3C WebDriver, plus
// platformVersion which every mobile driver treats as standard.
var standardCaps = [...]string{
	"acceptInsecureCerts",
	"browserName",
	"browserVersion",
	"pageLoadStrategy",
	"platformName",
	"platformVersion",
	"proxy",
	"setWindowRect",
	"strictFileInteractability",
	"timeouts",
	"unhandledPromptBehavior",
}

// IsStandard reports whether name is a standard capability. Case is ignored.
func IsStandard(name string) bool {
	for _, s := range standardCaps {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// IsExtension reports whether key carries a vendor prefix ("vendor:name").
func IsExtension(key string) bool {
	return strings.Contains(key, ":")
}

// PrefixReport describes what StripPrefixes did to one object.
type PrefixReport struct {
	// Shadowed lists prefixed keys dropped because the bare key was also set.
	Shadowed []string
	// Standard lists standard capabilities that carried the vendor prefix.
	Standard []string
}

// Warnings renders r as log-friendly messages.
func (r PrefixReport) Warnings(source Map) []string {
	var out []string
	for _, key := range r.Shadowed {
		bare := strings.TrimPrefix(key, VendorPrefix)
		out = append(out, fmt.Sprintf("Ignoring capability '%s=%s' and using capability '%s=%s'",
			key, render(source[key]), bare, render(source[bare])))
	}
	if len(r.Standard) > 0 {
		out = append(out, fmt.Sprintf(
			"The capabilities %s are standard capabilities and do not require %q prefix",
			render(r.Standard), VendorPrefix))
	}
	return out
}

// StripPrefixes resolves vendor-prefixed keys within a single object. Every
// "appium:<name>" key becomes "<name>" unless "<name>" is also set to a
// non-null value in the same object, in which case the bare value wins and
// the prefixed key is dropped. m is not modified.
func StripPrefixes(m Map) (Map, PrefixReport) {
	var report PrefixReport
	out := make(Map, len(m))
	for k, v := range m {
		if !strings.HasPrefix(k, VendorPrefix) {
			out[k] = v
		}
	}

	for _, k := range sortedKeys(m) {
		bare, ok := strings.CutPrefix(k, VendorPrefix)
		if !ok {
			continue
		}
		if IsStandard(bare) {
			report.Standard = append(report.Standard, bare)
		}
		if existing, set := m[bare]; set && existing != nil {
			report.Shadowed = append(report.Shadowed, k)
			continue
		}
		out[bare] = m[k]
	}

	return out, report
}

// FindNonPrefixed lists the capability keys in request that are neither
// standard nor vendor-prefixed. Each key is reported once, at its first
// occurrence. Source order is preserved: alwaysMatch first, then each
// firstMatch entry in array order. Within one object keys are reported in
// lexical order, since a decoded JSON object keeps no key order. Malformed
// parts are skipped.
func FindNonPrefixed(request any) []string {
	req, ok := asMap(request)
	if !ok {
		return []string{}
	}

	sources := []Map{}
	if always, ok := asMap(req["alwaysMatch"]); ok {
		sources = append(sources, always)
	}
	if first, ok := asSlice(req["firstMatch"]); ok {
		for _, entry := range first {
			if m, ok := asMap(entry); ok {
				sources = append(sources, m)
			}
		}
	}

	found := []string{}
	seen := make(map[string]bool)
	for _, src := range sources {
		for _, key := range sortedKeys(src) {
			if IsExtension(key) || IsStandard(key) || seen[key] {
				continue
			}
			seen[key] = true
			found = append(found, key)
		}
	}
	return found
}
