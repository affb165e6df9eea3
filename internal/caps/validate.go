package caps

import (
	"fmt"
	"strings"
)

// ValidateOptions tunes Validate.
type ValidateOptions struct {
	// SkipPresenceConstraint ignores Presence on every constraint. Used for
	// alwaysMatch, whose required keys may be supplied by a firstMatch entry.
	SkipPresenceConstraint bool
}

// checker inspects one present, non-null value. It returns "" when the value
// passes and the failure text otherwise.
type checker struct {
	kind  FailureKind
	check func(key string, c Constraint, v any) string
}

// checkers run in this order; the first failure wins.
var checkers = []checker{
	{FailureType, checkIsString},
	{FailureType, checkIsNumber},
	{FailureType, checkIsBoolean},
	{FailureType, checkIsObject},
	{FailureType, checkIsArray},
	{FailureInclusion, checkInclusion},
	{FailureInclusion, checkInclusionCaseInsensitive},
}

// Validate checks v against every constraint in table order and returns it
// as a Map when it passes. The returned map is v itself, not a copy.
func Validate(v any, table Constraints, opts ValidateOptions) (Map, error) {
	m, ok := asMap(v)
	if !ok {
		return nil, newError(FailureMalformed, "", fmt.Sprintf("%s must be a JSON object", render(v)))
	}

	for _, nc := range table {
		key, c := nc.Name, nc.Constraint
		val, exists := m[key]

		if c.Presence && !opts.SkipPresenceConstraint && isBlank(val, exists) {
			return nil, newError(FailurePresence, key, fmt.Sprintf("'%s' can't be blank", key))
		}

		if !exists || val == nil {
			continue
		}

		for _, ch := range checkers {
			if msg := ch.check(key, c, val); msg != "" {
				return nil, newError(ch.kind, key, msg)
			}
		}
	}

	return m, nil
}

// isBlank reports whether a presence constraint fails for a value.
func isBlank(v any, exists bool) bool {
	if !exists || v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func checkIsString(key string, c Constraint, v any) string {
	if c.IsString && KindOf(v) != KindString {
		return fmt.Sprintf("'%s' must be of type string", key)
	}
	return ""
}

func checkIsNumber(key string, c Constraint, v any) string {
	if c.IsNumber && KindOf(v) != KindNumber {
		return fmt.Sprintf("'%s' must be of type number", key)
	}
	return ""
}

func checkIsBoolean(key string, c Constraint, v any) string {
	if c.IsBoolean && KindOf(v) != KindBool {
		return fmt.Sprintf("'%s' must be of type boolean", key)
	}
	return ""
}

func checkIsObject(key string, c Constraint, v any) string {
	if c.IsObject && KindOf(v) != KindObject {
		return fmt.Sprintf("'%s' must be of type object", key)
	}
	return ""
}

func checkIsArray(key string, c Constraint, v any) string {
	if c.IsArray && KindOf(v) != KindArray {
		return fmt.Sprintf("'%s' must be of type array", key)
	}
	return ""
}

func checkInclusion(key string, c Constraint, v any) string {
	if c.Inclusion == nil {
		return ""
	}
	for _, allowed := range c.Inclusion {
		if equalValues(v, allowed) {
			return ""
		}
	}
	return fmt.Sprintf("'%s' %s is not included in the list", key, render(v))
}

func checkInclusionCaseInsensitive(key string, c Constraint, v any) string {
	if c.InclusionCaseInsensitive == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		for _, allowed := range c.InclusionCaseInsensitive {
			if as, ok := allowed.(string); ok && strings.ToLower(s) == strings.ToLower(as) {
				return ""
			}
		}
	}

	list := make([]string, len(c.InclusionCaseInsensitive))
	for i, allowed := range c.InclusionCaseInsensitive {
		list[i] = render(allowed)
	}
	return fmt.Sprintf("'%s' %s not part of %s", key, render(v), strings.Join(list, ","))
}
