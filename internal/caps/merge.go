package caps

import (
	"fmt"
)

// Merge returns the disjoint union of primary and secondary. Either may be nil.
// A key present in both is a collision and fails; the first colliding key in
// lexical order is named in the error. Neither input is modified.
func Merge(primary, secondary Map) (Map, error) {
	for _, key := range sortedKeys(primary) {
		if _, ok := secondary[key]; ok {
			return nil, newError(FailureCollision, key, fmt.Sprintf(
				"property '%s' should not exist on both primary (%s) and secondary (%s) object",
				key, render(nonNil(primary)), render(nonNil(secondary))))
		}
	}

	result := make(Map, len(primary)+len(secondary))
	for k, v := range primary {
		result[k] = v
	}
	for k, v := range secondary {
		result[k] = v
	}
	return result, nil
}

// nonNil renders a nil map as {} rather than null.
func nonNil(m Map) Map {
	if m == nil {
		return Map{}
	}
	return m
}
