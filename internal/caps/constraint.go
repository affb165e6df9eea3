package caps

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Constraint is a validation rule for one capability. Fields left at their
// zero value are not checked, so the zero Constraint always passes.
type Constraint struct {
	Presence  bool `json:"presence,omitempty" yaml:"presence,omitempty"`
	IsString  bool `json:"isString,omitempty" yaml:"isString,omitempty"`
	IsNumber  bool `json:"isNumber,omitempty" yaml:"isNumber,omitempty"`
	IsBoolean bool `json:"isBoolean,omitempty" yaml:"isBoolean,omitempty"`
	IsObject  bool `json:"isObject,omitempty" yaml:"isObject,omitempty"`
	IsArray   bool `json:"isArray,omitempty" yaml:"isArray,omitempty"`

	// Inclusion lists the allowed values, compared exactly. Nil disables the
	// check; an empty non-nil list admits nothing.
	Inclusion []any `json:"inclusion,omitempty" yaml:"inclusion,omitempty"`

	// InclusionCaseInsensitive lists the allowed strings, compared after
	// lower-casing both sides. Non-string candidates never match.
	InclusionCaseInsensitive []any `json:"inclusionCaseInsensitive,omitempty" yaml:"inclusionCaseInsensitive,omitempty"`
}

// MarshalJSON writes an empty inclusion list as [] so it is not confused with
// an absent one.
func (c Constraint) MarshalJSON() ([]byte, error) {
	type plain Constraint
	out := struct {
		plain
		Inclusion                *[]any `json:"inclusion,omitempty"`
		InclusionCaseInsensitive *[]any `json:"inclusionCaseInsensitive,omitempty"`
	}{plain: plain(c)}
	if c.Inclusion != nil {
		out.Inclusion = &c.Inclusion
	}
	if c.InclusionCaseInsensitive != nil {
		out.InclusionCaseInsensitive = &c.InclusionCaseInsensitive
	}
	return json.Marshal(out)
}

// NamedConstraint binds a Constraint to a bare (unprefixed) capability name.
type NamedConstraint struct {
	Name       string     `json:"name" yaml:"name"`
	Constraint Constraint `json:"constraint" yaml:"constraint"`
}

// Constraints is an ordered constraint table. Validation walks it in order and
// stops at the first failure, so order decides which error a caller sees.
//
// On the wire a table is a JSON object (or YAML mapping) from capability name
// to Constraint; key order in the document is preserved.
type Constraints []NamedConstraint

// Get returns the constraint for name.
func (c Constraints) Get(name string) (Constraint, bool) {
	for _, nc := range c {
		if nc.Name == name {
			return nc.Constraint, true
		}
	}
	return Constraint{}, false
}

// Names returns the constrained capability names in table order.
func (c Constraints) Names() []string {
	names := make([]string, len(c))
	for i, nc := range c {
		names[i] = nc.Name
	}
	return names
}

// Without returns a copy of the table minus every name present in m.
func (c Constraints) Without(m Map) Constraints {
	out := make(Constraints, 0, len(c))
	for _, nc := range c {
		if _, ok := m[nc.Name]; ok {
			continue
		}
		out = append(out, nc)
	}
	return out
}

// MarshalJSON writes the table as a JSON object in table order.
func (c Constraints) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, nc := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(nc.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(nc.Constraint)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, keeping its key order.
func (c *Constraints) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("constraints: %w", err)
	}
	if tok == nil {
		*c = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("constraints: must be a JSON object")
	}

	table := Constraints{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("constraints: %w", err)
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("constraints: unexpected key %v", tok)
		}
		var con Constraint
		if err := dec.Decode(&con); err != nil {
			return fmt.Errorf("constraints: %q: %w", name, err)
		}
		table = append(table, NamedConstraint{Name: name, Constraint: con})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("constraints: %w", err)
	}

	*c = table
	return nil
}

// UnmarshalYAML reads a YAML mapping, keeping its key order.
func (c *Constraints) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*c = nil
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("constraints: line %d: must be a mapping", node.Line)
	}

	table := make(Constraints, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		var con Constraint
		if err := valNode.Decode(&con); err != nil {
			return fmt.Errorf("constraints: %q: %w", keyNode.Value, err)
		}
		table = append(table, NamedConstraint{Name: keyNode.Value, Constraint: con})
	}

	*c = table
	return nil
}

// ParseConstraints decodes a constraint table from JSON or YAML.
func ParseConstraints(data []byte) (Constraints, error) {
	var table Constraints
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, err
	}
	return table, nil
}
