package model

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"webdriver-caps/internal/caps"
)

// ConstraintProfile is a named, versioned constraint table. Drivers publish
// one; the server holds a default and can fetch others by URL.
type ConstraintProfile struct {
	Name        string           `json:"name" yaml:"name"`
	Version     string           `json:"version" yaml:"version"`
	Constraints caps.Constraints `json:"constraints" yaml:"constraints"`
}

// ParseProfile decodes a profile from YAML or JSON.
func ParseProfile(data []byte) (*ConstraintProfile, error) {
	var p ConstraintProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse constraint profile: %w", err)
	}
	if p.Name == "" {
		return nil, fmt.Errorf("parse constraint profile: name is required")
	}
	return &p, nil
}

// Label identifies the profile in logs and responses.
func (p *ConstraintProfile) Label() string {
	if p.Version == "" {
		return p.Name
	}
	return p.Name + "@" + p.Version
}
