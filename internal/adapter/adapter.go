// Package adapter provides the sources a server can load its default
// constraint profile from.
package adapter

import (
	"context"
	"fmt"
	"os"

	"webdriver-caps/internal/caps"
	"webdriver-caps/internal/model"
)

// Adapter abstracts where the default constraint profile comes from.
// Each source (built-in table, local file, secret payload) provides its own
// implementation.
type Adapter interface {
	// GetProfile returns the constraint profile requests are validated
	// against when they do not name one.
	GetProfile(ctx context.Context) (*model.ConstraintProfile, error)
}

// BuiltinProfileName names the profile returned by Builtin.
const BuiltinProfileName = "base"

// BuiltinProfileVersion versions the built-in constraint table.
const BuiltinProfileVersion = "1.0.0"

// Builtin serves the base driver constraint table compiled into the binary.
type Builtin struct{}

// GetProfile returns a fresh copy of the base constraint profile.
func (Builtin) GetProfile(ctx context.Context) (*model.ConstraintProfile, error) {
	return &model.ConstraintProfile{
		Name:        BuiltinProfileName,
		Version:     BuiltinProfileVersion,
		Constraints: caps.BaseConstraints(),
	}, nil
}

// File reads a profile document (YAML or JSON) from disk on every call, so
// edits are picked up by anything that reloads.
type File struct {
	Path string
}

// GetProfile reads and parses the profile file.
func (f File) GetProfile(ctx context.Context) (*model.ConstraintProfile, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("reading constraint profile: %w", err)
	}

	profile, err := model.ParseProfile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}
	return profile, nil
}

// Static parses a profile document held in memory, such as a Secret Manager
// payload.
type Static struct {
	// Origin names where Data came from, for error messages.
	Origin string
	Data   []byte
}

// GetProfile parses the held document.
func (s Static) GetProfile(ctx context.Context) (*model.ConstraintProfile, error) {
	if len(s.Data) == 0 {
		return nil, fmt.Errorf("%s: empty constraint profile", s.Origin)
	}

	profile, err := model.ParseProfile(s.Data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Origin, err)
	}
	return profile, nil
}

// Verify implementations satisfy Adapter at compile time.
var (
	_ Adapter = Builtin{}
	_ Adapter = File{}
	_ Adapter = Static{}
)
