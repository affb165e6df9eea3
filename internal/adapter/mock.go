package adapter

import (
	"context"

	"webdriver-caps/internal/caps"
	"webdriver-caps/internal/model"
)

// Mock implements Adapter for testing.
// GetProfile can be configured via a function field.
type Mock struct {
	GetProfileFunc func(ctx context.Context) (*model.ConstraintProfile, error)
}

// GetProfile calls the configured GetProfileFunc or returns a minimal profile.
func (m *Mock) GetProfile(ctx context.Context) (*model.ConstraintProfile, error) {
	if m.GetProfileFunc != nil {
		return m.GetProfileFunc(ctx)
	}
	return &model.ConstraintProfile{
		Name:    "mock",
		Version: "0.0.1",
		Constraints: caps.Constraints{
			{Name: "platformName", Constraint: caps.Constraint{Presence: true, IsString: true}},
		},
	}, nil
}

// Verify Mock implements Adapter interface at compile time.
var _ Adapter = (*Mock)(nil)
