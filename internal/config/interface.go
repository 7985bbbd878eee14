package config

import (
	"context"

	"github.com/zclconf/go-cty/cty"
)

// Loader is the interface for a format-specific description loader.
type Loader interface {
	// Load reads descriptions from the given paths and translates them into
	// the format-agnostic model.
	Load(ctx context.Context, paths ...string) (*Model, error)
}

// Converter bridges native Go values and the cty values the runtime uses
// for variables.
type Converter interface {
	// ToCtyValue converts a native Go value (such as one decoded from a
	// settings file) into its cty equivalent.
	ToCtyValue(v any) (cty.Value, error)
}
