// Package envconf fills config structs from environment variables.
//
// Fields are read through `env` tags. A tagged field without `envDefault`
// is required, and nested structs are loaded recursively.
package envconf

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
)

var ErrMissingRequired = errors.New("missing required environment variable")

func Load(dst any) error {
	if dst == nil {
		return errors.New("destination is nil")
	}

	err := env.ParseWithOptions(dst, env.Options{RequiredIfNoDef: true})
	if err != nil {
		if errors.Is(err, env.EnvVarIsNotSetError{}) {
			return fmt.Errorf("%w: %w", ErrMissingRequired, err)
		}

		return fmt.Errorf("parse env: %w", err)
	}

	return nil
}
