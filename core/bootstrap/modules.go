package bootstrap

import (
	"context"
	"fmt"
)

// Seeder loads reference data into the bot's storage.
type Seeder interface {
	Seed(ctx context.Context) error
}

// SeederFunc adapts a bare function to the Seeder interface.
type SeederFunc func(ctx context.Context) error

// Seed executes the underlying function.
func (f SeederFunc) Seed(ctx context.Context) error {
	return f(ctx)
}

// Named attaches a name to a seeder for logs and errors.
func Named(name string, s Seeder) Seeder {
	return namedSeeder{name: name, Seeder: s}
}

type namedSeeder struct {
	name string
	Seeder
}

// SeederName returns the name given via Named, or the seeder's type.
func SeederName(s Seeder) string {
	if n, ok := s.(namedSeeder); ok {
		return n.name
	}
	return fmt.Sprintf("%T", s)
}
