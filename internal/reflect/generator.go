// Package reflect generates AI reflections on journal entry content.
// The output is HTML the rest of the system treats as opaque markup.
package reflect

import "context"

// Generator defines the interface for reflection generation.
type Generator interface {
	// Generate returns an HTML-formatted reflection on the given journal
	// entry content.
	Generate(ctx context.Context, content string) (string, error)

	// ModelName returns the underlying model identifier.
	ModelName() string
}
