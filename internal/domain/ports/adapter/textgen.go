package adapter

import "context"

// TextGenerator is the opaque text-producing collaborator used for AI replies
// and quiz feedback. Providers, models and billing are its own concern.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
