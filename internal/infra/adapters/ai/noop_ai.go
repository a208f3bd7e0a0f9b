package ai

import (
	"context"
	"time"

	"whatsapp-course-delivery/internal/domain/ports/adapter"
)

var _ adapter.TextGenerator = (*NoopAdapter)(nil)

// NoopAdapter implements adapter.TextGenerator for local/dev runs. It
// returns canned text instead of calling a real provider.
type NoopAdapter struct{}

func NewNoopAdapter() *NoopAdapter {
	return &NoopAdapter{}
}

func (a *NoopAdapter) Generate(ctx context.Context, prompt string) (string, error) {
	// Simulate slight processing time and respect ctx
	select {
	case <-time.After(50 * time.Millisecond):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return "Thanks for your message! A tutor will follow up shortly.", nil
}
