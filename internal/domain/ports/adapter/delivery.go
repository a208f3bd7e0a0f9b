package adapter

import "context"

// SendParams describes one outbound provider message. Exactly one of Text or
// Document is the primary content; Document may accompany a lesson text.
type SendParams struct {
	To   string
	Text string

	// Optional attached document (lesson material).
	DocumentURL  string
	DocumentName string
}

type SendResult struct {
	ProviderMessageID string
}

// DeliveryClient sends one message via the messaging provider. Failures are
// classified domain.DeliveryError values; callers rely on the classification
// to pick retry vs. exhaust.
type DeliveryClient interface {
	Send(ctx context.Context, p SendParams) (SendResult, error)
}
