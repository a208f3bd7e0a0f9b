package repository

import (
	"context"

	"whatsapp-course-delivery/internal/domain/model"
)

// MessageLogRepository records every outbound and inbound provider message.
// The pipeline never deletes records; removal is an administrative operation.
type MessageLogRepository interface {
	Save(ctx context.Context, tx Tx, rec *model.MessageRecord) error
	FindByProviderID(ctx context.Context, tx Tx, providerMessageID string) (*model.MessageRecord, error)
	// UpdateStatus writes one status transition guarded by the expected
	// current status: the row changes only while its stored status still
	// equals from, so two concurrent events can never interleave into a
	// backward move. A guard miss (row gone or status already moved on)
	// returns domain.ErrStaleTransition; the caller re-reads and re-checks.
	UpdateStatus(ctx context.Context, tx Tx, providerMessageID string, from, to model.MessageStatus) error
}
