package model

import "time"

type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// MessageStatus follows the provider-defined delivery lifecycle.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
	StatusReceived  MessageStatus = "received"
)

// statusRank orders the outbound lifecycle so transitions can only move
// forward: sent -> delivered -> read, or sent -> failed.
var statusRank = map[MessageStatus]int{
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// CanTransition reports whether a status event may be applied on top of the
// current status. Provider events arrive out of order; a stale "delivered"
// after "read" must not rewind the record.
func CanTransition(from, to MessageStatus) bool {
	if from == to {
		return false
	}
	if to == StatusFailed {
		return from == StatusSent
	}
	fr, ok := statusRank[from]
	if !ok {
		return false
	}
	tr, ok := statusRank[to]
	if !ok {
		return false
	}
	return tr > fr
}

// MessageRecord is the persistent log entry for one provider message, keyed
// by the provider-assigned message id.
type MessageRecord struct {
	ProviderMessageID string
	Direction         Direction
	Category          Category
	Body              string
	Status            MessageStatus
	From              string
	To                string

	// Context refs, populated when known.
	CourseID string
	LessonID string
	QuizID   string

	CreatedAt time.Time
	UpdatedAt time.Time
}
