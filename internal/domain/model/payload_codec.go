package model

import (
	"encoding/json"

	"whatsapp-course-delivery/internal/domain"
)

// EncodePayload serializes a payload for durable queue storage.
func EncodePayload(p JobPayload) ([]byte, error) {
	if p == nil {
		return nil, domain.ErrInvalidPayload
	}
	return json.Marshal(p)
}

// DecodePayload restores the typed payload for a stored job. The category
// column is the variant tag; ad hoc sends round-trip as plain text payloads,
// which is fine because their random fingerprint is already fixed in the row.
func DecodePayload(c Category, raw []byte) (JobPayload, error) {
	var (
		p   JobPayload
		err error
	)
	switch c {
	case CategoryLesson:
		var v LessonPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case CategoryReminder:
		var v ReminderPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case CategoryNotification:
		var v NotificationPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case CategoryWelcome:
		var v WelcomePayload
		err = json.Unmarshal(raw, &v)
		p = v
	case CategoryText:
		var v TextPayload
		err = json.Unmarshal(raw, &v)
		p = v
	default:
		return nil, domain.ErrInvalidArgument
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
