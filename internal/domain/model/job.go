package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"whatsapp-course-delivery/internal/domain"
)

// Category is the message class. It selects the queue, the content template
// and the fingerprint shape.
type Category string

const (
	CategoryLesson       Category = "lesson"
	CategoryReminder     Category = "reminder"
	CategoryNotification Category = "notification"
	CategoryWelcome      Category = "welcome"
	CategoryText         Category = "text"
)

// Categories lists every queue the pipeline runs, in a stable order.
var Categories = []Category{
	CategoryLesson, CategoryReminder, CategoryNotification, CategoryWelcome, CategoryText,
}

func (c Category) Valid() bool {
	switch c {
	case CategoryLesson, CategoryReminder, CategoryNotification, CategoryWelcome, CategoryText:
		return true
	}
	return false
}

type JobState string

const (
	JobStateQueued       JobState = "queued"
	JobStateInFlight     JobState = "in_flight"
	JobStateRetryPending JobState = "retry_pending"
	JobStateCompleted    JobState = "completed"
	JobStateExhausted    JobState = "exhausted"
)

// Terminal reports whether no further transitions may occur.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateExhausted
}

// Live reports whether the state counts against the dedup index.
func (s JobState) Live() bool {
	return s == JobStateQueued || s == JobStateInFlight || s == JobStateRetryPending
}

// Job is one unit of outbound delivery work.
type Job struct {
	ID          string
	Category    Category
	Fingerprint string
	Payload     JobPayload
	Attempts    int
	State       JobState
	ScheduledAt time.Time
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// textFingerprintChars bounds the content part of a text fingerprint so that
// repeated identical replies to the same recipient collapse into one job.
const textFingerprintChars = 32

// JobPayload is the tagged per-category payload. Each variant validates its
// own required fields and knows how to derive the job fingerprint.
type JobPayload interface {
	Category() Category
	Recipient() string
	// Fingerprint returns the deterministic dedup key for this payload, or
	// domain.ErrInvalidPayload when a required field is missing.
	Fingerprint() (string, error)
}

// LessonPayload carries one lesson send. Title/Body/MediaURL travel with the
// job so the worker needs no course storage at delivery time.
type LessonPayload struct {
	CourseID  string `json:"course_id"`
	LessonID  string `json:"lesson_id"`
	To        string `json:"to"`
	Title     string `json:"title,omitempty"`
	Body      string `json:"body,omitempty"`
	MediaURL  string `json:"media_url,omitempty"`
	MediaName string `json:"media_name,omitempty"`
}

func (p LessonPayload) Category() Category { return CategoryLesson }
func (p LessonPayload) Recipient() string  { return p.To }

func (p LessonPayload) Fingerprint() (string, error) {
	if p.CourseID == "" || p.LessonID == "" || p.To == "" {
		return "", domain.ErrInvalidPayload
	}
	return fmt.Sprintf("%s:%s:%s", p.CourseID, p.LessonID, p.To), nil
}

// ReminderPayload nudges a learner about a lesson they have not reacted to.
// There is no documented reminder shape of its own; it reuses the lesson
// shape, which is safe because categories queue independently.
type ReminderPayload struct {
	CourseID string `json:"course_id"`
	LessonID string `json:"lesson_id"`
	To       string `json:"to"`
	Text     string `json:"text,omitempty"`
}

func (p ReminderPayload) Category() Category { return CategoryReminder }
func (p ReminderPayload) Recipient() string  { return p.To }

func (p ReminderPayload) Fingerprint() (string, error) {
	if p.CourseID == "" || p.LessonID == "" || p.To == "" {
		return "", domain.ErrInvalidPayload
	}
	return fmt.Sprintf("%s:%s:%s", p.CourseID, p.LessonID, p.To), nil
}

// NotificationPayload is a per-course announcement.
type NotificationPayload struct {
	CourseID string `json:"course_id"`
	To       string `json:"to"`
	Text     string `json:"text"`
}

func (p NotificationPayload) Category() Category { return CategoryNotification }
func (p NotificationPayload) Recipient() string  { return p.To }

func (p NotificationPayload) Fingerprint() (string, error) {
	if p.CourseID == "" || p.To == "" {
		return "", domain.ErrInvalidPayload
	}
	return fmt.Sprintf("%s:%s", p.CourseID, p.To), nil
}

// WelcomePayload greets a learner on enrollment.
type WelcomePayload struct {
	DisplayName string `json:"display_name"`
	To          string `json:"to"`
	CourseID    string `json:"course_id,omitempty"`
}

func (p WelcomePayload) Category() Category { return CategoryWelcome }
func (p WelcomePayload) Recipient() string  { return p.To }

func (p WelcomePayload) Fingerprint() (string, error) {
	if p.DisplayName == "" || p.To == "" {
		return "", domain.ErrInvalidPayload
	}
	return fmt.Sprintf("%s:%s", p.DisplayName, p.To), nil
}

// TextPayload is a free-text send: AI replies and quiz feedback. The quiz
// refs are context for the message log, not part of the fingerprint.
type TextPayload struct {
	To      string `json:"to"`
	Content string `json:"content"`
	// DedupeKey, when set, replaces the content as the fingerprint seed.
	// Replies to the same inbound message then collapse even when the
	// generated text differs between calls.
	DedupeKey string `json:"dedupe_key,omitempty"`
	QuizID    string `json:"quiz_id,omitempty"`
	LessonID  string `json:"lesson_id,omitempty"`
}

func (p TextPayload) Category() Category { return CategoryText }
func (p TextPayload) Recipient() string  { return p.To }

func (p TextPayload) Fingerprint() (string, error) {
	if p.To == "" || p.Content == "" {
		return "", domain.ErrInvalidPayload
	}
	seed := p.Content
	if p.DedupeKey != "" {
		seed = p.DedupeKey
	}
	return TextFingerprint(seed, p.To), nil
}

// TextFingerprint returns the dedup key a text job with this seed and
// recipient carries. Exposed so callers can probe for a live duplicate
// before paying for content generation.
func TextFingerprint(seed, to string) string {
	if len(seed) > textFingerprintChars {
		seed = seed[:textFingerprintChars]
	}
	return fmt.Sprintf("%s:%s", seed, to)
}

// AdHocPayload is an operator-initiated one-off text send with no semantic
// identity. Its fingerprint is random, so duplicates are accepted; that is a
// documented limitation of this class of job, not a dedup gap elsewhere.
type AdHocPayload struct {
	To      string `json:"to"`
	Content string `json:"content"`
}

func (p AdHocPayload) Category() Category { return CategoryText }
func (p AdHocPayload) Recipient() string  { return p.To }

func (p AdHocPayload) Fingerprint() (string, error) {
	if p.To == "" || p.Content == "" {
		return "", domain.ErrInvalidPayload
	}
	return "adhoc:" + uuid.NewString(), nil
}
