package model

import "time"

type ScheduleState string

const (
	SchedulePending   ScheduleState = "pending"
	ScheduleRunning   ScheduleState = "running"
	ScheduleCompleted ScheduleState = "completed"
	ScheduleSuspended ScheduleState = "suspended"
)

// CourseSchedule drives periodic lesson fan-out for one course. LessonCursor
// is the only mutable progress pointer: it advances by exactly one after a
// full fan-out of the current lesson and never rewinds.
type CourseSchedule struct {
	ID           string
	CourseID     string
	State        ScheduleState
	LessonCursor int
	// SendHour is the local hour of day (0-23) this schedule fires at.
	SendHour  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DueAt reports whether the schedule wants to fan out during the given tick.
func (s *CourseSchedule) DueAt(t time.Time) bool {
	return s.State == ScheduleRunning && t.Hour() == s.SendHour
}

// Lesson is the read-only slice of course content the scheduler hands to the
// enqueuer. Course CRUD lives outside this system.
type Lesson struct {
	ID        string
	CourseID  string
	Index     int
	Title     string
	Body      string
	MediaURL  string
	MediaName string
}

// Learner is an enrolled recipient of a course.
type Learner struct {
	ID          string
	DisplayName string
	PhoneNumber string
}

// QuizContext ties a quick-reply button id to the quiz it belongs to.
type QuizContext struct {
	QuizID        string
	LessonID      string
	CourseID      string
	CorrectOption string
	Question      string
}

// ProviderCredential is a rotated messaging-provider token held in the
// auxiliary store. Expired and blacklisted rows are removed by the sweeper.
type ProviderCredential struct {
	ID          string
	AccessToken string
	PhoneID     string
	ExpiresAt   time.Time
	Blacklisted bool
	CreatedAt   time.Time
}
