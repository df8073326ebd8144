package attendance

import (
	"context"
	"time"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

// Status is the outcome recorded for one student at one session.
type Status string

const (
	StatusOnTime     Status = "on-time"
	StatusLate       Status = "late"
	StatusAbsentLate Status = "absent-by-lateness"
	// StatusExcused is only ever set by a manual mark.
	StatusExcused Status = "excused"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOnTime, StatusLate, StatusAbsentLate, StatusExcused:
		return true
	}
	return false
}

// Present reports whether the status counts towards a session's present count.
func (s Status) Present() bool {
	return s == StatusOnTime || s == StatusLate
}

// Session is one class meeting with a time-bounded QR token.
type Session struct {
	ID             string    `json:"id"`
	CourseID       string    `json:"courseId"`
	CreatedBy      string    `json:"createdBy"`
	Date           string    `json:"date"`
	StartsAt       time.Time `json:"startsAt"`
	EndsAt         time.Time `json:"endsAt"`
	Room           string    `json:"room"`
	Token          string    `json:"token"`
	TokenExpiresAt time.Time `json:"tokenExpiresAt"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Active reports whether the session token still accepts scans at now.
func (s Session) Active(now time.Time) bool {
	return now.Before(s.TokenExpiresAt)
}

// SessionSummary is a session annotated for listings.
type SessionSummary struct {
	Session
	CourseCode   string `json:"courseCode"`
	CourseName   string `json:"courseName"`
	PresentCount int    `json:"presentCount"`
}

// Record is the durable outcome of one student's claim against one session.
type Record struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	StudentID string    `json:"studentId"`
	CourseID  string    `json:"courseId"`
	Status    Status    `json:"status"`
	ScannedAt time.Time `json:"scanTime"`
	CreatedAt time.Time `json:"createdAt"`
}

// StudentRecord is a record joined with the session it belongs to.
type StudentRecord struct {
	Record
	SessionDate string    `json:"sessionDate"`
	StartsAt    time.Time `json:"startsAt"`
	Room        string    `json:"room"`
	CourseCode  string    `json:"courseCode"`
	CourseName  string    `json:"courseName"`
}

// Tally counts records per status.
type Tally struct {
	Total   int `json:"total"`
	OnTime  int `json:"onTime"`
	Late    int `json:"late"`
	Absent  int `json:"absent"`
	Excused int `json:"excused"`
}

func (t *Tally) add(s Status) {
	t.Total++
	switch s {
	case StatusOnTime:
		t.OnTime++
	case StatusLate:
		t.Late++
	case StatusAbsentLate:
		t.Absent++
	case StatusExcused:
		t.Excused++
	}
}

// Store persists sessions and the attendance ledger.
type Store interface {
	// CreateSession checks for a room conflict and inserts s atomically.
	// It fails with *RoomConflictError when the room is taken.
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	// FindActiveByToken returns the session holding token if now is before
	// its expiry. Unknown and expired tokens fail identically.
	FindActiveByToken(ctx context.Context, token string, now time.Time) (Session, error)
	// ListSessionsByCourses returns sessions newest first with their present count.
	ListSessionsByCourses(ctx context.Context, courseIDs []string) ([]SessionSummary, error)

	// RecordAttendance inserts rec unless the (session, student) pair already
	// has a record, in which case it fails with *AlreadyRecordedError.
	RecordAttendance(ctx context.Context, rec *Record) error
	FindRecord(ctx context.Context, sessionID, studentID string) (*Record, error)
	ListRecordsBySession(ctx context.Context, sessionID string) ([]Record, error)
	// ListRecordsByStudent returns the student's records newest session first,
	// restricted to courseIDs unless it is nil.
	ListRecordsByStudent(ctx context.Context, studentID string, courseIDs []string) ([]StudentRecord, error)
	// UpsertRecord writes rec, replacing the status of an existing record.
	UpsertRecord(ctx context.Context, rec *Record) error
}
