package attendance

import (
	"context"
	"sort"
	"sync"
	"time"
)

// CourseLookup resolves a course's code and name for listings.
type CourseLookup func(ctx context.Context, courseID string) (code, name string)

// MemoryStore is an in-process Store for development and tests. A single
// mutex serialises the conflict check with the insert.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	byToken  map[string]string  // token -> session id
	records  map[string]*Record // session id + "/" + student id
	courses  CourseLookup
	now      func() time.Time
}

// NewMemoryStore creates an empty store. courses may be nil.
func NewMemoryStore(courses CourseLookup) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		byToken:  make(map[string]string),
		records:  make(map[string]*Record),
		courses:  courses,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func recordKey(sessionID, studentID string) string {
	return sessionID + "/" + studentID
}

func (m *MemoryStore) CreateSession(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.sessions {
		if existing.conflictsWith(*s) {
			return &RoomConflictError{SessionID: existing.ID}
		}
	}
	if _, taken := m.byToken[s.Token]; taken {
		return errTokenCollision
	}
	s.CreatedAt = m.now()
	stored := *s
	m.sessions[s.ID] = &stored
	m.byToken[s.Token] = s.ID
	return nil
}

// HasSessions reports whether any session belongs to the course.
func (m *MemoryStore) HasSessions(_ context.Context, courseID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		if s.CourseID == courseID {
			return true
		}
	}
	return false
}

func (m *MemoryStore) GetSession(_ context.Context, id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return Session{}, errSessionNotFound
	}
	return *s, nil
}

func (m *MemoryStore) FindActiveByToken(_ context.Context, token string, now time.Time) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byToken[token]
	if !ok {
		return Session{}, errTokenNotFound
	}
	s := m.sessions[id]
	if !s.Active(now) {
		return Session{}, errTokenNotFound
	}
	return *s, nil
}

func (m *MemoryStore) ListSessionsByCourses(ctx context.Context, courseIDs []string) ([]SessionSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := make(map[string]bool, len(courseIDs))
	for _, id := range courseIDs {
		wanted[id] = true
	}
	present := make(map[string]int)
	for _, rec := range m.records {
		if rec.Status.Present() {
			present[rec.SessionID]++
		}
	}

	out := []SessionSummary{}
	for _, s := range m.sessions {
		if !wanted[s.CourseID] {
			continue
		}
		sum := SessionSummary{Session: *s, PresentCount: present[s.ID]}
		if m.courses != nil {
			sum.CourseCode, sum.CourseName = m.courses(ctx, s.CourseID)
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].StartsAt.After(out[j].StartsAt)
	})
	return out, nil
}

func (m *MemoryStore) RecordAttendance(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[rec.SessionID]; !ok {
		return errSessionNotFound
	}
	key := recordKey(rec.SessionID, rec.StudentID)
	if prior, ok := m.records[key]; ok {
		return &AlreadyRecordedError{Prior: *prior}
	}
	rec.CreatedAt = m.now()
	stored := *rec
	m.records[key] = &stored
	return nil
}

func (m *MemoryStore) FindRecord(_ context.Context, sessionID, studentID string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[recordKey(sessionID, studentID)]
	if !ok {
		return nil, nil
	}
	out := *rec
	return &out, nil
}

func (m *MemoryStore) ListRecordsBySession(_ context.Context, sessionID string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []Record{}
	for _, rec := range m.records {
		if rec.SessionID == sessionID {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScannedAt.Equal(out[j].ScannedAt) {
			return out[i].ScannedAt.Before(out[j].ScannedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) ListRecordsByStudent(ctx context.Context, studentID string, courseIDs []string) ([]StudentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var wanted map[string]bool
	if courseIDs != nil {
		wanted = make(map[string]bool, len(courseIDs))
		for _, id := range courseIDs {
			wanted[id] = true
		}
	}

	out := []StudentRecord{}
	for _, rec := range m.records {
		if rec.StudentID != studentID || (wanted != nil && !wanted[rec.CourseID]) {
			continue
		}
		s := m.sessions[rec.SessionID]
		sr := StudentRecord{Record: *rec, SessionDate: s.Date, StartsAt: s.StartsAt, Room: s.Room}
		if m.courses != nil {
			sr.CourseCode, sr.CourseName = m.courses(ctx, rec.CourseID)
		}
		out = append(out, sr)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SessionDate != out[j].SessionDate {
			return out[i].SessionDate > out[j].SessionDate
		}
		return out[i].StartsAt.After(out[j].StartsAt)
	})
	return out, nil
}

func (m *MemoryStore) UpsertRecord(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[rec.SessionID]; !ok {
		return errSessionNotFound
	}
	key := recordKey(rec.SessionID, rec.StudentID)
	if prior, ok := m.records[key]; ok {
		prior.Status = rec.Status
		prior.ScannedAt = rec.ScannedAt
		*rec = *prior
		return nil
	}
	rec.CreatedAt = m.now()
	stored := *rec
	m.records[key] = &stored
	return nil
}
