package attendance

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"qrattendance/internal/actor"
	"qrattendance/internal/apperr"
)

const maxTokenAttempts = 3

// Recorder receives attendance events for metrics.
type Recorder interface {
	SessionCreated()
	ScanOutcome(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) SessionCreated()   {}
func (nopRecorder) ScanOutcome(string) {}

// Options configures a Service. Zero values fall back to defaults.
type Options struct {
	Policy   Policy
	TokenTTL time.Duration
	Location *time.Location
	Clock    func() time.Time
	Metrics  Recorder
}

// Service runs the QR session protocol: session issuance, scans and the
// attendance queries built on them.
type Service struct {
	store   Store
	courses CourseDirectory
	guard   Guard
	policy  Policy
	ttl     time.Duration
	loc     *time.Location
	now     func() time.Time
	metrics Recorder
	logger  *zap.Logger
}

func NewService(store Store, courses CourseDirectory, logger *zap.Logger, opts Options) *Service {
	if opts.Policy == (Policy{}) {
		opts.Policy = DefaultPolicy()
	} else if err := opts.Policy.Validate(); err != nil {
		logger.Warn("invalid lateness policy, using defaults", zap.Error(err))
		opts.Policy = DefaultPolicy()
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 2 * time.Hour
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Metrics == nil {
		opts.Metrics = nopRecorder{}
	}
	return &Service{
		store:   store,
		courses: courses,
		guard:   NewGuard(courses),
		policy:  opts.Policy,
		ttl:     opts.TokenTTL,
		loc:     opts.Location,
		now:     opts.Clock,
		metrics: opts.Metrics,
		logger:  logger,
	}
}

// CreateSessionInput is the body of a session creation request. Date is
// YYYY-MM-DD and the times are HH:MM in the school time zone.
type CreateSessionInput struct {
	CourseID  string `json:"courseId" binding:"required"`
	Date      string `json:"date" binding:"required,isodate"`
	StartTime string `json:"startTime" binding:"required,clock"`
	EndTime   string `json:"endTime" binding:"required,clock"`
	Room      string `json:"room" binding:"required,max=64"`
}

func (s *Service) window(in CreateSessionInput) (start, end time.Time, err error) {
	var fields []apperr.FieldError
	date, derr := time.ParseInLocation(dateLayout, in.Date, s.loc)
	if derr != nil {
		fields = append(fields, apperr.FieldError{Field: "date", Message: "must be a date formatted YYYY-MM-DD"})
	}
	startClock, serr := time.Parse(clockLayout, in.StartTime)
	if serr != nil {
		fields = append(fields, apperr.FieldError{Field: "startTime", Message: "must be a time formatted HH:MM"})
	}
	endClock, eerr := time.Parse(clockLayout, in.EndTime)
	if eerr != nil {
		fields = append(fields, apperr.FieldError{Field: "endTime", Message: "must be a time formatted HH:MM"})
	}
	if len(fields) > 0 {
		return time.Time{}, time.Time{}, apperr.Validation("invalid session", fields...)
	}

	y, m, d := date.Date()
	start = time.Date(y, m, d, startClock.Hour(), startClock.Minute(), 0, 0, s.loc)
	end = time.Date(y, m, d, endClock.Hour(), endClock.Minute(), 0, 0, s.loc)
	if !end.After(start) {
		return time.Time{}, time.Time{}, apperr.Validation("invalid session",
			apperr.FieldError{Field: "endTime", Message: "must be after startTime"})
	}
	return start, end, nil
}

// CreateSession books a room for a course and issues the session's QR token.
func (s *Service) CreateSession(ctx context.Context, a actor.Actor, in CreateSessionInput) (Session, error) {
	if a.Role != actor.Teacher || a.TeacherID == "" {
		return Session{}, errTeacherRequired
	}
	in.CourseID = strings.TrimSpace(in.CourseID)
	in.Room = strings.ToUpper(strings.TrimSpace(in.Room))
	if in.CourseID == "" || in.Room == "" {
		var fields []apperr.FieldError
		if in.CourseID == "" {
			fields = append(fields, apperr.FieldError{Field: "courseId", Message: "this field is required"})
		}
		if in.Room == "" {
			fields = append(fields, apperr.FieldError{Field: "room", Message: "this field is required"})
		}
		return Session{}, apperr.Validation("invalid session", fields...)
	}
	start, end, err := s.window(in)
	if err != nil {
		return Session{}, err
	}

	if _, err := s.courses.Get(ctx, in.CourseID); err != nil {
		return Session{}, err
	}
	if err := s.guard.AuthorizeCourse(ctx, a, in.CourseID); err != nil {
		return Session{}, err
	}

	now := s.now()
	sess := Session{
		ID:             uuid.NewString(),
		CourseID:       in.CourseID,
		CreatedBy:      a.TeacherID,
		Date:           start.Format(dateLayout),
		StartsAt:       start,
		EndsAt:         end,
		Room:           in.Room,
		TokenExpiresAt: now.Add(s.ttl),
	}
	for attempt := 1; ; attempt++ {
		sess.Token = NewToken()
		err = s.store.CreateSession(ctx, &sess)
		if !errors.Is(err, errTokenCollision) || attempt == maxTokenAttempts {
			break
		}
		s.logger.Warn("session token collision, retrying", zap.Int("attempt", attempt))
	}
	if err != nil {
		var conflict *RoomConflictError
		if errors.As(err, &conflict) {
			s.logger.Debug("room conflict",
				zap.String("room", sess.Room),
				zap.String("date", sess.Date),
				zap.String("conflicting_session_id", conflict.SessionID),
			)
		}
		return Session{}, err
	}

	s.metrics.SessionCreated()
	s.logger.Info("session created",
		zap.String("session_id", sess.ID),
		zap.String("course_id", sess.CourseID),
		zap.String("room", sess.Room),
		zap.Time("expires_at", sess.TokenExpiresAt),
	)
	return sess, nil
}

func requireToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", apperr.Validation("invalid request", apperr.FieldError{Field: "token", Message: "this field is required"})
	}
	return token, nil
}

// Scan consumes a token on behalf of the acting student and records the
// classified attendance. A second scan of the same session fails with
// *AlreadyRecordedError carrying the first record.
func (s *Service) Scan(ctx context.Context, a actor.Actor, token string) (Record, error) {
	studentID, err := s.guard.Student(a)
	if err != nil {
		return Record{}, err
	}
	if token, err = requireToken(token); err != nil {
		return Record{}, err
	}

	now := s.now()
	sess, err := s.store.FindActiveByToken(ctx, token, now)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			s.metrics.ScanOutcome("not_found")
		}
		return Record{}, err
	}

	prior, err := s.store.FindRecord(ctx, sess.ID, studentID)
	if err != nil {
		return Record{}, err
	}
	if prior != nil {
		s.metrics.ScanOutcome("already_recorded")
		return Record{}, &AlreadyRecordedError{Prior: *prior}
	}

	rec := Record{
		ID:        uuid.NewString(),
		SessionID: sess.ID,
		StudentID: studentID,
		CourseID:  sess.CourseID,
		Status:    s.policy.Classify(sess.StartsAt, now),
		ScannedAt: now,
	}
	if err := s.store.RecordAttendance(ctx, &rec); err != nil {
		var dup *AlreadyRecordedError
		if errors.As(err, &dup) {
			s.metrics.ScanOutcome("already_recorded")
		}
		return Record{}, err
	}

	s.metrics.ScanOutcome(string(rec.Status))
	s.logger.Info("attendance recorded",
		zap.String("session_id", rec.SessionID),
		zap.String("student_id", rec.StudentID),
		zap.String("status", string(rec.Status)),
	)
	return rec, nil
}

// VerifyToken returns the session behind an active token without recording anything.
func (s *Service) VerifyToken(ctx context.Context, token string) (Session, error) {
	token, err := requireToken(token)
	if err != nil {
		return Session{}, err
	}
	return s.store.FindActiveByToken(ctx, token, s.now())
}

// ListTeacherSessions lists sessions of every course the teacher teaches,
// newest first. Teachers may only list their own; admins must name one.
func (s *Service) ListTeacherSessions(ctx context.Context, a actor.Actor, teacherID string) ([]SessionSummary, error) {
	teacherID = strings.TrimSpace(teacherID)
	switch {
	case a.IsAdmin():
		if teacherID == "" {
			return nil, apperr.Validation("invalid request", apperr.FieldError{Field: "teacherId", Message: "this field is required"})
		}
	case a.Role == actor.Teacher && a.TeacherID != "":
		if teacherID == "" {
			teacherID = a.TeacherID
		}
		if teacherID != a.TeacherID {
			return nil, apperr.Forbidden("teachers may only list their own sessions")
		}
	default:
		return nil, errTeacherRequired
	}

	courseIDs, err := s.courses.CourseIDsForTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	return s.store.ListSessionsByCourses(ctx, courseIDs)
}

// GetSession returns a session the actor may manage.
func (s *Service) GetSession(ctx context.Context, a actor.Actor, id string) (Session, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if err := s.guard.AuthorizeCourse(ctx, a, sess.CourseID); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// ActiveSession is GetSession restricted to sessions whose token still accepts scans.
func (s *Service) ActiveSession(ctx context.Context, a actor.Actor, id string) (Session, error) {
	sess, err := s.GetSession(ctx, a, id)
	if err != nil {
		return Session{}, err
	}
	if !sess.Active(s.now()) {
		return Session{}, errTokenNotFound
	}
	return sess, nil
}

// SessionReport is a session with its records and their tally.
type SessionReport struct {
	Session Session  `json:"session"`
	Records []Record `json:"records"`
	Tally   Tally    `json:"tally"`
}

func (s *Service) SessionAttendance(ctx context.Context, a actor.Actor, id string) (SessionReport, error) {
	sess, err := s.GetSession(ctx, a, id)
	if err != nil {
		return SessionReport{}, err
	}
	records, err := s.store.ListRecordsBySession(ctx, sess.ID)
	if err != nil {
		return SessionReport{}, err
	}
	report := SessionReport{Session: sess, Records: records}
	for _, rec := range records {
		report.Tally.add(rec.Status)
	}
	return report, nil
}

// StudentAttendance lists a student's records. Students see only their own,
// teachers only those of courses they teach, admins everything.
func (s *Service) StudentAttendance(ctx context.Context, a actor.Actor, studentID string) ([]StudentRecord, error) {
	studentID = strings.TrimSpace(studentID)
	var courseIDs []string
	switch {
	case a.IsAdmin():
	case a.Role == actor.Student:
		own, err := s.guard.Student(a)
		if err != nil {
			return nil, err
		}
		if studentID == "" {
			studentID = own
		}
		if studentID != own {
			return nil, apperr.Forbidden("students may only view their own attendance")
		}
	case a.Role == actor.Teacher && a.TeacherID != "":
		ids, err := s.courses.CourseIDsForTeacher(ctx, a.TeacherID)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return []StudentRecord{}, nil
		}
		courseIDs = ids
	default:
		return nil, apperr.Forbidden("not allowed to view attendance")
	}
	if studentID == "" {
		return nil, apperr.Validation("invalid request", apperr.FieldError{Field: "studentId", Message: "this field is required"})
	}
	return s.store.ListRecordsByStudent(ctx, studentID, courseIDs)
}

// MarkAttendance sets a student's status for a session outside the scan
// protocol. It is the only way to record an excused absence.
func (s *Service) MarkAttendance(ctx context.Context, a actor.Actor, sessionID, studentID string, status Status) (Record, error) {
	if !status.Valid() {
		return Record{}, apperr.Validation("invalid request", apperr.FieldError{
			Field:   "status",
			Message: "must be one of on-time, late, absent-by-lateness, excused",
		})
	}
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return Record{}, apperr.Validation("invalid request", apperr.FieldError{Field: "studentId", Message: "this field is required"})
	}
	sess, err := s.GetSession(ctx, a, sessionID)
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		ID:        uuid.NewString(),
		SessionID: sess.ID,
		StudentID: studentID,
		CourseID:  sess.CourseID,
		Status:    status,
		ScannedAt: s.now(),
	}
	if err := s.store.UpsertRecord(ctx, &rec); err != nil {
		return Record{}, err
	}
	s.logger.Info("attendance marked",
		zap.String("session_id", rec.SessionID),
		zap.String("student_id", rec.StudentID),
		zap.String("status", string(rec.Status)),
		zap.String("user_id", a.UserID),
	)
	return rec, nil
}

// IsActive reports whether the session's token accepts scans now.
func (s *Service) IsActive(sess Session) bool {
	return sess.Active(s.now())
}
