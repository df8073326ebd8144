package attendance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"qrattendance/internal/actor"
	"qrattendance/internal/apperr"
	"qrattendance/internal/course"
)

var (
	teacherA = actor.Actor{UserID: "u-a", Role: actor.Teacher, TeacherID: "t-a"}
	teacherB = actor.Actor{UserID: "u-b", Role: actor.Teacher, TeacherID: "t-b"}
	admin    = actor.Actor{UserID: "u-admin", Role: actor.Admin}
	student1 = actor.Actor{UserID: "u-s1", Role: actor.Student, StudentID: "s-1"}
	student2 = actor.Actor{UserID: "u-s2", Role: actor.Student, StudentID: "s-2"}
	student3 = actor.Actor{UserID: "u-s3", Role: actor.Student, StudentID: "s-3"}
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type countingRecorder struct {
	mu       sync.Mutex
	sessions int
	outcomes map[string]int
}

func (r *countingRecorder) SessionCreated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions++
}

func (r *countingRecorder) ScanOutcome(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = make(map[string]int)
	}
	r.outcomes[outcome]++
}

type fixture struct {
	svc     *Service
	courses *course.Service
	clock   *fakeClock
	metrics *countingRecorder
	course  course.Course
}

func setup(t *testing.T) fixture {
	t.Helper()
	repo := course.NewMemoryRepository()
	courses := course.NewService(repo, zap.NewNop())
	lookup := func(ctx context.Context, id string) (string, string) {
		c, err := courses.Get(ctx, id)
		if err != nil {
			return "", ""
		}
		return c.Code, c.Name
	}
	sessions := NewMemoryStore(lookup)
	repo.SetUsageCheck(sessions.HasSessions)
	clock := &fakeClock{now: at(8, 30)}
	metrics := &countingRecorder{}
	svc := NewService(sessions, courses, zap.NewNop(), Options{
		Clock:   clock.Now,
		Metrics: metrics,
	})

	c, err := courses.Create(context.Background(), teacherA, course.Input{Code: "C101", Name: "Algorithms"})
	require.NoError(t, err)
	return fixture{svc: svc, courses: courses, clock: clock, metrics: metrics, course: c}
}

func (f fixture) session(t *testing.T, room, start, end string) Session {
	t.Helper()
	s, err := f.svc.CreateSession(context.Background(), teacherA, CreateSessionInput{
		CourseID: f.course.ID, Date: "2024-01-10", StartTime: start, EndTime: end, Room: room,
	})
	require.NoError(t, err)
	return s
}

func TestEndToEndScenario(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	created := f.clock.Now()
	t1 := f.session(t, "B12", "09:00", "10:00")
	assert.Equal(t, created.Add(2*time.Hour), t1.TokenExpiresAt)
	assert.Equal(t, at(9, 0), t1.StartsAt)
	assert.Equal(t, at(10, 0), t1.EndsAt)

	f.clock.Set(at(9, 10))
	rec, err := f.svc.Scan(ctx, student1, t1.Token)
	require.NoError(t, err)
	assert.Equal(t, StatusOnTime, rec.Status)
	assert.Equal(t, at(9, 10), rec.ScannedAt)

	f.clock.Set(at(9, 12))
	_, err = f.svc.Scan(ctx, student1, t1.Token)
	var dup *AlreadyRecordedError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, StatusOnTime, dup.Prior.Status)
	assert.Equal(t, at(9, 10), dup.Prior.ScannedAt)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	f.clock.Set(at(9, 40))
	rec, err = f.svc.Scan(ctx, student2, t1.Token)
	require.NoError(t, err)
	assert.Equal(t, StatusLate, rec.Status)

	_, err = f.svc.CreateSession(ctx, teacherA, CreateSessionInput{
		CourseID: f.course.ID, Date: "2024-01-10", StartTime: "09:30", EndTime: "10:30", Room: "B12",
	})
	var conflict *RoomConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, t1.ID, conflict.SessionID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	f.clock.Set(created.Add(2*time.Hour + time.Second))
	_, err = f.svc.Scan(ctx, student3, t1.Token)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	assert.Equal(t, 1, f.metrics.sessions)
	assert.Equal(t, map[string]int{"on-time": 1, "late": 1, "already_recorded": 1, "not_found": 1}, f.metrics.outcomes)
}

func TestExpiredAndUnknownTokensLookAlike(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s := f.session(t, "B12", "09:00", "10:00")

	f.clock.Set(s.TokenExpiresAt)
	_, expiredErr := f.svc.Scan(ctx, student1, s.Token)
	_, unknownErr := f.svc.Scan(ctx, student1, "qr_unknown")

	require.Error(t, expiredErr)
	require.Error(t, unknownErr)
	assert.Equal(t, unknownErr.Error(), expiredErr.Error())
	assert.True(t, apperr.Is(expiredErr, apperr.KindNotFound))

	_, err := f.svc.VerifyToken(ctx, s.Token)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCreateSessionRules(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.session(t, "B12", "09:00", "10:00")

	// back-to-back and other rooms do not conflict; rooms are case-insensitive
	f.session(t, "B12", "10:00", "11:00")
	f.session(t, "B13", "09:00", "10:00")

	_, err := f.svc.CreateSession(ctx, teacherA, CreateSessionInput{
		CourseID: f.course.ID, Date: "2024-01-10", StartTime: "08:30", EndTime: "09:15", Room: " b12 ",
	})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = f.svc.CreateSession(ctx, teacherB, CreateSessionInput{
		CourseID: f.course.ID, Date: "2024-01-11", StartTime: "09:00", EndTime: "10:00", Room: "B12",
	})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = f.svc.CreateSession(ctx, student1, CreateSessionInput{
		CourseID: f.course.ID, Date: "2024-01-11", StartTime: "09:00", EndTime: "10:00", Room: "B12",
	})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = f.svc.CreateSession(ctx, teacherA, CreateSessionInput{
		CourseID: "missing", Date: "2024-01-11", StartTime: "09:00", EndTime: "10:00", Room: "B12",
	})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCreateSessionValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		in    CreateSessionInput
		field string
	}{
		{"bad date", CreateSessionInput{Date: "10/01/2024", StartTime: "09:00", EndTime: "10:00"}, "date"},
		{"bad start", CreateSessionInput{Date: "2024-01-10", StartTime: "9am", EndTime: "10:00"}, "startTime"},
		{"end before start", CreateSessionInput{Date: "2024-01-10", StartTime: "10:00", EndTime: "09:00"}, "endTime"},
		{"empty window", CreateSessionInput{Date: "2024-01-10", StartTime: "10:00", EndTime: "10:00"}, "endTime"},
		{"no room", CreateSessionInput{Date: "2024-01-10", StartTime: "09:00", EndTime: "10:00", Room: "  "}, "room"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.CourseID = f.course.ID
			if tt.in.Room == "" {
				tt.in.Room = "B12"
			}
			_, err := f.svc.CreateSession(ctx, teacherA, tt.in)
			var appErr *apperr.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperr.KindValidation, appErr.Kind)
			require.NotEmpty(t, appErr.Fields)
			assert.Equal(t, tt.field, appErr.Fields[0].Field)
		})
	}
}

func TestCoTeacherCanCreateSession(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.courses.AddTeacher(ctx, teacherA, f.course.ID, "t-b")
	require.NoError(t, err)

	s, err := f.svc.CreateSession(ctx, teacherB, CreateSessionInput{
		CourseID: f.course.ID, Date: "2024-01-10", StartTime: "14:00", EndTime: "15:00", Room: "A1",
	})
	require.NoError(t, err)
	assert.Equal(t, "t-b", s.CreatedBy)
}

func TestScanRequiresStudent(t *testing.T) {
	f := setup(t)
	s := f.session(t, "B12", "09:00", "10:00")

	_, err := f.svc.Scan(context.Background(), teacherA, s.Token)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = f.svc.Scan(context.Background(), actor.Actor{UserID: "u-x", Role: actor.Student}, s.Token)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = f.svc.Scan(context.Background(), student1, " ")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestConcurrentScansRecordOnce(t *testing.T) {
	f := setup(t)
	s := f.session(t, "B12", "09:00", "10:00")
	f.clock.Set(at(9, 5))

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Scan(context.Background(), student1, s.Token)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		var dup *AlreadyRecordedError
		switch {
		case err == nil:
			succeeded++
		case errors.As(err, &dup):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)

	records, err := f.svc.store.ListRecordsBySession(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestListTeacherSessions(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	early := f.session(t, "B12", "09:00", "10:00")
	late := f.session(t, "B12", "14:00", "15:00")

	f.clock.Set(at(9, 1))
	_, err := f.svc.Scan(ctx, student1, early.Token)
	require.NoError(t, err)
	f.clock.Set(at(10, 15))
	_, err = f.svc.Scan(ctx, student2, early.Token)
	require.NoError(t, err)

	sessions, err := f.svc.ListTeacherSessions(ctx, teacherA, "")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, late.ID, sessions[0].ID)
	assert.Equal(t, early.ID, sessions[1].ID)
	// absent-by-lateness does not count as present
	assert.Equal(t, 1, sessions[1].PresentCount)
	assert.Equal(t, "C101", sessions[1].CourseCode)

	_, err = f.svc.ListTeacherSessions(ctx, teacherB, "t-a")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	sessions, err = f.svc.ListTeacherSessions(ctx, admin, "t-a")
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	sessions, err = f.svc.ListTeacherSessions(ctx, teacherB, "")
	require.NoError(t, err)
	assert.Empty(t, sessions)

	_, err = f.svc.ListTeacherSessions(ctx, student1, "t-a")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestSessionAttendanceAndMark(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s := f.session(t, "B12", "09:00", "10:00")

	f.clock.Set(at(9, 20))
	_, err := f.svc.Scan(ctx, student1, s.Token)
	require.NoError(t, err)

	_, err = f.svc.MarkAttendance(ctx, teacherA, s.ID, "s-2", StatusExcused)
	require.NoError(t, err)

	rec, err := f.svc.MarkAttendance(ctx, teacherA, s.ID, "s-1", StatusOnTime)
	require.NoError(t, err)
	assert.Equal(t, StatusOnTime, rec.Status)

	report, err := f.svc.SessionAttendance(ctx, teacherA, s.ID)
	require.NoError(t, err)
	assert.Len(t, report.Records, 2)
	assert.Equal(t, Tally{Total: 2, OnTime: 1, Excused: 1}, report.Tally)

	_, err = f.svc.SessionAttendance(ctx, teacherB, s.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = f.svc.MarkAttendance(ctx, teacherB, s.ID, "s-1", StatusLate)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = f.svc.MarkAttendance(ctx, teacherA, s.ID, "s-1", Status("present"))
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.GetSession(ctx, admin, "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestStudentAttendanceVisibility(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	other, err := f.courses.Create(ctx, teacherB, course.Input{Code: "C102", Name: "Databases"})
	require.NoError(t, err)
	s1 := f.session(t, "B12", "09:00", "10:00")
	s2, err := f.svc.CreateSession(ctx, teacherB, CreateSessionInput{
		CourseID: other.ID, Date: "2024-01-10", StartTime: "11:00", EndTime: "12:00", Room: "B12",
	})
	require.NoError(t, err)

	f.clock.Set(at(9, 0))
	_, err = f.svc.Scan(ctx, student1, s1.Token)
	require.NoError(t, err)
	f.clock.Set(at(10, 0))
	_, err = f.svc.Scan(ctx, student1, s2.Token)
	require.NoError(t, err)

	own, err := f.svc.StudentAttendance(ctx, student1, "")
	require.NoError(t, err)
	require.Len(t, own, 2)
	assert.Equal(t, s2.ID, own[0].SessionID)
	assert.Equal(t, "B12", own[0].Room)

	_, err = f.svc.StudentAttendance(ctx, student2, "s-1")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	seen, err := f.svc.StudentAttendance(ctx, teacherA, "s-1")
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, "C101", seen[0].CourseCode)

	all, err := f.svc.StudentAttendance(ctx, admin, "s-1")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestActiveSession(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s := f.session(t, "B12", "09:00", "10:00")

	got, err := f.svc.ActiveSession(ctx, teacherA, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.Token, got.Token)

	f.clock.Set(s.TokenExpiresAt.Add(time.Second))
	_, err = f.svc.ActiveSession(ctx, teacherA, s.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDeleteCourseWithSessions(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	s := f.session(t, "B12", "09:00", "10:00")

	err := f.courses.Delete(ctx, teacherA, f.course.ID)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindConflict, appErr.Kind)
	assert.Equal(t, "course_in_use", appErr.Code)

	got, err := f.svc.GetSession(ctx, teacherA, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)

	f.clock.Set(at(9, 5))
	rec, err := f.svc.Scan(ctx, student1, s.Token)
	require.NoError(t, err)
	assert.Equal(t, StatusOnTime, rec.Status)

	other, err := f.courses.Create(ctx, teacherA, course.Input{Code: "C102", Name: "Databases"})
	require.NoError(t, err)
	require.NoError(t, f.courses.Delete(ctx, teacherA, other.ID))
}

func TestInvalidPolicyFallsBackToDefault(t *testing.T) {
	clock := &fakeClock{now: at(9, 20)}
	svc := NewService(NewMemoryStore(nil), nil, zap.NewNop(), Options{
		Policy: Policy{OnTimeWithin: time.Hour, LateWithin: time.Minute},
		Clock:  clock.Now,
	})
	assert.Equal(t, DefaultPolicy(), svc.policy)
}
