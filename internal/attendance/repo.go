package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"qrattendance/internal/store"
)

const sessionColumns = `s.id, s.course_id, s.created_by, to_char(s.session_date, 'YYYY-MM-DD'),
	s.starts_at, s.ends_at, s.room, s.token, s.token_expires_at, s.created_at`

const recordColumns = `r.id, r.session_id, r.student_id, r.course_id, r.status, r.scanned_at, r.created_at`

// PostgresStore persists sessions and attendance records in Postgres.
type PostgresStore struct {
	db *store.DB
}

// NewPostgresStore creates a store.
func NewPostgresStore(db *store.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (r *PostgresStore) CreateSession(ctx context.Context, s *Session) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		var existing string
		err := tx.QueryRow(ctx, `
			SELECT id FROM class_sessions
			WHERE room = $1 AND session_date = $2::date AND starts_at < $4 AND ends_at > $3
			LIMIT 1
		`, s.Room, s.Date, s.StartsAt, s.EndsAt).Scan(&existing)
		switch {
		case err == nil:
			return &RoomConflictError{SessionID: existing}
		case !store.IsNotFound(err):
			return store.Classify(err, "check room conflict")
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO class_sessions (id, course_id, created_by, session_date, starts_at, ends_at, room, token, token_expires_at)
			VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8, $9)
			RETURNING created_at
		`, s.ID, s.CourseID, s.CreatedBy, s.Date, s.StartsAt, s.EndsAt, s.Room, s.Token, s.TokenExpiresAt).Scan(&s.CreatedAt)
		switch {
		case err == nil:
			return nil
		case store.IsViolation(err, store.CodeExclusionViolation, "class_sessions_room_overlap"):
			// a concurrent insert won the room between the check and the insert
			return &RoomConflictError{}
		case store.IsViolation(err, store.CodeUniqueViolation, "class_sessions_token_key"):
			return errTokenCollision
		default:
			return store.Classify(err, "insert session")
		}
	})
}

func (r *PostgresStore) GetSession(ctx context.Context, id string) (Session, error) {
	s, err := scanSession(r.db.Pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM class_sessions s WHERE s.id = $1`, id))
	if err != nil {
		if store.IsNotFound(err) {
			return Session{}, errSessionNotFound
		}
		return Session{}, store.Classify(err, "get session")
	}
	return s, nil
}

func (r *PostgresStore) FindActiveByToken(ctx context.Context, token string, now time.Time) (Session, error) {
	s, err := scanSession(r.db.Pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM class_sessions s
		WHERE s.token = $1 AND s.token_expires_at > $2
	`, token, now))
	if err != nil {
		if store.IsNotFound(err) {
			return Session{}, errTokenNotFound
		}
		return Session{}, store.Classify(err, "find session by token")
	}
	return s, nil
}

func (r *PostgresStore) ListSessionsByCourses(ctx context.Context, courseIDs []string) ([]SessionSummary, error) {
	out := []SessionSummary{}
	if len(courseIDs) == 0 {
		return out, nil
	}
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+sessionColumns+`, c.code, c.name,
			(SELECT COUNT(*) FROM attendance_records r
			 WHERE r.session_id = s.id AND r.status IN ('on-time', 'late'))
		FROM class_sessions s
		JOIN courses c ON c.id = s.course_id
		WHERE s.course_id = ANY($1::uuid[])
		ORDER BY s.session_date DESC, s.starts_at DESC
	`, courseIDs)
	if err != nil {
		return nil, store.Classify(err, "list sessions")
	}
	defer rows.Close()

	for rows.Next() {
		var sum SessionSummary
		s := &sum.Session
		if err := rows.Scan(&s.ID, &s.CourseID, &s.CreatedBy, &s.Date, &s.StartsAt, &s.EndsAt, &s.Room,
			&s.Token, &s.TokenExpiresAt, &s.CreatedAt, &sum.CourseCode, &sum.CourseName, &sum.PresentCount); err != nil {
			return nil, store.Classify(err, "scan session")
		}
		out = append(out, sum)
	}
	return out, store.Classify(rows.Err(), "list sessions")
}

func (r *PostgresStore) RecordAttendance(ctx context.Context, rec *Record) error {
	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		prior, err := findRecord(ctx, tx, rec.SessionID, rec.StudentID)
		if err != nil {
			return err
		}
		if prior != nil {
			return &AlreadyRecordedError{Prior: *prior}
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO attendance_records (id, session_id, student_id, course_id, status, scanned_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at
		`, rec.ID, rec.SessionID, rec.StudentID, rec.CourseID, rec.Status, rec.ScannedAt).Scan(&rec.CreatedAt)
		switch {
		case err == nil:
			return nil
		case store.IsViolation(err, store.CodeUniqueViolation, "attendance_records_session_student_key"):
			return errDuplicateRecord
		case store.IsViolation(err, store.CodeForeignKeyViolation, ""):
			return errStudentNotFound
		default:
			return store.Classify(err, "insert attendance record")
		}
	})
	if !errors.Is(err, errDuplicateRecord) {
		return err
	}

	// lost a race with a concurrent scan for the same pair
	prior, ferr := r.FindRecord(ctx, rec.SessionID, rec.StudentID)
	if ferr != nil {
		return ferr
	}
	if prior == nil {
		return store.Classify(err, "insert attendance record")
	}
	return &AlreadyRecordedError{Prior: *prior}
}

func (r *PostgresStore) FindRecord(ctx context.Context, sessionID, studentID string) (*Record, error) {
	return findRecord(ctx, r.db.Pool, sessionID, studentID)
}

func findRecord(ctx context.Context, q store.Querier, sessionID, studentID string) (*Record, error) {
	rec, err := scanRecord(q.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_records r
		WHERE r.session_id = $1 AND r.student_id = $2
	`, sessionID, studentID))
	if err != nil {
		if store.IsNotFound(err) {
			return nil, nil
		}
		return nil, store.Classify(err, "find attendance record")
	}
	return &rec, nil
}

func (r *PostgresStore) ListRecordsBySession(ctx context.Context, sessionID string) ([]Record, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_records r
		WHERE r.session_id = $1
		ORDER BY r.scanned_at, r.id
	`, sessionID)
	if err != nil {
		return nil, store.Classify(err, "list session records")
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, store.Classify(err, "scan attendance record")
		}
		out = append(out, rec)
	}
	return out, store.Classify(rows.Err(), "list session records")
}

func (r *PostgresStore) ListRecordsByStudent(ctx context.Context, studentID string, courseIDs []string) ([]StudentRecord, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+recordColumns+`, to_char(s.session_date, 'YYYY-MM-DD'), s.starts_at, s.room, c.code, c.name
		FROM attendance_records r
		JOIN class_sessions s ON s.id = r.session_id
		JOIN courses c ON c.id = r.course_id
		WHERE r.student_id = $1 AND ($2::uuid[] IS NULL OR r.course_id = ANY($2::uuid[]))
		ORDER BY s.session_date DESC, s.starts_at DESC
	`, studentID, courseIDs)
	if err != nil {
		return nil, store.Classify(err, "list student records")
	}
	defer rows.Close()

	out := []StudentRecord{}
	for rows.Next() {
		var sr StudentRecord
		rec := &sr.Record
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.StudentID, &rec.CourseID, &rec.Status, &rec.ScannedAt, &rec.CreatedAt,
			&sr.SessionDate, &sr.StartsAt, &sr.Room, &sr.CourseCode, &sr.CourseName); err != nil {
			return nil, store.Classify(err, "scan student record")
		}
		out = append(out, sr)
	}
	return out, store.Classify(rows.Err(), "list student records")
}

func (r *PostgresStore) UpsertRecord(ctx context.Context, rec *Record) error {
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO attendance_records (id, session_id, student_id, course_id, status, scanned_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT ON CONSTRAINT attendance_records_session_student_key
		DO UPDATE SET status = EXCLUDED.status, scanned_at = EXCLUDED.scanned_at
		RETURNING id, created_at
	`, rec.ID, rec.SessionID, rec.StudentID, rec.CourseID, rec.Status, rec.ScannedAt).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		if store.IsViolation(err, store.CodeForeignKeyViolation, "") {
			return errStudentNotFound
		}
		return store.Classify(err, "upsert attendance record")
	}
	return nil
}

func scanSession(row pgx.Row) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.CourseID, &s.CreatedBy, &s.Date, &s.StartsAt, &s.EndsAt, &s.Room,
		&s.Token, &s.TokenExpiresAt, &s.CreatedAt)
	return s, err
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.SessionID, &rec.StudentID, &rec.CourseID, &rec.Status, &rec.ScannedAt, &rec.CreatedAt)
	return rec, err
}
