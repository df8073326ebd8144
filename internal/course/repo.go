package course

import (
	"context"

	"github.com/jackc/pgx/v5"

	"qrattendance/internal/apperr"
	"qrattendance/internal/store"
)

var (
	errCourseNotFound  = apperr.NotFound("course not found")
	errTeacherNotFound = apperr.NotFound("teacher not found")
	errDuplicateCode   = apperr.Conflict("duplicate_course_code", "a course with this code already exists")
	errCourseInUse     = apperr.Conflict("course_in_use", "course still has class sessions")
)

const courseColumns = `c.id, c.code, c.name, c.description, c.credits, c.created_by, c.created_at,
	COALESCE(ARRAY(SELECT ct.teacher_id::text FROM course_teachers ct WHERE ct.course_id = c.id ORDER BY ct.teacher_id), '{}')`

// PostgresRepository persists courses in Postgres.
type PostgresRepository struct {
	db *store.DB
}

// NewPostgresRepository creates a repo.
func NewPostgresRepository(db *store.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, c *Course, teacherID string) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO courses (id, code, name, description, credits, created_by)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at
		`, c.ID, c.Code, c.Name, c.Description, c.Credits, c.CreatedBy).Scan(&c.CreatedAt)
		if err != nil {
			if store.IsViolation(err, store.CodeUniqueViolation, "courses_code_key") {
				return errDuplicateCode
			}
			return store.Classify(err, "insert course")
		}
		if teacherID == "" {
			return nil
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO course_teachers (course_id, teacher_id) VALUES ($1, $2)
		`, c.ID, teacherID); err != nil {
			return store.Classify(err, "link course teacher")
		}
		c.TeacherIDs = []string{teacherID}
		return nil
	})
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (Course, error) {
	c, err := scanCourse(r.db.Pool.QueryRow(ctx, `SELECT `+courseColumns+` FROM courses c WHERE c.id = $1`, id))
	if err != nil {
		if store.IsNotFound(err) {
			return Course{}, errCourseNotFound
		}
		return Course{}, store.Classify(err, "get course")
	}
	return c, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]Course, error) {
	return r.list(ctx, `SELECT `+courseColumns+` FROM courses c ORDER BY c.name`)
}

func (r *PostgresRepository) ListByTeacher(ctx context.Context, teacherID string) ([]Course, error) {
	return r.list(ctx, `
		SELECT `+courseColumns+`
		FROM courses c
		JOIN course_teachers t ON t.course_id = c.id
		WHERE t.teacher_id = $1
		ORDER BY c.name
	`, teacherID)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]Course, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, store.Classify(err, "list courses")
	}
	defer rows.Close()

	courses := []Course{}
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, store.Classify(err, "scan course")
		}
		courses = append(courses, c)
	}
	return courses, store.Classify(rows.Err(), "list courses")
}

func (r *PostgresRepository) Update(ctx context.Context, c *Course) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE courses SET code = $2, name = $3, description = $4, credits = $5
		WHERE id = $1
	`, c.ID, c.Code, c.Name, c.Description, c.Credits)
	if err != nil {
		if store.IsViolation(err, store.CodeUniqueViolation, "courses_code_key") {
			return errDuplicateCode
		}
		return store.Classify(err, "update course")
	}
	if tag.RowsAffected() == 0 {
		return errCourseNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		if store.IsViolation(err, store.CodeForeignKeyViolation, "") {
			return errCourseInUse
		}
		return store.Classify(err, "delete course")
	}
	if tag.RowsAffected() == 0 {
		return errCourseNotFound
	}
	return nil
}

func (r *PostgresRepository) AddTeacher(ctx context.Context, courseID, teacherID string) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO course_teachers (course_id, teacher_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, courseID, teacherID)
	if err != nil {
		if store.IsViolation(err, store.CodeForeignKeyViolation, "") {
			return errTeacherNotFound
		}
		return store.Classify(err, "add course teacher")
	}
	return nil
}

func (r *PostgresRepository) IsTeacher(ctx context.Context, teacherID, courseID string) (bool, error) {
	var ok bool
	err := r.db.Pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM course_teachers WHERE teacher_id = $1 AND course_id = $2)
	`, teacherID, courseID).Scan(&ok)
	if err != nil {
		return false, store.Classify(err, "check course teacher")
	}
	return ok, nil
}

func scanCourse(row pgx.Row) (Course, error) {
	var c Course
	err := row.Scan(&c.ID, &c.Code, &c.Name, &c.Description, &c.Credits, &c.CreatedBy, &c.CreatedAt, &c.TeacherIDs)
	return c, err
}
