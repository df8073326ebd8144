package auth

import (
	"context"

	"github.com/jackc/pgx/v5"

	"qrattendance/internal/actor"
	"qrattendance/internal/store"
)

const profileQuery = `
	SELECT u.id, u.matricule, u.email, u.first_name, u.last_name, u.password_hash, u.role, u.active, u.created_at,
		COALESCE(t.id::text, ''), COALESCE(t.department, ''),
		COALESCE(s.id::text, ''), COALESCE(s.level, ''), COALESCE(s.program, '')
	FROM users u
	LEFT JOIN teachers t ON t.user_id = u.id
	LEFT JOIN students s ON s.user_id = u.id
`

// PostgresRepository persists users in Postgres.
type PostgresRepository struct {
	db *store.DB
}

func NewPostgresRepository(db *store.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, p *Profile) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO users (id, matricule, email, first_name, last_name, password_hash, role, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING created_at
		`, p.ID, p.Matricule, p.Email, p.FirstName, p.LastName, p.PasswordHash, p.Role, p.Active).Scan(&p.CreatedAt)
		switch {
		case err == nil:
		case store.IsViolation(err, store.CodeUniqueViolation, "users_matricule_key"):
			return errDuplicateMatricule
		case store.IsViolation(err, store.CodeUniqueViolation, "users_email_key"):
			return errDuplicateEmail
		default:
			return store.Classify(err, "insert user")
		}

		switch p.Role {
		case actor.Teacher:
			_, err = tx.Exec(ctx, `INSERT INTO teachers (id, user_id, department) VALUES ($1, $2, $3)`,
				p.TeacherID, p.ID, p.Department)
		case actor.Student:
			_, err = tx.Exec(ctx, `INSERT INTO students (id, user_id, level, program) VALUES ($1, $2, $3, $4)`,
				p.StudentID, p.ID, p.Level, p.Program)
		}
		return store.Classify(err, "insert role profile")
	})
}

func (r *PostgresRepository) FindByMatricule(ctx context.Context, matricule string) (Profile, error) {
	return r.find(ctx, profileQuery+`WHERE u.matricule = $1`, matricule)
}

func (r *PostgresRepository) GetProfile(ctx context.Context, userID string) (Profile, error) {
	return r.find(ctx, profileQuery+`WHERE u.id = $1`, userID)
}

func (r *PostgresRepository) find(ctx context.Context, query string, arg string) (Profile, error) {
	var p Profile
	err := r.db.Pool.QueryRow(ctx, query, arg).Scan(
		&p.ID, &p.Matricule, &p.Email, &p.FirstName, &p.LastName, &p.PasswordHash, &p.Role, &p.Active, &p.CreatedAt,
		&p.TeacherID, &p.Department, &p.StudentID, &p.Level, &p.Program,
	)
	if err != nil {
		if store.IsNotFound(err) {
			return Profile{}, errUserNotFound
		}
		return Profile{}, store.Classify(err, "find user")
	}
	return p, nil
}
