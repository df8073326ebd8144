package auth

import (
	"context"
	"time"

	"qrattendance/internal/actor"
	"qrattendance/internal/apperr"
)

var (
	errUserNotFound       = apperr.NotFound("user not found")
	errDuplicateMatricule = apperr.Conflict("duplicate_matricule", "a user with this matricule already exists")
	errDuplicateEmail     = apperr.Conflict("duplicate_email", "a user with this email already exists")
)

// User is an account able to log in.
type User struct {
	ID           string     `json:"id"`
	Matricule    string     `json:"matricule"`
	Email        string     `json:"email"`
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	PasswordHash string     `json:"-"`
	Role         actor.Role `json:"role"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Profile is a user with its teacher or student profile, if any.
type Profile struct {
	User
	TeacherID  string `json:"teacherId,omitempty"`
	Department string `json:"department,omitempty"`
	StudentID  string `json:"studentId,omitempty"`
	Level      string `json:"level,omitempty"`
	Program    string `json:"program,omitempty"`
}

// Actor returns the request identity for the profile.
func (p Profile) Actor() actor.Actor {
	return actor.Actor{
		UserID:    p.ID,
		Role:      p.Role,
		TeacherID: p.TeacherID,
		StudentID: p.StudentID,
	}
}

// Repository persists users and their role profiles.
type Repository interface {
	// Create inserts the user and, for teachers and students, the role
	// profile in one transaction.
	Create(ctx context.Context, p *Profile) error
	FindByMatricule(ctx context.Context, matricule string) (Profile, error)
	GetProfile(ctx context.Context, userID string) (Profile, error)
}
