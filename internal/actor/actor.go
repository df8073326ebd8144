// Package actor describes the authenticated caller of a request.
package actor

// Role is the account type of a user.
type Role string

const (
	Teacher Role = "teacher"
	Student Role = "student"
	Admin   Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case Teacher, Student, Admin:
		return true
	}
	return false
}

// Actor is the identity acting on a request. TeacherID and StudentID are set
// only when the role profile exists.
type Actor struct {
	UserID    string
	Role      Role
	TeacherID string
	StudentID string
}

func (a Actor) IsAdmin() bool { return a.Role == Admin }
