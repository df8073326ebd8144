package course

import (
	"context"
	"time"
)

// Course is a subject taught by one or more teachers.
type Course struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Credits     int       `json:"credits"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	TeacherIDs  []string  `json:"teacherIds"`
}

// Repository persists courses and the course-teacher relation.
type Repository interface {
	// Create inserts c and, when teacherID is set, associates the teacher in
	// the same transaction.
	Create(ctx context.Context, c *Course, teacherID string) error
	Get(ctx context.Context, id string) (Course, error)
	List(ctx context.Context) ([]Course, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]Course, error)
	Update(ctx context.Context, c *Course) error
	Delete(ctx context.Context, id string) error
	AddTeacher(ctx context.Context, courseID, teacherID string) error
	IsTeacher(ctx context.Context, teacherID, courseID string) (bool, error)
}
