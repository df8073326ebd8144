package course

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"qrattendance/internal/actor"
	"qrattendance/internal/apperr"
)

var errNotCourseTeacher = apperr.Forbidden("you do not teach this course")

// Input carries the editable fields of a course.
type Input struct {
	Code        string `json:"code" binding:"required,max=32"`
	Name        string `json:"name" binding:"required,max=200"`
	Description string `json:"description" binding:"max=2000"`
	Credits     int    `json:"credits" binding:"min=0,max=60"`
}

func (in Input) normalize() Input {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	return in
}

func (in Input) validate() error {
	var fields []apperr.FieldError
	if in.Code == "" {
		fields = append(fields, apperr.FieldError{Field: "code", Message: "this field is required"})
	}
	if in.Name == "" {
		fields = append(fields, apperr.FieldError{Field: "name", Message: "this field is required"})
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid course", fields...)
	}
	return nil
}

// Service manages courses and answers course-teacher membership questions.
type Service struct {
	repo   Repository
	logger *zap.Logger
}

// NewService creates a service backed by a repository.
func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// List returns the courses visible to a: a teacher sees the courses they
// teach, everyone else sees all courses.
func (s *Service) List(ctx context.Context, a actor.Actor) ([]Course, error) {
	if a.Role == actor.Teacher {
		if a.TeacherID == "" {
			return []Course{}, nil
		}
		return s.repo.ListByTeacher(ctx, a.TeacherID)
	}
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (Course, error) {
	return s.repo.Get(ctx, id)
}

// Create adds a course. A teacher creator is associated with it.
func (s *Service) Create(ctx context.Context, a actor.Actor, in Input) (Course, error) {
	if a.Role == actor.Teacher && a.TeacherID == "" {
		return Course{}, apperr.Forbidden("teacher profile not found")
	}
	in = in.normalize()
	if err := in.validate(); err != nil {
		return Course{}, err
	}

	c := Course{
		ID:          uuid.NewString(),
		Code:        in.Code,
		Name:        in.Name,
		Description: in.Description,
		Credits:     in.Credits,
		CreatedBy:   a.UserID,
	}
	if err := s.repo.Create(ctx, &c, a.TeacherID); err != nil {
		return Course{}, err
	}

	s.logger.Info("course created",
		zap.String("course_id", c.ID),
		zap.String("code", c.Code),
		zap.String("user_id", a.UserID),
	)
	return c, nil
}

// Update edits a course the actor teaches, or any course for an admin.
func (s *Service) Update(ctx context.Context, a actor.Actor, id string, in Input) (Course, error) {
	if err := s.authorize(ctx, a, id); err != nil {
		return Course{}, err
	}
	in = in.normalize()
	if err := in.validate(); err != nil {
		return Course{}, err
	}

	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return Course{}, err
	}
	c.Code = in.Code
	c.Name = in.Name
	c.Description = in.Description
	c.Credits = in.Credits
	if err := s.repo.Update(ctx, &c); err != nil {
		return Course{}, err
	}
	return s.repo.Get(ctx, id)
}

// Delete removes a course the actor teaches, or any course for an admin.
func (s *Service) Delete(ctx context.Context, a actor.Actor, id string) error {
	if err := s.authorize(ctx, a, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("course deleted", zap.String("course_id", id), zap.String("user_id", a.UserID))
	return nil
}

// AddTeacher associates another teacher with a course.
func (s *Service) AddTeacher(ctx context.Context, a actor.Actor, courseID, teacherID string) (Course, error) {
	if strings.TrimSpace(teacherID) == "" {
		return Course{}, apperr.Validation("invalid request", apperr.FieldError{Field: "teacherId", Message: "this field is required"})
	}
	if err := s.authorize(ctx, a, courseID); err != nil {
		return Course{}, err
	}
	if err := s.repo.AddTeacher(ctx, courseID, teacherID); err != nil {
		return Course{}, err
	}
	return s.repo.Get(ctx, courseID)
}

func (s *Service) authorize(ctx context.Context, a actor.Actor, courseID string) error {
	if _, err := s.repo.Get(ctx, courseID); err != nil {
		return err
	}
	if a.IsAdmin() {
		return nil
	}
	ok, err := s.TeachesCourse(ctx, a.TeacherID, courseID)
	if err != nil {
		return err
	}
	if !ok {
		return errNotCourseTeacher
	}
	return nil
}

// TeachesCourse reports whether the teacher is associated with the course.
func (s *Service) TeachesCourse(ctx context.Context, teacherID, courseID string) (bool, error) {
	if teacherID == "" || courseID == "" {
		return false, nil
	}
	return s.repo.IsTeacher(ctx, teacherID, courseID)
}

// CourseIDsForTeacher lists the ids of every course the teacher teaches.
func (s *Service) CourseIDsForTeacher(ctx context.Context, teacherID string) ([]string, error) {
	courses, err := s.repo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(courses))
	for i, c := range courses {
		ids[i] = c.ID
	}
	return ids, nil
}
