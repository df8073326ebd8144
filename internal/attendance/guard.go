package attendance

import (
	"context"

	"qrattendance/internal/actor"
	"qrattendance/internal/apperr"
	"qrattendance/internal/course"
)

var (
	errNotCourseTeacher = apperr.Forbidden("you are not a teacher of this course")
	errStudentRequired  = apperr.Forbidden("student profile required")
	errTeacherRequired  = apperr.Forbidden("teacher profile required")
)

// CourseDirectory answers the course questions the attendance protocol asks.
// *course.Service satisfies it.
type CourseDirectory interface {
	Get(ctx context.Context, id string) (course.Course, error)
	TeachesCourse(ctx context.Context, teacherID, courseID string) (bool, error)
	CourseIDsForTeacher(ctx context.Context, teacherID string) ([]string, error)
}

// Guard decides whether an actor may act on a course's sessions.
type Guard struct {
	courses CourseDirectory
}

func NewGuard(courses CourseDirectory) Guard {
	return Guard{courses: courses}
}

// AuthorizeCourse passes admins and teachers associated with the course.
func (g Guard) AuthorizeCourse(ctx context.Context, a actor.Actor, courseID string) error {
	if a.IsAdmin() {
		return nil
	}
	if a.Role != actor.Teacher || a.TeacherID == "" {
		return errNotCourseTeacher
	}
	ok, err := g.courses.TeachesCourse(ctx, a.TeacherID, courseID)
	if err != nil {
		return err
	}
	if !ok {
		return errNotCourseTeacher
	}
	return nil
}

// Student returns the acting student's profile id.
func (g Guard) Student(a actor.Actor) (string, error) {
	if a.Role != actor.Student || a.StudentID == "" {
		return "", errStudentRequired
	}
	return a.StudentID, nil
}
