package course

import (
	"context"
	"sort"
	"sync"
	"time"
)

// UsageCheck reports whether anything still references a course.
type UsageCheck func(ctx context.Context, courseID string) bool

// MemoryRepository is an in-process Repository for development and tests.
type MemoryRepository struct {
	mu       sync.RWMutex
	courses  map[string]*Course
	teachers map[string]map[string]bool // course id -> teacher ids
	inUse    UsageCheck
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		courses:  make(map[string]*Course),
		teachers: make(map[string]map[string]bool),
	}
}

// SetUsageCheck makes Delete refuse courses for which fn returns true, the
// way the class_sessions foreign key does in Postgres.
func (r *MemoryRepository) SetUsageCheck(fn UsageCheck) {
	r.mu.Lock()
	r.inUse = fn
	r.mu.Unlock()
}

func (r *MemoryRepository) Create(_ context.Context, c *Course, teacherID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.codeTaken(c.Code, "") {
		return errDuplicateCode
	}
	c.CreatedAt = time.Now().UTC()
	stored := *c
	r.courses[c.ID] = &stored
	r.teachers[c.ID] = make(map[string]bool)
	if teacherID != "" {
		r.teachers[c.ID][teacherID] = true
	}
	*c = r.view(c.ID)
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (Course, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.courses[id]; !ok {
		return Course{}, errCourseNotFound
	}
	return r.view(id), nil
}

func (r *MemoryRepository) List(_ context.Context) ([]Course, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sorted(func(string) bool { return true }), nil
}

func (r *MemoryRepository) ListByTeacher(_ context.Context, teacherID string) ([]Course, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sorted(func(id string) bool { return r.teachers[id][teacherID] }), nil
}

func (r *MemoryRepository) Update(_ context.Context, c *Course) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.courses[c.ID]
	if !ok {
		return errCourseNotFound
	}
	if r.codeTaken(c.Code, c.ID) {
		return errDuplicateCode
	}
	stored.Code = c.Code
	stored.Name = c.Name
	stored.Description = c.Description
	stored.Credits = c.Credits
	*c = r.view(c.ID)
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.RLock()
	inUse := r.inUse
	r.mu.RUnlock()
	// checked outside the lock: the session store calls back into Get
	if inUse != nil && inUse(ctx, id) {
		return errCourseInUse
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.courses[id]; !ok {
		return errCourseNotFound
	}
	delete(r.courses, id)
	delete(r.teachers, id)
	return nil
}

func (r *MemoryRepository) AddTeacher(_ context.Context, courseID, teacherID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.courses[courseID]; !ok {
		return errCourseNotFound
	}
	r.teachers[courseID][teacherID] = true
	return nil
}

func (r *MemoryRepository) IsTeacher(_ context.Context, teacherID, courseID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.teachers[courseID][teacherID], nil
}

func (r *MemoryRepository) codeTaken(code, exceptID string) bool {
	for id, c := range r.courses {
		if c.Code == code && id != exceptID {
			return true
		}
	}
	return false
}

// view returns a copy of the course with its teacher ids; callers hold the lock.
func (r *MemoryRepository) view(id string) Course {
	c := *r.courses[id]
	c.TeacherIDs = make([]string, 0, len(r.teachers[id]))
	for t := range r.teachers[id] {
		c.TeacherIDs = append(c.TeacherIDs, t)
	}
	sort.Strings(c.TeacherIDs)
	return c
}

func (r *MemoryRepository) sorted(keep func(id string) bool) []Course {
	out := []Course{}
	for id := range r.courses {
		if keep(id) {
			out = append(out, r.view(id))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
