package course

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"qrattendance/internal/actor"
	"qrattendance/internal/apperr"
)

var (
	teacherA = actor.Actor{UserID: "u-a", Role: actor.Teacher, TeacherID: "t-a"}
	teacherB = actor.Actor{UserID: "u-b", Role: actor.Teacher, TeacherID: "t-b"}
	student  = actor.Actor{UserID: "u-s", Role: actor.Student, StudentID: "s-1"}
	admin    = actor.Actor{UserID: "u-admin", Role: actor.Admin}
)

func setup(t *testing.T) *Service {
	t.Helper()
	return NewService(NewMemoryRepository(), zap.NewNop())
}

func TestCreateAssociatesTeacher(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	c, err := svc.Create(ctx, teacherA, Input{Code: " c101 ", Name: "Algorithms"})
	require.NoError(t, err)
	assert.Equal(t, "C101", c.Code)
	assert.Equal(t, []string{"t-a"}, c.TeacherIDs)

	ok, err := svc.TeachesCourse(ctx, "t-a", c.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.TeachesCourse(ctx, "t-b", c.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateDuplicateCode(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, teacherA, Input{Code: "C101", Name: "Algorithms"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, admin, Input{Code: "c101", Name: "Other"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestCreateValidation(t *testing.T) {
	svc := setup(t)
	_, err := svc.Create(context.Background(), admin, Input{Code: "  ", Name: ""})
	require.Error(t, err)

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Len(t, appErr.Fields, 2)
}

func TestListVisibility(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, teacherA, Input{Code: "C101", Name: "Algorithms"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, teacherB, Input{Code: "C102", Name: "Databases"})
	require.NoError(t, err)

	own, err := svc.List(ctx, teacherA)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "C101", own[0].Code)

	all, err := svc.List(ctx, student)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	ids, err := svc.CourseIDsForTeacher(ctx, "t-b")
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestUpdateDeleteAuthorization(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	c, err := svc.Create(ctx, teacherA, Input{Code: "C101", Name: "Algorithms"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, teacherB, c.ID, Input{Code: "C101", Name: "Hijacked"})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	updated, err := svc.Update(ctx, teacherA, c.ID, Input{Code: "C101", Name: "Advanced Algorithms", Credits: 6})
	require.NoError(t, err)
	assert.Equal(t, "Advanced Algorithms", updated.Name)
	assert.Equal(t, 6, updated.Credits)

	err = svc.Delete(ctx, student, c.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	err = svc.Delete(ctx, admin, "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	require.NoError(t, svc.Delete(ctx, admin, c.ID))
	_, err = svc.Get(ctx, c.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestAddTeacher(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	c, err := svc.Create(ctx, teacherA, Input{Code: "C101", Name: "Algorithms"})
	require.NoError(t, err)

	_, err = svc.AddTeacher(ctx, teacherB, c.ID, "t-b")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	c, err = svc.AddTeacher(ctx, teacherA, c.ID, "t-b")
	require.NoError(t, err)
	assert.Equal(t, []string{"t-a", "t-b"}, c.TeacherIDs)
}

func TestDeleteInUse(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo, zap.NewNop())
	ctx := context.Background()

	c, err := svc.Create(ctx, teacherA, Input{Code: "C101", Name: "Algorithms"})
	require.NoError(t, err)

	used := map[string]bool{c.ID: true}
	repo.SetUsageCheck(func(_ context.Context, id string) bool { return used[id] })

	err = svc.Delete(ctx, teacherA, c.ID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	_, err = svc.Get(ctx, c.ID)
	require.NoError(t, err)

	delete(used, c.ID)
	require.NoError(t, svc.Delete(ctx, teacherA, c.ID))
}
