package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"qrattendance/internal/course"
	"qrattendance/internal/respond"
)

func (h *Handler) ListCourses(c *gin.Context) {
	a, ok := currentActor(c)
	if !ok {
		return
	}
	courses, err := h.courses.List(c.Request.Context(), a)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"courses": courses})
}

func (h *Handler) GetCourse(c *gin.Context) {
	co, err := h.courses.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"course": co})
}

func (h *Handler) CreateCourse(c *gin.Context) {
	a, ok := currentActor(c)
	if !ok {
		return
	}
	var in course.Input
	if !bind(c, &in) {
		return
	}
	co, err := h.courses.Create(c.Request.Context(), a, in)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"course": co})
}

func (h *Handler) UpdateCourse(c *gin.Context) {
	a, ok := currentActor(c)
	if !ok {
		return
	}
	var in course.Input
	if !bind(c, &in) {
		return
	}
	co, err := h.courses.Update(c.Request.Context(), a, c.Param("id"), in)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"course": co})
}

func (h *Handler) DeleteCourse(c *gin.Context) {
	a, ok := currentActor(c)
	if !ok {
		return
	}
	if err := h.courses.Delete(c.Request.Context(), a, c.Param("id")); err != nil {
		respond.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type addTeacherRequest struct {
	TeacherID string `json:"teacherId" binding:"required"`
}

func (h *Handler) AddCourseTeacher(c *gin.Context) {
	a, ok := currentActor(c)
	if !ok {
		return
	}
	var req addTeacherRequest
	if !bind(c, &req) {
		return
	}
	co, err := h.courses.AddTeacher(c.Request.Context(), a, c.Param("id"), req.TeacherID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"course": co})
}
