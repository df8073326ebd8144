package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"qrattendance/internal/respond"
)

type tokenRequest struct {
	Token string `json:"token" binding:"required"`
}

func (h *Handler) Scan(c *gin.Context) {
	a, ok := currentActor(c)
	if !ok {
		return
	}
	var req tokenRequest
	if !bind(c, &req) {
		return
	}
	rec, err := h.attendance.Scan(c.Request.Context(), a, req.Token)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    rec.Status,
		"scanTime":  rec.ScannedAt,
		"sessionId": rec.SessionID,
	})
}

// VerifyToken checks a scanned token without recording attendance.
func (h *Handler) VerifyToken(c *gin.Context) {
	var req tokenRequest
	if !bind(c, &req) {
		return
	}
	s, err := h.attendance.VerifyToken(c.Request.Context(), req.Token)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"valid":     true,
		"sessionId": s.ID,
		"courseId":  s.CourseID,
		"room":      s.Room,
		"startsAt":  s.StartsAt,
		"endsAt":    s.EndsAt,
		"expiry":    s.TokenExpiresAt,
	})
}

func (h *Handler) MyAttendance(c *gin.Context) {
	h.studentAttendance(c, "")
}

func (h *Handler) StudentAttendance(c *gin.Context) {
	h.studentAttendance(c, c.Param("id"))
}

func (h *Handler) studentAttendance(c *gin.Context, studentID string) {
	a, ok := currentActor(c)
	if !ok {
		return
	}
	records, err := h.attendance.StudentAttendance(c.Request.Context(), a, studentID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}
