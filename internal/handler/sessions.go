package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"

	"qrattendance/internal/attendance"
	"qrattendance/internal/respond"
)

const qrSize = 256

func (h *Handler) CreateSession(c *gin.Context) {
	a, ok := currentActor(c)
	if !ok {
		return
	}
	var in attendance.CreateSessionInput
	if !bind(c, &in) {
		return
	}
	s, err := h.attendance.CreateSession(c.Request.Context(), a, in)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"sessionId": s.ID,
		"token":     s.Token,
		"expiry":    s.TokenExpiresAt,
		"session":   s,
	})
}

// ListSessions lists a teacher's sessions; ?teacherId= defaults to the caller.
func (h *Handler) ListSessions(c *gin.Context) {
	a, ok := currentActor(c)
	if !ok {
		return
	}
	sessions, err := h.attendance.ListTeacherSessions(c.Request.Context(), a, c.Query("teacherId"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *Handler) GetSession(c *gin.Context) {
	a, ok := currentActor(c)
	if !ok {
		return
	}
	s, err := h.attendance.GetSession(c.Request.Context(), a, c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": s, "active": h.attendance.IsActive(s)})
}

// SessionQR renders the session token as a PNG while it still accepts scans.
func (h *Handler) SessionQR(c *gin.Context) {
	a, ok := currentActor(c)
	if !ok {
		return
	}
	s, err := h.attendance.ActiveSession(c.Request.Context(), a, c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	png, err := qrcode.Encode(s.Token, qrcode.Medium, qrSize)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) SessionAttendance(c *gin.Context) {
	a, ok := currentActor(c)
	if !ok {
		return
	}
	report, err := h.attendance.SessionAttendance(c.Request.Context(), a, c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

type markRequest struct {
	Status attendance.Status `json:"status" binding:"required,oneof=on-time late absent-by-lateness excused"`
}

func (h *Handler) MarkAttendance(c *gin.Context) {
	a, ok := currentActor(c)
	if !ok {
		return
	}
	var req markRequest
	if !bind(c, &req) {
		return
	}
	rec, err := h.attendance.MarkAttendance(c.Request.Context(), a, c.Param("id"), c.Param("studentId"), req.Status)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": rec})
}
