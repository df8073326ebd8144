package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"qrattendance/internal/actor"
	"qrattendance/internal/attendance"
	"qrattendance/internal/auth"
	"qrattendance/internal/course"
	"qrattendance/internal/respond"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) bool
}

type Handler struct {
	auth       *auth.Service
	courses    *course.Service
	attendance *attendance.Service
	health     []HealthCheck
}

func New(authSvc *auth.Service, courses *course.Service, att *attendance.Service, health ...HealthCheck) *Handler {
	return &Handler{auth: authSvc, courses: courses, attendance: att, health: health}
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	body := gin.H{"status": "ok"}
	status := http.StatusOK
	for _, hc := range h.health {
		ok := hc.Check(ctx)
		body[hc.Name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// currentActor resolves the caller, writing the error response on failure.
func currentActor(c *gin.Context) (actor.Actor, bool) {
	a, err := auth.CurrentActor(c)
	if err != nil {
		respond.Error(c, err)
		return actor.Actor{}, false
	}
	return a, true
}

func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respond.Error(c, err)
		return false
	}
	return true
}
