package handler

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"qrattendance/internal/actor"
	"qrattendance/internal/auth"
	"qrattendance/internal/httpmiddleware"
	"qrattendance/internal/metrics"
)

// RouterOptions carries the cross-cutting pieces of the HTTP stack.
type RouterOptions struct {
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer // nil disables /metrics
	Limiter        httpmiddleware.Limiter
	CORSOrigins    []string
	RequestTimeout time.Duration
}

// NewRouter wires middleware and routes.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	RegisterValidators()
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.AccessLog(opts.Logger))
	r.Use(httpmiddleware.Prometheus(opts.Metrics))
	r.Use(cors.New(corsConfig(opts.CORSOrigins)))
	r.Use(httpmiddleware.SecurityHeaders())
	if opts.Limiter != nil {
		r.Use(httpmiddleware.RateLimit(opts.Limiter, opts.Logger, opts.Metrics))
	}
	if opts.RequestTimeout > 0 {
		r.Use(httpmiddleware.Timeout(opts.RequestTimeout))
	}

	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}
	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	{
		api.POST("/auth/register", h.Register)
		api.POST("/auth/login", h.Login)
	}

	authed := api.Group("", auth.Authenticate(h.auth))
	staff := auth.RequireRole(actor.Teacher, actor.Admin)
	{
		authed.GET("/auth/profile", h.Profile)
		authed.GET("/auth/verify", h.Verify)
		authed.POST("/auth/logout", h.Logout)

		authed.GET("/courses", h.ListCourses)
		authed.GET("/courses/:id", h.GetCourse)
		authed.POST("/courses", staff, h.CreateCourse)
		authed.PUT("/courses/:id", staff, h.UpdateCourse)
		authed.DELETE("/courses/:id", staff, h.DeleteCourse)
		authed.POST("/courses/:id/teachers", staff, h.AddCourseTeacher)

		authed.POST("/sessions", auth.RequireRole(actor.Teacher), h.CreateSession)
		authed.GET("/sessions", staff, h.ListSessions)
		authed.GET("/sessions/:id", staff, h.GetSession)
		authed.GET("/sessions/:id/qr", staff, h.SessionQR)
		authed.GET("/sessions/:id/attendance", staff, h.SessionAttendance)
		authed.PUT("/sessions/:id/attendance/:studentId", staff, h.MarkAttendance)

		authed.POST("/attendance/scan", auth.RequireRole(actor.Student), h.Scan)
		authed.POST("/attendance/verify", h.VerifyToken)
		authed.GET("/attendance/me", auth.RequireRole(actor.Student), h.MyAttendance)
		authed.GET("/students/:id/attendance", h.StudentAttendance)
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       24 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
