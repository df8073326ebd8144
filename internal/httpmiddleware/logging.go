package httpmiddleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"qrattendance/internal/apperr"
)

var skipPaths = map[string]bool{"/healthz": true, "/metrics": true}

// AccessLog writes one zap line per request. Requests that failed with an
// error are logged at a level chosen by the error kind.
func AccessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if skipPaths[c.Request.URL.Path] {
			return
		}
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		level := zapcore.InfoLevel
		if last := c.Errors.Last(); last != nil {
			fields = append(fields, zap.Error(last.Err))
			level = errorLevel(last.Err)
		}
		if ce := logger.Check(level, "request"); ce != nil {
			ce.Write(fields...)
		}
	}
}

func errorLevel(err error) zapcore.Level {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound, apperr.KindConflict, apperr.KindValidation,
		apperr.KindForbidden, apperr.KindUnauthorized:
		return zapcore.DebugLevel
	case apperr.KindTransient:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}
