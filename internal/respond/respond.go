// Package respond writes JSON error bodies for the HTTP layer.
package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"qrattendance/internal/apperr"
)

// Detailer is implemented by errors that add top-level fields to the body,
// such as the prior record of a duplicate scan.
type Detailer interface {
	Details() map[string]any
}

// Error aborts the request with the status and body derived from err. The
// error is attached to the gin context so the access log can report it.
func Error(c *gin.Context, err error) {
	_ = c.Error(err)
	status, body := Render(err)
	c.AbortWithStatusJSON(status, body)
}

// Render maps err to an HTTP status and a body of the shape
// {"error": code, "message": text, "fields": {...}}.
func Render(err error) (int, gin.H) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := gin.H{}
		for _, fe := range verrs {
			fields[fe.Field()] = fieldMessage(fe)
		}
		return http.StatusBadRequest, gin.H{
			"error":   apperr.KindValidation.String(),
			"message": "invalid request",
			"fields":  fields,
		}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return badBody("request body is required")
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr), errors.Is(err, io.ErrUnexpectedEOF):
		return badBody("malformed request body")
	}

	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, gin.H{
			"error":   apperr.KindInternal.String(),
			"message": "internal server error",
		}
	}

	status := Status(appErr.Kind)
	body := gin.H{"error": appErr.Code, "message": appErr.Message}
	if appErr.Kind == apperr.KindInternal || appErr.Kind == apperr.KindFatalConfig {
		body = gin.H{"error": apperr.KindInternal.String(), "message": "internal server error"}
	}
	if len(appErr.Fields) > 0 {
		fields := gin.H{}
		for _, f := range appErr.Fields {
			fields[f.Field] = f.Message
		}
		body["fields"] = fields
	}
	var d Detailer
	if errors.As(err, &d) {
		for k, v := range d.Details() {
			body[k] = v
		}
	}
	return status, body
}

// Status maps an error kind to its HTTP status.
func Status(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func badBody(msg string) (int, gin.H) {
	return http.StatusBadRequest, gin.H{"error": apperr.KindValidation.String(), "message": msg}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "isodate":
		return "must be a date formatted YYYY-MM-DD"
	case "clock":
		return "must be a time formatted HH:MM"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	default:
		return "is invalid"
	}
}
