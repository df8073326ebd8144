package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"qrattendance/internal/actor"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(svc *Service) *gin.Engine {
	r := gin.New()
	g := r.Group("/", Authenticate(svc))
	g.GET("/any", func(c *gin.Context) {
		a, err := CurrentActor(c)
		if err != nil {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		// second call is served from the request cache
		again, _ := CurrentActor(c)
		c.JSON(http.StatusOK, gin.H{"userId": a.UserID, "same": a == again})
	})
	g.GET("/teachers", RequireRole(actor.Teacher, actor.Admin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func do(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticateMiddleware(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	p, err := svc.Register(ctx, studentInput())
	require.NoError(t, err)
	res, err := svc.Login(ctx, LoginInput{Matricule: "S2024001", Password: "password123"})
	require.NoError(t, err)
	r := newTestRouter(svc)

	w := do(r, "/any", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"error":"unauthorized"`)

	w = do(r, "/any", "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, "/any", res.Token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userId":"`+p.ID+`","same":true}`, w.Body.String())

	w = do(r, "/teachers", res.Token)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAuthenticateMiddlewareDenylistDown(t *testing.T) {
	svc := NewService(NewMemoryRepository(), brokenDenylist{}, zap.NewNop(), Options{SigningKey: "k"})
	tok, err := Issue("u", actor.Teacher, "", "k", time.Hour, time.Now())
	require.NoError(t, err)

	w := do(newTestRouter(svc), "/teachers", tok.Value)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
