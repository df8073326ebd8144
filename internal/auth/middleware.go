package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	"qrattendance/internal/actor"
	"qrattendance/internal/apperr"
	"qrattendance/internal/respond"
)

const (
	claimsKey  = "auth.claims"
	actorKey   = "auth.actor"
	serviceKey = "auth.service"
)

var (
	errMissingToken = apperr.Unauthorized("missing bearer token")
	errNoClaims     = apperr.Unauthorized("authentication required")
	errRoleDenied   = apperr.Forbidden("your role is not allowed to perform this action")
)

// Authenticate enforces bearer JWT tokens signed with HS256 and not logged out.
func Authenticate(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			respond.Error(c, errMissingToken)
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := svc.Authenticate(c.Request.Context(), tokenStr)
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.Set(claimsKey, claims)
		c.Set(serviceKey, svc)
		c.Next()
	}
}

// RequireRole rejects callers whose token role is not listed.
func RequireRole(roles ...actor.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			respond.Error(c, errNoClaims)
			return
		}
		for _, r := range roles {
			if claims.Role == r {
				c.Next()
				return
			}
		}
		respond.Error(c, errRoleDenied)
	}
}

// ClaimsFrom returns the verified claims of the request.
func ClaimsFrom(c *gin.Context) (Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return Claims{}, false
	}
	claims, ok := v.(Claims)
	return claims, ok
}

// CurrentActor resolves the caller's role profile on first use and reuses it
// for the rest of the request.
func CurrentActor(c *gin.Context) (actor.Actor, error) {
	if v, ok := c.Get(actorKey); ok {
		return v.(actor.Actor), nil
	}
	claims, ok := ClaimsFrom(c)
	if !ok {
		return actor.Actor{}, errNoClaims
	}
	svc, ok := c.MustGet(serviceKey).(*Service)
	if !ok {
		return actor.Actor{}, errNoClaims
	}
	a, err := svc.Resolve(c.Request.Context(), claims)
	if err != nil {
		return actor.Actor{}, err
	}
	c.Set(actorKey, a)
	return a, nil
}
