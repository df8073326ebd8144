package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"qrattendance/internal/auth"
	"qrattendance/internal/respond"
)

func (h *Handler) Register(c *gin.Context) {
	var in auth.RegisterInput
	if !bind(c, &in) {
		return
	}
	p, err := h.auth.Register(c.Request.Context(), in)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": p})
}

func (h *Handler) Login(c *gin.Context) {
	var in auth.LoginInput
	if !bind(c, &in) {
		return
	}
	res, err := h.auth.Login(c.Request.Context(), in)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Profile(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	p, err := h.auth.Profile(c.Request.Context(), claims.Subject)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": p})
}

// Verify confirms the bearer token is still accepted.
func (h *Handler) Verify(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	c.JSON(http.StatusOK, gin.H{
		"valid":     true,
		"userId":    claims.Subject,
		"role":      claims.Role,
		"expiresAt": claims.ExpiresAt.Time,
	})
}

func (h *Handler) Logout(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	if err := h.auth.Logout(c.Request.Context(), claims); err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}
