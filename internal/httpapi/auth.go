package httpapi

import (
	"errors"
	"net/http"

	"pickme-intel/internal/audit"
	"pickme-intel/internal/auth"
	"pickme-intel/pkg/logger"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login verifies admin credentials and issues an access token.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil || h.Admins == nil {
		abort(c, http.StatusInternalServerError, CodeNotConfigured, "auth not configured")
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	id, err := h.Admins.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			logger.FromGin(c).Info("login rejected", "email", req.Email)
			abort(c, http.StatusUnauthorized, CodeInvalidCredentials, "Invalid email or password")
			return
		}
		respondError(c, err)
		return
	}

	token, exp, err := h.Auth.Issue(h.now(), id)
	if err != nil {
		logger.FromGin(c).Error("token issuance failed", "err", err)
		abort(c, http.StatusInternalServerError, CodeStoreFailure, "token issuance failed")
		return
	}

	if h.Audit != nil {
		actor := audit.Actor{UserID: id.UserID, Role: id.Role, IP: c.ClientIP()}
		if err := h.Audit.LogAdminAction(c.Request.Context(), actor, audit.EventLogin, audit.ResourceAdmin, id.UserID, "Admin logged in", nil); err != nil {
			logger.FromGin(c).Warn("audit append failed", "action", string(audit.EventLogin), "err", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": exp.UTC(),
		"user":       id,
	})
}

// Me returns the identity carried by the access token.
func (h Handlers) Me(c *gin.Context) {
	uid, _ := auth.UserID(c.Request.Context())
	email, _ := auth.Email(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"user": auth.Identity{UserID: uid, Email: email, Role: role}})
}
