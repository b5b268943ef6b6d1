package httpapi

import (
	"errors"
	"net/http"

	"chatcall-platform/internal/accounts"
	"chatcall-platform/internal/auth"
	"chatcall-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

type tokenRequest struct {
	UserID      string `json:"user_id"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
}

// IssueDevToken issues a JWT pair without credentials and creates the account
// on first use. Real login lives with the identity provider.
func (h Handlers) IssueDevToken(c *gin.Context) {
	if !h.DevTokens {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	if req.UserID == "" {
		badRequest(c, "user_id required")
		return
	}
	if req.Role == "" {
		req.Role = rbac.RoleUser
	}
	if !rbac.IsKnownRole(req.Role) {
		badRequest(c, "unknown role")
		return
	}

	ctx := c.Request.Context()
	if _, err := h.Accounts.Get(ctx, req.UserID); errors.Is(err, accounts.ErrNotFound) {
		if _, err := h.Accounts.Create(ctx, accounts.CreateRequest{ID: req.UserID, DisplayName: req.DisplayName}); err != nil {
			respondError(c, err)
			return
		}
	} else if err != nil {
		respondError(c, err)
		return
	}

	pair, err := h.Auth.IssuePair(h.now(), req.UserID, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

func (h Handlers) Me(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	a, err := h.Accounts.Get(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	role, _ := auth.Role(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"account":        a,
		"role":           role,
		"premium_active": a.PremiumActive(h.now()),
		"host_rating":    a.HostRating(),
	})
}
