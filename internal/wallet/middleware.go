package wallet

import (
	"context"
	"errors"
	"net/http"

	"chatcall-platform/internal/auth"
	"chatcall-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

// BalanceService is the minimal wallet service interface needed by middleware.
type BalanceService interface {
	GetBalance(ctx context.Context, userID string) (int64, error)
}

// RequireMinimumCoins blocks the request with 402 when the caller holds fewer
// than minCoins. It is a cheap pre-check; services re-check under the ledger.
//
// Admin override:
// - super_admin bypasses
// - hidden support role bypasses
func RequireMinimumCoins(svc BalanceService, minCoins int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := auth.Role(c.Request.Context())
		if rbac.IsSuperAdmin(role) || rbac.IsHiddenRole(role) {
			c.Next()
			return
		}

		userID, err := auth.UserID(c.Request.Context())
		if err != nil || userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
			return
		}

		bal, err := svc.GetBalance(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "account not found"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "balance lookup failed"})
			return
		}
		if bal < minCoins {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
				"error":          "insufficient balance",
				"balance":        bal,
				"required_coins": minCoins,
			})
			return
		}

		c.Next()
	}
}
