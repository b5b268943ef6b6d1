package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"chatcall-platform/internal/accounts"
	"chatcall-platform/internal/audit"
	"chatcall-platform/internal/auth"
	"chatcall-platform/internal/billing"
	"chatcall-platform/internal/calls"
	"chatcall-platform/internal/earnings"
	"chatcall-platform/internal/payments"
	"chatcall-platform/internal/pricing"
	"chatcall-platform/internal/reporting"
	"chatcall-platform/internal/wallet"
	"chatcall-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth      *auth.Manager
	Accounts  *accounts.Store
	Wallet    *wallet.Service
	Payments  *payments.Service
	Calls     *calls.Service
	Earnings  *earnings.Service
	Reporting *reporting.Service
	Audit     *audit.Service

	// DevTokens enables unauthenticated token issuance. Never on in production.
	DevTokens bool
	Now       func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// ClientIP stores the resolved client IP on the request context for audit records.
func ClientIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(audit.WithClientIP(c.Request.Context(), c.ClientIP()))
		c.Next()
	}
}

func currentUser(c *gin.Context) (string, bool) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil || uid == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return "", false
	}
	return uid, true
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

// statusFor maps domain sentinels onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, wallet.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, wallet.ErrNotFound),
		errors.Is(err, accounts.ErrNotFound),
		errors.Is(err, calls.ErrNotFound),
		errors.Is(err, earnings.ErrNotFound),
		errors.Is(err, payments.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, wallet.ErrInvalidArgument),
		errors.Is(err, wallet.ErrBadRequest),
		errors.Is(err, accounts.ErrInvalidArgument),
		errors.Is(err, calls.ErrInvalidArgument),
		errors.Is(err, billing.ErrInvalidArgument),
		errors.Is(err, earnings.ErrInvalidArgument),
		errors.Is(err, payments.ErrInvalidArgument),
		errors.Is(err, payments.ErrUnknownPackage),
		errors.Is(err, payments.ErrInvalidSignature),
		errors.Is(err, pricing.ErrInvalidPricingReq),
		errors.Is(err, reporting.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, calls.ErrForbidden),
		errors.Is(err, earnings.ErrNotAHost):
		return http.StatusForbidden
	case errors.Is(err, calls.ErrInvalidTransition),
		errors.Is(err, calls.ErrStaleStatus),
		errors.Is(err, calls.ErrBusy),
		errors.Is(err, calls.ErrInvalidState),
		errors.Is(err, calls.ErrAlreadyRated),
		errors.Is(err, billing.ErrAlreadyBilled),
		errors.Is(err, earnings.ErrDuplicateEarning),
		errors.Is(err, earnings.ErrInvalidState),
		errors.Is(err, wallet.ErrIdempotencyConflict),
		errors.Is(err, payments.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.FromGin(c).ErrorContext(c.Request.Context(), "request failed", "err", err)
		_ = c.Error(err)
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func pagination(c *gin.Context) (limit, offset int, ok bool) {
	var err error
	if v := c.Query("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			badRequest(c, "invalid limit")
			return 0, 0, false
		}
	}
	if v := c.Query("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			badRequest(c, "invalid offset")
			return 0, 0, false
		}
	}
	return limit, offset, true
}
