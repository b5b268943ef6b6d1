package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"chatcall-platform/internal/audit"
	"chatcall-platform/internal/auth"
	"chatcall-platform/internal/earnings"
	"chatcall-platform/internal/reporting"
	"chatcall-platform/internal/wallet"

	"github.com/gin-gonic/gin"
)

type adminAdjustRequest struct {
	UserID string `json:"user_id"`
	// Amount is signed: positive credits, negative debits.
	Amount         int64  `json:"amount"`
	Kind           string `json:"kind"`
	Reason         string `json:"reason"`
	IdempotencyKey string `json:"idempotency_key"`
}

// AdminAdjustWallet posts a manual wallet correction. Kind defaults to admin;
// refund and bonus are accepted for credits.
func (h Handlers) AdminAdjustWallet(c *gin.Context) {
	var req adminAdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	if req.UserID == "" || req.Amount == 0 || req.Reason == "" {
		badRequest(c, "user_id, non-zero amount and reason required")
		return
	}
	kind := wallet.KindAdmin
	if req.Kind != "" {
		k, ok := wallet.ParseKind(req.Kind)
		if !ok {
			badRequest(c, "unknown kind")
			return
		}
		kind = k
	}

	ctx := c.Request.Context()
	actor, _ := auth.UserID(ctx)
	opts := wallet.Options{
		IdempotencyKey: req.IdempotencyKey,
		Metadata:       map[string]any{"actor_user_id": actor, "reason": req.Reason},
	}

	var (
		res wallet.Result
		err error
	)
	if req.Amount > 0 {
		res, err = h.Wallet.Credit(ctx, req.UserID, req.Amount, kind, req.Reason, opts)
	} else {
		res, err = h.Wallet.Debit(ctx, req.UserID, -req.Amount, kind, req.Reason, opts)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	if !res.Replayed {
		h.Audit.Record(ctx, audit.EventTypeWalletAdjustment, req.UserID, "",
			fmt.Sprintf("%s %d coins", kind, req.Amount),
			map[string]any{"entry_id": res.Entry.ID, "amount": req.Amount, "reason": req.Reason})
	}
	c.JSON(http.StatusOK, res)
}

func (h Handlers) AdminReconcileWallet(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.Param("user_id")
	rec, err := h.Wallet.Reconcile(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Audit.Record(ctx, audit.EventTypeWalletReconcile, userID, "", "wallet reconciled",
		map[string]any{"consistent": rec.Consistent, "balance": rec.Balance, "ledger_sum": rec.LedgerSum})
	c.JSON(http.StatusOK, rec)
}

func (h Handlers) AdminVerifyHost(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.Param("user_id")
	a, err := h.Accounts.VerifyHost(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Audit.Record(ctx, audit.EventTypeHostVerified, userID, "", "host verified", nil)
	c.JSON(http.StatusOK, a)
}

// AdminSettleCall retries billing and host earnings for a completed call.
func (h Handlers) AdminSettleCall(c *gin.Context) {
	ctx := c.Request.Context()
	call, err := h.Calls.Settle(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	h.Audit.Record(ctx, audit.EventTypeCallSettled, call.CallerID, call.ID, "call settlement retried", nil)
	c.JSON(http.StatusOK, call)
}

type premiumRequest struct {
	Active bool       `json:"active"`
	Until  *time.Time `json:"until"`
}

func (h Handlers) AdminSetPremium(c *gin.Context) {
	var req premiumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	ctx := c.Request.Context()
	userID := c.Param("user_id")
	if err := h.Accounts.SetPremium(ctx, userID, req.Active, req.Until); err != nil {
		respondError(c, err)
		return
	}
	a, err := h.Accounts.Get(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

type reviewWithdrawalRequest struct {
	PayoutRef string `json:"payout_ref"`
	Note      string `json:"note"`
}

func (h Handlers) AdminApproveWithdrawal(c *gin.Context) {
	h.reviewWithdrawal(c, true)
}

func (h Handlers) AdminRejectWithdrawal(c *gin.Context) {
	h.reviewWithdrawal(c, false)
}

func (h Handlers) reviewWithdrawal(c *gin.Context, approve bool) {
	var req reviewWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	ctx := c.Request.Context()
	reviewer, _ := auth.UserID(ctx)
	id := c.Param("id")

	var (
		w   earnings.Withdrawal
		err error
	)
	if approve {
		if req.PayoutRef == "" {
			badRequest(c, "payout_ref required")
			return
		}
		w, err = h.Earnings.ApproveWithdrawal(ctx, id, reviewer, req.PayoutRef)
	} else {
		w, err = h.Earnings.RejectWithdrawal(ctx, id, reviewer, req.Note)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	h.Audit.Record(ctx, audit.EventTypeWithdrawalReview, w.HostID, "", "withdrawal "+string(w.Status),
		map[string]any{"withdrawal_id": w.ID, "amount_minor": w.AmountMinor, "note": req.Note})
	c.JSON(http.StatusOK, w)
}

func parseRange(c *gin.Context, now time.Time) (reporting.TimeRange, bool) {
	r := reporting.TimeRange{From: now.Add(-24 * time.Hour), To: now}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			badRequest(c, "from must be RFC3339")
			return reporting.TimeRange{}, false
		}
		r.From = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			badRequest(c, "to must be RFC3339")
			return reporting.TimeRange{}, false
		}
		r.To = t
	}
	return r, true
}

func (h Handlers) AdminCallsReport(c *gin.Context) {
	r, ok := parseRange(c, h.now())
	if !ok {
		return
	}
	out, err := h.Reporting.CallsSummary(c.Request.Context(), r)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) AdminRevenueReport(c *gin.Context) {
	r, ok := parseRange(c, h.now())
	if !ok {
		return
	}
	out, err := h.Reporting.RevenueSummary(c.Request.Context(), r)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
