package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h Handlers) HostSummary(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	s, err := h.Earnings.Summary(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h Handlers) HostEarnings(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	limit, offset, ok := pagination(c)
	if !ok {
		return
	}
	out, err := h.Earnings.ListEarnings(c.Request.Context(), uid, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"earnings": out})
}

func (h Handlers) HostBonuses(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	limit, offset, ok := pagination(c)
	if !ok {
		return
	}
	out, err := h.Earnings.ListBonuses(c.Request.Context(), uid, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bonuses": out})
}

func (h Handlers) HostWithdrawals(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	limit, offset, ok := pagination(c)
	if !ok {
		return
	}
	out, err := h.Earnings.ListWithdrawals(c.Request.Context(), uid, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": out})
}

type withdrawalRequest struct {
	AmountMinor int64 `json:"amount_minor"`
}

func (h Handlers) RequestWithdrawal(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	var req withdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	w, err := h.Earnings.RequestWithdrawal(c.Request.Context(), uid, req.AmountMinor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, w)
}
