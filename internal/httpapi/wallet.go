package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h Handlers) GetWalletBalance(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	bal, err := h.Wallet.GetBalance(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": uid, "coin_balance": bal})
}

func (h Handlers) ListWalletEntries(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	limit, offset, ok := pagination(c)
	if !ok {
		return
	}
	entries, err := h.Wallet.ListEntries(c.Request.Context(), uid, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

type transferRequest struct {
	ToUserID    string `json:"to_user_id"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

func (h Handlers) Transfer(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	if req.ToUserID == "" || req.Amount <= 0 {
		badRequest(c, "to_user_id and positive amount required")
		return
	}
	res, err := h.Wallet.Transfer(c.Request.Context(), uid, req.ToUserID, req.Amount, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"coin_balance": res.From.Balance, "entry": res.From.Entry})
}
