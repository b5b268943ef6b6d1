package httpapi

import (
	"net/http"

	"chatcall-platform/internal/auth"
	"chatcall-platform/internal/calls"
	"chatcall-platform/internal/pricing"
	"chatcall-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

type initiateCallRequest struct {
	ReceiverID string `json:"receiver_id"`
	CallType   string `json:"call_type"`
}

func (h Handlers) InitiateCall(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	var req initiateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	ct, ok := pricing.ParseCallType(req.CallType)
	if !ok {
		badRequest(c, "call_type must be audio or video")
		return
	}
	sess, err := h.Calls.Initiate(c.Request.Context(), uid, req.ReceiverID, ct)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (h Handlers) ListCalls(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	limit, offset, ok := pagination(c)
	if !ok {
		return
	}
	out, err := h.Calls.ListForUser(c.Request.Context(), uid, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": out})
}

// GetCall returns a call to its participants. Staff may read any call.
func (h Handlers) GetCall(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	if role, _ := auth.Role(c.Request.Context()); rbac.IsStaff(role) {
		uid = ""
	}
	call, err := h.Calls.Get(c.Request.Context(), c.Param("id"), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, call)
}

type callStatusRequest struct {
	Status          string `json:"status"`
	DurationSeconds *int64 `json:"duration_seconds"`
}

func (h Handlers) UpdateCallStatus(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	var req callStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	st, ok := calls.ParseStatus(req.Status)
	if !ok {
		badRequest(c, "unknown status")
		return
	}
	call, err := h.Calls.OnCallStatusChanged(c.Request.Context(), c.Param("id"), st, req.DurationSeconds, uid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, call)
}

type rateCallRequest struct {
	Stars int `json:"stars"`
}

func (h Handlers) RateCall(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	var req rateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	call, err := h.Calls.Rate(c.Request.Context(), c.Param("id"), uid, req.Stars)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, call)
}
