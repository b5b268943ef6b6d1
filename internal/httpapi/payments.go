package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h Handlers) ListPackages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"packages": h.Payments.Packages()})
}

type createOrderRequest struct {
	PackageID string `json:"package_id"`
}

func (h Handlers) CreateOrder(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PackageID == "" {
		badRequest(c, "package_id required")
		return
	}
	o, err := h.Payments.CreateOrder(c.Request.Context(), uid, req.PackageID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

type confirmPaymentRequest struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

// ConfirmPayment takes the gateway's checkout callback fields.
func (h Handlers) ConfirmPayment(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	var req confirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	res, err := h.Payments.ConfirmPayment(c.Request.Context(), uid, req.OrderID, req.PaymentID, req.Signature)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h Handlers) GetOrder(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	o, err := h.Payments.GetOrder(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}
