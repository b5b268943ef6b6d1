package main

import (
	"net/http"

	"chatcall-platform/internal/httpapi"
	"chatcall-platform/internal/rbac"
	"chatcall-platform/internal/wallet"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type routeDeps struct {
	authMW       gin.HandlerFunc
	registry     *prometheus.Registry
	balances     wallet.BalanceService
	minCallCoins int64
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, d routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{})))

	// Dev-only; the handler answers 404 when disabled.
	r.POST("/v1/auth/token", h.IssueDevToken)

	v1 := r.Group("/v1")
	v1.Use(d.authMW, rbac.RequireUser())
	{
		v1.GET("/me", h.Me)

		w := v1.Group("/wallet")
		{
			w.GET("/balance", h.GetWalletBalance)
			w.GET("/entries", h.ListWalletEntries)
			w.POST("/transfer", h.Transfer)
		}

		pay := v1.Group("/payments")
		{
			pay.GET("/packages", h.ListPackages)
			pay.POST("/orders", h.CreateOrder)
			pay.GET("/orders/:id", h.GetOrder)
			pay.POST("/confirm", h.ConfirmPayment)
		}

		calls := v1.Group("/calls")
		{
			calls.POST("", wallet.RequireMinimumCoins(d.balances, d.minCallCoins), h.InitiateCall)
			calls.GET("", h.ListCalls)
			calls.GET("/:id", h.GetCall)
			calls.POST("/:id/status", h.UpdateCallStatus)
			calls.POST("/:id/rating", h.RateCall)
		}

		// Host status is re-checked by the earnings service against the account row.
		host := v1.Group("/host")
		host.Use(rbac.RequireAnyRole(rbac.RoleHost))
		{
			host.GET("/summary", h.HostSummary)
			host.GET("/earnings", h.HostEarnings)
			host.GET("/bonuses", h.HostBonuses)
			host.GET("/withdrawals", h.HostWithdrawals)
			host.POST("/withdrawals", h.RequestWithdrawal)
		}

		// ADMIN routes. The hidden support role is intentionally not included.
		admin := v1.Group("/admin")
		admin.Use(rbac.RequireAnyRole(rbac.RoleAdmin, rbac.RoleSuperAdmin))
		{
			admin.POST("/wallet/credit", h.AdminAdjustWallet)
			admin.GET("/wallet/:user_id/reconcile", h.AdminReconcileWallet)
			admin.POST("/hosts/:user_id/verify", h.AdminVerifyHost)
			admin.POST("/users/:user_id/premium", h.AdminSetPremium)
			admin.POST("/calls/:id/settle", h.AdminSettleCall)
			admin.POST("/withdrawals/:id/approve", h.AdminApproveWithdrawal)
			admin.POST("/withdrawals/:id/reject", h.AdminRejectWithdrawal)
			admin.GET("/reports/calls", h.AdminCallsReport)
			admin.GET("/reports/revenue", h.AdminRevenueReport)
		}
	}
}
