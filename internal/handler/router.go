package handler

import (
	"github.com/gin-gonic/gin"

	"mkt-settle-api/internal/service"
)

// Deps 路由需要的服务；中间件由调用方按配置构造
type Deps struct {
	Settlement    *service.SettlementService
	Ledger        *service.LedgerService
	Payout        *service.PayoutService
	WebhookSecret string

	InternalAuth    gin.HandlerFunc
	AdminAuth       gin.HandlerFunc
	PayoutRateLimit gin.HandlerFunc
}

// Register 挂载全部路由
func Register(r *gin.Engine, d Deps) {
	sh := NewSaleHandler(d.Settlement)
	lh := NewLedgerHandler(d.Ledger)
	ph := NewPayoutHandler(d.Payout)

	r.GET("/healthz", func(c *gin.Context) { ok(c, gin.H{"status": "up"}) })

	v1 := r.Group("/api/v1")
	{
		v1.GET("/quote", sh.Quote)
		v1.GET("/sales/:saleId/breakdown", sh.Breakdown)
		v1.GET("/ledgers/:userId/:role", lh.Snapshot)
		v1.GET("/ledgers/:userId/:role/entries", lh.Entries)
	}

	internal := r.Group("/internal/v1", chain(d.InternalAuth)...)
	{
		internal.POST("/sales/confirm", sh.Confirm)
		internal.POST("/sales/:saleId/reverse", sh.Reverse)
		internal.POST("/transfers/callback", ph.TransferCallback)
		// 请求里带 userId 和收款账户，只接受已鉴权用户身份的网关转发
		internal.POST("/payouts", chain(d.PayoutRateLimit, ph.Create)...)
		internal.GET("/payouts", ph.List)
	}

	admin := r.Group("/admin/v1", chain(d.AdminAuth)...)
	{
		admin.POST("/payouts/bulk", ph.Bulk)
		admin.POST("/payouts/:id/retry", ph.Retry)
		admin.GET("/payouts/summary", ph.Summary)
		admin.POST("/batches", ph.OpenBatch)
		admin.GET("/batches", ph.ListBatches)
		admin.POST("/batches/:id/submit", ph.SubmitBatch)
		admin.POST("/ledgers/reconcile", lh.Reconcile)
		admin.GET("/sales/:saleId/verify", sh.Verify)
	}

	if d.WebhookSecret != "" {
		wh := NewWebhookHandler(d.Payout, d.WebhookSecret)
		r.POST("/webhooks/razorpay", wh.Razorpay)
	}
}

// chain 跳过未配置的中间件
func chain(handlers ...gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}
