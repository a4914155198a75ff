package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"mkt-settle-api/internal/constant"
	"mkt-settle-api/internal/logger"
	"mkt-settle-api/internal/service"
	"mkt-settle-api/internal/transfer"
)

const razorpaySignatureHeader = "X-Razorpay-Signature"

// WebhookHandler 渠道 webhook，验签后按转账回调处理
type WebhookHandler struct {
	payouts *service.PayoutService
	secret  string
}

func NewWebhookHandler(payouts *service.PayoutService, secret string) *WebhookHandler {
	return &WebhookHandler{payouts: payouts, secret: secret}
}

// Razorpay POST /webhooks/razorpay；不关心的事件直接 200
func (h *WebhookHandler) Razorpay(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		badRequest(c, err)
		return
	}
	if !transfer.VerifyWebhook(body, c.GetHeader(razorpaySignatureHeader), h.secret) {
		fail(c, constant.Errorf(constant.CodeTokenInvalid, "webhook signature mismatch"))
		return
	}
	cb, err := transfer.ParseWebhook(body)
	if err != nil {
		badRequest(c, err)
		return
	}
	if cb == nil {
		ok(c, gin.H{"ignored": true})
		return
	}
	vo, err := h.payouts.CompleteTransfer(c.Request.Context(), *cb)
	if err != nil {
		fail(c, err)
		return
	}
	logger.Biz().WithFields(map[string]interface{}{"payout": vo.ID, "status": vo.Status}).Info("razorpay webhook applied")
	ok(c, vo)
}
