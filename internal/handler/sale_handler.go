package handler

import (
	"github.com/gin-gonic/gin"

	"mkt-settle-api/internal/dto"
	"mkt-settle-api/internal/service"
)

// SaleHandler 报价、分账明细、销售确认与冲正
type SaleHandler struct{ svc *service.SettlementService }

func NewSaleHandler(svc *service.SettlementService) *SaleHandler {
	return &SaleHandler{svc: svc}
}

// Quote GET /api/v1/quote
func (h *SaleHandler) Quote(c *gin.Context) {
	var req dto.QuoteReq
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err)
		return
	}
	resp, err := h.svc.Quote(req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, resp)
}

// Breakdown GET /api/v1/sales/:saleId/breakdown
func (h *SaleHandler) Breakdown(c *gin.Context) {
	res, err := h.svc.GetSale(c.Request.Context(), c.Param("saleId"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, res)
}

// Confirm POST /internal/v1/sales/confirm，与 MQ sale_confirmed 等价
func (h *SaleHandler) Confirm(c *gin.Context) {
	var evt dto.SaleConfirmedEvent
	if err := c.ShouldBindJSON(&evt); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.svc.ConfirmSale(c.Request.Context(), evt)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, res)
}

// Reverse POST /internal/v1/sales/:saleId/reverse
func (h *SaleHandler) Reverse(c *gin.Context) {
	var req dto.ReverseSaleReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	res, err := h.svc.ReverseSale(c.Request.Context(), c.Param("saleId"), req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, res)
}

// Verify GET /admin/v1/sales/:saleId/verify 按当时费率版本复算
func (h *SaleHandler) Verify(c *gin.Context) {
	if err := h.svc.VerifySale(c.Request.Context(), c.Param("saleId")); err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"saleId": c.Param("saleId"), "consistent": true})
}
