package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommissionTermsReq 卖家佣金条款，金额单位为分
type CommissionTermsReq struct {
	CommissionType       string          `json:"commissionType" binding:"required"`
	CommissionRate       decimal.Decimal `json:"commissionRate"`
	FlatCommissionAmount int64           `json:"flatCommissionAmount"`
}

// SaleConfirmedEvent 订单支付成功事件（MQ sale_confirmed 或内部 HTTP）
type SaleConfirmedEvent struct {
	SaleID                  string             `json:"saleId" binding:"required"`
	SellerID                uint64             `json:"sellerId" binding:"required"`
	ProductAsk              int64              `json:"productAsk"`
	Currency                string             `json:"currency"`
	CommissionTerms         CommissionTermsReq `json:"commissionTerms" binding:"required"`
	AffiliateID             *uint64            `json:"affiliateId,omitempty"`
	RecruiterID             *uint64            `json:"recruiterId,omitempty"`
	BuyerChargeAlreadyKnown *int64             `json:"buyerChargeAlreadyKnown,omitempty"` // 目录价已定时直接拆分
	ConfirmedAt             int64              `json:"confirmedAt,omitempty"`
}

// DistributionVo 分账记录
type DistributionVo struct {
	RecipientID uint64     `json:"recipientId"`
	Role        string     `json:"role"`
	Amount      int64      `json:"amount"`
	Status      string     `json:"status"`
	SettleAt    time.Time  `json:"settleAt"`
	SettledAt   *time.Time `json:"settledAt,omitempty"`
}

// BreakdownVo 价格拆分（分）
type BreakdownVo struct {
	FinalPrice              int64  `json:"finalPrice"`
	SellerAmount            int64  `json:"sellerAmount"`
	AffiliateAmount         int64  `json:"affiliateAmount"`
	ReferralAffiliateAmount int64  `json:"referralAffiliateAmount"`
	PlatformGrossAmount     int64  `json:"platformGrossAmount"`
	PlatformNetAmount       int64  `json:"platformNetAmount"`
	ProcessorPercentAmount  int64  `json:"processorPercentAmount"`
	ProcessorFixedAmount    int64  `json:"processorFixedAmount"`
	RoundingAdjustment      int64  `json:"roundingAdjustment"`
	FeeVersion              int    `json:"feeVersion"`
	Currency                string `json:"currency"`
}

// SaleResult 销售确认结果，重复确认时 Duplicate=true 并返回首次结果
type SaleResult struct {
	SaleID        string           `json:"saleId"`
	Status        string           `json:"status"`
	Duplicate     bool             `json:"duplicate"`
	Breakdown     BreakdownVo      `json:"breakdown"`
	Distributions []DistributionVo `json:"distributions"`
}

type ReverseSaleReq struct {
	Reason string `json:"reason"`
}

// QuoteReq 结账前报价
type QuoteReq struct {
	AskPrice             int64           `form:"askPrice"`
	CommissionType       string          `form:"commissionType" binding:"required"`
	CommissionRate       decimal.Decimal `form:"commissionRate"`
	FlatCommissionAmount int64           `form:"flatCommissionAmount"`
	Currency             string          `form:"currency"`
}

type QuoteResp struct {
	FinalPrice int64  `json:"finalPrice"`
	Display    string `json:"display"`
	Currency   string `json:"currency"`
	FeeVersion int    `json:"feeVersion"`
}
