package settlement

import (
	"mkt-settle-api/internal/constant"
	"mkt-settle-api/internal/utils"
)

// PriceBreakdown 每笔销售计算一次后不可变，是审计和退款的依据
type PriceBreakdown struct {
	FinalPrice              utils.Cents `json:"finalPrice"`
	SellerAmount            utils.Cents `json:"sellerAmount"`
	AffiliateAmount         utils.Cents `json:"affiliateAmount"`
	ReferralAffiliateAmount utils.Cents `json:"referralAffiliateAmount"`
	PlatformGrossAmount     utils.Cents `json:"platformGrossAmount"`
	PlatformNetAmount       utils.Cents `json:"platformNetAmount"`
	ProcessorPercentAmount  utils.Cents `json:"processorPercentAmount"`
	ProcessorFixedAmount    utils.Cents `json:"processorFixedAmount"`
	RoundingAdjustment      utils.Cents `json:"roundingAdjustment"` // 已计入平台抽成的尾差
	FeeVersion              int         `json:"feeVersion"`
	Currency                string      `json:"currency"`
}

// Total 各组成部分之和，必须与 FinalPrice 完全相等
func (b PriceBreakdown) Total() utils.Cents {
	return utils.SumCents(b.SellerAmount, b.AffiliateAmount, b.PlatformGrossAmount, b.ProcessorPercentAmount, b.ProcessorFixedAmount)
}

// Decompose 把买家实付拆成各方金额。
// 各部分独立四舍五入产生的尾差只记到平台（毛抽成和净收入同步调整），
// 卖家永远等于要价，代理永远等于费率乘要价或固定佣金。
func Decompose(finalPrice utils.Cents, terms CommissionTerms, fee FeeConfiguration, referralEnabled bool) (PriceBreakdown, error) {
	if err := fee.Validate(); err != nil {
		return PriceBreakdown{}, err
	}
	if err := terms.Validate(); err != nil {
		return PriceBreakdown{}, err
	}
	if finalPrice < terms.AskPrice {
		return PriceBreakdown{}, constant.Errorf(constant.CodeInvalidParams,
			"finalPrice %s is below askPrice %s, fee configuration inconsistent", finalPrice, terms.AskPrice)
	}

	affiliate, platformGross := claims(terms, fee)
	b := PriceBreakdown{
		FinalPrice:             finalPrice,
		SellerAmount:           terms.AskPrice,
		AffiliateAmount:        affiliate,
		ProcessorPercentAmount: utils.PercentOf(finalPrice, fee.ProcessorPercent),
		ProcessorFixedAmount:   fee.ProcessorFixedFee,
		FeeVersion:             fee.Version,
		Currency:               terms.Currency,
	}
	if b.Currency == "" {
		b.Currency = fee.Currency
	}
	if referralEnabled {
		b.ReferralAffiliateAmount = utils.PercentOf(platformGross, fee.ReferralOverridePercent)
	}

	b.PlatformGrossAmount = platformGross
	b.RoundingAdjustment = finalPrice - b.Total()
	b.PlatformGrossAmount += b.RoundingAdjustment
	b.PlatformNetAmount = b.PlatformGrossAmount - b.ReferralAffiliateAmount
	if b.PlatformNetAmount < 0 {
		return PriceBreakdown{}, constant.Errorf(constant.CodeInvalidParams,
			"finalPrice %s leaves platform net %s, fee configuration inconsistent", finalPrice, b.PlatformNetAmount)
	}
	return b, nil
}

// ResolveAndDecompose 目录价未知时一次完成定价和拆分
func ResolveAndDecompose(terms CommissionTerms, fee FeeConfiguration, referralEnabled bool) (PriceBreakdown, error) {
	final, err := Resolve(terms, fee)
	if err != nil {
		return PriceBreakdown{}, err
	}
	return Decompose(final, terms, fee, referralEnabled)
}

// Verify 按记录时的费率版本复算，检查历史拆分是否被篡改或公式是否漂移
func Verify(b PriceBreakdown, terms CommissionTerms, fee FeeConfiguration, referralEnabled bool) error {
	if b.FeeVersion != fee.Version {
		return constant.Errorf(constant.CodeBreakdownDrift, "breakdown fee version %d, verifying with %d", b.FeeVersion, fee.Version)
	}
	again, err := Decompose(b.FinalPrice, terms, fee, referralEnabled)
	if err != nil {
		return err
	}
	if again != b {
		return constant.Errorf(constant.CodeBreakdownDrift, "recomputed %+v, stored %+v", again, b)
	}
	if b.Total() != b.FinalPrice {
		return constant.Errorf(constant.CodeBreakdownDrift, "components sum %s, final %s", b.Total(), b.FinalPrice)
	}
	return nil
}
