package settlement

import (
	"github.com/shopspring/decimal"

	"mkt-settle-api/internal/constant"
	"mkt-settle-api/internal/utils"
)

// claims 计算按要价抽取的两份佣金：代理佣金和平台毛抽成。
// Resolve 与 Decompose 共用这一份实现，避免两边公式漂移
func claims(terms CommissionTerms, fee FeeConfiguration) (affiliate, platformGross utils.Cents) {
	switch terms.CommissionType {
	case CommissionPercentage:
		affiliate = utils.PercentOf(terms.AskPrice, terms.CommissionRate)
	case CommissionFlatRate:
		affiliate = terms.FlatCommissionAmount
	}
	platformGross = utils.PercentOf(terms.AskPrice, fee.PlatformFeePercent)
	return affiliate, platformGross
}

// Resolve 根据要价和佣金条款反推买家支付总价（gross-up）：
//
//	final = (ask + affiliate + platformGross + processorFixed) / (1 - processorPercent/100)
//
// 通道从 final 扣掉百分比和固定费用后，剩下的正好是 subtotal，手续费全部由买家承担。
func Resolve(terms CommissionTerms, fee FeeConfiguration) (utils.Cents, error) {
	if err := fee.Validate(); err != nil {
		return 0, err
	}
	if err := terms.Validate(); err != nil {
		return 0, err
	}
	affiliate, platformGross := claims(terms, fee)
	subtotal := terms.AskPrice + affiliate + platformGross

	denominator := decimal.NewFromInt(1).Sub(fee.ProcessorPercent.Div(hundred))
	if !denominator.IsPositive() {
		// Validate 已拦截，这里兜底防止除零或负数
		return 0, constant.Errorf(constant.CodeConfigInvalid, "processorPercent %s leaves no room for gross-up", fee.ProcessorPercent)
	}
	numerator := (subtotal + fee.ProcessorFixedFee).Decimal()
	return utils.RoundHalfUp(numerator.Div(denominator)), nil
}

// Quote 展示用报价
func Quote(terms CommissionTerms, fee FeeConfiguration) (utils.Cents, string, error) {
	final, err := Resolve(terms, fee)
	if err != nil {
		return 0, "", err
	}
	currency := terms.Currency
	if currency == "" {
		currency = fee.Currency
	}
	return final, currency, nil
}
