package settlement

import (
	"strings"

	"github.com/shopspring/decimal"

	"mkt-settle-api/internal/config"
	"mkt-settle-api/internal/constant"
	"mkt-settle-api/internal/utils"
)

var (
	hundred = decimal.NewFromInt(100)
)

// FeeConfiguration 单笔交易生效的费率快照，按版本不可变。
// 每次 Resolve/Decompose 都显式传入，不读任何全局状态，历史订单可按当时的版本复算。
type FeeConfiguration struct {
	Version                 int             `json:"version"`
	AffiliateIsPercentOfAsk bool            `json:"affiliateIsPercentOfAsk"`
	PlatformFeePercent      decimal.Decimal `json:"platformFeePercent"`
	ReferralOverridePercent decimal.Decimal `json:"referralOverridePercent"` // 从平台抽成里切出，不加价
	ProcessorPercent        decimal.Decimal `json:"processorPercent"`
	ProcessorFixedFee       utils.Cents     `json:"processorFixedFee"`
	Currency                string          `json:"currency"`
}

// Validate 费率配置校验，失败即 ConfigurationError，只应在启动或登记新版本时出现
func (f FeeConfiguration) Validate() error {
	if !f.AffiliateIsPercentOfAsk {
		return constant.Errorf(constant.CodeConfigInvalid, "affiliate commission must be a percent of ask")
	}
	if f.Version <= 0 {
		return constant.Errorf(constant.CodeConfigInvalid, "version must be positive, got %d", f.Version)
	}
	checks := []struct {
		name string
		val  decimal.Decimal
	}{
		{"platformFeePercent", f.PlatformFeePercent},
		{"referralOverridePercent", f.ReferralOverridePercent},
		{"processorPercent", f.ProcessorPercent},
	}
	for _, c := range checks {
		if c.val.IsNegative() {
			return constant.Errorf(constant.CodeConfigInvalid, "%s must be >= 0, got %s", c.name, c.val)
		}
	}
	if f.ReferralOverridePercent.GreaterThan(hundred) {
		return constant.Errorf(constant.CodeConfigInvalid, "referralOverridePercent must be <= 100, got %s", f.ReferralOverridePercent)
	}
	if f.ProcessorPercent.GreaterThanOrEqual(hundred) {
		return constant.Errorf(constant.CodeConfigInvalid, "processorPercent must be < 100, got %s", f.ProcessorPercent)
	}
	if f.ProcessorFixedFee < 0 {
		return constant.Errorf(constant.CodeConfigInvalid, "processorFixedFee must be >= 0, got %d", f.ProcessorFixedFee)
	}
	if strings.TrimSpace(f.Currency) == "" {
		return constant.Errorf(constant.CodeConfigInvalid, "currency is required")
	}
	return nil
}

// FeeFromConfig 从配置文件构造费率版本并校验
func FeeFromConfig(c config.FeeCfg) (FeeConfiguration, error) {
	parse := func(name, s string) (decimal.Decimal, error) {
		d, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return decimal.Zero, constant.Errorf(constant.CodeConfigInvalid, "%s %q is not a number", name, s)
		}
		return d, nil
	}
	platform, err := parse("platformFeePercent", c.PlatformFeePercent)
	if err != nil {
		return FeeConfiguration{}, err
	}
	referral, err := parse("referralOverridePercent", c.ReferralOverridePercent)
	if err != nil {
		return FeeConfiguration{}, err
	}
	processor, err := parse("processorPercent", c.ProcessorPercent)
	if err != nil {
		return FeeConfiguration{}, err
	}
	fee := FeeConfiguration{
		Version:                 c.Version,
		AffiliateIsPercentOfAsk: !c.AffiliateOnFinalPrice,
		PlatformFeePercent:      platform,
		ReferralOverridePercent: referral,
		ProcessorPercent:        processor,
		ProcessorFixedFee:       utils.Cents(c.ProcessorFixedFee),
		Currency:                strings.ToUpper(strings.TrimSpace(c.Currency)),
	}
	return fee, fee.Validate()
}
