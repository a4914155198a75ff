package settlement

import (
	"strings"

	"github.com/shopspring/decimal"

	"mkt-settle-api/internal/constant"
	"mkt-settle-api/internal/utils"
)

type CommissionType string

const (
	CommissionPercentage CommissionType = "percentage"
	CommissionFlatRate   CommissionType = "flat_rate"
)

// CommissionTerms 卖家设置的佣金条款，每笔销售不可变
type CommissionTerms struct {
	AskPrice             utils.Cents     `json:"askPrice"`
	CommissionType       CommissionType  `json:"commissionType"`
	CommissionRate       decimal.Decimal `json:"commissionRate"`       // 0-100，Percentage 时使用
	FlatCommissionAmount utils.Cents     `json:"flatCommissionAmount"` // FlatRate 时使用
	Currency             string          `json:"currency"`
}

// Validate 参数校验，任何越界都返回 ValidationError，不做截断
func (t CommissionTerms) Validate() error {
	if t.AskPrice < 0 {
		return constant.Errorf(constant.CodeInvalidParams, "askPrice must be >= 0, got %d", t.AskPrice)
	}
	switch t.CommissionType {
	case CommissionPercentage:
		if t.CommissionRate.IsNegative() || t.CommissionRate.GreaterThan(hundred) {
			return constant.Errorf(constant.CodeInvalidParams, "commissionRate must be within [0,100], got %s", t.CommissionRate)
		}
	case CommissionFlatRate:
		if t.FlatCommissionAmount < 0 {
			return constant.Errorf(constant.CodeInvalidParams, "flatCommissionAmount must be >= 0, got %d", t.FlatCommissionAmount)
		}
	default:
		return constant.Errorf(constant.CodeInvalidParams, "commissionType %q unsupported", t.CommissionType)
	}
	return nil
}

// ParseCommissionType 兼容 "Percentage"/"FlatRate" 等写法
func ParseCommissionType(s string) (CommissionType, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", "")) {
	case "percentage", "percent":
		return CommissionPercentage, nil
	case "flatrate", "flat":
		return CommissionFlatRate, nil
	}
	return "", constant.Errorf(constant.CodeInvalidParams, "commissionType %q unsupported", s)
}
