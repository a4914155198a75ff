package utils

import (
	"github.com/shopspring/decimal"
)

// Cents 金额统一使用最小货币单位（分）的整数表示，只在展示时转成小数
type Cents int64

var (
	hundred = decimal.NewFromInt(100)
)

// Decimal 转成以分为单位的 decimal，参与比例运算
func (c Cents) Decimal() decimal.Decimal {
	return decimal.NewFromInt(int64(c))
}

// String 展示格式 12.34
func (c Cents) String() string {
	return decimal.New(int64(c), -2).StringFixed(2)
}

// RoundHalfUp 四舍五入到整分。金额均为非负数，decimal.Round 的远离零舍入即四舍五入
func RoundHalfUp(d decimal.Decimal) Cents {
	return Cents(d.Round(0).IntPart())
}

// PercentOf 计算 amount * pct / 100 并四舍五入到分
func PercentOf(amount Cents, pct decimal.Decimal) Cents {
	return RoundHalfUp(amount.Decimal().Mul(pct).Div(hundred))
}

// SumCents 求和
func SumCents(vals ...Cents) Cents {
	var total Cents
	for _, v := range vals {
		total += v
	}
	return total
}
