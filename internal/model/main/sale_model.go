package mainmodel

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"mkt-settle-api/internal/utils"
)

// BreakdownSnapshot 销售确认时的价格拆分，整体存 JSON，之后不再修改
type BreakdownSnapshot struct {
	FinalPrice              utils.Cents `json:"finalPrice"`
	SellerAmount            utils.Cents `json:"sellerAmount"`
	AffiliateAmount         utils.Cents `json:"affiliateAmount"`
	ReferralAffiliateAmount utils.Cents `json:"referralAffiliateAmount"`
	PlatformGrossAmount     utils.Cents `json:"platformGrossAmount"`
	PlatformNetAmount       utils.Cents `json:"platformNetAmount"`
	ProcessorPercentAmount  utils.Cents `json:"processorPercentAmount"`
	ProcessorFixedAmount    utils.Cents `json:"processorFixedAmount"`
	RoundingAdjustment      utils.Cents `json:"roundingAdjustment"`
	FeeVersion              int         `json:"feeVersion"`
	Currency                string      `json:"currency"`
}

func (s *BreakdownSnapshot) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	}
	return fmt.Errorf("BreakdownSnapshot scan failed: %v", value)
}

func (s BreakdownSnapshot) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	return string(b), err
}

const (
	SaleStatusConfirmed int8 = 1
	SaleStatusReversed  int8 = 2
)

// Sale 已确认支付的销售
type Sale struct {
	ID             uint64            `gorm:"column:id;primaryKey" json:"id"` // snowflake
	SaleNo         string            `gorm:"column:sale_no;size:64;not null;uniqueIndex" json:"saleNo"`
	SellerID       uint64            `gorm:"column:seller_id;not null;index" json:"sellerId"`
	AffiliateID    *uint64           `gorm:"column:affiliate_id" json:"affiliateId"`
	RecruiterID    *uint64           `gorm:"column:recruiter_id" json:"recruiterId"`
	AskPrice       int64             `gorm:"column:ask_price;not null" json:"askPrice"`
	CommissionType string            `gorm:"column:commission_type;size:16;not null" json:"commissionType"`
	CommissionRate decimal.Decimal   `gorm:"column:commission_rate;type:decimal(7,4);not null" json:"commissionRate"`
	FlatCommission int64             `gorm:"column:flat_commission;not null" json:"flatCommission"`
	FinalPrice     int64             `gorm:"column:final_price;not null" json:"finalPrice"`
	Currency       string            `gorm:"column:currency;size:10;not null" json:"currency"`
	FeeVersion     int               `gorm:"column:fee_version;not null" json:"feeVersion"`
	Breakdown      BreakdownSnapshot `gorm:"column:breakdown;type:text;not null" json:"breakdown"`
	Status         int8              `gorm:"column:status;not null" json:"status"`
	SettleAt       time.Time         `gorm:"column:settle_at;not null" json:"settleAt"` // 冻结期结束时间
	ReverseReason  string            `gorm:"column:reverse_reason;size:128" json:"reverseReason"`
	ReversedAt     *time.Time        `gorm:"column:reversed_at" json:"reversedAt"`
	CreateTime     time.Time         `gorm:"column:create_time;not null" json:"createTime"`
	UpdateTime     time.Time         `gorm:"column:update_time;not null" json:"updateTime"`
}

func (Sale) TableName() string {
	return "mk_sale"
}

// Distribution 每笔销售每个收款方一行，随销售整体创建
type Distribution struct {
	ID          uint64     `gorm:"column:id;primaryKey" json:"id"`
	SaleID      uint64     `gorm:"column:sale_id;not null;index" json:"saleId"`
	SaleNo      string     `gorm:"column:sale_no;size:64;not null" json:"saleNo"`
	RecipientID uint64     `gorm:"column:recipient_id;not null" json:"recipientId"`
	Role        string     `gorm:"column:role;size:16;not null" json:"role"`
	Amount      int64      `gorm:"column:amount;not null" json:"amount"`
	Status      string     `gorm:"column:status;size:16;not null;index:idx_dist_status" json:"status"`
	SettleAt    time.Time  `gorm:"column:settle_at;not null;index:idx_dist_status" json:"settleAt"`
	SettledAt   *time.Time `gorm:"column:settled_at" json:"settledAt"`
	ReversedAt  *time.Time `gorm:"column:reversed_at" json:"reversedAt"`
	CreateTime  time.Time  `gorm:"column:create_time;not null" json:"createTime"`
	UpdateTime  time.Time  `gorm:"column:update_time;not null" json:"updateTime"`
}

func (Distribution) TableName() string {
	return "mk_distribution"
}
