package mainmodel

import (
	"time"
)

// Ledger 每个 (user_id, role) 一行，余额是 mk_ledger_entry 的物化视图
type Ledger struct {
	ID           uint64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID       uint64     `gorm:"column:user_id;not null;uniqueIndex:uk_user_role" json:"userId"`
	Role         string     `gorm:"column:role;size:16;not null;uniqueIndex:uk_user_role" json:"role"`
	Currency     string     `gorm:"column:currency;size:10;not null" json:"currency"`
	Available    int64      `gorm:"column:available;not null;default:0" json:"available"`        // 可提现（分）
	Pending      int64      `gorm:"column:pending;not null;default:0" json:"pending"`            // 提现处理中（分）
	LifetimePaid int64      `gorm:"column:lifetime_paid;not null;default:0" json:"lifetimePaid"` // 累计已打款（分）
	LastPayoutAt *time.Time `gorm:"column:last_payout_at" json:"lastPayoutAt"`
	CreateTime   time.Time  `gorm:"column:create_time;not null" json:"createTime"`
	UpdateTime   time.Time  `gorm:"column:update_time;not null" json:"updateTime"`
}

func (Ledger) TableName() string {
	return "mk_ledger"
}

// LedgerEntry 资金流水，只追加不修改；带变动后的三项余额
type LedgerEntry struct {
	ID           uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	LedgerID     uint64    `gorm:"column:ledger_id;not null;index:idx_ledger_entry" json:"ledgerId"`
	UserID       uint64    `gorm:"column:user_id;not null" json:"userId"`
	Role         string    `gorm:"column:role;size:16;not null" json:"role"`
	Type         int8      `gorm:"column:type;not null" json:"type"`
	Amount       int64     `gorm:"column:amount;not null" json:"amount"`
	RefNo        string    `gorm:"column:ref_no;size:64;not null;index" json:"refNo"` // 销售号 / 提现单号
	Description  string    `gorm:"column:description;size:64" json:"description"`
	Available    int64     `gorm:"column:available;not null" json:"available"`
	Pending      int64     `gorm:"column:pending;not null" json:"pending"`
	LifetimePaid int64     `gorm:"column:lifetime_paid;not null" json:"lifetimePaid"`
	CreateTime   time.Time `gorm:"column:create_time;not null" json:"createTime"`
}

func (LedgerEntry) TableName() string {
	return "mk_ledger_entry"
}
