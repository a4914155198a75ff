package dto

import "time"

// LedgerSnapshot 收益面板展示
type LedgerSnapshot struct {
	UserID           uint64     `json:"userId"`
	Role             string     `json:"role"`
	Currency         string     `json:"currency"`
	AvailableBalance int64      `json:"availableBalance"`
	PendingPayout    int64      `json:"pendingPayout"`
	LifetimePaidOut  int64      `json:"lifetimePaidOut"`
	LastPayoutAt     *time.Time `json:"lastPayoutAt"`
}

// LedgerMutation 一次账户变动
type LedgerMutation struct {
	UserID      uint64
	Role        string
	Currency    string
	Type        int8
	Amount      int64
	RefNo       string
	Description string
}

type LedgerEntryVo struct {
	ID           uint64    `json:"id"`
	Type         int8      `json:"type"`
	Amount       int64     `json:"amount"`
	RefNo        string    `json:"refNo"`
	Description  string    `json:"description"`
	Available    int64     `json:"available"`
	Pending      int64     `json:"pending"`
	LifetimePaid int64     `json:"lifetimePaid"`
	CreateTime   time.Time `json:"createTime"`
}

// ReconcileMismatch 回放结果与物化余额不一致的账户
type ReconcileMismatch struct {
	LedgerID uint64         `json:"ledgerId"`
	UserID   uint64         `json:"userId"`
	Role     string         `json:"role"`
	Stored   LedgerSnapshot `json:"stored"`
	Replayed LedgerSnapshot `json:"replayed"`
	Reason   string         `json:"reason"`
}

type ReconcileReport struct {
	Checked    int                 `json:"checked"`
	Mismatches []ReconcileMismatch `json:"mismatches"`
}
