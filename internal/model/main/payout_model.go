package mainmodel

import (
	"time"
)

// PayoutRequest 提现申请，状态 requested → batched → processing → completed|failed
type PayoutRequest struct {
	ID             uint64     `gorm:"column:id;primaryKey" json:"id"`
	UserID         uint64     `gorm:"column:user_id;not null;index:idx_payout_user" json:"userId"`
	Role           string     `gorm:"column:role;size:16;not null;index:idx_payout_user" json:"role"`
	Amount         int64      `gorm:"column:amount;not null" json:"amount"`
	Currency       string     `gorm:"column:currency;size:10;not null" json:"currency"`
	Destination    string     `gorm:"column:destination;size:64;not null" json:"destination"`
	Status         string     `gorm:"column:status;size:16;not null;index" json:"status"`
	BatchID        *uint64    `gorm:"column:batch_id;index" json:"batchId"`
	Attempt        int        `gorm:"column:attempt;not null" json:"attempt"`
	IdempotencyKey string     `gorm:"column:idempotency_key;size:64;not null;uniqueIndex" json:"idempotencyKey"`
	TransferID     string     `gorm:"column:transfer_id;size:64;index" json:"transferId"`
	FailureReason  string     `gorm:"column:failure_reason;size:255" json:"failureReason"`
	RequestedAt    time.Time  `gorm:"column:requested_at;not null" json:"requestedAt"`
	ProcessingAt   *time.Time `gorm:"column:processing_at" json:"processingAt"`
	ProcessedAt    *time.Time `gorm:"column:processed_at" json:"processedAt"`
	UpdateTime     time.Time  `gorm:"column:update_time;not null" json:"updateTime"`
}

func (PayoutRequest) TableName() string {
	return "mk_payout_request"
}

// PayoutBatch 打款批次，成员通过 mk_payout_request.batch_id 关联
type PayoutBatch struct {
	ID          uint64     `gorm:"column:id;primaryKey" json:"id"`
	BatchNo     string     `gorm:"column:batch_no;size:32;not null;uniqueIndex" json:"batchNo"`
	WindowDate  string     `gorm:"column:window_date;size:10;not null;index" json:"windowDate"` // YYYY-MM-DD UTC
	Forced      bool       `gorm:"column:forced;not null" json:"forced"`
	TotalAmount int64      `gorm:"column:total_amount;not null" json:"totalAmount"`
	MemberCount int        `gorm:"column:member_count;not null" json:"memberCount"`
	Status      string     `gorm:"column:status;size:20;not null;index" json:"status"`
	SubmittedAt *time.Time `gorm:"column:submitted_at" json:"submittedAt"`
	SettledAt   *time.Time `gorm:"column:settled_at" json:"settledAt"`
	CreateTime  time.Time  `gorm:"column:create_time;not null" json:"createTime"`
	UpdateTime  time.Time  `gorm:"column:update_time;not null" json:"updateTime"`
}

func (PayoutBatch) TableName() string {
	return "mk_payout_batch"
}

// PayoutAttempt 每次调用转账接口都记一行，失败原因不会被下一次重试覆盖
type PayoutAttempt struct {
	ID             uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	RequestID      uint64    `gorm:"column:request_id;not null;index" json:"requestId"`
	BatchID        uint64    `gorm:"column:batch_id;not null" json:"batchId"`
	Attempt        int       `gorm:"column:attempt;not null" json:"attempt"`
	IdempotencyKey string    `gorm:"column:idempotency_key;size:64;not null" json:"idempotencyKey"`
	Outcome        string    `gorm:"column:outcome;size:16;not null" json:"outcome"`
	TransferID     string    `gorm:"column:transfer_id;size:64" json:"transferId"`
	Reason         string    `gorm:"column:reason;size:255" json:"reason"`
	LatencyMs      int64     `gorm:"column:latency_ms;not null" json:"latencyMs"`
	CreateTime     time.Time `gorm:"column:create_time;not null" json:"createTime"`
}

func (PayoutAttempt) TableName() string {
	return "mk_payout_attempt"
}
