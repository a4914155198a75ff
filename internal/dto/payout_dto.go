package dto

import "time"

// PayoutCreateReq 用户发起提现，Amount 为空时提取全部可用余额
type PayoutCreateReq struct {
	UserID      uint64 `json:"userId" binding:"required"`
	Role        string `json:"role" binding:"required"`
	Amount      *int64 `json:"amount,omitempty"`
	Destination string `json:"destination"`
}

type PayoutVo struct {
	ID            uint64     `json:"id"`
	UserID        uint64     `json:"userId"`
	Role          string     `json:"role"`
	Amount        int64      `json:"amount"`
	Currency      string     `json:"currency"`
	Status        string     `json:"status"`
	BatchID       *uint64    `json:"batchId,omitempty"`
	Attempt       int        `json:"attempt"`
	TransferID    string     `json:"transferId,omitempty"`
	FailureReason string     `json:"failureReason,omitempty"`
	RequestedAt   time.Time  `json:"requestedAt"`
	ProcessedAt   *time.Time `json:"processedAt,omitempty"`
}

type BatchVo struct {
	ID          uint64     `json:"id"`
	BatchNo     string     `json:"batchNo"`
	WindowDate  string     `json:"windowDate"`
	Forced      bool       `json:"forced"`
	TotalAmount int64      `json:"totalAmount"`
	MemberCount int        `json:"memberCount"`
	Status      string     `json:"status"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	SettledAt   *time.Time `json:"settledAt,omitempty"`
}

// BatchResult 一次提交的结果统计
type BatchResult struct {
	Batch     BatchVo `json:"batch"`
	Submitted int     `json:"submitted"`
	Completed int     `json:"completed"`
	Failed    int     `json:"failed"`
	InFlight  int     `json:"inFlight"`
	Skipped   int     `json:"skipped"`
}

// TransferCallback 转账异步结果（MQ transfer_callback / 内部 HTTP / 渠道 webhook）
type TransferCallback struct {
	IdempotencyKey string `json:"idempotencyKey"`
	TransferID     string `json:"transferId"`
	Status         string `json:"status" binding:"required"` // succeeded | failed
	Reason         string `json:"reason"`
}

type PayoutStatusStat struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
	Amount int64  `json:"amount"`
}

// PayoutSummary 后台汇总
type PayoutSummary struct {
	TotalPendingPayout int64              `json:"totalPendingPayout"`
	TotalAvailable     int64              `json:"totalAvailable"`
	ByStatus           []PayoutStatusStat `json:"byStatus"`
	OpenBatches        int64              `json:"openBatches"`
}

// PayoutEvent payout_events 交换机消息
type PayoutEvent struct {
	RequestID     uint64 `json:"requestId"`
	UserID        uint64 `json:"userId"`
	Role          string `json:"role"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
	TransferID    string `json:"transferId,omitempty"`
	FailureReason string `json:"failureReason,omitempty"`
	At            int64  `json:"at"`
}
