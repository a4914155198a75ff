package transfer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mkt-settle-api/internal/config"
	"mkt-settle-api/internal/constant"
	"mkt-settle-api/internal/utils"
)

type Status string

const (
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusProcessing Status = "processing" // 渠道已受理，结果走回调
)

// ErrTimeout 调用超时，结果未知；同一幂等键重试不会重复打款
var ErrTimeout = constant.ErrTransferTimeout

// Request 同一个 IdempotencyKey 渠道只会执行一次
type Request struct {
	IdempotencyKey string
	Destination    string
	Amount         utils.Cents
	Currency       string
	Notes          map[string]string
}

type Result struct {
	Status     Status `json:"status"`
	TransferID string `json:"transferId"`
	Reason     string `json:"reason"`
}

// Err 渠道拒绝时返回 TransferFailed，其它状态为 nil
func (r *Result) Err() error {
	if r == nil || r.Status != StatusFailed {
		return nil
	}
	return constant.Errorf(constant.CodeTransferFailed, "%s", r.Reason)
}

// Transferer 外部转账接口
type Transferer interface {
	Transfer(ctx context.Context, req Request) (*Result, error)
}

// New 按配置选择渠道
func New(c config.TransferCfg) (Transferer, error) {
	switch strings.ToLower(c.Provider) {
	case "razorpay":
		if c.KeyID == "" || c.KeySecret == "" {
			return nil, fmt.Errorf("razorpay keyId/keySecret required")
		}
		return NewRazorpay(c.KeyID, c.KeySecret), nil
	case "sandbox":
		return NewSandbox(), nil
	}
	return nil, fmt.Errorf("transfer provider %q unsupported", c.Provider)
}

// IsTimeout 包括调用方 ctx 超时
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
