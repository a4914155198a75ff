package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"mkt-settle-api/internal/dal"
	"mkt-settle-api/internal/dto"
	"mkt-settle-api/internal/logger"
)

// TransferCompleter 由 service.PayoutService 实现
type TransferCompleter interface {
	CompleteTransfer(ctx context.Context, cb dto.TransferCallback) (*dto.PayoutVo, error)
}

// StartTransferCallbackConsumer 渠道异步转账结果
func StartTransferCallbackConsumer(ctx context.Context, svc TransferCompleter) {
	StartConsumer(ctx, dal.QueueTransferCallback, TransferCallbackHandler(svc))
}

func TransferCallbackHandler(svc TransferCompleter) Handler {
	return func(ctx context.Context, body []byte) error {
		var cb dto.TransferCallback
		if err := json.Unmarshal(body, &cb); err != nil {
			return fmt.Errorf("%w: %v", errPoison, err)
		}
		vo, err := svc.CompleteTransfer(ctx, cb)
		if err != nil {
			return err
		}
		logger.Biz().WithFields(map[string]interface{}{"payout": vo.ID, "status": vo.Status}).Info("transfer callback applied")
		return nil
	}
}
