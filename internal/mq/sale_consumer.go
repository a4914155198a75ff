package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"mkt-settle-api/internal/dal"
	"mkt-settle-api/internal/dto"
	"mkt-settle-api/internal/logger"
)

// SaleConfirmer 由 service.SettlementService 实现
type SaleConfirmer interface {
	ConfirmSale(ctx context.Context, evt dto.SaleConfirmedEvent) (*dto.SaleResult, error)
}

// StartSaleConsumer 订单支付成功 → 分账
func StartSaleConsumer(ctx context.Context, svc SaleConfirmer) {
	StartConsumer(ctx, dal.QueueSaleConfirmed, SaleConfirmedHandler(svc))
}

func SaleConfirmedHandler(svc SaleConfirmer) Handler {
	return func(ctx context.Context, body []byte) error {
		var evt dto.SaleConfirmedEvent
		if err := json.Unmarshal(body, &evt); err != nil {
			return fmt.Errorf("%w: %v", errPoison, err)
		}
		res, err := svc.ConfirmSale(ctx, evt)
		if err != nil {
			return err
		}
		logger.Biz().WithFields(map[string]interface{}{
			"sale": res.SaleID, "duplicate": res.Duplicate, "final": res.Breakdown.FinalPrice,
		}).Info("sale confirmed via mq")
		return nil
	}
}
