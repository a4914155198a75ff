package scheduler

import (
	"context"
	"time"

	"mkt-settle-api/internal/dto"
	"mkt-settle-api/internal/logger"
)

type Settler interface {
	SettleDue(ctx context.Context) (int, error)
}

type Payouts interface {
	DueForWindow(ctx context.Context) (bool, error)
	OpenBatch(ctx context.Context, forced bool) (*dto.BatchVo, error)
	SubmitBatch(ctx context.Context, batchID uint64) (*dto.BatchResult, error)
	ListBatches(ctx context.Context, status string, page, size int) ([]dto.BatchVo, int64, error)
}

// Scheduler 定时任务：冻结期到期入账、打款日开批次并提交、未结清批次重新驱动
type Scheduler struct {
	settle   Settler
	payouts  Payouts
	interval time.Duration
}

func New(settle Settler, payouts Payouts, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{settle: settle, payouts: payouts, interval: interval}
}

// Run 阻塞直到 ctx 结束
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	logger.Biz().WithField("interval", s.interval.String()).Info("scheduler started")
	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Biz().Info("scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick 单次执行，各步骤互不影响
func (s *Scheduler) Tick(ctx context.Context) {
	if n, err := s.settle.SettleDue(ctx); err != nil {
		logger.Biz().WithError(err).Error("settle due failed")
	} else if n > 0 {
		logger.Biz().WithField("sales", n).Info("held distributions settled")
	}

	s.redrivePartial(ctx)

	due, err := s.payouts.DueForWindow(ctx)
	if err != nil {
		logger.Biz().WithError(err).Error("check payout window failed")
		return
	}
	if !due {
		return
	}
	batch, err := s.payouts.OpenBatch(ctx, false)
	if err != nil {
		logger.Biz().WithError(err).Error("open scheduled batch failed")
		return
	}
	if batch == nil {
		return
	}
	if _, err := s.payouts.SubmitBatch(ctx, batch.ID); err != nil {
		logger.Biz().WithError(err).WithField("batch", batch.BatchNo).Error("submit scheduled batch failed")
	}
}

// redrivePartial 部分结清的批次里卡住的 processing 申请由 SubmitBatch 判断是否重发
func (s *Scheduler) redrivePartial(ctx context.Context) {
	batches, _, err := s.payouts.ListBatches(ctx, dto.BatchPartiallySettled, 1, 50)
	if err != nil {
		logger.Biz().WithError(err).Error("list partially settled batches failed")
		return
	}
	for _, b := range batches {
		if _, err := s.payouts.SubmitBatch(ctx, b.ID); err != nil {
			logger.Biz().WithError(err).WithField("batch", b.BatchNo).Warn("redrive batch failed")
		}
	}
}
