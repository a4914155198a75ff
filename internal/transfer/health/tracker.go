package health

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"mkt-settle-api/internal/logger"
	rediskey "mkt-settle-api/internal/types/redis-key"
)

// Tracker 转账渠道成功率。配置了 redis 时多实例共享，否则进程内统计
type Tracker struct {
	Strategy  Strategy
	Threshold float64 // 低于该值视为渠道异常，例如 60
	TTL       time.Duration

	rdb *redis.Client
	mu  sync.Mutex
	mem map[string]float64
}

func NewTracker(rdb *redis.Client, s Strategy, threshold float64, ttl time.Duration) *Tracker {
	if s == nil {
		s = EWMAStrategy{Alpha: 0.1}
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Tracker{Strategy: s, Threshold: threshold, TTL: ttl, rdb: rdb, mem: make(map[string]float64)}
}

// Observe 记录一次转账结果，返回最新成功率；degraded 仅在本次从阈值以上跌破时为 true，避免重复告警
func (t *Tracker) Observe(ctx context.Context, provider string, success bool) (rate float64, degraded bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	current := t.load(ctx, provider)
	rate = t.Strategy.Update(current, success)
	t.store(ctx, provider, rate)
	return rate, current >= t.Threshold && rate < t.Threshold
}

// Rate 当前成功率，无记录时为 100
func (t *Tracker) Rate(ctx context.Context, provider string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load(ctx, provider)
}

func (t *Tracker) Degraded(ctx context.Context, provider string) bool {
	return t.Rate(ctx, provider) < t.Threshold
}

func (t *Tracker) load(ctx context.Context, provider string) float64 {
	if t.rdb != nil {
		v, err := t.rdb.Get(ctx, rediskey.TransferHealthKey(provider)).Float64()
		if err == nil {
			return v
		}
		if err != redis.Nil {
			logger.Biz().WithError(err).WithField("provider", provider).Warn("load transfer health failed")
		}
	}
	if v, ok := t.mem[provider]; ok {
		return v
	}
	return 100
}

func (t *Tracker) store(ctx context.Context, provider string, rate float64) {
	t.mem[provider] = rate
	if t.rdb == nil {
		return
	}
	if err := t.rdb.Set(ctx, rediskey.TransferHealthKey(provider), rate, t.TTL).Err(); err != nil {
		logger.Biz().WithError(err).WithField("provider", provider).Warn("store transfer health failed")
	}
}
