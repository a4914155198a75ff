package mq

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/streadway/amqp"

	"mkt-settle-api/internal/dal"
	"mkt-settle-api/internal/dto"
	"mkt-settle-api/internal/utils"
)

// Publisher 打款结果广播到 payout_events，routing key payout.<status>
type Publisher struct {
	retries  int
	interval time.Duration
}

func NewPublisher() *Publisher {
	return &Publisher{retries: 3, interval: 200 * time.Millisecond}
}

func PayoutRoutingKey(status string) string {
	return "payout." + status
}

var errChannelNotReady = errors.New("rabbitmq channel not ready")

// PublishPayoutEvent MQ 未配置时直接忽略
func (p *Publisher) PublishPayoutEvent(ctx context.Context, evt dto.PayoutEvent) error {
	if !dal.Enabled() {
		return nil
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return utils.DoWithRetry(ctx, p.retries, p.interval, func() error {
		ch := dal.GetChannel()
		if ch == nil {
			return errChannelNotReady
		}
		return ch.Publish(dal.ExchangePayoutEvents, PayoutRoutingKey(evt.Status), false, false, amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Timestamp:    time.Unix(evt.At, 0).UTC(),
			Body:         body,
		})
	})
}
