package mq

import (
	"context"
	"errors"
	"time"

	"github.com/streadway/amqp"

	"mkt-settle-api/internal/constant"
	"mkt-settle-api/internal/dal"
	"mkt-settle-api/internal/logger"
)

const (
	maxRetry      = 3
	retryHeader   = "x-retry-count"
	resubscribeIn = 5 * time.Second
)

// errPoison 消息本身有问题，重投也不会成功
var errPoison = errors.New("poison message")

// Handler 返回 nil 则 ack；errPoison 或业务校验错误直接丢弃；其它错误重投，超过 maxRetry 后丢弃
type Handler func(ctx context.Context, body []byte) error

// retryable 只有基础设施类错误值得重投
func retryable(err error) bool {
	if err == nil || errors.Is(err, errPoison) {
		return false
	}
	switch constant.CodeOf(err) {
	case constant.CodeDatabaseError, constant.CodeRedisError, constant.CodeSystemError,
		constant.CodeInternalError, constant.CodeServiceUnavailable, constant.CodeTimeout:
		return true
	}
	return false
}

func retryCount(d amqp.Delivery) int {
	switch v := d.Headers[retryHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// StartConsumer 阻塞消费 queue，通道断开后自动重新订阅，ctx 结束时退出
func StartConsumer(ctx context.Context, queue string, handle Handler) {
	if !dal.Enabled() {
		logger.Biz().WithField("queue", queue).Info("rabbitmq disabled, consumer not started")
		return
	}
	for {
		ch := dal.GetChannel()
		if ch == nil {
			logger.Biz().WithField("queue", queue).Warn("rabbitmq channel not ready")
			select {
			case <-ctx.Done():
				return
			case <-time.After(resubscribeIn):
			}
			continue
		}
		msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
		if err != nil {
			logger.Biz().WithError(err).WithField("queue", queue).Error("consume failed")
		} else {
			logger.Biz().WithField("queue", queue).Info("consumer started")
			consume(ctx, ch, queue, msgs, handle)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(resubscribeIn):
		}
	}
}

func consume(ctx context.Context, ch *amqp.Channel, queue string, msgs <-chan amqp.Delivery, handle Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-msgs:
			if !ok {
				logger.Biz().WithField("queue", queue).Warn("delivery channel closed, resubscribing")
				return
			}
			dispatch(ctx, ch, queue, d, handle)
		}
	}
}

func dispatch(ctx context.Context, ch *amqp.Channel, queue string, d amqp.Delivery, handle Handler) {
	err := handle(ctx, d.Body)
	if err == nil {
		_ = d.Ack(false)
		return
	}
	log := logger.Biz().WithError(err).WithField("queue", queue)
	if !retryable(err) {
		log.Warn("message dropped")
		_ = d.Nack(false, false)
		return
	}
	n := retryCount(d)
	if n >= maxRetry {
		log.WithField("retry", n).Error("max retry reached, message dropped")
		_ = d.Nack(false, false)
		return
	}
	// 重新投递到队列尾部并带上重试次数，原消息 ack
	perr := ch.Publish("", queue, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Headers:      amqp.Table{retryHeader: int32(n + 1)},
		Body:         d.Body,
	})
	if perr != nil {
		log.WithField("publish_error", perr.Error()).Error("requeue failed")
		_ = d.Nack(false, true)
		return
	}
	log.WithField("retry", n+1).Warn("message requeued")
	_ = d.Ack(false)
}
