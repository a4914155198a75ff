package dal

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"mkt-settle-api/internal/config"
)

// 交换机与队列
const (
	ExchangeSettle        = "settle_events"
	ExchangePayoutEvents  = "payout_events"
	QueueSaleConfirmed    = "sale_confirmed"
	QueueTransferCallback = "transfer_callback"
	RoutingSaleConfirmed  = "sale.confirmed"
	RoutingTransferResult = "transfer.result"
)

var (
	mqConn    *amqp.Connection
	mqChannel *amqp.Channel

	mu sync.Mutex

	// 用 NotifyClose 事件来判断是否已关闭（而不是 IsClosed）
	connClosedCh chan *amqp.Error
	chClosedCh   chan *amqp.Error

	reconnecting bool
)

// InitRabbitMQ 初始化（首次连接）
func InitRabbitMQ() error {
	if config.C.RabbitMQ.Host == "" {
		log.Printf("[RabbitMQ] host empty, messaging disabled")
		return nil
	}
	return connect()
}

// Enabled 是否配置了 RabbitMQ
func Enabled() bool {
	return config.C.RabbitMQ.Host != ""
}

// declareTopology 每次（重）连接后声明，幂等
func declareTopology(ch *amqp.Channel) error {
	for _, ex := range []string{ExchangeSettle, ExchangePayoutEvents} {
		if err := ch.ExchangeDeclare(ex, "topic", true, false, false, false, nil); err != nil {
			return fmt.Errorf("exchange declare %s: %w", ex, err)
		}
	}
	binds := []struct{ queue, key string }{
		{QueueSaleConfirmed, RoutingSaleConfirmed},
		{QueueTransferCallback, RoutingTransferResult},
	}
	for _, b := range binds {
		if _, err := ch.QueueDeclare(b.queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", b.queue, err)
		}
		if err := ch.QueueBind(b.queue, b.key, ExchangeSettle, false, nil); err != nil {
			return fmt.Errorf("queue bind %s: %w", b.queue, err)
		}
	}
	return nil
}

// -------- 内部：连接与自愈 --------

func connect() error {
	mu.Lock()
	defer mu.Unlock()

	// 若已连通则直接返回（用 isAlive 判断）
	if isConnAlive() && isChanAlive() {
		return nil
	}

	url := fmt.Sprintf("amqp://%s:%s@%s:%d/%s",
		config.C.RabbitMQ.Username,
		config.C.RabbitMQ.Password,
		config.C.RabbitMQ.Host,
		config.C.RabbitMQ.Port,
		config.C.RabbitMQ.VirtualHost,
	)
	log.Printf("[RabbitMQ] 连接中: %s:%d/%s", config.C.RabbitMQ.Host, config.C.RabbitMQ.Port, config.C.RabbitMQ.VirtualHost)

	conn, err := amqp.Dial(url)
	if err != nil {
		return fmt.Errorf("连接失败: %w", err)
	}
	mqConn = conn
	connClosedCh = conn.NotifyClose(make(chan *amqp.Error, 1))

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		mqConn = nil
		connClosedCh = nil
		return fmt.Errorf("创建通道失败: %w", err)
	}
	mqChannel = ch
	chClosedCh = ch.NotifyClose(make(chan *amqp.Error, 1))

	if err := declareTopology(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		mqConn, mqChannel = nil, nil
		connClosedCh, chClosedCh = nil, nil
		return err
	}

	// QoS（可选）
	if pc := config.C.RabbitMQ.PrefetchCount; pc > 0 {
		if err := ch.Qos(pc, 0, false); err != nil {
			log.Printf("[RabbitMQ] 设置 QoS 失败: %v", err)
		}
	}

	log.Printf("[RabbitMQ] 初始化成功 → Host=%s Port=%d VHost=%s",
		config.C.RabbitMQ.Host, config.C.RabbitMQ.Port, config.C.RabbitMQ.VirtualHost)

	// 后台监听关闭事件
	go watchClose(connClosedCh, chClosedCh)

	return nil
}

// watchClose 异常断开时重连；主动 Close 时通道被关闭且没有错误，直接退出
func watchClose(connCh, chCh chan *amqp.Error) {
	select {
	case err, ok := <-connCh:
		if !ok || err == nil {
			return
		}
		log.Printf("[RabbitMQ] 连接关闭: %v", err)
	case err, ok := <-chCh:
		if !ok || err == nil {
			return
		}
		log.Printf("[RabbitMQ] 通道关闭: %v", err)
	}
	reconnect()
}

// 自愈重连（阻塞重试直至成功）
func reconnect() {
	mu.Lock()
	if reconnecting {
		mu.Unlock()
		return
	}
	reconnecting = true
	mu.Unlock()

	defer func() {
		mu.Lock()
		reconnecting = false
		mu.Unlock()
	}()

	for {
		log.Println("[RabbitMQ] 正在重连...")
		if err := connect(); err == nil {
			log.Println("[RabbitMQ] 重连成功")
			return
		}
		time.Sleep(5 * time.Second)
	}
}

// -------- 状态判断（不用 IsClosed） --------

func isConnAlive() bool {
	if mqConn == nil || connClosedCh == nil {
		return false
	}
	select {
	case <-connClosedCh: // 一旦能读到，说明已关闭
		return false
	default:
		return true
	}
}

func isChanAlive() bool {
	if mqChannel == nil || chClosedCh == nil {
		return false
	}
	select {
	case <-chClosedCh:
		return false
	default:
		return true
	}
}

func closeRabbitMQ() {
	mu.Lock()
	defer mu.Unlock()
	if mqChannel != nil {
		_ = mqChannel.Close()
	}
	if mqConn != nil {
		_ = mqConn.Close()
	}
	mqConn, mqChannel = nil, nil
}

// -------- 对外获取 --------

func GetChannel() *amqp.Channel {
	if !isChanAlive() {
		reconnect()
	}
	return mqChannel
}
