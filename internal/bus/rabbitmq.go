package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"AgentTON-Chain/pkg/logger"
)

// RabbitMQConfig 描述 RabbitMQ 总线的连接参数。
type RabbitMQConfig struct {
	URL      string
	Exchange string
	// Queue 是本进程的持久化队列名，例如 agent-backend.in。
	Queue string
	// Bindings 是绑定到交换机的路由键模式，例如 agent-llm.*.result。
	Bindings []string
	Prefetch int
}

// RabbitMQBus 使用 RabbitMQ topic 交换机实现事件总线。
type RabbitMQBus struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	queue    string
}

// NewRabbitMQBus 建立连接、声明交换机与队列并完成绑定。
func NewRabbitMQBus(cfg RabbitMQConfig) (*RabbitMQBus, error) {
	if cfg.URL == "" {
		return nil, errors.New("RabbitMQ URL 不能为空")
	}
	exchange := cfg.Exchange
	if exchange == "" {
		exchange = "app.events"
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("连接 RabbitMQ 失败: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("创建 RabbitMQ channel 失败: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("声明交换机失败: %w", err)
	}
	if cfg.Prefetch > 0 {
		if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("设置 RabbitMQ QOS 失败: %w", err)
		}
	}

	bus := &RabbitMQBus{conn: conn, ch: ch, exchange: exchange, queue: cfg.Queue}
	if cfg.Queue != "" {
		if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
			bus.Close()
			return nil, fmt.Errorf("声明 RabbitMQ 队列失败: %w", err)
		}
		for _, pattern := range cfg.Bindings {
			if err := ch.QueueBind(cfg.Queue, pattern, exchange, false, nil); err != nil {
				bus.Close()
				return nil, fmt.Errorf("绑定路由键 %s 失败: %w", pattern, err)
			}
		}
	}
	return bus, nil
}

// Publish 以事件类型为路由键投递持久化消息。投递失败只记录日志，不重试。
func (b *RabbitMQBus) Publish(ctx context.Context, env Envelope) error {
	if b == nil || b.ch == nil {
		return errors.New("RabbitMQ 总线未初始化")
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("序列化事件信封失败: %w", err)
	}
	err = b.ch.PublishWithContext(ctx, b.exchange, env.Type, true, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         env.Type,
		Timestamp:    env.OccurredAt,
		Body:         body,
	})
	if err != nil {
		logger.L().Error("事件投递失败",
			slog.Any("error", err),
			slog.String("type", env.Type),
		)
		return fmt.Errorf("投递事件 %s 失败: %w", env.Type, err)
	}
	return nil
}

// Consume 使用手动确认模式消费本进程队列。处理成功后确认；处理失败时
// 拒收且不重投，消息只有一次处理机会。解码失败的消息记录后直接丢弃。
func (b *RabbitMQBus) Consume(ctx context.Context, handler Handler) error {
	if b == nil || b.ch == nil {
		return errors.New("RabbitMQ 总线未初始化")
	}
	if b.queue == "" {
		return errors.New("未配置消费队列")
	}
	msgs, err := b.ch.Consume(b.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("订阅 RabbitMQ 队列失败: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("RabbitMQ 消费通道已关闭")
			}
			var env Envelope
			if err := json.Unmarshal(msg.Body, &env); err != nil {
				logger.L().Error("事件信封解码失败，消息被丢弃",
					slog.Any("error", err),
					slog.String("routing_key", msg.RoutingKey),
				)
				_ = msg.Reject(false)
				continue
			}
			if err := handler(ctx, env); err != nil {
				logger.L().Error("事件处理失败，消息被拒收",
					slog.Any("error", err),
					slog.String("type", env.Type),
				)
				_ = msg.Nack(false, false)
				continue
			}
			_ = msg.Ack(false)
		}
	}
}

// Close 关闭 RabbitMQ 连接。
func (b *RabbitMQBus) Close() error {
	if b == nil {
		return nil
	}
	if b.ch != nil {
		_ = b.ch.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

var _ Bus = (*RabbitMQBus)(nil)
