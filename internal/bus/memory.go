package bus

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// MemoryBus 使用 channel 模拟 topic 交换机，主要用于测试。
// 路由键模式支持 AMQP 风格的 `*` 单段通配。
type MemoryBus struct {
	mu       sync.Mutex
	bindings []string
	ch       chan Envelope
	closed   bool
}

// NewMemoryBus 创建一个内存总线，bindings 为本消费者关注的路由键模式。
func NewMemoryBus(size int, bindings ...string) *MemoryBus {
	if size <= 0 {
		size = 64
	}
	return &MemoryBus{ch: make(chan Envelope, size), bindings: bindings}
}

// Publish 将匹配绑定模式的事件投入队列，不匹配的事件被忽略。
func (b *MemoryBus) Publish(_ context.Context, env Envelope) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return errors.New("总线已关闭")
	}
	if !b.matches(env.Type) {
		return nil
	}
	select {
	case b.ch <- env:
		return nil
	default:
		return errors.New("内存总线已满")
	}
}

// Consume 逐条处理队列中的事件，直到上下文取消。
func (b *MemoryBus) Consume(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-b.ch:
			if !ok {
				return nil
			}
			_ = handler(ctx, env)
		}
	}
}

// Drain 同步处理当前积压的所有事件，便于测试断言。
func (b *MemoryBus) Drain(ctx context.Context, handler Handler) error {
	for {
		select {
		case env := <-b.ch:
			if err := handler(ctx, env); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// Pending 返回尚未消费的事件数量。
func (b *MemoryBus) Pending() int {
	return len(b.ch)
}

// Close 关闭内存总线。
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if !b.closed {
		close(b.ch)
		b.closed = true
	}
	b.mu.Unlock()
	return nil
}

func (b *MemoryBus) matches(routingKey string) bool {
	if len(b.bindings) == 0 {
		return true
	}
	for _, pattern := range b.bindings {
		if matchTopic(pattern, routingKey) {
			return true
		}
	}
	return false
}

// matchTopic 按点分段匹配路由键，`*` 匹配恰好一个段。
func matchTopic(pattern, key string) bool {
	pp := strings.Split(pattern, ".")
	kp := strings.Split(key, ".")
	if len(pp) != len(kp) {
		return false
	}
	for i := range pp {
		if pp[i] == "*" {
			continue
		}
		if pp[i] != kp[i] {
			return false
		}
	}
	return true
}

var _ Bus = (*MemoryBus)(nil)
