package bus

import (
	"context"
)

// Handler 处理一条已解码的总线消息。返回非 nil 错误时消息被拒收且不再重投。
type Handler func(ctx context.Context, env Envelope) error

// Publisher 负责向总线投递事件。
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
	Close() error
}

// Consumer 负责从总线消费事件。
type Consumer interface {
	Consume(ctx context.Context, handler Handler) error
	Close() error
}

// Bus 同时具备发布与消费能力。
type Bus interface {
	Publisher
	Consumer
}
