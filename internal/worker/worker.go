package worker

import (
	"context"
	"log/slog"
	"time"

	"AgentTON-Chain/internal/bus"
	"AgentTON-Chain/internal/dex"
	"AgentTON-Chain/internal/observability/metrics"
	"AgentTON-Chain/internal/ton"
	"AgentTON-Chain/pkg/logger"
)

// SnapshotSource 提供最新的池子快照。
type SnapshotSource interface {
	Current() (*dex.Snapshot, error)
}

// Worker 消费链上操作命令，执行后把结果事件发回总线。
// 执行失败不会重新入队，失败信息随结果事件回到发起方。
type Worker struct {
	bus              bus.Bus
	wallet           ton.Wallet
	pools            SnapshotSource
	inclusionTimeout time.Duration
	inclusionPoll    time.Duration
	log              *slog.Logger
}

// Config 描述执行器的依赖与参数。
type Config struct {
	Bus              bus.Bus
	Wallet           ton.Wallet
	Pools            SnapshotSource
	InclusionTimeout time.Duration
	InclusionPoll    time.Duration
}

// New 创建执行器。
func New(cfg Config) *Worker {
	return &Worker{
		bus:              cfg.Bus,
		wallet:           cfg.Wallet,
		pools:            cfg.Pools,
		inclusionTimeout: cfg.InclusionTimeout,
		inclusionPoll:    cfg.InclusionPoll,
		log:              logger.Named("worker"),
	}
}

// Run 持续消费命令直到上下文取消。
func (w *Worker) Run(ctx context.Context) error {
	return w.bus.Consume(ctx, w.Handle)
}

// Handle 处理一条命令事件。结果事件发布失败时向上返回错误，
// 让总线实现决定如何处置这条消息。
func (w *Worker) Handle(ctx context.Context, env bus.Envelope) error {
	switch env.Type {
	case bus.TypeSendTon:
		var cmd bus.SendTonCommand
		if err := env.DecodeData(&cmd); err != nil {
			w.log.Warn("转账命令载荷非法", "error", err)
			return nil
		}
		result := w.executeTransfer(ctx, cmd)
		metrics.ObserveCommand(env.Type, result.Success)
		return w.publishResult(ctx, bus.TypeSendTonResult, result)

	case bus.TypeSwapTon:
		var cmd bus.SwapTonCommand
		if err := env.DecodeData(&cmd); err != nil {
			w.log.Warn("兑换命令载荷非法", "error", err)
			return nil
		}
		result := w.executeSwap(ctx, cmd)
		metrics.ObserveCommand(env.Type, result.Success)
		return w.publishResult(ctx, bus.TypeSwapTonResult, result)
	}

	// 其他事件类型不属于执行器，直接确认。
	return nil
}

func (w *Worker) publishResult(ctx context.Context, eventType string, payload any) error {
	env, err := bus.NewEnvelope(eventType, payload)
	if err != nil {
		w.log.Error("构造结果事件失败", "type", eventType, "error", err)
		return nil
	}
	if err := w.bus.Publish(ctx, env); err != nil {
		w.log.Error("发布结果事件失败", "type", eventType, "error", err)
		return err
	}
	return nil
}
