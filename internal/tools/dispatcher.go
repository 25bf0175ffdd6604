package tools

import (
	"context"
	"log/slog"

	"AgentTON-Chain/internal/bus"
	apperrors "AgentTON-Chain/internal/errors"
	"AgentTON-Chain/pkg/logger"
)

// Dispatcher 把链上操作命令投递到消息总线。每个任务在启动时
// 绑定一个 Dispatcher，命令载荷里固定携带消息编号与用户编号，
// 结果事件依靠这对字段找回原任务。
type Dispatcher struct {
	publisher bus.Publisher
	messageID string
	userID    int64
	log       *slog.Logger
}

// NewDispatcher 创建绑定到某一任务的命令投递器。
func NewDispatcher(publisher bus.Publisher, messageID string, userID int64) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		messageID: messageID,
		userID:    userID,
		log:       logger.Named("dispatcher"),
	}
}

// SendTon 投递一条转账命令。
func (d *Dispatcher) SendTon(ctx context.Context, tonAmount float64, receiver string) error {
	payload := bus.SendTonCommand{
		MessageID:       d.messageID,
		UserID:          d.userID,
		TonAmount:       tonAmount,
		ReceiverAddress: receiver,
	}
	return d.publish(ctx, bus.TypeSendTon, payload)
}

// SwapTon 投递一条 TON 换 Jetton 的命令。
func (d *Dispatcher) SwapTon(ctx context.Context, jettonMaster string, minTokens float64, swapTonAmount *float64) error {
	payload := bus.SwapTonCommand{
		MessageID:          d.messageID,
		UserID:             d.userID,
		JettonMaster:       jettonMaster,
		MinimalTokenAmount: minTokens,
		SwapTonAmount:      swapTonAmount,
	}
	return d.publish(ctx, bus.TypeSwapTon, payload)
}

func (d *Dispatcher) publish(ctx context.Context, eventType string, payload any) error {
	env, err := bus.NewEnvelope(eventType, payload)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeQueueFailure, err, "序列化命令载荷失败")
	}

	if err := d.publisher.Publish(ctx, env); err != nil {
		return apperrors.Wrap(apperrors.CodeQueueFailure, err, "投递命令失败")
	}

	logger.Audit().Info("命令已投递",
		"type", eventType,
		"message_id", d.messageID,
		"user_id", d.userID,
	)
	return nil
}
