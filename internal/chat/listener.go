package chat

import (
	"context"
	"fmt"

	"AgentTON-Chain/internal/bus"
)

// BusHandler 返回消费链上结果事件的处理函数。
// agentond 进程用它订阅 `agent-llm.*.result` 路由。
func (s *Service) BusHandler() bus.Handler {
	return func(ctx context.Context, env bus.Envelope) error {
		switch env.Type {
		case bus.ResultType(bus.TypeSendTon):
			var result bus.SendTonResult
			if err := env.DecodeData(&result); err != nil {
				s.log.Warn("解析转账结果失败", "error", err)
				return nil
			}
			return s.FinalizeWithResult(ctx, result.MessageID, result.UserID, env.Type, transferReport(result))

		case bus.ResultType(bus.TypeSwapTon):
			var result bus.SwapTonResult
			if err := env.DecodeData(&result); err != nil {
				s.log.Warn("解析兑换结果失败", "error", err)
				return nil
			}
			return s.FinalizeWithResult(ctx, result.MessageID, result.UserID, env.Type, swapReport(result))
		}

		// 其他事件类型不属于本进程关心的结果，直接确认。
		return nil
	}
}

// transferReport 把转账结果渲染成回填给模型的文本。
func transferReport(result bus.SendTonResult) string {
	if !result.Success {
		return fmt.Sprintf("TON transfer failed: %s", result.Error)
	}
	return fmt.Sprintf("TON transfer completed. Sent %g TON to %s. Transaction id: %s",
		result.TonAmount, result.ReceiverAddress, result.TxID)
}

// swapReport 把兑换结果渲染成回填给模型的文本。
func swapReport(result bus.SwapTonResult) string {
	if !result.Success {
		report := fmt.Sprintf("Swap failed: %s", result.Error)
		if result.Details != "" {
			report += " (" + result.Details + ")"
		}
		return report
	}
	return fmt.Sprintf("Swap completed. Offered %s nanotons via router %s (pool %s, pTon %s), minimal ask %s. Transaction id: %s",
		result.OfferNanotons, result.Router, result.Pool, result.PTon, result.MinAskNano, result.TxID)
}
