package worker

import (
	"context"
	"math"
	"math/big"

	"AgentTON-Chain/internal/bus"
	"AgentTON-Chain/internal/ton"
	"AgentTON-Chain/pkg/logger"
)

// executeTransfer 执行一笔 TON 转账并等待其上链。
// 任何失败都转化为失败结果事件，不向外抛出。
func (w *Worker) executeTransfer(ctx context.Context, cmd bus.SendTonCommand) bus.SendTonResult {
	result := bus.SendTonResult{
		MessageID:       cmd.MessageID,
		UserID:          cmd.UserID,
		TonAmount:       cmd.TonAmount,
		ReceiverAddress: cmd.ReceiverAddress,
	}

	if cmd.TonAmount <= 0 || math.IsNaN(cmd.TonAmount) || math.IsInf(cmd.TonAmount, 0) {
		result.Error = "transfer amount must be a positive finite number"
		return result
	}
	if cmd.ReceiverAddress == "" {
		result.Error = "receiver address is empty"
		return result
	}

	amountNano := ton.ToNano(cmd.TonAmount)

	seqno, err := w.wallet.Seqno(ctx)
	if err != nil {
		result.Error = "failed to read wallet seqno: " + err.Error()
		return result
	}

	if err := w.wallet.SendTransfer(ctx, ton.Message{
		To:      cmd.ReceiverAddress,
		Amount:  amountNano,
		Comment: "transfer requested via agent",
	}); err != nil {
		result.Error = "failed to send transfer: " + err.Error()
		return result
	}

	if err := ton.WaitSeqno(ctx, w.wallet, seqno, w.inclusionTimeout, w.inclusionPoll); err != nil {
		result.Error = "transfer not confirmed on-chain: " + err.Error()
		return result
	}

	result.Success = true
	result.TxID = w.findTransferTx(ctx, cmd.ReceiverAddress, amountNano)

	logger.Audit().Info("转账已上链",
		"message_id", cmd.MessageID,
		"user_id", cmd.UserID,
		"receiver", cmd.ReceiverAddress,
		"nanotons", amountNano.String(),
		"tx_id", result.TxID,
	)
	return result
}

// findTransferTx 在最近的账户历史里找回这笔转账的交易号。
// 找不到不算失败，交易已上链只是哈希暂不可见。
func (w *Worker) findTransferTx(ctx context.Context, receiver string, amountNano *big.Int) string {
	txs, err := w.wallet.RecentTransactions(ctx, 16)
	if err != nil {
		w.log.Warn("读取账户历史失败", "error", err)
		return ""
	}
	for _, tx := range txs {
		if !tx.Outgoing || tx.To != receiver || tx.Amount == nil {
			continue
		}
		if tx.Amount.Cmp(amountNano) >= 0 {
			return tx.Hash
		}
	}
	return ""
}
