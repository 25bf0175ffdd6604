package worker

import (
	"context"
	"math"

	"AgentTON-Chain/internal/bus"
	"AgentTON-Chain/internal/dex"
	"AgentTON-Chain/internal/ton"
	"AgentTON-Chain/pkg/logger"
)

// executeSwap 执行一笔 TON 换 Jetton 的兑换。
// 参数校验先于快照读取，非法命令不应触发任何池子查询。
func (w *Worker) executeSwap(ctx context.Context, cmd bus.SwapTonCommand) bus.SwapTonResult {
	result := bus.SwapTonResult{
		MessageID:    cmd.MessageID,
		UserID:       cmd.UserID,
		JettonMinter: cmd.JettonMaster,
	}

	if cmd.JettonMaster == "" {
		result.Error = "jetton master address is empty"
		return result
	}
	if cmd.SwapTonAmount == nil {
		result.Error = "swap amount is missing"
		return result
	}
	offer := *cmd.SwapTonAmount
	if offer <= 0 || math.IsNaN(offer) || math.IsInf(offer, 0) {
		result.Error = "swap amount must be a positive finite number"
		return result
	}
	if cmd.MinimalTokenAmount <= 0 || math.IsNaN(cmd.MinimalTokenAmount) || math.IsInf(cmd.MinimalTokenAmount, 0) {
		result.Error = "minimal token amount must be a positive finite number"
		return result
	}

	snap, err := w.pools.Current()
	if err != nil {
		result.Error = "pool snapshot unavailable: " + err.Error()
		return result
	}

	offerNano := ton.ToNano(offer)
	selection, err := dex.ChoosePool(snap, ton.DefaultTonMinter, cmd.JettonMaster, offerNano)
	if err != nil {
		result.Error = "no swap route available: " + err.Error()
		result.Details = "from TON to " + cmd.JettonMaster
		return result
	}

	// 目标代币按 9 位小数折算最小到账数量。
	minAskNano := ton.ToNano(cmd.MinimalTokenAmount)

	seqno, err := w.wallet.Seqno(ctx)
	if err != nil {
		result.Error = "failed to read wallet seqno: " + err.Error()
		return result
	}

	if err := w.wallet.SendTransfer(ctx, ton.Message{
		To:      selection.Router.Address,
		Amount:  offerNano,
		Comment: "swap TON to " + cmd.JettonMaster,
	}); err != nil {
		result.Error = "failed to send swap message: " + err.Error()
		return result
	}

	if err := ton.WaitSeqno(ctx, w.wallet, seqno, w.inclusionTimeout, w.inclusionPoll); err != nil {
		result.Error = "swap not confirmed on-chain: " + err.Error()
		return result
	}

	result.Success = true
	result.TxID = w.findTransferTx(ctx, selection.Router.Address, offerNano)
	result.Router = selection.Router.Address
	result.Pool = selection.Pool.Address
	result.PTon = selection.Router.PTonMaster
	result.OfferNanotons = offerNano.String()
	result.MinAskNano = minAskNano.String()

	logger.Audit().Info("兑换已上链",
		"message_id", cmd.MessageID,
		"user_id", cmd.UserID,
		"jetton", cmd.JettonMaster,
		"router", result.Router,
		"pool", result.Pool,
		"offer_nanotons", result.OfferNanotons,
		"min_ask_nano", result.MinAskNano,
		"tx_id", result.TxID,
	)
	return result
}
