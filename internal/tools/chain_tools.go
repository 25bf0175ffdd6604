package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	apperrors "AgentTON-Chain/internal/errors"
	"AgentTON-Chain/internal/llm"
	"AgentTON-Chain/internal/rates"
)

// SendTonTool 向指定地址转账 TON。改变链上状态，必须经过用户确认，
// 实际执行由执行进程异步完成。
type SendTonTool struct {
	dispatcher *Dispatcher
}

// NewSendTonTool 创建转账工具。
func NewSendTonTool(dispatcher *Dispatcher) *SendTonTool {
	return &SendTonTool{dispatcher: dispatcher}
}

var _ Tool = (*SendTonTool)(nil)

type sendTonArgs struct {
	TonAmount       float64 `json:"tonAmount"`
	ReceiverAddress string  `json:"receiverAddress"`
}

func (t *SendTonTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "send_ton_to_address",
		Description: "Send a given amount of TON from the user's wallet to a receiver address.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"tonAmount": map[string]any{
					"type":        "number",
					"description": "Amount of TON to send.",
				},
				"receiverAddress": map[string]any{
					"type":        "string",
					"description": "TON address of the receiver.",
				},
			},
			"required": []string{"tonAmount", "receiverAddress"},
		},
	}
}

func (t *SendTonTool) Kind() Kind                 { return KindAsync }
func (t *SendTonTool) RequiresConfirmation() bool { return true }

func (t *SendTonTool) parseArgs(argsJSON string) (sendTonArgs, error) {
	var args sendTonArgs
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return args, apperrors.Wrap(apperrors.CodeInvalidArgument, err, "解析工具参数失败")
	}
	args.ReceiverAddress = strings.TrimSpace(args.ReceiverAddress)
	if args.ReceiverAddress == "" {
		return args, apperrors.New(apperrors.CodeInvalidArgument, "receiverAddress 参数为空")
	}
	if args.TonAmount <= 0 || math.IsNaN(args.TonAmount) || math.IsInf(args.TonAmount, 0) {
		return args, apperrors.New(apperrors.CodeInvalidArgument, "tonAmount 必须为正数")
	}
	return args, nil
}

func (t *SendTonTool) ConfirmationText(ctx context.Context, argsJSON string) (string, error) {
	args, err := t.parseArgs(argsJSON)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Send %g TON to %s", args.TonAmount, args.ReceiverAddress), nil
}

func (t *SendTonTool) Invoke(ctx context.Context, argsJSON string) (Result, error) {
	args, err := t.parseArgs(argsJSON)
	if err != nil {
		return Result{}, err
	}
	if err := t.dispatcher.SendTon(ctx, args.TonAmount, args.ReceiverAddress); err != nil {
		return Result{}, err
	}
	return Result{Content: "Transfer dispatched, awaiting on-chain result.", Async: true}, nil
}

// SwapTonTool 用 TON 兑换指定 Jetton。改变链上状态，必须经过用户确认。
// 当调用方没有给出要投入的 TON 数量时，按当前行情估算一个并随命令下发。
type SwapTonTool struct {
	dispatcher *Dispatcher
	rates      *rates.Service
}

// NewSwapTonTool 创建兑换工具。
func NewSwapTonTool(dispatcher *Dispatcher, service *rates.Service) *SwapTonTool {
	return &SwapTonTool{dispatcher: dispatcher, rates: service}
}

var _ Tool = (*SwapTonTool)(nil)

type swapTonArgs struct {
	JettonMaster       string   `json:"jettonMaster"`
	MinimalTokenAmount float64  `json:"minimalTokenAmount"`
	SwapTonAmount      *float64 `json:"swapTonAmount,omitempty"`
}

func (t *SwapTonTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "swap_ton_to_token",
		Description: "Swap TON for a token (jetton) so that the user receives at least the given minimal token amount.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"jettonMaster": map[string]any{
					"type":        "string",
					"description": "Jetton master contract address of the token to buy.",
				},
				"minimalTokenAmount": map[string]any{
					"type":        "number",
					"description": "Minimal amount of tokens the user must receive.",
				},
				"swapTonAmount": map[string]any{
					"type":        "number",
					"description": "Optional amount of TON to spend. Estimated from the current rate when omitted.",
				},
			},
			"required": []string{"jettonMaster", "minimalTokenAmount"},
		},
	}
}

func (t *SwapTonTool) Kind() Kind                 { return KindAsync }
func (t *SwapTonTool) RequiresConfirmation() bool { return true }

func (t *SwapTonTool) parseArgs(argsJSON string) (swapTonArgs, error) {
	var args swapTonArgs
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return args, apperrors.Wrap(apperrors.CodeInvalidArgument, err, "解析工具参数失败")
	}
	args.JettonMaster = strings.TrimSpace(args.JettonMaster)
	if args.JettonMaster == "" {
		return args, apperrors.New(apperrors.CodeInvalidArgument, "jettonMaster 参数为空")
	}
	if args.MinimalTokenAmount <= 0 || math.IsNaN(args.MinimalTokenAmount) || math.IsInf(args.MinimalTokenAmount, 0) {
		return args, apperrors.New(apperrors.CodeInvalidArgument, "minimalTokenAmount 必须为正数")
	}
	if args.SwapTonAmount != nil {
		v := *args.SwapTonAmount
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return args, apperrors.New(apperrors.CodeInvalidArgument, "swapTonAmount 必须为正数")
		}
	}
	return args, nil
}

func (t *SwapTonTool) ConfirmationText(ctx context.Context, argsJSON string) (string, error) {
	args, err := t.parseArgs(argsJSON)
	if err != nil {
		return "", err
	}
	if args.SwapTonAmount != nil {
		return fmt.Sprintf("Swap %g TON to at least %g tokens (%s)",
			*args.SwapTonAmount, args.MinimalTokenAmount, args.JettonMaster), nil
	}
	return fmt.Sprintf("Swap TON to at least %g tokens (%s)",
		args.MinimalTokenAmount, args.JettonMaster), nil
}

func (t *SwapTonTool) Invoke(ctx context.Context, argsJSON string) (Result, error) {
	args, err := t.parseArgs(argsJSON)
	if err != nil {
		return Result{}, err
	}

	swapAmount := args.SwapTonAmount
	if swapAmount == nil {
		rate, err := t.rates.TokenToTon(ctx, args.JettonMaster)
		if err == nil && rate > 0 {
			estimated := args.MinimalTokenAmount * rate
			swapAmount = &estimated
		}
	}

	if err := t.dispatcher.SwapTon(ctx, args.JettonMaster, args.MinimalTokenAmount, swapAmount); err != nil {
		return Result{}, err
	}
	return Result{Content: "Swap dispatched, awaiting on-chain result.", Async: true}, nil
}
