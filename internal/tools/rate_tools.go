package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "AgentTON-Chain/internal/errors"
	"AgentTON-Chain/internal/llm"
	"AgentTON-Chain/internal/rates"
)

// TonRateTool 查询 1 TON 兑换多少 USDT。只读查询，无需确认。
type TonRateTool struct {
	rates *rates.Service
}

// NewTonRateTool 创建 TON 行情查询工具。
func NewTonRateTool(service *rates.Service) *TonRateTool {
	return &TonRateTool{rates: service}
}

var _ Tool = (*TonRateTool)(nil)

func (t *TonRateTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "get_ton_to_usdt_exchange_rate",
		Description: "Get the current exchange rate of 1 TON in USDT.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	}
}

func (t *TonRateTool) Kind() Kind                 { return KindSync }
func (t *TonRateTool) RequiresConfirmation() bool { return false }

func (t *TonRateTool) ConfirmationText(ctx context.Context, argsJSON string) (string, error) {
	return "", apperrors.New(apperrors.CodeInvalidArgument, "该工具无需确认")
}

func (t *TonRateTool) Invoke(ctx context.Context, argsJSON string) (Result, error) {
	value, err := t.rates.TonToUSDT(ctx)
	if err != nil {
		return Result{}, err
	}
	return Result{Content: fmt.Sprintf("1 TON = %s USDT", rates.FormatRate(value))}, nil
}

// TokenRateTool 查询 1 个 Jetton 兑换多少 TON。只读查询，无需确认。
type TokenRateTool struct {
	rates *rates.Service
}

// NewTokenRateTool 创建 Jetton 行情查询工具。
func NewTokenRateTool(service *rates.Service) *TokenRateTool {
	return &TokenRateTool{rates: service}
}

var _ Tool = (*TokenRateTool)(nil)

type tokenRateArgs struct {
	JettonMaster string `json:"jettonMaster"`
}

func (t *TokenRateTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "get_token_to_ton_exchange_rate",
		Description: "Get the current exchange rate of 1 token (jetton) in TON, identified by its jetton master contract address.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"jettonMaster": map[string]any{
					"type":        "string",
					"description": "Jetton master contract address of the token.",
				},
			},
			"required": []string{"jettonMaster"},
		},
	}
}

func (t *TokenRateTool) Kind() Kind                 { return KindSync }
func (t *TokenRateTool) RequiresConfirmation() bool { return false }

func (t *TokenRateTool) ConfirmationText(ctx context.Context, argsJSON string) (string, error) {
	return "", apperrors.New(apperrors.CodeInvalidArgument, "该工具无需确认")
}

func (t *TokenRateTool) Invoke(ctx context.Context, argsJSON string) (Result, error) {
	var args tokenRateArgs
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return Result{}, apperrors.Wrap(apperrors.CodeInvalidArgument, err, "解析工具参数失败")
	}
	args.JettonMaster = strings.TrimSpace(args.JettonMaster)
	if args.JettonMaster == "" {
		return Result{}, apperrors.New(apperrors.CodeInvalidArgument, "jettonMaster 参数为空")
	}

	value, err := t.rates.TokenToTon(ctx, args.JettonMaster)
	if err != nil {
		return Result{}, err
	}
	return Result{Content: fmt.Sprintf("1 token (%s) = %s TON", args.JettonMaster, rates.FormatRate(value))}, nil
}
