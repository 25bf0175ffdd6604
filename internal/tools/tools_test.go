package tools

import (
	"context"
	"strings"
	"testing"

	"AgentTON-Chain/internal/bus"
	"AgentTON-Chain/internal/rates"
)

type fixedTonSource struct{ price float64 }

func (f fixedTonSource) TonToUSDT(ctx context.Context) (float64, error) {
	return f.price, nil
}

type fixedDexQuoter struct{ price float64 }

func (f fixedDexQuoter) TokenToUSDT(ctx context.Context, jettonMaster string) (float64, error) {
	return f.price, nil
}

func newTestRates() *rates.Service {
	return rates.NewService(fixedTonSource{price: 5.0}, fixedDexQuoter{price: 1.0}, nil, 0)
}

func TestRegistryKeepsOrder(t *testing.T) {
	service := newTestRates()
	registry := NewRegistry(NewTonRateTool(service), NewTokenRateTool(service))

	defs := registry.Definitions()
	if len(defs) != 2 {
		t.Fatalf("期望 2 个工具, 实际 %d", len(defs))
	}
	if defs[0].Name != "get_ton_to_usdt_exchange_rate" || defs[1].Name != "get_token_to_ton_exchange_rate" {
		t.Fatalf("注册顺序错误: %v, %v", defs[0].Name, defs[1].Name)
	}
	if _, ok := registry.Lookup("get_ton_to_usdt_exchange_rate"); !ok {
		t.Fatal("按名称查找工具失败")
	}
}

func TestTonRateToolInvoke(t *testing.T) {
	tool := NewTonRateTool(newTestRates())

	result, err := tool.Invoke(context.Background(), "{}")
	if err != nil {
		t.Fatalf("调用失败: %v", err)
	}
	if result.Async {
		t.Fatal("行情查询不应是异步工具")
	}
	if !strings.Contains(result.Content, "5.000000") {
		t.Fatalf("结果内容错误: %q", result.Content)
	}
}

func TestSendTonToolConfirmationText(t *testing.T) {
	tool := NewSendTonTool(nil)

	text, err := tool.ConfirmationText(context.Background(), `{"tonAmount":1.5,"receiverAddress":"EQRECEIVER"}`)
	if err != nil {
		t.Fatalf("生成确认文案失败: %v", err)
	}
	if text != "Send 1.5 TON to EQRECEIVER" {
		t.Fatalf("确认文案错误: %q", text)
	}
}

func TestSendTonToolRejectsBadArgs(t *testing.T) {
	tool := NewSendTonTool(nil)

	cases := []string{
		`{"tonAmount":0,"receiverAddress":"EQRECEIVER"}`,
		`{"tonAmount":-1,"receiverAddress":"EQRECEIVER"}`,
		`{"tonAmount":1.5,"receiverAddress":""}`,
		`not-json`,
	}
	for _, argsJSON := range cases {
		if _, err := tool.Invoke(context.Background(), argsJSON); err == nil {
			t.Errorf("参数 %q 应当被拒绝", argsJSON)
		}
	}
}

func TestSendTonToolDispatchesCommand(t *testing.T) {
	memory := bus.NewMemoryBus(8, "agent-llm.*")
	dispatcher := NewDispatcher(memory, "msg-1", 42)
	tool := NewSendTonTool(dispatcher)

	result, err := tool.Invoke(context.Background(), `{"tonAmount":2,"receiverAddress":"EQRECEIVER"}`)
	if err != nil {
		t.Fatalf("调用失败: %v", err)
	}
	if !result.Async {
		t.Fatal("转账工具应标记为异步")
	}

	var got bus.SendTonCommand
	err = memory.Drain(context.Background(), func(ctx context.Context, env bus.Envelope) error {
		if env.Type != bus.TypeSendTon {
			t.Fatalf("事件类型错误: %q", env.Type)
		}
		return env.DecodeData(&got)
	})
	if err != nil {
		t.Fatalf("消费命令失败: %v", err)
	}
	if got.MessageID != "msg-1" || got.UserID != 42 || got.TonAmount != 2 || got.ReceiverAddress != "EQRECEIVER" {
		t.Fatalf("命令载荷错误: %+v", got)
	}
}

func TestSwapTonToolEstimatesSwapAmount(t *testing.T) {
	memory := bus.NewMemoryBus(8, "agent-llm.*")
	dispatcher := NewDispatcher(memory, "msg-2", 7)
	// token/USDT = 1, TON/USDT = 5, 所以 1 token = 0.2 TON。
	tool := NewSwapTonTool(dispatcher, newTestRates())

	if _, err := tool.Invoke(context.Background(), `{"jettonMaster":"EQTOKEN","minimalTokenAmount":10}`); err != nil {
		t.Fatalf("调用失败: %v", err)
	}

	var got bus.SwapTonCommand
	err := memory.Drain(context.Background(), func(ctx context.Context, env bus.Envelope) error {
		if env.Type != bus.TypeSwapTon {
			t.Fatalf("事件类型错误: %q", env.Type)
		}
		return env.DecodeData(&got)
	})
	if err != nil {
		t.Fatalf("消费命令失败: %v", err)
	}
	if got.SwapTonAmount == nil {
		t.Fatal("期望估算出 swapTonAmount")
	}
	if *got.SwapTonAmount != 2.0 {
		t.Fatalf("估算数量错误: %v", *got.SwapTonAmount)
	}
}

func TestSwapTonToolKeepsExplicitAmount(t *testing.T) {
	memory := bus.NewMemoryBus(8, "agent-llm.*")
	dispatcher := NewDispatcher(memory, "msg-3", 7)
	tool := NewSwapTonTool(dispatcher, newTestRates())

	if _, err := tool.Invoke(context.Background(), `{"jettonMaster":"EQTOKEN","minimalTokenAmount":10,"swapTonAmount":3.5}`); err != nil {
		t.Fatalf("调用失败: %v", err)
	}

	var got bus.SwapTonCommand
	if err := memory.Drain(context.Background(), func(ctx context.Context, env bus.Envelope) error {
		return env.DecodeData(&got)
	}); err != nil {
		t.Fatalf("消费命令失败: %v", err)
	}
	if got.SwapTonAmount == nil || *got.SwapTonAmount != 3.5 {
		t.Fatalf("显式数量未保留: %+v", got.SwapTonAmount)
	}
}
