package bus

import (
	"context"
	"testing"
)

func TestMatchTopic(t *testing.T) {
	cases := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"agent-llm.send-ton", "agent-llm.send-ton", true},
		{"agent-llm.send-ton", "agent-llm.send-ton.result", false},
		{"agent-llm.*.result", "agent-llm.send-ton.result", true},
		{"agent-llm.*.result", "agent-llm.swap-ton-to-token.result", true},
		{"agent-llm.*.result", "agent-llm.send-ton", false},
		{"agent-llm.*", "agent-llm.send-ton", true},
		{"agent-llm.*", "other.send-ton", false},
	}
	for _, tc := range cases {
		if got := matchTopic(tc.pattern, tc.key); got != tc.want {
			t.Errorf("matchTopic(%q, %q) = %v, 期望 %v", tc.pattern, tc.key, got, tc.want)
		}
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env, err := NewEnvelope(TypeSendTon, SendTonCommand{
		MessageID:       "msg-1",
		UserID:          7,
		TonAmount:       1.5,
		ReceiverAddress: "EQRECEIVER",
	})
	if err != nil {
		t.Fatalf("构造信封失败: %v", err)
	}
	if env.OccurredAt.IsZero() {
		t.Fatal("信封缺少时间戳")
	}

	var cmd SendTonCommand
	if err := env.DecodeData(&cmd); err != nil {
		t.Fatalf("解析载荷失败: %v", err)
	}
	if cmd.MessageID != "msg-1" || cmd.TonAmount != 1.5 {
		t.Fatalf("载荷错误: %+v", cmd)
	}
}

func TestResultType(t *testing.T) {
	if got := ResultType(TypeSendTon); got != TypeSendTonResult {
		t.Fatalf("结果类型错误: %q", got)
	}
	if got := ResultType(TypeSwapTon); got != TypeSwapTonResult {
		t.Fatalf("结果类型错误: %q", got)
	}
}

func TestMemoryBusFiltersByBinding(t *testing.T) {
	memory := NewMemoryBus(8, "agent-llm.*.result")
	ctx := context.Background()

	command, _ := NewEnvelope(TypeSendTon, SendTonCommand{MessageID: "msg-1"})
	result, _ := NewEnvelope(TypeSendTonResult, SendTonResult{MessageID: "msg-1"})

	if err := memory.Publish(ctx, command); err != nil {
		t.Fatalf("发布失败: %v", err)
	}
	if err := memory.Publish(ctx, result); err != nil {
		t.Fatalf("发布失败: %v", err)
	}

	if memory.Pending() != 1 {
		t.Fatalf("只应保留匹配绑定的事件, 实际 %d", memory.Pending())
	}

	var seen []string
	if err := memory.Drain(ctx, func(ctx context.Context, env Envelope) error {
		seen = append(seen, env.Type)
		return nil
	}); err != nil {
		t.Fatalf("消费失败: %v", err)
	}
	if len(seen) != 1 || seen[0] != TypeSendTonResult {
		t.Fatalf("消费内容错误: %v", seen)
	}
}

func TestMemoryBusClosedPublish(t *testing.T) {
	memory := NewMemoryBus(8)
	_ = memory.Close()

	env, _ := NewEnvelope(TypeSendTon, SendTonCommand{})
	if err := memory.Publish(context.Background(), env); err == nil {
		t.Fatal("关闭后发布应报错")
	}
}
