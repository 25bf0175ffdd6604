package confirm

import "testing"

func TestRegisterAssignsIDAndPending(t *testing.T) {
	gate := NewGate()

	id := gate.Register("msg-1", Item{ToolName: "send_ton_to_address", Text: "Send 1 TON to X"})
	if id == "" {
		t.Fatal("应分配确认项 ID")
	}

	items := gate.List("msg-1")
	if len(items) != 1 {
		t.Fatalf("期望 1 项, 实际 %d", len(items))
	}
	if items[0].Status != StatusPending || items[0].MessageID != "msg-1" {
		t.Fatalf("初始状态错误: %+v", items[0])
	}
}

func TestListUnknownMessageEmpty(t *testing.T) {
	gate := NewGate()
	if items := gate.List("missing"); len(items) != 0 {
		t.Fatalf("未知任务应返回空列表: %v", items)
	}
}

func TestResolveOverwrites(t *testing.T) {
	gate := NewGate()
	id := gate.Register("msg-1", Item{})

	gate.Resolve("msg-1", id, false)
	gate.Resolve("msg-1", id, true)

	items := gate.List("msg-1")
	if items[0].Status != StatusApproved {
		t.Fatalf("重复裁决应按后写覆盖, 实际 %s", items[0].Status)
	}
}

func TestResolveUnknownIgnored(t *testing.T) {
	gate := NewGate()
	id := gate.Register("msg-1", Item{})

	gate.Resolve("msg-1", "ghost", true)
	gate.Resolve("other", id, true)

	if items := gate.List("msg-1"); items[0].Status != StatusPending {
		t.Fatalf("未知裁决不应影响状态: %+v", items[0])
	}
}

func TestAllResolved(t *testing.T) {
	gate := NewGate()

	if !gate.AllResolved("msg-1") {
		t.Fatal("没有确认项的任务应视为已全部裁决")
	}

	a := gate.Register("msg-1", Item{})
	b := gate.Register("msg-1", Item{})
	if gate.AllResolved("msg-1") {
		t.Fatal("存在 PENDING 项时不应返回 true")
	}

	gate.Resolve("msg-1", a, true)
	if gate.AllResolved("msg-1") {
		t.Fatal("仍有一项未裁决")
	}
	gate.Resolve("msg-1", b, false)
	if !gate.AllResolved("msg-1") {
		t.Fatal("全部裁决后应返回 true")
	}

	approved := gate.Approved("msg-1")
	if len(approved) != 1 || approved[0].ID != a {
		t.Fatalf("批准列表错误: %+v", approved)
	}
}
