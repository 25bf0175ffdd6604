package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"AgentTON-Chain/internal/bus"
	"AgentTON-Chain/internal/chat"
	"AgentTON-Chain/internal/confirm"
	"AgentTON-Chain/internal/llm"
	"AgentTON-Chain/internal/planner"
	"AgentTON-Chain/internal/rates"
)

type directClient struct{ text string }

func (c directClient) Complete(ctx context.Context, req llm.Request) (*llm.Completion, error) {
	return &llm.Completion{Content: c.text}, nil
}

type capturingClient struct {
	text     string
	messages []llm.Message
}

func (c *capturingClient) Complete(ctx context.Context, req llm.Request) (*llm.Completion, error) {
	c.messages = req.Messages
	return &llm.Completion{Content: c.text}, nil
}

type flatTonSource struct{}

func (flatTonSource) TonToUSDT(ctx context.Context) (float64, error) { return 5.0, nil }

func newTestServer() *Server {
	service := chat.NewService(
		chat.NewMemoryStore(),
		confirm.NewGate(),
		planner.New(directClient{text: "hello"}),
		bus.NewMemoryBus(8),
		rates.NewService(flatTonSource{}, nil, nil, 0),
		chat.WithSpawn(func(f func()) { f() }),
	)
	return NewServer(":0", service, nil)
}

func TestSubmitAndStatus(t *testing.T) {
	server := newTestServer()

	body := strings.NewReader(`{"text":"hi"}`)
	req := httptest.NewRequest(http.MethodPost, "/chat/messages", body)
	req.Header.Set("X-User-ID", "7")
	rec := httptest.NewRecorder()
	server.httpSrv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("期望 202, 实际 %d: %s", rec.Code, rec.Body)
	}
	var submitted struct {
		MessageID string `json:"message_id"`
		Text      string `json:"text"`
		Status    string `json:"status"`
		PollPath  string `json:"poll_path"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &submitted); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if submitted.MessageID == "" {
		t.Fatal("响应缺少 message_id")
	}
	if submitted.Text != "hi" {
		t.Fatalf("响应应回显消息内容: %+v", submitted)
	}
	if submitted.PollPath != "/chat/messages/"+submitted.MessageID {
		t.Fatalf("轮询路径错误: %q", submitted.PollPath)
	}

	req = httptest.NewRequest(http.MethodGet, "/chat/messages/"+submitted.MessageID, nil)
	req.Header.Set("X-User-ID", "7")
	rec = httptest.NewRecorder()
	server.httpSrv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("期望 200, 实际 %d", rec.Code)
	}
	var status struct {
		Status      string `json:"status"`
		Reply       string `json:"reply"`
		CompletedAt string `json:"completed_at"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if status.Status != "COMPLETED" || status.Reply != "hello" {
		t.Fatalf("状态响应错误: %+v", status)
	}
	if status.CompletedAt == "" {
		t.Fatal("终态响应应携带完成时间")
	}
}

func TestSubmitForwardsHistory(t *testing.T) {
	captured := &capturingClient{text: "hello"}
	service := chat.NewService(
		chat.NewMemoryStore(),
		confirm.NewGate(),
		planner.New(captured),
		bus.NewMemoryBus(8),
		rates.NewService(flatTonSource{}, nil, nil, 0),
		chat.WithSpawn(func(f func()) { f() }),
	)
	server := NewServer(":0", service, nil)

	body := strings.NewReader(`{"text":"and now?","history":[` +
		`{"role":"user","content":"what is my balance"},` +
		`{"role":"assistant","content":"3 TON"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/chat/messages", body)
	req.Header.Set("X-User-ID", "7")
	rec := httptest.NewRecorder()
	server.httpSrv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("期望 202, 实际 %d: %s", rec.Code, rec.Body)
	}
	msgs := captured.messages
	if len(msgs) != 4 {
		t.Fatalf("期望 4 条消息, 实际 %d", len(msgs))
	}
	if msgs[1].Role != llm.RoleUser || msgs[1].Content != "what is my balance" {
		t.Fatalf("历史消息丢失: %+v", msgs[1])
	}
	if msgs[2].Role != llm.RoleAssistant || msgs[2].Content != "3 TON" {
		t.Fatalf("历史消息丢失: %+v", msgs[2])
	}
}

func TestSubmitRejectsBadHistoryRole(t *testing.T) {
	server := newTestServer()

	body := strings.NewReader(`{"text":"hi","history":[{"role":"system","content":"x"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/chat/messages", body)
	req.Header.Set("X-User-ID", "7")
	rec := httptest.NewRecorder()
	server.httpSrv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("期望 400, 实际 %d", rec.Code)
	}
}

func TestStatusRequiresUserHeader(t *testing.T) {
	server := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/chat/messages/whatever", nil)
	rec := httptest.NewRecorder()
	server.httpSrv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("期望 403, 实际 %d", rec.Code)
	}
}

func TestStatusOfForeignJobForbidden(t *testing.T) {
	server := newTestServer()

	body := strings.NewReader(`{"text":"hi"}`)
	req := httptest.NewRequest(http.MethodPost, "/chat/messages", body)
	req.Header.Set("X-User-ID", "7")
	rec := httptest.NewRecorder()
	server.httpSrv.Handler.ServeHTTP(rec, req)

	var submitted struct {
		MessageID string `json:"message_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &submitted); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/chat/messages/"+submitted.MessageID, nil)
	req.Header.Set("X-User-ID", "8")
	rec = httptest.NewRecorder()
	server.httpSrv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("期望 403, 实际 %d", rec.Code)
	}
}

func TestUnknownJobNotFound(t *testing.T) {
	server := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/chat/messages/missing", nil)
	req.Header.Set("X-User-ID", "7")
	rec := httptest.NewRecorder()
	server.httpSrv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("期望 404, 实际 %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	server.httpSrv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("期望 200, 实际 %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "agentton_") {
		t.Fatalf("指标输出缺少前缀: %s", rec.Body.String())
	}
}
