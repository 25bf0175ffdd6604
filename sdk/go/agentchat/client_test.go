package agentchat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSubmitSendsUserHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/messages" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		if got := r.Header.Get("X-User-ID"); got != "7" {
			t.Fatalf("expected user header 7, got %q", got)
		}
		var req struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("unexpected body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(Message{MessageID: "msg-1", Status: "QUEUED"})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, 7, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	message, err := client.Submit(context.Background(), "hi")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if message.MessageID != "msg-1" || message.Status != "QUEUED" {
		t.Fatalf("unexpected message: %+v", message)
	}
}

func TestWaitForReplyPollsUntilTerminal(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		status := "PROCESSING"
		reply := ""
		if calls >= 3 {
			status = "COMPLETED"
			reply = "done"
		}
		_ = json.NewEncoder(w).Encode(Message{MessageID: "msg-1", Status: status, Reply: reply})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, 7, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	message, err := client.WaitForReply(context.Background(), "msg-1", time.Millisecond)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if message.Status != "COMPLETED" || message.Reply != "done" {
		t.Fatalf("unexpected message: %+v", message)
	}
	if calls < 3 {
		t.Fatalf("expected at least 3 polls, got %d", calls)
	}
}

func TestAPIErrorDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"code":    "NOT_FOUND",
			"message": "no such message",
		})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, 7, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.Status(context.Background(), "missing")
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Code != "NOT_FOUND" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}

func TestApproveConfirmation(t *testing.T) {
	resolved := ""
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resolved = r.URL.Path
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "c1", "status": "APPROVED"})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, 7, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if err := client.Approve(context.Background(), "msg-1", "c1"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if resolved != "/chat/messages/msg-1/confirmations/c1/approve" {
		t.Fatalf("unexpected path: %s", resolved)
	}
}
