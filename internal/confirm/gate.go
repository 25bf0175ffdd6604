package confirm

import (
	"sync"

	"github.com/google/uuid"
)

// Status 表示确认项的人工处理状态。
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusDeclined Status = "DECLINED"
)

// Item 描述一条等待人工确认的工具调用。
type Item struct {
	ID         string `json:"id"`
	MessageID  string `json:"message_id"`
	UserID     int64  `json:"user_id"`
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
	ArgsJSON   string `json:"args_json"`
	Text       string `json:"text"`
	Status     Status `json:"status"`
}

// Gate 以任务 ID 为键维护只增的确认项列表。
// 批准或拒绝由外部调用方触发，这里只负责记账。
type Gate struct {
	mu        sync.RWMutex
	byMessage map[string][]*Item
}

// NewGate 创建空的确认门。
func NewGate() *Gate {
	return &Gate{byMessage: make(map[string][]*Item)}
}

// Register 追加一条确认项，初始状态为 PENDING，返回分配的确认项 ID。
func (g *Gate) Register(messageID string, item Item) string {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.MessageID = messageID
	item.Status = StatusPending
	g.mu.Lock()
	g.byMessage[messageID] = append(g.byMessage[messageID], &item)
	g.mu.Unlock()
	return item.ID
}

// List 返回任务的全部确认项副本。任务没有确认项时返回空列表，不视为错误。
func (g *Gate) List(messageID string) []Item {
	g.mu.RLock()
	defer g.mu.RUnlock()
	items := g.byMessage[messageID]
	out := make([]Item, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return out
}

// Resolve 将确认项状态置为 APPROVED 或 DECLINED。
// 对已决议的项再次调用会直接覆盖状态（最后一次写入生效），与上游行为保持一致。
// 未知的任务或确认项 ID 被静默忽略。
func (g *Gate) Resolve(messageID, itemID string, approve bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, item := range g.byMessage[messageID] {
		if item.ID == itemID {
			if approve {
				item.Status = StatusApproved
			} else {
				item.Status = StatusDeclined
			}
			return
		}
	}
}

// AllResolved 当且仅当任务的所有确认项都已脱离 PENDING 时返回 true。
// 任务没有任何确认项时按空集处理，返回 true。
func (g *Gate) AllResolved(messageID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, item := range g.byMessage[messageID] {
		if item.Status == StatusPending {
			return false
		}
	}
	return true
}

// Approved 返回任务中状态为 APPROVED 的确认项。
func (g *Gate) Approved(messageID string) []Item {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []Item
	for _, item := range g.byMessage[messageID] {
		if item.Status == StatusApproved {
			out = append(out, *item)
		}
	}
	return out
}
