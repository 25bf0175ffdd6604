package chat

import (
	"time"

	"AgentTON-Chain/internal/llm"
	"AgentTON-Chain/internal/planner"
)

// Status 表示一次会话任务的生命周期阶段。
// 合法迁移只有 QUEUED -> PROCESSING -> {COMPLETED, ERROR}。
type Status string

const (
	StatusQueued     Status = "QUEUED"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusError      Status = "ERROR"
)

// Terminal 判断状态是否为终态。
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// PendingCall 是一个等待用户确认的工具调用。
type PendingCall struct {
	Call           llm.ToolCall
	ConfirmationID string
	Text           string
}

// AsyncCall 是一个已投递到执行进程、等待链上结果的工具调用。
type AsyncCall struct {
	CallID     string
	Name       string
	ResultType string
	Report     string
	Done       bool
}

// Job 是一次用户请求的完整状态。除直接回答的请求外，任务会经历
// 规划、确认、执行、汇总四个阶段，全程通过 MessageID 关联。
type Job struct {
	ID        string
	UserID    int64
	Text      string
	Status    Status
	Reply     string
	CreatedAt time.Time
	UpdatedAt time.Time

	// CompletedAt 在任务进入终态时写入，区别于普通更新时间。
	CompletedAt *time.Time

	// Messages 保存会话上下文，供规划与总结阶段使用。
	Messages []llm.Message

	// Calls 保存模型规划出的全部工具调用，顺序与模型输出一致。
	Calls []llm.ToolCall

	// Pending 保存其中需要人工确认的部分。
	Pending []PendingCall

	// NoConfirm 保存无需确认、恢复执行时直接运行的部分。
	NoConfirm []llm.ToolCall

	// Results 累积所有已完成调用的记录，包括链上结果回执。
	Results []planner.ToolResult

	// Async 保存已投递、尚未收到结果事件的调用。
	Async []AsyncCall

	// resumeStarted 保证确认完成后的恢复执行只发生一次。
	resumeStarted bool
}

// AsyncOutstanding 返回尚未收到结果的异步调用数量。
func (j *Job) AsyncOutstanding() int {
	count := 0
	for _, call := range j.Async {
		if !call.Done {
			count++
		}
	}
	return count
}

// Clone 返回任务的深拷贝，供存储层实现读写隔离。
func (j *Job) Clone() *Job {
	dup := *j
	if j.CompletedAt != nil {
		done := *j.CompletedAt
		dup.CompletedAt = &done
	}
	dup.Messages = append([]llm.Message(nil), j.Messages...)
	dup.Calls = append([]llm.ToolCall(nil), j.Calls...)
	dup.Pending = append([]PendingCall(nil), j.Pending...)
	dup.NoConfirm = append([]llm.ToolCall(nil), j.NoConfirm...)
	dup.Results = append([]planner.ToolResult(nil), j.Results...)
	dup.Async = append([]AsyncCall(nil), j.Async...)
	return &dup
}
