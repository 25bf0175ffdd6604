package llm

import "context"

// Role 标识会话消息的来源。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message 是一条会话消息。助手消息可能携带工具调用请求，
// 工具消息携带某次调用的执行结果。
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

// ToolCall 是模型提出的一次工具调用。ID 由模型分配，参数为序列化 JSON。
// 一经提出不再修改。
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolDefinition 向模型描述一个可用工具。
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Request 描述一次补全调用：完整会话加上可供模型选择的工具。
type Request struct {
	Messages []Message
	Tools    []ToolDefinition
}

// Completion 是模型的一次回复：要么是最终文本，要么是一组工具调用。
type Completion struct {
	Content   string
	ToolCalls []ToolCall
}

// Client 定义了调用大模型的统一接口。模型内部的推理过程对本系统不可见。
type Client interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// UserMessage 构造一条用户消息。
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage 构造一条助手消息。
func AssistantMessage(content string, calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolMessage 构造一条工具结果消息。
func ToolMessage(callID, name, content string) Message {
	return Message{Role: RoleTool, ToolCallID: callID, Name: name, Content: content}
}
