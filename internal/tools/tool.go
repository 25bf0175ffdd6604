package tools

import (
	"context"

	"AgentTON-Chain/internal/llm"
)

// Kind 区分同步工具与异步工具。同步工具在调用内返回结果，
// 异步工具只负责把命令投递到消息总线，结果稍后通过事件回来。
type Kind int

const (
	KindSync Kind = iota
	KindAsync
)

// Result 是一次工具调用的产出。异步工具的 Content 仅用作占位回执。
type Result struct {
	Content string
	Async   bool
}

// Tool 是规划器可以调度的一种能力。
type Tool interface {
	// Definition 返回暴露给大模型的函数声明。
	Definition() llm.ToolDefinition

	// Kind 标识工具是同步还是异步。
	Kind() Kind

	// RequiresConfirmation 表示调用前是否需要用户人工确认。
	RequiresConfirmation() bool

	// ConfirmationText 根据调用参数生成给用户看的确认文案。
	// 仅在 RequiresConfirmation 为 true 时使用。
	ConfirmationText(ctx context.Context, argsJSON string) (string, error)

	// Invoke 执行工具调用，argsJSON 为大模型给出的原始参数。
	Invoke(ctx context.Context, argsJSON string) (Result, error)
}

// Registry 按名称保存一次会话可用的工具集合。
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry 构建工具注册表，保持注册顺序。
func NewRegistry(list ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(list))}
	for _, tool := range list {
		name := tool.Definition().Name
		if _, exists := r.tools[name]; exists {
			continue
		}
		r.tools[name] = tool
		r.order = append(r.order, name)
	}
	return r
}

// Lookup 按名称查找工具。
func (r *Registry) Lookup(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// Definitions 返回所有工具的函数声明，顺序与注册顺序一致。
func (r *Registry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}
