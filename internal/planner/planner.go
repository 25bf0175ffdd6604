package planner

import (
	"context"
	"log/slog"

	apperrors "AgentTON-Chain/internal/errors"
	"AgentTON-Chain/internal/llm"
	"AgentTON-Chain/internal/tools"
	"AgentTON-Chain/pkg/logger"
)

// systemPrompt 约束模型只能通过给定的工具触达链上资产与行情。
const systemPrompt = "You are a wallet assistant for the TON blockchain. " +
	"Use the provided tools to query exchange rates, send TON and swap TON to tokens. " +
	"Never invent transaction results. When no tool is needed, answer directly and concisely."

// PlannedCall 是模型提出的一次工具调用，附带是否需要人工确认的标记。
type PlannedCall struct {
	Call                 llm.ToolCall
	RequiresConfirmation bool
	ConfirmationText     string
}

// Plan 是一次规划的产出。FinalText 与 Calls 互斥：模型要么直接回答，
// 要么给出一批工具调用。
type Plan struct {
	FinalText string
	Calls     []PlannedCall
}

// ToolResult 是执行一次工具调用后的记录，用来回填给模型做总结。
type ToolResult struct {
	CallID  string
	Name    string
	Content string
	Async   bool
}

// Planner 驱动大模型完成规划、工具执行记录与总结三个阶段。
type Planner struct {
	client llm.Client
	log    *slog.Logger
}

// New 创建规划器。
func New(client llm.Client) *Planner {
	return &Planner{
		client: client,
		log:    logger.Named("planner"),
	}
}

// Messages 构造一次会话的初始消息序列。调用方传入的历史对话
// 排在系统提示之后、本次用户消息之前。
func Messages(userText string, history ...llm.Message) []llm.Message {
	out := make([]llm.Message, 0, len(history)+2)
	out = append(out, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	out = append(out, history...)
	out = append(out, llm.UserMessage(userText))
	return out
}

// Plan 让模型规划下一步：直接回答或调用工具。
// 凡是需要确认的工具都会生成确认文案，文案不合法时该调用被整体拒绝。
func (p *Planner) Plan(ctx context.Context, registry *tools.Registry, messages []llm.Message) (*Plan, error) {
	completion, err := p.client.Complete(ctx, llm.Request{
		Messages: messages,
		Tools:    registry.Definitions(),
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodePlannerFailure, err, "模型规划失败")
	}

	if len(completion.ToolCalls) == 0 {
		return &Plan{FinalText: completion.Content}, nil
	}

	plan := &Plan{}
	for _, call := range completion.ToolCalls {
		tool, ok := registry.Lookup(call.Name)
		if !ok {
			return nil, apperrors.New(apperrors.CodePlannerFailure, "模型调用了未注册的工具 "+call.Name)
		}

		planned := PlannedCall{Call: call}
		if tool.RequiresConfirmation() {
			text, err := tool.ConfirmationText(ctx, call.Arguments)
			if err != nil {
				return nil, apperrors.Wrap(apperrors.CodePlannerFailure, err, "生成确认文案失败")
			}
			planned.RequiresConfirmation = true
			planned.ConfirmationText = text
		}
		plan.Calls = append(plan.Calls, planned)
	}
	return plan, nil
}

// ExecuteCall 执行单个工具调用并返回记录。工具失败时记录失败文案而
// 不中断整批执行，由调用方决定任务最终状态。
func (p *Planner) ExecuteCall(ctx context.Context, registry *tools.Registry, call llm.ToolCall) (ToolResult, error) {
	tool, ok := registry.Lookup(call.Name)
	if !ok {
		return ToolResult{}, apperrors.New(apperrors.CodePlannerFailure, "未注册的工具 "+call.Name)
	}

	result, err := tool.Invoke(ctx, call.Arguments)
	if err != nil {
		return ToolResult{}, err
	}
	return ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Content: result.Content,
		Async:   result.Async,
	}, nil
}

// Summarize 把工具执行记录回填给模型，产出给用户的最终回复。
func (p *Planner) Summarize(ctx context.Context, messages []llm.Message, calls []llm.ToolCall, results []ToolResult) (string, error) {
	followUp := make([]llm.Message, 0, len(messages)+1+len(results))
	followUp = append(followUp, messages...)
	followUp = append(followUp, llm.Message{
		Role:      llm.RoleAssistant,
		ToolCalls: calls,
	})
	for _, result := range results {
		followUp = append(followUp, llm.ToolMessage(result.CallID, result.Name, result.Content))
	}

	completion, err := p.client.Complete(ctx, llm.Request{Messages: followUp})
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodePlannerFailure, err, "模型总结失败")
	}
	return completion.Content, nil
}
