package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"AgentTON-Chain/internal/bus"
	"AgentTON-Chain/internal/confirm"
	apperrors "AgentTON-Chain/internal/errors"
	"AgentTON-Chain/internal/llm"
	"AgentTON-Chain/internal/observability/alerting"
	"AgentTON-Chain/internal/observability/metrics"
	"AgentTON-Chain/internal/planner"
	"AgentTON-Chain/internal/rates"
	"AgentTON-Chain/internal/tools"
	"AgentTON-Chain/pkg/logger"
)

// errorReply 是任何处理失败时返回给用户的固定文案，
// 避免把内部错误细节泄露到对话里。
const errorReply = "Error while processing your request."

// asyncResultTypes 把异步工具名映射到它等待的结果事件类型。
var asyncResultTypes = map[string]string{
	"send_ton_to_address": bus.ResultType(bus.TypeSendTon),
	"swap_ton_to_token":   bus.ResultType(bus.TypeSwapTon),
}

// Archiver 在任务进入终态后收到一次回调，用于落盘归档。
type Archiver interface {
	Archive(ctx context.Context, job *Job) error
}

// Service 驱动任务状态机：接收请求、规划、登记确认、恢复执行、
// 回收链上结果并汇总回复。
type Service struct {
	store     Store
	gate      *confirm.Gate
	planner   *planner.Planner
	publisher bus.Publisher
	rates     *rates.Service
	archiver  Archiver
	alerts    alerting.Dispatcher
	spawn     func(func())
	log       *slog.Logger

	// mu 串行化恢复执行之后对同一任务的读改写。
	mu sync.Mutex
}

// Option 配置 Service 的可选行为。
type Option func(*Service)

// WithArchiver 设置终态任务的归档回调。
func WithArchiver(archiver Archiver) Option {
	return func(s *Service) { s.archiver = archiver }
}

// WithSpawn 替换任务处理协程的启动方式，测试时可改为同步执行。
func WithSpawn(spawn func(func())) Option {
	return func(s *Service) { s.spawn = spawn }
}

// WithAlerts 设置严重错误的告警分发器。
func WithAlerts(dispatcher alerting.Dispatcher) Option {
	return func(s *Service) { s.alerts = dispatcher }
}

// NewService 创建会话服务。
func NewService(store Store, gate *confirm.Gate, p *planner.Planner, publisher bus.Publisher, rateService *rates.Service, opts ...Option) *Service {
	s := &Service{
		store:     store,
		gate:      gate,
		planner:   p,
		publisher: publisher,
		rates:     rateService,
		spawn:     func(f func()) { go f() },
		log:       logger.Named("chat"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit 受理一条用户消息与其既往对话历史，立刻返回 QUEUED 状态的
// 任务并异步处理。历史消息原样进入规划阶段的上下文。
func (s *Service) Submit(ctx context.Context, userID int64, text string, history ...llm.Message) (*Job, error) {
	if text == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "消息内容为空")
	}

	now := time.Now()
	job := &Job{
		ID:        uuid.NewString(),
		UserID:    userID,
		Text:      text,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  planner.Messages(text, history...),
	}
	if err := s.store.Create(ctx, job); err != nil {
		return nil, err
	}

	s.log.Info("任务已受理", "message_id", job.ID, "user_id", userID)
	id := job.ID
	s.spawn(func() { s.process(id) })
	return job.Clone(), nil
}

// Status 返回指定任务的当前状态。他人任务按不存在处理之外
// 单独返回 Forbidden，便于接口层区分 403 与 404。
func (s *Service) Status(ctx context.Context, userID int64, messageID string) (*Job, error) {
	job, err := s.store.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, apperrors.New(apperrors.CodeForbidden, "无权访问该任务")
	}
	return job, nil
}

// Confirmations 返回任务的确认项列表。
func (s *Service) Confirmations(ctx context.Context, userID int64, messageID string) ([]confirm.Item, error) {
	if _, err := s.Status(ctx, userID, messageID); err != nil {
		return nil, err
	}
	return s.gate.List(messageID), nil
}

// Resolve 记录一次确认裁决并在全部裁决完成后恢复执行。
// 重复裁决按后写覆盖处理。
func (s *Service) Resolve(ctx context.Context, userID int64, messageID, itemID string, approve bool) error {
	if _, err := s.Status(ctx, userID, messageID); err != nil {
		return err
	}
	s.gate.Resolve(messageID, itemID, approve)

	logger.Audit().Info("确认裁决已记录",
		"message_id", messageID,
		"confirmation_id", itemID,
		"approved", approve,
		"user_id", userID,
	)
	return s.ResumeIfReady(ctx, messageID)
}

// process 执行规划阶段。任何失败都会把任务置为 ERROR 并使用固定回复。
func (s *Service) process(messageID string) {
	ctx := context.Background()
	job, err := s.store.Get(ctx, messageID)
	if err != nil {
		s.log.Error("读取任务失败", "message_id", messageID, "error", err)
		return
	}

	job.Status = StatusProcessing
	job.UpdatedAt = time.Now()
	if err := s.store.Update(ctx, job); err != nil {
		s.log.Error("更新任务状态失败", "message_id", messageID, "error", err)
		return
	}

	registry := s.registry(job)
	plan, err := s.planner.Plan(ctx, registry, job.Messages)
	if err != nil {
		s.fail(ctx, job, err)
		return
	}

	if len(plan.Calls) == 0 {
		job.Reply = plan.FinalText
		s.complete(ctx, job)
		return
	}

	for _, planned := range plan.Calls {
		job.Calls = append(job.Calls, planned.Call)
		if planned.RequiresConfirmation {
			itemID := s.gate.Register(job.ID, confirm.Item{
				UserID:     job.UserID,
				ToolCallID: planned.Call.ID,
				ToolName:   planned.Call.Name,
				ArgsJSON:   planned.Call.Arguments,
				Text:       planned.ConfirmationText,
			})
			job.Pending = append(job.Pending, PendingCall{
				Call:           planned.Call,
				ConfirmationID: itemID,
				Text:           planned.ConfirmationText,
			})
		} else {
			job.NoConfirm = append(job.NoConfirm, planned.Call)
		}
	}

	job.UpdatedAt = time.Now()
	if err := s.store.Update(ctx, job); err != nil {
		s.fail(ctx, job, err)
		return
	}

	// 没有需要确认的调用时立即恢复执行，否则等待用户裁决。
	if err := s.ResumeIfReady(ctx, job.ID); err != nil {
		s.log.Error("恢复执行失败", "message_id", job.ID, "error", err)
	}
}

// ResumeIfReady 在所有确认项都有裁决后恢复执行工具调用。
// 尚有未裁决项、任务不在执行阶段或已恢复过时均为幂等空操作。
func (s *Service) ResumeIfReady(ctx context.Context, messageID string) error {
	job, err := s.store.Get(ctx, messageID)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeNotFound {
			return nil
		}
		return err
	}
	if job.Status != StatusProcessing || len(job.Calls) == 0 {
		return nil
	}
	if !s.gate.AllResolved(messageID) {
		return nil
	}

	started, err := s.store.BeginResume(ctx, messageID)
	if err != nil || !started {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, err = s.store.Get(ctx, messageID)
	if err != nil {
		return err
	}
	registry := s.registry(job)

	approved := make(map[string]bool)
	for _, item := range s.gate.Approved(messageID) {
		approved[item.ID] = true
	}

	for _, pending := range job.Pending {
		if !approved[pending.ConfirmationID] {
			job.Results = append(job.Results, planner.ToolResult{
				CallID:  pending.Call.ID,
				Name:    pending.Call.Name,
				Content: "Declined by user.",
			})
			continue
		}
		if err := s.executeCall(ctx, job, registry, pending.Call); err != nil {
			s.fail(ctx, job, err)
			return nil
		}
	}
	for _, call := range job.NoConfirm {
		if err := s.executeCall(ctx, job, registry, call); err != nil {
			s.fail(ctx, job, err)
			return nil
		}
	}

	if job.AsyncOutstanding() == 0 {
		s.summarize(ctx, job)
		return nil
	}

	job.UpdatedAt = time.Now()
	return s.store.Update(ctx, job)
}

// executeCall 执行单个调用并把产出记录到任务上。
// 异步调用登记等待项，同步调用直接追加结果。
func (s *Service) executeCall(ctx context.Context, job *Job, registry *tools.Registry, call llm.ToolCall) error {
	result, err := s.planner.ExecuteCall(ctx, registry, call)
	if err != nil {
		return err
	}
	if result.Async {
		job.Async = append(job.Async, AsyncCall{
			CallID:     call.ID,
			Name:       call.Name,
			ResultType: asyncResultTypes[call.Name],
		})
		return nil
	}
	job.Results = append(job.Results, result)
	return nil
}

// FinalizeWithResult 回收一条链上结果事件。找不到对应任务、
// 用户不匹配或没有等待该类型结果的调用时静默忽略，
// 以容忍总线上重复或串台的事件。
//
// 全部异步调用收齐后直接用结果文本作为回复并完成任务，
// 不再经过模型。链上已经发生的事实（尤其是交易号）必须
// 原样回到用户手里，不能因为模型不可用或改写而丢失。
func (s *Service) FinalizeWithResult(ctx context.Context, messageID string, userID int64, resultType, report string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.store.Get(ctx, messageID)
	if err != nil {
		s.log.Warn("收到未知任务的结果事件", "message_id", messageID, "type", resultType)
		return nil
	}
	if job.UserID != userID || job.Status != StatusProcessing {
		s.log.Warn("结果事件与任务不匹配", "message_id", messageID, "type", resultType)
		return nil
	}

	matched := false
	for i := range job.Async {
		if job.Async[i].Done || job.Async[i].ResultType != resultType {
			continue
		}
		job.Async[i].Done = true
		job.Async[i].Report = report
		job.Results = append(job.Results, planner.ToolResult{
			CallID:  job.Async[i].CallID,
			Name:    job.Async[i].Name,
			Content: report,
			Async:   true,
		})
		matched = true
		break
	}
	if !matched {
		s.log.Warn("没有等待该结果的调用", "message_id", messageID, "type", resultType)
		return nil
	}

	if job.AsyncOutstanding() == 0 {
		job.Reply = asyncReply(job)
		s.complete(ctx, job)
		return nil
	}

	job.UpdatedAt = time.Now()
	return s.store.Update(ctx, job)
}

// asyncReply 把所有异步调用的结果文本按投递顺序拼成最终回复。
func asyncReply(job *Job) string {
	reports := make([]string, 0, len(job.Async))
	for _, call := range job.Async {
		if call.Report != "" {
			reports = append(reports, call.Report)
		}
	}
	return strings.Join(reports, "\n")
}

// summarize 把全部工具记录交给模型生成最终回复并完成任务。
func (s *Service) summarize(ctx context.Context, job *Job) {
	reply, err := s.planner.Summarize(ctx, job.Messages, job.Calls, job.Results)
	if err != nil {
		s.fail(ctx, job, err)
		return
	}
	job.Reply = reply
	s.complete(ctx, job)
}

func (s *Service) complete(ctx context.Context, job *Job) {
	job.Status = StatusCompleted
	now := time.Now()
	job.UpdatedAt = now
	job.CompletedAt = &now
	if err := s.store.Update(ctx, job); err != nil {
		s.log.Error("写入终态失败", "message_id", job.ID, "error", err)
		return
	}
	s.log.Info("任务完成", "message_id", job.ID)
	metrics.ObserveJobTerminal(string(StatusCompleted))
	s.archive(ctx, job)
}

func (s *Service) fail(ctx context.Context, job *Job, cause error) {
	s.log.Error("任务处理失败", "message_id", job.ID, "error", cause)
	if s.alerts != nil && apperrors.ShouldAlert(cause) {
		if err := s.alerts.Notify(ctx, alerting.Event{
			Code:      apperrors.CodeOf(cause),
			Message:   cause.Error(),
			Severity:  apperrors.SeverityOf(cause),
			MessageID: job.ID,
			UserID:    job.UserID,
		}); err != nil {
			s.log.Warn("发送告警失败", "message_id", job.ID, "error", err)
		}
	}
	job.Status = StatusError
	job.Reply = errorReply
	now := time.Now()
	job.UpdatedAt = now
	job.CompletedAt = &now
	if err := s.store.Update(ctx, job); err != nil {
		s.log.Error("写入终态失败", "message_id", job.ID, "error", err)
		return
	}
	metrics.ObserveJobTerminal(string(StatusError))
	s.archive(ctx, job)
}

func (s *Service) archive(ctx context.Context, job *Job) {
	if s.archiver == nil {
		return
	}
	if err := s.archiver.Archive(ctx, job); err != nil {
		s.log.Warn("任务归档失败", "message_id", job.ID, "error", err)
	}
}

// registry 为任务构建可用工具集，命令投递器绑定任务标识。
func (s *Service) registry(job *Job) *tools.Registry {
	dispatcher := tools.NewDispatcher(s.publisher, job.ID, job.UserID)
	return tools.NewRegistry(
		tools.NewTonRateTool(s.rates),
		tools.NewTokenRateTool(s.rates),
		tools.NewSendTonTool(dispatcher),
		tools.NewSwapTonTool(dispatcher, s.rates),
	)
}
