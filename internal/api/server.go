package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"AgentTON-Chain/internal/chat"
	"AgentTON-Chain/internal/confirm"
	apperrors "AgentTON-Chain/internal/errors"
	"AgentTON-Chain/internal/llm"
	"AgentTON-Chain/internal/observability/metrics"
	"AgentTON-Chain/pkg/logger"
)

// UserResolver 从请求中解析发起用户。生产部署接到网关鉴权，
// 这里默认实现读取 X-User-ID 头。
type UserResolver interface {
	Resolve(r *http.Request) (int64, error)
}

// HeaderUserResolver 从 X-User-ID 头解析用户编号。
type HeaderUserResolver struct{}

// Resolve 实现 UserResolver。
func (HeaderUserResolver) Resolve(r *http.Request) (int64, error) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		return 0, apperrors.New(apperrors.CodeForbidden, "缺少 X-User-ID 头")
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperrors.New(apperrors.CodeForbidden, "X-User-ID 头不是合法整数")
	}
	return userID, nil
}

// Server 暴露会话接口：提交消息、查询状态、处理确认项。
type Server struct {
	chat    *chat.Service
	users   UserResolver
	addr    string
	log     *slog.Logger
	httpSrv *http.Server
}

// NewServer 创建 API 服务。
func NewServer(addr string, chatService *chat.Service, users UserResolver) *Server {
	if users == nil {
		users = HeaderUserResolver{}
	}
	s := &Server{
		chat:  chatService,
		users: users,
		addr:  addr,
		log:   logger.Named("api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat/messages", s.instrument("submit", s.handleSubmit))
	mux.HandleFunc("GET /chat/messages/{id}", s.instrument("status", s.handleStatus))
	mux.HandleFunc("GET /chat/messages/{id}/confirmations", s.instrument("confirmations", s.handleConfirmations))
	mux.HandleFunc("POST /chat/messages/{id}/confirmations/{cid}/approve", s.instrument("approve", s.handleApprove))
	mux.HandleFunc("POST /chat/messages/{id}/confirmations/{cid}/decline", s.instrument("decline", s.handleDecline))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", s.handleHealth)

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run 启动服务并阻塞到上下文取消。
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("API 服务启动", "addr", s.addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return err
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument 在处理器外层记录请求指标。
func (s *Server) instrument(name string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		handler(recorder, r)
		metrics.ObserveHTTPRequest(name, r.Method, recorder.status, time.Since(start))
	}
}

type submitRequest struct {
	Text    string           `json:"text"`
	History []historyMessage `json:"history,omitempty"`
}

// historyMessage 是请求中携带的一条历史对话。
type historyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (m historyMessage) toLLM() (llm.Message, error) {
	switch llm.Role(m.Role) {
	case llm.RoleUser, llm.RoleAssistant:
		return llm.Message{Role: llm.Role(m.Role), Content: m.Content}, nil
	default:
		return llm.Message{}, apperrors.New(apperrors.CodeInvalidArgument,
			"历史消息角色只能是 user 或 assistant")
	}
}

type jobResponse struct {
	MessageID   string `json:"message_id"`
	Text        string `json:"text"`
	Status      string `json:"status"`
	Reply       string `json:"reply,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// submitResponse 在任务状态之外附带结果的获取方式。
type submitResponse struct {
	jobResponse
	PollPath string `json:"poll_path"`
}

func toJobResponse(job *chat.Job) jobResponse {
	resp := jobResponse{
		MessageID: job.ID,
		Text:      job.Text,
		Status:    string(job.Status),
		Reply:     job.Reply,
		CreatedAt: job.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: job.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if job.CompletedAt != nil {
		resp.CompletedAt = job.CompletedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	userID, err := s.users.Resolve(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperrors.New(apperrors.CodeInvalidArgument, "请求体不是合法 JSON"))
		return
	}

	history := make([]llm.Message, 0, len(req.History))
	for _, m := range req.History {
		msg, err := m.toLLM()
		if err != nil {
			s.writeError(w, err)
			return
		}
		history = append(history, msg)
	}

	job, err := s.chat.Submit(r.Context(), userID, req.Text, history...)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, submitResponse{
		jobResponse: toJobResponse(job),
		PollPath:    "/chat/messages/" + job.ID,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := s.users.Resolve(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	job, err := s.chat.Status(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toJobResponse(job))
}

type confirmationResponse struct {
	ID       string `json:"id"`
	ToolName string `json:"tool_name"`
	Text     string `json:"text"`
	Status   string `json:"status"`
}

func (s *Server) handleConfirmations(w http.ResponseWriter, r *http.Request) {
	userID, err := s.users.Resolve(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	items, err := s.chat.Confirmations(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]confirmationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, confirmationResponse{
			ID:       item.ID,
			ToolName: item.ToolName,
			Text:     item.Text,
			Status:   string(item.Status),
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"confirmations": out})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.handleResolve(w, r, true)
}

func (s *Server) handleDecline(w http.ResponseWriter, r *http.Request) {
	s.handleResolve(w, r, false)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request, approve bool) {
	userID, err := s.users.Resolve(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	messageID := r.PathValue("id")
	itemID := r.PathValue("cid")
	if err := s.chat.Resolve(r.Context(), userID, messageID, itemID, approve); err != nil {
		s.writeError(w, err)
		return
	}

	status := string(confirm.StatusDeclined)
	if approve {
		status = string(confirm.StatusApproved)
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"id": itemID, "status": status})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Warn("写入响应失败", "error", err)
	}
}

// writeError 把内部错误码映射到 HTTP 状态码。
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperrors.CodeOf(err) {
	case apperrors.CodeInvalidArgument, apperrors.CodeValidationFailed:
		status = http.StatusBadRequest
	case apperrors.CodeNotFound:
		status = http.StatusNotFound
	case apperrors.CodeForbidden:
		status = http.StatusForbidden
	case apperrors.CodeUpstreamUnavailable, apperrors.CodeRouteUnavailable:
		status = http.StatusBadGateway
	}

	message := err.Error()
	if appErr, ok := apperrors.From(err); ok {
		message = appErr.Message()
	}
	s.writeJSON(w, status, map[string]string{
		"code":    string(apperrors.CodeOf(err)),
		"message": message,
	})
}
