package chat

import (
	"context"
	"sync"

	apperrors "AgentTON-Chain/internal/errors"
)

// Store 抽象任务状态的读写。实现必须保证 BeginResume 的原子性：
// 对同一个任务并发调用时只有一个调用方能拿到 true。
type Store interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	Update(ctx context.Context, job *Job) error

	// BeginResume 原子地标记任务进入恢复执行阶段。
	// 已标记过或任务不存在时返回 false。
	BeginResume(ctx context.Context, id string) (bool, error)
}

// MemoryStore 基于内存 map 的任务存储，读写均做深拷贝。
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewMemoryStore 创建内存任务存储。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job)}
}

var _ Store = (*MemoryStore)(nil)

// Create 写入新任务，任务编号重复时报错。
func (s *MemoryStore) Create(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return apperrors.New(apperrors.CodeStorageFailure, "任务编号已存在: "+job.ID)
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

// Get 返回任务的拷贝，不存在时返回 CodeNotFound。
func (s *MemoryStore) Get(_ context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, apperrors.New(apperrors.CodeNotFound, "任务不存在: "+id)
	}
	return job.Clone(), nil
}

// Update 覆盖写任务状态，保留恢复标记。
func (s *MemoryStore) Update(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.jobs[job.ID]
	if !ok {
		return apperrors.New(apperrors.CodeNotFound, "任务不存在: "+job.ID)
	}
	clone := job.Clone()
	clone.resumeStarted = existing.resumeStarted || job.resumeStarted
	s.jobs[job.ID] = clone
	return nil
}

// BeginResume 原子置位恢复标记。
func (s *MemoryStore) BeginResume(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return false, apperrors.New(apperrors.CodeNotFound, "任务不存在: "+id)
	}
	if job.resumeStarted {
		return false, nil
	}
	job.resumeStarted = true
	return true, nil
}
