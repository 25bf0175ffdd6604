package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"AgentTON-Chain/internal/chat"
	apperrors "AgentTON-Chain/internal/errors"
)

// Archive 把终态任务以 JSON 文件形式写入目录，用于单机开发部署。
// 每个任务一个文件，文件名即任务编号。
type Archive struct {
	dir string
	mu  sync.Mutex
}

// NewArchive 创建文件归档，目录不存在时自动创建。
func NewArchive(dir string) (*Archive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInitializationFailure, err, "创建归档目录失败")
	}
	return &Archive{dir: dir}, nil
}

var _ chat.Archiver = (*Archive)(nil)

type record struct {
	MessageID   string     `json:"message_id"`
	UserID      int64      `json:"user_id"`
	Text        string     `json:"text"`
	Status      string     `json:"status"`
	Reply       string     `json:"reply"`
	Transcript  any        `json:"transcript,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ArchivedAt  time.Time  `json:"archived_at"`
}

// Archive 写入一条终态任务。写入是原子的：先写临时文件再重命名。
func (a *Archive) Archive(_ context.Context, job *chat.Job) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	encoded, err := json.MarshalIndent(record{
		MessageID:   job.ID,
		UserID:      job.UserID,
		Text:        job.Text,
		Status:      string(job.Status),
		Reply:       job.Reply,
		Transcript:  job.Results,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
		CompletedAt: job.CompletedAt,
		ArchivedAt:  time.Now(),
	}, "", "  ")
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageFailure, err, "序列化归档记录失败")
	}

	path := filepath.Join(a.dir, job.ID+".json")
	tmp, err := os.CreateTemp(a.dir, job.ID+".tmp-*")
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageFailure, err, "创建临时归档文件失败")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(encoded); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apperrors.Wrap(apperrors.CodeStorageFailure, err, "写入归档文件失败")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return apperrors.Wrap(apperrors.CodeStorageFailure, err, "关闭临时归档文件失败")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return apperrors.Wrap(apperrors.CodeStorageFailure, err, "替换归档文件失败")
	}
	return nil
}
