package dex

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	apperrors "AgentTON-Chain/internal/errors"
	"AgentTON-Chain/pkg/logger"
)

// WriteSnapshot 原子地把快照写入文件：先写临时文件再重命名，
// 读取方永远不会看到半写状态。
func WriteSnapshot(path string, snap *Snapshot) error {
	encoded, err := json.Marshal(snap)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageFailure, err, "序列化快照失败")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageFailure, err, "创建快照目录失败")
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageFailure, err, "创建临时快照文件失败")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(encoded); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apperrors.Wrap(apperrors.CodeStorageFailure, err, "写入快照失败")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return apperrors.Wrap(apperrors.CodeStorageFailure, err, "关闭临时快照文件失败")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return apperrors.Wrap(apperrors.CodeStorageFailure, err, "替换快照文件失败")
	}
	return nil
}

// ReadSnapshot 从文件读取快照。
func ReadSnapshot(path string) (*Snapshot, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageFailure, err, "读取快照文件失败")
	}
	var snap Snapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageFailure, err, "解析快照文件失败")
	}
	return &snap, nil
}

// Refresher 周期性抓取 STON.fi 快照并落盘，同时在内存里缓存最新一份。
// 抓取失败只记日志，继续沿用上一份快照。
type Refresher struct {
	client   *StonfiClient
	path     string
	interval time.Duration
	log      *slog.Logger

	mu   sync.RWMutex
	snap *Snapshot
}

// NewRefresher 创建快照刷新器。启动前会尝试加载已有的快照文件。
func NewRefresher(client *StonfiClient, path string, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	r := &Refresher{
		client:   client,
		path:     path,
		interval: interval,
		log:      logger.Named("dex"),
	}
	if snap, err := ReadSnapshot(path); err == nil {
		r.snap = snap
	}
	return r
}

// Current 返回最新的快照，尚未抓取到任何数据时返回错误。
func (r *Refresher) Current() (*Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.snap == nil {
		return nil, apperrors.New(apperrors.CodeRouteUnavailable, "池子快照尚未就绪")
	}
	return r.snap, nil
}

// RefreshOnce 抓取一次快照并落盘。
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	snap, err := r.client.FetchSnapshot(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.snap = snap
	r.mu.Unlock()

	if err := WriteSnapshot(r.path, snap); err != nil {
		r.log.Warn("快照落盘失败", "path", r.path, "error", err)
	}
	r.log.Info("池子快照已刷新", "pools", len(snap.Pools), "routers", len(snap.Routers))
	return nil
}

// Run 周期刷新快照直到上下文取消。
func (r *Refresher) Run(ctx context.Context) error {
	if err := r.RefreshOnce(ctx); err != nil {
		r.log.Warn("首次抓取快照失败", "error", err)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.RefreshOnce(ctx); err != nil {
				r.log.Warn("刷新快照失败", "error", err)
			}
		}
	}
}
