package logger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// auditTrail 把审计日志按大小切成带时间戳的段文件。段一旦切出
// 就不再改写，对账时可以按文件名直接定位时间区间。
// 活跃文件始终是配置的路径本身，历史段形如 path.20260828T093000。
type auditTrail struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	limit   int64
	keep    int
	written int64
}

const auditSegmentStamp = "20060102T150405"

func newAuditTrail(path string, maxSizeMB, keep int) (*auditTrail, error) {
	if path == "" {
		return nil, errors.New("审计日志路径为空")
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 64
	}
	if keep <= 0 {
		keep = 12
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建审计日志目录失败: %w", err)
	}
	return &auditTrail{
		path:  path,
		limit: int64(maxSizeMB) * 1024 * 1024,
		keep:  keep,
	}, nil
}

func (t *auditTrail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.open(); err != nil {
		return 0, err
	}
	if t.written+int64(len(p)) > t.limit {
		if err := t.roll(); err != nil {
			return 0, err
		}
		if err := t.open(); err != nil {
			return 0, err
		}
	}
	n, err := t.file.Write(p)
	t.written += int64(n)
	return n, err
}

func (t *auditTrail) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	t.written = 0
	return err
}

func (t *auditTrail) open() error {
	if t.file != nil {
		return nil
	}
	file, err := os.OpenFile(t.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("打开审计日志失败: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("读取审计日志大小失败: %w", err)
	}
	t.file = file
	t.written = info.Size()
	return nil
}

// roll 关闭活跃文件并重命名为时间戳段，然后清理超量的旧段。
func (t *auditTrail) roll() error {
	if t.file != nil {
		_ = t.file.Close()
		t.file = nil
	}
	t.written = 0

	segment := t.path + "." + time.Now().UTC().Format(auditSegmentStamp)
	if err := os.Rename(t.path, segment); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("归档审计日志段失败: %w", err)
	}
	t.prune()
	return nil
}

// prune 按文件名排序清理最老的段。时间戳格式保证字典序即时间序。
func (t *auditTrail) prune() {
	segments, err := filepath.Glob(t.path + ".*")
	if err != nil || len(segments) <= t.keep {
		return
	}
	sort.Strings(segments)
	for _, old := range segments[:len(segments)-t.keep] {
		_ = os.Remove(old)
	}
}
