package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAuditTrailRollsIntoSegments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")

	trail, err := newAuditTrail(path, 1, 4)
	if err != nil {
		t.Fatalf("创建审计日志失败: %v", err)
	}
	defer trail.Close()
	// 压低段上限以便触发切段。
	trail.limit = 32

	line := []byte(strings.Repeat("x", 20) + "\n")
	for i := 0; i < 4; i++ {
		if _, err := trail.Write(line); err != nil {
			t.Fatalf("写入失败: %v", err)
		}
	}

	entries, err := filepath.Glob(path + ".*")
	if err != nil {
		t.Fatalf("枚举段文件失败: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("超过大小上限后应切出历史段")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("活跃文件应始终存在: %v", err)
	}
}

func TestAuditTrailPruneKeepsNewest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")

	trail, err := newAuditTrail(path, 1, 2)
	if err != nil {
		t.Fatalf("创建审计日志失败: %v", err)
	}
	defer trail.Close()

	// 预置三个历史段，时间戳字典序即时间序。
	for _, stamp := range []string{"20260101T000000", "20260102T000000", "20260103T000000"} {
		if err := os.WriteFile(path+"."+stamp, []byte("old\n"), 0o600); err != nil {
			t.Fatalf("预置段文件失败: %v", err)
		}
	}

	trail.prune()

	entries, _ := filepath.Glob(path + ".*")
	if len(entries) != 2 {
		t.Fatalf("期望保留 2 个段, 实际 %d", len(entries))
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry, "20260101T000000") {
			t.Fatal("最老的段应被清理")
		}
	}
}
