package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"AgentTON-Chain/internal/chat"
)

func TestArchiveWritesOneFilePerJob(t *testing.T) {
	dir := t.TempDir()
	archive, err := NewArchive(dir)
	if err != nil {
		t.Fatalf("创建归档失败: %v", err)
	}

	job := &chat.Job{
		ID:        "msg-1",
		UserID:    7,
		Text:      "send 1 ton",
		Status:    chat.StatusCompleted,
		Reply:     "done",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := archive.Archive(context.Background(), job); err != nil {
		t.Fatalf("归档失败: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(dir, "msg-1.json"))
	if err != nil {
		t.Fatalf("读取归档文件失败: %v", err)
	}
	var got record
	if err := json.Unmarshal(content, &got); err != nil {
		t.Fatalf("解析归档文件失败: %v", err)
	}
	if got.MessageID != "msg-1" || got.Status != "COMPLETED" || got.Reply != "done" {
		t.Fatalf("归档内容错误: %+v", got)
	}

	// 重复归档覆盖旧记录，不产生额外文件。
	job.Reply = "done again"
	if err := archive.Archive(context.Background(), job); err != nil {
		t.Fatalf("二次归档失败: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("归档目录应只有一个文件, 实际 %d", len(entries))
	}
}
