package chat

import (
	"context"
	"sync"
	"testing"

	apperrors "AgentTON-Chain/internal/errors"
)

func TestMemoryStoreCreateGetIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	job := &Job{ID: "msg-1", UserID: 7, Status: StatusQueued}
	if err := store.Create(ctx, job); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if err := store.Create(ctx, job); apperrors.CodeOf(err) != apperrors.CodeStorageFailure {
		t.Fatalf("重复编号应报错, 实际 %v", err)
	}

	got, err := store.Get(ctx, "msg-1")
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}

	// 修改读取到的副本不应影响存储内容。
	got.Status = StatusError
	again, _ := store.Get(ctx, "msg-1")
	if again.Status != StatusQueued {
		t.Fatalf("存储被读取方污染: %s", again.Status)
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Get(context.Background(), "missing"); apperrors.CodeOf(err) != apperrors.CodeNotFound {
		t.Fatalf("期望 NotFound, 实际 %v", err)
	}
}

func TestBeginResumeExactlyOnce(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.Create(ctx, &Job{ID: "msg-1"}); err != nil {
		t.Fatalf("写入失败: %v", err)
	}

	var mu sync.Mutex
	wins := 0
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.BeginResume(ctx, "msg-1")
			if err != nil {
				t.Errorf("BeginResume 失败: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("恢复标记应恰好被一个调用方拿到, 实际 %d", wins)
	}
}

func TestUpdatePreservesResumeFlag(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.Create(ctx, &Job{ID: "msg-1", Status: StatusProcessing}); err != nil {
		t.Fatalf("写入失败: %v", err)
	}

	if ok, _ := store.BeginResume(ctx, "msg-1"); !ok {
		t.Fatal("首次 BeginResume 应成功")
	}

	// 外部副本不带恢复标记，覆盖写后标记仍须保留。
	job, _ := store.Get(ctx, "msg-1")
	job.Status = StatusCompleted
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("更新失败: %v", err)
	}

	if ok, _ := store.BeginResume(ctx, "msg-1"); ok {
		t.Fatal("恢复标记不应被覆盖写清除")
	}
}
