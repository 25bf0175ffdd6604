package ton

import (
	"context"
	"math/big"
	"testing"
	"time"

	apperrors "AgentTON-Chain/internal/errors"
)

func TestToNano(t *testing.T) {
	cases := []struct {
		ton  float64
		want string
	}{
		{1, "1000000000"},
		{1.5, "1500000000"},
		{0.000000001, "1"},
	}
	for _, tc := range cases {
		if got := ToNano(tc.ton).String(); got != tc.want {
			t.Errorf("ToNano(%v) = %s, 期望 %s", tc.ton, got, tc.want)
		}
	}
}

func TestMockWalletTransferAdvancesSeqno(t *testing.T) {
	wallet := NewMockWallet("")
	ctx := context.Background()

	before, _ := wallet.Seqno(ctx)
	err := wallet.SendTransfer(ctx, Message{To: "EQRECEIVER", Amount: big.NewInt(1_500_000_000)})
	if err != nil {
		t.Fatalf("发送失败: %v", err)
	}
	after, _ := wallet.Seqno(ctx)
	if after != before+1 {
		t.Fatalf("seqno 应当加一: %d -> %d", before, after)
	}

	txs, err := wallet.RecentTransactions(ctx, 10)
	if err != nil {
		t.Fatalf("读取历史失败: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("期望 1 条交易, 实际 %d", len(txs))
	}
	if len(txs[0].Hash) != 64 {
		t.Fatalf("交易号应为 32 字节十六进制: %q", txs[0].Hash)
	}
	if !txs[0].Outgoing || txs[0].To != "EQRECEIVER" {
		t.Fatalf("交易记录错误: %+v", txs[0])
	}
}

func TestWaitSeqnoReturnsWhenAdvanced(t *testing.T) {
	wallet := NewMockWallet("")
	wallet.SendDelay = 20 * time.Millisecond
	ctx := context.Background()

	before, _ := wallet.Seqno(ctx)
	if err := wallet.SendTransfer(ctx, Message{To: "EQRECEIVER", Amount: big.NewInt(1)}); err != nil {
		t.Fatalf("发送失败: %v", err)
	}

	if err := WaitSeqno(ctx, wallet, before, time.Second, 5*time.Millisecond); err != nil {
		t.Fatalf("等待上链失败: %v", err)
	}
}

func TestWaitSeqnoTimesOut(t *testing.T) {
	wallet := NewMockWallet("")
	ctx := context.Background()

	seqno, _ := wallet.Seqno(ctx)
	err := WaitSeqno(ctx, wallet, seqno, 30*time.Millisecond, 5*time.Millisecond)
	if apperrors.CodeOf(err) != apperrors.CodeExecutionTimeout {
		t.Fatalf("期望超时错误, 实际 %v", err)
	}
}
