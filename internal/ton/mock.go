package ton

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"sync"
	"time"
)

// MockWallet 是仿真钱包。发送立即成功，交易号为伪造的 32 字节哈希，
// seqno 在发送后自增，用于演练完整的确认回路而不触达真实链。
type MockWallet struct {
	mu      sync.Mutex
	address string
	seqno   uint32
	history []Transaction

	// SendDelay 模拟广播与上链之间的延迟，零值表示立即可见。
	SendDelay time.Duration
}

// NewMockWallet 创建仿真钱包。
func NewMockWallet(address string) *MockWallet {
	if address == "" {
		address = "EQMOCKWALLET0000000000000000000000000000000000000"
	}
	return &MockWallet{address: address, seqno: 1}
}

var _ Wallet = (*MockWallet)(nil)

func (w *MockWallet) Address() string {
	return w.address
}

func (w *MockWallet) Seqno(_ context.Context) (uint32, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seqno, nil
}

// SendTransfer 记录交易并伪造交易哈希。
func (w *MockWallet) SendTransfer(_ context.Context, msg Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	tx := Transaction{
		Hash:      fakeTxID(),
		To:        msg.To,
		Amount:    new(big.Int).Set(msg.Amount),
		Outgoing:  true,
		Timestamp: time.Now(),
	}

	apply := func() {
		w.mu.Lock()
		w.history = append([]Transaction{tx}, w.history...)
		w.seqno++
		w.mu.Unlock()
	}

	if w.SendDelay > 0 {
		time.AfterFunc(w.SendDelay, apply)
		return nil
	}
	w.history = append([]Transaction{tx}, w.history...)
	w.seqno++
	return nil
}

func (w *MockWallet) RecentTransactions(_ context.Context, limit int) ([]Transaction, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if limit <= 0 || limit > len(w.history) {
		limit = len(w.history)
	}
	out := make([]Transaction, limit)
	copy(out, w.history[:limit])
	return out, nil
}

// fakeTxID 生成 32 字节的随机十六进制交易号。
func fakeTxID() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return hex.EncodeToString(make([]byte, 32))
	}
	return hex.EncodeToString(buf)
}
