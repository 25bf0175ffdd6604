package ton

import (
	"context"
	"fmt"
	"math/big"
	"time"

	apperrors "AgentTON-Chain/internal/errors"
)

// DefaultTonMinter 是在池子数据中代表原生 TON 的约定地址。
// DEX 把 TON 包装成 pTon 参与交易，快照里用这个伪 minter 标识。
const DefaultTonMinter = "EQAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAM9c"

// Message 是一条待发送的内部消息。金额以 nanoton 计。
type Message struct {
	To      string
	Amount  *big.Int
	Payload []byte
	Comment string
}

// Transaction 是钱包账户上的一条历史交易。
type Transaction struct {
	Hash      string
	To        string
	Amount    *big.Int
	Outgoing  bool
	Timestamp time.Time
}

// Wallet 抽象与 TON 钱包账户的交互。实现方可以对接真实节点，
// 也可以是测试与演练环境里的仿真实现。
type Wallet interface {
	// Address 返回钱包地址。
	Address() string

	// Seqno 返回钱包当前的序列号。每上链一笔外部消息加一。
	Seqno(ctx context.Context) (uint32, error)

	// SendTransfer 签名并广播一条转账消息，立即返回不等待上链。
	SendTransfer(ctx context.Context, msg Message) error

	// RecentTransactions 返回最近的账户交易，新的在前。
	RecentTransactions(ctx context.Context, limit int) ([]Transaction, error)
}

// ToNano 把 TON 数量转换为 nanoton 整数，向下取整。
func ToNano(ton float64) *big.Int {
	scaled := new(big.Float).Mul(big.NewFloat(ton), big.NewFloat(1e9))
	result, _ := scaled.Int(nil)
	return result
}

// FromNano 把 nanoton 转换回 TON 浮点数，仅用于展示。
func FromNano(nano *big.Int) float64 {
	value, _ := new(big.Float).Quo(new(big.Float).SetInt(nano), big.NewFloat(1e9)).Float64()
	return value
}

// WaitSeqno 轮询钱包序列号直到超过 prev，以此确认外部消息已上链。
// 超时返回 CodeExecutionTimeout。
func WaitSeqno(ctx context.Context, wallet Wallet, prev uint32, timeout, poll time.Duration) error {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	if poll <= 0 {
		poll = 1500 * time.Millisecond
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		seqno, err := wallet.Seqno(ctx)
		if err == nil && seqno > prev {
			return nil
		}

		if time.Now().After(deadline) {
			return apperrors.New(apperrors.CodeExecutionTimeout,
				fmt.Sprintf("等待交易上链超时 (seqno 停留在 %d)", prev))
		}
		select {
		case <-ctx.Done():
			return apperrors.Wrap(apperrors.CodeExecutionTimeout, ctx.Err(), "等待交易上链被取消")
		case <-ticker.C:
		}
	}
}
