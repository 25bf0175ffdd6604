package bus

import (
	"encoding/json"
	"fmt"
	"time"
)

// 事件类型即路由键。命令使用 `<命名空间>.<动词>`，其结果追加 `.result` 后缀。
const (
	TypeSendTon       = "agent-llm.send-ton"
	TypeSendTonResult = "agent-llm.send-ton.result"
	TypeSwapTon       = "agent-llm.swap-ton-to-token"
	TypeSwapTonResult = "agent-llm.swap-ton-to-token.result"
)

// ResultType 返回命令类型对应的结果类型。
func ResultType(commandType string) string {
	return commandType + ".result"
}

// Envelope 是所有总线消息的统一外壳。data 载荷中始终携带发起请求的
// 任务 ID（messageId）与用户 ID，结果消息据此回到原始会话。
type Envelope struct {
	Type        string          `json:"type"`
	OccurredAt  time.Time       `json:"occurredAt"`
	Correlation map[string]any  `json:"correlation,omitempty"`
	Data        json.RawMessage `json:"data"`
}

// NewEnvelope 构造一个带当前时间戳的信封。
func NewEnvelope(eventType string, data any) (Envelope, error) {
	encoded, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("序列化事件载荷失败: %w", err)
	}
	return Envelope{
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       encoded,
	}, nil
}

// DecodeData 将信封的 data 载荷解析到目标结构。
func (e Envelope) DecodeData(target any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("事件 %s 缺少 data 载荷", e.Type)
	}
	if err := json.Unmarshal(e.Data, target); err != nil {
		return fmt.Errorf("解析事件 %s 的载荷失败: %w", e.Type, err)
	}
	return nil
}

// SendTonCommand 是发送 TON 的命令载荷。
type SendTonCommand struct {
	MessageID       string  `json:"messageId"`
	UserID          int64   `json:"userId"`
	TonAmount       float64 `json:"tonAmount"`
	ReceiverAddress string  `json:"receiverAddress"`
}

// SendTonResult 是发送 TON 的结果载荷。
type SendTonResult struct {
	MessageID       string  `json:"messageId"`
	UserID          int64   `json:"userId"`
	TonAmount       float64 `json:"tonAmount"`
	ReceiverAddress string  `json:"receiverAddress"`
	Success         bool    `json:"success"`
	TxID            string  `json:"txId,omitempty"`
	Error           string  `json:"error,omitempty"`
}

// SwapTonCommand 是 TON 换取 Jetton 的命令载荷。swapTonAmount 可能缺失，
// 发起方在无法获取行情时只携带最小目标数量。
type SwapTonCommand struct {
	MessageID          string   `json:"messageId"`
	UserID             int64    `json:"userId"`
	JettonMaster       string   `json:"jettonMaster"`
	MinimalTokenAmount float64  `json:"minimalTokenAmount"`
	SwapTonAmount      *float64 `json:"swapTonAmount,omitempty"`
}

// SwapTonResult 是换币操作的结果载荷。金额一律以十进制字符串表示，
// 避免 JSON 丢失精度。
type SwapTonResult struct {
	MessageID     string `json:"messageId"`
	UserID        int64  `json:"userId"`
	JettonMinter  string `json:"jettonMinter,omitempty"`
	Success       bool   `json:"success"`
	TxID          string `json:"txId,omitempty"`
	Router        string `json:"router,omitempty"`
	Pool          string `json:"pool,omitempty"`
	PTon          string `json:"pTon,omitempty"`
	OfferNanotons string `json:"offerNanotons,omitempty"`
	MinAskNano    string `json:"minAskNano,omitempty"`
	Error         string `json:"error,omitempty"`
	Details       string `json:"details,omitempty"`
}
