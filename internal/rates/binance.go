package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "AgentTON-Chain/internal/errors"
)

const binanceDefaultBaseURL = "https://api.binance.com/api/v3"

// BinanceSource 从 Binance 公共行情接口获取 TONUSDT 最新价。
type BinanceSource struct {
	baseURL    string
	httpClient *http.Client
}

// NewBinanceSource 创建 Binance 行情源，baseURL 为空时使用官方地址。
func NewBinanceSource(baseURL string) *BinanceSource {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = binanceDefaultBaseURL
	}
	return &BinanceSource{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

var _ Source = (*BinanceSource)(nil)

// TonToUSDT 查询 TONUSDT 现货价格。
func (s *BinanceSource) TonToUSDT(ctx context.Context) (float64, error) {
	endpoint := s.baseURL + "/ticker/price?symbol=TONUSDT"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeUpstreamUnavailable, err, "构建 Binance 请求失败")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeUpstreamUnavailable, err, "请求 Binance 失败")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, apperrors.New(apperrors.CodeUpstreamUnavailable,
			fmt.Sprintf("Binance 返回错误状态 %d", resp.StatusCode))
	}

	var decoded struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return 0, apperrors.Wrap(apperrors.CodeUpstreamUnavailable, err, "解析 Binance 响应失败")
	}

	price, err := strconv.ParseFloat(decoded.Price, 64)
	if err != nil || price <= 0 {
		return 0, apperrors.New(apperrors.CodeUpstreamUnavailable, "Binance 返回的价格无效")
	}
	return price, nil
}
