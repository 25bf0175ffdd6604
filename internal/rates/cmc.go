package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "AgentTON-Chain/internal/errors"
)

const (
	cmcDefaultBaseURL = "https://pro-api.coinmarketcap.com"

	// TON 主网在 CoinMarketCap DEX 接口中的网络编号。
	cmcTonNetworkID = "173"
)

// CMCSource 通过 CoinMarketCap 的 DEX 行情接口查询 Jetton 对 USDT 的价格。
type CMCSource struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewCMCSource 创建 CoinMarketCap 行情源。
func NewCMCSource(baseURL, apiKey string) *CMCSource {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = cmcDefaultBaseURL
	}
	return &CMCSource{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(apiKey),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

var _ DexQuoter = (*CMCSource)(nil)

// TokenToUSDT 按 Jetton 主合约地址查询该代币的美元报价。
func (s *CMCSource) TokenToUSDT(ctx context.Context, jettonMaster string) (float64, error) {
	if s.apiKey == "" {
		return 0, apperrors.New(apperrors.CodeUpstreamUnavailable, "未配置 CoinMarketCap API Key")
	}
	jettonMaster = strings.TrimSpace(jettonMaster)
	if jettonMaster == "" {
		return 0, apperrors.New(apperrors.CodeInvalidArgument, "Jetton 合约地址为空")
	}

	query := url.Values{}
	query.Set("contract_address", jettonMaster)
	query.Set("network_id", cmcTonNetworkID)
	endpoint := s.baseURL + "/v4/dex/pairs/quotes/latest?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeUpstreamUnavailable, err, "构建 CoinMarketCap 请求失败")
	}
	req.Header.Set("X-CMC_PRO_API_KEY", s.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeUpstreamUnavailable, err, "请求 CoinMarketCap 失败")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, apperrors.New(apperrors.CodeUpstreamUnavailable,
			fmt.Sprintf("CoinMarketCap 返回错误状态 %d", resp.StatusCode))
	}

	var decoded struct {
		Data []struct {
			Quote []struct {
				Price float64 `json:"price"`
			} `json:"quote"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return 0, apperrors.Wrap(apperrors.CodeUpstreamUnavailable, err, "解析 CoinMarketCap 响应失败")
	}

	if len(decoded.Data) == 0 || len(decoded.Data[0].Quote) == 0 {
		return 0, apperrors.New(apperrors.CodeNotFound, "CoinMarketCap 未返回该代币的报价")
	}
	price := decoded.Data[0].Quote[0].Price
	if price <= 0 {
		return 0, apperrors.New(apperrors.CodeUpstreamUnavailable, "CoinMarketCap 返回的价格无效")
	}
	return price, nil
}
