package dex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	apperrors "AgentTON-Chain/internal/errors"
)

const (
	stonfiDefaultBaseURL = "https://api.ston.fi"
	stonfiRetryBackoff   = 300 * time.Millisecond
)

// StonfiClient 从 STON.fi 的公开接口抓取池子与路由列表。
type StonfiClient struct {
	baseURL    string
	retries    int
	httpClient *http.Client
}

// StonfiOption 配置 StonfiClient 的可选参数。
type StonfiOption func(*StonfiClient)

// WithTimeout 设置单次请求的超时时间。
func WithTimeout(timeout time.Duration) StonfiOption {
	return func(c *StonfiClient) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithRetries 设置失败后的重试次数。
func WithRetries(retries int) StonfiOption {
	return func(c *StonfiClient) {
		if retries >= 0 {
			c.retries = retries
		}
	}
}

// NewStonfiClient 创建 STON.fi 客户端。
func NewStonfiClient(baseURL string, opts ...StonfiOption) *StonfiClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = stonfiDefaultBaseURL
	}
	client := &StonfiClient{
		baseURL: baseURL,
		retries: 2,
		httpClient: &http.Client{
			Timeout: 12 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// FetchSnapshot 抓取完整的池子与路由快照。
func (c *StonfiClient) FetchSnapshot(ctx context.Context) (*Snapshot, error) {
	var pools struct {
		PoolList []Pool `json:"pool_list"`
	}
	if err := c.getJSON(ctx, "/v1/pools", &pools); err != nil {
		return nil, err
	}

	var routers struct {
		RouterList []Router `json:"router_list"`
	}
	if err := c.getJSON(ctx, "/v1/routers", &routers); err != nil {
		return nil, err
	}

	return &Snapshot{
		Pools:     pools.PoolList,
		Routers:   routers.RouterList,
		FetchedAt: time.Now().Unix(),
	}, nil
}

// getJSON 执行一次带重试的 GET 请求。退避时间随尝试次数线性增长。
func (c *StonfiClient) getJSON(ctx context.Context, path string, target any) error {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			backoff := stonfiRetryBackoff * time.Duration(attempt+1)
			select {
			case <-ctx.Done():
				return apperrors.Wrap(apperrors.CodeUpstreamUnavailable, ctx.Err(), "抓取池子数据被取消")
			case <-time.After(backoff):
			}
		}

		lastErr = c.doOnce(ctx, path, target)
		if lastErr == nil {
			return nil
		}
	}
	return apperrors.Wrap(apperrors.CodeUpstreamUnavailable, lastErr, "抓取 "+path+" 失败")
}

func (c *StonfiClient) doOnce(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("状态码 %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(target)
}
