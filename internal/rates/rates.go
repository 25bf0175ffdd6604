package rates

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "AgentTON-Chain/internal/errors"
	"AgentTON-Chain/pkg/logger"
)

// Source 表示一个可以查询 TON 对 USDT 价格的行情源。
type Source interface {
	TonToUSDT(ctx context.Context) (float64, error)
}

// DexQuoter 表示一个可以查询 Jetton 对 USDT 价格的 DEX 行情源。
type DexQuoter interface {
	TokenToUSDT(ctx context.Context, jettonMaster string) (float64, error)
}

// Cache 是行情值的短 TTL 缓存。Get 未命中时返回 ok=false 且无错误。
type Cache interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisCache 用 Redis 实现行情缓存。
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache 包装一个已建立的 Redis 客户端。
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get 实现 Cache，redis.Nil 视为未命中。
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	raw, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return raw, true, nil
}

// Set 实现 Cache。
func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

var _ Cache = (*RedisCache)(nil)

// Service 聚合行情源并做短 TTL 缓存，避免规划阶段的重复工具调用
// 打满上游接口。cache 可为 nil，此时直接穿透。
type Service struct {
	ton   Source
	dex   DexQuoter
	cache Cache
	ttl   time.Duration
	log   *slog.Logger
}

// NewService 构建行情服务。
func NewService(ton Source, dex DexQuoter, cache Cache, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Service{
		ton:   ton,
		dex:   dex,
		cache: cache,
		ttl:   ttl,
		log:   logger.Named("rates"),
	}
}

// TonToUSDT 返回 1 TON 对应的 USDT 数量。
func (s *Service) TonToUSDT(ctx context.Context) (float64, error) {
	const key = "rates:ton_usdt"
	if value, ok := s.cached(ctx, key); ok {
		return value, nil
	}

	value, err := s.ton.TonToUSDT(ctx)
	if err != nil {
		return 0, err
	}
	s.store(ctx, key, value)
	return value, nil
}

// TokenToTon 返回 1 个 Jetton 对应的 TON 数量，保留 6 位小数。
// 计算方式为 token/USDT 除以 TON/USDT，两个行情源都必须可用。
func (s *Service) TokenToTon(ctx context.Context, jettonMaster string) (float64, error) {
	if s.dex == nil {
		return 0, apperrors.New(apperrors.CodeUpstreamUnavailable, "未配置 DEX 行情源")
	}

	key := "rates:token_ton:" + jettonMaster
	if value, ok := s.cached(ctx, key); ok {
		return value, nil
	}

	tokenUSDT, err := s.dex.TokenToUSDT(ctx, jettonMaster)
	if err != nil {
		return 0, err
	}
	tonUSDT, err := s.TonToUSDT(ctx)
	if err != nil {
		return 0, err
	}
	if tonUSDT <= 0 {
		return 0, apperrors.New(apperrors.CodeUpstreamUnavailable, "TON 价格无效")
	}

	value := math.Round(tokenUSDT/tonUSDT*1e6) / 1e6
	s.store(ctx, key, value)
	return value, nil
}

func (s *Service) cached(ctx context.Context, key string) (float64, bool) {
	if s.cache == nil {
		return 0, false
	}
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn("读取行情缓存失败", "key", key, "error", err)
		return 0, false
	}
	if !ok {
		return 0, false
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func (s *Service) store(ctx context.Context, key string, value float64) {
	if s.cache == nil {
		return
	}
	raw := strconv.FormatFloat(value, 'f', -1, 64)
	if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
		s.log.Warn("写入行情缓存失败", "key", key, "error", err)
	}
}

// FormatRate 把价格格式化成回复里展示的字符串。
func FormatRate(value float64) string {
	return fmt.Sprintf("%.6f", value)
}
