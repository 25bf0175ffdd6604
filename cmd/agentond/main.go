package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"AgentTON-Chain/internal/api"
	"AgentTON-Chain/internal/bus"
	"AgentTON-Chain/internal/chat"
	"AgentTON-Chain/internal/config"
	"AgentTON-Chain/internal/confirm"
	"AgentTON-Chain/internal/llm/openai"
	"AgentTON-Chain/internal/observability/alerting"
	"AgentTON-Chain/internal/planner"
	"AgentTON-Chain/internal/rates"
	"AgentTON-Chain/internal/storage/file"
	"AgentTON-Chain/internal/storage/mysql"
	"AgentTON-Chain/pkg/logger"
)

// main 是会话编排进程的入口。它暴露 REST 接口、驱动规划与确认，
// 并消费执行进程发回的结果事件。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("agentond 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("AGENTTON_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "agentton.yaml")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Service:     "agentond",
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.OutputPaths,
		Audit: logger.AuditConfig{
			Enabled: cfg.Logging.AuditPath != "",
			Path:    cfg.Logging.AuditPath,
		},
	}); err != nil {
		return err
	}
	defer logger.Sync()

	// 大模型客户端。
	apiKey := cfg.LLM.OpenAI.APIKey
	if apiKey == "" && cfg.LLM.OpenAI.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.LLM.OpenAI.APIKeyEnv)
	}
	llmClient, err := openai.NewClient(openai.Config{
		APIKey:  apiKey,
		BaseURL: cfg.LLM.OpenAI.BaseURL,
		Model:   cfg.LLM.OpenAI.Model,
		Timeout: cfg.LLM.OpenAI.Timeout(),
	})
	if err != nil {
		return err
	}

	// 行情服务，可选 Redis 缓存。
	var cache rates.Cache
	if cfg.Rates.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Rates.Redis.Address,
			Password: cfg.Rates.Redis.Password,
			DB:       cfg.Rates.Redis.DB,
		})
		defer client.Close()
		cache = rates.NewRedisCache(client)
	}
	cmcKey := cfg.Rates.CMCAPIKey
	if cmcKey == "" && cfg.Rates.CMCAPIKeyEnv != "" {
		cmcKey = os.Getenv(cfg.Rates.CMCAPIKeyEnv)
	}
	rateService := rates.NewService(
		rates.NewBinanceSource(cfg.Rates.BinanceBaseURL),
		rates.NewCMCSource(cfg.Rates.CMCBaseURL, cmcKey),
		cache,
		time.Duration(cfg.Rates.CacheTTLSeconds)*time.Second,
	)

	// 消息总线：发布命令，订阅结果事件。
	queue := cfg.Bus.Queue
	if queue == "" {
		queue = "agent-backend.in"
	}
	eventBus, err := bus.NewRabbitMQBus(bus.RabbitMQConfig{
		URL:      cfg.Bus.URL,
		Exchange: cfg.Bus.Exchange,
		Queue:    queue,
		Bindings: []string{"agent-llm.*.result"},
		Prefetch: cfg.Bus.Prefetch,
	})
	if err != nil {
		return err
	}
	defer eventBus.Close()

	// 终态任务归档。
	archiver, cleanup, err := buildArchiver(cfg)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	chatService := chat.NewService(
		chat.NewMemoryStore(),
		confirm.NewGate(),
		planner.New(llmClient),
		eventBus,
		rateService,
		chat.WithArchiver(archiver),
		chat.WithAlerts(alerting.NewFanout(alerting.LogNotifier{})),
	)

	server := api.NewServer(cfg.Server.Address, chatService, nil)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return server.Run(ctx) })
	group.Go(func() error { return eventBus.Consume(ctx, chatService.BusHandler()) })
	return group.Wait()
}

// buildArchiver 按配置选择归档实现，默认落到本地文件。
func buildArchiver(cfg *config.Config) (chat.Archiver, func(), error) {
	switch cfg.Archive.Driver {
	case "mysql":
		archive, err := mysql.NewArchive(cfg.Archive.DSN)
		if err != nil {
			return nil, nil, err
		}
		return archive, func() { archive.Close() }, nil
	default:
		archive, err := file.NewArchive(cfg.Archive.Dir)
		if err != nil {
			return nil, nil, err
		}
		return archive, nil, nil
	}
}
