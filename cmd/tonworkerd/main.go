package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"AgentTON-Chain/internal/bus"
	"AgentTON-Chain/internal/config"
	"AgentTON-Chain/internal/dex"
	"AgentTON-Chain/internal/ton"
	"AgentTON-Chain/internal/worker"
	"AgentTON-Chain/pkg/logger"
)

// main 是链上执行进程的入口。它消费转账与兑换命令，
// 维护 DEX 池子快照，并把执行结果发回总线。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("tonworkerd 运行失败: %v", err)
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
		Service:     "tonworkerd",
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

	queue := cfg.Bus.Queue
	if queue == "" {
		queue = "ton-worker.in"
	}
	eventBus, err := bus.NewRabbitMQBus(bus.RabbitMQConfig{
		URL:      cfg.Bus.URL,
		Exchange: cfg.Bus.Exchange,
		Queue:    queue,
		Bindings: []string{bus.TypeSendTon, bus.TypeSwapTon},
		Prefetch: cfg.Bus.Prefetch,
	})
	if err != nil {
		return err
	}
	defer eventBus.Close()

	// 池子快照：启动时加载旧文件，之后周期刷新。
	stonfi := dex.NewStonfiClient(cfg.Dex.BaseURL,
		dex.WithTimeout(time.Duration(cfg.Dex.RequestTimeoutMS)*time.Millisecond),
		dex.WithRetries(cfg.Dex.Retries),
	)
	refresher := dex.NewRefresher(stonfi, cfg.Dex.SnapshotFile,
		time.Duration(cfg.Dex.RefreshSeconds)*time.Second)

	// 仿真钱包：发送即成功并伪造交易号，用于无真实链的演练环境。
	wallet := ton.NewMockWallet(cfg.Ton.Wallet)

	w := worker.New(worker.Config{
		Bus:              eventBus,
		Wallet:           wallet,
		Pools:            refresher,
		InclusionTimeout: cfg.Ton.InclusionTimeout(),
		InclusionPoll:    cfg.Ton.InclusionPoll(),
	})

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return refresher.Run(ctx) })
	group.Go(func() error { return w.Run(ctx) })
	return group.Wait()
}
