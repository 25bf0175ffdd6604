// Package logger 提供进程级的结构化日志。普通日志与审计日志分流：
// 审计日志只记录资金敏感动作（命令投递、确认裁决、上链回执），
// 按大小切段归档；普通日志走标准输出或文件。
package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Config 描述进程日志的行为。
type Config struct {
	// Service 写入每条日志的 service 字段，空值时取 agentton。
	Service     string
	Level       string
	Format      string
	OutputPaths []string
	Audit       AuditConfig
}

// AuditConfig 控制审计日志。审计条目与普通日志分离存放，
// 供对账与事故回溯使用。
type AuditConfig struct {
	Enabled bool
	Path    string
	// MaxSizeMB 是单个段文件的大小上限，超过后切出新段。
	MaxSizeMB int
	// MaxSegments 是保留的历史段数量，最老的段被清理。
	MaxSegments int
}

var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

var (
	defaultLogger *slog.Logger
	auditLogger   *slog.Logger
	once          sync.Once
	closers       []io.Closer
	initErr       error
)

// Init 初始化全局日志实例，进程生命周期内只生效一次。
func Init(cfg Config) error {
	once.Do(func() {
		service := cfg.Service
		if service == "" {
			service = "agentton"
		}

		sink, err := combineSinks(cfg.OutputPaths)
		if err != nil {
			initErr = err
			return
		}

		opts := &slog.HandlerOptions{Level: levelOf(cfg.Level), AddSource: true}
		var handler slog.Handler
		if strings.EqualFold(cfg.Format, "text") {
			handler = slog.NewTextHandler(sink, opts)
		} else {
			handler = slog.NewJSONHandler(sink, opts)
		}
		defaultLogger = slog.New(handler).With(slog.String("service", service))

		auditLogger = defaultLogger
		if cfg.Audit.Enabled {
			audit, err := openAuditLogger(cfg.Audit, service)
			if err != nil {
				initErr = err
				return
			}
			auditLogger = audit
		}
	})
	if initErr != nil {
		return initErr
	}
	if defaultLogger == nil {
		return errors.New("日志已初始化过")
	}
	return nil
}

// combineSinks 打开所有输出目标，多个目标合并成一个 writer。
func combineSinks(paths []string) (io.Writer, error) {
	if len(paths) == 0 {
		return os.Stdout, nil
	}
	writers := make([]io.Writer, 0, len(paths))
	for _, path := range paths {
		writer, err := openSink(path)
		if err != nil {
			return nil, err
		}
		writers = append(writers, writer)
	}
	if len(writers) == 1 {
		return writers[0], nil
	}
	return io.MultiWriter(writers...), nil
}

func openSink(path string) (io.Writer, error) {
	switch strings.ToLower(path) {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建日志目录失败: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("打开日志文件 %s 失败: %w", path, err)
	}
	closers = append(closers, file)
	return file, nil
}

// openAuditLogger 构建审计日志实例。审计日志固定使用 JSON 格式与
// Info 级别，始终写入独立的切段文件。
func openAuditLogger(cfg AuditConfig, service string) (*slog.Logger, error) {
	if cfg.Path == "" {
		return nil, errors.New("启用审计日志时必须指定路径")
	}
	trail, err := newAuditTrail(cfg.Path, cfg.MaxSizeMB, cfg.MaxSegments)
	if err != nil {
		return nil, err
	}
	closers = append(closers, trail)
	handler := slog.NewJSONHandler(trail, &slog.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(handler).With(
		slog.String("service", service),
		slog.String("log", "audit"),
	), nil
}

func levelOf(name string) slog.Level {
	if level, ok := levelNames[strings.ToLower(name)]; ok {
		return level
	}
	return slog.LevelInfo
}

// L 返回全局日志实例。未显式初始化时使用默认配置。
func L() *slog.Logger {
	if defaultLogger == nil {
		_ = Init(Config{})
	}
	return defaultLogger
}

// Audit 返回审计日志实例。未启用审计时退化为普通日志。
func Audit() *slog.Logger {
	if auditLogger == nil {
		return L()
	}
	return auditLogger
}

// Named 返回带组件名分组的子日志。
func Named(name string) *slog.Logger {
	return L().WithGroup(name)
}

// Sync 关闭所有打开的日志输出。
func Sync() error {
	var err error
	for _, closer := range closers {
		err = errors.Join(err, closer.Close())
	}
	closers = nil
	return err
}
