package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	logpkg "github.com/mshaibu3/hakilix-core/common/logger"
	"github.com/mshaibu3/hakilix-core/internal/config"
	"github.com/mshaibu3/hakilix-core/internal/service"

	"go.uber.org/zap"
)

const (
	serviceName     = "hakilix-edge"
	version         = "1.0.0"
	shutdownTimeout = 10 * time.Second
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化Logger
	logger, err := logpkg.NewLogger(logpkg.Options{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: serviceName,
		DeviceID:    cfg.DeviceID,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting hakilix-edge service",
		zap.String("version", version),
		zap.String("device_id", cfg.DeviceID),
		zap.String("mode", cfg.Mode()),
		zap.String("collector_url", cfg.Uplink.CollectorURL),
		zap.Duration("cycle_period", cfg.Cycle.Period),
		zap.Float64("fall_velocity_limit", cfg.Fusion.FallVelocityLimit),
	)

	// 创建服务
	edgeService, err := service.NewEdgeService(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create edge service", zap.Error(err))
	}

	// 启动服务
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 在 goroutine 中启动服务
	errChan := make(chan error, 1)
	go func() {
		errChan <- edgeService.Start(ctx)
	}()

	// 等待中断信号或服务退出
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil {
			logger.Error("Edge service exited", zap.Error(err))
		}
	}

	// 优雅关闭
	cancel()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	if err := edgeService.Stop(stopCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Service stopped")
}
