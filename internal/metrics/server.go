package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HealthFunc 返回 /healthz 的 JSON 内容与节点是否健康
type HealthFunc func() (status interface{}, healthy bool)

// Server 指标 HTTP 端点
type Server struct {
	addr     string
	registry *prometheus.Registry
	health   HealthFunc
	logger   *zap.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewServer 创建指标端点
func NewServer(addr string, registry *prometheus.Registry, health HealthFunc, logger *zap.Logger) *Server {
	return &Server{
		addr:     addr,
		registry: registry,
		health:   health,
		logger:   logger,
	}
}

// Handler 路由：/metrics、/healthz
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status, healthy := s.health()
	w.Header().Set("Content-Type", "application/json")
	if !healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Warn("Failed to encode health status", zap.Error(err))
	}
}

// Start 监听端口并在后台提供服务；监听失败时返回错误
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return errors.New("metrics server already running")
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Metrics server stopped unexpectedly", zap.Error(err))
		}
	}()

	s.logger.Info("Metrics server listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Addr 实际监听地址（Start 之前为配置值）
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop 优雅关闭
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	s.server = nil
	s.listener = nil
	if err != nil {
		return fmt.Errorf("failed to stop metrics server: %w", err)
	}
	return nil
}
