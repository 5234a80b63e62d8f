package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"backendmanager/console/internal/auth"
	jwtpkg "backendmanager/console/internal/auth/jwt"
	"backendmanager/console/internal/cache"
	"backendmanager/console/internal/config"
	"backendmanager/console/internal/dashboard"
	"backendmanager/console/internal/dashboard/views"
	"backendmanager/console/internal/health"
	"backendmanager/console/internal/logger"
	"backendmanager/console/internal/monitoring"
	"backendmanager/console/internal/pool"
	"backendmanager/console/internal/storage"
	"backendmanager/console/internal/storage/memory"
	redisstore "backendmanager/console/internal/storage/redis"
	sqlstore "backendmanager/console/internal/storage/sql"
	httptransport "backendmanager/console/internal/transport/http"
	"backendmanager/console/internal/upstream"
	"backendmanager/console/internal/websocket"
)

const version = "1.0.0"

const (
	notificationPruneInterval = 10 * time.Second
	sessionSweepInterval      = 5 * time.Minute
	healthCheckInterval       = 30 * time.Second
	auditWorkers              = 2
	auditQueueSize            = 256
	sessionCacheSize          = 10000
)

// main 启动 backend manager 控制台。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     cfg.Log.File,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting backend manager console",
		zap.String("version", version),
		zap.String("log_level", cfg.Log.Level),
		zap.String("fallback_mode", cfg.Upstream.FallbackMode),
		zap.String("upstream", cfg.Upstream.BaseURL),
	)

	metrics := monitoring.NewMetrics()

	client := upstream.NewClient(upstream.Config{
		BaseURL:   cfg.Upstream.BaseURL,
		Timeout:   cfg.Upstream.Timeout,
		RateLimit: cfg.Upstream.RateLimit,
		Burst:     cfg.Upstream.Burst,
	}, metrics, log)

	// 初始化存储层
	pingers := make(map[string]storage.Pinger)
	var closers []func() error

	sessions, err := initializeSessionStore(cfg, log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize session store: %v", err))
	}
	if p, ok := sessions.(storage.Pinger); ok {
		pingers["session-store"] = p
	}
	if c, ok := sessions.(interface{ Close() error }); ok {
		closers = append(closers, c.Close)
	}

	auditStore, err := initializeAuditStore(cfg, log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize audit store: %v", err))
	}
	if p, ok := auditStore.(storage.Pinger); ok {
		pingers["audit-store"] = p
	}
	if c, ok := auditStore.(interface{ Close() error }); ok {
		closers = append(closers, c.Close)
	}

	// 认证
	jwtManager := jwtpkg.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.Session.TTL)
	bridge := auth.NewBridge(auth.Config{
		StaffLoginURL:   cfg.Auth.StaffLoginURL,
		StaffProfileURL: cfg.Auth.StaffProfileURL,
		TokenURL:        cfg.Auth.TokenURL,
		ClientID:        cfg.Auth.ClientID,
		APIKey:          cfg.Auth.APIKey,
		TokenSkew:       cfg.Auth.TokenSkew,
		SessionTTL:      cfg.Session.TTL,
	}, sessions, client, metrics, log)

	// 控制台服务
	renderer, err := views.NewRenderer(cfg.UI.Location)
	if err != nil {
		panic(fmt.Sprintf("failed to parse templates: %v", err))
	}

	workers := pool.NewWorkerPool(auditWorkers, auditQueueSize, log)
	auditor := dashboard.NewAuditor(auditStore, workers, log)

	console := dashboard.NewService(dashboard.Config{
		FallbackMode:    cfg.Upstream.FallbackMode,
		NotificationTTL: cfg.UI.NotificationTTL,
	}, client, bridge, renderer, auditor, metrics, log)

	wsHub := websocket.NewHub(cfg.CORS.AllowedOrigins, metrics, log)
	console.SetNotifier(wsHub)
	bridge.OnSignOut(console.Discard)
	bridge.OnSignOut(wsHub.Disconnect)

	// 健康检查
	healthChecker := health.NewChecker(health.Options{
		UpstreamURL: cfg.Upstream.HealthURL,
		Stores:      pingers,
	}, log)
	reporter := monitoring.NewHealthChecker(log, version)
	for name, p := range pingers {
		reporter.AddCheck(name, true, p.Ping)
	}
	log.Info("monitoring system initialized", zap.Int("dependency_checks", len(pingers)))

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:       cfg,
		Console:      console,
		Auth:         bridge,
		JWTManager:   jwtManager,
		Metrics:      metrics,
		Logger:       log,
		WebSocketHub: wsHub,
		Health:       healthChecker,
		Reporter:     reporter,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// 审计协程不跟随信号退出，由 Stop 排空队列
	workers.Start(context.Background())

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// WebSocket Hub goroutine
	group.Go(func() error {
		log.Info("starting WebSocket hub")
		wsHub.Run(groupCtx)
		return nil
	})

	// 定时清理过期通知
	group.Go(func() error {
		ticker := time.NewTicker(notificationPruneInterval)
		defer ticker.Stop()

		for {
			select {
			case <-groupCtx.Done():
				return nil
			case now := <-ticker.C:
				if n := console.PruneNotifications(now); n > 0 {
					log.Debug("expired notifications pruned", zap.Int("count", n))
				}
			}
		}
	})

	// 定时清理过期会话与闲置的会话状态
	group.Go(func() error {
		ticker := time.NewTicker(sessionSweepInterval)
		defer ticker.Stop()

		log.Info("starting session cleanup task", zap.Duration("interval", sessionSweepInterval))

		for {
			select {
			case <-groupCtx.Done():
				log.Info("session cleanup task stopped")
				return nil
			case now := <-ticker.C:
				count, err := sessions.DeleteExpiredSessions(groupCtx, now)
				if err != nil {
					log.Error("failed to cleanup expired sessions", zap.Error(err))
				} else if count > 0 {
					log.Info("expired sessions cleaned up", zap.Int("count", count))
				}
				console.PruneIdle(now, cfg.Session.TTL)
				log.Debug("session sweep finished",
					zap.Int("session_states", console.Sessions()),
					zap.Int("websocket_clients", wsHub.Clients()),
				)
			}
		}
	})

	// 监控服务 goroutine
	group.Go(func() error {
		log.Info("starting monitoring services")
		reporter.StartPeriodicHealthCheck(groupCtx, healthCheckInterval)
		return nil
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...",
			zap.Int("websocket_clients", wsHub.Clients()),
		)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		workers.Stop()
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				log.Warn("store close warning", zap.Error(err))
			}
		}

		log.Info("servers stopped")
		return nil
	})

	// 等待所有 goroutine 完成
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// initializeSessionStore 根据配置选择内存或 Redis 会话存储
func initializeSessionStore(cfg *config.Config, log *zap.Logger) (storage.SessionStore, error) {
	if cfg.Session.Store != "redis" {
		log.Info("using memory session store (sessions are lost on restart)")
		return memory.NewSessionStore(), nil
	}

	client, err := redisstore.New(&cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis session store: %w", err)
	}
	log.Info("using redis session store with local cache",
		zap.String("address", cfg.Redis.Address),
		zap.Duration("cache_ttl", cache.DefaultSessionTTL),
	)
	return cache.NewSessionStore(client, sessionCacheSize, cache.DefaultSessionTTL), nil
}

// initializeAuditStore 初始化审计存储，未配置时返回 nil（审计关闭）
func initializeAuditStore(cfg *config.Config, log *zap.Logger) (storage.AuditStore, error) {
	switch cfg.Audit.Type {
	case "":
		log.Info("audit trail disabled")
		return nil, nil
	case "memory":
		log.Info("using memory audit store")
		return memory.NewAuditStore(0), nil
	}

	log.Info("initializing database audit store", zap.String("database_type", cfg.Audit.Type))
	store, err := sqlstore.NewStore(
		cfg.Audit.Type,
		cfg.Audit.DSN,
		cfg.Audit.MaxOpenConns,
		cfg.Audit.MaxIdleConns,
		cfg.Audit.ConnMaxLifetime,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit store: %w", err)
	}

	log.Info("database audit store initialized successfully", zap.String("database_type", cfg.Audit.Type))
	return store, nil
}
