package health

import (
	"context"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"backendmanager/console/internal/storage"
)

const (
	pingTimeout      = 3 * time.Second
	upstreamTimeout  = 5 * time.Second
	defaultGoroutine = 10000
)

// Options 健康检查配置
type Options struct {
	UpstreamURL   string                    // 为空时不检查后端
	Stores        map[string]storage.Pinger // 会话与审计存储
	MaxGoroutines int
}

// Checker 存活与就绪检查
type Checker struct {
	health healthcheck.Handler
	logger *zap.Logger
}

// NewChecker 创建健康检查器
//
// 存活检查只看进程自身；就绪检查包含存储与后端连通性。
func NewChecker(opts Options, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxGoroutines <= 0 {
		opts.MaxGoroutines = defaultGoroutine
	}

	c := &Checker{health: healthcheck.NewHandler(), logger: logger}
	c.health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(opts.MaxGoroutines))

	for name, store := range opts.Stores {
		c.health.AddReadinessCheck(name, healthcheck.Timeout(PingCheck(store), pingTimeout))
	}
	if opts.UpstreamURL != "" {
		c.health.AddReadinessCheck("upstream", UpstreamCheck(opts.UpstreamURL))
	}
	return c
}

// PingCheck 存储探活
func PingCheck(p storage.Pinger) healthcheck.Check {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()
		return p.Ping(ctx)
	}
}

// UpstreamCheck 后端连通性检查，要求返回 2xx
func UpstreamCheck(url string) healthcheck.Check {
	return healthcheck.HTTPGetCheck(url, upstreamTimeout)
}

// Live 存活检查
func (c *Checker) Live(w http.ResponseWriter, r *http.Request) {
	c.health.LiveEndpoint(w, r)
}

// Ready 就绪检查
func (c *Checker) Ready(w http.ResponseWriter, r *http.Request) {
	c.health.ReadyEndpoint(w, r)
}
