package monitoring

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HealthStatus 健康状态
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

const (
	memoryLimitMB  = 1024.0
	goroutineLimit = 1000
	checkTimeout   = 5 * time.Second
)

// HealthCheck 单项检查结果
type HealthCheck struct {
	Name        string        `json:"name"`
	Status      HealthStatus  `json:"status"`
	Message     string        `json:"message,omitempty"`
	Duration    time.Duration `json:"duration"`
	LastChecked time.Time     `json:"last_checked"`
}

// HealthReport 健康报告
type HealthReport struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Uptime    time.Duration `json:"uptime"`
	Checks    []HealthCheck `json:"checks"`
	Version   string        `json:"version"`
}

type namedCheck struct {
	name     string
	critical bool
	fn       func(context.Context) error
}

// HealthChecker 汇总依赖检查与运行时指标
type HealthChecker struct {
	mu        sync.RWMutex
	checks    []namedCheck
	logger    *zap.Logger
	startTime time.Time
	version   string
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(logger *zap.Logger, version string) *HealthChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthChecker{
		logger:    logger,
		startTime: time.Now(),
		version:   version,
	}
}

// AddCheck 注册依赖检查；critical 失败时整体为 unhealthy，否则为 degraded
func (hc *HealthChecker) AddCheck(name string, critical bool, fn func(context.Context) error) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks = append(hc.checks, namedCheck{name: name, critical: critical, fn: fn})
}

// CheckHealth 执行健康检查
func (hc *HealthChecker) CheckHealth(ctx context.Context) *HealthReport {
	report := &HealthReport{
		Timestamp: time.Now(),
		Uptime:    time.Since(hc.startTime),
		Version:   hc.version,
		Checks:    make([]HealthCheck, 0),
	}

	hc.mu.RLock()
	checks := append([]namedCheck(nil), hc.checks...)
	hc.mu.RUnlock()

	for _, c := range checks {
		report.Checks = append(report.Checks, hc.runCheck(ctx, c))
	}
	report.Checks = append(report.Checks, checkMemory(), checkGoroutines())

	overall := HealthStatusHealthy
	for _, check := range report.Checks {
		switch check.Status {
		case HealthStatusUnhealthy:
			overall = HealthStatusUnhealthy
		case HealthStatusDegraded:
			if overall != HealthStatusUnhealthy {
				overall = HealthStatusDegraded
			}
		}
	}
	report.Status = overall
	return report
}

func (hc *HealthChecker) runCheck(ctx context.Context, c namedCheck) HealthCheck {
	start := time.Now()
	check := HealthCheck{Name: c.name, LastChecked: start, Status: HealthStatusHealthy}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	if err := c.fn(ctx); err != nil {
		check.Status = HealthStatusDegraded
		if c.critical {
			check.Status = HealthStatusUnhealthy
		}
		check.Message = err.Error()
	}
	check.Duration = time.Since(start)
	return check
}

// checkMemory 检查堆内存
func checkMemory() HealthCheck {
	start := time.Now()
	check := HealthCheck{Name: "memory", LastChecked: start}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	usageMB := float64(m.Alloc) / 1024 / 1024

	if usageMB > memoryLimitMB {
		check.Status = HealthStatusDegraded
		check.Message = fmt.Sprintf("High memory usage: %.2f MB", usageMB)
	} else {
		check.Status = HealthStatusHealthy
		check.Message = fmt.Sprintf("Memory usage: %.2f MB", usageMB)
	}
	check.Duration = time.Since(start)
	return check
}

// checkGoroutines 检查 Goroutine 数量
func checkGoroutines() HealthCheck {
	start := time.Now()
	check := HealthCheck{Name: "goroutines", LastChecked: start}

	n := runtime.NumGoroutine()
	if n > goroutineLimit {
		check.Status = HealthStatusDegraded
		check.Message = fmt.Sprintf("High goroutine count: %d", n)
	} else {
		check.Status = HealthStatusHealthy
		check.Message = fmt.Sprintf("Goroutines: %d", n)
	}
	check.Duration = time.Since(start)
	return check
}

// StartPeriodicHealthCheck 定期执行检查并记录状态变化
func (hc *HealthChecker) StartPeriodicHealthCheck(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := HealthStatusHealthy
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report := hc.CheckHealth(ctx)
			if report.Status == last {
				continue
			}
			last = report.Status

			switch report.Status {
			case HealthStatusUnhealthy:
				hc.logger.Error("System health check failed", zap.Any("checks", report.Checks))
			case HealthStatusDegraded:
				hc.logger.Warn("System health check degraded", zap.Any("checks", report.Checks))
			default:
				hc.logger.Info("System health recovered", zap.Duration("uptime", report.Uptime))
			}
		}
	}
}
