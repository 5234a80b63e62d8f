// Package upstream 封装 backend-manager REST 接口
//
// 所有响应均为 {success, data, message} 信封格式；请求经过共享令牌桶限流。
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"backendmanager/console/internal/domain"
	"backendmanager/console/internal/monitoring"
)

// 后端接口路径
const (
	EndpointSystemOverview = "system-overview"
	EndpointRecentActivity = "recent-activity"
	EndpointRejections     = "staff-rejections"
	EndpointCleanupHistory = "cleanup-history"
	EndpointSystemLogs     = "system-logs"
	EndpointUsers          = "users"
	EndpointBackupHistory  = "backup-history"
	EndpointCleanupUser    = "cleanup-user"
	EndpointSettings       = "settings"
)

// 单个响应体的最大读取量
const maxBodyBytes = 4 << 20

var (
	// ErrUnauthorized 后端拒绝了凭证 (401/403)
	ErrUnauthorized = errors.New("upstream rejected credentials")
	// ErrUnsuccessful 响应信封 success 为 false
	ErrUnsuccessful = errors.New("upstream reported failure")
	// ErrDecode 响应无法解析
	ErrDecode = errors.New("upstream response could not be decoded")
	// ErrUnavailable 网络错误或非 2xx 状态码
	ErrUnavailable = errors.New("upstream unavailable")
)

// StatusError 非 2xx 响应
type StatusError struct {
	Endpoint   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s returned status %d", e.Endpoint, e.StatusCode)
}

// Unwrap 401/403 映射为 ErrUnauthorized，其余映射为 ErrUnavailable
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		return ErrUnauthorized
	}
	return ErrUnavailable
}

// Config 客户端配置
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64
	Burst     int
}

// Client backend-manager 接口客户端
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *monitoring.Metrics
	logger     *zap.Logger
}

// NewClient 创建接口客户端
func NewClient(cfg Config, metrics *monitoring.Metrics, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
		metrics:    metrics,
		logger:     logger.Named("upstream"),
	}
}

// SystemOverview 获取系统概览
func (c *Client) SystemOverview(ctx context.Context, token string) (domain.SystemStats, error) {
	var stats domain.SystemStats
	err := c.get(ctx, token, EndpointSystemOverview, &stats)
	return stats, err
}

// RecentActivity 获取最近活动
func (c *Client) RecentActivity(ctx context.Context, token string) ([]domain.Activity, error) {
	var items []domain.Activity
	err := c.get(ctx, token, EndpointRecentActivity, &items)
	return nonNil(items), err
}

// StaffRejections 获取员工拒绝记录
func (c *Client) StaffRejections(ctx context.Context, token string) ([]domain.Rejection, error) {
	var items []domain.Rejection
	err := c.get(ctx, token, EndpointRejections, &items)
	return nonNil(items), err
}

// CleanupHistory 获取清理历史
func (c *Client) CleanupHistory(ctx context.Context, token string) ([]domain.CleanupRecord, error) {
	var items []domain.CleanupRecord
	err := c.get(ctx, token, EndpointCleanupHistory, &items)
	return nonNil(items), err
}

// SystemLogs 获取系统日志
func (c *Client) SystemLogs(ctx context.Context, token string) ([]domain.LogEntry, error) {
	var items []domain.LogEntry
	err := c.get(ctx, token, EndpointSystemLogs, &items)
	return nonNil(items), err
}

// Users 获取用户列表
func (c *Client) Users(ctx context.Context, token string) ([]domain.User, error) {
	var items []domain.User
	err := c.get(ctx, token, EndpointUsers, &items)
	return nonNil(items), err
}

// BackupHistory 获取备份历史
func (c *Client) BackupHistory(ctx context.Context, token string) ([]domain.BackupRecord, error) {
	var items []domain.BackupRecord
	err := c.get(ctx, token, EndpointBackupHistory, &items)
	return nonNil(items), err
}

// CleanupUser 清理被拒绝用户的数据
func (c *Client) CleanupUser(ctx context.Context, token, rejectionID string) error {
	endpoint := EndpointCleanupUser + "/" + url.PathEscape(rejectionID)
	_, err := c.do(ctx, http.MethodPost, token, c.baseURL+"/"+endpoint, EndpointCleanupUser, nil)
	return err
}

// SaveSettings 保存控制台设置
func (c *Client) SaveSettings(ctx context.Context, token string, settings domain.Settings) error {
	body, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	_, err = c.do(ctx, http.MethodPut, token, c.baseURL+"/"+EndpointSettings, EndpointSettings, body)
	return err
}

// StaffProfile 获取员工档案
//
// 档案接口不使用信封格式；兼容两种返回形式。
func (c *Client) StaffProfile(ctx context.Context, profileURL, token, uid string) (domain.StaffProfile, error) {
	var profile domain.StaffProfile
	target := strings.TrimRight(profileURL, "/") + "/" + url.PathEscape(uid)

	raw, err := c.send(ctx, http.MethodGet, token, target, "staff-profile", nil)
	if err != nil {
		return profile, err
	}

	var wrapped struct {
		Data *domain.StaffProfile `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Data != nil && wrapped.Data.StaffType != "" {
		return *wrapped.Data, nil
	}
	if err := json.Unmarshal(raw, &profile); err != nil {
		return profile, fmt.Errorf("%w: staff-profile: %v", ErrDecode, err)
	}
	return profile, nil
}

// get 执行 GET 并把信封中的 data 解码到 out
func (c *Client) get(ctx context.Context, token, endpoint string, out any) error {
	env, err := c.do(ctx, http.MethodGet, token, c.baseURL+"/"+endpoint, endpoint, nil)
	if err != nil {
		return err
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		c.metrics.RecordError("decode", "upstream")
		return fmt.Errorf("%w: %s: %v", ErrDecode, endpoint, err)
	}
	return nil
}

// do 执行请求并解析信封
func (c *Client) do(ctx context.Context, method, token, target, endpoint string, body []byte) (*domain.Envelope, error) {
	raw, err := c.send(ctx, method, token, target, endpoint, body)
	if err != nil {
		return nil, err
	}

	var env domain.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, endpoint, err)
	}
	if !env.Success {
		if env.Message != "" {
			return &env, fmt.Errorf("%w: %s: %s", ErrUnsuccessful, endpoint, env.Message)
		}
		return &env, fmt.Errorf("%w: %s", ErrUnsuccessful, endpoint)
	}
	return &env, nil
}

// send 发送请求并返回 2xx 响应体
//
// token 为空时不携带 Authorization 头，由后端以 401 拒绝。
func (c *Client) send(ctx context.Context, method, token, target, endpoint string, body []byte) ([]byte, error) {
	if c.limiter.Tokens() < 1 {
		c.metrics.RecordThrottled()
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", ErrUnavailable, err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordUpstream(method, endpoint, "network_error", time.Since(start))
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.metrics.RecordUpstream(method, endpoint, "read_error", time.Since(start))
		return nil, fmt.Errorf("%w: %s: read body: %v", ErrUnavailable, endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.RecordUpstream(method, endpoint, fmt.Sprintf("http_%d", resp.StatusCode), time.Since(start))
		c.logger.Debug("upstream returned non-2xx",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
		)
		return nil, &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}

	c.metrics.RecordUpstream(method, endpoint, "ok", time.Since(start))
	return raw, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
