package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 默认 JWT 密钥占位值，禁止在任何环境中使用
const defaultJWTSecret = "change-me-in-production"

// 上游数据加载失败时的处理策略
const (
	FallbackMock  = "mock"  // 回退到固定示例数据（演示模式）
	FallbackError = "error" // 直接暴露错误（生产模式）
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	File        string // 日志文件路径，留空只输出到控制台
}

// UpstreamConfig 定义后端 REST API 的访问配置
type UpstreamConfig struct {
	BaseURL      string        // backend-manager 接口根地址
	Timeout      time.Duration // 单次请求超时
	FallbackMode string        // 读取失败时的处理策略: mock 或 error
	RateLimit    float64       // 每秒最多请求数
	Burst        int           // 突发请求数
	HealthURL    string        // 就绪检查探测地址，留空则不检查
}

// AuthConfig 定义身份提供方与员工门户相关配置
type AuthConfig struct {
	StaffLoginURL   string        // 外部员工登录页，认证失败时跳转
	StaffProfileURL string        // 员工档案接口前缀，后接 /{uid}
	TokenURL        string        // 身份令牌刷新地址（refresh_token 授权）
	ClientID        string        // OAuth2 客户端 ID
	APIKey          string        // 身份提供方 API Key，作为查询参数附加
	TokenSkew       time.Duration // 令牌提前刷新的时间窗口
}

// JWTConfig 定义会话 Cookie 的签名配置
type JWTConfig struct {
	Secret string // 签名密钥，必须至少 32 字符
	Issuer string // 签发者标识，默认 "bmconsole"
}

// SessionConfig 定义会话管理配置
type SessionConfig struct {
	TTL          time.Duration // 会话有效期
	CookieName   string        // Cookie 名称
	SecureCookie bool          // 是否仅通过 HTTPS 发送 Cookie
	Store        string        // 会话存储: memory 或 redis
}

// RedisConfig 定义 Redis 会话存储配置
type RedisConfig struct {
	Address  string // Redis 服务地址，格式 "host:port"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号
}

// AuditConfig 定义操作审计存储配置（支持 MySQL 和 PostgreSQL）
type AuditConfig struct {
	Type            string        // "", "memory", "mysql" 或 "postgres"
	DSN             string        // 数据库连接字符串
	MaxOpenConns    int           // 最大打开连接数
	MaxIdleConns    int           // 最大空闲连接数
	ConnMaxLifetime time.Duration // 连接最大生命周期
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// UIConfig 定义页面渲染相关配置
type UIConfig struct {
	Timezone        string         // 日期显示时区
	Location        *time.Location // 由 Timezone 解析得到
	NotificationTTL time.Duration  // 通知横幅显示时长
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Upstream UpstreamConfig
	Auth     AuthConfig
	JWT      JWTConfig
	Session  SessionConfig
	Redis    RedisConfig
	Audit    AuditConfig
	CORS     CORSConfig
	UI       UIConfig
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: BMCONSOLE_
// 例如: BMCONSOLE_SERVER_PORT, BMCONSOLE_UPSTREAM_FALLBACK_MODE
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetEnvPrefix("bmconsole")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.file", "")
	v.SetDefault("upstream.base_url", "https://arcular-plus-backend.onrender.com/api/backend-manager")
	v.SetDefault("upstream.timeout", "10s")
	v.SetDefault("upstream.fallback_mode", FallbackMock)
	v.SetDefault("upstream.rate_limit", 20.0)
	v.SetDefault("upstream.burst", 10)
	v.SetDefault("upstream.health_url", "")
	v.SetDefault("auth.staff_login_url", "https://arcular-plus-staffs.vercel.app/")
	v.SetDefault("auth.staff_profile_url", "https://arcular-plus-backend.onrender.com/staff/api/staff/profile")
	v.SetDefault("auth.token_url", "https://securetoken.googleapis.com/v1/token")
	v.SetDefault("auth.client_id", "")
	v.SetDefault("auth.api_key", "")
	v.SetDefault("auth.token_skew", "1m")
	v.SetDefault("jwt.secret", defaultJWTSecret)
	v.SetDefault("jwt.issuer", "bmconsole")
	v.SetDefault("session.ttl", "12h")
	v.SetDefault("session.cookie_name", "bm_session")
	v.SetDefault("session.secure_cookie", true)
	v.SetDefault("session.store", "memory")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("audit.type", "")
	v.SetDefault("audit.dsn", "")
	v.SetDefault("audit.max_open_conns", 10)
	v.SetDefault("audit.max_idle_conns", 2)
	v.SetDefault("audit.conn_max_lifetime", "5m")
	v.SetDefault("cors.allowed_origins", "*")
	v.SetDefault("ui.timezone", "UTC")
	v.SetDefault("ui.notification_ttl", "3s")

	timeout, err := time.ParseDuration(v.GetString("upstream.timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid upstream.timeout: %w", err)
	}

	fallbackMode := strings.ToLower(strings.TrimSpace(v.GetString("upstream.fallback_mode")))
	if fallbackMode != FallbackMock && fallbackMode != FallbackError {
		return nil, fmt.Errorf("upstream.fallback_mode must be %q or %q, got %q", FallbackMock, FallbackError, fallbackMode)
	}

	baseURL := strings.TrimRight(v.GetString("upstream.base_url"), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("upstream.base_url must not be empty")
	}

	rateLimit := v.GetFloat64("upstream.rate_limit")
	if rateLimit <= 0 {
		rateLimit = 20
	}
	burst := v.GetInt("upstream.burst")
	if burst <= 0 {
		burst = 10
	}

	tokenSkew, err := time.ParseDuration(v.GetString("auth.token_skew"))
	if err != nil {
		tokenSkew = time.Minute
	}

	jwtSecret := v.GetString("jwt.secret")

	// 安全检查：禁止使用默认的 JWT secret
	if jwtSecret == defaultJWTSecret {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret cannot be the default value. Please set BMCONSOLE_JWT_SECRET environment variable")
	}
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret must be at least 32 characters long")
	}

	sessionTTL, err := time.ParseDuration(v.GetString("session.ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid session.ttl: %w", err)
	}

	sessionStore := strings.ToLower(v.GetString("session.store"))
	if sessionStore != "memory" && sessionStore != "redis" {
		return nil, fmt.Errorf("session.store must be memory or redis, got %q", sessionStore)
	}

	auditType := strings.ToLower(v.GetString("audit.type"))
	switch auditType {
	case "", "memory", "mysql", "postgres":
	default:
		return nil, fmt.Errorf("unsupported audit.type: %s (supported: memory, mysql, postgres)", auditType)
	}
	if (auditType == "mysql" || auditType == "postgres") && v.GetString("audit.dsn") == "" {
		return nil, fmt.Errorf("audit.dsn is required for audit.type %s", auditType)
	}

	connMaxLifetime, err := time.ParseDuration(v.GetString("audit.conn_max_lifetime"))
	if err != nil {
		connMaxLifetime = 5 * time.Minute
	}

	corsOrigins := parseList(v.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	timezone := v.GetString("ui.timezone")
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid ui.timezone: %w", err)
	}

	notificationTTL, err := time.ParseDuration(v.GetString("ui.notification_ttl"))
	if err != nil || notificationTTL <= 0 {
		notificationTTL = 3 * time.Second
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("server.host"),
			Port: v.GetInt("server.port"),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
			File:        v.GetString("log.file"),
		},
		Upstream: UpstreamConfig{
			BaseURL:      baseURL,
			Timeout:      timeout,
			FallbackMode: fallbackMode,
			RateLimit:    rateLimit,
			Burst:        burst,
			HealthURL:    v.GetString("upstream.health_url"),
		},
		Auth: AuthConfig{
			StaffLoginURL:   v.GetString("auth.staff_login_url"),
			StaffProfileURL: strings.TrimRight(v.GetString("auth.staff_profile_url"), "/"),
			TokenURL:        v.GetString("auth.token_url"),
			ClientID:        v.GetString("auth.client_id"),
			APIKey:          v.GetString("auth.api_key"),
			TokenSkew:       tokenSkew,
		},
		JWT: JWTConfig{
			Secret: jwtSecret,
			Issuer: v.GetString("jwt.issuer"),
		},
		Session: SessionConfig{
			TTL:          sessionTTL,
			CookieName:   v.GetString("session.cookie_name"),
			SecureCookie: v.GetBool("session.secure_cookie"),
			Store:        sessionStore,
		},
		Redis: RedisConfig{
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Audit: AuditConfig{
			Type:            auditType,
			DSN:             v.GetString("audit.dsn"),
			MaxOpenConns:    v.GetInt("audit.max_open_conns"),
			MaxIdleConns:    v.GetInt("audit.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		UI: UIConfig{
			Timezone:        timezone,
			Location:        location,
			NotificationTTL: notificationTTL,
		},
	}

	return cfg, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 如果文件不存在，静默失败（.env 是可选的）；已存在的环境变量不会被覆盖。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
