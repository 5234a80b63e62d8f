package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-development-32-chars-long-at-least"

var envKeys = []string{
	"BMCONSOLE_JWT_SECRET",
	"BMCONSOLE_SERVER_HOST",
	"BMCONSOLE_SERVER_PORT",
	"BMCONSOLE_UPSTREAM_BASE_URL",
	"BMCONSOLE_UPSTREAM_TIMEOUT",
	"BMCONSOLE_UPSTREAM_FALLBACK_MODE",
	"BMCONSOLE_SESSION_STORE",
	"BMCONSOLE_SESSION_TTL",
	"BMCONSOLE_AUDIT_TYPE",
	"BMCONSOLE_AUDIT_DSN",
	"BMCONSOLE_CORS_ALLOWED_ORIGINS",
	"BMCONSOLE_UI_TIMEZONE",
	"BMCONSOLE_LOG_LEVEL",
	"BMCONSOLE_LOG_DEVELOPMENT",
}

// resetEnv 清空测试涉及的环境变量，并在测试结束后恢复
func resetEnv(t *testing.T) {
	t.Helper()
	original := make(map[string]string, len(envKeys))
	for _, key := range envKeys {
		original[key] = os.Getenv(key)
		os.Unsetenv(key)
	}
	t.Cleanup(func() {
		for key, value := range original {
			if value == "" {
				os.Unsetenv(key)
			} else {
				os.Setenv(key, value)
			}
		}
	})
}

func TestLoad(t *testing.T) {
	t.Run("加载默认配置成功", func(t *testing.T) {
		resetEnv(t)
		os.Setenv("BMCONSOLE_JWT_SECRET", testSecret)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "https://arcular-plus-backend.onrender.com/api/backend-manager", cfg.Upstream.BaseURL)
		assert.Equal(t, 10*time.Second, cfg.Upstream.Timeout)
		assert.Equal(t, FallbackMock, cfg.Upstream.FallbackMode)
		assert.Equal(t, "memory", cfg.Session.Store)
		assert.Equal(t, 12*time.Hour, cfg.Session.TTL)
		assert.Equal(t, "", cfg.Audit.Type)
		assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, time.UTC, cfg.UI.Location)
		assert.Equal(t, 3*time.Second, cfg.UI.NotificationTTL)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.False(t, cfg.Log.Development)
	})

	t.Run("加载自定义配置成功", func(t *testing.T) {
		resetEnv(t)
		os.Setenv("BMCONSOLE_JWT_SECRET", testSecret)
		os.Setenv("BMCONSOLE_SERVER_PORT", "9090")
		os.Setenv("BMCONSOLE_UPSTREAM_BASE_URL", "http://localhost:4000/api/backend-manager/")
		os.Setenv("BMCONSOLE_UPSTREAM_FALLBACK_MODE", "ERROR")
		os.Setenv("BMCONSOLE_SESSION_STORE", "redis")
		os.Setenv("BMCONSOLE_CORS_ALLOWED_ORIGINS", "http://localhost:3000, http://localhost:5173")
		os.Setenv("BMCONSOLE_UI_TIMEZONE", "Asia/Kolkata")
		os.Setenv("BMCONSOLE_LOG_DEVELOPMENT", "true")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "http://localhost:4000/api/backend-manager", cfg.Upstream.BaseURL)
		assert.Equal(t, FallbackError, cfg.Upstream.FallbackMode)
		assert.Equal(t, "redis", cfg.Session.Store)
		assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, "Asia/Kolkata", cfg.UI.Location.String())
		assert.True(t, cfg.Log.Development)
	})

	t.Run("JWT密钥太短失败", func(t *testing.T) {
		resetEnv(t)
		os.Setenv("BMCONSOLE_JWT_SECRET", "short-key")

		cfg, err := Load()
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "JWT secret must be at least 32 characters long")
	})

	t.Run("使用默认JWT密钥失败", func(t *testing.T) {
		resetEnv(t)

		cfg, err := Load()
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "JWT secret cannot be the default value")
	})

	t.Run("无效的回退策略失败", func(t *testing.T) {
		resetEnv(t)
		os.Setenv("BMCONSOLE_JWT_SECRET", testSecret)
		os.Setenv("BMCONSOLE_UPSTREAM_FALLBACK_MODE", "retry")

		cfg, err := Load()
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "upstream.fallback_mode")
	})

	t.Run("无效的超时格式失败", func(t *testing.T) {
		resetEnv(t)
		os.Setenv("BMCONSOLE_JWT_SECRET", testSecret)
		os.Setenv("BMCONSOLE_UPSTREAM_TIMEOUT", "soon")

		cfg, err := Load()
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid upstream.timeout")
	})

	t.Run("SQL审计缺少DSN失败", func(t *testing.T) {
		resetEnv(t)
		os.Setenv("BMCONSOLE_JWT_SECRET", testSecret)
		os.Setenv("BMCONSOLE_AUDIT_TYPE", "postgres")

		cfg, err := Load()
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "audit.dsn is required")
	})

	t.Run("不支持的会话存储失败", func(t *testing.T) {
		resetEnv(t)
		os.Setenv("BMCONSOLE_JWT_SECRET", testSecret)
		os.Setenv("BMCONSOLE_SESSION_STORE", "cookie")

		cfg, err := Load()
		assert.Error(t, err)
		assert.Nil(t, cfg)
	})

	t.Run("无效时区失败", func(t *testing.T) {
		resetEnv(t)
		os.Setenv("BMCONSOLE_JWT_SECRET", testSecret)
		os.Setenv("BMCONSOLE_UI_TIMEZONE", "Mars/Olympus")

		cfg, err := Load()
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid ui.timezone")
	})
}

func TestParseList(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "单个来源", input: "http://a", expected: []string{"http://a"}},
		{name: "带空格", input: " http://a , http://b ", expected: []string{"http://a", "http://b"}},
		{name: "空字符串", input: "", expected: []string{}},
		{name: "只有逗号", input: ",,,", expected: []string{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, parseList(tc.input))
		})
	}
}
