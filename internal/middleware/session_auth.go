package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"backendmanager/console/internal/auth/jwt"
	"backendmanager/console/internal/domain"
)

const sessionKey = "session"

// SessionLookup 按 id 查找控制台会话
type SessionLookup interface {
	Session(ctx context.Context, id string) (*domain.Session, error)
	LoginURL() string
}

// SessionAuth 会话 cookie 认证中间件
type SessionAuth struct {
	jwtManager *jwt.Manager
	sessions   SessionLookup
	cookieName string
	log        *zap.Logger
}

// NewSessionAuth 创建会话认证中间件
func NewSessionAuth(jwtManager *jwt.Manager, sessions SessionLookup, cookieName string, logger *zap.Logger) *SessionAuth {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionAuth{
		jwtManager: jwtManager,
		sessions:   sessions,
		cookieName: cookieName,
		log:        logger.Named("auth"),
	}
}

// RequireSession 要求有效会话
//
// 页面请求重定向到员工登录页；接口、片段与 WebSocket 请求返回 401。
func (sa *SessionAuth) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := sa.resolve(c)
		if !ok {
			sa.reject(c)
			return
		}
		c.Set(sessionKey, session)
		c.Next()
	}
}

// SessionID 供 WebSocket 升级使用
func SessionID(c *gin.Context) (string, bool) {
	session, ok := SessionFromContext(c)
	if !ok {
		return "", false
	}
	return session.ID, true
}

// SessionFromContext 取出已认证的会话
func SessionFromContext(c *gin.Context) (*domain.Session, bool) {
	v, exists := c.Get(sessionKey)
	if !exists {
		return nil, false
	}
	session, ok := v.(*domain.Session)
	return session, ok && session != nil
}

func (sa *SessionAuth) resolve(c *gin.Context) (*domain.Session, bool) {
	token, err := c.Cookie(sa.cookieName)
	if err != nil || token == "" {
		return nil, false
	}

	claims, err := sa.jwtManager.ValidateToken(token)
	if err != nil {
		sa.log.Warn("invalid session cookie",
			zap.Error(err),
			zap.String("ip", c.ClientIP()),
		)
		return nil, false
	}

	session, err := sa.sessions.Session(c.Request.Context(), claims.SessionID)
	if err != nil {
		sa.log.Info("session not found", zap.String("session_id", claims.SessionID), zap.Error(err))
		return nil, false
	}
	return session, true
}

func (sa *SessionAuth) reject(c *gin.Context) {
	loginURL := sa.sessions.LoginURL()
	if WantsPage(c) {
		c.Redirect(http.StatusFound, loginURL)
		c.Abort()
		return
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code": http.StatusUnauthorized,
		"msg":  "authentication required",
		"data": gin.H{"login_url": loginURL},
	})
}

// WantsPage 判断请求是否为浏览器直接打开的页面
func WantsPage(c *gin.Context) bool {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodPost {
		return false
	}
	if c.GetHeader("X-Requested-With") != "" {
		return false
	}
	path := c.Request.URL.Path
	if strings.HasPrefix(path, "/api/") || path == "/ws" {
		return false
	}
	return strings.Contains(c.GetHeader("Accept"), "text/html") || c.GetHeader("Accept") == ""
}
