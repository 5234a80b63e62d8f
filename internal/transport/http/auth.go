package httptransport

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	jwtpkg "backendmanager/console/internal/auth/jwt"
	"backendmanager/console/internal/domain"
	"backendmanager/console/internal/middleware"
)

// SignInFlow 登录与退出所需的认证桥能力
type SignInFlow interface {
	SignIn(ctx context.Context, idToken, refreshToken string) (*domain.Session, error)
	SignOut(ctx context.Context, sessionID string) error
	LoginURL() string
}

// CookieConfig 会话 Cookie 配置
type CookieConfig struct {
	Name   string
	Secure bool
}

// AuthHandler 处理员工门户回调、会话建立与退出登录
type AuthHandler struct {
	flow       SignInFlow
	jwtManager *jwtpkg.Manager
	cookie     CookieConfig
	log        *zap.Logger
}

// NewAuthHandler 创建新的认证处理器实例
func NewAuthHandler(flow SignInFlow, jwtManager *jwtpkg.Manager, cookie CookieConfig, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		flow:       flow,
		jwtManager: jwtManager,
		cookie:     cookie,
		log:        logger.Named("auth"),
	}
}

type signInRequest struct {
	IDToken      string `json:"id_token" form:"id_token" binding:"required"`
	RefreshToken string `json:"refresh_token" form:"refresh_token"`
}

// Callback 员工门户携带令牌跳转回来
func (h *AuthHandler) Callback(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.log.Info("callback without identity token", zap.String("ip", c.ClientIP()))
		c.Redirect(http.StatusFound, h.flow.LoginURL())
		return
	}
	h.signIn(c, req)
}

// CreateSession 以 JSON 或表单提交令牌建立会话
func (h *AuthHandler) CreateSession(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBind(&req); err != nil {
		if middleware.WantsPage(c) {
			c.Redirect(http.StatusFound, h.flow.LoginURL())
			return
		}
		BadRequest(c, MsgInvalidRequest)
		return
	}
	h.signIn(c, req)
}

func (h *AuthHandler) signIn(c *gin.Context, req signInRequest) {
	session, err := h.flow.SignIn(c.Request.Context(), req.IDToken, req.RefreshToken)
	if err != nil {
		h.log.Warn("sign-in rejected", zap.Error(err), zap.String("ip", c.ClientIP()))
		if middleware.WantsPage(c) {
			c.Redirect(http.StatusFound, h.flow.LoginURL())
			return
		}
		ErrorWithData(c, lookupError(err).status, GetErrorMessage(err), gin.H{"login_url": h.flow.LoginURL()})
		return
	}

	token, expiresAt, err := h.jwtManager.Issue(session.ID, session.UID, session.Email)
	if err != nil {
		h.log.Error("failed to issue session cookie", zap.String("session_id", session.ID), zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}
	h.setCookie(c, token, int(time.Until(expiresAt).Seconds()))

	if middleware.WantsPage(c) {
		c.Redirect(http.StatusFound, "/")
		return
	}
	Success(c, gin.H{"redirect": "/", "expiresAt": expiresAt})
}

// Logout 删除会话、清除 Cookie 并跳转到员工登录页
func (h *AuthHandler) Logout(c *gin.Context) {
	session := mustSession(c)
	if err := h.flow.SignOut(c.Request.Context(), session.ID); err != nil {
		h.log.Warn("failed to sign out", zap.String("session_id", session.ID), zap.Error(err))
	}
	h.setCookie(c, "", -1)

	if middleware.WantsPage(c) {
		c.Redirect(http.StatusFound, h.flow.LoginURL())
		return
	}
	Success(c, gin.H{"login_url": h.flow.LoginURL()})
}

func (h *AuthHandler) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, value, maxAge, "/", "", h.cookie.Secure, true)
}
