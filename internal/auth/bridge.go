// Package auth 连接身份提供方与控制台会话
//
// 身份令牌由身份提供方签发、由后端校验；这里只负责读取声明、
// 校验员工角色、在令牌临近过期时刷新，以及维护控制台会话。
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"backendmanager/console/internal/auth/jwt"
	"backendmanager/console/internal/domain"
	"backendmanager/console/internal/monitoring"
	"backendmanager/console/internal/storage"
)

var (
	// ErrInvalidIdentityToken 身份令牌无法解析
	ErrInvalidIdentityToken = errors.New("invalid identity token")
	// ErrProfileUnavailable 无法获取员工档案
	ErrProfileUnavailable = errors.New("staff profile unavailable")
	// ErrNotBackendManager 员工不是 backend manager
	ErrNotBackendManager = errors.New("user is not a backend manager")
)

// ProfileFetcher 获取员工档案
type ProfileFetcher interface {
	StaffProfile(ctx context.Context, profileURL, token, uid string) (domain.StaffProfile, error)
}

// Config 认证桥配置
type Config struct {
	StaffLoginURL   string
	StaffProfileURL string
	TokenURL        string
	ClientID        string
	APIKey          string
	TokenSkew       time.Duration
	SessionTTL      time.Duration
}

// Bridge 认证桥
type Bridge struct {
	cfg        Config
	sessions   storage.SessionStore
	profiles   ProfileFetcher
	httpClient *http.Client
	metrics    *monitoring.Metrics
	logger     *zap.Logger
	now        func() time.Time
	onSignOut  []func(sessionID string)
}

// NewBridge 创建认证桥
func NewBridge(cfg Config, sessions storage.SessionStore, profiles ProfileFetcher, metrics *monitoring.Metrics, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 12 * time.Hour
	}
	return &Bridge{
		cfg:        cfg,
		sessions:   sessions,
		profiles:   profiles,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		metrics:    metrics,
		logger:     logger.Named("auth"),
		now:        time.Now,
	}
}

// OnSignOut 注册会话结束时的回调
func (b *Bridge) OnSignOut(fn func(sessionID string)) {
	b.onSignOut = append(b.onSignOut, fn)
}

// LoginURL 外部员工登录页
func (b *Bridge) LoginURL() string {
	return b.cfg.StaffLoginURL
}

// Session 查找会话
func (b *Bridge) Session(ctx context.Context, id string) (*domain.Session, error) {
	return b.sessions.GetSession(ctx, id)
}

// SignIn 校验身份令牌与员工角色，成功后创建会话
func (b *Bridge) SignIn(ctx context.Context, idToken, refreshToken string) (*domain.Session, error) {
	claims, err := jwt.ParseIdentityToken(idToken)
	if err != nil {
		b.metrics.RecordSignIn("invalid_token")
		return nil, ErrInvalidIdentityToken
	}
	uid := claims.UID()

	profile, err := b.profiles.StaffProfile(ctx, b.cfg.StaffProfileURL, idToken, uid)
	if err != nil {
		b.metrics.RecordSignIn("profile_unavailable")
		b.logger.Warn("could not verify staff type", zap.String("uid", uid), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrProfileUnavailable, err)
	}
	if profile.StaffType != domain.StaffTypeBackendManager {
		b.metrics.RecordSignIn("wrong_role")
		b.logger.Info("user is not a backend manager",
			zap.String("uid", uid),
			zap.String("staff_type", profile.StaffType),
		)
		return nil, ErrNotBackendManager
	}

	now := b.now()
	session := &domain.Session{
		ID:           uuid.NewString(),
		UID:          uid,
		Email:        firstNonEmpty(claims.Email, profile.Email),
		DisplayName:  firstNonEmpty(claims.Name, profile.DisplayName),
		IDToken:      idToken,
		RefreshToken: refreshToken,
		CreatedAt:    now,
		ExpiresAt:    now.Add(b.cfg.SessionTTL),
	}
	if claims.ExpiresAt != nil {
		session.TokenExpiry = claims.ExpiresAt.Time
	}

	if err := b.sessions.SaveSession(ctx, session); err != nil {
		b.metrics.RecordSignIn("store_error")
		return nil, fmt.Errorf("save session: %w", err)
	}

	b.metrics.RecordSignIn("ok")
	b.logger.Info("backend manager signed in",
		zap.String("session_id", session.ID),
		zap.String("uid", uid),
		zap.String("email", session.Email),
	)
	return session, nil
}

// SignOut 删除会话并通知回调
func (b *Bridge) SignOut(ctx context.Context, sessionID string) error {
	if err := b.sessions.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	for _, fn := range b.onSignOut {
		fn(sessionID)
	}
	b.logger.Info("session signed out", zap.String("session_id", sessionID))
	return nil
}

// Token 返回可用的 bearer 令牌，失败时记录日志并返回空字符串
//
// 令牌在过期前 TokenSkew 内视为需要刷新。
func (b *Bridge) Token(ctx context.Context, session *domain.Session) string {
	if session == nil {
		return ""
	}
	if session.IDToken != "" && b.now().Add(b.cfg.TokenSkew).Before(session.TokenExpiry) {
		return session.IDToken
	}
	if session.RefreshToken == "" || b.cfg.TokenURL == "" {
		b.logger.Warn("identity token expired and cannot be refreshed", zap.String("session_id", session.ID))
		return ""
	}

	fresh, err := b.refresh(ctx, session.RefreshToken)
	if err != nil {
		b.logger.Warn("failed to refresh identity token", zap.String("session_id", session.ID), zap.Error(err))
		return ""
	}

	idToken := fresh.AccessToken
	if raw, ok := fresh.Extra("id_token").(string); ok && raw != "" {
		idToken = raw
	}
	session.IDToken = idToken
	session.TokenExpiry = fresh.Expiry
	if fresh.RefreshToken != "" {
		session.RefreshToken = fresh.RefreshToken
	}
	if err := b.sessions.SaveSession(ctx, session); err != nil {
		b.logger.Warn("failed to persist refreshed token", zap.String("session_id", session.ID), zap.Error(err))
	}
	return idToken
}

// refresh 使用 refresh_token 授权换取新令牌
func (b *Bridge) refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	tokenURL := b.cfg.TokenURL
	if b.cfg.APIKey != "" {
		u, err := url.Parse(tokenURL)
		if err != nil {
			return nil, fmt.Errorf("parse token url: %w", err)
		}
		q := u.Query()
		q.Set("key", b.cfg.APIKey)
		u.RawQuery = q.Encode()
		tokenURL = u.String()
	}

	conf := &oauth2.Config{
		ClientID: b.cfg.ClientID,
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)
	expired := &oauth2.Token{RefreshToken: refreshToken, Expiry: b.now().Add(-time.Minute)}
	return conf.TokenSource(ctx, expired).Token()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
