package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken 无效的令牌
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken 令牌已过期
	ErrExpiredToken = errors.New("token expired")
)

// Claims 会话 Cookie 中携带的声明
type Claims struct {
	SessionID string `json:"sid"`
	UID       string `json:"uid"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}

// IdentityClaims 身份提供方令牌中读取的声明
type IdentityClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// UID 优先使用 user_id，缺失时退回 sub
func (c *IdentityClaims) UID() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}

// Manager 会话令牌管理器
type Manager struct {
	secret []byte
	issuer string
	expiry time.Duration
}

// NewManager 创建会话令牌管理器
func NewManager(secret, issuer string, expiry time.Duration) *Manager {
	return &Manager{
		secret: []byte(secret),
		issuer: issuer,
		expiry: expiry,
	}
}

// Issue 为会话签发 HS256 令牌
func (m *Manager) Issue(sessionID, uid, email string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.expiry)

	claims := Claims{
		SessionID: sessionID,
		UID:       uid,
		Email:     email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   uid,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken 验证会话令牌并返回声明
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// ParseIdentityToken 读取身份令牌声明（不验证签名，签名由后端校验）
func ParseIdentityToken(tokenString string) (*IdentityClaims, error) {
	token, _, err := new(jwt.Parser).ParseUnverified(tokenString, &IdentityClaims{})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*IdentityClaims)
	if !ok || claims.UID() == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
