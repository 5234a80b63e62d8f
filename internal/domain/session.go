package domain

import "time"

// Session 已登录的 backend manager 会话
type Session struct {
	ID           string    `json:"id"`
	UID          string    `json:"uid"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	IDToken      string    `json:"idToken"`
	RefreshToken string    `json:"refreshToken"`
	TokenExpiry  time.Time `json:"tokenExpiry"`
	CreatedAt    time.Time `json:"createdAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Expired 会话是否已过期
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Name 页头显示的用户名，没有显示名时使用 "Backend Manager"
func (s *Session) Name() string {
	if s == nil || s.DisplayName == "" {
		return "Backend Manager"
	}
	return s.DisplayName
}
