package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backendmanager/console/internal/auth/jwt"
	"backendmanager/console/internal/domain"
	"backendmanager/console/internal/storage"
)

const testLoginURL = "https://staff.example.com/"

type fakeLookup map[string]*domain.Session

func (f fakeLookup) Session(_ context.Context, id string) (*domain.Session, error) {
	if s, ok := f[id]; ok {
		return s, nil
	}
	return nil, storage.ErrSessionNotFound
}

func (fakeLookup) LoginURL() string { return testLoginURL }

func setupAuthRouter(t *testing.T) (*gin.Engine, *jwt.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	manager := jwt.NewManager("0123456789abcdef0123456789abcdef", "bmconsole", time.Hour)
	lookup := fakeLookup{"sess-1": {ID: "sess-1", Email: "bm@example.com"}}
	auth := NewSessionAuth(manager, lookup, "bm_session", nil)

	r := gin.New()
	r.Use(auth.RequireSession())
	handler := func(c *gin.Context) {
		session, ok := SessionFromContext(c)
		require.True(t, ok)
		c.String(http.StatusOK, session.Email)
	}
	r.GET("/", handler)
	r.GET("/api/state", handler)
	return r, manager
}

func TestRequireSession(t *testing.T) {
	r, manager := setupAuthRouter(t)

	t.Run("有效会话", func(t *testing.T) {
		token, _, err := manager.Issue("sess-1", "uid-1", "bm@example.com")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "bm_session", Value: token})
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "bm@example.com", rec.Body.String())
	})

	t.Run("页面请求重定向到登录页", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept", "text/html")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, testLoginURL, rec.Header().Get("Location"))
	})

	t.Run("接口请求返回 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), testLoginURL)
	})

	t.Run("会话已删除", func(t *testing.T) {
		token, _, err := manager.Issue("gone", "uid-1", "bm@example.com")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
		req.AddCookie(&http.Cookie{Name: "bm_session", Value: token})
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("伪造的 cookie", func(t *testing.T) {
		other := jwt.NewManager("ffffffffffffffffffffffffffffffff", "bmconsole", time.Hour)
		token, _, err := other.Issue("sess-1", "uid-1", "bm@example.com")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Requested-With", "fetch")
		req.AddCookie(&http.Cookie{Name: "bm_session", Value: token})
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestBodySizeLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(BodySizeLimit(8))
	r.PUT("/settings", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodPut, "/settings", strings.NewReader("0123456789"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
