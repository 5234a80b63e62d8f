package monitoring

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.HTTPHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics(t *testing.T) {
	t.Run("多个实例互不冲突", func(t *testing.T) {
		assert.NotPanics(t, func() {
			NewMetrics()
			NewMetrics()
		})
	})

	t.Run("记录业务指标", func(t *testing.T) {
		m := NewMetrics()
		m.RecordSectionLoad("rejections", "mock")
		m.RecordSectionLoad("rejections", "mock")
		m.RecordAction("cleanup", "success")
		m.RecordStaleCommit("overview")
		m.UpdateSessionsActive(3)

		body := scrape(t, m)
		assert.Contains(t, body, `bmconsole_section_loads_total{section="rejections",source="mock"} 2`)
		assert.Contains(t, body, `bmconsole_actions_total{action="cleanup",outcome="success"} 1`)
		assert.Contains(t, body, `bmconsole_stale_commits_dropped_total{section="overview"} 1`)
		assert.Contains(t, body, "bmconsole_sessions_active 3")
	})

	t.Run("记录后端调用", func(t *testing.T) {
		m := NewMetrics()
		m.RecordUpstream("GET", "users", "ok", 20*time.Millisecond)

		body := scrape(t, m)
		assert.Contains(t, body, `bmconsole_upstream_requests_total{endpoint="users",method="GET",result="ok"} 1`)
		assert.Contains(t, body, "go_goroutines")
	})
}
