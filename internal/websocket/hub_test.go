package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backendmanager/console/internal/domain"
)

func newTestServer(t *testing.T, hub *Hub, sessionID string) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", HandleWebSocket(hub, func(*gin.Context) (string, bool) {
		return sessionID, sessionID != ""
	}))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestHub(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil, nil, nil)
	go hub.Run(ctx)

	t.Run("推送通知到会话连接", func(t *testing.T) {
		srv := newTestServer(t, hub, "sess-1")
		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
		require.NoError(t, err)
		defer conn.Close()

		require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

		hub.Notify("other-session", domain.Notification{ID: "skip", Message: "not mine"})
		hub.Notify("sess-1", domain.Notification{ID: "n1", Kind: domain.NotificationSuccess, Message: "Saved"})

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, MessageTypeNotification, msg.Type)
		require.NotNil(t, msg.Notification)
		assert.Equal(t, "n1", msg.Notification.ID)

		hub.Disconnect("sess-1")
		require.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 10*time.Millisecond)
	})

	t.Run("未认证的请求", func(t *testing.T) {
		srv := newTestServer(t, hub, "")
		_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, 401, resp.StatusCode)
	})
}

func TestHubStopped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil, nil, nil)

	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	t.Run("停止后新连接被关闭", func(t *testing.T) {
		srv := newTestServer(t, hub, "sess-1")
		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, _, err = conn.ReadMessage()
		require.Error(t, err)
		assert.True(t, websocket.IsCloseError(err, websocket.CloseAbnormalClosure), "unexpected error: %v", err)
		assert.Equal(t, 0, hub.Clients())
	})
}
