package httptransport

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"backendmanager/console/internal/dashboard"
	"backendmanager/console/internal/domain"
	"backendmanager/console/internal/middleware"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// ConsoleHandler 控制台页面、分区片段与操作
type ConsoleHandler struct {
	console *dashboard.Service
	log     *zap.Logger
}

// NewConsoleHandler 创建控制台处理器
func NewConsoleHandler(console *dashboard.Service, logger *zap.Logger) *ConsoleHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleHandler{console: console, log: logger.Named("console")}
}

type actionRequest struct {
	Confirmed bool `json:"confirmed"`
}

// Page 渲染完整页面，总是从系统概览开始
func (h *ConsoleHandler) Page(c *gin.Context) {
	session := mustSession(c)
	body, err := h.console.Page(c.Request.Context(), session)
	if err != nil {
		h.log.Error("failed to render page", zap.String("session_id", session.ID), zap.Error(err))
		c.String(http.StatusInternalServerError, MsgInternalError)
		return
	}
	Fragment(c, http.StatusOK, body)
}

// Section 切换分区并返回需要替换的片段
func (h *ConsoleHandler) Section(c *gin.Context) {
	view, err := h.console.Navigate(c.Request.Context(), mustSession(c), c.Param("section"))
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, view)
}

// RejectionDetails 拒绝记录详情弹窗
func (h *ConsoleHandler) RejectionDetails(c *gin.Context) {
	body, err := h.console.RejectionDetails(mustSession(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	Fragment(c, http.StatusOK, body)
}

// Action 执行按钮操作，请求体可为空
func (h *ConsoleHandler) Action(c *gin.Context) {
	var req actionRequest
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		// 分块传输时 ContentLength 为 -1，空请求体解码得到 io.EOF
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			BadRequest(c, MsgInvalidRequest)
			return
		}
	}

	action := domain.Action(c.Param("action"))
	if action == domain.ActionSaveSettings || action == domain.ActionRefresh {
		NotFound(c, GetErrorMessage(domain.ErrUnknownAction))
		return
	}

	h.execute(c, dashboard.ActionRequest{
		Action:    action,
		ID:        c.Param("id"),
		Confirmed: req.Confirmed,
	})
}

// SaveSettings 整体提交设置弹窗
func (h *ConsoleHandler) SaveSettings(c *gin.Context) {
	var settings domain.Settings
	if err := c.ShouldBindJSON(&settings); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}
	h.execute(c, dashboard.ActionRequest{Action: domain.ActionSaveSettings, Settings: &settings})
}

// Refresh 重新加载系统概览
func (h *ConsoleHandler) Refresh(c *gin.Context) {
	h.execute(c, dashboard.ActionRequest{Action: domain.ActionRefresh})
}

func (h *ConsoleHandler) execute(c *gin.Context, req dashboard.ActionRequest) {
	result, err := h.console.Execute(c.Request.Context(), mustSession(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, result)
}

// Notifications 当前仍在显示的通知横幅
func (h *ConsoleHandler) Notifications(c *gin.Context) {
	body, err := h.console.Notifications(mustSession(c))
	if err != nil {
		h.log.Error("failed to render notifications", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}
	Fragment(c, http.StatusOK, body)
}

// State 会话应用状态的 JSON 快照
func (h *ConsoleHandler) State(c *gin.Context) {
	Success(c, h.console.Snapshot(mustSession(c)))
}

// Audit 最近的操作审计
func (h *ConsoleHandler) Audit(c *gin.Context) {
	limit := defaultAuditLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = min(n, maxAuditLimit)
	}

	entries, err := h.console.Audit(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, gin.H{"items": entries, "count": len(entries)})
}

// mustSession 取出 RequireSession 放入的会话
func mustSession(c *gin.Context) *domain.Session {
	session, _ := middleware.SessionFromContext(c)
	return session
}
