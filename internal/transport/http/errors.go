package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"backendmanager/console/internal/auth"
	"backendmanager/console/internal/dashboard"
	"backendmanager/console/internal/domain"
	"backendmanager/console/internal/storage"
)

type errorMapping struct {
	status int
	msg    string
}

// 错误映射表（业务错误 -> HTTP 状态码与提示）
var errorMessages = map[error]errorMapping{
	// 控制台错误
	domain.ErrUnknownSection:          {http.StatusNotFound, "Unknown section"},
	domain.ErrUnknownAction:           {http.StatusNotFound, "Unknown action"},
	domain.ErrInvalidSettings:         {http.StatusBadRequest, "Invalid settings"},
	dashboard.ErrRejectionNotFound:    {http.StatusNotFound, "Rejection not found"},
	dashboard.ErrMissingID:            {http.StatusBadRequest, "Record id is required"},
	dashboard.ErrConfirmationRequired: {http.StatusPreconditionRequired, "Confirmation required"},

	// 认证错误
	auth.ErrInvalidIdentityToken: {http.StatusUnauthorized, "Invalid identity token"},
	auth.ErrProfileUnavailable:   {http.StatusUnauthorized, "Could not verify staff profile"},
	auth.ErrNotBackendManager:    {http.StatusForbidden, "Access restricted to backend managers"},
	storage.ErrSessionNotFound:   {http.StatusUnauthorized, MsgAuthRequired},

	// 存储错误
	storage.ErrAuditDisabled: {http.StatusNotFound, "Audit trail is not enabled"},
}

// 通用错误消息
const (
	MsgInvalidRequest = "Invalid request body"
	MsgAuthRequired   = "authentication required"
	MsgInternalError  = "Internal server error, please try again later"
)

// lookupError 按 errors.Is 匹配映射表，未匹配时为 500
func lookupError(err error) errorMapping {
	for target, mapping := range errorMessages {
		if errors.Is(err, target) {
			return mapping
		}
	}
	return errorMapping{status: http.StatusInternalServerError, msg: MsgInternalError}
}

// GetErrorMessage 获取错误的提示消息
func GetErrorMessage(err error) string {
	return lookupError(err).msg
}

// respondError 将业务错误写为统一 JSON 响应
func respondError(c *gin.Context, err error) {
	var confirm *dashboard.ConfirmationError
	if errors.As(err, &confirm) {
		ErrorWithData(c, http.StatusPreconditionRequired, errorMessages[dashboard.ErrConfirmationRequired].msg, gin.H{
			"action": confirm.Action,
			"prompt": confirm.Prompt,
		})
		return
	}

	mapping := lookupError(err)
	_ = c.Error(err)
	Error(c, mapping.status, mapping.msg)
}
