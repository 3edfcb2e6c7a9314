package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"schologic-practicum/backend/pkg/response"
)

// TokenRevoker 注销 Token 的存储，由 pkg/redis.Client 实现
type TokenRevoker interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
}

// SessionHandler 会话处理器
// Token 由统一身份服务签发，本服务只负责让已签发的 Token 提前失效
type SessionHandler struct {
	revoker TokenRevoker
}

// NewSessionHandler 创建 SessionHandler；revoker 为 nil 时注销接口返回 503
func NewSessionHandler(revoker TokenRevoker) *SessionHandler {
	return &SessionHandler{revoker: revoker}
}

// Logout 注销当前 Access Token
// POST /api/v1/auth/logout
func (h *SessionHandler) Logout(c *gin.Context) {
	if _, ok := MustGetUserID(c); !ok {
		return
	}
	if h.revoker == nil {
		response.Error(c, http.StatusServiceUnavailable, 10010, "注销服务暂不可用")
		return
	}

	jti := c.GetString("token_jti")
	exp, _ := c.Get("token_exp")
	expAt, _ := exp.(time.Time)
	if jti == "" || expAt.IsZero() {
		response.Unauthorized(c, 10002, "未认证")
		return
	}

	if err := h.revoker.BlacklistToken(c.Request.Context(), jti, time.Until(expAt)); err != nil {
		_ = c.Error(err)
		response.InternalError(c)
		return
	}

	response.OK(c, nil)
}
