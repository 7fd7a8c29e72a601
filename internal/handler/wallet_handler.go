package handler

import (
	"context"

	"dapp-core/internal/handler/request"
	"dapp-core/internal/handler/response"
	"dapp-core/internal/service/session"
	"dapp-core/pkg/errno"
	"dapp-core/pkg/validator"

	"github.com/gin-gonic/gin"
)

// SessionService is the part of the session manager the HTTP surface uses.
type SessionService interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context)
	Current() session.View
	SwitchAccount(ctx context.Context, index int) error
}

type WalletHandler struct {
	sessions SessionService
}

func NewWalletHandler(sessions SessionService) *WalletHandler {
	return &WalletHandler{sessions: sessions}
}

// Connect 连接钱包，返回连接后的会话
func (h *WalletHandler) Connect(c *gin.Context) {
	if err := h.sessions.Connect(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, h.sessions.Current().Info)
}

func (h *WalletHandler) Disconnect(c *gin.Context) {
	h.sessions.Disconnect(c.Request.Context())
	response.Success(c, h.sessions.Current().Info)
}

func (h *WalletHandler) Session(c *gin.Context) {
	response.Success(c, h.sessions.Current().Info)
}

// SelectAccount 切换账户，结果通过 accounts-changed 事件回到会话
func (h *WalletHandler) SelectAccount(c *gin.Context) {
	var req request.SelectAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind.WithMessage(validator.GetErrorMsg(err)))
		return
	}
	if err := h.sessions.SwitchAccount(c.Request.Context(), *req.Index); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, h.sessions.Current().Info)
}
