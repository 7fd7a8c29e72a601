package handler

import (
	"context"

	"dapp-core/internal/handler/request"
	"dapp-core/internal/handler/response"
	"dapp-core/internal/model"
	"dapp-core/internal/service"
	"dapp-core/pkg/errno"
	"dapp-core/pkg/validator"

	"github.com/gin-gonic/gin"
)

// TxService is the part of the transaction orchestrator the HTTP surface uses.
type TxService interface {
	Submit(ctx context.Context, kind model.TxKind, amount string) (*service.Flight, error)
	Status(kind model.TxKind) model.TxStatus
	SetInput(kind model.TxKind, value string)
}

type TxHandler struct {
	txs TxService
}

func NewTxHandler(txs TxService) *TxHandler {
	return &TxHandler{txs: txs}
}

func (h *TxHandler) Buy(c *gin.Context) {
	h.submit(c, model.TxKindBuy)
}

func (h *TxHandler) Withdraw(c *gin.Context) {
	h.submit(c, model.TxKindWithdraw)
}

// submit 只做同步的前置检查，交易在后台继续，进度通过 /tx/:kind 或 ws 查看
func (h *TxHandler) submit(c *gin.Context, kind model.TxKind) {
	// 1. 绑定参数
	var req request.SubmitTxRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, errno.ErrBind.WithMessage(validator.GetErrorMsg(err)))
			return
		}
	}

	// 2. 提交
	f, err := h.txs.Submit(c.Request.Context(), kind, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, f.Request())
}

func (h *TxHandler) Status(c *gin.Context) {
	kind, err := model.ParseTxKind(c.Param("kind"))
	if err != nil {
		response.Error(c, errno.ErrUnknownKind)
		return
	}
	response.Success(c, h.txs.Status(kind))
}

func (h *TxHandler) SetInput(c *gin.Context) {
	kind, err := model.ParseTxKind(c.Param("kind"))
	if err != nil {
		response.Error(c, errno.ErrUnknownKind)
		return
	}
	var req request.SetInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind.WithMessage(validator.GetErrorMsg(err)))
		return
	}
	h.txs.SetInput(kind, req.Value)
	response.Success(c, h.txs.Status(kind))
}
