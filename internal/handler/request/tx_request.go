package request

// SubmitTxRequest buy / withdraw 请求，amount 为空时使用已保存的输入
type SubmitTxRequest struct {
	Amount string `json:"amount" binding:"omitempty,max=64"`
}

// SetInputRequest 保存用户正在输入的金额
type SetInputRequest struct {
	Value string `json:"value" binding:"max=64"`
}
