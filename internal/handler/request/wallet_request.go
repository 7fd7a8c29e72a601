package request

// SelectAccountRequest 切换 HD 钱包的当前账户
type SelectAccountRequest struct {
	Index *int `json:"index" binding:"required,min=0"`
}
