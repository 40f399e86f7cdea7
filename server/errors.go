package server

import "errors"

// 面向客户端的错误分类
var (
	ErrDuplicateAccount        = errors.New("username already taken")
	ErrInvalidCredentials      = errors.New("invalid username or password")
	ErrNotAuthenticated        = errors.New("login required")
	ErrAlreadyOnline           = errors.New("account already online")
	ErrInvalidOffer            = errors.New("invalid trade offer")
	ErrMissingIngredients      = errors.New("missing ingredients")
	ErrInsufficientSkillPoints = errors.New("not enough skill points")
	ErrInventoryFull           = errors.New("inventory full")
	ErrProtocol                = errors.New("malformed message")

	// 以下两类只在服务端内部使用，客户端看不到（下一次广播会纠正状态）
	ErrTargetNotFound = errors.New("target not found")
	ErrOutOfRange     = errors.New("target out of range")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrDuplicateAccount, "DuplicateAccount"},
	{ErrInvalidCredentials, "InvalidCredentials"},
	{ErrNotAuthenticated, "NotAuthenticated"},
	{ErrAlreadyOnline, "AlreadyOnline"},
	{ErrInvalidOffer, "InvalidOffer"},
	{ErrMissingIngredients, "MissingIngredients"},
	{ErrInsufficientSkillPoints, "InsufficientSkillPoints"},
	{ErrInventoryFull, "InventoryFull"},
	{ErrProtocol, "ProtocolError"},
	{ErrTargetNotFound, "TargetNotFound"},
	{ErrOutOfRange, "OutOfRange"},
	{errTradeNotFound, "TargetNotFound"},
	{errPlayerOffline, "TargetNotFound"},
	{errNotYourTrade, "InvalidOffer"},
}

// errorCode 将（可能被包装的）错误映射为协议里的错误码
func errorCode(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "InternalError"
}
