package server

import (
	"encoding/json"

	"idlearena/game"
)

// 出站消息类型
const (
	typeAskLogin      = "askLogin"
	typeRegistered    = "registered"
	typeError         = "error"
	typeInit          = "init"
	typeState         = "state"
	typeCraftResult   = "craftResult"
	typeTradeRequest  = "tradeRequest"
	typeTradeResponse = "tradeResponse"
	typeTradeComplete = "tradeComplete"
	typeTradeDeclined = "tradeDeclined"
)

type simpleMessage struct {
	Type string `json:"type"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type stateMessage struct {
	Type string `json:"type"`
	Tick uint64 `json:"tick"`
	Snapshot
}

type initMessage struct {
	Type    string            `json:"type"`
	ID      PlayerID          `json:"id"`
	Token   string            `json:"token,omitempty"`
	Offline *game.OfflineGain `json:"offline,omitempty"`
	Snapshot
}

type craftResultMessage struct {
	Type   string     `json:"type"`
	OK     bool       `json:"ok"`
	Reason string     `json:"reason,omitempty"`
	Item   *game.Item `json:"item,omitempty"`
}

type tradeMessage struct {
	Type  string `json:"type"`
	Trade *Trade `json:"trade"`
}

type tradeResponseMessage struct {
	Type    string `json:"type"`
	OK      bool   `json:"ok"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Trade   *Trade `json:"trade,omitempty"`
}

type tradeDoneMessage struct {
	Type    string `json:"type"`
	TradeID string `json:"tradeId"`
}

func newErrorMessage(err error) errorMessage {
	return errorMessage{Type: typeError, Code: errorCode(err), Message: err.Error()}
}

// encode 序列化出站消息；失败时记录日志并返回 nil
func encode(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		Log.Errorw("failed to marshal outbound message", "error", err)
		return nil
	}
	return b
}
