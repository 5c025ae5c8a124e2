// Package protocol 定义服务端与客户端之间的 WebSocket 消息格式。
//
// 每个文本帧都是一个信封：{"type":"<消息名>","payload":<JSON>}。
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// 消息类型（S→C 除非特别注明）
const (
	TypeCityMap            = "cityMap"
	TypeCurrentPlayers     = "currentPlayers"
	TypeNewPlayer          = "newPlayer"
	TypePlayerMovement     = "playerMovement" // C→S
	TypePlayerMoved        = "playerMoved"
	TypePlayerDisconnected = "playerDisconnected"
	TypeUpdateAI           = "updateAI"
)

// ErrMalformed 表示消息缺少必需字段或无法解析；调用方丢弃该消息，不断开连接
var ErrMalformed = errors.New("malformed message")

// Envelope 用于按 type 路由未知的 JSON 消息
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode 将载荷包装为信封并序列化
func Encode(typ string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", typ, err)
	}
	return json.Marshal(Envelope{Type: typ, Payload: raw})
}

// MustEncode 仅用于载荷类型固定、不可能序列化失败的场景
func MustEncode(typ string, payload any) []byte {
	b, err := Encode(typ, payload)
	if err != nil {
		panic(err)
	}
	return b
}

// DecodeEnvelope 只解析外层信封，载荷保持原样
func DecodeEnvelope(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return env, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return env, nil
}
