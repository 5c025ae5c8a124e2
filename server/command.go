package server

import "citydrive/protocol"

// CommandKind 连接入站命令的种类
type CommandKind int

const (
	CmdJoin CommandKind = iota
	CmdMove
	CmdDisconnect
)

func (k CommandKind) String() string {
	switch k {
	case CmdJoin:
		return "join"
	case CmdMove:
		return "move"
	case CmdDisconnect:
		return "disconnect"
	}
	return "unknown"
}

// Command 每个连接经由唯一入口 Dispatcher.Handle 投递的命令
type Command struct {
	Kind     CommandKind
	PlayerID PlayerID
	Out      Outbox                  // 仅 Join
	Move     protocol.PlayerMovement // 仅 Move
}
