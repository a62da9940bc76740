// Package channel bridges external chat transports into the room: every
// sender becomes a character and every text line a room message.
package channel

import "context"

// Inbound is one text line received by a transport.
type Inbound struct {
	Channel    string            `json:"channel"`
	SenderID   string            `json:"sender_id"`
	SenderName string            `json:"sender_name"`
	ChatID     string            `json:"chat_id"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Reply is sent back to the chat the inbound line came from. An empty reply
// sends nothing.
type Reply struct {
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// Handler processes one inbound line.
type Handler func(context.Context, Inbound) (Reply, error)

// Adapter bridges one external transport (for example Telegram) into the room.
type Adapter interface {
	Name() string
	Run(context.Context, Handler) error
}
