// Package hub fans websocket messages out to every connected client of a
// stream. Each Hub owns one stream; clients register through NewClient.
package hub

import "github.com/gofiber/websocket/v2"

// MessageType selects the websocket frame type a Message is written with.
type MessageType int

const (
	// JSONMessage is written as a text frame.
	JSONMessage MessageType = iota
	// BinaryMessage is written as a binary frame, e.g. a JPEG preview.
	BinaryMessage
)

// Message is one payload queued for broadcast.
type Message struct {
	Type MessageType
	Data []byte
}

// NewJSONMessage wraps already-encoded JSON.
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewBinaryMessage wraps raw bytes.
func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}

// wsType maps the message to its websocket frame opcode.
func (m Message) wsType() int {
	if m.Type == BinaryMessage {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}
