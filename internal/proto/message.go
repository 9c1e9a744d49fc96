// Package proto defines the wire vocabulary spoken over the transport
// layer: client-to-server command frames, server-to-client reply
// frames, and the client-facing error set. It has no dependency on
// internal/rendezvous — the transport package is the only thing that
// translates between the two.
package proto

//MessageType names one frame kind on the wire.
type MessageType string

const (
	TypeWelcome    MessageType = "welcome"
	TypeBind       MessageType = "bind"
	TypeList       MessageType = "list"
	TypeNameplates MessageType = "nameplates"
	TypeAllocate   MessageType = "allocate"
	TypeAllocated  MessageType = "allocated"
	TypeClaim      MessageType = "claim"
	TypeClaimed    MessageType = "claimed"
	TypeRelease    MessageType = "release"
	TypeReleased   MessageType = "released"
	TypeOpen       MessageType = "open"
	TypeAdd        MessageType = "add"
	TypeMessage    MessageType = "message"
	TypeClose      MessageType = "close"
	TypeClosed     MessageType = "closed"
	TypePing       MessageType = "ping"
	TypePong       MessageType = "pong"
	TypeAck        MessageType = "ack"
	TypeError      MessageType = "error"
)

func (t MessageType) String() string { return string(t) }

//IMessage is implemented by every client- and server-bound frame.
type IMessage interface {
	GetType() MessageType
	GetID() string
}

//ClientMessage is embedded by every frame a client sends. ID is
//optional and, when present, is echoed back in the matching Ack.
type ClientMessage struct {
	Type MessageType `json:"type"`
	ID   string      `json:"id,omitempty"`
}

func (m ClientMessage) GetType() MessageType { return m.Type }
func (m ClientMessage) GetID() string        { return m.ID }

//ServerMessage is embedded by every frame the server sends.
type ServerMessage struct {
	Type MessageType `json:"type"`
}

func (m ServerMessage) GetType() MessageType { return m.Type }
func (m ServerMessage) GetID() string        { return "" }

//NewServerMessage constructs the common envelope for a server reply.
func NewServerMessage(t MessageType) ServerMessage {
	return ServerMessage{Type: t}
}
