package proto

import (
	"encoding/json"
	"errors"
)

//ErrUnknown is returned by ParseClient when the frame's type field does
//not match any known client command. It is a parse-level error, distinct
//from the client-facing ErrUnknownType reply it gets converted to.
var ErrUnknown = errors.New("proto: unknown client message type")

//Ping asks for a Pong carrying the same nonce, and doubles as the
//client's keepalive.
type Ping struct {
	ClientMessage
	Ping int64 `json:"ping"`
}

//Bind associates the connection with an app_id and a side token. Must
//precede every other command except Ping.
type Bind struct {
	ClientMessage
	AppID string `json:"appid"`
	Side  string `json:"side"`
}

//List requests the set of currently claimed nameplate ids, if the
//server's configuration allows it.
type List struct {
	ClientMessage
}

//Allocate asks the server to pick a fresh nameplate and claim it for
//the bound side.
type Allocate struct {
	ClientMessage
}

//Claim claims a caller-chosen nameplate for the bound side.
type Claim struct {
	ClientMessage
	Nameplate string `json:"nameplate"`
}

//Release releases the bound side's hold on a claimed nameplate.
type Release struct {
	ClientMessage
	Nameplate string `json:"nameplate,omitempty"`
}

//Open opens a mailbox for reading and registers a listener.
type Open struct {
	ClientMessage
	Mailbox string `json:"mailbox"`
}

//Add appends one phase message to the opened mailbox.
type Add struct {
	ClientMessage
	Phase string `json:"phase"`
	Body  string `json:"body"`
}

//Close releases the bound side's hold on an opened mailbox.
type Close struct {
	ClientMessage
	Mailbox string `json:"mailbox,omitempty"`
	Mood    string `json:"mood,omitempty"`
}

//clientEnvelope is used only to sniff the type field before deciding
//which concrete struct to decode into.
type clientEnvelope struct {
	Type MessageType `json:"type"`
}

//ParseClient decodes a raw client frame, returning its MessageType and
//the decoded IMessage. Returns ErrUnknown for an unrecognized type.
func ParseClient(src []byte) (MessageType, IMessage, error) {
	var env clientEnvelope
	if err := json.Unmarshal(src, &env); err != nil {
		return "", nil, err
	}

	var im IMessage
	switch env.Type {
	case TypePing:
		im = &Ping{}
	case TypeBind:
		im = &Bind{}
	case TypeList:
		im = &List{}
	case TypeAllocate:
		im = &Allocate{}
	case TypeClaim:
		im = &Claim{}
	case TypeRelease:
		im = &Release{}
	case TypeOpen:
		im = &Open{}
	case TypeAdd:
		im = &Add{}
	case TypeClose:
		im = &Close{}
	default:
		return env.Type, nil, ErrUnknown
	}

	if err := json.Unmarshal(src, im); err != nil {
		return env.Type, nil, err
	}
	return env.Type, im, nil
}
