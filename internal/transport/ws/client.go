// Package ws is the reference transport binding for the rendezvous
// engine: it upgrades HTTP connections to websockets, frames the wire
// vocabulary in internal/proto, and maps each frame to the
// corresponding internal/rendezvous operation. Nothing in
// internal/rendezvous depends on this package; a different transport
// could be substituted without touching the engine.
package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/chris-pikul/wormhole-rendezvous/internal/config"
	"github.com/chris-pikul/wormhole-rendezvous/internal/proto"
	"github.com/chris-pikul/wormhole-rendezvous/internal/rendezvous"
	"github.com/chris-pikul/wormhole-rendezvous/internal/store"
)

const (
	readWait  = 60 * time.Second
	writeWait = 10 * time.Second

	pingInterval = (readWait * 9) / 10

	maxMessageSize = 4096
)

//Client wraps one websocket connection together with the rendezvous
//state it has bound to: its app namespace, side token, and (at most
//one) claimed nameplate and opened mailbox.
type Client struct {
	conn       *websocket.Conn
	sendBuffer chan proto.IMessage

	server *Server

	App       *rendezvous.AppNamespace
	Side      string
	Nameplate string
	Mailbox   *rendezvous.Mailbox

	Allocated bool
	Claimed   bool
	Released  bool
	Listening bool
	Closed    bool

	listenerHandle uuid.UUID
}

//Close tears down the connection and releases any listener it registered.
func (c *Client) Close() {
	if c.Mailbox != nil && c.Listening {
		c.Mailbox.RemoveListener(c.listenerHandle)
	}

	close(c.sendBuffer)

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

//IsBound reports whether Bind has already succeeded on this connection.
func (c *Client) IsBound() bool {
	return c.App != nil && c.Side != ""
}

func (c *Client) watchReads() {
	defer func() {
		c.server.unregister <- c
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(readWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				LogErr(c, "reading from socket connection", err)
			}
			break
		}

		c.OnMessage(message)
	}
}

func (c *Client) watchWrites() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		if c.conn != nil {
			c.conn.Close()
		}
	}()

	for {
		select {
		case msgObj, ok := <-c.sendBuffer:
			if c.conn == nil {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if err := json.NewEncoder(w).Encode(msgObj); err != nil {
				LogErr(c, "failed to encode outgoing message", err)
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			if c.conn == nil {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) onMailboxMessage(m store.Message) {
	c.sendBuffer <- proto.MailboxMessage{
		ServerMessage: proto.NewServerMessage(proto.TypeMessage),
		Side:          m.Side,
		Phase:         m.Phase,
		Body:          string(m.Body),
		MsgID:         m.MsgID,
	}
}

func (c *Client) onMailboxStop() {
	c.Listening = false
}

//OnConnect sends the welcome frame, the first thing any client receives.
func (c *Client) OnConnect() {
	c.sendBuffer <- proto.Welcome{
		ServerMessage: proto.NewServerMessage(proto.TypeWelcome),
		Info:          c.server.welcome,
	}
}

//OnMessage decodes and dispatches one raw client frame.
func (c *Client) OnMessage(src []byte) {
	mt, im, err := proto.ParseClient(src)
	if err != nil {
		c.messageError(err, src)
		return
	}

	c.sendBuffer <- proto.Ack{
		ServerMessage: proto.NewServerMessage(proto.TypeAck),
		ID:            im.GetID(),
	}

	if !c.IsBound() && mt != proto.TypePing && mt != proto.TypeBind {
		c.messageError(proto.ErrBindFirst, src)
		return
	}

	var e error
	switch mt {
	case proto.TypePing:
		c.HandlePing(im.(*proto.Ping))
	case proto.TypeBind:
		e = c.HandleBind(im.(*proto.Bind))
	case proto.TypeList:
		e = c.HandleList(im.(*proto.List))
	case proto.TypeAllocate:
		e = c.HandleAllocate(im.(*proto.Allocate))
	case proto.TypeClaim:
		e = c.HandleClaim(im.(*proto.Claim))
	case proto.TypeRelease:
		e = c.HandleRelease(im.(*proto.Release))
	case proto.TypeOpen:
		e = c.HandleOpen(im.(*proto.Open))
	case proto.TypeAdd:
		e = c.HandleAdd(im.(*proto.Add))
	case proto.TypeClose:
		e = c.HandleClose(im.(*proto.Close))
	default:
		e = fmt.Errorf("unsupported command %q", mt)
	}

	if e != nil {
		c.messageError(e, src)
	}
}

//messageError masks non-protocol errors before reporting them, so
//internal details (SQL errors, filesystem errors) never reach a client.
func (c *Client) messageError(err error, orig []byte) {
	LogErr(c, "error handling client message", err)

	if err == proto.ErrUnknown {
		err = proto.ErrUnknownType
	}
	if !proto.IsClientError(err) {
		err = proto.ErrInternal
	}

	c.sendBuffer <- proto.Error{
		ServerMessage: proto.NewServerMessage(proto.TypeError),
		Error:         err.Error(),
		Orig:          orig,
	}
}

//HandlePing replies with a Pong carrying the same nonce.
func (c *Client) HandlePing(m *proto.Ping) {
	c.sendBuffer <- proto.Pong{
		ServerMessage: proto.NewServerMessage(proto.TypePong),
		Pong:          m.Ping,
	}
}

//HandleBind associates the connection with an app namespace and side.
func (c *Client) HandleBind(m *proto.Bind) error {
	if c.IsBound() {
		return proto.ErrBound
	} else if m.AppID == "" {
		return proto.ErrBindAppID
	} else if m.Side == "" {
		return proto.ErrBindSide
	}
	if !c.server.opts.AppAllowed(m.AppID) {
		return proto.ErrBindAppID
	}

	c.App = c.server.rend.GetApp(m.AppID)
	c.Side = m.Side
	return nil
}

//HandleList answers with the claimed nameplate ids, if configured to.
func (c *Client) HandleList(m *proto.List) error {
	if !c.server.opts.AllowList {
		c.sendBuffer <- proto.Nameplates{
			ServerMessage: proto.NewServerMessage(proto.TypeNameplates),
			Nameplates:    []proto.NameplateEntry{},
		}
		return nil
	}

	ids, err := c.server.store.ListNameplateIDs(c.App.ID)
	if err != nil {
		LogErr(c, "listing nameplate ids", err)
		return proto.ErrInternal
	}

	resp := proto.Nameplates{
		ServerMessage: proto.NewServerMessage(proto.TypeNameplates),
		Nameplates:    make([]proto.NameplateEntry, 0, len(ids)),
	}
	for _, id := range ids {
		resp.Nameplates = append(resp.Nameplates, proto.NameplateEntry{ID: id})
	}
	c.sendBuffer <- resp
	return nil
}

//HandleAllocate allocates a fresh nameplate for the bound side.
func (c *Client) HandleAllocate(m *proto.Allocate) error {
	if c.Allocated {
		return proto.ErrAlreadyAllocated
	}

	id, err := c.App.AllocateNameplate(c.Side, c.server.now())
	if err != nil {
		return translateEngineError(err)
	}
	c.Allocated = true
	c.Nameplate = id

	c.sendBuffer <- proto.Allocated{
		ServerMessage: proto.NewServerMessage(proto.TypeAllocated),
		Nameplate:     id,
	}
	return nil
}

//HandleClaim claims a caller-chosen nameplate for the bound side.
func (c *Client) HandleClaim(m *proto.Claim) error {
	if c.Claimed {
		return proto.ErrAlreadyClaimed
	}
	if m.Nameplate == "" {
		return proto.ErrClaimNameplate
	}

	mboxID, err := c.App.ClaimNameplate(m.Nameplate, c.Side, c.server.now())
	if err != nil {
		return translateEngineError(err)
	}
	c.Claimed = true
	c.Nameplate = m.Nameplate

	c.sendBuffer <- proto.Claimed{
		ServerMessage: proto.NewServerMessage(proto.TypeClaimed),
		Mailbox:       mboxID,
	}
	return nil
}

//HandleRelease releases the bound side's hold on its claimed nameplate.
func (c *Client) HandleRelease(m *proto.Release) error {
	if c.Released {
		return proto.ErrAlreadyReleased
	}
	if m.Nameplate != "" && m.Nameplate != c.Nameplate {
		return proto.ErrReleaseNameplate
	} else if m.Nameplate == "" && c.Nameplate == "" {
		return proto.ErrReleaseNotClaimed
	}

	if err := c.App.ReleaseNameplate(c.Nameplate, c.Side, c.server.now()); err != nil {
		return translateEngineError(err)
	}
	c.Released = true

	c.sendBuffer <- proto.Released{ServerMessage: proto.NewServerMessage(proto.TypeReleased)}
	return nil
}

//HandleOpen opens the named mailbox and registers a listener on it.
func (c *Client) HandleOpen(m *proto.Open) error {
	if c.Mailbox != nil {
		return proto.ErrAlreadyOpened
	}
	if m.Mailbox == "" {
		return proto.ErrOpenMailbox
	}

	mbox, err := c.App.OpenMailbox(m.Mailbox, c.Side, c.server.now())
	if err != nil {
		return translateEngineError(err)
	}
	c.Mailbox = mbox

	c.listenerHandle = uuid.New()
	snapshot, err := mbox.AddListener(c.listenerHandle, c.onMailboxMessage, c.onMailboxStop)
	if err != nil {
		return translateEngineError(err)
	}
	c.Listening = true

	for _, msg := range snapshot {
		c.onMailboxMessage(msg)
	}
	return nil
}

//HandleAdd appends one phase message to the opened mailbox.
func (c *Client) HandleAdd(m *proto.Add) error {
	if c.Mailbox == nil {
		return proto.ErrOpenFirst
	}
	if m.Phase == "" {
		return proto.ErrAddPhase
	}
	if m.Body == "" {
		return proto.ErrAddBody
	}

	msgID := m.ID
	if msgID == "" {
		msgID = uuid.New().String()
	}

	err := c.Mailbox.AddMessage(store.Message{
		MsgID:     msgID,
		AppID:     c.App.ID,
		MailboxID: c.Mailbox.ID,
		Side:      c.Side,
		Phase:     m.Phase,
		Body:      []byte(m.Body),
		ServerRX:  c.server.now().Unix(),
	})
	if err != nil {
		return translateEngineError(err)
	}
	return nil
}

//HandleClose releases the bound side's hold on its opened mailbox.
func (c *Client) HandleClose(m *proto.Close) error {
	if c.Closed {
		return proto.ErrAlreadyClosed
	}

	if m.Mailbox != "" {
		if c.Mailbox != nil && c.Mailbox.ID != m.Mailbox {
			return proto.ErrCloseMailbox
		}
	} else if c.Mailbox == nil {
		return proto.ErrCloseOpenFirst
	}

	if c.Mailbox == nil {
		mbox, err := c.App.OpenMailbox(m.Mailbox, c.Side, c.server.now())
		if err != nil {
			return translateEngineError(err)
		}
		c.Mailbox = mbox
	}

	if err := c.Mailbox.Close(c.Side, m.Mood, c.server.now()); err != nil {
		return translateEngineError(err)
	}

	if c.Listening {
		c.Mailbox.RemoveListener(c.listenerHandle)
		c.Listening = false
	}
	c.Mailbox = nil
	c.Closed = true

	c.sendBuffer <- proto.Closed{ServerMessage: proto.NewServerMessage(proto.TypeClosed)}
	return nil
}

//translateEngineError maps internal/rendezvous sentinel errors to the
//client-facing vocabulary; anything unrecognized is masked upstream by
//messageError.
func translateEngineError(err error) error {
	switch err {
	case rendezvous.ErrCrowded:
		return proto.ErrCrowded
	case rendezvous.ErrNoNameplate:
		return proto.ErrNoNameplate
	default:
		return err
	}
}
