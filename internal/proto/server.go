package proto

//WelcomeInfo carries the process-wide welcome blob advertised to every
//newly connected client. Pointer fields are omitted from the reply when
//unset, mirroring the optional MOTD/error/version advertisement.
type WelcomeInfo struct {
	MOTD    *string `json:"motd,omitempty"`
	Error   *string `json:"error,omitempty"`
	Version *string `json:"current_cli_version,omitempty"`
}

//Welcome is the first frame sent to every connection.
type Welcome struct {
	ServerMessage
	Info WelcomeInfo `json:"welcome"`
}

//Ack acknowledges receipt of a client frame, echoing its id if it had one.
type Ack struct {
	ServerMessage
	ID string `json:"id,omitempty"`
}

//Pong answers a Ping with the same nonce.
type Pong struct {
	ServerMessage
	Pong int64 `json:"pong"`
}

//Allocated answers Allocate with the freshly chosen nameplate id.
type Allocated struct {
	ServerMessage
	Nameplate string `json:"nameplate"`
}

//Claimed answers Claim with the mailbox id.
type Claimed struct {
	ServerMessage
	Mailbox string `json:"mailbox"`
}

//Released answers a successful Release.
type Released struct {
	ServerMessage
}

//NameplateEntry is one row of a Nameplates listing.
type NameplateEntry struct {
	ID string `json:"id"`
}

//Nameplates answers List with the currently claimed nameplate ids.
type Nameplates struct {
	ServerMessage
	Nameplates []NameplateEntry `json:"nameplates"`
}

//MailboxMessage delivers one persisted phase message to a listener,
//either as part of the add_listener snapshot or a later broadcast.
type MailboxMessage struct {
	ServerMessage
	Side  string `json:"side"`
	Phase string `json:"phase"`
	Body  string `json:"body"`
	MsgID string `json:"id"`
}

//Closed answers a successful Close.
type Closed struct {
	ServerMessage
}

//Error reports a problem processing a client frame. Orig carries the
//raw bytes of the offending frame for client-side debugging.
type Error struct {
	ServerMessage
	Error string `json:"error"`
	Orig  []byte `json:"orig,omitempty"`
}
