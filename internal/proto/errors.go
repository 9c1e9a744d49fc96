package proto

//ClientError is the set of protocol-level errors that are safe to
//report back to the offending client verbatim; anything else gets
//masked to ErrInternal before it reaches the wire.
type ClientError struct {
	text string
}

func (e *ClientError) Error() string { return e.text }

func newClientError(text string) *ClientError {
	return &ClientError{text: text}
}

//IsClientError reports whether err is safe to send to a client as-is.
func IsClientError(err error) bool {
	_, ok := err.(*ClientError)
	return ok
}

var (
	ErrUnknownType = newClientError("unsupported message type")
	ErrInternal    = newClientError("internal server error")

	ErrBindFirst = newClientError("must bind before any other command")
	ErrBindAppID = newClientError("bind requires an appid")
	ErrBindSide  = newClientError("bind requires a side")
	ErrBound     = newClientError("already bound")

	ErrAlreadyAllocated = newClientError("nameplate already allocated on this connection")
	ErrAlreadyClaimed   = newClientError("nameplate already claimed on this connection")
	ErrClaimNameplate   = newClientError("claim requires a nameplate")

	ErrAlreadyReleased   = newClientError("nameplate already released")
	ErrReleaseNameplate  = newClientError("release nameplate does not match the claimed one")
	ErrReleaseNotClaimed = newClientError("no nameplate has been claimed")

	ErrAlreadyOpened = newClientError("mailbox already opened on this connection")
	ErrOpenMailbox   = newClientError("open requires a mailbox id")

	ErrOpenFirst = newClientError("must open a mailbox before adding messages")
	ErrAddPhase  = newClientError("add requires a phase")
	ErrAddBody   = newClientError("add requires a body")

	ErrAlreadyClosed  = newClientError("mailbox already closed")
	ErrCloseMailbox   = newClientError("close mailbox does not match the opened one")
	ErrCloseOpenFirst = newClientError("must open a mailbox before closing it")

	ErrCrowded     = newClientError("crowded")
	ErrNoNameplate = newClientError("no available nameplate ids")
)
