package ws

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chris-pikul/wormhole-rendezvous/internal/config"
	"github.com/chris-pikul/wormhole-rendezvous/internal/proto"
	"github.com/chris-pikul/wormhole-rendezvous/internal/rendezvous"
	"github.com/chris-pikul/wormhole-rendezvous/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	opts := config.DefaultOptions
	opts.DBFile = ":memory:"

	rend := rendezvous.New(st, nil, 0, nil)
	return New(opts, rend, st, nil)
}

func newTestClient(srv *Server) *Client {
	return &Client{
		server:     srv,
		sendBuffer: make(chan proto.IMessage, 16),
	}
}

func drain(c *Client) proto.IMessage {
	select {
	case m := <-c.sendBuffer:
		return m
	default:
		return nil
	}
}

func TestHandleBindRequiresAppIDAndSide(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(srv)

	require.ErrorIs(t, c.HandleBind(&proto.Bind{AppID: "", Side: "A"}), proto.ErrBindAppID)
	require.ErrorIs(t, c.HandleBind(&proto.Bind{AppID: "app", Side: ""}), proto.ErrBindSide)

	require.NoError(t, c.HandleBind(&proto.Bind{AppID: "app", Side: "A"}))
	require.True(t, c.IsBound())

	require.ErrorIs(t, c.HandleBind(&proto.Bind{AppID: "app", Side: "A"}), proto.ErrBound)
}

func TestHandleBindRejectsDisallowedAppID(t *testing.T) {
	srv := newTestServer(t)
	srv.opts.AppIDs = []string{"allowed"}
	c := newTestClient(srv)

	require.ErrorIs(t, c.HandleBind(&proto.Bind{AppID: "not-allowed", Side: "A"}), proto.ErrBindAppID)
}

func TestAllocateClaimOpenAddCloseRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	a := newTestClient(srv)
	require.NoError(t, a.HandleBind(&proto.Bind{AppID: "app", Side: "A"}))
	require.NoError(t, a.HandleAllocate(&proto.Allocate{}))
	allocated, ok := drain(a).(proto.Allocated)
	require.True(t, ok)
	require.NotEmpty(t, allocated.Nameplate)

	b := newTestClient(srv)
	require.NoError(t, b.HandleBind(&proto.Bind{AppID: "app", Side: "B"}))
	require.NoError(t, b.HandleClaim(&proto.Claim{Nameplate: allocated.Nameplate}))
	claimed, ok := drain(b).(proto.Claimed)
	require.True(t, ok)
	require.NotEmpty(t, claimed.Mailbox)

	require.NoError(t, a.HandleOpen(&proto.Open{Mailbox: claimed.Mailbox}))
	require.NoError(t, b.HandleOpen(&proto.Open{Mailbox: claimed.Mailbox}))

	require.NoError(t, a.HandleAdd(&proto.Add{Phase: "p", Body: "hello"}))
	delivered, ok := drain(b).(proto.MailboxMessage)
	require.True(t, ok)
	require.Equal(t, "hello", delivered.Body)
	require.Equal(t, "A", delivered.Side)
	echoed, ok := drain(a).(proto.MailboxMessage)
	require.True(t, ok)
	require.Equal(t, "hello", echoed.Body)

	require.NoError(t, a.HandleClose(&proto.Close{Mood: "happy"}))
	_, ok = drain(a).(proto.Closed)
	require.True(t, ok)

	require.NoError(t, b.HandleClose(&proto.Close{Mood: "happy"}))

	usages, err := srv.store.ListMailboxUsage("app")
	require.NoError(t, err)
	require.Len(t, usages, 1)
	require.Equal(t, "lonely", usages[0].Result) // only A posted a message
}

func TestHandleClaimThirdSideReturnsCrowdedClientError(t *testing.T) {
	srv := newTestServer(t)

	a := newTestClient(srv)
	require.NoError(t, a.HandleBind(&proto.Bind{AppID: "app", Side: "A"}))
	require.NoError(t, a.HandleClaim(&proto.Claim{Nameplate: "1"}))

	b := newTestClient(srv)
	require.NoError(t, b.HandleBind(&proto.Bind{AppID: "app", Side: "B"}))
	require.NoError(t, b.HandleClaim(&proto.Claim{Nameplate: "1"}))

	cc := newTestClient(srv)
	require.NoError(t, cc.HandleBind(&proto.Bind{AppID: "app", Side: "C"}))
	err := cc.HandleClaim(&proto.Claim{Nameplate: "1"})
	require.ErrorIs(t, err, proto.ErrCrowded)
}

func TestMessageErrorMasksNonClientErrors(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(srv)

	c.messageError(require.AnError, []byte(`{}`))
	errMsg, ok := drain(c).(proto.Error)
	require.True(t, ok)
	require.Equal(t, proto.ErrInternal.Error(), errMsg.Error)
}

func TestMessageErrorPassesThroughClientErrors(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(srv)

	c.messageError(proto.ErrBindFirst, []byte(`{}`))
	errMsg, ok := drain(c).(proto.Error)
	require.True(t, ok)
	require.Equal(t, proto.ErrBindFirst.Error(), errMsg.Error)
}
