package proto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseClientBind(t *testing.T) {
	mt, im, err := ParseClient([]byte(`{"type":"bind","id":"r1","appid":"app","side":"A"}`))
	require.NoError(t, err)
	require.Equal(t, TypeBind, mt)

	bind, ok := im.(*Bind)
	require.True(t, ok)
	require.Equal(t, "app", bind.AppID)
	require.Equal(t, "A", bind.Side)
	require.Equal(t, "r1", bind.GetID())
}

func TestParseClientAdd(t *testing.T) {
	mt, im, err := ParseClient([]byte(`{"type":"add","phase":"p","body":"deadbeef"}`))
	require.NoError(t, err)
	require.Equal(t, TypeAdd, mt)

	add, ok := im.(*Add)
	require.True(t, ok)
	require.Equal(t, "p", add.Phase)
	require.Equal(t, "deadbeef", add.Body)
}

func TestParseClientUnknownType(t *testing.T) {
	_, _, err := ParseClient([]byte(`{"type":"frobnicate"}`))
	require.ErrorIs(t, err, ErrUnknown)
}

func TestParseClientMalformedJSON(t *testing.T) {
	_, _, err := ParseClient([]byte(`not json`))
	require.Error(t, err)
}

func TestClientErrorIdentification(t *testing.T) {
	require.True(t, IsClientError(ErrBindFirst))
	require.False(t, IsClientError(nil))
}

func TestNewServerMessageSetsType(t *testing.T) {
	w := Welcome{ServerMessage: NewServerMessage(TypeWelcome)}
	require.Equal(t, TypeWelcome, w.GetType())
	require.Equal(t, "", w.GetID())
}
