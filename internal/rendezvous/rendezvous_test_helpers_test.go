package rendezvous

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chris-pikul/wormhole-rendezvous/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}
