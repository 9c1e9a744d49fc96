package rendezvous

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chris-pikul/wormhole-rendezvous/internal/store"
)

func TestGetAppIsMemoized(t *testing.T) {
	st := newTestStore(t)
	r := New(st, []byte("welcome"), 0, nil)

	a1 := r.GetApp("app")
	a2 := r.GetApp("app")
	require.Same(t, a1, a2)
}

func TestPruneEvictsFullyIdleApp(t *testing.T) {
	st := newTestStore(t)
	r := New(st, nil, 0, nil)

	app := r.GetApp("app")
	_, err := app.ClaimNameplate("1", "A", unixTime(1000))
	require.NoError(t, err)

	require.NoError(t, r.Prune(unixTime(1000).Add(4*24*time.Hour)))

	row, err := st.GetNameplate("app", "1")
	require.NoError(t, err)
	require.Nil(t, row, "stale nameplate should have been pruned")

	r.mu.Lock()
	_, stillTracked := r.apps["app"]
	r.mu.Unlock()
	require.False(t, stillTracked, "an app with no remaining nameplates or mailboxes should be evicted")
}

func TestPruneKeepsAppWithFreshNameplate(t *testing.T) {
	st := newTestStore(t)
	r := New(st, nil, 0, nil)

	app := r.GetApp("app")
	_, err := app.ClaimNameplate("1", "A", unixTime(5000))
	require.NoError(t, err)

	require.NoError(t, r.Prune(unixTime(2000)))

	r.mu.Lock()
	_, stillTracked := r.apps["app"]
	r.mu.Unlock()
	require.True(t, stillTracked)
}

func TestPruneDeletesIdleMailboxWithStaleTrafficAndEmitsPruneyUsage(t *testing.T) {
	st := newTestStore(t)
	r := New(st, nil, 0, nil)

	app := r.GetApp("app")
	mbox, err := app.OpenMailbox("mb1", "A", unixTime(1000))
	require.NoError(t, err)
	require.NoError(t, mbox.AddMessage(store.Message{MsgID: "m1", AppID: "app", MailboxID: "mb1", Side: "A", ServerRX: 1000}))

	farFuture := unixTime(1000).Add(4 * 24 * time.Hour)

	require.NoError(t, r.Prune(farFuture))

	row, err := st.GetMailbox("app", "mb1")
	require.NoError(t, err)
	require.Nil(t, row, "an idle mailbox past the expiration window should be pruned")

	usages, err := st.ListMailboxUsage("app")
	require.NoError(t, err)
	require.Len(t, usages, 1)
	require.Equal(t, "pruney", usages[0].Result)
}

func TestShutdownStopsAllListeners(t *testing.T) {
	st := newTestStore(t)
	r := New(st, nil, 0, nil)

	app := r.GetApp("app")
	mbox, err := app.OpenMailbox("mb1", "A", unixTime(1000))
	require.NoError(t, err)

	stopped := false
	_, err = mbox.AddListener("h", func(store.Message) {}, func() { stopped = true })
	require.NoError(t, err)

	r.Shutdown()
	require.True(t, stopped)
}

// TestListenerSnapshotAtomicityUnderConcurrency races AddMessage against
// AddListener on the same mailbox: every listener's initial snapshot plus
// the messages broadcast to it afterward must together equal exactly the
// full set of messages added, with none lost and none delivered twice.
func TestListenerSnapshotAtomicityUnderConcurrency(t *testing.T) {
	st := newTestStore(t)
	app := newAppNamespace(st, 0, false, "app")

	mbox, err := app.OpenMailbox("mb1", "A", unixTime(1000))
	require.NoError(t, err)

	const numMessages = 100
	const numListeners = 20

	var wg sync.WaitGroup
	wg.Add(numMessages)
	for i := 0; i < numMessages; i++ {
		go func(i int) {
			defer wg.Done()
			_ = mbox.AddMessage(store.Message{
				MsgID:     strconv.Itoa(i),
				AppID:     "app",
				MailboxID: "mb1",
				Side:      "A",
				ServerRX:  int64(1000 + i),
			})
		}(i)
	}

	results := make([][]string, numListeners)
	var listenerWG sync.WaitGroup
	listenerWG.Add(numListeners)
	for l := 0; l < numListeners; l++ {
		go func(l int) {
			defer listenerWG.Done()
			var mu sync.Mutex
			seen := make(map[string]int)
			snapshot, err := mbox.AddListener(l, func(m store.Message) {
				mu.Lock()
				defer mu.Unlock()
				seen[m.MsgID]++
			}, func() {})
			require.NoError(t, err)

			mu.Lock()
			for _, m := range snapshot {
				seen[m.MsgID]++
			}
			mu.Unlock()

			wg.Wait() // ensure all broadcasts for this run have settled before reading

			mu.Lock()
			defer mu.Unlock()
			ids := make([]string, 0, len(seen))
			for id, n := range seen {
				for i := 0; i < n; i++ {
					ids = append(ids, id)
				}
			}
			results[l] = ids
		}(l)
	}

	wg.Wait()
	listenerWG.Wait()

	expected := make([]string, numMessages)
	for i := range expected {
		expected[i] = strconv.Itoa(i)
	}
	for l, ids := range results {
		require.Len(t, ids, numMessages, "listener %d must see every message exactly once (snapshot ++ broadcast, no gaps or dupes)", l)
		require.ElementsMatch(t, expected, ids, "listener %d must see every message exactly once (snapshot ++ broadcast, no gaps or dupes)", l)
	}
}
