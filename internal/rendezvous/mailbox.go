package rendezvous

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/chris-pikul/wormhole-rendezvous/internal/store"
)

//channelExpiration is CHANNEL_EXPIRATION_TIME from spec.md §6: a
//mailbox with no listeners and no recent traffic is eligible for pruning.
const channelExpiration = 3 * 24 * time.Hour

//SendFunc delivers one message to one listener. Implementations must
//not block the caller indefinitely; spec.md §5 treats send as the
//engine's only asynchronous edge.
type SendFunc func(store.Message)

//StopFunc asks a listener to terminate. Invoked on mailbox deletion
//and on process shutdown.
type StopFunc func()

type listenerEntry struct {
	send SendFunc
	stop StopFunc
}

//Mailbox owns one (app_id, mailbox_id)'s runtime state: the two-sides
//state machine, the live-listener set, and message fan-out (spec.md §4.4).
//Construction is cheap; the durable row is created by AppNamespace.OpenMailbox.
type Mailbox struct {
	AppID string
	ID    string

	parent *AppNamespace
	store  *store.Store
	blur   int64

	mu        sync.Mutex
	listeners map[interface{}]listenerEntry
}

func newMailbox(parent *AppNamespace, st *store.Store, blur int64, appID, id string) *Mailbox {
	return &Mailbox{
		AppID:     appID,
		ID:        id,
		parent:    parent,
		store:     st,
		blur:      blur,
		listeners: make(map[interface{}]listenerEntry),
	}
}

//Open applies add_side to the mailbox's durable row for side. On a
//third side it marks the row crowded, commits, then returns ErrCrowded.
func (m *Mailbox) Open(side string, when time.Time) error {
	row, err := m.store.GetMailbox(m.AppID, m.ID)
	if err != nil {
		return err
	}
	if row == nil {
		return fmt.Errorf("rendezvous: open called on mailbox %s/%s with no durable row", m.AppID, m.ID)
	}

	wasSingle := len(presentSides(row.Side1, row.Side2)) == 1

	sr, err := addSide(row.Side1, row.Side2, side)
	if err != nil {
		if setErr := m.store.SetMailboxCrowded(m.AppID, m.ID); setErr != nil {
			return setErr
		}
		return ErrCrowded
	}
	if !sr.changed {
		return nil
	}

	second := row.Second
	if wasSingle {
		second = sql.NullInt64{Int64: when.Unix(), Valid: true}
	}

	return m.store.UpdateMailboxSides(m.AppID, m.ID, sr.side1, sr.side2, second)
}

//AddListener registers (send, stop) under handle and returns the
//current message list in server_rx ascending order. Registration and
//the snapshot happen atomically with respect to concurrent AddMessage
//calls, so no message can be lost or duplicated across the snapshot/
//broadcast boundary (spec.md §5, §8).
func (m *Mailbox) AddListener(handle interface{}, send SendFunc, stop StopFunc) ([]store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msgs, err := m.store.ListMessages(m.AppID, m.ID)
	if err != nil {
		return nil, err
	}

	m.listeners[handle] = listenerEntry{send: send, stop: stop}
	return msgs, nil
}

//RemoveListener deregisters handle. A no-op if already absent.
func (m *Mailbox) RemoveListener(handle interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.listeners, handle)
}

//AddMessage appends m, commits, then broadcasts it to every listener
//registered at that moment (persist-then-broadcast, spec.md §5).
func (m *Mailbox) AddMessage(msg store.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.InsertMessage(msg); err != nil {
		return err
	}

	for _, l := range m.listeners {
		l.send(msg)
	}
	return nil
}

//Close applies remove_side for side. If it empties the mailbox, the
//row and its messages are deleted, a mailbox_usage record is emitted,
//listeners are stopped, and the owning AppNamespace is informed via
//free_mailbox. Otherwise the new side pair and closing mood are persisted.
func (m *Mailbox) Close(side, mood string, when time.Time) error {
	row, err := m.store.GetMailbox(m.AppID, m.ID)
	if err != nil {
		return err
	}
	if row == nil {
		return nil
	}

	sr := removeSide(row.Side1, row.Side2, side)
	if !sr.changed {
		return nil
	}

	if sr.empty {
		return m.deleteAndSummarize(row, mood, when.Unix(), false)
	}

	return m.store.UpdateMailboxClose(m.AppID, m.ID, sr.side1, sr.side2, mood)
}

//deleteAndSummarize implements the shared tail of Close's empty branch
//and of timer-driven pruning: summarize usage, delete the row and its
//messages, stop listeners, and free the in-memory entry.
func (m *Mailbox) deleteAndSummarize(row *store.MailboxRow, closingMood string, deleteTime int64, pruned bool) error {
	numAuthors, err := m.store.CountDistinctAuthors(m.AppID, m.ID)
	if err != nil {
		return err
	}

	snap := mailboxSnapshot{
		started:   row.Started,
		second:    row.Second,
		firstMood: row.FirstMood,
		crowded:   row.Crowded,
	}
	u := summarizeMailbox(snap, numAuthors, closingMood, deleteTime, pruned, m.blur)

	if err := m.store.InsertMailboxUsage(store.UsageRecord{
		AppID:       m.AppID,
		Started:     u.started,
		TotalTime:   u.totalTime,
		WaitingTime: u.waitingTime,
		Result:      u.result,
	}); err != nil {
		return err
	}

	if err := m.store.DeleteMailboxCascade(m.AppID, m.ID); err != nil {
		return err
	}

	m.mu.Lock()
	for _, l := range m.listeners {
		l.stop()
	}
	m.listeners = make(map[interface{}]listenerEntry)
	m.mu.Unlock()

	m.parent.freeMailbox(m.ID)
	return nil
}

//forcePrune is invoked by AppNamespace.PruneMailboxes on an idle
//mailbox; it is deleteAndSummarize with pruned=true and no closing
//mood, matching spec.md §9's reading of the original's undefined
//delete_and_summarize().
func (m *Mailbox) forcePrune(now time.Time) error {
	row, err := m.store.GetMailbox(m.AppID, m.ID)
	if err != nil {
		return err
	}
	if row == nil {
		// nothing durable left; still make sure listeners are released.
		m.Shutdown()
		m.parent.freeMailbox(m.ID)
		return nil
	}
	return m.deleteAndSummarize(row, "", now.Unix(), true)
}

//IsIdle reports whether this mailbox has no listeners and either no
//messages or none received within channelExpiration of now (spec.md §4.4).
func (m *Mailbox) IsIdle(now time.Time) (bool, error) {
	m.mu.Lock()
	hasListeners := len(m.listeners) > 0
	m.mu.Unlock()
	if hasListeners {
		return false, nil
	}

	rx, ok, err := m.store.LatestServerRX(m.AppID, m.ID)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}

	old := now.Add(-channelExpiration).Unix()
	return rx < old, nil
}

//Shutdown calls stop on every listener without touching durable state,
//used for process-wide shutdown (spec.md §4.4/§4.5).
func (m *Mailbox) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.listeners {
		l.stop()
	}
	m.listeners = make(map[interface{}]listenerEntry)
}
