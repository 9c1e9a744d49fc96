package rendezvous

import (
	"database/sql"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/chris-pikul/wormhole-rendezvous/internal/log"
	"github.com/chris-pikul/wormhole-rendezvous/internal/store"
)

//AppNamespace owns nameplate and mailbox lifecycle within one app_id:
//the in-memory cache of live Mailboxes, nameplate allocation/claim/
//release, and pruning (spec.md §4.3).
type AppNamespace struct {
	ID string

	store       *store.Store
	blur        int64
	logRequests bool

	mu        sync.Mutex
	mailboxes map[string]*Mailbox
}

func newAppNamespace(st *store.Store, blur int64, logRequests bool, id string) *AppNamespace {
	return &AppNamespace{
		ID:          id,
		store:       st,
		blur:        blur,
		logRequests: logRequests,
		mailboxes:   make(map[string]*Mailbox),
	}
}

//AllocateNameplate chooses a fresh nameplate id and immediately claims
//it for side, returning the id (spec.md §4.3).
func (a *AppNamespace) AllocateNameplate(side string, when time.Time) (string, error) {
	id, err := a.findAvailableNameplateID()
	if err != nil {
		return "", err
	}
	if _, err := a.ClaimNameplate(id, side, when); err != nil {
		return "", err
	}
	return id, nil
}

//findAvailableNameplateID tries 1, 2, then 3 decimal digits in turn,
//picking uniformly at random among the unclaimed ids of that size; if
//all three sizes are exhausted it draws up to 1000 random 4-6 digit
//ids before giving up with ErrNoNameplate (spec.md §4.3).
func (a *AppNamespace) findAvailableNameplateID() (string, error) {
	claimedList, err := a.store.ListNameplateIDs(a.ID)
	if err != nil {
		return "", err
	}
	claimed := make(map[string]bool, len(claimedList))
	for _, id := range claimedList {
		claimed[id] = true
	}

	for size := 1; size <= 3; size++ {
		low := 1
		if size > 1 {
			low = pow10(size - 1)
		}
		high := pow10(size)

		var available []string
		for n := low; n < high; n++ {
			id := strconv.Itoa(n)
			if !claimed[id] {
				available = append(available, id)
			}
		}
		if len(available) > 0 {
			return available[rand.Intn(len(available))], nil
		}
	}

	for i := 0; i < 1000; i++ {
		n := rand.Intn(1000000-1000) + 1000
		id := strconv.Itoa(n)
		if !claimed[id] {
			return id, nil
		}
	}

	return "", ErrNoNameplate
}

func pow10(n int) int {
	p := 1
	for i := 0; i < n; i++ {
		p *= 10
	}
	return p
}

//ClaimNameplate is idempotent per (id, side): it creates the row on
//first claim (with a freshly generated mailbox id), or applies
//add_side to an existing row, always returning the row's mailbox_id
//(spec.md §4.3).
func (a *AppNamespace) ClaimNameplate(id, side string, when time.Time) (string, error) {
	row, err := a.store.GetNameplate(a.ID, id)
	if err != nil {
		return "", err
	}

	if row == nil {
		mailboxID, err := generateMailboxID()
		if err != nil {
			return "", err
		}
		if a.logRequests {
			log.Infof("rendezvous: creating nameplate %s for app %s", id, a.ID)
		}
		whenUnix := when.Unix()
		if err := a.store.InsertNameplate(store.NameplateRow{
			AppID:     a.ID,
			ID:        id,
			MailboxID: mailboxID,
			Side1:     side,
			Started:   whenUnix,
			Updated:   whenUnix,
		}); err != nil {
			return "", err
		}
		return mailboxID, nil
	}

	wasSingle := len(presentSides(row.Side1, row.Side2)) == 1

	sr, err := addSide(row.Side1, row.Side2, side)
	if err != nil {
		if setErr := a.store.SetNameplateCrowded(a.ID, id); setErr != nil {
			return "", setErr
		}
		return "", ErrCrowded
	}
	if !sr.changed {
		return row.MailboxID, nil
	}

	second := row.Second
	if wasSingle {
		second = sql.NullInt64{Int64: when.Unix(), Valid: true}
	}

	if err := a.store.UpdateNameplateSides(a.ID, id, sr.side1, sr.side2, second, when.Unix()); err != nil {
		return "", err
	}
	return row.MailboxID, nil
}

//ReleaseNameplate is idempotent: a no-op if the row or side is absent.
//Emptying the row deletes it and emits a nameplate_usage record.
func (a *AppNamespace) ReleaseNameplate(id, side string, when time.Time) error {
	row, err := a.store.GetNameplate(a.ID, id)
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
		if err := a.store.DeleteNameplate(a.ID, id); err != nil {
			return err
		}
		snap := nameplateSnapshot{started: row.Started, second: row.Second, crowded: row.Crowded}
		u := summarizeNameplate(snap, when.Unix(), false, a.blur)
		return a.store.InsertNameplateUsage(store.UsageRecord{
			AppID:       a.ID,
			Started:     u.started,
			TotalTime:   u.totalTime,
			WaitingTime: u.waitingTime,
			Result:      u.result,
		})
	}

	return a.store.UpdateNameplateSides(a.ID, id, sr.side1, sr.side2, row.Second, when.Unix())
}

//OpenMailbox returns the live Mailbox for id, constructing its durable
//row and in-memory object on first reference (spec.md §4.3). The
//mailbox row is created lazily here, never at nameplate-allocation
//time (spec.md §8).
func (a *AppNamespace) OpenMailbox(id, side string, when time.Time) (*Mailbox, error) {
	mbox, err := a.getOrCreateMailbox(id, side, when)
	if err != nil {
		return nil, err
	}

	if err := mbox.Open(side, when); err != nil {
		return mbox, err
	}
	return mbox, nil
}

//getOrCreateMailbox returns the live Mailbox for id, creating its
//durable row first if this is the first reference. The whole
//check-then-create path runs under a.mu so a second concurrent caller
//for the same id always observes a fully-inserted row before it can
//call Mailbox.Open on it.
func (a *AppNamespace) getOrCreateMailbox(id, side string, when time.Time) (*Mailbox, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	mbox, exists := a.mailboxes[id]
	if exists {
		return mbox, nil
	}

	row, err := a.store.GetMailbox(a.ID, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		if a.logRequests {
			log.Infof("rendezvous: spawning mailbox %s for app %s", id, a.ID)
		}
		if err := a.store.InsertMailbox(store.MailboxRow{
			AppID:   a.ID,
			ID:      id,
			Side1:   side,
			Started: when.Unix(),
		}); err != nil {
			return nil, err
		}
	}

	mbox = newMailbox(a, a.store, a.blur, a.ID, id)
	a.mailboxes[id] = mbox
	return mbox, nil
}

//freeMailbox drops the in-memory entry for id. Called by a Mailbox at
//the end of its own teardown.
func (a *AppNamespace) freeMailbox(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.mailboxes, id)
}

//PruneNameplates deletes every nameplate row, in any app, whose updated
//time is before old, emitting a pruned=true usage record under each
//row's own app_id, and returns the count of this app's remaining rows
//(spec.md §4.3). old is passed explicitly
//by the caller, fixing the arity bug noted in spec.md §9.
func (a *AppNamespace) PruneNameplates(old time.Time) (int, error) {
	stale, err := a.store.ListStaleNameplates(old.Unix())
	if err != nil {
		return 0, err
	}

	for _, row := range stale {
		if err := a.store.DeleteNameplate(row.AppID, row.ID); err != nil {
			return 0, err
		}
		snap := nameplateSnapshot{started: row.Started, second: row.Second, crowded: row.Crowded}
		u := summarizeNameplate(snap, old.Unix(), true, a.blur)
		if err := a.store.InsertNameplateUsage(store.UsageRecord{
			AppID:       row.AppID,
			Started:     u.started,
			TotalTime:   u.totalTime,
			WaitingTime: u.waitingTime,
			Result:      u.result,
		}); err != nil {
			return 0, err
		}
	}

	return a.store.CountNameplates(a.ID)
}

//PruneMailboxes walks the union of mailboxes with persisted messages
//and mailboxes with a live in-memory entry; any idle one is deleted
//via the close-cascade (spec.md §4.3, §9). Returns true if any live
//mailbox remains afterward.
func (a *AppNamespace) PruneMailboxes(now time.Time) (bool, error) {
	persisted, err := a.store.ListMailboxIDsWithMessages(a.ID)
	if err != nil {
		return false, err
	}

	ids := make(map[string]bool, len(persisted))
	for _, id := range persisted {
		ids[id] = true
	}

	a.mu.Lock()
	for id := range a.mailboxes {
		ids[id] = true
	}
	a.mu.Unlock()

	for id := range ids {
		mbox, err := a.getOrLoadMailbox(id)
		if err != nil {
			return false, err
		}
		if mbox == nil {
			continue
		}

		idle, err := mbox.IsIdle(now)
		if err != nil {
			return false, err
		}
		if idle {
			if err := mbox.forcePrune(now); err != nil {
				return false, err
			}
		}
	}

	a.mu.Lock()
	remaining := len(a.mailboxes) > 0
	a.mu.Unlock()
	return remaining, nil
}

//getOrLoadMailbox returns the live Mailbox for id, constructing an
//in-memory wrapper (without creating a durable row) if only persisted
//messages reference it — needed so prune can check idleness/cascade on
//a mailbox nobody currently has open.
func (a *AppNamespace) getOrLoadMailbox(id string) (*Mailbox, error) {
	a.mu.Lock()
	mbox, exists := a.mailboxes[id]
	a.mu.Unlock()
	if exists {
		return mbox, nil
	}

	row, err := a.store.GetMailbox(a.ID, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}

	return newMailbox(a, a.store, a.blur, a.ID, id), nil
}

//Shutdown stops every live Mailbox, force-closing its listeners
//(spec.md §4.3/§4.5).
func (a *AppNamespace) Shutdown() {
	a.mu.Lock()
	mailboxes := make([]*Mailbox, 0, len(a.mailboxes))
	for _, m := range a.mailboxes {
		mailboxes = append(mailboxes, m)
	}
	a.mu.Unlock()

	for _, m := range mailboxes {
		m.Shutdown()
	}
}

//MailboxCount returns the number of live in-memory mailboxes, used by
//the Rendezvous root to decide whether an app can be evicted.
func (a *AppNamespace) MailboxCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.mailboxes)
}
