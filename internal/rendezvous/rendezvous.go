// Package rendezvous implements the stateful rendezvous engine of
// spec.md: the nameplate and mailbox lifecycle, the two-sided
// join/leave state machine, at-most-two-sides enforcement, ordered
// persistent message fan-out to live listeners, idle detection,
// timer-driven pruning, and usage summarization. It is the only
// component that holds shared state; everything else (transport
// framing, the CLI client, transit relays) is an external collaborator.
package rendezvous

import (
	"context"
	"sync"
	"time"

	"github.com/chris-pikul/wormhole-rendezvous/internal/log"
	"github.com/chris-pikul/wormhole-rendezvous/internal/store"
)

//expirationCheckPeriod is EXPIRATION_CHECK_PERIOD from spec.md §6.
const expirationCheckPeriod = 2 * time.Hour

//Rendezvous is the process-wide root: it owns the AppNamespace
//registry, the welcome blob, and orderly shutdown (spec.md §4.5). It is
//an explicitly constructed collaborator, not an ambient singleton
//(spec.md §9).
type Rendezvous struct {
	Welcome []byte

	store       *store.Store
	blur        int64
	logRequests bool
	clock       Clock

	mu   sync.Mutex
	apps map[string]*AppNamespace
}

//New constructs a Rendezvous root. blurSeconds quantizes usage-log
//"started" timestamps (0 disables blurring); per spec.md §9, requests
//are logged whenever blur_usage is unset, so logRequests is implicitly
//(blurSeconds == 0).
func New(st *store.Store, welcome []byte, blurSeconds int64, clock Clock) *Rendezvous {
	if clock == nil {
		clock = SystemClock
	}
	return &Rendezvous{
		Welcome:     welcome,
		store:       st,
		blur:        blurSeconds,
		logRequests: blurSeconds == 0,
		clock:       clock,
		apps:        make(map[string]*AppNamespace),
	}
}

//GetApp returns the AppNamespace for appID, constructing it lazily on
//first reference (spec.md §4.5).
func (r *Rendezvous) GetApp(appID string) *AppNamespace {
	r.mu.Lock()
	defer r.mu.Unlock()

	app, ok := r.apps[appID]
	if !ok {
		if r.logRequests {
			log.Infof("rendezvous: spawning app %s", appID)
		}
		app = newAppNamespace(r.store, r.blur, r.logRequests, appID)
		r.apps[appID] = app
	}
	return app
}

//Prune runs one pass of the timer-driven pruning described in
//spec.md §4.5: it unions the app ids with persisted messages and the
//currently live apps, prunes each's stale nameplates and idle
//mailboxes, and evicts any app left with zero nameplates and zero live
//mailboxes. now is the instant pruning is considered to run at; the
//nameplate cutoff is now - CHANNEL_EXPIRATION_TIME.
func (r *Rendezvous) Prune(now time.Time) error {
	old := now.Add(-channelExpiration)

	withMessages, err := r.store.ListAppIDsWithMessages()
	if err != nil {
		return err
	}

	r.mu.Lock()
	appIDs := make(map[string]bool, len(withMessages)+len(r.apps))
	for _, id := range withMessages {
		appIDs[id] = true
	}
	for id := range r.apps {
		appIDs[id] = true
	}
	r.mu.Unlock()

	for appID := range appIDs {
		app := r.GetApp(appID)

		remainingNameplates, err := app.PruneNameplates(old)
		if err != nil {
			return err
		}
		mailboxesLive, err := app.PruneMailboxes(now)
		if err != nil {
			return err
		}

		if remainingNameplates == 0 && !mailboxesLive {
			r.mu.Lock()
			delete(r.apps, appID)
			r.mu.Unlock()
		}
	}

	return nil
}

//RunPruneLoop calls Prune every interval until ctx is canceled. A
//zero interval falls back to EXPIRATION_CHECK_PERIOD from spec.md §6.
//Intended to be run in its own goroutine by the process entrypoint;
//tests drive Prune synchronously instead (spec.md §9).
func (r *Rendezvous) RunPruneLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = expirationCheckPeriod
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Prune(r.clock.Now()); err != nil {
				log.Err("rendezvous: periodic prune failed", err)
			}
		}
	}
}

//Shutdown stops every AppNamespace, which force-closes all live
//mailbox listeners so in-flight clients terminate deterministically
//(spec.md §4.5).
func (r *Rendezvous) Shutdown() {
	r.mu.Lock()
	apps := make([]*AppNamespace, 0, len(r.apps))
	for _, a := range r.apps {
		apps = append(apps, a)
	}
	r.mu.Unlock()

	for _, a := range apps {
		a.Shutdown()
	}
}
