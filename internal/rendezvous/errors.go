package rendezvous

import "errors"

//ErrCrowded is returned when a third side attempts to join a nameplate
//or mailbox that already has two. The row is marked crowded and
//committed before this error is returned (spec.md §7).
var ErrCrowded = errors.New("rendezvous: crowded, a third side already attempted to join")

//ErrNoNameplate is returned when nameplate allocation exhausts its
//retry budget. Rare; callers may treat it as retryable (spec.md §7).
var ErrNoNameplate = errors.New("rendezvous: no nameplate ids available")
