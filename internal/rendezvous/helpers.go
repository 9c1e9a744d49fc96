package rendezvous

import (
	"crypto/rand"
	"database/sql"
	"encoding/base32"
	"strings"
)

//sideResult is the outcome of applying addSide/removeSide to a row's
//current side pair (spec.md §4.1).
type sideResult struct {
	changed bool
	empty   bool
	side1   string
	side2   string
}

var unchanged = sideResult{}

//presentSides returns the non-empty sides of (side1, side2), in slot order.
func presentSides(side1, side2 string) []string {
	var out []string
	if side1 != "" {
		out = append(out, side1)
	}
	if side2 != "" {
		out = append(out, side2)
	}
	return out
}

//addSide applies the two-sides arithmetic of spec.md §4.1: a side
//already present is a no-op, a third distinct side is ErrCrowded, and
//otherwise the new side pair (existing, new) is returned.
func addSide(side1, side2, newSide string) (sideResult, error) {
	old := presentSides(side1, side2)

	for _, s := range old {
		if s == newSide {
			return unchanged, nil
		}
	}

	if len(old) == 2 {
		return unchanged, ErrCrowded
	}

	if len(old) == 0 {
		return sideResult{changed: true, side1: newSide}, nil
	}

	return sideResult{changed: true, side1: old[0], side2: newSide}, nil
}

//removeSide applies the two-sides arithmetic of spec.md §4.1: removing
//an absent side is a no-op, removing the last side yields empty=true.
func removeSide(side1, side2, side string) sideResult {
	old := presentSides(side1, side2)

	idx := -1
	for i, s := range old {
		if s == side {
			idx = i
			break
		}
	}
	if idx == -1 {
		return unchanged
	}

	remaining := append(old[:idx:idx], old[idx+1:]...)
	if len(remaining) == 0 {
		return sideResult{changed: true, empty: true}
	}
	return sideResult{changed: true, side1: remaining[0]}
}

//generateMailboxID produces a 13-character lowercase base32 (RFC 4648,
//no padding) identifier from 8 random octets (spec.md §4.1/§6).
func generateMailboxID() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	id := base32.StdEncoding.EncodeToString(b)
	id = strings.ToLower(strings.TrimRight(id, "="))
	return id, nil
}

//usage is the computed (started, waiting_time, total_time, result)
//tuple emitted to one of the usage-log tables (spec.md §4.1).
type usage struct {
	started     int64
	waitingTime sql.NullInt64
	totalTime   int64
	result      string
}

//blurStarted quantizes started down to the nearest multiple of blur
//seconds, when blur is non-zero (spec.md §4.1).
func blurStarted(started int64, blur int64) int64 {
	if blur <= 0 {
		return started
	}
	return blur * (started / blur)
}

//summarizeMailbox implements the mailbox result precedence of
//spec.md §4.1: quiet/lonely/happy by distinct message authors, then
//mood overrides (lonely < errory < scary), then pruned, then crowded.
func summarizeMailbox(row mailboxSnapshot, numAuthors int, secondMood string, deleteTime int64, pruned bool, blur int64) usage {
	started := blurStarted(row.started, blur)

	var waiting sql.NullInt64
	if row.second.Valid {
		waiting = sql.NullInt64{Int64: row.second.Int64 - row.started, Valid: true}
	}
	total := deleteTime - row.started

	var result string
	switch numAuthors {
	case 0:
		result = "quiet"
	case 1:
		result = "lonely"
	default:
		result = "happy"
	}

	moods := map[string]bool{row.firstMood: true, secondMood: true}
	if moods["lonely"] {
		result = "lonely"
	}
	if moods["errory"] {
		result = "errory"
	}
	if moods["scary"] {
		result = "scary"
	}
	if pruned {
		result = "pruney"
	}
	if row.crowded {
		result = "crowded"
	}

	return usage{started: started, waitingTime: waiting, totalTime: total, result: result}
}

//summarizeNameplate implements the nameplate result precedence of
//spec.md §4.1: lonely/happy by whether a second side ever joined, then
//pruned, then crowded.
func summarizeNameplate(row nameplateSnapshot, deleteTime int64, pruned bool, blur int64) usage {
	started := blurStarted(row.started, blur)

	var waiting sql.NullInt64
	result := "lonely"
	if row.second.Valid {
		waiting = sql.NullInt64{Int64: row.second.Int64 - row.started, Valid: true}
		result = "happy"
	}
	total := deleteTime - row.started

	if pruned {
		result = "pruney"
	}
	if row.crowded {
		result = "crowded"
	}

	return usage{started: started, waitingTime: waiting, totalTime: total, result: result}
}

//mailboxSnapshot and nameplateSnapshot carry just the fields the pure
//summarization helpers need, decoupling them from the store package's
//row types so they stay trivially unit-testable.
type mailboxSnapshot struct {
	started   int64
	second    sql.NullInt64
	firstMood string
	crowded   bool
}

type nameplateSnapshot struct {
	started int64
	second  sql.NullInt64
	crowded bool
}
