package store

import (
	"database/sql"
	"errors"
	"fmt"
)

//MailboxRow mirrors one row of the mailboxes table (spec.md §3).
type MailboxRow struct {
	AppID     string
	ID        string
	Side1     string
	Side2     string
	Crowded   bool
	Started   int64
	Second    sql.NullInt64
	FirstMood string
}

//GetMailbox fetches a mailbox row, returning (nil, nil) if absent.
func (s *Store) GetMailbox(appID, id string) (*MailboxRow, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	row := s.db.QueryRow(`SELECT app_id, id, side1, side2, crowded, started, second, first_mood
		FROM mailboxes WHERE app_id=? AND id=?`, appID, id)

	var m MailboxRow
	if err := row.Scan(&m.AppID, &m.ID, &m.Side1, &m.Side2, &m.Crowded, &m.Started, &m.Second, &m.FirstMood); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: fetching mailbox: %w", err)
	}
	return &m, nil
}

//InsertMailbox creates a new mailbox row. Per spec.md §3, this is done
//lazily on first open_mailbox, never at nameplate-allocation time.
func (s *Store) InsertMailbox(m MailboxRow) error {
	if s.db == nil {
		return ErrNotOpen
	}
	_, err := s.db.Exec(`INSERT INTO mailboxes (app_id, id, side1, side2, crowded, started, second, first_mood)
		VALUES (?,?,?,?,?,?,?,?)`,
		m.AppID, m.ID, m.Side1, m.Side2, m.Crowded, m.Started, m.Second, m.FirstMood)
	if err != nil {
		return fmt.Errorf("store: inserting mailbox: %w", err)
	}
	return nil
}

//UpdateMailboxSides persists a new side pair and second-join timestamp.
func (s *Store) UpdateMailboxSides(appID, id, side1, side2 string, second sql.NullInt64) error {
	if s.db == nil {
		return ErrNotOpen
	}
	_, err := s.db.Exec(`UPDATE mailboxes SET side1=?, side2=?, second=? WHERE app_id=? AND id=?`,
		side1, side2, second, appID, id)
	if err != nil {
		return fmt.Errorf("store: updating mailbox sides: %w", err)
	}
	return nil
}

//UpdateMailboxClose persists the side pair and first_mood left by a
//closing side that did not empty the mailbox.
func (s *Store) UpdateMailboxClose(appID, id, side1, side2, mood string) error {
	if s.db == nil {
		return ErrNotOpen
	}
	_, err := s.db.Exec(`UPDATE mailboxes SET side1=?, side2=?, first_mood=? WHERE app_id=? AND id=?`,
		side1, side2, mood, appID, id)
	if err != nil {
		return fmt.Errorf("store: updating mailbox on close: %w", err)
	}
	return nil
}

//SetMailboxCrowded flags the row as having seen a third side.
func (s *Store) SetMailboxCrowded(appID, id string) error {
	if s.db == nil {
		return ErrNotOpen
	}
	_, err := s.db.Exec(`UPDATE mailboxes SET crowded=1 WHERE app_id=? AND id=?`, appID, id)
	if err != nil {
		return fmt.Errorf("store: marking mailbox crowded: %w", err)
	}
	return nil
}

//DeleteMailboxCascade removes the mailbox row and all of its messages,
//atomically, per the deletion-cascade invariant in spec.md §8.
func (s *Store) DeleteMailboxCascade(appID, id string) error {
	if s.db == nil {
		return ErrNotOpen
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: beginning mailbox delete transaction: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM messages WHERE app_id=? AND mailbox_id=?`, appID, id); err != nil {
		tx.Rollback()
		return fmt.Errorf("store: deleting mailbox messages: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM mailboxes WHERE app_id=? AND id=?`, appID, id); err != nil {
		tx.Rollback()
		return fmt.Errorf("store: deleting mailbox row: %w", err)
	}

	return tx.Commit()
}

//ListMailboxIDsWithMessages returns every distinct mailbox id in appID
//that currently has persisted messages.
func (s *Store) ListMailboxIDsWithMessages(appID string) ([]string, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	rows, err := s.db.Query(`SELECT DISTINCT mailbox_id FROM messages WHERE app_id=?`, appID)
	if err != nil {
		return nil, fmt.Errorf("store: listing mailbox ids with messages: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scanning mailbox id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

//ListAppIDsWithMessages returns every distinct app_id that currently
//has at least one persisted message, used by the prune walk to find
//apps that may need pruning but have no live in-memory state.
func (s *Store) ListAppIDsWithMessages() ([]string, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	rows, err := s.db.Query(`SELECT DISTINCT app_id FROM messages`)
	if err != nil {
		return nil, fmt.Errorf("store: listing app ids with messages: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scanning app id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
