package store

import (
	"database/sql"
	"errors"
	"fmt"
)

//NameplateRow mirrors one row of the nameplates table (spec.md §3).
type NameplateRow struct {
	AppID     string
	ID        string
	MailboxID string
	Side1     string
	Side2     string
	Crowded   bool
	Started   int64
	Second    sql.NullInt64
	Updated   int64
}

//GetNameplate fetches a nameplate row, returning (nil, nil) if it does
//not exist.
func (s *Store) GetNameplate(appID, id string) (*NameplateRow, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}

	row := s.db.QueryRow(`SELECT app_id, id, mailbox_id, side1, side2, crowded, started, second, updated
		FROM nameplates WHERE app_id=? AND id=?`, appID, id)

	var n NameplateRow
	if err := row.Scan(&n.AppID, &n.ID, &n.MailboxID, &n.Side1, &n.Side2, &n.Crowded, &n.Started, &n.Second, &n.Updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: fetching nameplate: %w", err)
	}
	return &n, nil
}

//InsertNameplate creates a new nameplate row.
func (s *Store) InsertNameplate(n NameplateRow) error {
	if s.db == nil {
		return ErrNotOpen
	}
	_, err := s.db.Exec(`INSERT INTO nameplates (app_id, id, mailbox_id, side1, side2, crowded, started, second, updated)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		n.AppID, n.ID, n.MailboxID, n.Side1, n.Side2, n.Crowded, n.Started, n.Second, n.Updated)
	if err != nil {
		return fmt.Errorf("store: inserting nameplate: %w", err)
	}
	return nil
}

//UpdateNameplateSides persists a new side pair and updated timestamp,
//optionally setting the second-side-joined timestamp.
func (s *Store) UpdateNameplateSides(appID, id, side1, side2 string, second sql.NullInt64, updated int64) error {
	if s.db == nil {
		return ErrNotOpen
	}
	_, err := s.db.Exec(`UPDATE nameplates SET side1=?, side2=?, second=?, updated=?
		WHERE app_id=? AND id=?`, side1, side2, second, updated, appID, id)
	if err != nil {
		return fmt.Errorf("store: updating nameplate sides: %w", err)
	}
	return nil
}

//SetNameplateCrowded flags the row as having seen a third side.
func (s *Store) SetNameplateCrowded(appID, id string) error {
	if s.db == nil {
		return ErrNotOpen
	}
	_, err := s.db.Exec(`UPDATE nameplates SET crowded=1 WHERE app_id=? AND id=?`, appID, id)
	if err != nil {
		return fmt.Errorf("store: marking nameplate crowded: %w", err)
	}
	return nil
}

//DeleteNameplate removes the nameplate row.
func (s *Store) DeleteNameplate(appID, id string) error {
	if s.db == nil {
		return ErrNotOpen
	}
	_, err := s.db.Exec(`DELETE FROM nameplates WHERE app_id=? AND id=?`, appID, id)
	if err != nil {
		return fmt.Errorf("store: deleting nameplate: %w", err)
	}
	return nil
}

//ListNameplateIDs returns every distinct nameplate id claimed in appID.
func (s *Store) ListNameplateIDs(appID string) ([]string, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	rows, err := s.db.Query(`SELECT DISTINCT id FROM nameplates WHERE app_id=?`, appID)
	if err != nil {
		return nil, fmt.Errorf("store: listing nameplate ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scanning nameplate id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

//ListStaleNameplates returns every nameplate row whose updated time is
//strictly before old, across all apps.
func (s *Store) ListStaleNameplates(old int64) ([]NameplateRow, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	rows, err := s.db.Query(`SELECT app_id, id, mailbox_id, side1, side2, crowded, started, second, updated
		FROM nameplates WHERE updated < ?`, old)
	if err != nil {
		return nil, fmt.Errorf("store: listing stale nameplates: %w", err)
	}
	defer rows.Close()

	var out []NameplateRow
	for rows.Next() {
		var n NameplateRow
		if err := rows.Scan(&n.AppID, &n.ID, &n.MailboxID, &n.Side1, &n.Side2, &n.Crowded, &n.Started, &n.Second, &n.Updated); err != nil {
			return nil, fmt.Errorf("store: scanning stale nameplate: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

//CountNameplates returns the number of remaining nameplate rows for appID.
func (s *Store) CountNameplates(appID string) (int, error) {
	if s.db == nil {
		return 0, ErrNotOpen
	}
	var count int
	row := s.db.QueryRow(`SELECT COUNT(*) FROM nameplates WHERE app_id=?`, appID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("store: counting nameplates: %w", err)
	}
	return count, nil
}
