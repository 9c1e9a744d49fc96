package store

import (
	"database/sql"
	"fmt"
)

//UsageRecord mirrors one row of either usage-log table (spec.md §3).
type UsageRecord struct {
	AppID       string
	Started     int64
	TotalTime   int64
	WaitingTime sql.NullInt64
	Result      string
}

//InsertNameplateUsage appends a nameplate_usage row.
func (s *Store) InsertNameplateUsage(u UsageRecord) error {
	if s.db == nil {
		return ErrNotOpen
	}
	_, err := s.db.Exec(`INSERT INTO nameplate_usage (app_id, started, total_time, waiting_time, result)
		VALUES (?,?,?,?,?)`, u.AppID, u.Started, u.TotalTime, u.WaitingTime, u.Result)
	if err != nil {
		return fmt.Errorf("store: inserting nameplate usage: %w", err)
	}
	return nil
}

//InsertMailboxUsage appends a mailbox_usage row.
func (s *Store) InsertMailboxUsage(u UsageRecord) error {
	if s.db == nil {
		return ErrNotOpen
	}
	_, err := s.db.Exec(`INSERT INTO mailbox_usage (app_id, started, total_time, waiting_time, result)
		VALUES (?,?,?,?,?)`, u.AppID, u.Started, u.TotalTime, u.WaitingTime, u.Result)
	if err != nil {
		return fmt.Errorf("store: inserting mailbox usage: %w", err)
	}
	return nil
}

//ListNameplateUsage returns every nameplate_usage row recorded for appID,
//for administrative reporting.
func (s *Store) ListNameplateUsage(appID string) ([]UsageRecord, error) {
	return s.listUsage("nameplate_usage", appID)
}

//ListMailboxUsage returns every mailbox_usage row recorded for appID,
//used by administrative reporting and exercised directly by tests.
func (s *Store) ListMailboxUsage(appID string) ([]UsageRecord, error) {
	return s.listUsage("mailbox_usage", appID)
}

func (s *Store) listUsage(table, appID string) ([]UsageRecord, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	rows, err := s.db.Query(`SELECT app_id, started, total_time, waiting_time, result FROM `+table+` WHERE app_id=?`, appID)
	if err != nil {
		return nil, fmt.Errorf("store: listing %s: %w", table, err)
	}
	defer rows.Close()

	var out []UsageRecord
	for rows.Next() {
		var u UsageRecord
		if err := rows.Scan(&u.AppID, &u.Started, &u.TotalTime, &u.WaitingTime, &u.Result); err != nil {
			return nil, fmt.Errorf("store: scanning %s row: %w", table, err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
