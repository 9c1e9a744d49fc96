package store

import (
	"database/sql"
	"errors"
	"fmt"
)

//Message mirrors one row of the messages table (spec.md §3). Body is
//an opaque octet string to the core; the cryptographic envelope is the
//transport layer's concern.
type Message struct {
	MsgID     string
	AppID     string
	MailboxID string
	Side      string
	Phase     string
	Body      []byte
	ServerRX  int64
}

//InsertMessage appends a message. Messages are never mutated after
//insertion (spec.md §3).
func (s *Store) InsertMessage(m Message) error {
	if s.db == nil {
		return ErrNotOpen
	}
	// a nil body would bind as NULL; store it as an empty blob instead
	if m.Body == nil {
		m.Body = []byte{}
	}
	_, err := s.db.Exec(`INSERT INTO messages (msg_id, app_id, mailbox_id, side, phase, body, server_rx)
		VALUES (?,?,?,?,?,?,?)`, m.MsgID, m.AppID, m.MailboxID, m.Side, m.Phase, m.Body, m.ServerRX)
	if err != nil {
		return fmt.Errorf("store: inserting message: %w", err)
	}
	return nil
}

//ListMessages returns all messages in a mailbox ordered by server_rx
//ascending — the replay order guaranteed by spec.md §3/§5.
func (s *Store) ListMessages(appID, mailboxID string) ([]Message, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	rows, err := s.db.Query(`SELECT msg_id, app_id, mailbox_id, side, phase, body, server_rx
		FROM messages WHERE app_id=? AND mailbox_id=? ORDER BY server_rx ASC`, appID, mailboxID)
	if err != nil {
		return nil, fmt.Errorf("store: listing messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.MsgID, &m.AppID, &m.MailboxID, &m.Side, &m.Phase, &m.Body, &m.ServerRX); err != nil {
			return nil, fmt.Errorf("store: scanning message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

//CountDistinctAuthors returns the number of distinct sides that have
//posted a message to the mailbox — the basis for the mailbox usage
//"result" base value (spec.md §4.1): not the number of joined sides,
//the number of sides that actually spoke.
func (s *Store) CountDistinctAuthors(appID, mailboxID string) (int, error) {
	if s.db == nil {
		return 0, ErrNotOpen
	}
	var n int
	row := s.db.QueryRow(`SELECT COUNT(DISTINCT side) FROM messages WHERE app_id=? AND mailbox_id=?`, appID, mailboxID)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("store: counting distinct message authors: %w", err)
	}
	return n, nil
}

//LatestServerRX returns the server_rx of the most recently received
//message in the mailbox, or ok=false if it has none.
func (s *Store) LatestServerRX(appID, mailboxID string) (rx int64, ok bool, err error) {
	if s.db == nil {
		return 0, false, ErrNotOpen
	}
	row := s.db.QueryRow(`SELECT server_rx FROM messages WHERE app_id=? AND mailbox_id=?
		ORDER BY server_rx DESC LIMIT 1`, appID, mailboxID)
	if err := row.Scan(&rx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("store: fetching latest message time: %w", err)
	}
	return rx, true, nil
}
