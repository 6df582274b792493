package store

import (
	"context"
	"database/sql"
	"errors"
)

// GetJID returns the chat-network identity a session last authenticated as.
func (s *Store) GetJID(ctx context.Context, sessionID string) (string, error) {
	var jid sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT jid FROM session_routing WHERE session_id = $1`, sessionID).Scan(&jid)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if !jid.Valid {
		return "", nil
	}
	return jid.String, nil
}

// SaveJID records the identity a session authenticated as. An identity can
// belong to only one session, so any other session holding the same jid is
// cleared first.
func (s *Store) SaveJID(ctx context.Context, sessionID string, jid string) error {
	if jid != "" {
		_, err := s.db.ExecContext(ctx, `
			UPDATE session_routing
			SET jid = NULL, updated_at = NOW()
			WHERE jid = $2 AND session_id != $1
		`, sessionID, jid)
		if err != nil {
			return err
		}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_routing (session_id, jid, updated_at)
		VALUES ($1, NULLIF($2, ''), NOW())
		ON CONFLICT (session_id) DO UPDATE
		SET jid = EXCLUDED.jid, updated_at = NOW()
	`, sessionID, jid)
	return err
}

// DeleteJID clears the routing entry so the session cannot resume the old
// identity. The row is kept for audit; only the jid is nulled.
func (s *Store) DeleteJID(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE session_routing
		SET jid = NULL, updated_at = NOW()
		WHERE session_id = $1
	`, sessionID)
	return err
}
