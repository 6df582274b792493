package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ContactGroup is a named broadcast list. A group backed by a real
// network-level group carries its NetworkJID; a purely local group fans out
// to its member phone numbers one by one.
type ContactGroup struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	NetworkJID string     `json:"network_jid,omitempty"`
	Members    []string   `json:"members"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// CreateGroup inserts a group with its member list.
func (s *Store) CreateGroup(ctx context.Context, name, networkJID string, members []string) (*ContactGroup, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	group := &ContactGroup{ID: uuid.NewString(), Name: name, NetworkJID: networkJID, Members: members}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO contact_groups (id, name, network_jid)
		VALUES ($1, $2, NULLIF($3, ''))
		RETURNING created_at
	`, group.ID, name, networkJID).Scan(&group.CreatedAt)
	if err != nil {
		return nil, err
	}
	for _, phone := range members {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO contact_group_members (group_id, phone)
			VALUES ($1, $2) ON CONFLICT DO NOTHING
		`, group.ID, phone); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return group, nil
}

// GetGroup returns one group with its members.
func (s *Store) GetGroup(ctx context.Context, id string) (*ContactGroup, error) {
	group := &ContactGroup{ID: id}
	var networkJID sql.NullString
	var updatedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT name, network_jid, created_at, updated_at
		FROM contact_groups WHERE id = $1
	`, id).Scan(&group.Name, &networkJID, &group.CreatedAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if networkJID.Valid {
		group.NetworkJID = networkJID.String
	}
	if updatedAt.Valid {
		group.UpdatedAt = &updatedAt.Time
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT phone FROM contact_group_members WHERE group_id = $1 ORDER BY phone`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var phone string
		if err := rows.Scan(&phone); err != nil {
			return nil, err
		}
		group.Members = append(group.Members, phone)
	}
	return group, rows.Err()
}

// ListGroups returns every group with its member count resolved.
func (s *Store) ListGroups(ctx context.Context) ([]ContactGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.name, g.network_jid, g.created_at, g.updated_at
		FROM contact_groups g ORDER BY g.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []ContactGroup
	for rows.Next() {
		var group ContactGroup
		var networkJID sql.NullString
		var updatedAt sql.NullTime
		if err := rows.Scan(&group.ID, &group.Name, &networkJID, &group.CreatedAt, &updatedAt); err != nil {
			return nil, err
		}
		if networkJID.Valid {
			group.NetworkJID = networkJID.String
		}
		if updatedAt.Valid {
			group.UpdatedAt = &updatedAt.Time
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range groups {
		full, err := s.GetGroup(ctx, groups[i].ID)
		if err != nil {
			return nil, err
		}
		groups[i].Members = full.Members
	}
	return groups, nil
}

// SetGroupMembers replaces a group's member list.
func (s *Store) SetGroupMembers(ctx context.Context, id string, members []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM contact_group_members WHERE group_id = $1`, id); err != nil {
		return err
	}
	for _, phone := range members {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO contact_group_members (group_id, phone)
			VALUES ($1, $2) ON CONFLICT DO NOTHING
		`, id, phone); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE contact_groups SET updated_at = NOW() WHERE id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// SetGroupNetworkJID binds a stored group to a network-level group identity.
func (s *Store) SetGroupNetworkJID(ctx context.Context, id, networkJID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE contact_groups
		SET network_jid = NULLIF($2, ''), updated_at = NOW()
		WHERE id = $1
	`, id, networkJID)
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteGroup removes a group and its membership rows.
func (s *Store) DeleteGroup(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM contact_groups WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
