package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Contact is one address-book entry. Phone numbers are stored normalized
// (digits only) and are unique across the book.
type Contact struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Phone     string     `json:"phone"`
	Notes     string     `json:"notes,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// CreateContact inserts a contact and returns it with its generated id.
func (s *Store) CreateContact(ctx context.Context, name, phone, notes string) (*Contact, error) {
	contact := &Contact{ID: uuid.NewString(), Name: name, Phone: phone, Notes: notes}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO contacts (id, name, phone, notes)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		RETURNING created_at
	`, contact.ID, name, phone, notes).Scan(&contact.CreatedAt)
	if err != nil {
		return nil, err
	}
	return contact, nil
}

// UpsertContact inserts a contact or, when the phone already exists, updates
// the name and notes in place. Used by the CSV import.
func (s *Store) UpsertContact(ctx context.Context, name, phone, notes string) (*Contact, error) {
	contact := &Contact{Name: name, Phone: phone, Notes: notes}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO contacts (id, name, phone, notes)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		ON CONFLICT (phone) DO UPDATE
		SET name = EXCLUDED.name, notes = EXCLUDED.notes, updated_at = NOW()
		RETURNING id, created_at
	`, uuid.NewString(), name, phone, notes).Scan(&contact.ID, &contact.CreatedAt)
	if err != nil {
		return nil, err
	}
	return contact, nil
}

// GetContact returns one contact by id.
func (s *Store) GetContact(ctx context.Context, id string) (*Contact, error) {
	contact := &Contact{}
	var notes sql.NullString
	var updatedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, notes, created_at, updated_at
		FROM contacts WHERE id = $1
	`, id).Scan(&contact.ID, &contact.Name, &contact.Phone, &notes, &contact.CreatedAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if notes.Valid {
		contact.Notes = notes.String
	}
	if updatedAt.Valid {
		contact.UpdatedAt = &updatedAt.Time
	}
	return contact, nil
}

// ListContacts returns the whole address book, newest first.
func (s *Store) ListContacts(ctx context.Context) ([]Contact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, notes, created_at, updated_at
		FROM contacts ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []Contact
	for rows.Next() {
		var contact Contact
		var notes sql.NullString
		var updatedAt sql.NullTime
		if err := rows.Scan(&contact.ID, &contact.Name, &contact.Phone, &notes, &contact.CreatedAt, &updatedAt); err != nil {
			return nil, err
		}
		if notes.Valid {
			contact.Notes = notes.String
		}
		if updatedAt.Valid {
			contact.UpdatedAt = &updatedAt.Time
		}
		contacts = append(contacts, contact)
	}
	return contacts, rows.Err()
}

// UpdateContact rewrites a contact's fields.
func (s *Store) UpdateContact(ctx context.Context, id, name, phone, notes string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE contacts
		SET name = $2, phone = $3, notes = NULLIF($4, ''), updated_at = NOW()
		WHERE id = $1
	`, id, name, phone, notes)
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteContact removes a contact.
func (s *Store) DeleteContact(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
