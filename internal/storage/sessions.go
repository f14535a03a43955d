package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/cardwise/internal/common"
	"github.com/Veraticus/cardwise/internal/model"
)

// CreateSession inserts a new session in the uploaded state.
func (s *SQLiteStorage) CreateSession(ctx context.Context, session *model.Session) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("%w: session", ErrNilParameter)
	}
	if err := validateString(session.ID, "session.ID"); err != nil {
		return err
	}

	now := s.now()
	session.CreatedAt = now
	session.UpdatedAt = now
	if session.Status == "" {
		session.Status = model.SessionUploaded
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, source, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, session.ID, session.Source, string(session.Status), now, now)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by id.
func (s *SQLiteStorage) GetSession(ctx context.Context, id string) (*model.Session, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var (
		session model.Session
		status  string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, source, status, created_at, updated_at FROM sessions WHERE id = ?
	`, id).Scan(&session.ID, &session.Source, &status, &session.CreatedAt, &session.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	session.Status = model.SessionStatus(status)
	return &session, nil
}

// UpdateSessionStatus moves a session to status.
func (s *SQLiteStorage) UpdateSessionStatus(ctx context.Context, id string, status model.SessionStatus) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", id, common.ErrNotFound)
	}
	return nil
}
