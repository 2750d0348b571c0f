package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/mmmykhailo/timecracker-api/internal/apperror"
	"github.com/mmmykhailo/timecracker-api/internal/model"
	"github.com/mmmykhailo/timecracker-api/internal/repository"
)

// compile-time check that *DB implements repository.OAuthStateRepository
var _ repository.OAuthStateRepository = (*DB)(nil)

// CreateState persists a freshly minted anti-forgery state record.
func (db *DB) CreateState(ctx context.Context, state *model.OAuthState) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO oauth_states (state, created_at, expires_at) VALUES (?, ?, ?)`,
		state.State, state.CreatedAt, state.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting oauth state: %w", err)
	}
	return nil
}

// ConsumeState deletes the state record if it exists and has not expired, in one
// DELETE. RowsAffected tells whether this caller won; a concurrent callback
// presenting the same state finds the row gone and fails. Expired rows are
// excluded by the WHERE clause, so a stale state fails identically to an
// unknown one.
func (db *DB) ConsumeState(ctx context.Context, state string, now time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM oauth_states WHERE state = ? AND expires_at > ?`,
		state, now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: consuming oauth state: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: consuming oauth state: %w", err)
	}
	if n == 0 {
		return apperror.InvalidState()
	}
	return nil
}

// DeleteExpiredStates sweeps dead state records. Called opportunistically when a
// new flow starts; there is no background job.
func (db *DB) DeleteExpiredStates(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM oauth_states WHERE expires_at <= ?`, now,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: sweeping expired oauth states: %w", err)
	}
	return res.RowsAffected()
}
