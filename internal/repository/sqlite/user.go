package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/mmmykhailo/timecracker-api/internal/apperror"
	"github.com/mmmykhailo/timecracker-api/internal/model"
	"github.com/mmmykhailo/timecracker-api/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, username, email, password_hash, github_id, refresh_token, created_at, updated_at`

// CreateUser inserts a new user, generating its ID and timestamps. Unique-key
// violations on username, email or github_id come back as apperror.Conflict
// naming the field.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, github_id, refresh_token, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		nullGitHubID(user.GitHubID),
		nullString(user.RefreshToken),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if field, ok := uniqueViolation(err); ok {
			return apperror.Conflict(field, field)
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Username, err)
	}

	return nil
}

// GetUserByID retrieves a user by internal ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUserWhere(ctx, "id = ?", id)
}

// GetUserByUsername retrieves a user by its unique username.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.getUserWhere(ctx, "username = ?", username)
}

// GetUserByEmail retrieves a user by its unique email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUserWhere(ctx, "email = ?", email)
}

// GetUserByGitHubID retrieves a user by linked federated identity.
func (db *DB) GetUserByGitHubID(ctx context.Context, githubID int64) (*model.User, error) {
	return db.getUserWhere(ctx, "github_id = ?", githubID)
}

// LinkGitHubID attaches a GitHub identity to an account that has none. The
// WHERE clause refuses the write when a different ID is already linked, so a
// takeover of an already-federated account is impossible at the store level.
func (db *DB) LinkGitHubID(ctx context.Context, userID string, githubID int64) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET github_id = ?, updated_at = ?
		 WHERE id = ? AND (github_id IS NULL OR github_id = ?)`,
		githubID, time.Now(), userID, githubID,
	)
	if err != nil {
		if field, ok := uniqueViolation(err); ok {
			return apperror.Conflict(field, field)
		}
		return fmt.Errorf("sqlite: linking github id for user %s: %w", userID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: linking github id for user %s: %w", userID, err)
	}
	if n == 0 {
		return apperror.Conflict("github account link", "githubId")
	}
	return nil
}

// SetRefreshToken overwrites the user's refresh-token slot; the empty string
// clears it.
func (db *DB) SetRefreshToken(ctx context.Context, userID, token string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET refresh_token = ?, updated_at = ? WHERE id = ?`,
		nullString(token), time.Now(), userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting refresh token for user %s: %w", userID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: setting refresh token for user %s: %w", userID, err)
	}
	if n == 0 {
		return apperror.NotFound("user", userID)
	}
	return nil
}

// RotateRefreshToken is the compare-and-set at the heart of refresh-token
// rotation: one UPDATE matches on the presented token value and swaps in the
// next one, returning the owning row. Of two concurrent rotations presenting
// the same token, exactly one matches; the other sees no row and fails
// uniformly as unauthorized.
func (db *DB) RotateRefreshToken(ctx context.Context, presented, next string) (*model.User, error) {
	if presented == "" {
		return nil, apperror.Unauthorized()
	}

	var u model.User
	var githubID sql.NullInt64
	var refreshToken sql.NullString

	err := db.conn.QueryRowContext(ctx,
		`UPDATE users SET refresh_token = ?, updated_at = ?
		 WHERE refresh_token = ?
		 RETURNING `+userColumns,
		next, time.Now(), presented,
	).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&githubID,
		&refreshToken,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.Unauthorized()
		}
		return nil, fmt.Errorf("sqlite: rotating refresh token: %w", err)
	}

	u.GitHubID = githubID.Int64
	u.RefreshToken = refreshToken.String
	return &u, nil
}

func (db *DB) getUserWhere(ctx context.Context, where string, arg any) (*model.User, error) {
	var u model.User
	var githubID sql.NullInt64
	var refreshToken sql.NullString

	err := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+where, arg,
	).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&githubID,
		&refreshToken,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", fmt.Sprint(arg))
		}
		return nil, fmt.Errorf("sqlite: getting user: %w", err)
	}

	u.GitHubID = githubID.Int64
	u.RefreshToken = refreshToken.String
	return &u, nil
}

// nullGitHubID maps the unlinked zero value to NULL so the UNIQUE index on
// github_id only constrains linked accounts.
func nullGitHubID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// uniqueViolation inspects a driver error for a UNIQUE constraint failure and
// reports which users column collided.
func uniqueViolation(err error) (string, bool) {
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return "", false
	}
	switch {
	case strings.Contains(msg, "users.username"):
		return "username", true
	case strings.Contains(msg, "users.email"):
		return "email", true
	case strings.Contains(msg, "users.github_id"):
		return "githubId", true
	}
	return "unique key", true
}
