// Package repository defines the storage contracts the service layer depends
// on. The sqlite subpackage implements them; tests substitute in-memory fakes.
package repository

import (
	"context"
	"time"

	"github.com/mmmykhailo/timecracker-api/internal/model"
)

// UserRepository owns user records. Lookup misses return apperror.ErrNotFound;
// unique-key violations on Create return apperror.ErrConflict with the
// offending field set.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByGitHubID(ctx context.Context, githubID int64) (*model.User, error)

	// LinkGitHubID attaches a federated identity to an existing account.
	// It refuses to overwrite a different, already-linked GitHub ID.
	LinkGitHubID(ctx context.Context, userID string, githubID int64) error

	// SetRefreshToken overwrites the user's refresh-token slot. An empty
	// token clears the slot (logout).
	SetRefreshToken(ctx context.Context, userID, token string) error

	// RotateRefreshToken atomically replaces presented with next in whichever
	// user's slot currently holds presented, returning that user. It is a
	// compare-and-set: when no slot matches (token already rotated, cleared,
	// or never issued) it returns apperror.ErrUnauthorized and writes nothing.
	RotateRefreshToken(ctx context.Context, presented, next string) (*model.User, error)
}

// ReportRepository owns report records. The one-report-per-(owner, date)
// invariant lives here, backed by a unique index — the store, not the
// application, arbitrates whether a row already exists.
type ReportRepository interface {
	// CreateReport strictly inserts; an existing (owner, date) row returns
	// apperror.ErrConflict.
	CreateReport(ctx context.Context, report *model.Report) error

	// UpsertReportByDate inserts or replaces the report for (OwnerID, Date) in a
	// single atomic statement. Concurrent calls for the same key serialize in
	// the store; the last writer's entries win and no duplicate can appear.
	UpsertReportByDate(ctx context.Context, report *model.Report) (*model.Report, error)

	// UpdateReport rewrites a report matched by (ownerID, report.ID). Zero matched
	// rows — unknown ID or another owner's report — return apperror.ErrNotFound.
	UpdateReport(ctx context.Context, ownerID string, report *model.Report) (*model.Report, error)

	GetReportByID(ctx context.Context, ownerID, id string) (*model.Report, error)
	ListReportsByOwner(ctx context.Context, ownerID string) ([]model.Report, error)

	// GetReportByOwnerAndDate returns (nil, nil) when no report exists for the day.
	GetReportByOwnerAndDate(ctx context.Context, ownerID string, date time.Time) (*model.Report, error)

	// DailyDurations scans the inclusive [from, to] day range and returns
	// yyyyMMdd day key -> total minutes. Days without a report are absent.
	DailyDurations(ctx context.Context, ownerID string, from, to time.Time) (map[string]int, error)
}

// OAuthStateRepository owns the ephemeral anti-forgery records of in-flight
// federated login flows.
type OAuthStateRepository interface {
	CreateState(ctx context.Context, state *model.OAuthState) error

	// ConsumeState deletes the record in the same statement that finds it, so two
	// concurrent callbacks presenting the same state cannot both succeed.
	// Unknown, expired or already-consumed states return
	// apperror.ErrInvalidState.
	ConsumeState(ctx context.Context, state string, now time.Time) error

	// DeleteExpired sweeps records past their TTL.
	DeleteExpiredStates(ctx context.Context, now time.Time) (int64, error)
}
