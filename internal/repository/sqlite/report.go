package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/mmmykhailo/timecracker-api/internal/apperror"
	"github.com/mmmykhailo/timecracker-api/internal/model"
	"github.com/mmmykhailo/timecracker-api/internal/repository"
	"github.com/mmmykhailo/timecracker-api/internal/timeutil"
)

// compile-time check that *DB implements repository.ReportRepository
var _ repository.ReportRepository = (*DB)(nil)

const reportColumns = `id, owner_id, date, duration, entries, created_at, updated_at`

// CreateReport strictly inserts a report. A second report for the same
// (owner, date) trips the unique index and comes back as a conflict.
func (db *DB) CreateReport(ctx context.Context, report *model.Report) error {
	entries, err := json.Marshal(report.Entries)
	if err != nil {
		return fmt.Errorf("sqlite: encoding report entries: %w", err)
	}

	now := time.Now()
	report.ID = xid.New().String()
	report.Date = timeutil.StartOfDay(report.Date)
	report.CreatedAt = now
	report.UpdatedAt = now

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO reports (id, owner_id, date, duration, entries, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		report.ID,
		report.OwnerID,
		report.Date.Format(dayLayout),
		report.Duration,
		string(entries),
		report.CreatedAt,
		report.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperror.Conflict("report for this date", "date")
		}
		return fmt.Errorf("sqlite: inserting report for %s: %w", report.Date.Format(dayLayout), err)
	}

	return nil
}

// UpsertReportByDate is a single INSERT ... ON CONFLICT DO UPDATE against the
// (owner_id, date) unique index. SQLite serializes the two outcomes inside
// one statement, so concurrent upserts on the same day can never produce two
// rows; the last writer's entries and duration stand. The stored row keeps
// its original id and created_at across replacements.
func (db *DB) UpsertReportByDate(ctx context.Context, report *model.Report) (*model.Report, error) {
	entries, err := json.Marshal(report.Entries)
	if err != nil {
		return nil, fmt.Errorf("sqlite: encoding report entries: %w", err)
	}

	now := time.Now()
	day := timeutil.StartOfDay(report.Date).Format(dayLayout)

	var stored model.Report
	var storedDay, storedEntries string

	err = db.conn.QueryRowContext(ctx,
		`INSERT INTO reports (id, owner_id, date, duration, entries, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(owner_id, date) DO UPDATE SET
			duration   = excluded.duration,
			entries    = excluded.entries,
			updated_at = excluded.updated_at
		 RETURNING `+reportColumns,
		xid.New().String(),
		report.OwnerID,
		day,
		report.Duration,
		string(entries),
		now,
		now,
	).Scan(
		&stored.ID,
		&stored.OwnerID,
		&storedDay,
		&stored.Duration,
		&storedEntries,
		&stored.CreatedAt,
		&stored.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: upserting report for %s: %w", day, err)
	}

	if err := finishReportScan(&stored, storedDay, storedEntries); err != nil {
		return nil, err
	}
	return &stored, nil
}

// UpdateReport rewrites a report's date, duration and entries, filtered by owner.
// A zero-row match means the ID is unknown or belongs to someone else; both
// read as not found so existence is never confirmed to non-owners.
func (db *DB) UpdateReport(ctx context.Context, ownerID string, report *model.Report) (*model.Report, error) {
	entries, err := json.Marshal(report.Entries)
	if err != nil {
		return nil, fmt.Errorf("sqlite: encoding report entries: %w", err)
	}

	var stored model.Report
	var storedDay, storedEntries string

	err = db.conn.QueryRowContext(ctx,
		`UPDATE reports SET date = ?, duration = ?, entries = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ?
		 RETURNING `+reportColumns,
		timeutil.StartOfDay(report.Date).Format(dayLayout),
		report.Duration,
		string(entries),
		time.Now(),
		report.ID,
		ownerID,
	).Scan(
		&stored.ID,
		&stored.OwnerID,
		&storedDay,
		&stored.Duration,
		&storedEntries,
		&stored.CreatedAt,
		&stored.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("report", report.ID)
		}
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, apperror.Conflict("report for this date", "date")
		}
		return nil, fmt.Errorf("sqlite: updating report %s: %w", report.ID, err)
	}

	if err := finishReportScan(&stored, storedDay, storedEntries); err != nil {
		return nil, err
	}
	return &stored, nil
}

// GetReportByID fetches a single report, owner-filtered.
func (db *DB) GetReportByID(ctx context.Context, ownerID, id string) (*model.Report, error) {
	report, err := db.getReportWhere(ctx, "id = ? AND owner_id = ?", id, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("report", id)
		}
		return nil, err
	}
	return report, nil
}

// ListReportsByOwner returns all of an owner's reports ordered by date.
func (db *DB) ListReportsByOwner(ctx context.Context, ownerID string) ([]model.Report, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE owner_id = ? ORDER BY date`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing reports: %w", err)
	}
	defer rows.Close()

	reports := []model.Report{}
	for rows.Next() {
		var r model.Report
		var day, entries string
		if err := rows.Scan(&r.ID, &r.OwnerID, &day, &r.Duration, &entries, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning report: %w", err)
		}
		if err := finishReportScan(&r, day, entries); err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: listing reports: %w", err)
	}

	return reports, nil
}

// GetReportByOwnerAndDate returns the owner's report for the day, or (nil, nil).
func (db *DB) GetReportByOwnerAndDate(ctx context.Context, ownerID string, date time.Time) (*model.Report, error) {
	report, err := db.getReportWhere(ctx, "owner_id = ? AND date = ?",
		ownerID, timeutil.StartOfDay(date).Format(dayLayout))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return report, nil
}

// DailyDurations projects (date, duration) over the inclusive day range.
func (db *DB) DailyDurations(ctx context.Context, ownerID string, from, to time.Time) (map[string]int, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT date, duration FROM reports
		 WHERE owner_id = ? AND date BETWEEN ? AND ?`,
		ownerID,
		timeutil.StartOfDay(from).Format(dayLayout),
		timeutil.StartOfDay(to).Format(dayLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying daily durations: %w", err)
	}
	defer rows.Close()

	durations := map[string]int{}
	for rows.Next() {
		var day string
		var duration int
		if err := rows.Scan(&day, &duration); err != nil {
			return nil, fmt.Errorf("sqlite: scanning daily duration: %w", err)
		}
		date, err := time.ParseInLocation(dayLayout, day, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("sqlite: parsing stored date %q: %w", day, err)
		}
		durations[timeutil.FormatDayKey(date)] = duration
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: querying daily durations: %w", err)
	}

	return durations, nil
}

func (db *DB) getReportWhere(ctx context.Context, where string, args ...any) (*model.Report, error) {
	var r model.Report
	var day, entries string

	err := db.conn.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE `+where, args...,
	).Scan(&r.ID, &r.OwnerID, &day, &r.Duration, &entries, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := finishReportScan(&r, day, entries); err != nil {
		return nil, err
	}
	return &r, nil
}

func finishReportScan(r *model.Report, day, entries string) error {
	date, err := time.ParseInLocation(dayLayout, day, time.UTC)
	if err != nil {
		return fmt.Errorf("sqlite: parsing stored date %q: %w", day, err)
	}
	r.Date = date

	if err := json.Unmarshal([]byte(entries), &r.Entries); err != nil {
		return fmt.Errorf("sqlite: decoding report entries: %w", err)
	}
	return nil
}
