package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmmykhailo/timecracker-api/internal/apperror"
	"github.com/mmmykhailo/timecracker-api/internal/model"
	"github.com/mmmykhailo/timecracker-api/internal/report"
	"github.com/mmmykhailo/timecracker-api/internal/repository"
	"github.com/mmmykhailo/timecracker-api/internal/timeutil"
)

// ReportService runs every write through the aggregation engine before it
// reaches the store, and keeps all reads owner-scoped.
type ReportService struct {
	reports repository.ReportRepository
	logger  *slog.Logger
}

func NewReportService(reports repository.ReportRepository, logger *slog.Logger) *ReportService {
	return &ReportService{reports: reports, logger: logger}
}

// ReportUpdate is a partial update for UpdateByID. Nil fields keep the stored
// value; supplying Entries recomputes all durations.
type ReportUpdate struct {
	Date    *time.Time
	Entries *[]model.ReportEntry
}

// Create strictly inserts a report for the day; an existing report on the
// same (owner, date) is a conflict. Entry durations and the report total are
// derived here, never taken from the caller.
func (s *ReportService) Create(ctx context.Context, ownerID string, date time.Time, entries []model.ReportEntry) (*model.Report, error) {
	refined, total, err := report.Derive(entries)
	if err != nil {
		return nil, apperror.ValidationFailed("entries", err.Error())
	}

	r := &model.Report{
		OwnerID:  ownerID,
		Date:     timeutil.StartOfDay(date),
		Duration: total,
		Entries:  refined,
	}
	if err := s.reports.CreateReport(ctx, r); err != nil {
		return nil, err
	}

	s.logger.Info("report created",
		slog.String("ownerID", ownerID),
		slog.String("date", timeutil.FormatDayKey(r.Date)),
		slog.Int("duration", total),
	)
	return r, nil
}

// UpsertByDate is the preferred write path: replace-or-insert the report for
// (owner, date) in one atomic store operation. Calling it twice with the same
// payload leaves exactly one report; concurrent callers for the same day
// cannot create duplicates — last writer wins on the entries.
func (s *ReportService) UpsertByDate(ctx context.Context, ownerID string, date time.Time, entries []model.ReportEntry) (*model.Report, error) {
	refined, total, err := report.Derive(entries)
	if err != nil {
		return nil, apperror.ValidationFailed("entries", err.Error())
	}

	stored, err := s.reports.UpsertReportByDate(ctx, &model.Report{
		OwnerID:  ownerID,
		Date:     timeutil.StartOfDay(date),
		Duration: total,
		Entries:  refined,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("report upserted",
		slog.String("ownerID", ownerID),
		slog.String("date", timeutil.FormatDayKey(stored.Date)),
		slog.Int("duration", stored.Duration),
	)
	return stored, nil
}

// UpdateByID applies a partial update to the caller's own report. Another
// owner's report — or an unknown ID — reads as not found.
func (s *ReportService) UpdateByID(ctx context.Context, ownerID, id string, update ReportUpdate) (*model.Report, error) {
	existing, err := s.reports.GetReportByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if update.Date != nil {
		existing.Date = timeutil.StartOfDay(*update.Date)
	}
	entries := existing.Entries
	if update.Entries != nil {
		entries = *update.Entries
	}

	refined, total, err := report.Derive(entries)
	if err != nil {
		return nil, apperror.ValidationFailed("entries", err.Error())
	}
	existing.Entries = refined
	existing.Duration = total

	return s.reports.UpdateReport(ctx, ownerID, existing)
}

// ListByOwner returns all of the caller's reports.
func (s *ReportService) ListByOwner(ctx context.Context, ownerID string) ([]model.Report, error) {
	reports, err := s.reports.ListReportsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("service/report: listing reports: %w", err)
	}
	return reports, nil
}

// GetByDate returns the caller's report for the day, or nil when none exists.
func (s *ReportService) GetByDate(ctx context.Context, ownerID string, date time.Time) (*model.Report, error) {
	r, err := s.reports.GetReportByOwnerAndDate(ctx, ownerID, date)
	if err != nil {
		return nil, fmt.Errorf("service/report: fetching report by date: %w", err)
	}
	return r, nil
}

// DailyDurations rolls up total minutes per day over the inclusive [from, to]
// range, keyed by yyyyMMdd. Days without a report are absent; the caller
// decides whether absence means zero.
func (s *ReportService) DailyDurations(ctx context.Context, ownerID string, from, to time.Time) (map[string]int, error) {
	durations, err := s.reports.DailyDurations(ctx, ownerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("service/report: querying daily durations: %w", err)
	}
	return durations, nil
}
