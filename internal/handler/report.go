package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mmmykhailo/timecracker-api/internal/apperror"
	"github.com/mmmykhailo/timecracker-api/internal/auth"
	"github.com/mmmykhailo/timecracker-api/internal/model"
	"github.com/mmmykhailo/timecracker-api/internal/service"
	"github.com/mmmykhailo/timecracker-api/internal/timeutil"
)

// ReportHandler exposes the report CRUD and aggregation endpoints. Every
// route sits behind RequireAuth; the owner is always the authenticated
// principal, never a request parameter.
type ReportHandler struct {
	reports *service.ReportService
	logger  *slog.Logger
}

func NewReportHandler(reports *service.ReportService, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{reports: reports, logger: logger}
}

// entryPayload is an incoming report entry; durations are never accepted
// from clients.
type entryPayload struct {
	Time        model.TimeRange `json:"time"`
	Project     string          `json:"project"`
	Activity    *string         `json:"activity"`
	Description string          `json:"description"`
}

type createReportRequest struct {
	Date    string         `json:"date"` // yyyyMMdd
	Entries []entryPayload `json:"entries"`
}

type upsertReportRequest struct {
	Entries []entryPayload `json:"entries"`
}

type updateReportRequest struct {
	Date    *string         `json:"date"`
	Entries *[]entryPayload `json:"entries"`
}

// HandleList returns all of the caller's reports.
//
// HTTP: GET /reports
func (h *ReportHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized())
		return
	}

	reports, err := h.reports.ListByOwner(r.Context(), ownerID)
	if err != nil {
		h.logger.Error("listing reports failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

// HandleGetByDate returns the caller's report for one day, or a null report
// when none exists.
//
// HTTP: GET /reports/date/{date}
func (h *ReportHandler) HandleGetByDate(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized())
		return
	}

	date, err := parseDateParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	report, err := h.reports.GetByDate(r.Context(), ownerID, date)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"report": report})
}

// HandleUpsertByDate replaces-or-creates the caller's report for one day.
//
// HTTP: PUT /reports/date/{date}
func (h *ReportHandler) HandleUpsertByDate(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized())
		return
	}

	date, err := parseDateParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req upsertReportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	entries, err := validateEntries(req.Entries)
	if err != nil {
		writeError(w, err)
		return
	}

	report, err := h.reports.UpsertByDate(r.Context(), ownerID, date, entries)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"report": report})
}

// HandleCreate strictly creates a report; a second report for the same day
// is a conflict.
//
// HTTP: POST /reports
func (h *ReportHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized())
		return
	}

	var req createReportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	date, err := timeutil.ParseDayKey(req.Date)
	if err != nil {
		writeError(w, apperror.ValidationFailed("date", "invalid date format, expected yyyyMMdd"))
		return
	}
	entries, err := validateEntries(req.Entries)
	if err != nil {
		writeError(w, err)
		return
	}

	report, err := h.reports.Create(r.Context(), ownerID, date, entries)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"report": report})
}

// HandleUpdateByID partially updates one of the caller's reports. Unknown
// IDs and other owners' reports both read as 404.
//
// HTTP: PATCH /reports/{id}, PUT /reports/{id}
func (h *ReportHandler) HandleUpdateByID(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized())
		return
	}

	id := chi.URLParam(r, "id")

	var req updateReportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	update := service.ReportUpdate{}
	if req.Date != nil {
		date, err := timeutil.ParseDayKey(*req.Date)
		if err != nil {
			writeError(w, apperror.ValidationFailed("date", "invalid date format, expected yyyyMMdd"))
			return
		}
		update.Date = &date
	}
	if req.Entries != nil {
		entries, err := validateEntries(*req.Entries)
		if err != nil {
			writeError(w, err)
			return
		}
		update.Entries = &entries
	}

	report, err := h.reports.UpdateByID(r.Context(), ownerID, id, update)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"report": report})
}

// HandleDailyDurations rolls up total minutes per day over an inclusive
// date range.
//
// HTTP: GET /reports/daily-durations?from=yyyyMMdd&to=yyyyMMdd
func (h *ReportHandler) HandleDailyDurations(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized())
		return
	}

	from, err := timeutil.ParseDayKey(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, apperror.ValidationFailed("from", "invalid date format, expected yyyyMMdd"))
		return
	}
	to, err := timeutil.ParseDayKey(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, apperror.ValidationFailed("to", "invalid date format, expected yyyyMMdd"))
		return
	}

	durations, err := h.reports.DailyDurations(r.Context(), ownerID, from, to)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"dailyDurations": durations})
}

func parseDateParam(r *http.Request) (time.Time, error) {
	date, err := timeutil.ParseDayKey(chi.URLParam(r, "date"))
	if err != nil {
		return time.Time{}, apperror.ValidationFailed("date", "invalid date format, expected yyyyMMdd")
	}
	return date, nil
}

// validateEntries checks the time-range shape of each entry and converts the
// payload into model entries. Ordering of start before end is deliberately
// not enforced — the engine passes misordered ranges through as negative
// durations.
func validateEntries(payloads []entryPayload) ([]model.ReportEntry, error) {
	entries := make([]model.ReportEntry, len(payloads))
	for i, p := range payloads {
		if !timeutil.IsClockTime(p.Time.Start) {
			return nil, apperror.ValidationFailed("entries", "invalid time format, expected hh:mm")
		}
		if !timeutil.IsClockTime(p.Time.End) {
			return nil, apperror.ValidationFailed("entries", "invalid time format, expected hh:mm")
		}
		entries[i] = model.ReportEntry{
			Time:        p.Time,
			Project:     p.Project,
			Activity:    p.Activity,
			Description: p.Description,
		}
	}
	return entries, nil
}
