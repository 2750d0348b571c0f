package sqlite

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mmmykhailo/timecracker-api/internal/apperror"
	"github.com/mmmykhailo/timecracker-api/internal/model"
)

func day(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := time.ParseInLocation("2006-01-02", value, time.UTC)
	if err != nil {
		t.Fatalf("bad test date %q: %v", value, err)
	}
	return d
}

func testEntries(minutes int) []model.ReportEntry {
	return []model.ReportEntry{
		{
			Time:        model.TimeRange{Start: "09:00", End: "10:00"},
			Duration:    60,
			Project:     "timecracker",
			Description: "api work",
		},
		{
			Time:        model.TimeRange{Start: "10:00", End: "11:00"},
			Duration:    minutes - 60,
			Project:     "timecracker",
			Description: "more api work",
		},
	}
}

func TestCreateReport(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "reporter")

	report := &model.Report{
		OwnerID:  owner.ID,
		Date:     day(t, "2024-03-15"),
		Duration: 120,
		Entries:  testEntries(120),
	}
	if err := db.CreateReport(context.Background(), report); err != nil {
		t.Fatalf("CreateReport() error = %v", err)
	}
	if report.ID == "" {
		t.Error("CreateReport() did not set report.ID")
	}

	found, err := db.GetReportByID(context.Background(), owner.ID, report.ID)
	if err != nil {
		t.Fatalf("GetReportByID() error = %v", err)
	}
	if found.Duration != 120 {
		t.Errorf("Duration = %d, want 120", found.Duration)
	}
	if !found.Date.Equal(day(t, "2024-03-15")) {
		t.Errorf("Date = %v, want 2024-03-15", found.Date)
	}
	if len(found.Entries) != 2 {
		t.Fatalf("len(Entries) = %d, want 2", len(found.Entries))
	}
	if found.Entries[0].Time.Start != "09:00" {
		t.Errorf("Entries[0].Time.Start = %q, want %q", found.Entries[0].Time.Start, "09:00")
	}
}

func TestCreateReport_SecondReportSameDayConflicts(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "strict")

	first := &model.Report{OwnerID: owner.ID, Date: day(t, "2024-03-15")}
	if err := db.CreateReport(context.Background(), first); err != nil {
		t.Fatalf("CreateReport() first: %v", err)
	}

	second := &model.Report{OwnerID: owner.ID, Date: day(t, "2024-03-15")}
	err := db.CreateReport(context.Background(), second)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("CreateReport() second error = %v, want ErrConflict", err)
	}
}

func TestCreateReport_SameDayDifferentOwners(t *testing.T) {
	db := newTestDB(t)
	a := createTestUser(t, db, "owner-a")
	b := createTestUser(t, db, "owner-b")

	for _, owner := range []*model.User{a, b} {
		r := &model.Report{OwnerID: owner.ID, Date: day(t, "2024-03-15")}
		if err := db.CreateReport(context.Background(), r); err != nil {
			t.Fatalf("CreateReport() for %s: %v", owner.Username, err)
		}
	}
}

func TestUpsertReportByDate_InsertsThenReplaces(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "upserter")
	date := day(t, "2024-03-16")

	first, err := db.UpsertReportByDate(context.Background(), &model.Report{
		OwnerID:  owner.ID,
		Date:     date,
		Duration: 60,
		Entries:  testEntries(60)[:1],
	})
	if err != nil {
		t.Fatalf("UpsertReportByDate() insert: %v", err)
	}
	if first.ID == "" {
		t.Fatal("upsert did not return an ID")
	}

	second, err := db.UpsertReportByDate(context.Background(), &model.Report{
		OwnerID:  owner.ID,
		Date:     date,
		Duration: 120,
		Entries:  testEntries(120),
	})
	if err != nil {
		t.Fatalf("UpsertReportByDate() replace: %v", err)
	}

	// Replacement keeps the stored row's identity and creation time.
	if second.ID != first.ID {
		t.Errorf("ID changed across upserts: %q != %q", second.ID, first.ID)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt changed across upserts: %v != %v", second.CreatedAt, first.CreatedAt)
	}
	if second.Duration != 120 {
		t.Errorf("Duration = %d, want 120", second.Duration)
	}

	reports, err := db.ListReportsByOwner(context.Background(), owner.ID)
	if err != nil {
		t.Fatalf("ListReportsByOwner(): %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("len(reports) = %d, want 1 after replacing upsert", len(reports))
	}
}

func TestUpsertReportByDate_ConcurrentWritersOneRow(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "concurrent")
	date := day(t, "2024-03-17")

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)

	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = db.UpsertReportByDate(context.Background(), &model.Report{
				OwnerID:  owner.ID,
				Date:     date,
				Duration: (i + 1) * 10,
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("writer %d: %v", i, err)
		}
	}

	reports, err := db.ListReportsByOwner(context.Background(), owner.ID)
	if err != nil {
		t.Fatalf("ListReportsByOwner(): %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("len(reports) = %d, want exactly 1 after %d concurrent upserts", len(reports), writers)
	}
}

func TestUpdateReport(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "editor")

	report := &model.Report{OwnerID: owner.ID, Date: day(t, "2024-03-18"), Duration: 60}
	if err := db.CreateReport(context.Background(), report); err != nil {
		t.Fatalf("CreateReport(): %v", err)
	}

	report.Date = day(t, "2024-03-19")
	report.Duration = 90
	report.Entries = testEntries(90)

	updated, err := db.UpdateReport(context.Background(), owner.ID, report)
	if err != nil {
		t.Fatalf("UpdateReport() error = %v", err)
	}
	if updated.Duration != 90 {
		t.Errorf("Duration = %d, want 90", updated.Duration)
	}
	if !updated.Date.Equal(day(t, "2024-03-19")) {
		t.Errorf("Date = %v, want 2024-03-19", updated.Date)
	}
}

func TestUpdateReport_WrongOwnerIsNotFound(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "victim")
	other := createTestUser(t, db, "intruder")

	report := &model.Report{OwnerID: owner.ID, Date: day(t, "2024-03-18")}
	if err := db.CreateReport(context.Background(), report); err != nil {
		t.Fatalf("CreateReport(): %v", err)
	}

	_, err := db.UpdateReport(context.Background(), other.ID, report)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("UpdateReport() as non-owner error = %v, want ErrNotFound", err)
	}
}

func TestUpdateReport_DateCollision(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "mover")

	occupied := &model.Report{OwnerID: owner.ID, Date: day(t, "2024-03-20")}
	if err := db.CreateReport(context.Background(), occupied); err != nil {
		t.Fatalf("CreateReport() occupied day: %v", err)
	}
	moving := &model.Report{OwnerID: owner.ID, Date: day(t, "2024-03-21")}
	if err := db.CreateReport(context.Background(), moving); err != nil {
		t.Fatalf("CreateReport() moving report: %v", err)
	}

	// Moving onto an already-reported day must trip the unique index.
	moving.Date = day(t, "2024-03-20")
	_, err := db.UpdateReport(context.Background(), owner.ID, moving)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("UpdateReport() onto occupied day error = %v, want ErrConflict", err)
	}
}

func TestGetReportByOwnerAndDate_AbsentIsNilNil(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "empty")

	report, err := db.GetReportByOwnerAndDate(context.Background(), owner.ID, day(t, "2024-01-01"))
	if err != nil {
		t.Fatalf("GetReportByOwnerAndDate() error = %v", err)
	}
	if report != nil {
		t.Errorf("report = %+v, want nil for an absent day", report)
	}
}

func TestListReportsByOwner_OrderedByDate(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "ordered")

	for _, d := range []string{"2024-03-20", "2024-03-18", "2024-03-19"} {
		r := &model.Report{OwnerID: owner.ID, Date: day(t, d)}
		if err := db.CreateReport(context.Background(), r); err != nil {
			t.Fatalf("CreateReport(%s): %v", d, err)
		}
	}

	reports, err := db.ListReportsByOwner(context.Background(), owner.ID)
	if err != nil {
		t.Fatalf("ListReportsByOwner(): %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("len(reports) = %d, want 3", len(reports))
	}
	for i := 1; i < len(reports); i++ {
		if reports[i].Date.Before(reports[i-1].Date) {
			t.Errorf("reports out of order: %v before %v", reports[i].Date, reports[i-1].Date)
		}
	}
}

func TestDailyDurations(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "rollup")
	other := createTestUser(t, db, "noise")

	seed := map[string]int{
		"2024-03-01": 480,
		"2024-03-02": 300,
		"2024-03-10": 60, // outside the queried range
	}
	for d, mins := range seed {
		r := &model.Report{OwnerID: owner.ID, Date: day(t, d), Duration: mins}
		if err := db.CreateReport(context.Background(), r); err != nil {
			t.Fatalf("CreateReport(%s): %v", d, err)
		}
	}
	// Another owner's report on an in-range day must not leak in.
	noise := &model.Report{OwnerID: other.ID, Date: day(t, "2024-03-01"), Duration: 999}
	if err := db.CreateReport(context.Background(), noise); err != nil {
		t.Fatalf("CreateReport() noise: %v", err)
	}

	durations, err := db.DailyDurations(context.Background(), owner.ID,
		day(t, "2024-03-01"), day(t, "2024-03-05"))
	if err != nil {
		t.Fatalf("DailyDurations() error = %v", err)
	}

	want := map[string]int{"20240301": 480, "20240302": 300}
	if fmt.Sprint(durations) != fmt.Sprint(want) {
		t.Errorf("DailyDurations() = %v, want %v", durations, want)
	}
}
