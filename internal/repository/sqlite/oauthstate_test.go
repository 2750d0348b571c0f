package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mmmykhailo/timecracker-api/internal/apperror"
	"github.com/mmmykhailo/timecracker-api/internal/model"
)

func createTestState(t *testing.T, db *DB, state string, ttl time.Duration) *model.OAuthState {
	t.Helper()
	now := time.Now()
	record := &model.OAuthState{
		State:     state,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.CreateState(context.Background(), record); err != nil {
		t.Fatalf("failed to create test state: %v", err)
	}
	return record
}

func TestConsumeState(t *testing.T) {
	db := newTestDB(t)
	createTestState(t, db, "fresh-state", 10*time.Minute)

	if err := db.ConsumeState(context.Background(), "fresh-state", time.Now()); err != nil {
		t.Fatalf("ConsumeState() error = %v", err)
	}
}

func TestConsumeState_SecondUseFails(t *testing.T) {
	db := newTestDB(t)
	createTestState(t, db, "one-shot", 10*time.Minute)

	if err := db.ConsumeState(context.Background(), "one-shot", time.Now()); err != nil {
		t.Fatalf("ConsumeState() first use: %v", err)
	}

	err := db.ConsumeState(context.Background(), "one-shot", time.Now())
	if !errors.Is(err, apperror.ErrInvalidState) {
		t.Fatalf("ConsumeState() replay error = %v, want ErrInvalidState", err)
	}
}

func TestConsumeState_Unknown(t *testing.T) {
	db := newTestDB(t)

	err := db.ConsumeState(context.Background(), "never-issued", time.Now())
	if !errors.Is(err, apperror.ErrInvalidState) {
		t.Fatalf("ConsumeState() unknown error = %v, want ErrInvalidState", err)
	}
}

func TestConsumeState_Expired(t *testing.T) {
	db := newTestDB(t)
	record := createTestState(t, db, "stale", 10*time.Minute)

	// Consuming after the deadline fails exactly like an unknown state.
	err := db.ConsumeState(context.Background(), "stale", record.ExpiresAt.Add(time.Second))
	if !errors.Is(err, apperror.ErrInvalidState) {
		t.Fatalf("ConsumeState() expired error = %v, want ErrInvalidState", err)
	}
}

func TestConsumeState_ConcurrentSingleWinner(t *testing.T) {
	db := newTestDB(t)
	createTestState(t, db, "contested", 10*time.Minute)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)

	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = db.ConsumeState(context.Background(), "contested", time.Now())
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, apperror.ErrInvalidState):
		default:
			t.Fatalf("unexpected consume error: %v", err)
		}
	}
	if winners != 1 {
		t.Errorf("winners = %d, want exactly 1", winners)
	}
}

func TestDeleteExpiredStates(t *testing.T) {
	db := newTestDB(t)
	createTestState(t, db, "dead-1", time.Minute)
	createTestState(t, db, "dead-2", time.Minute)
	createTestState(t, db, "alive", time.Hour)

	deleted, err := db.DeleteExpiredStates(context.Background(), time.Now().Add(5*time.Minute))
	if err != nil {
		t.Fatalf("DeleteExpiredStates() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	// The surviving state is still consumable.
	if err := db.ConsumeState(context.Background(), "alive", time.Now()); err != nil {
		t.Fatalf("ConsumeState() survivor: %v", err)
	}
}
