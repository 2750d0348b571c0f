package model

import "time"

// TimeRange is a pair of local clock times in 24-hour "HH:MM" form.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ReportEntry is a single tracked slice of a day. Duration is derived from
// Time by the aggregation engine, never supplied by clients; a misordered
// range produces a negative duration which is stored as computed.
type ReportEntry struct {
	Time        TimeRange `json:"time"`
	Duration    int       `json:"duration"` // minutes
	Project     string    `json:"project"`
	Activity    *string   `json:"activity"` // optional
	Description string    `json:"description"`
}

// Report is the authoritative record of one owner's tracked day. At most one
// report exists per (OwnerID, Date); the storage layer enforces that with a
// unique index. Duration is the sum of entry durations.
type Report struct {
	ID        string        `json:"id"        db:"id"`
	OwnerID   string        `json:"ownerId"   db:"owner_id"`
	Date      time.Time     `json:"date"      db:"date"` // UTC midnight, day granularity
	Duration  int           `json:"duration"  db:"duration"`
	Entries   []ReportEntry `json:"entries"   db:"entries"`
	CreatedAt time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time     `json:"updatedAt" db:"updated_at"`
}
