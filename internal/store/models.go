package store

import "time"

// SyncRecord links a board card to its calendar event. It is the unit of
// tracked state: RecordStore is the single source of truth for which cards
// are synchronised, while the board and calendar services are treated as
// eventually-consistent mirrors.
type SyncRecord struct {
	CardID        string
	BoardID       string
	EventID       string // empty until the calendar create succeeds
	CalendarID    string
	CurrentStatus string
	Title         string
	Description   string
	Location      string
	StartTime     time.Time
	EndTime       time.Time
	CreatedAt     time.Time
}

// HasEvent reports whether the record points at a calendar event.
func (r *SyncRecord) HasEvent() bool {
	return r.EventID != ""
}
