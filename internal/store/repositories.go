package store

import "context"

// RecordRepository defines persistence operations for sync records.
type RecordRepository interface {
	// Add persists a new record and returns it with CreatedAt populated.
	// Adding a card id that is already tracked returns ErrDuplicate.
	Add(ctx context.Context, rec SyncRecord) (*SyncRecord, error)

	// GetByCardID returns the record for a card, or ErrNotFound.
	GetByCardID(ctx context.Context, cardID string) (*SyncRecord, error)

	// Update replaces the mutable fields (title, description, location,
	// times, status, calendar id) of an existing record.
	Update(ctx context.Context, rec SyncRecord) error

	// SetEventID repoints a record at a new calendar event. Used when a
	// reconciliation pass recreates a lost event.
	SetEventID(ctx context.Context, cardID, eventID string) error

	// SetStatus records a board-side status change.
	SetStatus(ctx context.Context, cardID, status string) error

	// Delete removes a record, or returns ErrNotFound.
	Delete(ctx context.Context, cardID string) error

	// ListAll returns every tracked record in insertion order.
	ListAll(ctx context.Context) ([]SyncRecord, error)
}
