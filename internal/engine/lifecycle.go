package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gitea.jw6.us/james/boardcal/internal/colour"
	"gitea.jw6.us/james/boardcal/internal/gateway"
	"gitea.jw6.us/james/boardcal/internal/store"
)

// Lifecycle orchestrates create/update/delete of a tracked item across the
// calendar gateway and the record store, compensating on partial failure.
// There is no distributed transaction here: the calendar write happens
// first (it has no side effect to undo if it fails), and a failed store
// write is compensated by deleting the event just created.
type Lifecycle struct {
	calendar      gateway.CalendarGateway
	records       store.RecordRepository
	subscriptions gateway.BoardWebhookGateway // nil disables push registration
	colours       *colour.Map
	callbackURL   string
	locks         *keyedMutex
}

// NewLifecycle wires a lifecycle manager. subscriptions may be nil when
// board push notifications are not configured; callbackURL is the public
// URL the board service delivers notifications to.
func NewLifecycle(
	calendar gateway.CalendarGateway,
	records store.RecordRepository,
	colours *colour.Map,
	subscriptions gateway.BoardWebhookGateway,
	callbackURL string,
) *Lifecycle {
	return &Lifecycle{
		calendar:      calendar,
		records:       records,
		subscriptions: subscriptions,
		colours:       colours,
		callbackURL:   callbackURL,
		locks:         newKeyedMutex(),
	}
}

// CreateItem is the input for tracking a new card on the calendar.
type CreateItem struct {
	Title       string
	Description string
	Location    string
	CalendarID  string
	CardID      string
	BoardID     string
	Status      string
	Start       time.Time
	End         time.Time
}

func (item *CreateItem) validate() error {
	switch {
	case item.CardID == "":
		return &ValidationError{Field: "card_id", Reason: "must not be empty"}
	case item.BoardID == "":
		return &ValidationError{Field: "board_id", Reason: "must not be empty"}
	case item.Title == "":
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	case item.Start.IsZero() || item.End.IsZero():
		return &ValidationError{Field: "time range", Reason: "start and end times are required"}
	case !item.End.After(item.Start):
		return &ValidationError{Field: "time range", Reason: "end time must be after start time"}
	}
	return nil
}

func (item *CreateItem) applyDefaults() {
	if item.CalendarID == "" {
		item.CalendarID = "primary"
	}
	if item.Status == "" {
		item.Status = "TO_DO"
	}
}

// Create adds a calendar event for the card and persists the sync record.
// If the calendar create fails nothing is written anywhere. If the store
// write fails the event is deleted again; if that compensating delete also
// fails, a DualFailureError is returned for operator attention.
func (l *Lifecycle) Create(ctx context.Context, item CreateItem) (*store.SyncRecord, error) {
	if err := item.validate(); err != nil {
		return nil, err
	}
	item.applyDefaults()

	unlock := l.locks.Lock(item.CardID)
	defer unlock()

	colourID := l.colours.Lookup(item.Status)
	eventID, err := l.calendar.CreateEvent(ctx, item.CalendarID, gateway.Event{
		Title:       item.Title,
		Description: item.Description,
		Location:    item.Location,
		ColourID:    colourID,
		Start:       item.Start,
		End:         item.End,
	})
	if err != nil {
		return nil, &OpError{Side: SideCalendar, Op: "create", CardID: item.CardID, Err: err}
	}

	saved, err := l.records.Add(ctx, store.SyncRecord{
		CardID:        item.CardID,
		BoardID:       item.BoardID,
		EventID:       eventID,
		CalendarID:    item.CalendarID,
		CurrentStatus: item.Status,
		Title:         item.Title,
		Description:   item.Description,
		Location:      item.Location,
		StartTime:     item.Start,
		EndTime:       item.End,
	})
	if err != nil {
		if delErr := l.calendar.DeleteEvent(ctx, item.CalendarID, eventID); delErr != nil && !errors.Is(delErr, gateway.ErrNotFound) {
			dual := &DualFailureError{
				CardID:        item.CardID,
				EventID:       eventID,
				StoreErr:      err,
				CompensateErr: delErr,
			}
			log.Printf("[ERROR] %v", dual)
			return nil, dual
		}
		return nil, &OpError{Side: SideStore, Op: "create", CardID: item.CardID, Err: err}
	}

	// Push registration is best effort: a missed subscription only delays
	// repair until the next periodic pass.
	if l.subscriptions != nil && l.callbackURL != "" {
		description := fmt.Sprintf("card_id-%s-cal_id-%s", item.CardID, item.CalendarID)
		if _, subErr := l.subscriptions.Subscribe(ctx, description, l.callbackURL, item.CardID); subErr != nil {
			log.Printf("[WARN] card %s: board webhook subscription failed: %v", item.CardID, subErr)
		}
	}

	return saved, nil
}

// Delete removes the calendar event first and the record only afterwards.
// A failed calendar delete leaves both sides untouched and retryable. A
// failed record delete after a successful calendar delete leaves an orphan
// the next reconciliation pass repairs.
func (l *Lifecycle) Delete(ctx context.Context, cardID string) (*store.SyncRecord, error) {
	if cardID == "" {
		return nil, &ValidationError{Field: "card_id", Reason: "must not be empty"}
	}

	unlock := l.locks.Lock(cardID)
	defer unlock()

	rec, err := l.records.GetByCardID(ctx, cardID)
	if err != nil {
		return nil, err
	}

	if rec.HasEvent() {
		err := l.calendar.DeleteEvent(ctx, rec.CalendarID, rec.EventID)
		if err != nil && !errors.Is(err, gateway.ErrNotFound) {
			return nil, &OpError{Side: SideCalendar, Op: "delete", CardID: cardID, Err: err}
		}
	}

	if err := l.records.Delete(ctx, cardID); err != nil {
		return nil, &OpError{Side: SideStore, Op: "delete", CardID: cardID, Err: err}
	}
	return rec, nil
}

// UpdateItem carries the mutable fields of a tracked item.
type UpdateItem struct {
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
}

// Update replaces the event details on the calendar and in the record.
// The calendar write goes first so a failure leaves the stored record
// describing what is actually on the calendar.
func (l *Lifecycle) Update(ctx context.Context, cardID string, upd UpdateItem) (*store.SyncRecord, error) {
	if cardID == "" {
		return nil, &ValidationError{Field: "card_id", Reason: "must not be empty"}
	}
	if upd.Title == "" {
		return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if upd.Start.IsZero() || upd.End.IsZero() || !upd.End.After(upd.Start) {
		return nil, &ValidationError{Field: "time range", Reason: "end time must be after start time"}
	}

	unlock := l.locks.Lock(cardID)
	defer unlock()

	rec, err := l.records.GetByCardID(ctx, cardID)
	if err != nil {
		return nil, err
	}

	if rec.HasEvent() {
		err := l.calendar.UpdateEvent(ctx, rec.CalendarID, rec.EventID, gateway.Event{
			Title:       upd.Title,
			Description: upd.Description,
			Location:    upd.Location,
			ColourID:    l.colours.Lookup(rec.CurrentStatus),
			Start:       upd.Start,
			End:         upd.End,
		})
		if err != nil && !errors.Is(err, gateway.ErrNotFound) {
			return nil, &OpError{Side: SideCalendar, Op: "update", CardID: cardID, Err: err}
		}
	}

	rec.Title = upd.Title
	rec.Description = upd.Description
	rec.Location = upd.Location
	rec.StartTime = upd.Start
	rec.EndTime = upd.End
	if err := l.records.Update(ctx, *rec); err != nil {
		return nil, &OpError{Side: SideStore, Op: "update", CardID: cardID, Err: err}
	}
	return rec, nil
}

// Get returns the stored record together with the live calendar view. The
// view is nil when the event no longer exists on the calendar; that drift
// is left for reconciliation rather than repaired on a read path.
func (l *Lifecycle) Get(ctx context.Context, cardID string) (*store.SyncRecord, *gateway.EventView, error) {
	rec, err := l.records.GetByCardID(ctx, cardID)
	if err != nil {
		return nil, nil, err
	}
	if !rec.HasEvent() {
		return rec, nil, nil
	}
	view, err := l.calendar.GetEvent(ctx, rec.CalendarID, rec.EventID)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			return rec, nil, nil
		}
		return nil, nil, &OpError{Side: SideCalendar, Op: "get", CardID: cardID, Err: err}
	}
	return rec, view, nil
}

// Correct repairs one drift entry. The record is re-read under the card
// lock so a correction racing a lifecycle call never acts on stale state;
// re-running a correction on an already-consistent record is a no-op.
func (l *Lifecycle) Correct(ctx context.Context, drift DriftEntry) error {
	unlock := l.locks.Lock(drift.Record.CardID)
	defer unlock()

	rec, err := l.records.GetByCardID(ctx, drift.Record.CardID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Deleted while the pass was running; nothing left to repair.
			return nil
		}
		return &OpError{Side: SideStore, Op: "correct", CardID: drift.Record.CardID, Err: err}
	}

	colourID := l.colours.Lookup(rec.CurrentStatus)

	switch drift.Reason {
	case DriftMissingInCalendar:
		eventID, err := l.calendar.CreateEvent(ctx, rec.CalendarID, gateway.Event{
			Title:       rec.Title,
			Description: rec.Description,
			Location:    rec.Location,
			ColourID:    colourID,
			Start:       rec.StartTime,
			End:         rec.EndTime,
		})
		if err != nil {
			return &OpError{Side: SideCalendar, Op: "recreate", CardID: rec.CardID, Err: err}
		}
		if err := l.records.SetEventID(ctx, rec.CardID, eventID); err != nil {
			// Without the new id stored, the next pass would recreate the
			// event again, so undo the create rather than leak events.
			if delErr := l.calendar.DeleteEvent(ctx, rec.CalendarID, eventID); delErr != nil && !errors.Is(delErr, gateway.ErrNotFound) {
				dual := &DualFailureError{
					CardID:        rec.CardID,
					EventID:       eventID,
					StoreErr:      err,
					CompensateErr: delErr,
				}
				log.Printf("[ERROR] %v", dual)
				return dual
			}
			return &OpError{Side: SideStore, Op: "recreate", CardID: rec.CardID, Err: err}
		}
		return nil

	case DriftColourMismatch:
		if err := l.calendar.UpdateEventColour(ctx, rec.CalendarID, rec.EventID, colourID); err != nil {
			return &OpError{Side: SideCalendar, Op: "update_colour", CardID: rec.CardID, Err: err}
		}
		return nil

	default:
		return fmt.Errorf("unknown drift reason %q for card %s", drift.Reason, rec.CardID)
	}
}
