package engine

import (
	"context"
	"fmt"
	"time"

	"gitea.jw6.us/james/boardcal/internal/gateway"
	"gitea.jw6.us/james/boardcal/internal/store"
)

// fakeRecordRepo is an in-memory store.RecordRepository with per-method
// failure injection.
type fakeRecordRepo struct {
	records map[string]*store.SyncRecord
	order   []string

	failAdd        error
	failGet        error
	failUpdate     error
	failSetEventID error
	failSetStatus  error
	failDelete     error
	failList       error
}

func newFakeRecordRepo() *fakeRecordRepo {
	return &fakeRecordRepo{records: map[string]*store.SyncRecord{}}
}

func (f *fakeRecordRepo) Add(ctx context.Context, rec store.SyncRecord) (*store.SyncRecord, error) {
	if f.failAdd != nil {
		return nil, f.failAdd
	}
	if _, ok := f.records[rec.CardID]; ok {
		return nil, store.ErrDuplicate
	}
	rec.CreatedAt = time.Now()
	f.records[rec.CardID] = &rec
	f.order = append(f.order, rec.CardID)
	saved := rec
	return &saved, nil
}

func (f *fakeRecordRepo) GetByCardID(ctx context.Context, cardID string) (*store.SyncRecord, error) {
	if f.failGet != nil {
		return nil, f.failGet
	}
	rec, ok := f.records[cardID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

func (f *fakeRecordRepo) Update(ctx context.Context, rec store.SyncRecord) error {
	if f.failUpdate != nil {
		return f.failUpdate
	}
	existing, ok := f.records[rec.CardID]
	if !ok {
		return store.ErrNotFound
	}
	existing.Title = rec.Title
	existing.Description = rec.Description
	existing.Location = rec.Location
	existing.StartTime = rec.StartTime
	existing.EndTime = rec.EndTime
	existing.CurrentStatus = rec.CurrentStatus
	existing.CalendarID = rec.CalendarID
	return nil
}

func (f *fakeRecordRepo) SetEventID(ctx context.Context, cardID, eventID string) error {
	if f.failSetEventID != nil {
		return f.failSetEventID
	}
	rec, ok := f.records[cardID]
	if !ok {
		return store.ErrNotFound
	}
	rec.EventID = eventID
	return nil
}

func (f *fakeRecordRepo) SetStatus(ctx context.Context, cardID, status string) error {
	if f.failSetStatus != nil {
		return f.failSetStatus
	}
	rec, ok := f.records[cardID]
	if !ok {
		return store.ErrNotFound
	}
	rec.CurrentStatus = status
	return nil
}

func (f *fakeRecordRepo) Delete(ctx context.Context, cardID string) error {
	if f.failDelete != nil {
		return f.failDelete
	}
	if _, ok := f.records[cardID]; !ok {
		return store.ErrNotFound
	}
	delete(f.records, cardID)
	for i, id := range f.order {
		if id == cardID {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeRecordRepo) ListAll(ctx context.Context) ([]store.SyncRecord, error) {
	if f.failList != nil {
		return nil, f.failList
	}
	out := make([]store.SyncRecord, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, *f.records[id])
	}
	return out, nil
}

// fakeCalendar is an in-memory gateway.CalendarGateway that counts calls so
// tests can assert how many round trips an operation took.
type fakeCalendar struct {
	events map[string]gateway.EventView // keyed by event id
	nextID int

	createCalls int
	deleteCalls int
	getCalls    int
	batchCalls  int
	colourCalls int

	failCreate       error
	failDelete       error
	failGet          error
	failUpdate       error
	failUpdateColour error
	failBatch        error
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{events: map[string]gateway.EventView{}}
}

func (f *fakeCalendar) CreateEvent(ctx context.Context, calendarID string, ev gateway.Event) (string, error) {
	f.createCalls++
	if f.failCreate != nil {
		return "", f.failCreate
	}
	f.nextID++
	id := fmt.Sprintf("evt-%d", f.nextID)
	f.events[id] = gateway.EventView{
		EventID:  id,
		ColourID: ev.ColourID,
		Title:    ev.Title,
		Start:    ev.Start,
		End:      ev.End,
	}
	return id, nil
}

func (f *fakeCalendar) GetEvent(ctx context.Context, calendarID, eventID string) (*gateway.EventView, error) {
	f.getCalls++
	if f.failGet != nil {
		return nil, f.failGet
	}
	view, ok := f.events[eventID]
	if !ok {
		return nil, gateway.ErrNotFound
	}
	return &view, nil
}

func (f *fakeCalendar) UpdateEvent(ctx context.Context, calendarID, eventID string, ev gateway.Event) error {
	if f.failUpdate != nil {
		return f.failUpdate
	}
	view, ok := f.events[eventID]
	if !ok {
		return gateway.ErrNotFound
	}
	view.Title = ev.Title
	view.ColourID = ev.ColourID
	view.Start = ev.Start
	view.End = ev.End
	f.events[eventID] = view
	return nil
}

func (f *fakeCalendar) UpdateEventColour(ctx context.Context, calendarID, eventID, colourID string) error {
	f.colourCalls++
	if f.failUpdateColour != nil {
		return f.failUpdateColour
	}
	view, ok := f.events[eventID]
	if !ok {
		return gateway.ErrNotFound
	}
	view.ColourID = colourID
	f.events[eventID] = view
	return nil
}

func (f *fakeCalendar) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	f.deleteCalls++
	if f.failDelete != nil {
		return f.failDelete
	}
	if _, ok := f.events[eventID]; !ok {
		return gateway.ErrNotFound
	}
	delete(f.events, eventID)
	return nil
}

func (f *fakeCalendar) GetEventsByIDs(ctx context.Context, calendarID string, eventIDs []string) (map[string]gateway.EventView, error) {
	f.batchCalls++
	if f.failBatch != nil {
		return nil, f.failBatch
	}
	out := map[string]gateway.EventView{}
	for _, id := range eventIDs {
		if view, ok := f.events[id]; ok {
			out[id] = view
		}
	}
	return out, nil
}

func (f *fakeCalendar) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]gateway.EventView, error) {
	var out []gateway.EventView
	for _, view := range f.events {
		out = append(out, view)
	}
	return out, nil
}

// fakeSubscriptions records board webhook registrations.
type fakeSubscriptions struct {
	subscribed []string // model ids
	failSub    error
}

func (f *fakeSubscriptions) Subscribe(ctx context.Context, description, callbackURL, modelID string) (*gateway.Subscription, error) {
	if f.failSub != nil {
		return nil, f.failSub
	}
	f.subscribed = append(f.subscribed, modelID)
	return &gateway.Subscription{ID: "sub-" + modelID, ModelID: modelID, CallbackURL: callbackURL, Active: true}, nil
}

func (f *fakeSubscriptions) Unsubscribe(ctx context.Context, subscriptionID string) error {
	return nil
}
