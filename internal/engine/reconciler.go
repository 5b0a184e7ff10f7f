package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"gitea.jw6.us/james/boardcal/internal/colour"
	"gitea.jw6.us/james/boardcal/internal/gateway"
	"gitea.jw6.us/james/boardcal/internal/metrics"
	"gitea.jw6.us/james/boardcal/internal/store"
)

// DriftReason classifies a detected mismatch between the stored view of a
// tracked item and the calendar's view.
type DriftReason string

const (
	DriftMissingInCalendar DriftReason = "missing_in_calendar"
	DriftColourMismatch    DriftReason = "colour_mismatch"
)

// DriftEntry pairs a record with the reason it needs correcting. Entries
// live only within a single reconciliation pass.
type DriftEntry struct {
	Record store.SyncRecord
	Reason DriftReason
}

// CorrectionFailure records one correction that could not be applied.
type CorrectionFailure struct {
	CardID string
	Reason DriftReason
	Err    error
}

// PassReport summarises one reconciliation pass. Per-record failures are
// aggregated here instead of aborting the pass.
type PassReport struct {
	Checked   int
	Drift     []DriftEntry
	Corrected int
	Failures  []CorrectionFailure
}

// Reconciler periodically compares every sync record against the
// calendar's current state and repairs whatever drifted. It is the
// availability backbone of drift correction: webhook-triggered repairs
// are an optimisation on top of it, not a replacement.
type Reconciler struct {
	records     store.RecordRepository
	calendar    gateway.CalendarGateway
	lifecycle   *Lifecycle
	colours     *colour.Map
	passTimeout time.Duration
}

// NewReconciler wires a reconciler around the same lifecycle manager the
// request paths use, so corrections take the same per-card locks.
func NewReconciler(records store.RecordRepository, calendar gateway.CalendarGateway, lifecycle *Lifecycle, colours *colour.Map) *Reconciler {
	return &Reconciler{
		records:     records,
		calendar:    calendar,
		lifecycle:   lifecycle,
		colours:     colours,
		passTimeout: 2 * time.Minute,
	}
}

// RunOnce executes one full reconciliation pass: list every record, fetch
// the corresponding calendar events in one batched round trip per
// calendar, diff, and correct. An unreachable store or calendar is a hard
// failure for the pass; individual correction failures are collected in
// the report and do not stop the remaining corrections.
func (r *Reconciler) RunOnce(ctx context.Context) (*PassReport, error) {
	records, err := r.records.ListAll(ctx)
	if err != nil {
		metrics.ObserveReconcilePass("failed")
		return nil, fmt.Errorf("list sync records: %w", err)
	}

	report := &PassReport{Checked: len(records)}
	if len(records) == 0 {
		metrics.ObserveReconcilePass("ok")
		return report, nil
	}

	byCalendar := map[string][]string{}
	for _, rec := range records {
		if rec.HasEvent() {
			byCalendar[rec.CalendarID] = append(byCalendar[rec.CalendarID], rec.EventID)
		}
	}

	views := map[string]gateway.EventView{}
	for calendarID, eventIDs := range byCalendar {
		batch, err := r.calendar.GetEventsByIDs(ctx, calendarID, eventIDs)
		if err != nil {
			metrics.ObserveReconcilePass("failed")
			return nil, fmt.Errorf("batch fetch calendar %s: %w", calendarID, err)
		}
		for id, view := range batch {
			views[id] = view
		}
	}

	// Records are diffed in store order; corrections are independent and
	// idempotent, so no priority ordering is needed.
	for _, rec := range records {
		view, found := views[rec.EventID]
		switch {
		case !rec.HasEvent() || !found:
			report.Drift = append(report.Drift, DriftEntry{Record: rec, Reason: DriftMissingInCalendar})
		case view.ColourID != r.colours.Lookup(rec.CurrentStatus):
			report.Drift = append(report.Drift, DriftEntry{Record: rec, Reason: DriftColourMismatch})
		}
	}

	for _, drift := range report.Drift {
		metrics.ObserveDrift(string(drift.Reason))
		if err := r.lifecycle.Correct(ctx, drift); err != nil {
			log.Printf("[ERROR] reconcile: correcting card %s (%s): %v", drift.Record.CardID, drift.Reason, err)
			report.Failures = append(report.Failures, CorrectionFailure{
				CardID: drift.Record.CardID,
				Reason: drift.Reason,
				Err:    err,
			})
			metrics.ObserveCorrection("failed")
			continue
		}
		report.Corrected++
		metrics.ObserveCorrection("ok")
	}

	if len(report.Failures) > 0 {
		metrics.ObserveReconcilePass("partial")
	} else {
		metrics.ObserveReconcilePass("ok")
	}
	return report, nil
}

// ReconcileOne runs the same compare-and-correct algorithm scoped to a
// single card, used by webhook notifications to keep repair latency low.
// Returns store.ErrNotFound when the card is not tracked.
func (r *Reconciler) ReconcileOne(ctx context.Context, cardID string) error {
	rec, err := r.records.GetByCardID(ctx, cardID)
	if err != nil {
		return err
	}

	if !rec.HasEvent() {
		return r.lifecycle.Correct(ctx, DriftEntry{Record: *rec, Reason: DriftMissingInCalendar})
	}

	view, err := r.calendar.GetEvent(ctx, rec.CalendarID, rec.EventID)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			return r.lifecycle.Correct(ctx, DriftEntry{Record: *rec, Reason: DriftMissingInCalendar})
		}
		return &OpError{Side: SideCalendar, Op: "reconcile", CardID: cardID, Err: err}
	}

	if view.ColourID != r.colours.Lookup(rec.CurrentStatus) {
		return r.lifecycle.Correct(ctx, DriftEntry{Record: *rec, Reason: DriftColourMismatch})
	}
	return nil
}

// Run schedules RunOnce on a fixed interval until ctx is cancelled. A
// failed pass is logged and the loop keeps going: transient collaborator
// outages must not take the repair loop down with them.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) error {
	scheduler := cron.New()
	_, err := scheduler.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		passCtx, cancel := context.WithTimeout(ctx, r.passTimeout)
		defer cancel()

		report, err := r.RunOnce(passCtx)
		if err != nil {
			log.Printf("[ERROR] reconcile pass failed: %v", err)
			return
		}
		if len(report.Drift) > 0 {
			log.Printf("[INFO] reconcile pass: checked=%d drift=%d corrected=%d failed=%d",
				report.Checked, len(report.Drift), report.Corrected, len(report.Failures))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule reconciler: %w", err)
	}

	scheduler.Start()
	<-ctx.Done()
	<-scheduler.Stop().Done()
	return ctx.Err()
}
