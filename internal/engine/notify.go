package engine

import (
	"context"
	"errors"
	"log"
	"strings"

	"gitea.jw6.us/james/boardcal/internal/store"
)

// BoardNotification is the envelope the board service posts to the webhook
// callback. Only the card identity and, for moves, the destination list
// are consumed; everything else in the envelope is vendor noise.
type BoardNotification struct {
	Action struct {
		Type string `json:"type"`
		Data struct {
			Card struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"card"`
			ListAfter struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"listAfter"`
		} `json:"data"`
	} `json:"action"`
	Model struct {
		ID string `json:"id"`
	} `json:"model"`
	Webhook struct {
		ID string `json:"id"`
	} `json:"webhook"`
}

// CalendarNotification carries the calendar push channel headers. The
// protocol deliberately omits the changed event's identity, so a
// notification is only a hint that something on the calendar moved.
type CalendarNotification struct {
	ChannelID     string
	ResourceID    string
	ResourceState string
	MessageNumber int
}

// Notifications turns inbound push notifications into targeted or full
// reconciliation, instead of waiting for the next periodic pass.
type Notifications struct {
	records    store.RecordRepository
	reconciler *Reconciler
}

// NewNotifications wires the webhook notification handler.
func NewNotifications(records store.RecordRepository, reconciler *Reconciler) *Notifications {
	return &Notifications{records: records, reconciler: reconciler}
}

// HandleBoard resolves the changed card and runs a single-record
// reconciliation. When the notification is a card move, the destination
// list name is recorded as the card's new status first, so the colour
// comparison repairs the calendar to match. Notifications for cards that
// are not tracked are ignored.
func (n *Notifications) HandleBoard(ctx context.Context, note BoardNotification) error {
	cardID := note.Action.Data.Card.ID
	if cardID == "" {
		cardID = note.Model.ID
	}
	if cardID == "" {
		return &ValidationError{Field: "notification", Reason: "does not identify a card"}
	}

	if listName := note.Action.Data.ListAfter.Name; listName != "" {
		status := statusFromListName(listName)
		err := n.records.SetStatus(ctx, cardID, status)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return &OpError{Side: SideStore, Op: "set_status", CardID: cardID, Err: err}
		}
	}

	err := n.reconciler.ReconcileOne(ctx, cardID)
	if errors.Is(err, store.ErrNotFound) {
		log.Printf("[INFO] board notification for untracked card %s ignored", cardID)
		return nil
	}
	return err
}

// HandleCalendar reacts to a calendar push notification. The payload
// cannot name the changed event, so the handler falls back to a full
// reconciliation pass. The initial channel handshake ("sync" state) needs
// no action beyond acknowledgement.
func (n *Notifications) HandleCalendar(ctx context.Context, note CalendarNotification) error {
	if note.ResourceState == "sync" {
		return nil
	}
	_, err := n.reconciler.RunOnce(ctx)
	return err
}

// statusFromListName normalises a board list name ("In Progress") into the
// status key form used by the colour map ("IN_PROGRESS").
func statusFromListName(name string) string {
	status := strings.ToUpper(strings.TrimSpace(name))
	status = strings.ReplaceAll(status, " ", "_")
	status = strings.ReplaceAll(status, "-", "_")
	return status
}
