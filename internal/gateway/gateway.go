// Package gateway defines the narrow interfaces through which the sync
// engine talks to the calendar service, the board service, and their push
// notification facilities, along with the concrete vendor implementations.
package gateway

import (
	"context"
	"errors"
	"net"
	"time"

	"google.golang.org/api/googleapi"
)

// ErrNotFound indicates the remote service has no such resource.
var ErrNotFound = errors.New("resource not found on remote service")

// Event is the payload for creating or replacing a calendar event.
type Event struct {
	Title       string
	Description string
	Location    string
	ColourID    string
	Start       time.Time
	End         time.Time
}

// EventView is a read-only projection of a calendar event. It is fetched
// fresh on every reconciliation pass and never persisted.
type EventView struct {
	EventID  string
	ColourID string
	Title    string
	Start    time.Time
	End      time.Time
}

// Card is a work item on a kanban board.
type Card struct {
	ID          string
	Name        string
	Description string
	ListID      string
	BoardID     string
}

// BoardList is a column on a kanban board.
type BoardList struct {
	ID      string
	Name    string
	Closed  bool
	BoardID string
}

// Board is a kanban board.
type Board struct {
	ID     string
	Name   string
	Closed bool
}

// Subscription describes a registered board-side webhook.
type Subscription struct {
	ID          string
	Description string
	ModelID     string
	CallbackURL string
	Active      bool
}

// Channel describes a calendar-side push notification channel.
type Channel struct {
	ID         string
	ResourceID string
	Expiration time.Time
}

// CalendarGateway exposes the calendar operations the engine needs.
// GetEventsByIDs exists so a reconciliation pass can fetch the state of N
// tracked events in one batched round trip instead of N lookups.
type CalendarGateway interface {
	CreateEvent(ctx context.Context, calendarID string, ev Event) (string, error)
	GetEvent(ctx context.Context, calendarID, eventID string) (*EventView, error)
	UpdateEvent(ctx context.Context, calendarID, eventID string, ev Event) error
	UpdateEventColour(ctx context.Context, calendarID, eventID, colourID string) error
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
	GetEventsByIDs(ctx context.Context, calendarID string, eventIDs []string) (map[string]EventView, error)
	ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]EventView, error)
}

// BoardGateway exposes the board operations the engine needs.
type BoardGateway interface {
	GetCard(ctx context.Context, cardID string) (*Card, error)
	MoveCard(ctx context.Context, cardID, newListID string) (*Card, error)
	ListBoards(ctx context.Context) ([]Board, error)
	ListLists(ctx context.Context, boardID string) ([]BoardList, error)
	ListCardsInList(ctx context.Context, listID string) ([]Card, error)
}

// BoardWebhookGateway registers push subscriptions with the board service.
type BoardWebhookGateway interface {
	Subscribe(ctx context.Context, description, callbackURL, modelID string) (*Subscription, error)
	Unsubscribe(ctx context.Context, subscriptionID string) error
}

// CalendarWebhookGateway registers push channels with the calendar service.
type CalendarWebhookGateway interface {
	Watch(ctx context.Context, calendarID, address string) (*Channel, error)
	StopWatch(ctx context.Context, channelID, resourceID string) error
}

// IsTransient reports whether an error looks like a temporary collaborator
// failure (timeout, 5xx, rate limit). Transient failures are left for the
// next scheduled reconciliation pass rather than retried in place.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == 429 || gerr.Code >= 500
	}
	var aerr *APIError
	if errors.As(err, &aerr) {
		return aerr.StatusCode == 429 || aerr.StatusCode >= 500
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return false
}
