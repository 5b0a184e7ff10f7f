package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const batchPageSize = 2500

// GoogleCalendar implements CalendarGateway and CalendarWebhookGateway
// against the Google Calendar v3 API.
type GoogleCalendar struct {
	service *calendar.Service
	timeout time.Duration
}

// NewGoogleCalendar builds a gateway from an authenticated HTTP client.
// Every call is bounded by timeout; a timed-out call surfaces as a
// transient failure, never as "event does not exist".
func NewGoogleCalendar(ctx context.Context, client *http.Client, timeout time.Duration) (*GoogleCalendar, error) {
	service, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &GoogleCalendar{service: service, timeout: timeout}, nil
}

func (g *GoogleCalendar) CreateEvent(ctx context.Context, calendarID string, ev Event) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	created, err := g.service.Events.Insert(calendarID, apiEventFrom(ev)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return created.Id, nil
}

func (g *GoogleCalendar) GetEvent(ctx context.Context, calendarID, eventID string) (*EventView, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	item, err := g.service.Events.Get(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		if isGoogleNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event %s: %w", eventID, err)
	}
	if item.Status == "cancelled" {
		return nil, ErrNotFound
	}
	view := eventViewFrom(item)
	return &view, nil
}

func (g *GoogleCalendar) UpdateEvent(ctx context.Context, calendarID, eventID string, ev Event) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	_, err := g.service.Events.Update(calendarID, eventID, apiEventFrom(ev)).Context(ctx).Do()
	if err != nil {
		if isGoogleNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("update event %s: %w", eventID, err)
	}
	return nil
}

func (g *GoogleCalendar) UpdateEventColour(ctx context.Context, calendarID, eventID, colourID string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	patch := &calendar.Event{ColorId: colourID}
	_, err := g.service.Events.Patch(calendarID, eventID, patch).Context(ctx).Do()
	if err != nil {
		if isGoogleNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("patch event colour %s: %w", eventID, err)
	}
	return nil
}

func (g *GoogleCalendar) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.service.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		if isGoogleNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete event %s: %w", eventID, err)
	}
	return nil
}

// GetEventsByIDs fetches the current view of the given events in a single
// paged list call. The v3 Go client has no multipart batch endpoint, so one
// list request filtered client-side stands in for per-id lookups. Ids
// absent from the result are not found on the calendar.
func (g *GoogleCalendar) GetEventsByIDs(ctx context.Context, calendarID string, eventIDs []string) (map[string]EventView, error) {
	views := make(map[string]EventView, len(eventIDs))
	if len(eventIDs) == 0 {
		return views, nil
	}

	wanted := make(map[string]struct{}, len(eventIDs))
	for _, id := range eventIDs {
		wanted[id] = struct{}{}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	call := g.service.Events.List(calendarID).
		ShowDeleted(false).
		SingleEvents(true).
		MaxResults(batchPageSize)
	err := call.Pages(ctx, func(page *calendar.Events) error {
		for _, item := range page.Items {
			if _, ok := wanted[item.Id]; !ok {
				continue
			}
			if item.Status == "cancelled" {
				continue
			}
			views[item.Id] = eventViewFrom(item)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("batch list events: %w", err)
	}
	return views, nil
}

func (g *GoogleCalendar) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]EventView, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	result, err := g.service.Events.List(calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	views := make([]EventView, 0, len(result.Items))
	for _, item := range result.Items {
		views = append(views, eventViewFrom(item))
	}
	return views, nil
}

// Watch opens a push notification channel for the calendar. Google's push
// protocol identifies changes only by channel and resource, never by event
// id, so the receiver treats notifications as reconciliation hints.
func (g *GoogleCalendar) Watch(ctx context.Context, calendarID, address string) (*Channel, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	ch, err := g.service.Events.Watch(calendarID, &calendar.Channel{
		Id:      uuid.NewString(),
		Type:    "web_hook",
		Address: address,
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("watch calendar %s: %w", calendarID, err)
	}

	out := &Channel{ID: ch.Id, ResourceID: ch.ResourceId}
	if ch.Expiration > 0 {
		out.Expiration = time.UnixMilli(ch.Expiration)
	}
	return out, nil
}

func (g *GoogleCalendar) StopWatch(ctx context.Context, channelID, resourceID string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	err := g.service.Channels.Stop(&calendar.Channel{
		Id:         channelID,
		ResourceId: resourceID,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("stop channel %s: %w", channelID, err)
	}
	return nil
}

func apiEventFrom(ev Event) *calendar.Event {
	return &calendar.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
		ColorId:     ev.ColourID,
		Start:       &calendar.EventDateTime{DateTime: ev.Start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: ev.End.Format(time.RFC3339)},
	}
}

func eventViewFrom(item *calendar.Event) EventView {
	view := EventView{
		EventID:  item.Id,
		ColourID: item.ColorId,
		Title:    item.Summary,
	}
	if item.Start != nil {
		view.Start, _ = time.Parse(time.RFC3339, item.Start.DateTime)
	}
	if item.End != nil {
		view.End, _ = time.Parse(time.RFC3339, item.End.DateTime)
	}
	return view
}

func isGoogleNotFound(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone
	}
	return false
}
