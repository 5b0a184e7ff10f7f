package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"gitea.jw6.us/james/boardcal/internal/engine"
	"gitea.jw6.us/james/boardcal/internal/store"
)

// EventsHandler serves the tracked-item lifecycle endpoints.
type EventsHandler struct {
	lifecycle *engine.Lifecycle
}

// NewEventsHandler builds the lifecycle endpoint handler.
func NewEventsHandler(lifecycle *engine.Lifecycle) *EventsHandler {
	return &EventsHandler{lifecycle: lifecycle}
}

type eventRequest struct {
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Location      string    `json:"location,omitempty"`
	StartDatetime time.Time `json:"start_datetime"`
	EndDatetime   time.Time `json:"end_datetime"`
	CalendarID    string    `json:"calendar_id"`
	CardID        string    `json:"card_id"`
	BoardID       string    `json:"board_id"`
	CurrentStatus string    `json:"current_status"`
}

type eventResponse struct {
	CardID        string    `json:"card_id"`
	BoardID       string    `json:"board_id"`
	EventID       string    `json:"event_id,omitempty"`
	CalendarID    string    `json:"calendar_id"`
	CurrentStatus string    `json:"current_status"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Location      string    `json:"location,omitempty"`
	StartDatetime time.Time `json:"start_datetime"`
	EndDatetime   time.Time `json:"end_datetime"`
	CreatedAt     time.Time `json:"created_at"`
}

type calendarViewResponse struct {
	EventID  string    `json:"event_id"`
	ColourID string    `json:"colour_id"`
	Title    string    `json:"title"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

func eventResponseFrom(rec *store.SyncRecord) eventResponse {
	return eventResponse{
		CardID:        rec.CardID,
		BoardID:       rec.BoardID,
		EventID:       rec.EventID,
		CalendarID:    rec.CalendarID,
		CurrentStatus: rec.CurrentStatus,
		Title:         rec.Title,
		Description:   rec.Description,
		Location:      rec.Location,
		StartDatetime: rec.StartTime,
		EndDatetime:   rec.EndTime,
		CreatedAt:     rec.CreatedAt,
	}
}

// Create handles POST /events: track a card and put it on the calendar.
func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rec, err := h.lifecycle.Create(r.Context(), engine.CreateItem{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		CalendarID:  req.CalendarID,
		CardID:      req.CardID,
		BoardID:     req.BoardID,
		Status:      req.CurrentStatus,
		Start:       req.StartDatetime,
		End:         req.EndDatetime,
	})
	if err != nil {
		respondEngineError(w, r, err)
		return
	}

	logInfo(r, "tracked card "+rec.CardID+" as calendar event "+rec.EventID)
	writeJSON(w, http.StatusCreated, eventResponseFrom(rec))
}

// Get handles GET /events/{cardID}: the stored record plus the live
// calendar view. calendar_event is null when the event has drifted away;
// reconciliation repairs that, not this read path.
func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	cardID := chi.URLParam(r, "cardID")

	rec, view, err := h.lifecycle.Get(r.Context(), cardID)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}

	resp := struct {
		Record        eventResponse         `json:"record"`
		CalendarEvent *calendarViewResponse `json:"calendar_event"`
	}{Record: eventResponseFrom(rec)}
	if view != nil {
		resp.CalendarEvent = &calendarViewResponse{
			EventID:  view.EventID,
			ColourID: view.ColourID,
			Title:    view.Title,
			Start:    view.Start,
			End:      view.End,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Update handles PUT /events/{cardID}.
func (h *EventsHandler) Update(w http.ResponseWriter, r *http.Request) {
	cardID := chi.URLParam(r, "cardID")

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rec, err := h.lifecycle.Update(r.Context(), cardID, engine.UpdateItem{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Start:       req.StartDatetime,
		End:         req.EndDatetime,
	})
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eventResponseFrom(rec))
}

// Delete handles DELETE /events/{cardID}.
func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	cardID := chi.URLParam(r, "cardID")

	rec, err := h.lifecycle.Delete(r.Context(), cardID)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}

	logInfo(r, "deleted tracked card "+cardID)
	writeJSON(w, http.StatusOK, eventResponseFrom(rec))
}
