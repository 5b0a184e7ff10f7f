package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"gitea.jw6.us/james/boardcal/internal/engine"
	"gitea.jw6.us/james/boardcal/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// respondEngineError maps the engine's error taxonomy onto HTTP statuses:
// validation 400, unknown record 404, duplicate card 409, calendar-side
// failure 502, everything else (store-side, dual failure) 500. The failing
// side is reported in the body so the caller knows where drift lies.
func respondEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *engine.ValidationError
	if errors.As(err, &validationErr) {
		logWarn(r, "rejected request", err)
		writeError(w, http.StatusBadRequest, validationErr.Error())
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no sync record for that card")
		return
	}
	if errors.Is(err, store.ErrDuplicate) {
		writeError(w, http.StatusConflict, "card is already tracked")
		return
	}

	var dualErr *engine.DualFailureError
	if errors.As(err, &dualErr) {
		logError(r, "dual failure", err)
		writeError(w, http.StatusInternalServerError,
			"calendar and database disagree for card "+dualErr.CardID+"; operator attention required")
		return
	}

	var opErr *engine.OpError
	if errors.As(err, &opErr) {
		logError(r, "lifecycle operation failed", err)
		if opErr.Side == engine.SideCalendar {
			writeError(w, http.StatusBadGateway, "calendar service error: "+opErr.Op+" failed")
			return
		}
		writeError(w, http.StatusInternalServerError, string(opErr.Side)+" error: "+opErr.Op+" failed")
		return
	}

	logError(r, "unhandled error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func logError(r *http.Request, message string, err error) {
	if requestID := middleware.GetReqID(r.Context()); requestID != "" {
		log.Printf("[ERROR] RequestID=%s: %s: %v", requestID, message, err)
		return
	}
	log.Printf("[ERROR] %s: %v", message, err)
}

func logWarn(r *http.Request, message string, err error) {
	if requestID := middleware.GetReqID(r.Context()); requestID != "" {
		log.Printf("[WARN] RequestID=%s: %s: %v", requestID, message, err)
		return
	}
	log.Printf("[WARN] %s: %v", message, err)
}

func logInfo(r *http.Request, message string) {
	if requestID := middleware.GetReqID(r.Context()); requestID != "" {
		log.Printf("[INFO] RequestID=%s: %s", requestID, message)
		return
	}
	log.Printf("[INFO] %s", message)
}
