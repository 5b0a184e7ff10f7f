package httpapi

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"gitea.jw6.us/james/boardcal/internal/engine"
)

const webhookHandleTimeout = 2 * time.Minute

// WebhooksHandler receives push notifications from the board and calendar
// services. Both providers treat a non-2xx response as delivery failure and
// retry (eventually disabling the hook), so notifications are acknowledged
// with 200 even when the triggered reconciliation fails; the periodic pass
// covers anything missed.
type WebhooksHandler struct {
	notifications *engine.Notifications
	boardSecret   string
	callbackURL   string
}

// NewWebhooksHandler builds the webhook endpoints. boardSecret enables
// signature verification of board notifications when non-empty; callbackURL
// must match the URL registered with the board service, since it is part of
// the signed payload.
func NewWebhooksHandler(notifications *engine.Notifications, boardSecret, callbackURL string) *WebhooksHandler {
	return &WebhooksHandler{
		notifications: notifications,
		boardSecret:   boardSecret,
		callbackURL:   callbackURL,
	}
}

// VerifyBoard handles HEAD /webhooks/board. The board service probes the
// callback URL with HEAD when a webhook is registered and expects 200.
func (h *WebhooksHandler) VerifyBoard(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Board handles POST /webhooks/board.
func (h *WebhooksHandler) Board(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if h.boardSecret != "" && !h.verifyBoardSignature(body, r.Header.Get("X-Trello-Webhook")) {
		logWarn(r, "board webhook rejected", errBadSignature)
		writeError(w, http.StatusUnauthorized, "invalid webhook signature")
		return
	}

	var note engine.BoardNotification
	if err := json.Unmarshal(body, &note); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.notifications.HandleBoard(r.Context(), note); err != nil {
		logError(r, "board notification handling failed", err)
	}
	w.WriteHeader(http.StatusOK)
}

// Calendar handles POST /webhooks/calendar. The push protocol carries
// everything in headers and expects a fast acknowledgement, so the full
// reconciliation it triggers runs in the background detached from the
// request context.
func (h *WebhooksHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	messageNumber, _ := strconv.Atoi(r.Header.Get("X-Goog-Message-Number"))
	note := engine.CalendarNotification{
		ChannelID:     r.Header.Get("X-Goog-Channel-ID"),
		ResourceID:    r.Header.Get("X-Goog-Resource-ID"),
		ResourceState: r.Header.Get("X-Goog-Resource-State"),
		MessageNumber: messageNumber,
	}
	if note.ChannelID == "" {
		writeError(w, http.StatusBadRequest, "missing X-Goog-Channel-ID header")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), webhookHandleTimeout)
		defer cancel()
		if err := h.notifications.HandleCalendar(ctx, note); err != nil {
			logError(r, "calendar notification handling failed", err)
		}
	}()

	w.WriteHeader(http.StatusOK)
}

// verifyBoardSignature checks the HMAC-SHA1 digest the board service sends
// in X-Trello-Webhook: base64(HMAC-SHA1(body + callbackURL, secret)).
func (h *WebhooksHandler) verifyBoardSignature(body []byte, header string) bool {
	if header == "" {
		return false
	}
	mac := hmac.New(sha1.New, []byte(h.boardSecret))
	mac.Write(body)
	mac.Write([]byte(h.callbackURL))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}

var errBadSignature = errors.New("signature mismatch")
