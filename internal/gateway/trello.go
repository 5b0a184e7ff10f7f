package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// APIError is a non-2xx response from the board service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("board api: http %d: %s", e.StatusCode, e.Message)
}

// Trello implements BoardGateway and BoardWebhookGateway against the
// Trello REST API. Requests authenticate with key/token query parameters
// and retry transient failures with capped exponential backoff.
type Trello struct {
	baseURL    string
	key        string
	token      string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// NewTrello builds a board gateway. A nil httpClient gets a 15s timeout.
func NewTrello(key, token string, httpClient *http.Client) *Trello {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Trello{
		baseURL:    "https://api.trello.com/1",
		key:        key,
		token:      token,
		httpClient: httpClient,
		maxRetries: 3,
		baseDelay:  100 * time.Millisecond,
		maxDelay:   2 * time.Second,
	}
}

type trelloCard struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Desc    string `json:"desc"`
	IDList  string `json:"idList"`
	IDBoard string `json:"idBoard"`
}

type trelloList struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Closed  bool   `json:"closed"`
	IDBoard string `json:"idBoard"`
}

type trelloBoard struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Closed bool   `json:"closed"`
}

type trelloWebhook struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	IDModel     string `json:"idModel"`
	CallbackURL string `json:"callbackURL"`
	Active      bool   `json:"active"`
}

func (t *Trello) GetCard(ctx context.Context, cardID string) (*Card, error) {
	q := url.Values{}
	q.Set("fields", "name,desc,idList,idBoard")
	var out trelloCard
	if err := t.doJSON(ctx, http.MethodGet, "/cards/"+url.PathEscape(cardID), q, nil, &out); err != nil {
		return nil, err
	}
	return cardFrom(out), nil
}

func (t *Trello) MoveCard(ctx context.Context, cardID, newListID string) (*Card, error) {
	q := url.Values{}
	q.Set("idList", newListID)
	var out trelloCard
	if err := t.doJSON(ctx, http.MethodPut, "/cards/"+url.PathEscape(cardID), q, nil, &out); err != nil {
		return nil, err
	}
	return cardFrom(out), nil
}

func (t *Trello) ListBoards(ctx context.Context) ([]Board, error) {
	q := url.Values{}
	q.Set("fields", "name,closed")
	var out []trelloBoard
	if err := t.doJSON(ctx, http.MethodGet, "/members/me/boards", q, nil, &out); err != nil {
		return nil, err
	}
	boards := make([]Board, 0, len(out))
	for _, b := range out {
		boards = append(boards, Board{ID: b.ID, Name: b.Name, Closed: b.Closed})
	}
	return boards, nil
}

func (t *Trello) ListLists(ctx context.Context, boardID string) ([]BoardList, error) {
	var out []trelloList
	if err := t.doJSON(ctx, http.MethodGet, "/boards/"+url.PathEscape(boardID)+"/lists", nil, nil, &out); err != nil {
		return nil, err
	}
	lists := make([]BoardList, 0, len(out))
	for _, l := range out {
		lists = append(lists, BoardList{ID: l.ID, Name: l.Name, Closed: l.Closed, BoardID: boardID})
	}
	return lists, nil
}

func (t *Trello) ListCardsInList(ctx context.Context, listID string) ([]Card, error) {
	q := url.Values{}
	q.Set("fields", "name,desc,idList,idBoard")
	var out []trelloCard
	if err := t.doJSON(ctx, http.MethodGet, "/lists/"+url.PathEscape(listID)+"/cards", q, nil, &out); err != nil {
		return nil, err
	}
	cards := make([]Card, 0, len(out))
	for _, c := range out {
		cards = append(cards, *cardFrom(c))
	}
	return cards, nil
}

// Subscribe registers a webhook on the model (card or board) so Trello
// pushes change notifications to callbackURL. Trello verifies the callback
// with a HEAD request before accepting the registration.
func (t *Trello) Subscribe(ctx context.Context, description, callbackURL, modelID string) (*Subscription, error) {
	body := map[string]string{
		"description": description,
		"callbackURL": callbackURL,
		"idModel":     modelID,
	}
	var out trelloWebhook
	if err := t.doJSON(ctx, http.MethodPost, "/tokens/"+url.PathEscape(t.token)+"/webhooks/", nil, body, &out); err != nil {
		return nil, err
	}
	return &Subscription{
		ID:          out.ID,
		Description: out.Description,
		ModelID:     out.IDModel,
		CallbackURL: out.CallbackURL,
		Active:      out.Active,
	}, nil
}

func (t *Trello) Unsubscribe(ctx context.Context, subscriptionID string) error {
	return t.doJSON(ctx, http.MethodDelete, "/webhooks/"+url.PathEscape(subscriptionID), nil, nil, nil)
}

func (t *Trello) doJSON(ctx context.Context, method, requestPath string, query url.Values, body, out any) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("key", t.key)
	query.Set("token", t.token)

	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}

	requestURL := t.baseURL + requestPath + "?" + query.Encode()
	for attempt := 0; ; attempt++ {
		var bodyReader io.Reader
		if bodyBytes != nil {
			bodyReader = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json; charset=utf-8")
		}

		resp, err := t.httpClient.Do(req)
		if err != nil {
			if attempt < t.maxRetries {
				if waitErr := waitWithContext(ctx, t.retryDelay(attempt+1, "")); waitErr != nil {
					return waitErr
				}
				continue
			}
			return err
		}
		payload, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return readErr
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			if out == nil || len(payload) == 0 {
				return nil
			}
			return json.Unmarshal(payload, out)
		}

		if (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500) && attempt < t.maxRetries {
			if waitErr := waitWithContext(ctx, t.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return waitErr
			}
			continue
		}

		if resp.StatusCode == http.StatusNotFound {
			return ErrNotFound
		}
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(payload)),
		}
	}
}

func (t *Trello) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	if retryAfter := parseRetryAfter(retryAfterHeader); retryAfter > 0 {
		if retryAfter > t.maxDelay {
			return t.maxDelay
		}
		return retryAfter
	}
	delay := t.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= t.maxDelay {
			return t.maxDelay
		}
	}
	if delay > t.maxDelay {
		return t.maxDelay
	}
	return delay
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if ts, err := time.Parse(time.RFC1123, header); err == nil {
		if delta := time.Until(ts); delta > 0 {
			return delta
		}
	}
	return 0
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func cardFrom(c trelloCard) *Card {
	return &Card{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Desc,
		ListID:      c.IDList,
		BoardID:     c.IDBoard,
	}
}
