package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/jmorrow1204/kitchensync/internal/common"
	"github.com/jmorrow1204/kitchensync/internal/logging"
	"github.com/jmorrow1204/kitchensync/internal/models"
)

const defaultCallTimeout = 10 * time.Second

// HTTPClient implements Client over the backend's JSON API.
type HTTPClient struct {
	baseURL     string
	accessToken string
	hc          *http.Client
	timeout     time.Duration
	log         logging.Logger

	mu   sync.Mutex
	subs map[string]context.CancelFunc // householdID -> stop
}

func NewHTTPClient(baseURL, accessToken string, log logging.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:     baseURL,
		accessToken: accessToken,
		hc:          &http.Client{},
		timeout:     defaultCallTimeout,
		log:         log,
		subs:        make(map[string]context.CancelFunc),
	}
}

// do performs one JSON request with the client's call timeout and decodes a
// 2xx response body into out (when out is non-nil).
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.accessToken != "" {
		req.Header.Set(common.AccessTokenHeaderName, "Bearer "+c.accessToken)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := mapStatus(resp.StatusCode); err != nil {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: %s %s: %s", err, method, path, string(b))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response for %s %s: %w", method, path, err)
	}
	return nil
}

func mapStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusConflict:
		return ErrLockConflict
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code >= 500:
		return ErrUnavailable
	default:
		return fmt.Errorf("unexpected status %d", code)
	}
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/ping", nil, nil)
}

func (c *HTTPClient) FetchHousehold(ctx context.Context, householdID string, since *time.Time) ([]Record, error) {
	path := "/api/households/" + url.PathEscape(householdID) + "/records"
	if since != nil {
		path += "?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339Nano))
	}
	var records []Record
	if err := c.do(ctx, http.MethodGet, path, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *HTTPClient) PushCreate(ctx context.Context, rec Record) (*Ack, error) {
	ack := &Ack{}
	if err := c.do(ctx, http.MethodPost, "/api/records", rec, ack); err != nil {
		return nil, err
	}
	return ack, nil
}

func (c *HTTPClient) PushUpdate(ctx context.Context, rec Record) (*Ack, error) {
	path := "/api/records/" + url.PathEscape(string(rec.Type)) + "/" + url.PathEscape(rec.ID)
	ack := &Ack{}
	if err := c.do(ctx, http.MethodPut, path, rec, ack); err != nil {
		return nil, err
	}
	return ack, nil
}

func (c *HTTPClient) PushDelete(ctx context.Context, t models.EntityType, id string) (*Ack, error) {
	path := "/api/records/" + url.PathEscape(string(t)) + "/" + url.PathEscape(id)
	ack := &Ack{}
	if err := c.do(ctx, http.MethodDelete, path, nil, ack); err != nil {
		return nil, err
	}
	return ack, nil
}

func (c *HTTPClient) ReadLock(ctx context.Context, planID string) (*models.LockState, error) {
	lock := &models.LockState{}
	path := "/api/mealplans/" + url.PathEscape(planID) + "/lock"
	if err := c.do(ctx, http.MethodGet, path, nil, lock); err != nil {
		return nil, err
	}
	return lock, nil
}

type lockWriteRequest struct {
	LockedBy string     `json:"locked_by,omitempty"`
	LockedAt *time.Time `json:"locked_at,omitempty"`
	Expected *time.Time `json:"expected_locked_at,omitempty"`
}

func (c *HTTPClient) WriteLock(ctx context.Context, planID string, lock models.LockState, expected *time.Time) error {
	path := "/api/mealplans/" + url.PathEscape(planID) + "/lock"
	req := lockWriteRequest{LockedBy: lock.LockedBy, LockedAt: lock.LockedAt, Expected: expected}
	return c.do(ctx, http.MethodPut, path, req, nil)
}

// Subscribe long-polls the household's event feed in a goroutine. Stopping
// is synchronous: once stop returns, onChange is not called again.
func (c *HTTPClient) Subscribe(ctx context.Context, householdID string, onChange func(Record)) (func(), error) {
	c.mu.Lock()
	if prev, ok := c.subs[householdID]; ok {
		prev()
	}
	ctx, cancel := context.WithCancel(ctx)
	c.subs[householdID] = cancel
	c.mu.Unlock()

	done := make(chan struct{})
	go c.pollEvents(ctx, householdID, onChange, done)

	stop := func() {
		cancel()
		<-done
		c.mu.Lock()
		delete(c.subs, householdID)
		c.mu.Unlock()
	}
	return stop, nil
}

func (c *HTTPClient) pollEvents(ctx context.Context, householdID string, onChange func(Record), done chan<- struct{}) {
	defer close(done)

	cursor := ""
	for {
		if ctx.Err() != nil {
			return
		}

		path := "/api/households/" + url.PathEscape(householdID) + "/events"
		if cursor != "" {
			path += "?cursor=" + url.QueryEscape(cursor)
		}

		var events []Event
		err := c.do(ctx, http.MethodGet, path, nil, &events)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Debug(ctx, "event poll failed, backing off", "household", householdID, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(3 * time.Second):
			}
			continue
		}

		for _, ev := range events {
			if ctx.Err() != nil {
				return
			}
			onChange(ev.Record)
			cursor = ev.Cursor
		}
	}
}

func (c *HTTPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cancel := range c.subs {
		cancel()
	}
	c.subs = make(map[string]context.CancelFunc)
	c.hc.CloseIdleConnections()
	return nil
}
