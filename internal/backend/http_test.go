package backend

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmorrow1204/kitchensync/internal/logging"
	"github.com/jmorrow1204/kitchensync/internal/models"
)

func testLogger() logging.Logger {
	return logging.NewTextLogger(io.Discard, slog.LevelError)
}

func TestPushUpdate_SendsAuthAndDecodesAck(t *testing.T) {
	serverAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/records/dish/d1", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var rec Record
		require.NoError(t, json.NewDecoder(r.Body).Decode(&rec))
		assert.Equal(t, "d1", rec.ID)

		_ = json.NewEncoder(w).Encode(Ack{ServerUpdatedAt: serverAt})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "tok", testLogger())
	ack, err := c.PushUpdate(context.Background(), Record{Type: models.EntityDish, ID: "d1"})
	require.NoError(t, err)
	assert.True(t, ack.ServerUpdatedAt.Equal(serverAt))
}

func TestFetchHousehold_SinceParam(t *testing.T) {
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/households/hh1/records", r.URL.Path)
		assert.Equal(t, since.Format(time.RFC3339Nano), r.URL.Query().Get("since"))
		_ = json.NewEncoder(w).Encode([]Record{{Type: models.EntityDish, ID: "d1", HouseholdID: "hh1"}})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "tok", testLogger())
	recs, err := c.FetchHousehold(context.Background(), "hh1", &since)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "d1", recs[0].ID)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{http.StatusNotFound, ErrNotFound},
		{http.StatusConflict, ErrLockConflict},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusBadGateway, ErrUnavailable},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.code)
		}))
		c := NewHTTPClient(srv.URL, "", testLogger())
		err := c.Ping(context.Background())
		assert.ErrorIs(t, err, tt.want, "status %d", tt.code)
		srv.Close()
	}
}

func TestPing_NetworkErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listens anymore

	c := NewHTTPClient(srv.URL, "", testLogger())
	assert.ErrorIs(t, c.Ping(context.Background()), ErrUnavailable)
}

func TestWriteLock_SendsExpectedForCAS(t *testing.T) {
	expected := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req lockWriteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "alice", req.LockedBy)
		require.NotNil(t, req.Expected)
		assert.True(t, req.Expected.Equal(expected))
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", testLogger())
	at := expected.Add(time.Minute)
	err := c.WriteLock(context.Background(), "mp1", models.LockState{LockedBy: "alice", LockedAt: &at}, &expected)
	assert.ErrorIs(t, err, ErrLockConflict)
}

func TestSubscribe_DeliversEventsAndStops(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n == 1 {
			assert.Empty(t, r.URL.Query().Get("cursor"))
			_ = json.NewEncoder(w).Encode([]Event{
				{Record: Record{Type: models.EntityDish, ID: "d1"}, Cursor: "c1"},
			})
			return
		}
		assert.Equal(t, "c1", r.URL.Query().Get("cursor"))
		// hold the poll open until the client goes away
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", testLogger())

	got := make(chan Record, 4)
	stop, err := c.Subscribe(context.Background(), "hh1", func(r Record) { got <- r })
	require.NoError(t, err)

	select {
	case r := <-got:
		assert.Equal(t, "d1", r.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}

	stop()
	// no deliveries after stop has returned
	select {
	case r := <-got:
		t.Fatalf("unexpected event after stop: %+v", r)
	case <-time.After(100 * time.Millisecond):
	}
}
