package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filecat/internal/api"
	"filecat/internal/filecat"
)

func TestSubscribe_ParsesFrames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": heartbeat\n\n")
		fmt.Fprint(w, "event: fileMoved\ndata: {\"fileId\":3,\"resultText\":\"ok\"}\n\n")
		fmt.Fprint(w, "event: categoryRefreshed\ndata: {\"categories\":[\"Video\"]}\n\n")
		http.NewResponseController(w).Flush()
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)
	c, err := New(srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var mu sync.Mutex
	var got []PushEvent
	err = c.Subscribe(ctx, func(ev PushEvent) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev)
		if len(got) == 2 {
			cancel()
		}
	}, SubscribeOptions{})
	assert.ErrorIs(t, err, context.Canceled)

	require.Len(t, got, 2)
	assert.Equal(t, string(filecat.EventFileMoved), got[0].Name)
	var payload filecat.FileMovedPayload
	require.NoError(t, json.Unmarshal(got[0].Data, &payload))
	assert.Equal(t, int64(3), payload.FileID)
	assert.Equal(t, string(filecat.EventCategoryRefreshed), got[1].Name)
}

func TestSubscribe_ReconnectsWithHook(t *testing.T) {
	var connections atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := connections.Add(1)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "event: jobUpdated\ndata: {\"n\":%d}\n\n", n)
		// Returning closes the stream and forces a reconnect.
	}))
	t.Cleanup(srv.Close)
	c, err := New(srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var reconnects, disconnects, events atomic.Int32
	err = c.Subscribe(ctx, func(PushEvent) {
		if events.Add(1) == 3 {
			cancel()
		}
	}, SubscribeOptions{
		MinBackoff: time.Millisecond,
		MaxBackoff: 5 * time.Millisecond,
		OnConnect: func(reconnect bool) {
			if reconnect {
				reconnects.Add(1)
			}
		},
		OnDisconnect: func(error) { disconnects.Add(1) },
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.GreaterOrEqual(t, connections.Load(), int32(3))
	assert.GreaterOrEqual(t, reconnects.Load(), int32(2))
	assert.GreaterOrEqual(t, disconnects.Load(), int32(2))
}

func TestSubscribe_StopsOnRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		api.WriteError(w, http.StatusUnauthorized, api.CodeUnauthorized, "invalid or expired token")
	}))
	t.Cleanup(srv.Close)
	c, err := New(srv.URL)
	require.NoError(t, err)

	err = c.Subscribe(context.Background(), func(PushEvent) {}, SubscribeOptions{MinBackoff: time.Millisecond})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}
