package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filecat/internal/client"
	"filecat/internal/filecat"
)

func pushEvent(t *testing.T, name filecat.EventName, payload any) client.PushEvent {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return client.PushEvent{Name: string(name), Data: data}
}

func TestActionFromPush(t *testing.T) {
	job := &filecat.BatchJob{ID: "j1", Kind: filecat.JobMove, Status: filecat.StatusSucceeded}
	tests := []struct {
		name  string
		event client.PushEvent
		want  Action
	}{
		{
			name:  "file moved",
			event: pushEvent(t, filecat.EventFileMoved, filecat.FileMovedPayload{FileID: 4, ResultText: "Moved a to Video"}),
			want:  FileMoved{FileID: 4, ResultText: "Moved a to Video"},
		},
		{
			name:  "job completed",
			event: pushEvent(t, filecat.EventJobCompleted, filecat.JobCompletedPayload{ResultText: "done", Result: job}),
			want:  JobCompleted{ResultText: "done", Result: job},
		},
		{
			name:  "categories",
			event: pushEvent(t, filecat.EventCategoryRefreshed, filecat.CategoryRefreshedPayload{Categories: []string{"Video"}}),
			want:  CategoriesRefreshed{Categories: []string{"Video"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ActionFromPush(tt.event)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("unknown event", func(t *testing.T) {
		_, err := ActionFromPush(client.PushEvent{Name: "somethingElse", Data: json.RawMessage(`{}`)})
		assert.Error(t, err)
	})

	t.Run("job update without job", func(t *testing.T) {
		_, err := ActionFromPush(client.PushEvent{Name: string(filecat.EventJobUpdated), Data: json.RawMessage(`{}`)})
		assert.Error(t, err)
	})
}

func TestActionFromPush_CoversEveryEvent(t *testing.T) {
	for _, name := range []filecat.EventName{
		filecat.EventFileMoved,
		filecat.EventJobUpdated,
		filecat.EventJobCompleted,
		filecat.EventCategoryRefreshed,
	} {
		assert.Contains(t, pushActions, name)
	}
}

// scriptedSubscriber replays events and connection changes, then waits for
// ctx like a live stream.
type scriptedSubscriber struct {
	events []client.PushEvent
}

func (s scriptedSubscriber) Subscribe(ctx context.Context, handle func(client.PushEvent), opts client.SubscribeOptions) error {
	opts.OnConnect(false)
	for _, ev := range s.events {
		handle(ev)
	}
	opts.OnDisconnect(errors.New("EOF"))
	opts.OnConnect(true)
	<-ctx.Done()
	return ctx.Err()
}

func TestRunPush(t *testing.T) {
	api := newFakeAPI(record(1, "a.mkv", "Video"))
	h := newStoreHarness(t, api)

	sub := scriptedSubscriber{events: []client.PushEvent{
		pushEvent(t, filecat.EventCategoryRefreshed, filecat.CategoryRefreshedPayload{Categories: []string{"Video"}}),
		{Name: "bogus", Data: json.RawMessage(`{}`)},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.store.RunPush(ctx, sub)

	s := h.waitFor(t, "reconnect reload", func(s State) bool {
		return s.Connection == Connected && !s.Loading.Files && s.Files != nil
	})
	assert.Equal(t, []string{"Video"}, s.Categories)
	assert.Equal(t, 1, api.calls())
}

func TestStore_DispatchFromSubscriberDoesNotDeadlock(t *testing.T) {
	s := New(InitialState(), nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Subscribe(func(_ State, a Action) {
		if _, ok := a.(RefreshFiles); ok {
			s.Dispatch(TrainModel{})
		}
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Dispatch(RefreshFiles{})
	assert.Eventually(t, func() bool { return len(s.State().Console) == 2 }, 5*time.Second, time.Millisecond)
}
