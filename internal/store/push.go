package store

import (
	"context"
	"encoding/json"
	"fmt"

	"filecat/internal/client"
	"filecat/internal/filecat"
)

// pushActions maps every push event name to the action it becomes.
var pushActions = map[filecat.EventName]func(data json.RawMessage) (Action, error){
	filecat.EventFileMoved: func(data json.RawMessage) (Action, error) {
		var p filecat.FileMovedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return FileMoved{FileID: p.FileID, ResultText: p.ResultText}, nil
	},
	filecat.EventJobUpdated: func(data json.RawMessage) (Action, error) {
		var p filecat.JobUpdatedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		if p.Job == nil {
			return nil, fmt.Errorf("missing job")
		}
		return JobUpdated{Job: p.Job}, nil
	},
	filecat.EventJobCompleted: func(data json.RawMessage) (Action, error) {
		var p filecat.JobCompletedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		if p.Result == nil {
			return nil, fmt.Errorf("missing result")
		}
		return JobCompleted{ResultText: p.ResultText, Result: p.Result}, nil
	},
	filecat.EventCategoryRefreshed: func(data json.RawMessage) (Action, error) {
		var p filecat.CategoryRefreshedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return CategoriesRefreshed{Categories: p.Categories}, nil
	},
}

// ActionFromPush converts a push frame into a store action.
func ActionFromPush(ev client.PushEvent) (Action, error) {
	build, ok := pushActions[filecat.EventName(ev.Name)]
	if !ok {
		return nil, fmt.Errorf("unknown push event %q", ev.Name)
	}
	a, err := build(ev.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s event: %w", ev.Name, err)
	}
	return a, nil
}

// Subscriber is the push side of the REST client.
type Subscriber interface {
	Subscribe(ctx context.Context, handle func(client.PushEvent), opts client.SubscribeOptions) error
}

// RunPush feeds the push stream into s until ctx is done. Connection changes
// become PushConnected and PushDisconnected actions.
func (s *Store) RunPush(ctx context.Context, sub Subscriber) error {
	return sub.Subscribe(ctx, func(ev client.PushEvent) {
		a, err := ActionFromPush(ev)
		if err != nil {
			s.logger.Warn("ignoring push event", "event", ev.Name, "error", err)
			return
		}
		s.Dispatch(a)
	}, client.SubscribeOptions{
		OnConnect:    func(reconnect bool) { s.Dispatch(PushConnected{Reconnect: reconnect}) },
		OnDisconnect: func(err error) { s.Dispatch(PushDisconnected{Err: err}) },
	})
}
