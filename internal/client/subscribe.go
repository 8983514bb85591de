package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultMinBackoff = 500 * time.Millisecond
	DefaultMaxBackoff = 30 * time.Second
)

// PushEvent is one frame read from the push stream.
type PushEvent struct {
	Name string
	Data json.RawMessage
}

// SubscribeOptions tunes the reconnect loop. All fields are optional.
type SubscribeOptions struct {
	MinBackoff time.Duration
	MaxBackoff time.Duration
	// OnConnect runs after each successful connect. The stream has no replay,
	// so a reconnect means events may have been missed.
	OnConnect func(reconnect bool)
	// OnDisconnect runs when the stream breaks, before the backoff wait.
	OnDisconnect func(err error)
}

func (o SubscribeOptions) withDefaults() SubscribeOptions {
	if o.MinBackoff <= 0 {
		o.MinBackoff = DefaultMinBackoff
	}
	if o.MaxBackoff < o.MinBackoff {
		o.MaxBackoff = max(DefaultMaxBackoff, o.MinBackoff)
	}
	return o
}

// Subscribe reads the push stream and calls handle for every event until ctx
// is done. Broken streams are reopened with exponential backoff. It returns
// ctx.Err() when ctx ends, or an *APIError when the server rejects the
// subscription (e.g. a bad token), which retrying would not fix.
func (c *Client) Subscribe(ctx context.Context, handle func(PushEvent), opts SubscribeOptions) error {
	opts = opts.withDefaults()
	backoff := opts.MinBackoff
	connected := false

	for {
		err := c.stream(ctx, func() {
			if opts.OnConnect != nil {
				opts.OnConnect(connected)
			}
			connected = true
			backoff = opts.MinBackoff
		}, handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
			return err
		}
		if opts.OnDisconnect != nil {
			opts.OnDisconnect(err)
		}
		c.logger.Warn("push stream disconnected",
			slog.String("error", fmt.Sprint(err)),
			slog.Duration("retry_in", backoff))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, opts.MaxBackoff)
	}
}

// stream runs one connection until it breaks.
func (c *Client) stream(ctx context.Context, onOpen func(), handle func(PushEvent)) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: "subscribe", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	onOpen()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)

	var name string
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if name != "" || data.Len() > 0 {
				handle(PushEvent{Name: name, Data: json.RawMessage(data.String())})
			}
			name = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
			// heartbeat
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return &TransportError{Op: "subscribe", Err: err}
	}
	return &TransportError{Op: "subscribe", Err: errors.New("stream closed by server")}
}
