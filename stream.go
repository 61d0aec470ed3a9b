package courier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// eventStream writes server-sent events.
type eventStream struct {
	w       io.Writer
	flusher http.Flusher
}

func newEventStream(w http.ResponseWriter) (*eventStream, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &eventStream{w: w, flusher: flusher}, true
}

func (s *eventStream) send(event string, v any) error {
	jsonData, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if event != "" {
		if _, err := fmt.Fprintf(s.w, "event: %s\n", event); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", jsonData); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// relay hands snapshots from subscription callbacks to the request goroutine, which
// alone writes the response. Callbacks never block after the request is done.
type relay[T any] struct {
	values chan T
	errs   chan error
	done   <-chan struct{}
}

func newRelay[T any](ctx context.Context) *relay[T] {
	return &relay[T]{
		values: make(chan T, 1),
		errs:   make(chan error, 1),
		done:   ctx.Done(),
	}
}

// push keeps only the newest pending snapshot: each one replaces the previous.
func (r *relay[T]) push(v T) {
	for {
		select {
		case r.values <- v:
			return
		case <-r.done:
			return
		default:
		}
		select {
		case <-r.values:
		default:
		}
	}
}

func (r *relay[T]) fail(err error) {
	select {
	case r.errs <- err:
	default:
	}
}

// run writes every snapshot with write until ctx is done or the subscription fails.
func (r *relay[T]) run(ctx context.Context, out *eventStream, write func(T) any) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-r.errs:
			_ = out.send("error", map[string]string{"error": err.Error()})
			return err
		case v := <-r.values:
			if err := out.send("", write(v)); err != nil {
				return err
			}
		}
	}
}
