package response

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// EventStream writes server-sent events and flushes each one.
type EventStream struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

// NewEventStream sends the event stream headers. It fails without writing
// anything when the writer cannot flush.
func NewEventStream(w http.ResponseWriter) (*EventStream, error) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	// the first flush commits the headers with 200
	rc := http.NewResponseController(w)

	err := rc.Flush()
	if err != nil {
		return nil, fmt.Errorf("flush: %w", err)
	}

	return &EventStream{w: w, rc: rc}, nil
}

// Send writes one event with data encoded as JSON.
func (s *EventStream) Send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}

	_, err = fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload)
	if err != nil {
		return fmt.Errorf("write %s event: %w", event, err)
	}

	err = s.rc.Flush()
	if err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	return nil
}
