package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/tidwall/gjson"

	"github.com/opencode-ai/workflow/internal/logging"
	"github.com/opencode-ai/workflow/pkg/types"
)

// ErrStream is returned when a stream reports an error or ends early.
var ErrStream = errors.New("stream error")

// EventType classifies a stream event.
type EventType int

const (
	EventUnknown EventType = iota
	EventDelta
	EventStop
	EventError
)

// Event is one decoded stream event.
type Event struct {
	Type EventType
	// Text is the delta text of EventDelta.
	Text string
	// Message describes an EventError.
	Message string
}

// EventSource yields stream events in order. Next returns io.EOF once the
// underlying stream is exhausted.
type EventSource interface {
	Next() (Event, error)
}

// messageEvents adapts an SDK message stream to EventSource. Only text
// deltas and message_stop are surfaced; an in-band error event becomes
// EventError.
type messageEvents struct {
	stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
}

func newMessageEvents(stream *ssestream.Stream[anthropic.MessageStreamEventUnion]) *messageEvents {
	return &messageEvents{stream: stream}
}

func (s *messageEvents) Next() (Event, error) {
	for s.stream.Next() {
		switch ev := s.stream.Current().AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok {
				return Event{Type: EventDelta, Text: delta.Text}, nil
			}
		case anthropic.MessageStopEvent:
			return Event{Type: EventStop}, nil
		}
	}

	err := s.stream.Err()
	if err == nil {
		return Event{}, io.EOF
	}
	var sdkErr *anthropic.Error
	if errors.As(err, &sdkErr) {
		return Event{}, asAPIError(err)
	}
	return Event{Type: EventError, Message: streamErrorMessage(err)}, nil
}

// streamErrorMessage extracts "type: message" from an in-band error payload.
func streamErrorMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, "{"); i >= 0 {
		payload := strings.TrimSpace(msg[i:])
		if gjson.Valid(payload) {
			text := gjson.Get(payload, "error.message").String()
			if t := gjson.Get(payload, "error.type").String(); t != "" {
				return t + ": " + text
			}
			if text != "" {
				return text
			}
		}
	}
	return msg
}

// StreamState is the state of a Receiver.
type StreamState int

const (
	StateIdle StreamState = iota
	StateReceiving
	StateDone
	StateFailed
)

func (s StreamState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReceiving:
		return "receiving"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Receiver consumes events in order and writes deltas to a sink.
type Receiver struct {
	sink    io.Writer
	state   StreamState
	written int64
}

// NewReceiver creates a Receiver in StateIdle.
func NewReceiver(sink io.Writer) *Receiver {
	return &Receiver{sink: sink}
}

// State returns the current state.
func (r *Receiver) State() StreamState {
	return r.state
}

// Written returns the number of delta bytes written to the sink.
func (r *Receiver) Written() int64 {
	return r.written
}

// Handle applies one event. It returns an error once the receiver fails and
// ignores events after a terminal state.
func (r *Receiver) Handle(ev Event) error {
	if r.state == StateDone || r.state == StateFailed {
		return nil
	}
	switch ev.Type {
	case EventDelta:
		r.state = StateReceiving
		n, err := io.WriteString(r.sink, ev.Text)
		r.written += int64(n)
		if err != nil {
			r.state = StateFailed
			return fmt.Errorf("failed to write output: %w", err)
		}
	case EventStop:
		r.state = StateDone
	case EventError:
		r.state = StateFailed
		return fmt.Errorf("%w: %s", ErrStream, ev.Message)
	}
	return nil
}

// Fail moves the receiver to StateFailed.
func (r *Receiver) Fail() {
	r.state = StateFailed
}

// Consume drives a Receiver from src until the stream stops or fails. API
// errors raised before the stream opens are returned as *APIError; every
// other failure wraps ErrStream.
func Consume(src EventSource, r *Receiver) error {
	for {
		ev, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			r.Fail()
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return err
			}
			return fmt.Errorf("%w: %w", ErrStream, err)
		}
		if err := r.Handle(ev); err != nil {
			return err
		}
		if r.State() == StateDone {
			return nil
		}
	}
	r.Fail()
	return fmt.Errorf("%w: stream ended before message_stop", ErrStream)
}

// Stream performs a streaming call, writing text to sink as it arrives.
// Text already written stays in sink when the stream fails.
func (c *Client) Stream(ctx context.Context, req *types.Request, sink io.Writer) error {
	params, err := newMessageParams(req)
	if err != nil {
		return err
	}

	logging.Debug().Str("model", req.Model).Int("blocks", blockCount(req)).Msg("Opening completion stream")

	stream := c.messages().NewStreaming(ctx, params)
	defer stream.Close()

	recv := NewReceiver(sink)
	err = Consume(newMessageEvents(stream), recv)
	logging.Info().
		Str("state", recv.State().String()).
		Int64("bytes", recv.Written()).
		Msg("Stream finished")
	return err
}
