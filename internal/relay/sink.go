package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/robolink/robosock/internal/logging"
)

// Message is one datagram received by the relay.
type Message struct {
	ID         uuid.UUID
	Sender     string // empty for unbound senders
	Payload    []byte
	ReceivedAt time.Time
}

// Sink receives messages from the relay's forwarder, one at a time and in
// arrival order. A delivery error is logged and counted; it does not stop
// the relay.
type Sink interface {
	Deliver(ctx context.Context, msg Message) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, msg Message) error

// Deliver calls f.
func (f SinkFunc) Deliver(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// LogSink logs every message at INFO.
type LogSink struct {
	logger *logging.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *logging.Logger) *LogSink {
	return &LogSink{logger: logger.WithComponent("sink")}
}

// Deliver implements Sink.
func (s *LogSink) Deliver(_ context.Context, msg Message) error {
	args := []any{
		"id", msg.ID.String(),
		"sender", msg.Sender,
		"size", len(msg.Payload),
	}
	if utf8.Valid(msg.Payload) {
		args = append(args, "payload", string(msg.Payload))
	} else {
		args = append(args, "payload_hex", fmt.Sprintf("%x", msg.Payload))
	}
	s.logger.Info("got message", args...)
	return nil
}

// WriterSink writes each payload to w followed by a newline.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a WriterSink.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Deliver implements Sink.
func (s *WriterSink) Deliver(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(msg.Payload); err != nil {
		return err
	}
	_, err := io.WriteString(s.w, "\n")
	return err
}

// MultiSink delivers to every sink in order and joins their errors.
type MultiSink []Sink

// Deliver implements Sink.
func (m MultiSink) Deliver(ctx context.Context, msg Message) error {
	var errs []error
	for _, s := range m {
		if err := s.Deliver(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
