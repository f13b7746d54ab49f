package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/robolink/robosock/internal/event"
	"github.com/robolink/robosock/internal/logging"
)

// Defaults used when the corresponding option is not given.
const (
	DefaultQueueSize       = 64
	DefaultMaxDatagramSize = 64 * 1024
)

// Source is where the relay reads datagrams from. *robosock.Socket
// satisfies it.
type Source interface {
	RecvFrom(ctx context.Context, buf []byte) (int, *net.UnixAddr, error)
	Path() string
}

// Stats counts what a relay has done so far.
type Stats struct {
	Received  int64 // queued for delivery
	Delivered int64
	Failed    int64
	Dropped   int64 // read during shutdown with the queue full
}

// Relay moves datagrams from a Source to a Sink. A receiver goroutine
// reads datagrams into a bounded queue and a forwarder goroutine delivers
// them, so a slow sink applies backpressure to the socket instead of
// blocking it mid-read.
type Relay struct {
	src    Source
	sink   Sink
	bus    *event.Bus
	logger *logging.Logger

	queueSize   int
	maxDatagram int

	received  atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// Option configures a Relay.
type Option func(*Relay)

// WithLogger sets the relay's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Relay) {
		r.logger = logger.WithComponent("relay")
	}
}

// WithBus publishes relay.datagram and relay.shutdown events to bus.
func WithBus(bus *event.Bus) Option {
	return func(r *Relay) {
		r.bus = bus
	}
}

// WithQueueSize bounds the messages buffered between receiver and forwarder.
func WithQueueSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.queueSize = n
		}
	}
}

// WithMaxDatagramSize sets the receive buffer size. Longer datagrams are
// truncated by the kernel.
func WithMaxDatagramSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.maxDatagram = n
		}
	}
}

// New creates a Relay from src to sink.
func New(src Source, sink Sink, opts ...Option) *Relay {
	r := &Relay{
		src:         src,
		sink:        sink,
		logger:      logging.NopLogger(),
		queueSize:   DefaultQueueSize,
		maxDatagram: DefaultMaxDatagramSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithSocket(src.Path())
	return r
}

// Run relays until ctx is cancelled or the source fails. Cancellation is
// a graceful shutdown: the receiver stops, every queued message is still
// delivered, and nil is returned. A source that is released while Run is
// reading also ends the relay gracefully.
func (r *Relay) Run(ctx context.Context) error {
	queue := make(chan Message, r.queueSize)

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		defer close(queue)
		return r.receive(ctx, queue)
	})
	p.Go(func(ctx context.Context) error {
		// Queued messages are delivered even after cancellation.
		return r.forward(context.WithoutCancel(ctx), queue)
	})
	err := p.Wait()

	stats := r.Stats()
	r.logger.Info("relay stopped",
		"received", stats.Received,
		"delivered", stats.Delivered,
		"failed", stats.Failed,
		"dropped", stats.Dropped,
	)
	r.bus.Publish(event.NewRelayShutdownEvent(r.src.Path(), int(stats.Delivered), int(stats.Failed)))
	return err
}

func (r *Relay) receive(ctx context.Context, queue chan<- Message) error {
	buf := make([]byte, r.maxDatagram)
	for {
		n, from, err := r.src.RecvFrom(ctx, buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("receive datagram: %w", err)
		}

		msg := Message{
			ID:         uuid.New(),
			Payload:    append([]byte(nil), buf[:n]...),
			ReceivedAt: time.Now(),
		}
		if from != nil {
			msg.Sender = from.Name
		}
		r.logger.Debug("datagram received", "id", msg.ID.String(), "sender", msg.Sender, "size", n)
		r.bus.Publish(event.NewDatagramEvent(r.src.Path(), msg.Sender, n))

		select {
		case queue <- msg:
			r.received.Add(1)
		case <-ctx.Done():
			r.dropped.Add(1)
			r.logger.Warn("dropping message received during shutdown", "id", msg.ID.String())
			return nil
		}
	}
}

func (r *Relay) forward(ctx context.Context, queue <-chan Message) error {
	for msg := range queue {
		if err := r.sink.Deliver(ctx, msg); err != nil {
			r.failed.Add(1)
			r.logger.Warn("failed to deliver message", "id", msg.ID.String(), "error", err)
			continue
		}
		r.delivered.Add(1)
	}
	return nil
}

// Stats returns a snapshot of the relay's counters.
func (r *Relay) Stats() Stats {
	return Stats{
		Received:  r.received.Load(),
		Delivered: r.delivered.Load(),
		Failed:    r.failed.Load(),
		Dropped:   r.dropped.Load(),
	}
}
