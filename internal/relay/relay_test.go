package relay

import (
	"bytes"
	"context"
	"errors"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/robolink/robosock/internal/event"
	"github.com/robolink/robosock/internal/logging"
	"github.com/robolink/robosock/internal/robosock"
)

// chanSource feeds datagrams from a channel. Closing the channel makes
// RecvFrom fail with err.
type chanSource struct {
	msgs chan []byte
	err  error
}

func newChanSource(err error) *chanSource {
	return &chanSource{msgs: make(chan []byte, 16), err: err}
}

func (s *chanSource) RecvFrom(ctx context.Context, buf []byte) (int, *net.UnixAddr, error) {
	select {
	case m, ok := <-s.msgs:
		if !ok {
			return 0, nil, s.err
		}
		return copy(buf, m), &net.UnixAddr{Name: "/tmp/peer.sock", Net: "unixgram"}, nil
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (s *chanSource) Path() string { return "/tmp/relay.sock" }

type collectSink struct {
	mu   sync.Mutex
	msgs []Message
}

func (c *collectSink) Deliver(_ context.Context, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *collectSink) payloads() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.msgs))
	for i, m := range c.msgs {
		out[i] = string(m.Payload)
	}
	return out
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func startRelay(t *testing.T, r *Relay) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, errc
}

func TestRelay_DeliversInOrder(t *testing.T) {
	src := newChanSource(nil)
	sink := &collectSink{}
	bus := event.NewBus()

	var shutdown []event.RelayShutdownEvent
	var mu sync.Mutex
	bus.Subscribe(event.TypeRelayShutdown, func(e event.Event) {
		mu.Lock()
		shutdown = append(shutdown, e.(event.RelayShutdownEvent))
		mu.Unlock()
	})

	cancel, errc := startRelay(t, New(src, sink, WithBus(bus)))

	for _, p := range []string{"one", "two", "three"} {
		src.msgs <- []byte(p)
	}
	waitUntil(t, "three deliveries", func() bool { return len(sink.payloads()) == 3 })

	cancel()
	if err := <-errc; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := strings.Join(sink.payloads(), ","); got != "one,two,three" {
		t.Errorf("payloads = %s", got)
	}
	for _, m := range sink.msgs {
		if m.Sender != "/tmp/peer.sock" || m.ReceivedAt.IsZero() || m.ID.String() == "" {
			t.Errorf("message metadata not filled: %+v", m)
		}
	}
	if sink.msgs[0].ID == sink.msgs[1].ID {
		t.Error("message IDs should be unique")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(shutdown) != 1 || shutdown[0].Delivered != 3 || shutdown[0].Failed != 0 {
		t.Errorf("shutdown events = %+v", shutdown)
	}
}

func TestRelay_DrainsQueueOnShutdown(t *testing.T) {
	src := newChanSource(nil)
	release := make(chan struct{})
	sink := &collectSink{}
	blocking := SinkFunc(func(ctx context.Context, msg Message) error {
		<-release
		return sink.Deliver(ctx, msg)
	})

	r := New(src, blocking, WithQueueSize(4))
	cancel, errc := startRelay(t, r)

	for _, p := range []string{"a", "b", "c"} {
		src.msgs <- []byte(p)
	}
	waitUntil(t, "three receptions", func() bool { return r.Stats().Received == 3 })

	cancel()
	close(release)

	if err := <-errc; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := strings.Join(sink.payloads(), ","); got != "a,b,c" {
		t.Errorf("payloads = %s, want a,b,c", got)
	}
	if s := r.Stats(); s.Delivered != 3 || s.Dropped != 0 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestRelay_SinkErrorsAreCounted(t *testing.T) {
	src := newChanSource(nil)
	var calls int
	var mu sync.Mutex
	sink := SinkFunc(func(context.Context, Message) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls%2 == 1 {
			return errors.New("sink unavailable")
		}
		return nil
	})

	r := New(src, sink)
	cancel, errc := startRelay(t, r)

	for i := 0; i < 4; i++ {
		src.msgs <- []byte("x")
	}
	waitUntil(t, "four delivery attempts", func() bool {
		s := r.Stats()
		return s.Delivered+s.Failed == 4
	})
	cancel()
	if err := <-errc; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if s := r.Stats(); s.Delivered != 2 || s.Failed != 2 {
		t.Errorf("Stats() = %+v, want 2 delivered and 2 failed", s)
	}
}

func TestRelay_SourceErrors(t *testing.T) {
	tests := []struct {
		name    string
		srcErr  error
		wantErr bool
	}{
		{name: "released socket ends gracefully", srcErr: net.ErrClosed},
		{name: "other failures are returned", srcErr: errors.New("boom"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newChanSource(tt.srcErr)
			sink := &collectSink{}
			src.msgs <- []byte("before")
			close(src.msgs)

			err := New(src, sink).Run(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Run() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, tt.srcErr) {
				t.Errorf("Run() error = %v, want it to wrap %v", err, tt.srcErr)
			}
			if got := sink.payloads(); len(got) != 1 || got[0] != "before" {
				t.Errorf("queued message was not delivered: %v", got)
			}
		})
	}
}

func TestRelay_ManagedSocket(t *testing.T) {
	dir := t.TempDir()
	reg := robosock.NewRegistry()
	bus := event.NewBus()

	var datagrams []event.DatagramEvent
	var mu sync.Mutex
	bus.Subscribe(event.TypeDatagram, func(e event.Event) {
		mu.Lock()
		datagrams = append(datagrams, e.(event.DatagramEvent))
		mu.Unlock()
	})

	server, err := robosock.New(context.Background(), reg, filepath.Join(dir, "server.sock"))
	if err != nil {
		t.Fatal(err)
	}
	defer server.Close()
	client, err := robosock.New(context.Background(), reg, filepath.Join(dir, "client.sock"))
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	sink := &collectSink{}
	cancel, errc := startRelay(t, New(server, sink, WithBus(bus)))

	if _, err := client.SendTo([]byte("hello robot"), server.Path()); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, "delivery", func() bool { return len(sink.payloads()) == 1 })

	cancel()
	if err := <-errc; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if sink.msgs[0].Sender != client.Path() {
		t.Errorf("Sender = %q, want %q", sink.msgs[0].Sender, client.Path())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(datagrams) != 1 || datagrams[0].Size != len("hello robot") {
		t.Errorf("datagram events = %+v", datagrams)
	}
}

func TestLogSink(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    string
	}{
		{name: "text", payload: []byte("hi"), want: `"payload":"hi"`},
		{name: "binary", payload: []byte{0xff, 0x00}, want: `"payload_hex":"ff00"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			sink := NewLogSink(logging.NewWriterLogger(&buf, logging.LevelInfo, logging.FormatJSON))
			if err := sink.Deliver(context.Background(), Message{Payload: tt.payload}); err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(buf.String(), tt.want) || !strings.Contains(buf.String(), "got message") {
				t.Errorf("log = %s, want it to contain %s", buf.String(), tt.want)
			}
		})
	}
}

func TestWriterSinkAndMultiSink(t *testing.T) {
	var buf bytes.Buffer
	failing := SinkFunc(func(context.Context, Message) error { return errors.New("nope") })
	sink := MultiSink{NewWriterSink(&buf), failing}

	err := sink.Deliver(context.Background(), Message{Payload: []byte("line")})
	if err == nil || !strings.Contains(err.Error(), "nope") {
		t.Errorf("Deliver() error = %v, want the failing sink's error", err)
	}
	if buf.String() != "line\n" {
		t.Errorf("writer got %q, want %q", buf.String(), "line\n")
	}
}
