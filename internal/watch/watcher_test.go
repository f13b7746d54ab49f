package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/robolink/robosock/internal/event"
	"github.com/robolink/robosock/internal/robosock"
)

type fixture struct {
	reg      *robosock.Registry
	bus      *event.Bus
	watcher  *Watcher
	vanished chan string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		reg:      robosock.NewRegistry(),
		bus:      event.NewBus(),
		vanished: make(chan string, 4),
	}
	f.bus.Subscribe(event.TypeSocketVanished, func(e event.Event) {
		f.vanished <- e.(event.SocketVanishedEvent).Path
	})

	w, err := New(f.reg, f.bus, WithDebounce(10*time.Millisecond))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	w.Start()
	t.Cleanup(w.Stop)
	f.watcher = w
	return f
}

func (f *fixture) newSocket(t *testing.T, path string) *robosock.Socket {
	t.Helper()
	s, err := robosock.New(context.Background(), f.reg, path, robosock.WithBus(f.bus))
	if err != nil {
		t.Fatalf("robosock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestWatcher_TracksBoundAndReleasedSockets(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	a := f.newSocket(t, filepath.Join(dir, "a.sock"))
	f.newSocket(t, filepath.Join(dir, "b.sock"))

	if got := f.watcher.Tracked(); len(got) != 2 {
		t.Fatalf("Tracked() = %v, want 2 sockets", got)
	}

	if err := a.Unlink(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := f.watcher.Tracked()
	if len(got) != 1 || filepath.Base(got[0]) != "b.sock" {
		t.Errorf("Tracked() after Unlink = %v, want only b.sock", got)
	}
}

func TestWatcher_ReportsVanishedSocket(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "robo.sock")
	f.newSocket(t, path)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-f.vanished:
		if got != path {
			t.Errorf("vanished path = %q, want %q", got, path)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no socket.vanished event after the file was removed")
	}

	if len(f.watcher.Tracked()) != 0 {
		t.Error("a vanished socket should no longer be tracked")
	}
}

func TestWatcher_IgnoresCooperativeRelease(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "robo.sock")
	s := f.newSocket(t, path)

	if err := s.Unlink(context.Background()); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-f.vanished:
		t.Errorf("unexpected socket.vanished for %q", got)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_IgnoresUnrelatedFiles(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	f.newSocket(t, filepath.Join(dir, "robo.sock"))

	other := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(other, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(other); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-f.vanished:
		t.Errorf("unexpected socket.vanished for %q", got)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := New(robosock.NewRegistry(), event.NewBus())
	if err != nil {
		t.Fatal(err)
	}
	w.Start()
	w.Stop()
	w.Stop()

	select {
	case <-w.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("watch loop did not exit after Stop")
	}
}
