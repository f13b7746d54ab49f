package probe

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/robolink/robosock/internal/robosock"
)

func TestInspect(t *testing.T) {
	dir := t.TempDir()

	live := filepath.Join(dir, "live.sock")
	s, err := robosock.New(context.Background(), robosock.NewRegistry(), live)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	stale := filepath.Join(dir, "stale.sock")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: stale, Net: "unixgram"})
	if err != nil {
		t.Fatal(err)
	}
	conn.Close()

	regular := filepath.Join(dir, "regular.sock")
	if err := os.WriteFile(regular, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want State
	}{
		{name: "absent", path: filepath.Join(dir, "missing.sock"), want: StateAbsent},
		{name: "regular file", path: regular, want: StateNotSocket},
		{name: "live socket", path: live, want: StateLive},
		{name: "stale socket", path: stale, want: StateStale},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Inspect(tt.path)
			if err != nil {
				t.Fatalf("Inspect() error = %v", err)
			}
			if r.State != tt.want {
				t.Errorf("State = %q, want %q (detail %q)", r.State, tt.want, r.Detail)
			}
		})
	}

	r, _ := Inspect(live)
	if r.Identity != s.Identity() {
		t.Errorf("Identity = %v, want %v", r.Identity, s.Identity())
	}
}

func TestInspectDoesNotDisturbStaleFile(t *testing.T) {
	stale := filepath.Join(t.TempDir(), "stale.sock")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: stale, Net: "unixgram"})
	if err != nil {
		t.Fatal(err)
	}
	conn.Close()

	if _, err := Inspect(stale); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Lstat(stale); err != nil {
		t.Errorf("probing removed the stale file: %v", err)
	}
}

func TestInspectAll(t *testing.T) {
	dir := t.TempDir()
	reports := InspectAll([]string{filepath.Join(dir, "a.sock"), dir})

	if len(reports) != 2 {
		t.Fatalf("got %d reports, want 2", len(reports))
	}
	if reports[0].State != StateAbsent {
		t.Errorf("reports[0].State = %q, want absent", reports[0].State)
	}
	if reports[1].State != StateNotSocket {
		t.Errorf("reports[1].State = %q, want not-socket", reports[1].State)
	}
}
