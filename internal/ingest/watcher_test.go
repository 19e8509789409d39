package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStartWatcherRequiresRoot(t *testing.T) {
	if _, _, err := StartWatcher(context.Background(), WatchConfig{Root: " "}, quietLogger()); err == nil {
		t.Fatal("expected error for blank root")
	}
}

func TestWatcherInitialScan(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "cdl", "smith.pdf"))
	touch(t, filepath.Join(root, "cdl", "notes.txt")) // wrong extension

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := StartWatcher(ctx, WatchConfig{Root: root, InitialScan: true}, quietLogger())
	if err != nil {
		t.Fatalf("StartWatcher: %v", err)
	}

	select {
	case p := <-events:
		if filepath.Base(p) != "smith.pdf" {
			t.Errorf("initial scan emitted %q, want smith.pdf", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("initial scan emitted nothing")
	}
}

// A stream of drops arriving while earlier settle windows expire must all be
// emitted: flushes interleave with new events without losing or corrupting
// the pending set.
func TestWatcherSettleBurstLosesNothing(t *testing.T) {
	root := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := StartWatcher(ctx, WatchConfig{Root: root, SettleTime: 5 * time.Millisecond}, quietLogger())
	if err != nil {
		t.Fatalf("StartWatcher: %v", err)
	}

	const n = 20
	want := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		p := filepath.Join(root, fmt.Sprintf("scan-%02d.pdf", i))
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		want[p] = struct{}{}
		// outlast the settle window so flushes fire mid-burst
		time.Sleep(8 * time.Millisecond)
	}

	got := make(map[string]struct{}, n)
	deadline := time.After(5 * time.Second)
	for len(got) < n {
		select {
		case p := <-events:
			if _, expected := want[p]; !expected {
				t.Fatalf("unexpected path %q", p)
			}
			got[p] = struct{}{}
		case <-deadline:
			t.Fatalf("received %d of %d paths before deadline", len(got), n)
		}
	}
}

func TestWatcherStopsOnCancel(t *testing.T) {
	root := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	events, errs, err := StartWatcher(ctx, WatchConfig{Root: root, SettleTime: time.Millisecond}, quietLogger())
	if err != nil {
		t.Fatalf("StartWatcher: %v", err)
	}

	cancel()

	timeout := time.After(2 * time.Second)
	for events != nil || errs != nil {
		select {
		case _, ok := <-events:
			if !ok {
				events = nil
			}
		case _, ok := <-errs:
			if !ok {
				errs = nil
			}
		case <-timeout:
			t.Fatal("channels not closed after cancel")
		}
	}
}
