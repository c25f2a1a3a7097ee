package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func startWatcher(t *testing.T, path string) (<-chan struct{}, func()) {
	t.Helper()

	changed := make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runFileWatcher(ctx, path, changed, 20*time.Millisecond, quietLogger()) }()

	// Give fsnotify a moment to register the directory.
	time.Sleep(50 * time.Millisecond)

	return changed, func() {
		cancel()
		if err := <-done; err != nil {
			t.Fatalf("watcher returned error: %v", err)
		}
	}
}

func TestFileWatcherSignalsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seatguard.yaml")
	if err := os.WriteFile(path, []byte("seats:\n  silent: false\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	changed, stop := startWatcher(t, path)
	defer stop()

	if err := os.WriteFile(path, []byte("seats:\n  silent: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("write did not trigger a change signal")
	}
}

func TestFileWatcherIgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seatguard.yaml")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	changed, stop := startWatcher(t, path)
	defer stop()

	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changed:
		t.Fatal("sibling file should not trigger a change signal")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestFileWatcherSeesRenameReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seatguard.yaml")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	changed, stop := startWatcher(t, path)
	defer stop()

	tmp := filepath.Join(dir, ".seatguard.yaml.swp")
	if err := os.WriteFile(tmp, []byte("watchdog:\n  paused: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("rename over the file did not trigger a change signal")
	}
}

func TestFileWatcherMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gone", "seatguard.yaml")
	err := runFileWatcher(context.Background(), path, make(chan struct{}, 1), time.Millisecond, quietLogger())
	if err == nil {
		t.Fatal("expected an error for a missing directory")
	}
}

// quietLogger is safe to use from debounce timers that outlive a test.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
