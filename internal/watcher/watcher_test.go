package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "intents.yaml")
	if err := os.WriteFile(target, []byte("a: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int32
	w := NewWatcher([]string{target}, func(string) { calls.Add(1) }, WithDebounce(100*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(target, []byte("a: 2\n"), 0644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !waitFor(t, func() bool { return calls.Load() >= 1 }) {
		t.Fatal("onChange was not called")
	}
	time.Sleep(250 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("onChange called %d times, want 1 after debounce", n)
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "intents.yaml")
	if err := os.WriteFile(target, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int32
	w := NewWatcher([]string{target}, func(string) { calls.Add(1) }, WithDebounce(50*time.Millisecond))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("y"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Errorf("onChange called %d times for an unwatched file", n)
	}
}

func TestWatcher_ReplaceByRename(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "intents.yaml")
	if err := os.WriteFile(target, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	var got atomic.Value
	w := NewWatcher([]string{target}, func(p string) { got.Store(p) }, WithDebounce(50*time.Millisecond))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	tmp := filepath.Join(dir, ".intents.yaml.tmp")
	if err := os.WriteFile(tmp, []byte("new"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, target); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { p, _ := got.Load().(string); return p == target }) {
		t.Errorf("onChange not called with %s", target)
	}
}

func TestWatcher_StopIdempotent(t *testing.T) {
	w := NewWatcher([]string{filepath.Join(t.TempDir(), "f.yaml")}, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(w.Files()) != 1 {
		t.Errorf("Files = %v", w.Files())
	}
	w.Stop()
	w.Stop()
}
