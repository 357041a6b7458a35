package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-tpltask/internal/watch"
	"github.com/goliatone/go-tpltask/pkg/testsupport"
)

func TestWatcher_RerunsOnChange(t *testing.T) {
	dir := t.TempDir()
	file := testsupport.WriteFile(t, dir, "templates/in.njk", "{{ dog }}")

	var runs atomic.Int32
	w, err := watch.New([]string{file}, func(context.Context) error {
		runs.Add(1)
		return nil
	}, watch.WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	waitFor(t, func() bool { return runs.Load() >= 1 })
	testsupport.WriteFile(t, dir, "templates/in.njk", "{{ cat }}")
	waitFor(t, func() bool { return runs.Load() >= 2 })

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("watcher did not stop after cancel")
	}
}

func TestWatcher_SkipsIgnoredPaths(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteFile(t, dir, "in.njk", "{{ dog }}")
	testsupport.WriteFile(t, dir, "dist/out.js", "")

	var runs atomic.Int32
	w, err := watch.New([]string{dir}, func(context.Context) error {
		runs.Add(1)
		return nil
	}, watch.WithDebounce(20*time.Millisecond), watch.WithIgnore(filepath.Join(dir, "dist")))
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	waitFor(t, func() bool { return runs.Load() >= 1 })
	testsupport.WriteFile(t, dir, "dist/out.js", "written")
	time.Sleep(200 * time.Millisecond)
	if got := runs.Load(); got != 1 {
		t.Fatalf("expected ignored write not to re-run, got %d runs", got)
	}

	testsupport.WriteFile(t, dir, "in.njk", "{{ cat }}")
	waitFor(t, func() bool { return runs.Load() >= 2 })
}

func TestWatcher_OutputBesideInputDoesNotLoop(t *testing.T) {
	dir := t.TempDir()
	input := testsupport.WriteFile(t, dir, "a.njk", "{{ a }}")
	output := filepath.Join(dir, "a.js")

	var runs atomic.Int32
	w, err := watch.New([]string{input}, func(context.Context) error {
		runs.Add(1)
		return os.WriteFile(output, []byte("compiled"), 0o644)
	}, watch.WithDebounce(20*time.Millisecond), watch.WithIgnore(output))
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	waitFor(t, func() bool { return runs.Load() >= 1 })
	time.Sleep(300 * time.Millisecond)
	if got := runs.Load(); got != 1 {
		t.Fatalf("watcher re-ran %d times without a source change", got)
	}

	testsupport.WriteFile(t, dir, "a.njk", "{{ b }}")
	waitFor(t, func() bool { return runs.Load() >= 2 })
}

func TestNew_WatchesDirectoriesRecursively(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteFile(t, dir, "a/b/c.njk", "x")
	testsupport.WriteFile(t, dir, "a/d.njk", "x")

	w, err := watch.New([]string{filepath.Join(dir, "a"), filepath.Join(dir, "a", "d.njk")}, func(context.Context) error { return nil })
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}

	got := w.Paths()
	want := []string{filepath.Join(dir, "a"), filepath.Join(dir, "a", "b")}
	if diff := testsupport.CompareGolden(want, got); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := watch.New([]string{"x"}, nil); err == nil {
		t.Fatalf("expected error without run function")
	}
	if _, err := watch.New(nil, func(context.Context) error { return nil }); err == nil {
		t.Fatalf("expected error without paths")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}
