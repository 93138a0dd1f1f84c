package db

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce groups the burst of writes SQLite makes for one transaction.
const DefaultWatchDebounce = 150 * time.Millisecond

// Watch calls onChange after the database file name, or one of its WAL or
// journal companions, has been written. Bursts of writes within debounce are
// reported once. Writes made by this process are reported too; callers are
// expected to tell them apart. Watch blocks until ctx is done.
func Watch(ctx context.Context, name string, debounce time.Duration, onChange func()) error {
	abs, err := filepath.Abs(name)
	if err != nil {
		return fmt.Errorf("resolving database path %s : %w", name, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher : %w", err)
	}
	defer watcher.Close()

	// The WAL file is created and removed by SQLite, so watch the directory.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s : %w", filepath.Dir(abs), err)
	}

	watched := map[string]struct{}{
		abs:              {},
		abs + "-wal":     {},
		abs + "-journal": {},
	}

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if _, ok := watched[filepath.Clean(event.Name)]; !ok {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			mu.Lock()
			if timer == nil {
				timer = time.AfterFunc(debounce, onChange)
			} else {
				timer.Reset(debounce)
			}
			mu.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watching database files : %w", err)
		}
	}
}
