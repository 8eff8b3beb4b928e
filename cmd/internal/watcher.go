package internal

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher reports debounced changes to a single file. It watches the
// parent directory so editors that replace the file are still seen.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	path     string
}

type WatcherConfig struct {
	Path     string
	Debounce time.Duration
}

type WatchEvent struct {
	Reason string
	Path   string
}

func NewFileWatcher(config WatcherConfig) (*FileWatcher, error) {
	path, err := filepath.Abs(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", config.Path, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &FileWatcher{
		watcher:  w,
		debounce: config.Debounce,
		path:     path,
	}, nil
}

func (fw *FileWatcher) Start(ctx context.Context) (<-chan WatchEvent, <-chan error, error) {
	if err := fw.watcher.Add(filepath.Dir(fw.path)); err != nil {
		return nil, nil, fmt.Errorf("watch %s: %w", fw.path, err)
	}

	eventCh := make(chan WatchEvent, 10)
	errorCh := make(chan error, 10)

	go fw.watchLoop(ctx, eventCh, errorCh)

	return eventCh, errorCh, nil
}

func (fw *FileWatcher) Close() error {
	return fw.watcher.Close()
}

func (fw *FileWatcher) watchLoop(ctx context.Context, eventCh chan<- WatchEvent, errorCh chan<- error) {
	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		pending bool
	)

	resetTimer := func() {
		if timer == nil {
			timer = time.NewTimer(fw.debounce)
			timerC = timer.C
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(fw.debounce)
		timerC = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&fsnotify.Chmod == fsnotify.Chmod || filepath.Clean(ev.Name) != fw.path {
				continue
			}
			pending = true
			resetTimer()

		case <-timerC:
			timerC = nil
			if !pending {
				continue
			}
			pending = false

			select {
			case eventCh <- WatchEvent{Reason: fmt.Sprintf("file change (%s quiet)", fw.debounce), Path: fw.path}:
			default:
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			select {
			case errorCh <- fmt.Errorf("watch error: %w", err):
			default:
			}
		}
	}
}
