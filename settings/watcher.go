package settings

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/decred/slog"
	"github.com/fsnotify/fsnotify"
)

// reloadDelay debounces file events so that the settings are only reloaded
// once when multiple events happen in sequence.
const reloadDelay = 100 * time.Millisecond

// Watcher reloads the settings file when it changes.
type Watcher struct {
	fname   string
	log     slog.Logger
	updates chan *Settings
}

// NewWatcher creates a watcher for the given settings file.
func NewWatcher(fname string, log slog.Logger) *Watcher {
	if log == nil {
		log = slog.Disabled
	}
	return &Watcher{
		fname:   fname,
		log:     log,
		updates: make(chan *Settings),
	}
}

// Updates receives the new settings after every successful reload.
func (w *Watcher) Updates() <-chan *Settings {
	return w.updates
}

// reloadFSWatchers watches the dir of the settings file, so that editors that
// replace the file instead of writing to it are also detected.
func (w *Watcher) reloadFSWatchers(watcher *fsnotify.Watcher) {
	for _, p := range watcher.WatchList() {
		if err := watcher.Remove(p); err != nil {
			w.log.Warnf("Unable to remove previous watcher %s: %v", p, err)
		}
	}
	if err := watcher.Add(filepath.Dir(w.fname)); err != nil {
		w.log.Warnf("Unable to watch settings dir: %v", err)
	}
}

func (w *Watcher) runFSWatcher(ctx context.Context, watcher *fsnotify.Watcher) error {
	w.reloadFSWatchers(watcher)

	var chanReload <-chan time.Time
	base := filepath.Base(w.fname)

	w.log.Debugf("Watching settings file %s", w.fname)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-chanReload:
			chanReload = nil
			s, err := Load(w.fname)
			if err != nil {
				w.log.Errorf("Unable to reload settings: %v", err)
				continue
			}
			w.log.Infof("Reloaded settings")
			select {
			case w.updates <- s:
			case <-ctx.Done():
				return ctx.Err()
			}

		case event, ok := <-watcher.Events:
			if !ok {
				w.log.Warnf("watcher.Events not ok")
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			w.log.Debugf("Watcher event: %s", event)
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) {
				continue
			}
			chanReload = time.After(reloadDelay)

		case err, ok := <-watcher.Errors:
			if !ok {
				w.log.Warnf("watcher.Errors not ok")
				return nil
			}
			w.log.Debugf("Watcher error: %v", err)
		}
	}
}

// Run watches the settings file until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to start filesystem watcher: %v", err)
	}
	err = w.runFSWatcher(ctx, watcher)
	if closeErr := watcher.Close(); closeErr != nil {
		w.log.Warnf("Unable to close filesystem watcher: %v", closeErr)
	}
	return err
}
