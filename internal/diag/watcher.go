// Package diag hosts operational side-channels for the engine that are
// not part of the wire protocol: filesystem watches, metrics wiring,
// and the diagnostics HTTP surface live alongside it.
package diag

import (
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Invalidator is satisfied by *engine.VersionCache; kept as a narrow
// interface here so this package does not import engine just to call
// one method.
type Invalidator interface {
	Invalidate()
}

// BinaryWatcher watches a helper binary's path and invalidates a cached
// version probe whenever the file is rewritten (package upgrade, atomic
// replace via rename) so a stale version string is never served.
type BinaryWatcher struct {
	log     *zap.Logger
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// WatchBinary starts watching path and returns a handle the caller must
// Close to stop the background goroutine and release the fsnotify
// watcher.
func WatchBinary(log *zap.Logger, path string, inv Invalidator) (*BinaryWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, err
	}

	bw := &BinaryWatcher{log: log.Named("diag.watcher"), watcher: w, done: make(chan struct{})}

	go bw.run(path, inv)
	return bw, nil
}

func (bw *BinaryWatcher) run(path string, inv Invalidator) {
	defer close(bw.done)
	for {
		select {
		case ev, ok := <-bw.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				bw.log.Info("helper binary changed; invalidating version cache",
					zap.String("path", path), zap.String("op", ev.Op.String()))
				inv.Invalidate()
			}
		case err, ok := <-bw.watcher.Errors:
			if !ok {
				return
			}
			bw.log.Warn("watcher error", zap.Error(err))
		}
	}
}

// Close stops the watcher and waits for its goroutine to exit.
func (bw *BinaryWatcher) Close() error {
	err := bw.watcher.Close()
	<-bw.done
	return err
}
