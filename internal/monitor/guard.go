package monitor

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const changeOps = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename

// Guard records whether a file changes while it is being watched. The DHCP
// server appends to its lease file at any time; a rewrite based on an older
// read would lose those leases.
type Guard struct {
	path     string
	watcher  *fsnotify.Watcher
	modified bool
	mu       sync.RWMutex
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewGuard creates a guard that is not watching anything yet
func NewGuard() *Guard {
	return &Guard{
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Watch starts watching path. The parent directory is watched so that
// replacing the file is noticed as well.
func (g *Guard) Watch(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrapf(err, "cannot resolve the path: %s", path)
	}
	g.path = absPath

	g.watcher, err = fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}

	if err := g.watcher.Add(filepath.Dir(absPath)); err != nil {
		g.watcher.Close()
		g.watcher = nil
		return errors.Wrapf(err, "failed to watch %s", absPath)
	}

	go g.watchFile()
	return nil
}

func (g *Guard) watchFile() {
	defer close(g.doneCh)

	for {
		select {
		case event, ok := <-g.watcher.Events:
			if !ok {
				return
			}
			if event.Op&changeOps == 0 {
				continue
			}
			absEventPath, _ := filepath.Abs(event.Name)
			if absEventPath != g.path {
				continue
			}
			log.WithFields(log.Fields{
				"file": event.Name,
				"op":   event.Op.String(),
			}).Warn("Lease file changed during the run")
			g.mu.Lock()
			g.modified = true
			g.mu.Unlock()

		case err, ok := <-g.watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).Warn("File watcher error")

		case <-g.stopCh:
			return
		}
	}
}

// Modified reports whether the watched file changed since Watch was called
func (g *Guard) Modified() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.modified
}

// Close stops watching. It is safe to call more than once.
func (g *Guard) Close() error {
	var err error
	g.stopOnce.Do(func() {
		close(g.stopCh)
		if g.watcher != nil {
			err = g.watcher.Close()
			<-g.doneCh
		}
	})
	return err
}
