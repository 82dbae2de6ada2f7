package service

import (
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher reloads configuration when the file changes on disk, so
// plan prices and branding can be adjusted without a restart
type ConfigWatcher struct {
	path     string
	onChange func()
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// NewConfigWatcher watches path and invokes onChange after each write
func NewConfigWatcher(path string, onChange func()) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory, not the file: editors replace files on save
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	cw := &ConfigWatcher{
		path:     path,
		onChange: onChange,
		watcher:  watcher,
		done:     make(chan struct{}),
	}
	go cw.run()
	return cw, nil
}

func (cw *ConfigWatcher) run() {
	// Debounce: editors fire several events per save
	var timer *time.Timer

	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(cw.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(500*time.Millisecond, func() {
				log.Printf("🔄 Config file changed, reloading: %s", cw.path)
				cw.onChange()
			})

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️ Config watcher error: %v", err)

		case <-cw.done:
			return
		}
	}
}

// Stop ends watching
func (cw *ConfigWatcher) Stop() {
	close(cw.done)
	cw.watcher.Close()
}
