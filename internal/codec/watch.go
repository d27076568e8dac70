package codec

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"arguard/internal/model"
)

const watchDebounce = 100 * time.Millisecond

// Watch reloads the model at path whenever it is written or replaced, until
// ctx is done. onLoad and onError are called from the watcher goroutine.
func Watch(ctx context.Context, path, name string, onLoad func(*model.Model), onError func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// The directory is watched so atomic replacement is seen.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}
	go watchLoop(ctx, watcher, path, name, onLoad, onError)
	return nil
}

func watchLoop(ctx context.Context, watcher *fsnotify.Watcher, path, name string, onLoad func(*model.Model), onError func(error)) {
	defer watcher.Close()
	var debounce *time.Timer
	reload := func() {
		m, err := Load(path, name)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		if onLoad != nil {
			onLoad(m)
		}
	}
	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if onError != nil {
				onError(err)
			}
		}
	}
}
