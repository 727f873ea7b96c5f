package credentials

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch calls onChange with the freshly loaded session every time
// credentials.toml is written, created, removed or renamed, until ctx is
// done. A removed file is reported as an empty Session. Watch blocks.
func (m *Manager) Watch(ctx context.Context, onChange func(*Session)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating credentials watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors and os.WriteFile may replace the file.
	if err := watcher.Add(filepath.Dir(m.targetPath)); err != nil {
		return fmt.Errorf("watching credentials dir: %w", err)
	}

	const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(m.targetPath) {
				continue
			}
			if event.Op&relevant == 0 {
				continue
			}
			s, err := m.Load()
			if err != nil {
				// Partially written file; the next Write event will retry.
				continue
			}
			onChange(s)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("credentials watcher error: %w", err)
		}
	}
}
