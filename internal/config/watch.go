package config

import (
	"context"
	"hash/fnv"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "github.com/aid003/SKUF-BOT/pkg/logx"
)

// Watch re-reads the config file whenever it changes on disk and calls
// onChange with the freshly validated result. Invalid configs are logged
// and skipped, so a half-saved edit never takes anything down.
//
// The parent directory is watched (not the file itself) because editors
// and orchestrators typically replace the file via rename.
func Watch(ctx context.Context, path string, log logx.Logger, onChange func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return err
	}

	go func() {
		defer w.Close()

		var lastHash uint64
		if b, err := os.ReadFile(path); err == nil {
			lastHash = hashBytes(b)
		}

		// Debounce: editors fire several events per save.
		var pending <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				pending = time.After(250 * time.Millisecond)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("config watcher error", logx.Err(err))
			case <-pending:
				pending = nil
				b, err := os.ReadFile(path)
				if err != nil {
					log.Warn("config reload: read failed", logx.Err(err))
					continue
				}
				h := hashBytes(b)
				if h == lastHash {
					continue
				}
				cfg, err := Parse(b)
				if err != nil {
					log.Warn("config reload: rejected", logx.Err(err))
					continue
				}
				lastHash = h
				log.Info("config reloaded", logx.String("path", path))
				onChange(cfg)
			}
		}
	}()
	return nil
}

func hashBytes(b []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
