package senv

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/senvtool/senv/pkg/tracker"
)

// WatchFunc receives the environment after each reload, or the reload error.
type WatchFunc func(env *tracker.Env, err error)

// Watch loads profile, then reloads it whenever a file under the config
// directory changes. fn is called after the first load and after every
// reload. Watch blocks until ctx is done.
func (e *Engine) Watch(ctx context.Context, profile string, fn WatchFunc) error {
	e.mu.Lock()
	dir, err := e.dir()
	profile = e.resolveProfile(profile)
	debounce := e.opts.WatchDebounce
	e.mu.Unlock()
	if err != nil {
		return wrapError("watch", profile, "", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := e.watchTree(watcher, dir); err != nil {
		return wrapError("watch", profile, dir, err)
	}

	e.logger.Info().Str("senv", profile).Str("dir", dir).Msg("watching for changes")
	fn(e.reload(ctx, profile))

	timer := time.NewTimer(debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ignoredName(event.Name) {
				continue
			}
			e.logger.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("config file changed")

			if event.Has(fsnotify.Create) {
				// New directories need their own watch.
				if err := e.watchTree(watcher, event.Name); err != nil {
					e.logger.Debug().Err(err).Str("path", event.Name).Msg("not watching new path")
				}
			}
			e.forgetKeyFile(event.Name)
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			e.logger.Warn().Err(err).Msg("watcher error")

		case <-timer.C:
			fn(e.reload(ctx, profile))
		}
	}
}

func (e *Engine) reload(ctx context.Context, profile string) (*tracker.Env, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.load(ctx, profile, true); err != nil {
		e.logger.Error().Err(err).Str("senv", profile).Msg("failed to reload profile")
		return nil, err
	}
	e.logger.Info().Str("senv", profile).Int("keys", e.environment.Len()).Msg("profile reloaded")
	return e.environment.Clone(), nil
}

// forgetKeyFile drops a memoized passphrase read from path.
func (e *Engine) forgetKeyFile(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.keySource == path {
		e.key, e.keySource = "", ""
	}
}

func (e *Engine) watchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

func ignoredName(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, "~") || strings.HasPrefix(base, ".#") || strings.HasSuffix(base, ".swp")
}
