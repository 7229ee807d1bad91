package main

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/dileepadev/blogsync/pkg/config"
	"github.com/dileepadev/blogsync/pkg/logger"
)

const defaultDebounce = 500 * time.Millisecond

func (a *app) watchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Sync once, then sync again whenever a post changes",
		Long: `Run a full sync, then watch the posts directory and run another full sync
after post files are written, created or renamed. Bursts of changes are
debounced into a single run. A failing run is reported and watching continues.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromViper(a.v)
			if err := cfg.Validate(); err != nil {
				return err
			}

			delay, _ := cmd.Flags().GetDuration("debounce")
			if delay < 0 {
				return errors.Errorf("debounce cannot be negative: %s", delay)
			}

			return a.watch(cmd.Context(), cfg, delay)
		},
	}

	cmd.Flags().DurationP("debounce", "d", defaultDebounce, "Quiet period after the last change before syncing")
	return cmd
}

func (a *app) watch(ctx context.Context, cfg *config.Config, delay time.Duration) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(cfg.PostsDir); err != nil {
		return errors.Wrapf(err, "failed to watch %s", cfg.PostsDir)
	}

	a.syncOnce(ctx, cfg)

	changes := make(chan string)
	go forwardEvents(ctx, watcher, cfg.Pattern, changes)

	a.presenter.Info("Watching for post changes... Press Ctrl+C to stop")
	logger.G(ctx).WithField("dir", cfg.PostsDir).Info("file watcher initialized")

	debounce(ctx, changes, delay, func(paths []string) {
		a.presenter.Info(fmt.Sprintf("Change detected: %s", strings.Join(paths, ", ")))
		a.syncOnce(ctx, cfg)
	})
	return nil
}

// syncOnce runs one sync and reports a failure instead of returning it
func (a *app) syncOnce(ctx context.Context, cfg *config.Config) {
	if _, err := a.runSync(ctx, cfg); err != nil {
		if ctx.Err() != nil {
			return
		}
		a.presenter.Error(err, "Sync run failed")
	}
}

// forwardEvents sends the base name of every changed post file to out
func forwardEvents(ctx context.Context, watcher *fsnotify.Watcher, pattern string, out chan<- string) {
	defer close(out)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			if !matchesPattern(pattern, name) {
				continue
			}
			logger.G(ctx).WithFields(map[string]interface{}{
				"file":      name,
				"operation": event.Op.String(),
			}).Debug("post change detected")

			select {
			case out <- name:
			case <-ctx.Done():
				return
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.G(ctx).WithError(err).Error("error watching files")
		case <-ctx.Done():
			return
		}
	}
}

func matchesPattern(pattern, name string) bool {
	matched, err := doublestar.Match(pattern, name)
	return err == nil && matched
}

// debounce collects names from in and calls fire with the distinct names,
// sorted, once no new name has arrived for delay. It returns when ctx is done
// or in is closed; names still pending when in closes are flushed first.
func debounce(ctx context.Context, in <-chan string, delay time.Duration, fire func([]string)) {
	pending := make(map[string]struct{})
	timer := time.NewTimer(delay)
	timer.Stop()
	defer timer.Stop()

	flush := func() {
		if len(pending) == 0 {
			return
		}
		names := slices.Sorted(maps.Keys(pending))
		clear(pending)
		fire(names)
	}

	for {
		select {
		case name, ok := <-in:
			if !ok {
				flush()
				return
			}
			pending[name] = struct{}{}
			timer.Reset(delay)
		case <-timer.C:
			flush()
		case <-ctx.Done():
			return
		}
	}
}
