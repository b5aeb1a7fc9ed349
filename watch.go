package pyext

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bep/debounce"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDelay is the quiet period before a rebuild is triggered.
const DefaultWatchDelay = 500 * time.Millisecond

// defaultWatchIgnore lists source-relative patterns that never trigger a rebuild.
var defaultWatchIgnore = []string{
	"**/.*",
	"**/.*/**",
	"build/**",
	"**/__pycache__/**",
	"**/*.{so,pyd,dylib,o,obj}",
}

// WatchOptions configures Watch.
type WatchOptions struct {
	Delay  time.Duration // Debounce delay, DefaultWatchDelay when zero
	Ignore []string      // Extra doublestar patterns, relative to the source directory

	// OnResult is called after every build, including the initial one.
	OnResult func(result *BuildResult, err error)
}

// Watch builds the extension once, then rebuilds it whenever files under its
// source directory change. Bursts of events are coalesced with a debounce
// delay and builds never overlap. Watch returns when ctx is canceled.
func Watch(ctx context.Context, builder Builder, config *BuildConfig, ext *Extension, opts WatchOptions) error {
	logger := config.logger().With().Str("extension", ext.Name).Logger()

	delay := opts.Delay
	if delay <= 0 {
		delay = DefaultWatchDelay
	}
	ignore := append(append([]string{}, defaultWatchIgnore...), opts.Ignore...)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dirs, err := watchDirs(ext.SourceDir, ignore, ScratchDir(config, ext))
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	logger.Info().Int("dirs", len(dirs)).Str("source_dir", ext.SourceDir).Msg("watching for changes")

	rebuild := make(chan struct{}, 1)
	trigger := debounce.New(delay)
	request := func() {
		select {
		case rebuild <- struct{}{}:
		default:
		}
	}

	build := func() {
		result, err := builder.Build(ctx, config, ext)
		if opts.OnResult != nil {
			opts.OnResult(result, err)
		}
	}

	build()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-rebuild:
			build()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if watchIgnored(ext.SourceDir, event.Name, ignore) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watcher.Add(event.Name); err != nil {
						logger.Warn().Err(err).Str("dir", event.Name).Msg("failed to watch new directory")
					}
				}
			}
			logger.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("source changed")
			trigger(request)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("watcher error")
		}
	}
}

// watchDirs lists sourceDir and its subdirectories, skipping ignored ones and
// the scratch directory.
func watchDirs(sourceDir string, ignore []string, scratch string) ([]string, error) {
	var dirs []string

	err := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != sourceDir && (path == scratch || watchIgnored(sourceDir, path, ignore)) {
			return filepath.SkipDir
		}
		dirs = append(dirs, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list directories under %s: %w", sourceDir, err)
	}

	return dirs, nil
}

func watchIgnored(sourceDir, path string, patterns []string) bool {
	rel, err := filepath.Rel(sourceDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return true
	}
	rel = filepath.ToSlash(rel)

	for _, pattern := range patterns {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
		// Directories match their "dir/**" pattern too
		if matched, _ := doublestar.Match(pattern, rel+"/"); matched {
			return true
		}
	}
	return false
}
