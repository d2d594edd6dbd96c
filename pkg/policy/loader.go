package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// WatchDebounce is how long Watch waits for a burst of file events to settle
// before reloading.
const WatchDebounce = 300 * time.Millisecond

// Loader reads user policies from .rego and .json files.
type Loader struct {
	logger zerolog.Logger

	mu    sync.Mutex
	cache map[string]cachedPolicy
}

// cachedPolicy is a parsed file together with the stat it was parsed from.
type cachedPolicy struct {
	modTime time.Time
	size    int64
	policy  Policy
}

// NewLoader creates a policy loader.
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{
		logger: logger.With().Str("component", "policy-loader").Logger(),
		cache:  make(map[string]cachedPolicy),
	}
}

// isPolicyFile reports whether name has a policy file extension.
func isPolicyFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".rego", ".json":
		return true
	}
	return false
}

// LoadFromPaths reads the policies under paths. A path naming a file must be
// a loadable policy. Directories are walked recursively; files in them that
// fail to parse are skipped with a warning.
func (l *Loader) LoadFromPaths(ctx context.Context, paths []string) ([]Policy, error) {
	var policies []Policy
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load from path %s: %w", path, err)
		}
		if !info.IsDir() {
			p, err := l.loadFile(path)
			if err != nil {
				return nil, fmt.Errorf("failed to load from path %s: %w", path, err)
			}
			policies = append(policies, p)
			continue
		}
		found, err := l.loadDir(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load from path %s: %w", path, err)
		}
		policies = append(policies, found...)
	}

	l.logger.Debug().
		Int("total", len(policies)).
		Int("sources", len(paths)).
		Msg("Policies loaded from paths")
	return policies, nil
}

func (l *Loader) loadDir(dir string) ([]Policy, error) {
	var policies []Policy
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isPolicyFile(path) {
			return nil
		}
		p, err := l.loadFile(path)
		if err != nil {
			l.logger.Warn().Err(err).Str("path", path).Msg("Skipping policy file")
			return nil
		}
		policies = append(policies, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}
	return policies, nil
}

// loadFile parses one policy file. Parsed files are reused until their size
// or modification time changes.
func (l *Loader) loadFile(path string) (Policy, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Policy{}, fmt.Errorf("failed to stat file: %w", err)
	}

	l.mu.Lock()
	cached, ok := l.cache[path]
	l.mu.Unlock()
	if ok && cached.modTime.Equal(info.ModTime()) && cached.size == info.Size() {
		return cached.policy, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("failed to read file: %w", err)
	}

	var p Policy
	switch strings.ToLower(filepath.Ext(path)) {
	case ".rego":
		p = parseRego(path, data)
	case ".json":
		if p, err = parseJSON(path, data); err != nil {
			return Policy{}, err
		}
	default:
		return Policy{}, fmt.Errorf("unsupported policy file type: %s", path)
	}

	l.mu.Lock()
	l.cache[path] = cachedPolicy{modTime: info.ModTime(), size: info.Size(), policy: p}
	l.mu.Unlock()

	l.logger.Debug().Str("path", path).Str("policy", p.Name).Msg("Policy parsed")
	return p, nil
}

// parseRego turns a .rego module into a policy named after the file. Its
// deny rules block unless configured otherwise.
func parseRego(path string, data []byte) Policy {
	return Policy{
		Name:        strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Description: leadingComment(string(data)),
		Rego:        string(data),
		Severity:    SeverityError,
		Enabled:     true,
		Source:      path,
	}
}

// parseJSON reads a JSON policy definition carrying its module in "rego".
func parseJSON(path string, data []byte) (Policy, error) {
	p := Policy{Enabled: true}
	if err := json.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("failed to parse JSON policy: %w", err)
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if p.Rego == "" {
		return Policy{}, fmt.Errorf("JSON policy %s has no rego field", p.Name)
	}
	if p.Severity == "" {
		p.Severity = SeverityError
	}
	p.Source = path
	p.Builtin = false
	return p, nil
}

// leadingComment joins the first block of # comments in a rego module.
func leadingComment(module string) string {
	var parts []string
	for _, line := range strings.Split(module, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			if trimmed != "" && len(parts) > 0 {
				break
			}
			continue
		}
		if comment := strings.TrimSpace(strings.TrimPrefix(trimmed, "#")); comment != "" {
			parts = append(parts, comment)
		}
	}
	return strings.Join(parts, " ")
}

// Watch reloads the policies under paths whenever a file under paths or
// under one of the extra directories changes, and hands the fresh set to
// onReload. Events are debounced by WatchDebounce. Watch returns once the
// watcher is set up; watching stops when ctx is cancelled.
//
// Failed reloads are logged and the watch continues.
func (l *Loader) Watch(ctx context.Context, paths []string, onReload func([]Policy) error, extra ...string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	var watched []string
	add := func(dir string) {
		if err := watcher.Add(dir); err != nil {
			l.logger.Warn().Err(err).Str("path", dir).Msg("Failed to watch path")
			return
		}
		watched = append(watched, dir)
	}
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			l.logger.Warn().Err(err).Str("path", path).Msg("Failed to stat policy path")
			continue
		}
		if !info.IsDir() {
			// Editors replace files on save; the parent sees the rename.
			add(filepath.Dir(path))
			continue
		}
		_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err == nil && d.IsDir() {
				add(p)
			}
			return nil
		})
	}
	for _, dir := range extra {
		add(dir)
	}

	l.logger.Info().Strs("paths", watched).Msg("Watching for changes")
	go l.watch(ctx, watcher, paths, onReload)
	return nil
}

func (l *Loader) watch(ctx context.Context, watcher *fsnotify.Watcher, paths []string, onReload func([]Policy) error) {
	defer watcher.Close()

	timer := time.NewTimer(WatchDebounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}
			l.logger.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("File changed")
			timer.Reset(WatchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			l.logger.Error().Err(err).Msg("Watcher error")

		case <-timer.C:
			policies, err := l.LoadFromPaths(ctx, paths)
			if err != nil {
				l.logger.Error().Err(err).Msg("Failed to reload policies")
				continue
			}
			if err := onReload(policies); err != nil {
				l.logger.Error().Err(err).Msg("Failed to apply reloaded policies")
				continue
			}
			l.logger.Info().Int("count", len(policies)).Msg("Policies reloaded")
		}
	}
}
