package estate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// reloadDebounce is how long to wait after a file event before reloading,
// collapsing editor write bursts into one reload.
const reloadDebounce = 250 * time.Millisecond

// Directory maps worker kinds to the subjects their requests are published
// to. Defaults follow the estate.request.<kind> convention; a YAML file can
// override individual kinds, and Watch hot-reloads the file on change.
//
// The coordinator takes a Directory by injection so routing stays explicit
// and testable.
type Directory struct {
	mu       sync.RWMutex
	subjects map[Kind]string
	path     string
	logger   *slog.Logger

	watcher *fsnotify.Watcher
}

// directoryFile is the YAML shape of a directory override file:
//
//	workers:
//	  research: "estate.request.research-v2"
//	  probe: "estate.request.probe-staging"
type directoryFile struct {
	Workers map[string]string `yaml:"workers"`
}

// NewDirectory returns a directory with default subjects for every kind.
// path may be empty when no override file is used.
func NewDirectory(path string, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	subjects := make(map[Kind]string, len(AllKinds))
	for _, k := range AllKinds {
		subjects[k] = RequestSubject(k)
	}
	return &Directory{
		subjects: subjects,
		path:     path,
		logger:   logger,
	}
}

// Lookup returns the request subject for a kind.
func (d *Directory) Lookup(k Kind) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	subject, ok := d.subjects[k]
	if !ok {
		return "", fmt.Errorf("no directory entry for worker kind %q", k)
	}
	return subject, nil
}

// Load reads the override file and applies it on top of the defaults.
// A missing file leaves the defaults in place; a malformed file is an error
// and the previous mapping stays active.
func (d *Directory) Load() error {
	if d.path == "" {
		return nil
	}

	data, err := os.ReadFile(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read worker directory %s: %w", d.path, err)
	}

	var file directoryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse worker directory %s: %w", d.path, err)
	}

	overrides := make(map[Kind]string, len(file.Workers))
	for name, subject := range file.Workers {
		k := Kind(name)
		if !k.Valid() {
			return fmt.Errorf("worker directory %s: unknown kind %q", d.path, name)
		}
		if subject == "" {
			return fmt.Errorf("worker directory %s: empty subject for kind %q", d.path, name)
		}
		overrides[k] = subject
	}

	d.mu.Lock()
	for _, k := range AllKinds {
		d.subjects[k] = RequestSubject(k)
	}
	for k, subject := range overrides {
		d.subjects[k] = subject
	}
	d.mu.Unlock()

	d.logger.Info("Worker directory loaded",
		"path", d.path,
		"overrides", len(overrides))
	return nil
}

// Watch reloads the override file whenever it changes, until ctx is
// canceled. The parent directory is watched so the file can be replaced
// atomically (rename over).
func (d *Directory) Watch(ctx context.Context) error {
	if d.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create directory watcher: %w", err)
	}

	dir := filepath.Dir(d.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	d.watcher = watcher
	go d.watchLoop(ctx)

	d.logger.Info("Worker directory watch started", "path", d.path)
	return nil
}

// Close stops the watcher if one is running.
func (d *Directory) Close() error {
	if d.watcher == nil {
		return nil
	}
	return d.watcher.Close()
}

func (d *Directory) watchLoop(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	target := filepath.Clean(d.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
				timerC = timer.C
			} else {
				timer.Reset(reloadDebounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			if err := d.Load(); err != nil {
				d.logger.Error("Worker directory reload failed, keeping previous mapping",
					"path", d.path,
					"error", err)
			}

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.logger.Error("Worker directory watcher error", "error", err)
		}
	}
}
