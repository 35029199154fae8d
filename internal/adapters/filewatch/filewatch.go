// Package filewatch turns filesystem changes into input events.
package filewatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"mewbot/internal/core"
)

// FileEvent reports one change to a watched path.
type FileEvent struct {
	core.BaseInputEvent
	Path string
	Op   string // create, write, remove or rename
	At   time.Time
}

// Config is the filewatch IOConfig. It has no Outputs.
type Config struct {
	Paths     []string `yaml:"paths"`
	Recursive bool     `yaml:"recursive"`
	// Patterns filter on the base name with filepath.Match. Empty matches all.
	Patterns []string `yaml:"patterns"`

	once  sync.Once
	input *Input
}

// Validate checks the paths and patterns.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Paths) == 0 {
		errs = append(errs, errors.New("at least one path is required"))
	}
	for _, p := range c.Paths {
		if _, err := os.Stat(p); err != nil {
			errs = append(errs, fmt.Errorf("path %s: %w", p, err))
		}
	}
	if err := ValidatePatterns(c.Patterns); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Config) Inputs() []core.Input {
	c.once.Do(func() {
		c.input = &Input{paths: c.Paths, recursive: c.Recursive, patterns: c.Patterns}
	})
	return []core.Input{c.input}
}

func (c *Config) Outputs() []core.Output { return nil }

// Input watches the configured paths.
type Input struct {
	core.InputBinding
	paths     []string
	recursive bool
	patterns  []string
	ready     chan struct{}
}

// NewInput builds a watcher Input.
func NewInput(paths []string, recursive bool, patterns ...string) *Input {
	return &Input{paths: paths, recursive: recursive, patterns: patterns}
}

func (*Input) Name() string { return "filewatch" }

func (*Input) ProducesInputs() core.TypeSet {
	return core.Types(core.TypeOf[FileEvent]())
}

// Run watches until ctx is done.
func (i *Input) Run(ctx context.Context) error {
	if !i.Bound() {
		return core.ErrNotBound
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, p := range i.paths {
		if err := i.watch(watcher, p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
	}
	if i.ready != nil {
		close(i.ready)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			if i.recursive && event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addRecursiveWatch(watcher, event.Name); err != nil {
						slog.Warn("filewatch: could not watch new directory", "path", event.Name, "error", err)
					}
				}
			}
			if !i.matches(event.Name) {
				continue
			}
			if err := i.Emit(FileEvent{Path: event.Name, Op: opName(event.Op), At: time.Now()}); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("filewatch: watcher error", "error", err)
		}
	}
}

func (i *Input) watch(watcher *fsnotify.Watcher, path string) error {
	if i.recursive {
		return addRecursiveWatch(watcher, path)
	}
	return watcher.Add(path)
}

func (i *Input) matches(path string) bool {
	return Match(i.patterns, path)
}

// Ops lists the operation names a FileEvent can carry.
var Ops = []string{"create", "write", "remove", "rename"}

// Match reports whether the base name of path matches any of patterns, using
// filepath.Match. No patterns match everything.
func Match(patterns []string, path string) bool {
	if len(patterns) == 0 {
		return true
	}
	base := filepath.Base(path)
	for _, pat := range patterns {
		if ok, _ := filepath.Match(pat, base); ok {
			return true
		}
	}
	return false
}

// ValidatePatterns rejects malformed patterns.
func ValidatePatterns(patterns []string) error {
	var errs []error
	for _, pat := range patterns {
		if _, err := filepath.Match(pat, "x"); err != nil {
			errs = append(errs, fmt.Errorf("pattern %q: %w", pat, err))
		}
	}
	return errors.Join(errs...)
}

func addRecursiveWatch(watcher *fsnotify.Watcher, path string) error {
	return filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if p != path && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return watcher.Add(p)
		}
		return nil
	})
}

func opName(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	default:
		return strings.ToLower(op.String())
	}
}
