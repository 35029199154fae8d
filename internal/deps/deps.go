// Package deps installs the Python requirement files found in a project tree.
package deps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// execCommandContext allows mocking of exec.CommandContext for testing.
var execCommandContext = exec.CommandContext

// DefaultCommand is the installer used when none is configured.
var DefaultCommand = []string{"python3", "-m", "pip"}

var skipDirs = map[string]bool{
	"node_modules": true,
	"venv":         true,
	"vendor":       true,
}

// Gather lists the requirement files under root: requirements-*.txt in root
// itself, then every requirements.txt found walking the tree. Hidden
// directories and dependency folders are not entered.
func Gather(root string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(root, "requirements-*.txt"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}
	for _, m := range matches {
		add(m)
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == "requirements.txt" {
			add(path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return files, nil
}

// Args turns requirement files into installer arguments.
func Args(files []string) []string {
	args := make([]string, 0, 2*len(files))
	for _, f := range files {
		args = append(args, "-r", f)
	}
	return args
}

// Installer runs a pip-compatible command over the requirement files.
type Installer struct {
	Command []string
	Stdout  io.Writer
	Stderr  io.Writer
	Logger  *slog.Logger
}

// Install installs every requirement file under root. Having nothing to
// install counts as success.
func (i Installer) Install(ctx context.Context, root string) (bool, error) {
	logger := i.Logger
	if logger == nil {
		logger = slog.Default()
	}
	command := i.Command
	if len(command) == 0 {
		command = DefaultCommand
	}

	files, err := Gather(root)
	if err != nil {
		return false, err
	}
	if len(files) == 0 {
		logger.Info("No requirement files found", "root", root)
		return true, nil
	}

	args := append(append([]string{}, command[1:]...), "install")
	args = append(args, Args(files)...)
	cmd := execCommandContext(ctx, command[0], args...)
	cmd.Stdout = writerOr(i.Stdout, os.Stdout)
	cmd.Stderr = writerOr(i.Stderr, os.Stderr)

	logger.Info("Installing requirements", "command", command[0], "files", len(files))
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return false, fmt.Errorf("installer exited with status %d", exitErr.ExitCode())
		}
		return false, fmt.Errorf("failed to run installer: %w", err)
	}
	return true, nil
}

func writerOr(w, def io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return def
}
