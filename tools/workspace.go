package tools

import (
	"context"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/mattn/go-shellwords"
	"github.com/mmuhlariholdings/hlavi-agent/config"
	"github.com/mmuhlariholdings/hlavi-agent/errors"
)

// Workspace is the directory tree actions operate on, with the access
// rules from the workspace config. Paths given to its methods are relative
// to the root and use forward slashes.
type Workspace struct {
	root            string
	hidden          []string
	readOnly        []string
	allowedCommands []*regexp.Regexp
}

// NewWorkspace resolves cfg.Root and checks the access patterns. The
// agent's own directory is always hidden.
func NewWorkspace(cfg config.WorkspaceConfig) (*Workspace, error) {
	root := cfg.Root
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "could not resolve workspace root '%s'", root)
	}

	ws := &Workspace{
		root:     abs,
		hidden:   append([]string{config.Dir, config.Dir + "/**"}, cfg.FilesystemAccess.Hidden...),
		readOnly: append([]string(nil), cfg.FilesystemAccess.ReadOnly...),
	}
	for _, pattern := range append(append([]string(nil), ws.hidden...), ws.readOnly...) {
		if !doublestar.ValidatePattern(pattern) {
			return nil, errors.Config("invalid glob pattern '" + pattern + "'")
		}
	}
	// Patterns must match the whole command line, binary included.
	for _, pattern := range cfg.AllowedCommands {
		re, err := regexp.Compile(pattern)
		if err == nil {
			re, err = regexp.Compile("^(?:" + pattern + ")$")
		}
		if err != nil {
			// Not a valid regex, so only an exact match is allowed.
			re = regexp.MustCompile("^" + regexp.QuoteMeta(pattern) + "$")
		}
		ws.allowedCommands = append(ws.allowedCommands, re)
	}
	return ws, nil
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string { return w.root }

// resolve cleans p and returns its absolute path and its slash-separated
// path relative to the root. Paths outside the root are rejected.
func (w *Workspace) resolve(p string) (string, string, error) {
	if strings.TrimSpace(p) == "" {
		return "", "", errors.New("empty path")
	}
	rel := path.Clean(filepath.ToSlash(p))
	if path.IsAbs(rel) || filepath.IsAbs(p) {
		return "", "", errors.New("path '%s' must be relative to the workspace root", p)
	}
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", "", errors.New("path '%s' escapes the workspace root", p)
	}
	return filepath.Join(w.root, filepath.FromSlash(rel)), rel, nil
}

func (w *Workspace) checkRead(rel string) error {
	if isPathRestricted(rel, w.hidden) {
		return errors.New("access denied: path '%s' is hidden", rel)
	}
	return nil
}

func (w *Workspace) checkWrite(rel string) error {
	if err := w.checkRead(rel); err != nil {
		return err
	}
	if isPathRestricted(rel, w.readOnly) {
		return errors.New("access denied: path '%s' is read-only", rel)
	}
	return nil
}

// ReadFile returns the content of a visible file.
func (w *Workspace) ReadFile(p string) (string, error) {
	abs, rel, err := w.resolve(p)
	if err != nil {
		return "", err
	}
	if err := w.checkRead(rel); err != nil {
		return "", err
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read file '%s'", rel)
	}
	return string(content), nil
}

// WriteFile replaces the file's content, creating parent directories as
// needed. It reports whether the file was newly created.
func (w *Workspace) WriteFile(p, content string) (created bool, err error) {
	abs, rel, err := w.resolve(p)
	if err != nil {
		return false, err
	}
	if err := w.checkWrite(rel); err != nil {
		return false, err
	}

	info, statErr := os.Stat(abs)
	switch {
	case statErr == nil && info.IsDir():
		return false, errors.New("path '%s' is a directory", rel)
	case statErr == nil:
		created = false
	case os.IsNotExist(statErr):
		created = true
	default:
		return false, errors.Wrapf(statErr, "failed to stat '%s'", rel)
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return false, errors.Wrapf(err, "failed to create parent of '%s'", rel)
	}
	if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
		return false, errors.Wrapf(err, "failed to write to file '%s'", rel)
	}
	return created, nil
}

// DeleteFile removes a single file.
func (w *Workspace) DeleteFile(p string) error {
	abs, rel, err := w.resolve(p)
	if err != nil {
		return err
	}
	if err := w.checkWrite(rel); err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return errors.Wrapf(err, "failed to delete '%s'", rel)
	}
	if info.IsDir() {
		return errors.New("path '%s' is a directory", rel)
	}
	if err := os.Remove(abs); err != nil {
		return errors.Wrapf(err, "failed to delete '%s'", rel)
	}
	return nil
}

// RunCommand runs an allowed command in the root and returns its combined
// output. Arguments are split with shell quoting rules but no shell runs.
func (w *Workspace) RunCommand(ctx context.Context, command string) (string, error) {
	parts, err := shellwords.Parse(command)
	if err != nil {
		return "", errors.Wrapf(err, "could not parse command '%s'", command)
	}
	if len(parts) == 0 {
		return "", errors.New("empty command")
	}
	if !isCommandAllowed(command, w.allowedCommands) {
		return "", errors.New("command '%s' is not in the list of allowed commands", command)
	}

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Dir = w.root
	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), errors.Wrapf(err, "command execution failed. Output:\n%s", string(output))
	}
	return string(output), nil
}
