package tools

import (
	"context"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/mmuhlariholdings/hlavi-agent/errors"
)

// ReadFileTool implements the tool for reading a file.
type ReadFileTool struct {
	ws *Workspace
}

func (t *ReadFileTool) Name() string { return "read_file" }
func (t *ReadFileTool) Description() string {
	return "Reads the entire content of a file. Args: path (string)."
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	p, ok := args["path"].(string)
	if !ok {
		return "", errors.New("missing or invalid 'path' argument")
	}
	return t.ws.ReadFile(p)
}

// ListFilesTool lists the visible files under a directory.
type ListFilesTool struct {
	ws *Workspace
}

func (t *ListFilesTool) Name() string { return "list_files" }
func (t *ListFilesTool) Description() string {
	return "Lists files under a directory, one relative path per line. Args: path (string, optional, defaults to the root)."
}

func (t *ListFilesTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	dir, _ := args["path"].(string)
	if dir == "" {
		dir = "."
	}
	abs, rel, err := t.ws.resolve(dir)
	if err != nil {
		return "", err
	}
	if err := t.ws.checkRead(rel); err != nil {
		return "", err
	}

	var files []string
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		r, err := filepath.Rel(t.ws.root, p)
		if err != nil {
			return err
		}
		r = filepath.ToSlash(r)
		if r != "." && isPathRestricted(r, t.ws.hidden) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			files = append(files, path.Clean(r))
		}
		return nil
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to list '%s'", rel)
	}
	return strings.Join(files, "\n"), nil
}
