// Package tools provides ready-made functions that let the model inspect a
// local directory tree: reading files, listing them by glob and searching
// their contents.
package tools

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/tghamm/mistral-go/function"
)

const defaultMaxMatches = 100

// Workspace confines the file functions to a root directory. Paths given by
// the model are relative to the root and may not leave it, neither through
// ".." nor through symlinks that point outside the root.
type Workspace struct {
	root   string
	handle *os.Root
	fsys   fs.FS
}

// NewWorkspace opens a workspace rooted at dir. Close releases it.
func NewWorkspace(dir string) (*Workspace, error) {
	handle, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("opening workspace: %w", err)
	}
	return &Workspace{root: filepath.Clean(dir), handle: handle, fsys: handle.FS()}, nil
}

// Close releases the workspace directory.
func (w *Workspace) Close() error {
	return w.handle.Close()
}

// Root returns the workspace directory.
func (w *Workspace) Root() string {
	return w.root
}

// Register declares the workspace functions on r, bound to w. Registering
// the same workspace twice returns the cached declarations.
func (w *Workspace) Register(r *function.Registry) []*function.Function {
	return []*function.Function{
		r.Bound(w, "read_file", "Read a text file. Supports reading a range of lines.",
			w.readFile,
			function.String("path", "File path, relative to the workspace root", true),
			function.Integer("offset", "Line offset to start from (0-based)", false),
			function.Integer("limit", "Max lines to read (0 = all)", false),
		),
		r.Bound(w, "glob", "Find files matching a glob pattern. Supports ** for recursive matching.",
			w.glob,
			function.String("pattern", "Glob pattern, e.g. **/*.go", true),
			function.String("path", "Directory to search from (default: workspace root)", false).WithDefault("."),
		),
		r.Bound(w, "grep", "Search files for a regular expression. Returns matching lines with file and line number.",
			w.grep,
			function.String("pattern", "Regular expression to search for", true),
			function.String("path", "File or directory to search in (default: workspace root)", false).WithDefault("."),
			function.String("glob", "File filter, e.g. **/*.go", false).WithDefault("**/*"),
			function.Integer("max_matches", "Maximum number of matches to return", false).WithDefault(defaultMaxMatches),
		),
	}
}

// resolve maps a model-supplied path onto the workspace filesystem.
func (w *Workspace) resolve(name string) (string, error) {
	name = strings.TrimPrefix(path.Clean(filepath.ToSlash(name)), "/")
	if name == "" {
		name = "."
	}
	if !fs.ValidPath(name) {
		return "", fmt.Errorf("path %q is outside the workspace", name)
	}
	return name, nil
}
