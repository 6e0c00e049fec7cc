package tools

import (
	"context"
	"io/fs"
	"path"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/tghamm/mistral-go/function"
)

// GlobOutput is the result of glob. Files are relative to the workspace root.
type GlobOutput struct {
	Files []string `json:"files"`
	Count int      `json:"count"`
}

func (w *Workspace) glob(ctx context.Context, args function.Args) (any, error) {
	pattern, err := args.String("pattern")
	if err != nil {
		return nil, err
	}
	dir, err := args.String("path")
	if err != nil {
		return nil, err
	}

	files, err := w.match(dir, pattern, false)
	if err != nil {
		return nil, err
	}
	return GlobOutput{Files: files, Count: len(files)}, nil
}

// match lists the entries under dir matching pattern, relative to the root.
func (w *Workspace) match(dir, pattern string, filesOnly bool) ([]string, error) {
	dir, err := w.resolve(dir)
	if err != nil {
		return nil, err
	}
	sub, err := fs.Sub(w.fsys, dir)
	if err != nil {
		return nil, err
	}

	var opts []doublestar.GlobOption
	if filesOnly {
		opts = append(opts, doublestar.WithFilesOnly())
	}
	matches, err := doublestar.Glob(sub, pattern, opts...)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(matches))
	for _, m := range matches {
		files = append(files, path.Join(dir, m))
	}
	return files, nil
}
