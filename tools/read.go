package tools

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/tghamm/mistral-go/function"
)

// ReadOutput is the result of read_file.
type ReadOutput struct {
	Content   string `json:"content"`
	Lines     int    `json:"lines"`
	Truncated bool   `json:"truncated"`
}

func (w *Workspace) readFile(ctx context.Context, args function.Args) (any, error) {
	name, err := args.String("path")
	if err != nil {
		return nil, err
	}
	offset, err := args.Int("offset")
	if err != nil {
		return nil, err
	}
	limit, err := args.Int("limit")
	if err != nil {
		return nil, err
	}

	name, err = w.resolve(name)
	if err != nil {
		return nil, err
	}
	file, err := w.fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	defer func() { _ = file.Close() }()

	var out ReadOutput
	var lines []string
	scanner := bufio.NewScanner(file)
	for n := int64(0); scanner.Scan(); n++ {
		if n < offset {
			continue
		}
		if limit > 0 && int64(len(lines)) >= limit {
			out.Truncated = true
			break
		}
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	out.Content = strings.Join(lines, "\n")
	out.Lines = len(lines)
	return out, nil
}
