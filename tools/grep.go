package tools

import (
	"bufio"
	"context"
	"io/fs"
	"regexp"

	"github.com/tghamm/mistral-go/function"
)

// GrepOutput is the result of grep.
type GrepOutput struct {
	Matches []GrepMatch `json:"matches"`
	Count   int         `json:"count"`
}

// GrepMatch is one matching line.
type GrepMatch struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Content string `json:"content"`
}

func (w *Workspace) grep(ctx context.Context, args function.Args) (any, error) {
	pattern, err := args.String("pattern")
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	target, err := args.String("path")
	if err != nil {
		return nil, err
	}
	glob, err := args.String("glob")
	if err != nil {
		return nil, err
	}
	maxMatches, err := args.Int("max_matches")
	if err != nil {
		return nil, err
	}
	if maxMatches <= 0 {
		maxMatches = defaultMaxMatches
	}

	target, err = w.resolve(target)
	if err != nil {
		return nil, err
	}
	info, err := fs.Stat(w.fsys, target)
	if err != nil {
		return nil, err
	}

	files := []string{target}
	if info.IsDir() {
		if files, err = w.match(target, glob, true); err != nil {
			return nil, err
		}
	}

	out := GrepOutput{Matches: []GrepMatch{}}
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		left := int(maxMatches) - len(out.Matches)
		if left <= 0 {
			break
		}
		found, err := w.searchFile(name, re, left)
		if err != nil {
			// Unreadable files are skipped.
			continue
		}
		out.Matches = append(out.Matches, found...)
	}
	out.Count = len(out.Matches)
	return out, nil
}

func (w *Workspace) searchFile(name string, re *regexp.Regexp, maxMatches int) ([]GrepMatch, error) {
	file, err := w.fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var matches []GrepMatch
	scanner := bufio.NewScanner(file)
	for line := 1; scanner.Scan(); line++ {
		if !re.MatchString(scanner.Text()) {
			continue
		}
		matches = append(matches, GrepMatch{File: name, Line: line, Content: scanner.Text()})
		if len(matches) >= maxMatches {
			break
		}
	}
	return matches, scanner.Err()
}
