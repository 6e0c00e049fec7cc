package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tghamm/mistral-go/function"
)

func newWorkspace(t *testing.T) (*Workspace, *function.Registry) {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"README.md":          "# Weather\nAsk about the weather.\n",
		"cmd/main.go":        "package main\n\nfunc main() {}\n",
		"internal/fc/fc.go":  "package fc\n\n// Forecast returns the weather.\nfunc Forecast() string { return \"sunny\" }\n",
		"internal/fc/doc.md": "weather notes\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	w, err := NewWorkspace(dir)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	r := function.NewRegistry()
	w.Register(r)
	return w, r
}

func invoke[T any](t *testing.T, r *function.Registry, name, args string) T {
	t.Helper()
	out, err := r.Invoke(context.Background(), name, json.RawMessage(args))
	require.NoError(t, err)
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	return v
}

func TestWorkspace_Register(t *testing.T) {
	w, r := newWorkspace(t)

	first := w.Register(r)
	second := w.Register(r)
	require.Len(t, first, 3)
	for i := range first {
		assert.Same(t, first[i], second[i])
	}
	assert.Equal(t, 3, r.Len())

	other, err := NewWorkspace(w.Root())
	require.NoError(t, err)
	defer other.Close()
	other.Register(r)
	assert.Equal(t, 6, r.Len(), "each workspace gets its own declarations")

	fns, err := r.Collect(function.Matching("bound/*/grep"))
	require.NoError(t, err)
	assert.Len(t, fns, 2)
}

func TestReadFile(t *testing.T) {
	_, r := newWorkspace(t)

	tests := []struct {
		name string
		args string
		want ReadOutput
	}{
		{
			name: "whole file",
			args: `{"path": "internal/fc/fc.go"}`,
			want: ReadOutput{Content: "package fc\n\n// Forecast returns the weather.\nfunc Forecast() string { return \"sunny\" }", Lines: 4},
		},
		{
			name: "offset and limit",
			args: `{"path": "internal/fc/fc.go", "offset": 2, "limit": 1}`,
			want: ReadOutput{Content: "// Forecast returns the weather.", Lines: 1, Truncated: true},
		},
		{
			name: "numeric strings are coerced",
			args: `"{\"path\": \"README.md\", \"offset\": \"1\"}"`,
			want: ReadOutput{Content: "Ask about the weather.", Lines: 1},
		},
		{
			name: "leading slash stays in the workspace",
			args: `{"path": "/README.md", "limit": 1}`,
			want: ReadOutput{Content: "# Weather", Lines: 1, Truncated: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, invoke[ReadOutput](t, r, "read_file", tt.args))
		})
	}
}

func TestReadFile_Errors(t *testing.T) {
	_, r := newWorkspace(t)
	ctx := context.Background()

	_, err := r.Invoke(ctx, "read_file", json.RawMessage(`{}`))
	var missing *function.MissingArgumentError
	assert.ErrorAs(t, err, &missing)

	_, err = r.Invoke(ctx, "read_file", json.RawMessage(`{"path": "../secret"}`))
	assert.ErrorContains(t, err, "outside the workspace")

	_, err = r.Invoke(ctx, "read_file", json.RawMessage(`{"path": "nope.txt"}`))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadFile_SymlinkEscape(t *testing.T) {
	w, r := newWorkspace(t)
	secret := filepath.Join(t.TempDir(), "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("hunter2\n"), 0o644))
	if err := os.Symlink(secret, filepath.Join(w.Root(), "leak.txt")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	require.NoError(t, os.Symlink("README.md", filepath.Join(w.Root(), "readme-link.md")))

	out, err := r.Invoke(context.Background(), "read_file", json.RawMessage(`{"path": "leak.txt"}`))
	assert.Error(t, err)
	assert.NotContains(t, out, "hunter2")

	got := invoke[ReadOutput](t, r, "read_file", `{"path": "readme-link.md", "limit": 1}`)
	assert.Equal(t, "# Weather", got.Content)
}

func TestNewWorkspace_MissingDir(t *testing.T) {
	_, err := NewWorkspace(filepath.Join(t.TempDir(), "absent"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestGlob(t *testing.T) {
	_, r := newWorkspace(t)

	got := invoke[GlobOutput](t, r, "glob", `{"pattern": "**/*.go"}`)
	assert.Equal(t, GlobOutput{Files: []string{"cmd/main.go", "internal/fc/fc.go"}, Count: 2}, got)

	got = invoke[GlobOutput](t, r, "glob", `{"pattern": "*", "path": "internal/fc"}`)
	assert.Equal(t, []string{"internal/fc/doc.md", "internal/fc/fc.go"}, got.Files)

	_, err := r.Invoke(context.Background(), "glob", json.RawMessage(`{"pattern": "*", "path": "../.."}`))
	assert.Error(t, err)
}

func TestGrep(t *testing.T) {
	_, r := newWorkspace(t)

	got := invoke[GrepOutput](t, r, "grep", `{"pattern": "(?i)weather"}`)
	assert.Equal(t, 4, got.Count)
	assert.Contains(t, got.Matches, GrepMatch{File: "internal/fc/fc.go", Line: 3, Content: "// Forecast returns the weather."})

	got = invoke[GrepOutput](t, r, "grep", `{"pattern": "weather", "glob": "**/*.go"}`)
	assert.Equal(t, []GrepMatch{{File: "internal/fc/fc.go", Line: 3, Content: "// Forecast returns the weather."}}, got.Matches)

	got = invoke[GrepOutput](t, r, "grep", `{"pattern": "weather", "path": "README.md", "max_matches": 1}`)
	assert.Equal(t, 1, got.Count)
	assert.Equal(t, "README.md", got.Matches[0].File)

	got = invoke[GrepOutput](t, r, "grep", `{"pattern": "tornado"}`)
	assert.Zero(t, got.Count)
	assert.Empty(t, got.Matches)

	_, err := r.Invoke(context.Background(), "grep", json.RawMessage(`{"pattern": "("}`))
	assert.Error(t, err)
}
