// Package mcp exposes the tools of a Model Context Protocol server as
// functions the model can call.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tghamm/mistral-go/function"
	"github.com/tghamm/mistral-go/schema"
)

// Client is a session with one MCP server.
type Client struct {
	session *mcp.ClientSession
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures the MCP client.
type Option func(*clientConfig)

type clientConfig struct {
	timeout time.Duration
	logger  *slog.Logger
}

// WithTimeout bounds each tool call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = d
	}
}

// WithLogger sets the logger for tool calls.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// NewStdioClient starts command and speaks MCP with it over stdio.
//
// Example:
//
//	client, err := mcp.NewStdioClient(ctx, "./weather-server", nil)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	fns, err := client.Functions(ctx)
func NewStdioClient(ctx context.Context, command string, args []string, opts ...Option) (*Client, error) {
	return Connect(ctx, &mcp.CommandTransport{Command: exec.Command(command, args...)}, opts...)
}

// Connect opens a session over an arbitrary transport.
func Connect(ctx context.Context, transport mcp.Transport, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		timeout: 30 * time.Second,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	mcpClient := mcp.NewClient(&mcp.Implementation{
		Name:    "mistral-go",
		Version: "0.1.0",
	}, nil)

	session, err := mcpClient.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to MCP server: %w", err)
	}

	return &Client{
		session: session,
		timeout: cfg.timeout,
		logger:  cfg.logger,
	}, nil
}

// Functions lists the server's tools as functions. The server's input
// schema is declared as-is; invoking a function calls the tool.
func (c *Client) Functions(ctx context.Context) ([]*function.Function, error) {
	var fns []*function.Function
	for tool, err := range c.session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("listing MCP tools: %w", err)
		}
		fns = append(fns, c.function(tool))
	}
	return fns, nil
}

// Register adds the server's tools to r and returns how many were added.
func (c *Client) Register(ctx context.Context, r *function.Registry) (int, error) {
	fns, err := c.Functions(ctx)
	if err != nil {
		return 0, err
	}
	r.Add(fns...)
	return len(fns), nil
}

// Close ends the session.
func (c *Client) Close() error {
	return c.session.Close()
}

func (c *Client) function(tool *mcp.Tool) *function.Function {
	name := tool.Name
	fn := function.New(name, tool.Description, func(ctx context.Context, args function.Args) (any, error) {
		return c.call(ctx, name, args)
	})

	raw, err := json.Marshal(tool.InputSchema)
	if err != nil {
		raw = nil
	}
	return fn.WithSchema(schema.FromJSON(raw))
}

func (c *Client) call(ctx context.Context, name string, args function.Args) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	c.logger.DebugContext(ctx, "calling MCP tool", "tool", name, "args", args.Len())

	result, err := c.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args.Map(),
	})
	if err != nil {
		return "", fmt.Errorf("calling MCP tool %s: %w", name, err)
	}

	text := flatten(result.Content)
	if result.IsError {
		return "", fmt.Errorf("MCP tool %s: %s", name, text)
	}
	return text, nil
}

// flatten renders tool result content as text, one item per line.
// Images and resources are described rather than inlined.
func flatten(content []mcp.Content) string {
	var parts []string
	for _, c := range content {
		switch item := c.(type) {
		case *mcp.TextContent:
			parts = append(parts, item.Text)
		case *mcp.ImageContent:
			parts = append(parts, fmt.Sprintf("[Image: %s, %d bytes]", item.MIMEType, len(item.Data)))
		case *mcp.EmbeddedResource:
			switch {
			case item.Resource == nil:
				parts = append(parts, "[Resource: embedded]")
			case item.Resource.Text != "":
				parts = append(parts, item.Resource.Text)
			default:
				parts = append(parts, fmt.Sprintf("[Resource: %s]", item.Resource.URI))
			}
		}
	}
	return strings.Join(parts, "\n")
}

// FunctionsFromMCP starts an MCP server and returns its tools as functions
// along with a cleanup that ends the session.
//
// Example:
//
//	fns, cleanup, err := mcp.FunctionsFromMCP(ctx, "./weather-server", nil)
//	if err != nil {
//	    return err
//	}
//	defer cleanup()
//
//	req.Tools = mistral.Tools(fns...)
func FunctionsFromMCP(ctx context.Context, command string, args []string, opts ...Option) ([]*function.Function, func() error, error) {
	client, err := NewStdioClient(ctx, command, args, opts...)
	if err != nil {
		return nil, nil, err
	}

	fns, err := client.Functions(ctx)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return fns, client.Close, nil
}
