package mistral

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/tghamm/mistral-go/function"
)

var toolCallIDPattern = regexp.MustCompile(`^[a-zA-Z0-9]{9}$`)

// ValidToolCallID reports whether id has the nine alphanumeric characters
// the API requires.
func ValidToolCallID(id string) bool {
	return toolCallIDPattern.MatchString(id)
}

// NewToolCallID returns a fresh id accepted by ValidToolCallID.
func NewToolCallID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
}

// ResolvedToolCall is a tool call from a response matched to the function
// declared on the request.
type ResolvedToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage

	// ChoiceIndex is the index of the choice carrying the call.
	ChoiceIndex int
	Function    *function.Function
}

// Call returns the wire form of the call.
func (tc ResolvedToolCall) Call() ToolCall {
	return ToolCall{
		ID:       tc.ID,
		Type:     "function",
		Function: FunctionCall{Name: tc.Name, Arguments: tc.Arguments},
	}
}

// Invoke runs the matched function with the call's arguments.
func (tc ResolvedToolCall) Invoke(ctx context.Context) (string, error) {
	if tc.Function == nil {
		return "", &function.UnknownToolError{Name: tc.Name}
	}
	return tc.Function.Invoke(ctx, tc.Arguments)
}

// ResolveToolCalls matches the tool calls of every choice in resp against
// the tools declared on req by function name and records the matches in
// resp.ToolCalls. Calls naming no declared tool remain visible on their
// message or delta only. req is not modified.
func ResolveToolCalls(resp *ChatCompletionResponse, req *ChatCompletionRequest) {
	if resp == nil || req == nil {
		return
	}
	for _, choice := range resp.Choices {
		for _, msg := range []*Message{choice.Message, choice.Delta} {
			if msg == nil {
				continue
			}
			for _, call := range msg.ToolCalls {
				fn, ok := req.tool(call.Function.Name)
				if !ok {
					continue
				}
				resp.ToolCalls = append(resp.ToolCalls, ResolvedToolCall{
					ID:          call.ID,
					Name:        call.Function.Name,
					Arguments:   call.Function.Arguments,
					ChoiceIndex: choice.Index,
					Function:    fn,
				})
			}
		}
	}
}

// ExecuteToolCalls invokes every tool call of the first choice of resp and
// returns the tool messages answering them, in call order. It stops at the
// first failure, returning the messages produced so far: calls naming a tool
// the request did not declare fail with *function.UnknownToolError, and
// function failures are wrapped with the call id.
func ExecuteToolCalls(ctx context.Context, resp *ChatCompletionResponse) ([]Message, error) {
	msg := resp.Message()
	if msg == nil || len(msg.ToolCalls) == 0 {
		return nil, nil
	}

	resolved := make(map[string]ResolvedToolCall, len(resp.ToolCalls))
	for _, tc := range resp.ToolCalls {
		if tc.ChoiceIndex == resp.Choices[0].Index {
			resolved[tc.ID+"\x00"+tc.Name] = tc
		}
	}

	results := make([]Message, 0, len(msg.ToolCalls))
	for _, call := range msg.ToolCalls {
		tc, ok := resolved[call.ID+"\x00"+call.Function.Name]
		if !ok {
			return results, &function.UnknownToolError{Name: call.Function.Name}
		}

		out, err := tc.Invoke(ctx)
		if err != nil {
			return results, fmt.Errorf("tool call %s: %w", call.ID, err)
		}
		results = append(results, ToolMessage(call, out))
	}
	return results, nil
}
