package mistral

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Message is one turn of a conversation.
//
// Content is nil when the API sent null. Array content, such as the text
// and thinking blocks of reasoning models, is kept as its compact JSON
// encoding; use Text or ContentBlocks to read it.
type Message struct {
	Role       Role       `json:"role"`
	Content    *string    `json:"content,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// SystemMessage creates a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: &content}
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: &content}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: &content}
}

// ToolMessage creates the message answering call with result.
func ToolMessage(call ToolCall, result string) Message {
	return Message{
		Role:       RoleTool,
		Content:    &result,
		Name:       call.Function.Name,
		ToolCallID: call.ID,
	}
}

// UnmarshalJSON normalizes string, array and null content to Content.
func (m *Message) UnmarshalJSON(data []byte) error {
	type alias Message
	var wire struct {
		alias
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	content, err := NormalizeContent(wire.Content)
	if err != nil {
		return err
	}
	*m = Message(wire.alias)
	m.Content = content
	return nil
}

// ContentString returns Content, or "" when it is nil.
func (m Message) ContentString() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// Text returns the readable text of the message: the content itself, or the
// concatenated text blocks when the content is a block array.
func (m Message) Text() string {
	s := m.ContentString()
	blocks, ok := ContentBlocks(s)
	if !ok {
		return s
	}
	var b strings.Builder
	for _, blk := range blocks {
		if blk.Type == "text" {
			b.WriteString(blk.Text)
		}
	}
	return b.String()
}

// MalformedContentError is returned when content is neither a string, an
// array nor null.
type MalformedContentError struct {
	Kind string
}

func (e *MalformedContentError) Error() string {
	return fmt.Sprintf("malformed message content: unexpected JSON %s", e.Kind)
}

// NormalizeContent converts a raw content value to its canonical string
// form. Strings are returned unchanged, arrays are re-encoded as compact
// JSON, and null or absent content yields nil.
func NormalizeContent(raw json.RawMessage) (*string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if !gjson.ValidBytes(trimmed) {
		return nil, &MalformedContentError{Kind: "text"}
	}

	v := gjson.ParseBytes(trimmed)
	switch {
	case v.Type == gjson.String:
		s := v.Str
		return &s, nil
	case v.IsArray():
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(v.Raw)); err != nil {
			return nil, &MalformedContentError{Kind: "array"}
		}
		s := buf.String()
		return &s, nil
	case v.Type == gjson.Null:
		return nil, nil
	case v.Type == gjson.Number:
		return nil, &MalformedContentError{Kind: "number"}
	case v.Type == gjson.True, v.Type == gjson.False:
		return nil, &MalformedContentError{Kind: "boolean"}
	default:
		return nil, &MalformedContentError{Kind: "object"}
	}
}

// ContentBlock is one element of array content.
type ContentBlock struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	Thinking []ContentBlock `json:"thinking,omitempty"`
}

// ContentBlocks decodes normalized array content. It reports false when s
// does not hold a block array.
func ContentBlocks(s string) ([]ContentBlock, bool) {
	if !strings.HasPrefix(strings.TrimSpace(s), "[") || !gjson.Valid(s) {
		return nil, false
	}
	var blocks []ContentBlock
	if err := json.Unmarshal([]byte(s), &blocks); err != nil {
		return nil, false
	}
	return blocks, true
}
