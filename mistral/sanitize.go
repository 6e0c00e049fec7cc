package mistral

import (
	"slices"
	"strings"
)

// Placeholder is the content of messages inserted to satisfy the API's
// sequencing rules. It is a zero-width space.
const Placeholder = "\u200b"

// SanitizeMessages rewrites a message list into a sequence the API accepts.
// The steps run in order:
//
//  1. A placeholder user message is appended when no user or assistant
//     message exists.
//  2. All system messages are joined with newlines into one system message
//     at index 0.
//  3. Tool call ids that are not nine alphanumeric characters are stripped.
//     Tool messages left without an id, and assistant messages left without
//     tool calls, are dropped. Step 1 is repeated if this removed the last
//     user or assistant message.
//  4. Runs of consecutive user messages are joined with newlines.
//  5. A placeholder assistant message is inserted after every tool message
//     not already followed by an assistant message.
//  6. A placeholder user message is appended when the list ends on an
//     assistant message.
//
// The input is never modified and the function never fails.
func SanitizeMessages(messages []Message) []Message {
	out := slices.Clone(messages)
	out = ensureTurn(out)
	out = consolidateSystem(out)
	out = dropInvalidToolCalls(out)
	out = ensureTurn(out)
	out = mergeUserRuns(out)
	out = fillToolGaps(out)
	out = guardTrailingAssistant(out)
	return out
}

func ensureTurn(msgs []Message) []Message {
	for _, m := range msgs {
		if m.Role == RoleUser || m.Role == RoleAssistant {
			return msgs
		}
	}
	return append(msgs, placeholder(RoleUser))
}

func consolidateSystem(msgs []Message) []Message {
	var parts []string
	rest := make([]Message, 0, len(msgs)+1)
	for _, m := range msgs {
		if m.Role == RoleSystem {
			if m.Content != nil {
				parts = append(parts, *m.Content)
			}
			continue
		}
		rest = append(rest, m)
	}
	if len(parts) == 0 {
		return rest
	}
	return append([]Message{SystemMessage(strings.Join(parts, "\n"))}, rest...)
}

func dropInvalidToolCalls(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.ToolCallID != "" && !ValidToolCallID(m.ToolCallID) {
			m.ToolCallID = ""
		}
		if m.Role == RoleTool && m.ToolCallID == "" {
			continue
		}

		if len(m.ToolCalls) > 0 {
			valid := make([]ToolCall, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				if ValidToolCallID(tc.ID) {
					valid = append(valid, tc)
				}
			}
			if len(valid) == 0 {
				if m.Role == RoleAssistant {
					continue
				}
				valid = nil
			}
			m.ToolCalls = valid
		}
		out = append(out, m)
	}
	return out
}

func mergeUserRuns(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		n := len(out)
		if n > 0 && m.Role == RoleUser && out[n-1].Role == RoleUser {
			joined := out[n-1].ContentString() + "\n" + m.ContentString()
			out[n-1].Content = &joined
			continue
		}
		out = append(out, m)
	}
	return out
}

func fillToolGaps(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for i, m := range msgs {
		out = append(out, m)
		if m.Role != RoleTool {
			continue
		}
		if i+1 == len(msgs) || msgs[i+1].Role != RoleAssistant {
			out = append(out, placeholder(RoleAssistant))
		}
	}
	return out
}

func guardTrailingAssistant(msgs []Message) []Message {
	if len(msgs) > 0 && msgs[len(msgs)-1].Role == RoleAssistant {
		return append(msgs, placeholder(RoleUser))
	}
	return msgs
}

func placeholder(role Role) Message {
	content := Placeholder
	return Message{Role: role, Content: &content}
}
