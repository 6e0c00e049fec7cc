package mistral

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Chat sends a non-streaming chat completion request. Tool calls in the
// response that name a tool declared on req are collected in
// resp.ToolCalls.
//
// Example:
//
//	client := mistral.New()
//	req := mistral.NewChatRequest(mistral.ModelMistralSmall,
//	    mistral.UserMessage("How many moons does Mars have?"),
//	)
//	resp, err := client.Chat(ctx, req)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(resp.Message().Text())
func (c *Client) Chat(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	wire, err := c.prepare(ctx, req, false)
	if err != nil {
		return nil, err
	}

	body, err := c.do(ctx, http.MethodPost, "chat/completions", wire)
	if err != nil {
		return nil, err
	}

	resp, err := DecodeChatResponse(body)
	if err != nil {
		return nil, err
	}
	ResolveToolCalls(resp, req)
	return resp, nil
}

// DecodeChatResponse parses a completion body or stream chunk.
func DecodeChatResponse(data []byte) (*ChatCompletionResponse, error) {
	var resp ChatCompletionResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return &resp, nil
}

// DecodeEvent parses one stream event. Events carrying a type are error
// frames and are returned as an *APIError.
func DecodeEvent(ev Event) (*ChatCompletionResponse, error) {
	if ev.Type != "" {
		if apiErr, ok := parseErrorBody(0, []byte(ev.Data)); ok {
			if apiErr.Type == "" {
				apiErr.Type = ev.Type
			}
			return nil, apiErr
		}
		return nil, &APIError{Type: ev.Type, Message: ev.Data}
	}
	return DecodeChatResponse([]byte(ev.Data))
}
