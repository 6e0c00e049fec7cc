package mistral

import (
	"context"
	"fmt"
	"slices"
)

const defaultMaxToolRounds = 8

// Conversation runs tool round trips: it sends the history, executes the
// tool calls the model requests, appends the calls and their results, and
// resubmits until the model answers without calling a tool.
//
// Example:
//
//	conv := mistral.NewConversation(client, mistral.NewChatRequest(mistral.ModelMistralLarge))
//	conv.Request.Tools = mistral.Tools(getWeather)
//	conv.Request.ToolChoice = mistral.ToolChoiceAuto
//
//	resp, err := conv.Send(ctx, mistral.UserMessage("What's the weather in Paris?"))
//	if err != nil {
//	    return err
//	}
//	fmt.Println(resp.Message().Text())
type Conversation struct {
	client *Client

	// Request is the template for every call; its Messages hold the
	// history and grow with each round.
	Request *ChatCompletionRequest

	// MaxToolRounds bounds the number of tool executions per Send.
	MaxToolRounds int
}

// NewConversation creates a conversation from a request template. The
// template is copied; later edits to tmpl do not affect the conversation.
func NewConversation(client *Client, tmpl *ChatCompletionRequest) *Conversation {
	req := *tmpl
	req.Messages = slices.Clone(tmpl.Messages)
	req.Tools = slices.Clone(tmpl.Tools)
	return &Conversation{
		client:        client,
		Request:       &req,
		MaxToolRounds: defaultMaxToolRounds,
	}
}

// Messages returns the conversation history.
func (c *Conversation) Messages() []Message {
	return c.Request.Messages
}

// Send appends msgs to the history and completes the conversation,
// running tool calls until the model replies without one. The final
// assistant message is appended to the history. When a tool call fails,
// none of that round's results are appended, so the history ends on the
// assistant message whose calls went unanswered.
func (c *Conversation) Send(ctx context.Context, msgs ...Message) (*ChatCompletionResponse, error) {
	c.Request.Messages = append(c.Request.Messages, msgs...)

	for round := 0; ; round++ {
		resp, err := c.client.Chat(ctx, c.Request)
		if err != nil {
			return nil, err
		}

		reply := resp.Message()
		if reply == nil {
			return nil, fmt.Errorf("completion %s has no choices", resp.ID)
		}
		c.Request.Messages = append(c.Request.Messages, *reply)

		if len(reply.ToolCalls) == 0 {
			return resp, nil
		}
		if round >= c.MaxToolRounds {
			return resp, fmt.Errorf("%w: limit %d", ErrTooManyToolRounds, c.MaxToolRounds)
		}

		results, err := ExecuteToolCalls(ctx, resp)
		if err != nil {
			return resp, err
		}
		c.Request.Messages = append(c.Request.Messages, results...)
		c.client.logger.DebugContext(ctx, "executed tool calls", "round", round+1, "calls", len(results))
	}
}
