package mistral

import (
	"context"
	"io"
	"iter"
	"log/slog"
	"slices"
	"strings"
)

// Update is one incremental piece of a streamed completion: either the
// delta of a single choice, or the usage totals of the event that carried
// them.
type Update struct {
	CompletionID string
	Model        string
	ChoiceIndex  int
	Role         Role
	Text         string
	FinishReason FinishReason
	ToolCalls    []ToolCall

	// Usage is set on usage-only updates.
	Usage *Usage

	// Raw is the event the update was derived from.
	Raw *ChatCompletionResponse
}

// UpdatesOf maps one parsed stream event to its updates: one per choice,
// then one carrying the usage when the event reports it.
func UpdatesOf(resp *ChatCompletionResponse) []Update {
	updates := make([]Update, 0, len(resp.Choices)+1)
	for _, choice := range resp.Choices {
		u := Update{
			CompletionID: resp.ID,
			Model:        resp.Model,
			ChoiceIndex:  choice.Index,
			Raw:          resp,
		}
		msg := choice.Delta
		if msg == nil {
			msg = choice.Message
		}
		if msg != nil {
			u.Role = msg.Role
			u.Text = msg.Text()
			u.ToolCalls = msg.ToolCalls
		}
		if choice.FinishReason != nil {
			u.FinishReason = *choice.FinishReason
		}
		updates = append(updates, u)
	}
	if resp.Usage != nil {
		updates = append(updates, Update{
			CompletionID: resp.ID,
			Model:        resp.Model,
			Usage:        resp.Usage,
			Raw:          resp,
		})
	}
	return updates
}

// Accumulator assembles updates into a complete response.
type Accumulator struct {
	id      string
	model   string
	choices map[int]*choiceState
	usage   *Usage
}

type choiceState struct {
	role      Role
	text      strings.Builder
	finish    *FinishReason
	toolCalls []ToolCall
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{choices: make(map[int]*choiceState)}
}

// Add folds u into the accumulated response.
func (a *Accumulator) Add(u Update) {
	if u.CompletionID != "" {
		a.id = u.CompletionID
	}
	if u.Model != "" {
		a.model = u.Model
	}
	if u.Usage != nil {
		usage := *u.Usage
		a.usage = &usage
		return
	}

	st, ok := a.choices[u.ChoiceIndex]
	if !ok {
		st = &choiceState{}
		a.choices[u.ChoiceIndex] = st
	}
	if u.Role != "" {
		st.role = u.Role
	}
	st.text.WriteString(u.Text)
	if u.FinishReason != "" {
		reason := u.FinishReason
		st.finish = &reason
	}
	for _, call := range u.ToolCalls {
		st.addToolCall(call)
	}
}

// addToolCall appends call, or extends the arguments of an earlier
// fragment of the same call. A fragment without an id continues the
// previous call unless it names a different function.
func (st *choiceState) addToolCall(call ToolCall) {
	if n := len(st.toolCalls); n > 0 {
		last := &st.toolCalls[n-1]
		continues := call.ID == last.ID
		if call.ID == "" {
			continues = call.Function.Name == "" || call.Function.Name == last.Function.Name
		}
		if continues {
			if call.Function.Name != "" {
				last.Function.Name = call.Function.Name
			}
			last.Function.Arguments = append(slices.Clone(last.Function.Arguments), call.Function.Arguments...)
			return
		}
	}
	call.Function.Arguments = slices.Clone(call.Function.Arguments)
	st.toolCalls = append(st.toolCalls, call)
}

// Response returns the response assembled so far, with choices in index
// order.
func (a *Accumulator) Response() *ChatCompletionResponse {
	resp := &ChatCompletionResponse{
		ID:    a.id,
		Model: a.model,
		Usage: a.usage,
	}

	indexes := make([]int, 0, len(a.choices))
	for i := range a.choices {
		indexes = append(indexes, i)
	}
	slices.Sort(indexes)

	for _, i := range indexes {
		st := a.choices[i]
		role := st.role
		if role == "" {
			role = RoleAssistant
		}
		text := st.text.String()
		resp.Choices = append(resp.Choices, Choice{
			Index: i,
			Message: &Message{
				Role:      role,
				Content:   &text,
				ToolCalls: slices.Clone(st.toolCalls),
			},
			FinishReason: st.finish,
		})
	}
	return resp
}

// Stream is a streamed chat completion. It is consumed once, by a single
// goroutine.
//
// Example:
//
//	stream, err := client.Stream(ctx, req)
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//
//	for u := range stream.Updates() {
//	    fmt.Print(u.Text)
//	}
//	if err := stream.Err(); err != nil {
//	    return err
//	}
type Stream struct {
	ctx    context.Context
	body   io.Closer
	events *EventReader
	req    *ChatCompletionRequest
	acc    *Accumulator
	logger *slog.Logger
	err    error
	done   bool
}

// Stream sends a streaming chat completion request.
func (c *Client) Stream(ctx context.Context, req *ChatCompletionRequest) (*Stream, error) {
	wire, err := c.prepare(ctx, req, true)
	if err != nil {
		return nil, err
	}

	body, err := c.openStream(ctx, "chat/completions", wire)
	if err != nil {
		return nil, err
	}

	return &Stream{
		ctx:    ctx,
		body:   body,
		events: NewEventReader(body),
		req:    req,
		acc:    NewAccumulator(),
		logger: c.logger,
	}, nil
}

// Updates iterates over the stream's updates. Iteration ends when the
// server closes the stream, on the first error (see Err), or when the
// caller stops ranging.
func (s *Stream) Updates() iter.Seq[Update] {
	return func(yield func(Update) bool) {
		if s.done {
			return
		}
		defer func() { s.done = true }()

		events := 0
		for ev, err := range s.events.Events(s.ctx) {
			if err != nil {
				s.err = err
				return
			}
			events++

			resp, err := DecodeEvent(ev)
			if err != nil {
				s.err = err
				return
			}
			for _, u := range UpdatesOf(resp) {
				s.acc.Add(u)
				if !yield(u) {
					return
				}
			}
		}
		s.logger.DebugContext(s.ctx, "stream finished", "events", events)
	}
}

// Err returns the error that ended iteration, if any.
func (s *Stream) Err() error {
	return s.err
}

// Close releases the connection.
func (s *Stream) Close() error {
	return s.body.Close()
}

// Response returns the completion accumulated from the updates consumed so
// far, with tool calls resolved against the request.
func (s *Stream) Response() *ChatCompletionResponse {
	resp := s.acc.Response()
	ResolveToolCalls(resp, s.req)
	return resp
}
