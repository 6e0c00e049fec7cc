package mistral

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tghamm/mistral-go/function"
)

const textStream = `data: {"id":"s1","object":"chat.completion.chunk","created":1,"model":"mistral-small-latest","choices":[{"index":0,"delta":{"role":"assistant","content":""},"finish_reason":null}]}

data: {"id":"s1","object":"chat.completion.chunk","created":1,"model":"mistral-small-latest","choices":[{"index":0,"delta":{"content":"Mars has"},"finish_reason":null}]}

data: {"id":"s1","object":"chat.completion.chunk","created":1,"model":"mistral-small-latest","choices":[{"index":0,"delta":{"content":" two moons."},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}

data: [DONE]

`

const toolCallStream = `data: {"id":"s2","model":"mistral-large-latest","choices":[{"index":0,"delta":{"role":"assistant","content":""},"finish_reason":null}]}

data: {"id":"s2","model":"mistral-large-latest","choices":[{"index":0,"delta":{"content":"","tool_calls":[{"id":"D681PevKs","function":{"name":"Get_Weather","arguments":"{\"location\": \"Paris\"}"}}]},"finish_reason":"tool_calls"}],"usage":{"prompt_tokens":80,"completion_tokens":20,"total_tokens":100}}

data: [DONE]

`

func sseHandler(t *testing.T, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, true, req["stream"])

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, body)
	}
}

func TestClient_Stream(t *testing.T) {
	client := newTestClient(t, sseHandler(t, textStream))

	stream, err := client.Stream(context.Background(),
		NewChatRequest(ModelMistralSmall, UserMessage("How many moons does Mars have?")))
	require.NoError(t, err)
	defer stream.Close()

	var updates []Update
	var text strings.Builder
	for u := range stream.Updates() {
		updates = append(updates, u)
		text.WriteString(u.Text)
	}
	require.NoError(t, stream.Err())

	require.Len(t, updates, 4, "one update per choice per event plus one for usage")
	assert.Equal(t, RoleAssistant, updates[0].Role)
	assert.Equal(t, "s1", updates[1].CompletionID)
	assert.Equal(t, ModelMistralSmall, updates[1].Model)
	assert.Equal(t, FinishReasonStop, updates[2].FinishReason)
	assert.Nil(t, updates[2].Usage)
	assert.Equal(t, &Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, updates[3].Usage)
	assert.Equal(t, "Mars has two moons.", text.String())

	resp := stream.Response()
	assert.Equal(t, "s1", resp.ID)
	assert.Equal(t, "Mars has two moons.", resp.Message().ContentString())
	assert.Equal(t, RoleAssistant, resp.Message().Role)
	require.NotNil(t, resp.Choices[0].FinishReason)
	assert.Equal(t, FinishReasonStop, *resp.Choices[0].FinishReason)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestClient_Stream_ToolCalls(t *testing.T) {
	client := newTestClient(t, sseHandler(t, toolCallStream))

	getWeather := function.New("Get_Weather", "Get the current weather",
		function.Func1(func(location string) string { return "72 degrees and sunny" }),
		function.String("location", "City", true),
	)
	req := NewChatRequest(ModelMistralLarge, UserMessage("Weather in Paris?"))
	req.Tools = Tools(getWeather)
	req.ToolChoice = ToolChoiceAuto

	stream, err := client.Stream(context.Background(), req)
	require.NoError(t, err)
	defer stream.Close()

	var calls []ToolCall
	for u := range stream.Updates() {
		calls = append(calls, u.ToolCalls...)
	}
	require.NoError(t, stream.Err())
	require.Len(t, calls, 1)
	assert.Equal(t, "D681PevKs", calls[0].ID)

	resp := stream.Response()
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "Get_Weather", resp.ToolCalls[0].Name)
	assert.Same(t, getWeather, resp.ToolCalls[0].Function)
	assert.Equal(t, FinishReasonToolCalls, *resp.Choices[0].FinishReason)

	out, err := resp.ToolCalls[0].Invoke(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "72 degrees and sunny", out)
}

func TestClient_Stream_ErrorFrame(t *testing.T) {
	body := `data: {"id":"s3","model":"m","choices":[{"index":0,"delta":{"role":"assistant","content":"Hel"}}]}

event: error
data: {"error":{"message":"Service unavailable","type":"service_unavailable"}}

data: {"id":"s3","model":"m","choices":[{"index":0,"delta":{"content":"lo"}}]}

`
	client := newTestClient(t, sseHandler(t, body))

	stream, err := client.Stream(context.Background(), NewChatRequest(ModelMistralSmall, UserMessage("hi")))
	require.NoError(t, err)
	defer stream.Close()

	var texts []string
	for u := range stream.Updates() {
		texts = append(texts, u.Text)
	}

	assert.Equal(t, []string{"Hel"}, texts, "the error frame terminates the stream")
	var apiErr *APIError
	require.ErrorAs(t, stream.Err(), &apiErr)
	assert.Equal(t, "Service unavailable", apiErr.Message)
}

func TestClient_Stream_HTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"message":"Unauthorized"}`)
	})

	_, err := client.Stream(context.Background(), NewChatRequest(ModelMistralSmall, UserMessage("hi")))
	assert.True(t, IsAuth(err))
}

func TestClient_Stream_Cancel(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, `data: {"id":"s4","model":"m","choices":[{"index":0,"delta":{"content":"tick"}}]}`+"\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := client.Stream(ctx, NewChatRequest(ModelMistralSmall, UserMessage("hi")))
	require.NoError(t, err)
	defer stream.Close()

	n := 0
	for range stream.Updates() {
		n++
		cancel()
	}

	assert.Equal(t, 1, n)
	assert.ErrorIs(t, stream.Err(), context.Canceled)
}

func TestClient_Stream_EarlyBreak(t *testing.T) {
	client := newTestClient(t, sseHandler(t, textStream))

	stream, err := client.Stream(context.Background(), NewChatRequest(ModelMistralSmall, UserMessage("hi")))
	require.NoError(t, err)
	defer stream.Close()

	for range stream.Updates() {
		break
	}
	assert.NoError(t, stream.Err())

	n := 0
	for range stream.Updates() {
		n++
	}
	assert.Zero(t, n, "a stream is consumed once")
}

func TestUpdatesOf(t *testing.T) {
	stop := FinishReasonStop
	resp := &ChatCompletionResponse{
		ID:    "c",
		Model: "m",
		Choices: []Choice{
			{Index: 0, Delta: &Message{Role: RoleAssistant, Content: Ptr("a")}},
			{Index: 1, Delta: &Message{Content: Ptr("b")}, FinishReason: &stop},
		},
		Usage: &Usage{TotalTokens: 3},
	}

	updates := UpdatesOf(resp)
	require.Len(t, updates, 3)
	assert.Equal(t, 0, updates[0].ChoiceIndex)
	assert.Equal(t, "a", updates[0].Text)
	assert.Equal(t, 1, updates[1].ChoiceIndex)
	assert.Equal(t, FinishReasonStop, updates[1].FinishReason)
	assert.Equal(t, 3, updates[2].Usage.TotalTokens)
	assert.Same(t, resp, updates[2].Raw)

	assert.Empty(t, UpdatesOf(&ChatCompletionResponse{}))
}

func TestAccumulator(t *testing.T) {
	acc := NewAccumulator()
	for i, chunk := range []string{"The ", "weather ", "is fine."} {
		acc.Add(Update{CompletionID: "c", Model: "m", ChoiceIndex: 1, Text: chunk})
		acc.Add(Update{CompletionID: "c", ChoiceIndex: 0, Text: fmt.Sprint(i)})
	}
	acc.Add(Update{ChoiceIndex: 1, ToolCalls: []ToolCall{{ID: "abc123XYZ", Function: FunctionCall{Name: "Get_Weather", Arguments: []byte(`{"loc`)}}}})
	acc.Add(Update{ChoiceIndex: 1, ToolCalls: []ToolCall{{Function: FunctionCall{Arguments: []byte(`ation":"Paris"}`)}}}})
	acc.Add(Update{ChoiceIndex: 1, ToolCalls: []ToolCall{{ID: "zyx987CBA", Function: FunctionCall{Name: "Get_Time", Arguments: []byte(`{}`)}}}})
	acc.Add(Update{ChoiceIndex: 1, FinishReason: FinishReasonToolCalls})
	acc.Add(Update{Usage: &Usage{TotalTokens: 9}})

	resp := acc.Response()
	require.Len(t, resp.Choices, 2)
	assert.Equal(t, "012", resp.Choices[0].Message.ContentString())
	assert.Nil(t, resp.Choices[0].FinishReason)

	second := resp.Choices[1]
	assert.Equal(t, 1, second.Index)
	assert.Equal(t, "The weather is fine.", second.Message.ContentString())
	assert.Equal(t, FinishReasonToolCalls, *second.FinishReason)
	require.Len(t, second.Message.ToolCalls, 2)
	assert.JSONEq(t, `{"location":"Paris"}`, string(second.Message.ToolCalls[0].Function.Arguments))
	assert.Equal(t, "Get_Time", second.Message.ToolCalls[1].Function.Name)
	assert.Equal(t, 9, resp.Usage.TotalTokens)
	assert.Equal(t, "m", resp.Model)
}

func TestAccumulator_UnnamedFragments(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(Update{ToolCalls: []ToolCall{{ID: "abc123XYZ", Function: FunctionCall{Name: "Get_Weather", Arguments: []byte(`{"location":`)}}}})
	acc.Add(Update{ToolCalls: []ToolCall{{Function: FunctionCall{Name: "Get_Weather", Arguments: []byte(`"Paris"}`)}}}})
	acc.Add(Update{ToolCalls: []ToolCall{{Function: FunctionCall{Name: "Get_Time", Arguments: []byte(`{}`)}}}})
	acc.Add(Update{ToolCalls: []ToolCall{{Function: FunctionCall{Arguments: []byte(` `)}}}})

	calls := acc.Response().Choices[0].Message.ToolCalls
	require.Len(t, calls, 2)
	assert.Equal(t, "Get_Weather", calls[0].Function.Name)
	assert.JSONEq(t, `{"location":"Paris"}`, string(calls[0].Function.Arguments))
	assert.Equal(t, "Get_Time", calls[1].Function.Name)
	assert.Empty(t, calls[1].ID)
	assert.JSONEq(t, `{}`, string(calls[1].Function.Arguments))
}
