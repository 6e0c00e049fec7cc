package mistral

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tghamm/mistral-go/function"
)

const toolCallResponse = `{
  "id": "cmpl-tools",
  "model": "mistral-large-latest",
  "choices": [{
    "index": 0,
    "message": {
      "role": "assistant",
      "content": "",
      "tool_calls": [
        {"id": "D681PevKs", "type": "function", "function": {"name": "Get_Weather", "arguments": "{\"location\": \"San Francisco, CA\"}"}},
        {"id": "Q2xQ9aQ1b", "type": "function", "function": {"name": "Get_Time", "arguments": {}}}
      ]
    },
    "finish_reason": "tool_calls"
  }]
}`

func weatherFunction() *function.Function {
	return function.New("Get_Weather", "Get the current weather in a given location",
		function.Func1(func(location string) string { return "72 degrees and sunny" }),
		function.String("location", "The city and state", true),
	)
}

func TestValidToolCallID(t *testing.T) {
	for _, id := range []string{"D681PevKs", "abcdefghi", "123456789"} {
		assert.True(t, ValidToolCallID(id), id)
	}
	for _, id := range []string{"", "abc", "abcdefghij", "abc-efghi", "call_1234", "ábcdefghi"} {
		assert.False(t, ValidToolCallID(id), id)
	}

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewToolCallID()
		assert.True(t, ValidToolCallID(id), id)
		seen[id] = true
	}
	assert.Greater(t, len(seen), 90)
}

func TestResolveToolCalls(t *testing.T) {
	resp, err := DecodeChatResponse([]byte(toolCallResponse))
	require.NoError(t, err)

	weather := weatherFunction()
	req := NewChatRequest(ModelMistralLarge, UserMessage("What's the weather like today in San Francisco?"))
	req.Tools = Tools(weather)
	req.ToolChoice = ToolChoiceAuto

	ResolveToolCalls(resp, req)

	require.Len(t, resp.ToolCalls, 1, "Get_Time is not declared")
	tc := resp.ToolCalls[0]
	assert.Equal(t, "D681PevKs", tc.ID)
	assert.Equal(t, "Get_Weather", tc.Name)
	assert.Equal(t, `"{\"location\": \"San Francisco, CA\"}"`, string(tc.Arguments))
	assert.Same(t, weather, tc.Function)

	assert.Len(t, resp.Message().ToolCalls, 2, "unmatched calls stay on the message")
	assert.Len(t, req.Tools, 1)

	call := tc.Call()
	assert.Equal(t, "function", call.Type)
	assert.Equal(t, tc.Arguments, call.Function.Arguments)
}

func TestClient_Chat_ResolvesToolCalls(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "auto", req["tool_choice"])

		tools, _ := req["tools"].([]any)
		if assert.Len(t, tools, 1) {
			tool := tools[0].(map[string]any)
			assert.Equal(t, "function", tool["type"])
			fn := tool["function"].(map[string]any)
			assert.Equal(t, "Get_Weather", fn["name"])
			params := fn["parameters"].(map[string]any)
			assert.Equal(t, "object", params["type"])
			assert.Equal(t, []any{"location"}, params["required"])
		}
		writeJSON(w, http.StatusOK, toolCallResponse)
	})

	req := NewChatRequest(ModelMistralLarge, UserMessage("What's the weather like today in San Francisco?"))
	req.Tools = Tools(weatherFunction())
	req.ToolChoice = ToolChoiceAuto

	resp, err := client.Chat(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)

	out, err := resp.ToolCalls[0].Invoke(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "72 degrees and sunny", out)
}

func TestExecuteToolCalls(t *testing.T) {
	weather := weatherFunction()
	clock := function.New("Get_Time", "Current time", function.Func0(func() string { return "noon" }))

	t.Run("all declared", func(t *testing.T) {
		resp, err := DecodeChatResponse([]byte(toolCallResponse))
		require.NoError(t, err)
		req := NewChatRequest(ModelMistralLarge)
		req.Tools = Tools(weather, clock)
		ResolveToolCalls(resp, req)

		msgs, err := ExecuteToolCalls(context.Background(), resp)
		require.NoError(t, err)
		require.Len(t, msgs, 2)

		assert.Equal(t, RoleTool, msgs[0].Role)
		assert.Equal(t, "D681PevKs", msgs[0].ToolCallID)
		assert.Equal(t, "Get_Weather", msgs[0].Name)
		assert.Equal(t, "72 degrees and sunny", msgs[0].ContentString())
		assert.Equal(t, "Q2xQ9aQ1b", msgs[1].ToolCallID)
		assert.Equal(t, "noon", msgs[1].ContentString())
	})

	t.Run("undeclared tool", func(t *testing.T) {
		resp, err := DecodeChatResponse([]byte(toolCallResponse))
		require.NoError(t, err)
		req := NewChatRequest(ModelMistralLarge)
		req.Tools = Tools(weather)
		ResolveToolCalls(resp, req)

		msgs, err := ExecuteToolCalls(context.Background(), resp)
		var unknown *function.UnknownToolError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "Get_Time", unknown.Name)
		assert.Len(t, msgs, 1)
	})

	t.Run("function failure", func(t *testing.T) {
		boom := errors.New("station offline")
		failing := function.New("Get_Weather", "", func(ctx context.Context, args function.Args) (any, error) {
			return nil, boom
		})
		resp, err := DecodeChatResponse([]byte(toolCallResponse))
		require.NoError(t, err)
		req := NewChatRequest(ModelMistralLarge)
		req.Tools = Tools(failing, clock)
		ResolveToolCalls(resp, req)

		msgs, err := ExecuteToolCalls(context.Background(), resp)
		assert.ErrorIs(t, err, boom)
		assert.Empty(t, msgs)
	})

	t.Run("no tool calls", func(t *testing.T) {
		resp, err := DecodeChatResponse([]byte(chatResponse))
		require.NoError(t, err)

		msgs, err := ExecuteToolCalls(context.Background(), resp)
		assert.NoError(t, err)
		assert.Nil(t, msgs)
	})
}

func TestResolvedToolCall_Invoke_Unmatched(t *testing.T) {
	_, err := ResolvedToolCall{Name: "Get_Time"}.Invoke(context.Background())
	var unknown *function.UnknownToolError
	assert.ErrorAs(t, err, &unknown)
}

func TestTool_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(NewTool(function.New("Get_Time", "Current time", function.Func0(func() string { return "" }))))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "function",
		"function": {
			"name": "Get_Time",
			"description": "Current time",
			"parameters": {"type": "object", "properties": {}}
		}
	}`, string(data))
}
