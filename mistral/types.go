package mistral

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/tghamm/mistral-go/function"
)

// Model identifiers.
const (
	ModelMistralTiny     = "mistral-tiny"
	ModelMistralSmall    = "mistral-small-latest"
	ModelMistralMedium   = "mistral-medium-latest"
	ModelMistralLarge    = "mistral-large-latest"
	ModelMagistralMedium = "magistral-medium-latest"
	ModelOpenMistral7B   = "open-mistral-7b"
	ModelOpenMixtral8x7B = "open-mixtral-8x7b"
	ModelMistralEmbed    = "mistral-embed"
	ModelMistralOCR      = "mistral-ocr-latest"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

var roles = []Role{RoleSystem, RoleUser, RoleAssistant, RoleTool}

// UnmarshalJSON rejects roles the API does not define.
func (r *Role) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(data, r, roles)
}

// FinishReason explains why the model stopped generating.
type FinishReason string

const (
	FinishReasonStop        FinishReason = "stop"
	FinishReasonLength      FinishReason = "length"
	FinishReasonModelLength FinishReason = "model_length"
	FinishReasonToolCalls   FinishReason = "tool_calls"
)

var finishReasons = []FinishReason{
	FinishReasonStop, FinishReasonLength, FinishReasonModelLength, FinishReasonToolCalls,
}

// UnmarshalJSON rejects finish reasons the API does not define.
func (f *FinishReason) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(data, f, finishReasons)
}

// ToolChoice controls whether the model may, must or must not call tools.
type ToolChoice string

const (
	ToolChoiceAuto ToolChoice = "auto"
	ToolChoiceAny  ToolChoice = "any"
	ToolChoiceNone ToolChoice = "none"
)

var toolChoices = []ToolChoice{ToolChoiceAuto, ToolChoiceAny, ToolChoiceNone}

// UnmarshalJSON rejects tool choices the API does not define.
func (c *ToolChoice) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(data, c, toolChoices)
}

func unmarshalEnum[T ~string](data []byte, dst *T, valid []T) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v := T(s)
	if !slices.Contains(valid, v) {
		return fmt.Errorf("unknown %T value %q", v, s)
	}
	*dst = v
	return nil
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"`
	Function FunctionCall `json:"function"`
}

// FunctionCall names the function to call and carries its arguments, either
// as a JSON object or as a JSON string holding one.
type FunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Tool is a function the model may call.
type Tool struct {
	Type     string             `json:"type"`
	Function *function.Function `json:"function"`
}

// NewTool wraps a declared function as a request tool.
func NewTool(fn *function.Function) Tool {
	return Tool{Type: "function", Function: fn}
}

// Tools wraps every declared function as a request tool.
func Tools(fns ...*function.Function) []Tool {
	tools := make([]Tool, len(fns))
	for i, fn := range fns {
		tools[i] = NewTool(fn)
	}
	return tools
}

// ResponseFormat constrains the shape of the model's output.
type ResponseFormat struct {
	Type string `json:"type"`
}

// JSONObject asks the model to answer with a JSON object.
var JSONObject = &ResponseFormat{Type: "json_object"}

// ChatCompletionRequest is the body of a chat completion call.
type ChatCompletionRequest struct {
	Model            string          `json:"model"`
	Messages         []Message       `json:"messages"`
	Temperature      *float64        `json:"temperature,omitempty"`
	TopP             *float64        `json:"top_p,omitempty"`
	MaxTokens        *int            `json:"max_tokens,omitempty"`
	Stream           bool            `json:"stream"`
	SafePrompt       bool            `json:"safe_prompt"`
	RandomSeed       *int            `json:"random_seed,omitempty"`
	PresencePenalty  *float64        `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64        `json:"frequency_penalty,omitempty"`
	ResponseFormat   *ResponseFormat `json:"response_format,omitempty"`
	Tools            []Tool          `json:"tools,omitempty"`
	ToolChoice       ToolChoice      `json:"tool_choice,omitempty"`
}

// NewChatRequest creates a request with the API's default sampling
// parameters (temperature 0.7, top_p 1).
func NewChatRequest(model string, messages ...Message) *ChatCompletionRequest {
	return &ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: Ptr(0.7),
		TopP:        Ptr(1.0),
	}
}

// Ptr returns a pointer to v, for optional request fields.
func Ptr[T any](v T) *T {
	return &v
}

// ErrInvalidRequest is wrapped by validation failures.
var ErrInvalidRequest = errors.New("invalid request")

// Validate checks the request fields against the ranges the API accepts.
func (r *ChatCompletionRequest) Validate() error {
	var errs []error
	if r.Model == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 1) {
		errs = append(errs, fmt.Errorf("temperature %v outside [0, 1]", *r.Temperature))
	}
	if r.TopP != nil && (*r.TopP < 0 || *r.TopP > 1) {
		errs = append(errs, fmt.Errorf("top_p %v outside [0, 1]", *r.TopP))
	}
	if r.MaxTokens != nil && *r.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("max_tokens %d is negative", *r.MaxTokens))
	}
	if r.ToolChoice != "" && !slices.Contains(toolChoices, r.ToolChoice) {
		errs = append(errs, fmt.Errorf("unknown tool_choice %q", r.ToolChoice))
	}
	for i, t := range r.Tools {
		if t.Function == nil {
			errs = append(errs, fmt.Errorf("tools[%d] has no function", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, errors.Join(errs...))
	}
	return nil
}

// tool returns the declared tool named name.
func (r *ChatCompletionRequest) tool(name string) (*function.Function, bool) {
	for _, t := range r.Tools {
		if t.Function != nil && t.Function.Name == name {
			return t.Function, true
		}
	}
	return nil, false
}

// ChatCompletionResponse is a full completion or, when streaming, one chunk.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object,omitempty"`
	Created int64    `json:"created,omitempty"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`

	// ToolCalls holds the calls that matched a tool declared on the request.
	ToolCalls []ResolvedToolCall `json:"-"`
}

// Message returns the message of the first choice, or nil.
func (r *ChatCompletionResponse) Message() *Message {
	if r == nil || len(r.Choices) == 0 {
		return nil
	}
	if r.Choices[0].Message != nil {
		return r.Choices[0].Message
	}
	return r.Choices[0].Delta
}

// Choice is one alternative of a completion. Message is set on full
// responses, Delta on stream chunks.
type Choice struct {
	Index        int           `json:"index"`
	Message      *Message      `json:"message,omitempty"`
	Delta        *Message      `json:"delta,omitempty"`
	FinishReason *FinishReason `json:"finish_reason,omitempty"`
}

// Usage reports token counts.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
