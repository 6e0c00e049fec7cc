package mistral

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrAuthentication is returned when no API key is configured, and wrapped
	// by API errors for rejected credentials.
	ErrAuthentication = errors.New("mistral: authentication failed")

	// ErrServer is wrapped by API errors with a 5xx status. These can happen
	// occasionally and may succeed on retry; the client never retries.
	ErrServer = errors.New("mistral: server error")

	// ErrTooManyToolRounds is returned by Conversation.Send when the model
	// keeps requesting tools past the configured limit.
	ErrTooManyToolRounds = errors.New("mistral: too many tool rounds")
)

// APIError is an error envelope returned by the API, either as a non-2xx
// response body or as an error frame in a stream. StatusCode is zero for
// stream frames.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
	Param      string
	Code       string
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString("mistral API error")
	switch {
	case e.StatusCode != 0 && e.Type != "":
		fmt.Fprintf(&b, " (status %d, type %s)", e.StatusCode, e.Type)
	case e.StatusCode != 0:
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	case e.Type != "":
		fmt.Fprintf(&b, " (type %s)", e.Type)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

// Is lets errors.Is match ErrAuthentication and ErrServer by status.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrAuthentication:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrServer:
		return e.IsServerError()
	}
	return false
}

// IsServerError reports whether the API failed with a 5xx status.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool {
	return errors.Is(err, ErrAuthentication)
}

// IsServerError reports whether err is a 5xx API failure.
func IsServerError(err error) bool {
	return errors.Is(err, ErrServer)
}

// errorEnvelope is the API's error body. Some endpoints nest the fields
// under "error", others send them at the top level.
type errorEnvelope struct {
	Error *errorBody `json:"error"`
	errorBody
}

type errorBody struct {
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message"`
	Param   string          `json:"param"`
	Code    json.RawMessage `json:"code"`
}

func (b errorBody) apiError(statusCode int) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Type:       b.Type,
		Message:    rawText(b.Message),
		Param:      b.Param,
		Code:       rawText(b.Code),
	}
}

// rawText renders a JSON value as text: strings unquoted, anything else as
// its JSON encoding.
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}

// parseErrorBody decodes an error envelope. ok is false when body is not one.
func parseErrorBody(statusCode int, body []byte) (*APIError, bool) {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, false
	}
	if env.Error != nil {
		return env.Error.apiError(statusCode), true
	}
	if len(env.Message) > 0 {
		return env.errorBody.apiError(statusCode), true
	}
	return nil, false
}

// parseError maps a non-2xx response to an error.
func parseError(statusCode int, body []byte) error {
	apiErr, ok := parseErrorBody(statusCode, body)
	if !ok {
		apiErr = &APIError{StatusCode: statusCode, Message: strings.TrimSpace(string(body))}
	}

	switch {
	case statusCode == http.StatusInternalServerError && apiErr.Message == "":
		apiErr.Message = "internal server error, which can happen occasionally; please retry"
	case apiErr.Message == "":
		apiErr.Message = http.StatusText(statusCode)
	}
	return apiErr
}
