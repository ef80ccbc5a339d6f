package llm

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// CodeContextLengthExceeded is the one recoverable failure code: the request
// overflowed the model's context window and can be retried with less history.
const CodeContextLengthExceeded = "context_length_exceeded"

// APIError is a structured failure from the completion endpoint.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("completion API error (%d, %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("completion API error (%d): %s", e.StatusCode, e.Message)
}

// IsContextLengthExceeded reports whether the error is the recoverable
// context-window overflow condition.
func IsContextLengthExceeded(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Code == CodeContextLengthExceeded
}

// apiErrorBody is the JSON error envelope used by OpenAI-style endpoints.
type apiErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// parseAPIError extracts a structured error from a failed response body.
// Streamed failures arrive as their own SSE-framed error stream, so each
// data record is tried in turn; a plain JSON body is tried first.
func parseAPIError(statusCode int, body []byte) *APIError {
	e := &APIError{StatusCode: statusCode, Message: strings.TrimSpace(string(body))}

	var envelope apiErrorBody
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		e.Code = envelope.Error.Code
		e.Message = envelope.Error.Message
		return e
	}

	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		line = strings.TrimPrefix(line, "data: ")
		if line == "" || line == doneSentinel {
			continue
		}
		if err := json.Unmarshal([]byte(line), &envelope); err == nil && envelope.Error.Message != "" {
			e.Code = envelope.Error.Code
			e.Message = envelope.Error.Message
			return e
		}
	}
	return e
}
