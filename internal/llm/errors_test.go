package llm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAPIError_PlainJSON(t *testing.T) {
	body := []byte(`{"error":{"code":"context_length_exceeded","message":"too long","type":"invalid_request_error"}}`)

	e := parseAPIError(400, body)
	require.NotNil(t, e)
	assert.Equal(t, 400, e.StatusCode)
	assert.Equal(t, CodeContextLengthExceeded, e.Code)
	assert.Equal(t, "too long", e.Message)
}

func TestParseAPIError_SSEFramed(t *testing.T) {
	body := []byte("data: {\"error\":{\"code\":\"context_length_exceeded\",\"message\":\"overflow\"}}\n\n")

	e := parseAPIError(400, body)
	assert.Equal(t, CodeContextLengthExceeded, e.Code)
	assert.Equal(t, "overflow", e.Message)
}

func TestParseAPIError_OpaqueBody(t *testing.T) {
	e := parseAPIError(502, []byte("bad gateway"))
	assert.Equal(t, 502, e.StatusCode)
	assert.Empty(t, e.Code)
	assert.Equal(t, "bad gateway", e.Message)
}

func TestIsContextLengthExceeded(t *testing.T) {
	assert.True(t, IsContextLengthExceeded(&APIError{StatusCode: 400, Code: CodeContextLengthExceeded}))
	assert.True(t, IsContextLengthExceeded(
		fmt.Errorf("retrying: %w", &APIError{StatusCode: 400, Code: CodeContextLengthExceeded})))
	assert.False(t, IsContextLengthExceeded(&APIError{StatusCode: 400, Code: "rate_limit_exceeded"}))
	assert.False(t, IsContextLengthExceeded(errors.New("plain error")))
}
