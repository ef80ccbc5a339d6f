package llm

import (
	"context"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/icymirror/larkgpt/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logging.Logger {
	return logging.New(io.Discard, "silent")
}

func sseBody(records ...string) io.ReadCloser {
	var b strings.Builder
	for _, r := range records {
		b.WriteString("data: " + r + "\n\n")
	}
	return io.NopCloser(strings.NewReader(b.String()))
}

func textChunk(token string) string {
	return `{"choices":[{"delta":{"content":` + jsonString(token) + `}}]}`
}

func jsonString(s string) string {
	return `"` + s + `"`
}

func collect(events <-chan Event) []Event {
	var out []Event
	for e := range events {
		out = append(out, e)
	}
	return out
}

func TestDecode_CumulativeText(t *testing.T) {
	events := Decode(context.Background(), sseBody(
		textChunk("H"),
		textChunk("e"),
		textChunk("llo"),
		"[DONE]",
	), testLogger())

	got := collect(events)
	require.Len(t, got, 3)
	assert.Equal(t, "H", got[0].Text)
	assert.Equal(t, "He", got[1].Text)
	assert.Equal(t, "Hello", got[2].Text)
	for _, e := range got {
		assert.Equal(t, EventText, e.Type)
	}
}

func TestDecode_StopsAfterDone(t *testing.T) {
	events := Decode(context.Background(), sseBody(
		textChunk("hi"),
		"[DONE]",
		textChunk(" ignored"),
	), testLogger())

	got := collect(events)
	require.Len(t, got, 1)
	assert.Equal(t, "hi", got[0].Text)
}

func TestDecode_FunctionCallAccumulation(t *testing.T) {
	events := Decode(context.Background(), sseBody(
		`{"choices":[{"delta":{"function_call":{"name":"google_search","arguments":""}}}]}`,
		`{"choices":[{"delta":{"function_call":{"arguments":"{\"query\":"}}}]}`,
		`{"choices":[{"delta":{"function_call":{"arguments":"\"go\"}"}}}]}`,
		"[DONE]",
	), testLogger())

	got := collect(events)
	require.Len(t, got, 1)
	require.Equal(t, EventFunctionCall, got[0].Type)
	assert.Equal(t, "google_search", got[0].FunctionCall.Name)
	assert.Equal(t, `{"query":"go"}`, got[0].FunctionCall.Arguments)
}

func TestDecode_LastNonEmptyNameWins(t *testing.T) {
	events := Decode(context.Background(), sseBody(
		`{"choices":[{"delta":{"function_call":{"name":"first"}}}]}`,
		`{"choices":[{"delta":{"function_call":{"name":""}}}]}`,
		`{"choices":[{"delta":{"function_call":{"name":"second"}}}]}`,
		"[DONE]",
	), testLogger())

	got := collect(events)
	require.Len(t, got, 1)
	assert.Equal(t, "second", got[0].FunctionCall.Name)
}

func TestDecode_MalformedRecordStopsStream(t *testing.T) {
	events := Decode(context.Background(), sseBody(
		textChunk("partial"),
		`{not json`,
		textChunk(" never seen"),
	), testLogger())

	got := collect(events)
	require.Len(t, got, 2)
	assert.Equal(t, "partial", got[0].Text)
	require.Equal(t, EventError, got[1].Type)
	assert.Error(t, got[1].Err)
}

func TestDecode_MalformedRecordStillYieldsFunctionCall(t *testing.T) {
	events := Decode(context.Background(), sseBody(
		`{"choices":[{"delta":{"function_call":{"name":"lookup","arguments":"{}"}}}]}`,
		`garbage`,
	), testLogger())

	got := collect(events)
	require.Len(t, got, 2)
	require.Equal(t, EventFunctionCall, got[0].Type)
	assert.Equal(t, "lookup", got[0].FunctionCall.Name)
	assert.Equal(t, EventError, got[1].Type)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestDecode_ReadErrorYieldsErrorEvent(t *testing.T) {
	body := io.NopCloser(io.MultiReader(
		strings.NewReader("data: "+textChunk("hi")+"\n\n"),
		failingReader{},
	))

	got := collect(Decode(context.Background(), body, testLogger()))
	require.Len(t, got, 2)
	assert.Equal(t, "hi", got[0].Text)
	require.Equal(t, EventError, got[1].Type)
	assert.ErrorIs(t, got[1].Err, io.ErrUnexpectedEOF)
}

type closeRecorder struct {
	io.Reader
	closed atomic.Bool
}

func (r *closeRecorder) Close() error {
	r.closed.Store(true)
	return nil
}

func TestDecode_CancelReleasesAbandonedStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	body := &closeRecorder{Reader: strings.NewReader(
		"data: " + textChunk("a") + "\n\ndata: " + textChunk("b") + "\n\ndata: [DONE]\n\n")}

	events := Decode(ctx, body, testLogger())
	<-events // the next send now blocks on an abandoned channel
	cancel()

	require.Eventually(t, func() bool { return body.closed.Load() },
		time.Second, 5*time.Millisecond, "decode goroutine kept the body open")
}

func TestDecode_IgnoresNonDataLines(t *testing.T) {
	body := io.NopCloser(strings.NewReader(
		": keepalive\n\ndata: " + textChunk("ok") + "\n\ndata: [DONE]\n\n"))

	got := collect(Decode(context.Background(), body, testLogger()))
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].Text)
}
