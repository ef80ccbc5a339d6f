package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/icymirror/larkgpt/internal/domain"
	"github.com/icymirror/larkgpt/internal/logging"
)

// doneSentinel terminates an SSE completion stream.
const doneSentinel = "[DONE]"

// maxLineBytes bounds a single SSE record.
const maxLineBytes = 1 << 20

// streamChunk is one decoded `data:` record of a streaming completion.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content      string `json:"content"`
			FunctionCall *struct {
				Name      string `json:"name"`
				Arguments string `json:"arguments"`
			} `json:"function_call"`
		} `json:"delta"`
	} `json:"choices"`
}

// Decode consumes an SSE-framed completion body and emits cumulative
// answer-so-far text events. Function-call fragments are accumulated across
// records (last non-empty name wins, argument fragments concatenate) and
// surface as a single event after the stream terminates. A malformed record
// or read failure stops decoding and yields a terminal error event; values
// already emitted stand. Cancelling ctx releases the decode goroutine even
// when the consumer abandons the channel mid-stream.
func Decode(ctx context.Context, body io.ReadCloser, log *logging.Logger) <-chan Event {
	events := make(chan Event)
	go func() {
		defer close(events)
		defer body.Close()

		send := func(ev Event) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var answer strings.Builder
		var fnSeen bool
		var fnName, fnArgs string
		var streamErr error

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	readData:
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data: "))
			if data == doneSentinel {
				break readData
			}

			var chunk streamChunk
			if err := unmarshalChunk(data, &chunk); err != nil {
				log.Error().Err(err).Str("data", data).Msg("malformed stream record, stopping decode")
				streamErr = fmt.Errorf("malformed stream record: %w", err)
				break readData
			}
			if len(chunk.Choices) == 0 {
				continue
			}

			delta := chunk.Choices[0].Delta
			if fc := delta.FunctionCall; fc != nil {
				fnSeen = true
				if fc.Name != "" {
					fnName = fc.Name
				}
				fnArgs += fc.Arguments
				continue
			}
			if delta.Content != "" {
				answer.WriteString(delta.Content)
				if !send(Event{Type: EventText, Text: answer.String()}) {
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			log.Error().Err(err).Msg("completion stream read error")
			if streamErr == nil {
				streamErr = fmt.Errorf("completion stream read: %w", err)
			}
		}

		if fnSeen {
			if !send(Event{
				Type:         EventFunctionCall,
				FunctionCall: &domain.FunctionCall{Name: fnName, Arguments: fnArgs},
			}) {
				return
			}
		}
		if streamErr != nil {
			send(Event{Type: EventError, Err: streamErr})
		}
	}()
	return events
}

func unmarshalChunk(data string, chunk *streamChunk) error {
	return json.Unmarshal([]byte(data), chunk)
}
