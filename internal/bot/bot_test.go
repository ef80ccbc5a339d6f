package bot

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icymirror/larkgpt/internal/chat"
	"github.com/icymirror/larkgpt/internal/domain"
	"github.com/icymirror/larkgpt/internal/logging"
	"github.com/icymirror/larkgpt/internal/render"
)

type scriptedStreamer struct {
	mu    sync.Mutex
	calls []string // "user|question"
	fns   []chat.FunctionDescriptor
	reply []string
}

func (s *scriptedStreamer) ChatStream(_ context.Context, user, question, _ string, fns []chat.FunctionDescriptor) <-chan string {
	s.mu.Lock()
	s.calls = append(s.calls, user+"|"+question)
	s.fns = fns
	s.mu.Unlock()

	ch := make(chan string, len(s.reply))
	for _, v := range s.reply {
		ch <- v
	}
	close(ch)
	return ch
}

type recordingMessenger struct {
	mu      sync.Mutex
	replies int
	patches []string
}

func (m *recordingMessenger) Reply(_ context.Context, messageID string, _ render.Card) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies++
	return messageID + "-card", nil
}

func (m *recordingMessenger) Patch(_ context.Context, _ string, card render.Card) error {
	content, err := card.Content()
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patches = append(m.patches, content)
	return nil
}

func (m *recordingMessenger) lastPatch() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.patches) == 0 {
		return ""
	}
	return m.patches[len(m.patches)-1]
}

type recordingObserver struct {
	mu       sync.Mutex
	received []string
	finished []string
}

func (o *recordingObserver) MessageReceived(msg domain.IncomingMessage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.received = append(o.received, msg.MessageID)
}

func (o *recordingObserver) AnswerFinished(msg domain.IncomingMessage, answer string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, answer)
}

func testMessage() domain.IncomingMessage {
	return domain.IncomingMessage{
		MessageID: "om_1",
		ChatID:    "oc_1",
		ChatType:  domain.ChatTypeP2P,
		Text:      "hello",
		Timestamp: time.Now(),
	}
}

func TestHandleMessageStreamsToCard(t *testing.T) {
	streamer := &scriptedStreamer{reply: []string{"hi", "hi there"}}
	messenger := &recordingMessenger{}
	observer := &recordingObserver{}

	b := New(Config{
		Streamer:  streamer,
		Messenger: messenger,
		Gap:       time.Millisecond,
		Observer:  observer,
	}, logging.New(io.Discard, "silent"))

	b.HandleMessage(context.Background(), testMessage())

	// One placeholder card was created and the final patch holds the
	// complete answer with no trailing note. Edits are throttled, so the
	// final patch may land just after HandleMessage returns.
	require.Eventually(t, func() bool {
		last := messenger.lastPatch()
		return strings.Contains(last, "hi there") && !strings.Contains(last, "note")
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, messenger.replies)

	// History is keyed by chat id.
	require.Len(t, streamer.calls, 1)
	assert.Equal(t, "oc_1|hello", streamer.calls[0])

	assert.Equal(t, []string{"om_1"}, observer.received)
	assert.Equal(t, []string{"hi there"}, observer.finished)
}

func TestHandleMessageWithoutSearcherAdvertisesNoFunctions(t *testing.T) {
	streamer := &scriptedStreamer{reply: []string{"ok"}}
	b := New(Config{
		Streamer:  streamer,
		Messenger: &recordingMessenger{},
		Gap:       time.Millisecond,
	}, logging.New(io.Discard, "silent"))

	b.HandleMessage(context.Background(), testMessage())
	assert.Empty(t, streamer.fns)
}
