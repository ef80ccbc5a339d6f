package gateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icymirror/larkgpt/internal/domain"
	"github.com/icymirror/larkgpt/internal/logging"
)

func dialFeed(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()

	mux := http.NewServeMux()
	s.registerRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestFeedBroadcastsLifecycleEvents(t *testing.T) {
	log := logging.New(io.Discard, "silent")
	feed := NewFeed(log)
	s := New(Config{}, newFakeHandler(), feed, log)

	conn := dialFeed(t, s)
	require.Eventually(t, func() bool { return feed.Count() == 1 }, time.Second, 10*time.Millisecond)

	msg := domain.IncomingMessage{MessageID: "om_1", ChatID: "oc_1", ChatType: domain.ChatTypeP2P, Text: "hi"}
	feed.MessageReceived(msg)
	feed.AnswerFinished(msg, "hello!")

	var ev FeedEvent
	conn.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "message.received", ev.Type)
	assert.Equal(t, "hi", ev.Text)

	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "answer.finished", ev.Type)
	assert.Equal(t, "hello!", ev.Answer)
}

func TestFeedDropsClosedObservers(t *testing.T) {
	log := logging.New(io.Discard, "silent")
	feed := NewFeed(log)
	s := New(Config{}, newFakeHandler(), feed, log)

	conn := dialFeed(t, s)
	require.Eventually(t, func() bool { return feed.Count() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	msg := domain.IncomingMessage{MessageID: "om_1"}

	// Publishing to a dead connection eventually detaches it.
	assert.Eventually(t, func() bool {
		feed.MessageReceived(msg)
		return feed.Count() == 0
	}, 2*time.Second, 50*time.Millisecond)
}

func TestFeedCloseAll(t *testing.T) {
	log := logging.New(io.Discard, "silent")
	feed := NewFeed(log)
	s := New(Config{}, newFakeHandler(), feed, log)

	dialFeed(t, s)
	require.Eventually(t, func() bool { return feed.Count() == 1 }, time.Second, 10*time.Millisecond)

	feed.CloseAll()
	assert.Equal(t, 0, feed.Count())
}
