package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/icymirror/larkgpt/internal/domain"
	"github.com/icymirror/larkgpt/internal/logging"
)

// FeedEvent is one lifecycle event on the observer feed.
type FeedEvent struct {
	Type      string    `json:"type"` // "message.received" | "answer.finished"
	MessageID string    `json:"messageId"`
	ChatID    string    `json:"chatId"`
	ChatType  string    `json:"chatType"`
	Text      string    `json:"text,omitempty"`
	Answer    string    `json:"answer,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Feed broadcasts message lifecycle events to WebSocket observers. It is
// the bot's Observer; a write failure detaches the observer.
type Feed struct {
	log *logging.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewFeed creates an empty feed.
func NewFeed(log *logging.Logger) *Feed {
	return &Feed{
		log:   log.Sub("feed"),
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// Attach registers an observer connection.
func (f *Feed) Attach(conn *websocket.Conn) {
	f.mu.Lock()
	f.conns[conn] = struct{}{}
	n := len(f.conns)
	f.mu.Unlock()
	f.log.Debug().Int("observers", n).Msg("observer attached")
}

// Detach removes and closes an observer connection.
func (f *Feed) Detach(conn *websocket.Conn) {
	f.mu.Lock()
	delete(f.conns, conn)
	f.mu.Unlock()
	conn.Close()
}

// Count returns the number of attached observers.
func (f *Feed) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

// CloseAll closes every observer connection.
func (f *Feed) CloseAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for conn := range f.conns {
		conn.Close()
		delete(f.conns, conn)
	}
}

// MessageReceived implements the bot's Observer.
func (f *Feed) MessageReceived(msg domain.IncomingMessage) {
	f.publish(FeedEvent{
		Type:      "message.received",
		MessageID: msg.MessageID,
		ChatID:    msg.ChatID,
		ChatType:  string(msg.ChatType),
		Text:      msg.Text,
		Timestamp: time.Now(),
	})
}

// AnswerFinished implements the bot's Observer.
func (f *Feed) AnswerFinished(msg domain.IncomingMessage, answer string) {
	f.publish(FeedEvent{
		Type:      "answer.finished",
		MessageID: msg.MessageID,
		ChatID:    msg.ChatID,
		ChatType:  string(msg.ChatType),
		Answer:    answer,
		Timestamp: time.Now(),
	})
}

func (f *Feed) publish(ev FeedEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for conn := range f.conns {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(ev); err != nil {
			f.log.Debug().Err(err).Msg("dropping observer")
			conn.Close()
			delete(f.conns, conn)
		}
	}
}
