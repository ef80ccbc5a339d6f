package lark

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/icymirror/larkgpt/internal/domain"
)

// EventMessageReceive is the event type for new inbound IM messages.
const EventMessageReceive = "im.message.receive_v1"

// mentionToken matches the placeholder the platform substitutes for
// an @-mention inside message text.
var mentionToken = regexp.MustCompile(`(?i)@_user_\d+`)

// EventEnvelope is the webhook payload shape, covering both the one-time
// URL verification handshake and the v2 event schema.
type EventEnvelope struct {
	Challenge string `json:"challenge"`
	Token     string `json:"token"`
	Type      string `json:"type"`

	Header struct {
		EventID   string `json:"event_id"`
		EventType string `json:"event_type"`
		Token     string `json:"token"`
	} `json:"header"`

	Event struct {
		Sender struct {
			SenderID struct {
				OpenID string `json:"open_id"`
			} `json:"sender_id"`
		} `json:"sender"`
		Message eventMessage `json:"message"`
	} `json:"event"`
}

type eventMessage struct {
	MessageID   string `json:"message_id"`
	ChatID      string `json:"chat_id"`
	ChatType    string `json:"chat_type"`
	MessageType string `json:"message_type"`
	Content     string `json:"content"`
	Mentions    []struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	} `json:"mentions"`
}

// IsURLVerification reports whether the envelope is the endpoint handshake.
func (e *EventEnvelope) IsURLVerification() bool {
	return e.Type == "url_verification"
}

// VerificationToken returns the token from whichever schema carried it.
func (e *EventEnvelope) VerificationToken() string {
	if e.Token != "" {
		return e.Token
	}
	return e.Header.Token
}

// IsTextMessage reports whether the envelope is a plain text IM message.
func (e *EventEnvelope) IsTextMessage() bool {
	return e.Header.EventType == EventMessageReceive && e.Event.Message.MessageType == "text"
}

// ParseMessage extracts a normalized message from a receive event. The
// second return is false when the event should be silently dropped: group
// messages that don't address the bot, or content that fails to parse.
func ParseMessage(e *EventEnvelope, botName string) (domain.IncomingMessage, bool) {
	msg := e.Event.Message

	var content struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(msg.Content), &content); err != nil {
		return domain.IncomingMessage{}, false
	}

	mentions := make([]domain.Mention, 0, len(msg.Mentions))
	for _, m := range msg.Mentions {
		mentions = append(mentions, domain.Mention{Key: m.Key, Name: m.Name})
	}

	if msg.ChatType == string(domain.ChatTypeGroup) {
		if len(msg.Mentions) == 0 {
			return domain.IncomingMessage{}, false
		}
		if strings.Contains(content.Text, "@_all") && !mentionsName(mentions, botName) {
			return domain.IncomingMessage{}, false
		}
	}

	text := strings.TrimSpace(mentionToken.ReplaceAllString(content.Text, ""))
	if text == "" {
		return domain.IncomingMessage{}, false
	}

	return domain.IncomingMessage{
		MessageID: msg.MessageID,
		ChatID:    msg.ChatID,
		ChatType:  domain.ChatType(msg.ChatType),
		Text:      text,
		Mentions:  mentions,
		Timestamp: time.Now(),
	}, true
}

func mentionsName(mentions []domain.Mention, name string) bool {
	for _, m := range mentions {
		if m.Name == name {
			return true
		}
	}
	return false
}
