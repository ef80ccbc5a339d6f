// Package bot runs the full pipeline for one inbound message: card setup,
// streamed completion, function dispatch, and the final card edit.
package bot

import (
	"context"
	"time"

	"github.com/icymirror/larkgpt/internal/chat"
	"github.com/icymirror/larkgpt/internal/domain"
	"github.com/icymirror/larkgpt/internal/logging"
	"github.com/icymirror/larkgpt/internal/render"
	"github.com/icymirror/larkgpt/internal/search"
	"github.com/icymirror/larkgpt/internal/throttle"
)

// answerTimeout bounds the end-to-end handling of one message.
const answerTimeout = 10 * time.Minute

// Streamer produces the streamed answer for a question.
type Streamer interface {
	ChatStream(ctx context.Context, user, question, model string, fns []chat.FunctionDescriptor) <-chan string
}

// Notifier sends plain text replies, used for error notices. The messenger
// client satisfies this.
type Notifier interface {
	ReplyText(ctx context.Context, messageID, text string) error
}

// Observer is notified of message lifecycle events. May be nil.
type Observer interface {
	MessageReceived(msg domain.IncomingMessage)
	AnswerFinished(msg domain.IncomingMessage, answer string)
}

// Bot answers inbound messages. Safe for concurrent use; each message gets
// its own card renderer and throttle sink.
type Bot struct {
	streamer  Streamer
	messenger render.Messenger
	notifier  Notifier
	searcher  search.Searcher // nil disables the search function
	store     search.ResultStore
	gap       time.Duration
	observer  Observer
	log       *logging.Logger
}

// Config wires a Bot.
type Config struct {
	Streamer  Streamer
	Messenger render.Messenger
	Notifier  Notifier
	Searcher  search.Searcher
	Store     search.ResultStore

	// Gap between card edits. Zero means throttle.DefaultGap.
	Gap time.Duration

	Observer Observer
}

// New builds a Bot.
func New(cfg Config, log *logging.Logger) *Bot {
	gap := cfg.Gap
	if gap <= 0 {
		gap = throttle.DefaultGap
	}
	return &Bot{
		streamer:  cfg.Streamer,
		messenger: cfg.Messenger,
		notifier:  cfg.Notifier,
		searcher:  cfg.Searcher,
		store:     cfg.Store,
		gap:       gap,
		observer:  cfg.Observer,
		log:       log.Sub("bot"),
	}
}

// HandleMessage answers one message, blocking until the answer is complete.
// The gateway calls this on its own goroutine per event.
func (b *Bot) HandleMessage(ctx context.Context, msg domain.IncomingMessage) {
	ctx, cancel := context.WithTimeout(ctx, answerTimeout)
	defer cancel()

	log := b.log.Sub(msg.MessageID)
	log.Info().
		Str("chat", msg.ChatID).
		Str("type", string(msg.ChatType)).
		Msg("answering message")

	if b.observer != nil {
		b.observer.MessageReceived(msg)
	}

	r := render.NewRenderer(ctx, b.messenger, msg.MessageID, throttle.NewSink(b.gap), log)

	// History is shared per chat so group members talk to one thread.
	user := msg.ChatID
	fns := b.functions(r, user)

	for v := range b.streamer.ChatStream(ctx, user, msg.Text, "", fns) {
		r.Reply(ctx, v)
	}
	r.Final(ctx)

	if b.observer != nil {
		b.observer.AnswerFinished(msg, r.Answer())
	}
	log.Info().Int("answer_len", len(r.Answer())).Msg("answer finished")
}

// unsupportedNotice is sent for message types the bot cannot answer.
const unsupportedNotice = "Only text messages are supported for now."

// HandleUnsupported tells the sender the message type can't be answered.
func (b *Bot) HandleUnsupported(ctx context.Context, messageID string) {
	if b.notifier == nil {
		return
	}
	if err := b.notifier.ReplyText(ctx, messageID, unsupportedNotice); err != nil {
		b.log.Warn().Err(err).Str("message", messageID).Msg("sending unsupported notice failed")
	}
}

// functions builds the per-message function descriptors. The search
// announcement lands above the answer in the card being streamed.
func (b *Bot) functions(r *render.Renderer, user string) []chat.FunctionDescriptor {
	if b.searcher == nil {
		return nil
	}

	announce := func(keyword string) {
		r.AddPreElement(context.Background(), render.MarkdownElement{
			Content: "🔍 Searching the web: **" + keyword + "**",
		})
	}
	return []chat.FunctionDescriptor{
		search.NewFunction(b.searcher, b.store, b.streamer, user, announce, b.log),
	}
}
