package render

import (
	"context"
	"sync"

	"github.com/icymirror/larkgpt/internal/logging"
	"github.com/icymirror/larkgpt/internal/throttle"
)

// thinkingNote is the status annotation shown while the answer grows.
const thinkingNote = "Thinking, please wait..."

// Messenger is the outbound render collaborator.
type Messenger interface {
	// Reply posts a card as a reply to the target message and returns the
	// outgoing message id.
	Reply(ctx context.Context, messageID string, card Card) (string, error)

	// Patch replaces the content of an already-sent card message.
	Patch(ctx context.Context, messageID string, card Card) error
}

// Renderer incrementally edits one outgoing card message as answer text
// arrives. The throttled sink gates edit frequency; all transport failures
// are logged and swallowed so a failed card update never aborts the stream.
// Not shared across messages: one renderer per inbound question.
type Renderer struct {
	target    string // inbound message id replied to
	messenger Messenger
	sink      *throttle.Sink
	log       *logging.Logger

	mu        sync.Mutex
	cardMsgID string
	answer    string
	pre       []Element
	finalized bool
}

// NewRenderer creates a renderer for one inbound message and eagerly submits
// the placeholder-creating action through the sink.
func NewRenderer(ctx context.Context, messenger Messenger, targetMessageID string, sink *throttle.Sink, log *logging.Logger) *Renderer {
	r := &Renderer{
		target:    targetMessageID,
		messenger: messenger,
		sink:      sink,
		log:       log.Sub("render"),
	}
	r.sink.Submit(func() {
		id, err := r.messenger.Reply(ctx, r.target, NewCard(NoteElement{thinkingNote}))
		if err != nil {
			r.log.Error().Err(err).Str("target", r.target).Msg("placeholder reply failed")
			return
		}
		r.mu.Lock()
		r.cardMsgID = id
		r.mu.Unlock()
	})
	return r
}

// Reply sets the accumulated answer and schedules a card patch.
func (r *Renderer) Reply(ctx context.Context, text string) {
	r.mu.Lock()
	r.answer = text
	r.mu.Unlock()
	r.sink.Submit(func() { r.patch(ctx, true, nil) })
}

// AddPreElement appends a status annotation rendered above the answer and
// schedules a card patch.
func (r *Renderer) AddPreElement(ctx context.Context, e Element) {
	r.mu.Lock()
	r.pre = append(r.pre, e)
	r.mu.Unlock()
	r.sink.Submit(func() { r.patch(ctx, true, nil) })
}

// Answer returns the accumulated answer text.
func (r *Renderer) Answer() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.answer
}

// Final commits the terminal card without the progress note, optionally with
// trailing extra elements. At most one finalize takes effect.
func (r *Renderer) Final(ctx context.Context, extra ...Element) {
	r.mu.Lock()
	if r.finalized {
		r.mu.Unlock()
		r.log.Warn().Str("target", r.target).Msg("duplicate finalize dropped")
		return
	}
	r.finalized = true
	r.mu.Unlock()
	r.sink.Submit(func() { r.patch(ctx, false, extra) })
}

// patch re-renders the card as [preElements..., answer, note?]. A patch
// arriving before the placeholder id is known is dropped, not fatal: the
// eager first submission normally wins that race, but a slow create must
// not crash the stream.
func (r *Renderer) patch(ctx context.Context, withNote bool, extra []Element) {
	r.mu.Lock()
	id := r.cardMsgID
	answer := r.answer
	pre := make([]Element, len(r.pre))
	copy(pre, r.pre)
	r.mu.Unlock()

	if id == "" {
		r.log.Warn().Str("target", r.target).Msg("card id not assigned yet, dropping patch")
		return
	}

	elements := pre
	if answer != "" {
		elements = append(elements, TextElement{Content: answer})
	}
	if withNote {
		elements = append(elements, NoteElement{Content: thinkingNote})
	}
	elements = append(elements, extra...)

	if err := r.messenger.Patch(ctx, id, NewCard(elements...)); err != nil {
		r.log.Error().Err(err).Str("cardMsgId", id).Msg("card patch failed")
	}
}
