// Package chat turns one user question into a streamed answer: it replays
// recent history, drives the completion stream, dispatches model-requested
// function calls, and persists the finished turn.
package chat

import (
	"context"
	"time"

	"github.com/icymirror/larkgpt/internal/domain"
	"github.com/icymirror/larkgpt/internal/history"
	"github.com/icymirror/larkgpt/internal/llm"
	"github.com/icymirror/larkgpt/internal/logging"
)

// Diagnostic is streamed when a failure left the answer completely empty.
const Diagnostic = "The service is busy right now, please try again later."

// shrinkStep is how many leading history messages are dropped per retry
// when the completion API rejects the request for context length.
const shrinkStep = 2

// persistTimeout bounds the detached write of the finished turn.
const persistTimeout = 10 * time.Second

// Orchestrator coordinates history, the completion API, and function
// handlers for a single bot installation. Safe for concurrent use.
type Orchestrator struct {
	completer llm.Completer
	store     history.Store
	model     string
	window    int
	log       *logging.Logger
}

// NewOrchestrator wires an orchestrator. An empty model falls back to the
// completion client's default.
func NewOrchestrator(completer llm.Completer, store history.Store, model string, log *logging.Logger) *Orchestrator {
	return &Orchestrator{
		completer: completer,
		store:     store,
		model:     model,
		window:    history.DefaultWindow,
		log:       log.Sub("chat"),
	}
}

// WithWindow overrides how many recent turns are replayed as context.
func (o *Orchestrator) WithWindow(n int) *Orchestrator {
	if n > 0 {
		o.window = n
	}
	return o
}

// ChatStream answers a question with a stream of answer-so-far values. The
// channel closes when the answer is complete. An empty model falls back to
// the orchestrator's configured default. Transport and API failures do not
// surface as errors: a failed chain carries a diagnostic instead, and only
// when nothing else was produced. A stream that ends cleanly without output
// stays silent.
func (o *Orchestrator) ChatStream(ctx context.Context, user, question, model string, fns []FunctionDescriptor) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		o.run(ctx, user, question, model, fns, out)
	}()
	return out
}

func (o *Orchestrator) run(ctx context.Context, user, question, model string, fns []FunctionDescriptor, out chan<- string) {
	turns, err := o.store.RecentTurns(ctx, user, o.window)
	if err != nil {
		o.log.Warn().Err(err).Str("user", user).Msg("loading history failed, answering without context")
	}
	prior := history.Messages(turns)
	if model == "" {
		model = o.model
	}

	events, ok := o.openStream(ctx, prior, question, model, fns, out)
	if !ok {
		return
	}

	var answer string
	produced := false
	failed := false
	emit := func(v string) bool {
		select {
		case out <- v:
			produced = true
			return true
		case <-ctx.Done():
			return false
		}
	}

	for ev := range events {
		switch ev.Type {
		case llm.EventText:
			answer = ev.Text
			if !emit(answer) {
				return
			}
		case llm.EventFunctionCall:
			o.dispatchFunction(ctx, user, question, ev.FunctionCall, fns, emit)
		case llm.EventError:
			failed = true
		}
	}

	if answer != "" {
		// Detached so a slow store never delays closing the stream.
		go o.persistAnswer(ctx, user, question, answer)
		return
	}
	// The diagnostic marks a failed chain only. A stream that ends cleanly
	// with nothing to say, or a function call nothing resolves, stays silent.
	if failed && !produced {
		emit(Diagnostic)
	}
}

// openStream starts the completion stream, shrinking the replayed history
// from the front while the API rejects the request for context length. The
// current question is never dropped. Returns ok=false after streaming the
// diagnostic on unrecoverable failure.
func (o *Orchestrator) openStream(ctx context.Context, prior []llm.Message, question, model string, fns []FunctionDescriptor, out chan<- string) (<-chan llm.Event, bool) {
	req := llm.CompletionRequest{
		Model:     model,
		Stream:    true,
		Functions: schemas(fns),
	}
	if len(fns) > 0 {
		req.FunctionCall = "auto"
	}

	for {
		req.Messages = append(append(make([]llm.Message, 0, len(prior)+1), prior...), llm.Text(llm.RoleUser, question))

		events, err := o.completer.StreamChat(ctx, req)
		if err == nil {
			return events, true
		}
		if llm.IsContextLengthExceeded(err) && len(prior) > 0 {
			drop := shrinkStep
			if drop > len(prior) {
				drop = len(prior)
			}
			prior = prior[drop:]
			o.log.Warn().Int("remaining", len(prior)).Msg("context length exceeded, retrying with shorter history")
			continue
		}

		o.log.Error().Err(err).Msg("completion request failed")
		select {
		case out <- Diagnostic:
		case <-ctx.Done():
		}
		return nil, false
	}
}

// dispatchFunction persists the function-call turn and splices the handler's
// stream into the answer. An unknown function name is logged and dropped.
func (o *Orchestrator) dispatchFunction(ctx context.Context, user, question string, fc *domain.FunctionCall, fns []FunctionDescriptor, emit func(string) bool) {
	if fc == nil {
		return
	}

	turn := domain.Turn{
		User:         user,
		Sent:         question,
		FunctionCall: fc,
		CreatedAt:    time.Now(),
	}
	if _, err := o.store.AppendTurn(ctx, turn); err != nil {
		o.log.Error().Err(err).Str("function", fc.Name).Msg("persisting function call failed")
	}

	d := resolve(fns, fc.Name)
	if d == nil {
		o.log.Warn().Str("function", fc.Name).Msg("model requested an unknown function")
		return
	}

	o.log.Info().Str("function", fc.Name).Msg("running function")
	for v := range d.Handle(ctx, fc.Arguments) {
		if !emit(v) {
			return
		}
	}
}

func (o *Orchestrator) persistAnswer(ctx context.Context, user, question, answer string) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	turn := domain.Turn{
		User:      user,
		Sent:      question,
		Answer:    answer,
		CreatedAt: time.Now(),
	}
	if _, err := o.store.AppendTurn(pctx, turn); err != nil {
		o.log.Error().Err(err).Str("user", user).Msg("persisting answer failed")
	}
}
