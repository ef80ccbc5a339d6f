package chat

import (
	"context"

	"github.com/icymirror/larkgpt/internal/llm"
)

// FunctionDescriptor pairs a callable function's schema, as advertised to
// the model, with the local handler that runs when the model requests it.
type FunctionDescriptor struct {
	Schema llm.FunctionSchema

	// Handle runs the function with the model-supplied JSON arguments and
	// streams answer-so-far values. The channel must be closed when the
	// handler is done; failures are reported as streamed text, not errors.
	Handle func(ctx context.Context, arguments string) <-chan string
}

// resolve finds the descriptor for a function name, or nil.
func resolve(fns []FunctionDescriptor, name string) *FunctionDescriptor {
	for i := range fns {
		if fns[i].Schema.Name == name {
			return &fns[i]
		}
	}
	return nil
}

// schemas extracts the wire schemas advertised in a completion request.
func schemas(fns []FunctionDescriptor) []llm.FunctionSchema {
	if len(fns) == 0 {
		return nil
	}
	out := make([]llm.FunctionSchema, len(fns))
	for i, d := range fns {
		out[i] = d.Schema
	}
	return out
}
