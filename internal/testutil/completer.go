package testutil

import (
	"context"
	"sync"
)

// FakeCompleter answers language model prompts from a table. Prompts without
// an entry fail with Err, or return an empty string when Err is nil.
type FakeCompleter struct {
	Replies map[string]string
	Err     error

	mu    sync.Mutex
	calls []string
}

func (f *FakeCompleter) Complete(_ context.Context, prompt string, _ any) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, prompt)
	f.mu.Unlock()

	if reply, ok := f.Replies[prompt]; ok {
		return reply, nil
	}
	return "", f.Err
}

// Calls returns the prompts requested so far, in order.
func (f *FakeCompleter) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
