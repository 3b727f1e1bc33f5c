// Package providertest offers a scripted in-memory provider.Provider for tests.
package providertest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/mohammad-safakhou/intelliweb/provider"
)

// Reply is one scripted answer. Err fails the call instead.
type Reply struct {
	Text string
	Err  error
}

// Responder picks the reply for a request. It runs under the fake's lock.
type Responder func(req provider.Request) Reply

// Fake records every request and answers from a Responder. Replies are
// streamed word by word so consumers exercise token concatenation.
type Fake struct {
	mu       sync.Mutex
	respond  Responder
	requests []provider.Request

	// EmbedFunc overrides Embed when set.
	EmbedFunc func(texts []string) ([][]float32, error)
}

// New returns a Fake driven by respond.
func New(respond Responder) *Fake {
	return &Fake{respond: respond}
}

// Script returns a Fake that answers with replies in order and fails once
// they run out.
func Script(replies ...Reply) *Fake {
	i := 0
	return New(func(provider.Request) Reply {
		if i >= len(replies) {
			return Reply{Err: errors.New("providertest: script exhausted")}
		}
		r := replies[i]
		i++
		return r
	})
}

func (f *Fake) Stream(ctx context.Context, req provider.Request) (*provider.TokenStream, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	r := f.respond(req)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return provider.StaticStream(splitKeepSpaces(r.Text)...), nil
}

func (f *Fake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.EmbedFunc != nil {
		return f.EmbedFunc(texts)
	}
	return nil, errors.New("providertest: embeddings not scripted")
}

// Requests returns a copy of every request seen so far.
func (f *Fake) Requests() []provider.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]provider.Request(nil), f.requests...)
}

// Calls reports how many chat requests were made.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func splitKeepSpaces(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for len(s) > 0 {
		i := strings.IndexByte(s[1:], ' ')
		if i < 0 {
			out = append(out, s)
			break
		}
		out = append(out, s[:i+1])
		s = s[i+1:]
	}
	return out
}
