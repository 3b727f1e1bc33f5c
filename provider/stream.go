package provider

import (
	"errors"
	"io"
	"strings"
	"sync"
)

// TokenStream is a lazy, finite, single-pass sequence of text tokens.
// Recv returns io.EOF once the sequence is exhausted and keeps returning it.
// A stream cannot be restarted.
type TokenStream struct {
	mu     sync.Mutex
	next   func() (string, error)
	close  func() error
	done   bool
	err    error
	closed bool
	onEOF  []func()
}

// NewTokenStream wraps a producer. next must return io.EOF at the end.
// close may be nil.
func NewTokenStream(next func() (string, error), close func() error) *TokenStream {
	return &TokenStream{next: next, close: close}
}

// StaticStream yields the given tokens in order.
func StaticStream(tokens ...string) *TokenStream {
	i := 0
	return NewTokenStream(func() (string, error) {
		if i >= len(tokens) {
			return "", io.EOF
		}
		t := tokens[i]
		i++
		return t, nil
	}, nil)
}

// Recv returns the next token.
func (s *TokenStream) Recv() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return "", s.err
	}
	if s.closed {
		return "", io.ErrClosedPipe
	}
	tok, err := s.next()
	if err != nil {
		s.done = true
		s.err = err
		if errors.Is(err, io.EOF) {
			s.err = io.EOF
			hooks := s.onEOF
			s.onEOF = nil
			s.mu.Unlock()
			for _, h := range hooks {
				h()
			}
			s.mu.Lock()
		}
		s.release()
		return "", s.err
	}
	return tok, nil
}

// OnEOF registers fn to run once when the stream is drained to completion.
// It never runs for a stream that failed or was closed early.
func (s *TokenStream) OnEOF(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEOF = append(s.onEOF, fn)
}

// Close releases the producer. Tokens not yet received are discarded.
func (s *TokenStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if !s.done {
		s.done = true
		s.err = io.ErrClosedPipe
	}
	s.onEOF = nil
	return s.release()
}

func (s *TokenStream) release() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.close != nil {
		return s.close()
	}
	return nil
}

// Drain consumes s to the end and returns the concatenated, trimmed text.
func Drain(s *TokenStream) (string, error) {
	var b strings.Builder
	for {
		tok, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return strings.TrimSpace(b.String()), nil
		}
		if err != nil {
			_ = s.Close()
			return "", err
		}
		b.WriteString(tok)
	}
}
