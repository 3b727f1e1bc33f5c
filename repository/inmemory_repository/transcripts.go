package inmemory_repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/mohammad-safakhou/intelliweb/models"
)

// Transcripts keeps sessions in process memory. Sessions live until deleted.
type Transcripts struct {
	mu       sync.RWMutex
	sessions map[string]models.Transcript
}

func New() *Transcripts {
	return &Transcripts{sessions: make(map[string]models.Transcript)}
}

func (s *Transcripts) Create(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; ok {
		return fmt.Errorf("session %s already exists", sessionID)
	}
	s.sessions[sessionID] = models.Transcript{}
	return nil
}

func (s *Transcripts) Get(_ context.Context, sessionID string) (models.Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.sessions[sessionID]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return append(models.Transcript(nil), t...), nil
}

func (s *Transcripts) Append(_ context.Context, sessionID string, turns ...models.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.sessions[sessionID]
	if !ok {
		return models.ErrSessionNotFound
	}
	next := append(models.Transcript(nil), t...)
	var err error
	for _, turn := range turns {
		if next, err = next.Append(turn); err != nil {
			return err
		}
	}
	s.sessions[sessionID] = next
	return nil
}

func (s *Transcripts) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return models.ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}
