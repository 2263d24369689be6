package conversation

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// Store keeps the current state of every user. A user without a stored
// state is Idle.
type Store interface {
	Get(ctx context.Context, userID int64) (State, error)
	Set(ctx context.Context, userID int64, s State) error
	Clear(ctx context.Context, userID int64) error
}

type MemoryStore struct {
	mu     sync.Mutex
	states map[int64]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[int64]State)}
}

func (m *MemoryStore) Get(_ context.Context, userID int64) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.states[userID]; ok {
		return s, nil
	}
	return Idle{}, nil
}

func (m *MemoryStore) Set(_ context.Context, userID int64, s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, idle := s.(Idle); idle {
		delete(m.states, userID)
		return nil
	}
	m.states[userID] = s
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, userID)
	return nil
}

// Backend is a byte store for encoded states, such as the redis cache.
type Backend interface {
	SetState(ctx context.Context, userID int64, data []byte, ttl time.Duration) error
	GetState(ctx context.Context, userID int64) ([]byte, error)
	DeleteState(ctx context.Context, userID int64) error
}

// RemoteStore keeps states in a Backend so dialogs survive restarts.
// Unfinished dialogs expire after TTL.
type RemoteStore struct {
	backend Backend
	miss    error
	ttl     time.Duration
}

// NewRemoteStore wraps backend; miss is the error backend returns for a
// user without state.
func NewRemoteStore(backend Backend, miss error, ttl time.Duration) *RemoteStore {
	return &RemoteStore{backend: backend, miss: miss, ttl: ttl}
}

func (r *RemoteStore) Get(ctx context.Context, userID int64) (State, error) {
	raw, err := r.backend.GetState(ctx, userID)
	if err != nil {
		if errors.Is(err, r.miss) {
			return Idle{}, nil
		}
		return nil, err
	}
	s, err := Decode(raw)
	if err != nil {
		log.Printf("Dropping unreadable state of user %d: %v", userID, err)
		return Idle{}, nil
	}
	return s, nil
}

func (r *RemoteStore) Set(ctx context.Context, userID int64, s State) error {
	if _, idle := s.(Idle); idle {
		return r.backend.DeleteState(ctx, userID)
	}
	data, err := Encode(s)
	if err != nil {
		return err
	}
	return r.backend.SetState(ctx, userID, data, r.ttl)
}

func (r *RemoteStore) Clear(ctx context.Context, userID int64) error {
	return r.backend.DeleteState(ctx, userID)
}
