package auth

import (
	"context"
	"errors"
	"sync"
)

// ErrNoTokens is returned by Store.Load when nothing is stored under the key.
var ErrNoTokens = errors.New("no tokens stored")

// Tokens is the bearer pair issued by the platform.
type Tokens struct {
	Access  string `json:"access" yaml:"access"`
	Refresh string `json:"refresh" yaml:"refresh"`
}

// Store persists token pairs by key (a BFF session id, or a profile name for
// the terminal client).
type Store interface {
	Load(ctx context.Context, key string) (Tokens, error)
	Save(ctx context.Context, key string, t Tokens) error
	Delete(ctx context.Context, key string) error
}

// MemoryStore keeps tokens in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]Tokens
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]Tokens)}
}

func (s *MemoryStore) Load(_ context.Context, key string) (Tokens, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[key]
	if !ok {
		return Tokens{}, ErrNoTokens
	}
	return t, nil
}

func (s *MemoryStore) Save(_ context.Context, key string, t Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[key] = t
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, key)
	return nil
}

// Binding adapts one key of a Store to api.TokenSource.
type Binding struct {
	store Store
	key   string
}

// Bind returns the token source for key.
func Bind(store Store, key string) *Binding {
	return &Binding{store: store, key: key}
}

func (b *Binding) Key() string { return b.key }

// Tokens returns empty strings when nothing is stored, so that the client
// sends the request anonymously and lets the backend decide.
func (b *Binding) Tokens(ctx context.Context) (string, string, error) {
	t, err := b.store.Load(ctx, b.key)
	if errors.Is(err, ErrNoTokens) {
		return "", "", nil
	}
	if err != nil {
		return "", "", err
	}
	return t.Access, t.Refresh, nil
}

func (b *Binding) SetTokens(ctx context.Context, access, refresh string) error {
	return b.store.Save(ctx, b.key, Tokens{Access: access, Refresh: refresh})
}

func (b *Binding) Clear(ctx context.Context) error {
	return b.store.Delete(ctx, b.key)
}
