package reading

import (
	"context"
	"sync"
	"time"

	"readearn/internal/domain"
	"readearn/internal/logger"
)

// Key identifies a session: the owner (BFF session id or CLI profile) and
// the article.
type Key struct {
	Owner     string
	ArticleID int64
}

// Registry keeps one Session per (owner, article) and remembers which
// articles already paid out, so a new session for them starts terminal.
type Registry struct {
	opts Options

	mu       sync.Mutex
	sessions map[Key]*Session

	// separate lock: sessions consult it from NewSession while mu is held
	rmu      sync.Mutex
	rewarded map[Key]struct{}
}

// NewRegistry creates a registry; opts is the template for every session.
func NewRegistry(opts Options) *Registry {
	return &Registry{
		opts:     opts,
		sessions: make(map[Key]*Session),
		rewarded: make(map[Key]struct{}),
	}
}

// Open returns the owner's session for article, creating it if needed.
func (r *Registry) Open(owner string, article domain.Article, deps Deps) *Session {
	key := Key{Owner: owner, ArticleID: article.ID}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[key]; ok {
		s.touch()
		return s
	}

	opts := r.opts
	opts.IsRewarded = func(articleID int64) bool { return r.isRewarded(owner, articleID) }
	opts.OnRewarded = func(articleID int64) { r.markRewarded(owner, articleID) }

	s := NewSession(article, deps, opts)
	r.sessions[key] = s
	return s
}

func (r *Registry) Get(owner string, articleID int64) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[Key{Owner: owner, ArticleID: articleID}]
	if ok {
		s.touch()
	}
	return s, ok
}

// Find looks a session up by article slug.
func (r *Registry) Find(owner, slug string) (*Session, bool) {
	r.mu.Lock()
	candidates := make([]*Session, 0, 1)
	for k, s := range r.sessions {
		if k.Owner == owner {
			candidates = append(candidates, s)
		}
	}
	r.mu.Unlock()

	for _, s := range candidates {
		if s.Article().Slug == slug {
			s.touch()
			return s, true
		}
	}
	return nil, false
}

// CancelOthers cancels the owner's running countdowns except the one for
// articleID. A reader follows one article at a time.
func (r *Registry) CancelOthers(owner string, articleID int64) int {
	r.mu.Lock()
	var running []*Session
	for k, s := range r.sessions {
		if k.Owner == owner && k.ArticleID != articleID {
			running = append(running, s)
		}
	}
	r.mu.Unlock()

	n := 0
	for _, s := range running {
		if s.Abandon() {
			n++
		}
	}
	return n
}

// Owned counts the open sessions of owner.
func (r *Registry) Owned(owner string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k := range r.sessions {
		if k.Owner == owner {
			n++
		}
	}
	return n
}

// Close closes and forgets one session.
func (r *Registry) Close(owner string, articleID int64) {
	key := Key{Owner: owner, ArticleID: articleID}
	r.mu.Lock()
	s, ok := r.sessions[key]
	delete(r.sessions, key)
	r.mu.Unlock()
	if ok {
		s.Close()
	}
}

// CloseOwner closes every session of owner, e.g. on logout.
func (r *Registry) CloseOwner(owner string) {
	r.mu.Lock()
	var closing []*Session
	for k, s := range r.sessions {
		if k.Owner == owner {
			closing = append(closing, s)
			delete(r.sessions, k)
		}
	}
	r.mu.Unlock()

	r.rmu.Lock()
	for k := range r.rewarded {
		if k.Owner == owner {
			delete(r.rewarded, k)
		}
	}
	r.rmu.Unlock()

	for _, s := range closing {
		s.Close()
	}
}

// CloseAll is used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[Key]*Session)
	r.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}

// Sweep closes sessions that have been idle for at least idle: no countdown,
// no pending action and nobody watching. It returns how many were closed.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	var closing []*Session
	for k, s := range r.sessions {
		if s.idleSince(cutoff) {
			closing = append(closing, s)
			delete(r.sessions, k)
		}
	}
	r.mu.Unlock()

	for _, s := range closing {
		s.Close()
	}
	return len(closing)
}

// StartCleanup sweeps idle sessions every interval until ctx is done. A
// non-positive interval or idle disables it.
func (r *Registry) StartCleanup(ctx context.Context, interval, idle time.Duration) {
	if interval <= 0 || idle <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.Sweep(idle); n > 0 {
					logger.Debug("idle reading sessions closed", "count", n, "open", r.Len())
				}
			}
		}
	}()
}

func (r *Registry) now() time.Time {
	if r.opts.Clock == nil {
		return time.Now()
	}
	return r.opts.Clock.Now()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) isRewarded(owner string, articleID int64) bool {
	r.rmu.Lock()
	defer r.rmu.Unlock()
	_, ok := r.rewarded[Key{Owner: owner, ArticleID: articleID}]
	return ok
}

func (r *Registry) markRewarded(owner string, articleID int64) {
	r.rmu.Lock()
	defer r.rmu.Unlock()
	r.rewarded[Key{Owner: owner, ArticleID: articleID}] = struct{}{}
}
