package engagement

import (
	"context"
	"sync"

	"readearn/internal/domain"

	"github.com/shopspring/decimal"
)

// Toggler is the remote like/bookmark API.
type Toggler interface {
	ToggleLike(ctx context.Context, articleID int64) (*domain.LikeToggle, error)
	ToggleBookmark(ctx context.Context, articleID int64) (*domain.BookmarkToggle, error)
}

// State is what a UI shows for one article.
type State struct {
	ArticleID   int64 `json:"article_id"`
	Liked       bool  `json:"liked"`
	Likes       int64 `json:"likes_count"`
	Bookmarked  bool  `json:"bookmarked"`
	Bookmarks   int64 `json:"bookmarks_count"`
	Provisional bool  `json:"provisional"`
}

type flag struct {
	confirmed   bool
	provisional *bool
}

func (f *flag) display() bool {
	if f.provisional != nil {
		return *f.provisional
	}
	return f.confirmed
}

type entry struct {
	liked, bookmarked flag
	likes, bookmarks  domain.Provisional
}

// Tracker applies toggles optimistically and reconciles them with the
// counts the backend returns. A failed toggle reverts the local change.
type Tracker struct {
	svc Toggler

	mu    sync.Mutex
	items map[int64]*entry
}

func NewTracker(svc Toggler) *Tracker {
	return &Tracker{svc: svc, items: make(map[int64]*entry)}
}

// Observe records authoritative values from a fetched article.
func (t *Tracker) Observe(a domain.Article) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entryLocked(a.ID)
	e.liked = flag{confirmed: a.IsLiked}
	e.bookmarked = flag{confirmed: a.IsBookmarked}
	e.likes.Confirm(decimal.NewFromInt(a.LikesCount))
	e.bookmarks.Confirm(decimal.NewFromInt(a.BookmarksCount))
	return t.stateLocked(a.ID, e)
}

func (t *Tracker) State(articleID int64) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateLocked(articleID, t.entryLocked(articleID))
}

func (t *Tracker) ToggleLike(ctx context.Context, articleID int64) (State, error) {
	t.mu.Lock()
	e := t.entryLocked(articleID)
	optimistic(&e.liked, &e.likes)
	t.mu.Unlock()

	res, err := t.svc.ToggleLike(ctx, articleID)

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		e.liked.provisional = nil
		e.likes.Revert()
		return t.stateLocked(articleID, e), err
	}
	e.liked = flag{confirmed: res.Liked}
	e.likes.Confirm(decimal.NewFromInt(res.LikesCount))
	return t.stateLocked(articleID, e), nil
}

func (t *Tracker) ToggleBookmark(ctx context.Context, articleID int64) (State, error) {
	t.mu.Lock()
	e := t.entryLocked(articleID)
	optimistic(&e.bookmarked, &e.bookmarks)
	t.mu.Unlock()

	res, err := t.svc.ToggleBookmark(ctx, articleID)

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		e.bookmarked.provisional = nil
		e.bookmarks.Revert()
		return t.stateLocked(articleID, e), err
	}
	e.bookmarked = flag{confirmed: res.Bookmarked}
	e.bookmarks.Confirm(decimal.NewFromInt(res.BookmarksCount))
	return t.stateLocked(articleID, e), nil
}

func optimistic(f *flag, counter *domain.Provisional) {
	next := !f.display()
	f.provisional = &next
	if next {
		counter.Adjust(decimal.NewFromInt(1))
	} else if counter.Display().IsPositive() {
		counter.Adjust(decimal.NewFromInt(-1))
	}
}

func (t *Tracker) entryLocked(id int64) *entry {
	e, ok := t.items[id]
	if !ok {
		e = &entry{}
		t.items[id] = e
	}
	return e
}

func (t *Tracker) stateLocked(id int64, e *entry) State {
	return State{
		ArticleID:   id,
		Liked:       e.liked.display(),
		Likes:       e.likes.Display().IntPart(),
		Bookmarked:  e.bookmarked.display(),
		Bookmarks:   e.bookmarks.Display().IntPart(),
		Provisional: e.liked.provisional != nil || e.bookmarked.provisional != nil || e.likes.IsProvisional() || e.bookmarks.IsProvisional(),
	}
}
