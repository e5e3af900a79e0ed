package reading

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"readearn/internal/api"
	"readearn/internal/clock"
	"readearn/internal/domain"
	"readearn/internal/logger"
	"readearn/internal/wallet"

	"github.com/shopspring/decimal"
)

// Rewards is the remote side of a reading session.
type Rewards interface {
	StartReading(ctx context.Context, articleID int64) (*domain.ReadingStart, error)
	CollectReward(ctx context.Context, articleID int64, elapsedMinutes *int) (*domain.RewardCollection, error)
	GiftPoints(ctx context.Context, req domain.GiftRequest) (*domain.GiftResult, error)
}

// Wallet is the snapshot cache the session refreshes after mutations.
type Wallet interface {
	Refresh(ctx context.Context) (domain.WalletInfo, error)
	CurrentOrRefresh(ctx context.Context) (domain.WalletInfo, error)
}

// Journal records reward and gift outcomes. audit.Service implements it.
type Journal interface {
	Log(ctx context.Context, userID int64, action, category string, details map[string]interface{})
}

// Deps are the per-user collaborators of a session.
type Deps struct {
	Rewards Rewards
	Wallet  Wallet
	UserID  int64
}

type Options struct {
	Clock        clock.Clock
	TickInterval time.Duration
	// SendElapsedMinutes adds elapsed_minutes to the collect request.
	SendElapsedMinutes bool
	Journal            Journal

	// IsRewarded and OnRewarded let a Registry remember rewarded articles
	// across sessions.
	IsRewarded func(articleID int64) bool
	OnRewarded func(articleID int64)
}

const subscriberBuffer = 64

// Session is the reading-session state machine for one user and one article.
//
// Network calls are made without holding the lock. Each call captures the
// generation; Cancel, ChangeArticle and Close bump it so that late results
// are discarded instead of being applied to a newer session.
type Session struct {
	deps Deps
	opts Options

	mu              sync.Mutex
	article         domain.Article
	state           State
	required        int
	remaining       int
	degraded        bool
	startedAt       time.Time
	points          decimal.Decimal
	requiredMinutes *int
	lastErr         string
	inFlight        string
	gen             uint64
	countdown       *Countdown
	closed          bool

	subs    map[int]chan Event
	nextSub int

	// last time the session changed or was looked up
	touched time.Time
}

func NewSession(article domain.Article, deps Deps, opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	s := &Session{
		deps: deps,
		opts: opts,
		subs: make(map[int]chan Event),
	}
	s.reset(article)
	s.touched = opts.Clock.Now()
	return s
}

// reset puts the session on article in its initial state. Caller holds mu
// (or owns s exclusively).
func (s *Session) reset(article domain.Article) {
	s.article = article
	s.state = StateNotStarted
	s.required = article.RequiredSeconds()
	s.remaining = s.required
	s.degraded = false
	s.startedAt = time.Time{}
	s.points = decimal.Zero
	s.requiredMinutes = nil
	s.lastErr = ""
	if s.opts.IsRewarded != nil && s.opts.IsRewarded(article.ID) {
		s.state = StateAlreadyRewarded
	}
}

// Start begins the reading attempt. A failed start call does not block the
// reader: the countdown runs locally in degraded mode and any inconsistency
// surfaces when collecting.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if err := s.beginLocked("start"); err != nil {
		s.mu.Unlock()
		return err
	}
	switch {
	case s.state.Terminal():
		s.inFlight = ""
		s.mu.Unlock()
		return ErrAlreadyRewarded
	case s.state != StateNotStarted:
		s.inFlight = ""
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	gen := s.gen
	articleID := s.article.ID
	s.emitLocked(EventState, "")
	s.mu.Unlock()

	res, err := s.deps.Rewards.StartReading(ctx, articleID)

	s.mu.Lock()
	if !s.finishLocked(gen) {
		s.mu.Unlock()
		return staleErr(err)
	}

	switch {
	case errors.Is(err, api.ErrSessionExpired):
		s.lastErr = api.Message(err)
		s.emitLocked(EventError, s.lastErr)
		s.mu.Unlock()
		return err
	case errors.Is(err, api.ErrAlreadyRewarded), err == nil && res.IsRewarded:
		s.setStateLocked(StateAlreadyRewarded)
		s.mu.Unlock()
		s.rewarded(articleID)
		s.journal(ctx, articleID, domain.AuditActionAlreadyRewarded, domain.AuditCategoryReading, nil)
		return nil
	case err != nil:
		s.degraded = true
		s.lastErr = api.Message(err)
		logger.WithContext(ctx).Warn("start reading failed, running locally",
			"article_id", articleID,
			"error", err,
		)
	}

	s.startedAt = s.opts.Clock.Now()
	s.remaining = s.required
	if s.required <= 0 {
		s.setStateLocked(StateCompleted)
	} else {
		s.countdown = NewCountdown(s.opts.Clock, s.opts.TickInterval, s.required, s.onTick)
		s.countdown.Start()
		s.setStateLocked(StateRunning)
	}
	degraded := s.degraded
	s.mu.Unlock()

	action := domain.AuditActionReadingStart
	if degraded {
		action = domain.AuditActionReadingDegraded
	}
	s.journal(ctx, articleID, action, domain.AuditCategoryReading, nil)
	return nil
}

func (s *Session) onTick(c *Countdown, remaining int) {
	s.mu.Lock()
	if s.countdown != c || s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	if remaining < 0 {
		remaining = 0
	}
	s.remaining = remaining
	if remaining > 0 {
		s.emitLocked(EventTick, "")
		s.mu.Unlock()
		return
	}

	s.countdown = nil
	s.setStateLocked(StateCompleted)
	articleID, seconds := s.article.ID, s.required
	s.mu.Unlock()

	s.journal(context.Background(), articleID, domain.AuditActionReadingComplete, domain.AuditCategoryReading, map[string]interface{}{
		"required_seconds": seconds,
	})
}

// Collect claims the reward once the countdown has completed. It returns the
// points granted.
func (s *Session) Collect(ctx context.Context) (decimal.Decimal, error) {
	s.mu.Lock()
	if err := s.beginLocked("collect"); err != nil {
		s.mu.Unlock()
		return decimal.Zero, err
	}
	switch s.state {
	case StateCompleted:
	case StateCollected, StateAlreadyRewarded:
		s.inFlight = ""
		s.mu.Unlock()
		return decimal.Zero, ErrAlreadyRewarded
	default:
		s.inFlight = ""
		remaining := s.remaining
		if s.state == StateNotStarted {
			remaining = s.required
		}
		s.mu.Unlock()
		return decimal.Zero, newNotReadyError(remaining)
	}

	gen := s.gen
	article := s.article
	var elapsed *int
	if s.opts.SendElapsedMinutes {
		m := s.elapsedMinutesLocked()
		elapsed = &m
	}
	s.lastErr = ""
	s.setStateLocked(StateCollecting)
	s.mu.Unlock()

	res, err := s.deps.Rewards.CollectReward(ctx, article.ID, elapsed)

	s.mu.Lock()
	if !s.finishLocked(gen) {
		s.mu.Unlock()
		return decimal.Zero, staleErr(err)
	}

	if err != nil {
		if errors.Is(err, api.ErrAlreadyRewarded) {
			s.setStateLocked(StateAlreadyRewarded)
			s.mu.Unlock()
			s.rewarded(article.ID)
			s.refreshWallet(ctx)
			s.journal(ctx, article.ID, domain.AuditActionAlreadyRewarded, domain.AuditCategoryReading, nil)
			return decimal.Zero, ErrAlreadyRewarded
		}

		var apiErr *api.APIError
		if errors.As(err, &apiErr) && apiErr.RequiredMinutes != nil {
			m := *apiErr.RequiredMinutes
			s.requiredMinutes = &m
		}
		s.lastErr = api.Message(err)
		s.setStateLocked(StateCompleted)
		s.emitLocked(EventError, s.lastErr)
		s.mu.Unlock()

		s.journal(ctx, article.ID, domain.AuditActionRewardFailed, domain.AuditCategoryReading, map[string]interface{}{
			"error": err.Error(),
		})
		return decimal.Zero, err
	}

	points := res.PointsCollected.Or(article.CollectableRewardPoints).Decimal()
	s.points = points
	s.requiredMinutes = nil
	s.setStateLocked(StateCollected)
	s.mu.Unlock()

	s.rewarded(article.ID)
	s.refreshWallet(ctx)
	s.journal(ctx, article.ID, domain.AuditActionRewardCollected, domain.AuditCategoryReading, map[string]interface{}{
		"points": points.String(),
	})
	return points, nil
}

// Gift sends reward points to the article's author. It is only available
// after the reward was collected, and amounts above the known reward points
// are refused without contacting the backend.
func (s *Session) Gift(ctx context.Context, amount decimal.Decimal, message string) (*domain.GiftResult, error) {
	s.mu.Lock()
	if err := s.beginLocked("gift"); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.state != StateCollected {
		s.inFlight = ""
		s.mu.Unlock()
		return nil, ErrGiftNotAllowed
	}
	if !amount.IsPositive() {
		s.inFlight = ""
		s.mu.Unlock()
		return nil, ErrInvalidGiftAmount
	}
	if s.deps.Wallet == nil {
		s.inFlight = ""
		s.mu.Unlock()
		return nil, fmt.Errorf("load wallet: %w", wallet.ErrUnavailable)
	}
	gen := s.gen
	article := s.article
	s.lastErr = ""
	s.emitLocked(EventState, "")
	s.mu.Unlock()

	info, err := s.deps.Wallet.CurrentOrRefresh(ctx)
	if err != nil {
		s.failGift(gen, api.Message(err))
		return nil, fmt.Errorf("load wallet: %w", err)
	}
	available := info.RewardPoints.Decimal()
	if amount.GreaterThan(available) {
		giftsTotal.WithLabelValues("rejected_locally").Inc()
		perr := &InsufficientPointsError{Requested: amount, Available: available}
		s.failGift(gen, perr.Error())
		return nil, perr
	}

	res, err := s.deps.Rewards.GiftPoints(ctx, domain.GiftRequest{
		RecipientID: article.Author.ID,
		Amount:      domain.AmountFromDecimal(amount),
		ArticleID:   article.ID,
		Message:     message,
	})

	if err != nil {
		giftsTotal.WithLabelValues("failed").Inc()
		// the local balance was stale
		if errors.Is(err, api.ErrInsufficientBalance) {
			s.refreshWallet(ctx)
		}
		if !s.failGift(gen, api.Message(err)) {
			return nil, staleErr(err)
		}
		s.journal(ctx, article.ID, domain.AuditActionGiftRejected, domain.AuditCategoryWallet, map[string]interface{}{
			"amount":       amount.String(),
			"recipient_id": article.Author.ID,
			"error":        err.Error(),
		})
		return nil, err
	}

	giftsTotal.WithLabelValues("ok").Inc()
	s.refreshWallet(ctx)

	s.mu.Lock()
	if !s.finishLocked(gen) {
		s.mu.Unlock()
		return res, ErrStaleResult
	}
	s.emitLocked(EventGift, fmt.Sprintf("sent %s points to %s", amount.String(), article.Author.Username))
	s.mu.Unlock()

	s.journal(ctx, article.ID, domain.AuditActionGiftSent, domain.AuditCategoryWallet, map[string]interface{}{
		"amount":       amount.String(),
		"recipient_id": article.Author.ID,
		"article_id":   article.ID,
	})
	return res, nil
}

func (s *Session) failGift(gen uint64, msg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finishLocked(gen) {
		return false
	}
	s.lastErr = msg
	s.emitLocked(EventError, msg)
	return true
}

// Cancel stops the countdown and returns an unfinished session to
// NotStarted; the next Start counts down from the full duration again.
// Rewarded sessions are left as they are.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.invalidateLocked()
	if s.state.Terminal() {
		s.emitLocked(EventState, "")
		return
	}
	s.reset(s.article)
	s.setStateLocked(s.state)
}

// Abandon cancels the countdown if it is still running and reports whether
// it did. Completed and rewarded sessions are kept.
func (s *Session) Abandon() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.state != StateRunning {
		return false
	}
	s.invalidateLocked()
	s.reset(s.article)
	s.setStateLocked(s.state)
	return true
}

// ChangeArticle points the session at another article. Pending results for
// the previous article are discarded.
func (s *Session) ChangeArticle(article domain.Article) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.invalidateLocked()
	s.reset(article)
	s.setStateLocked(s.state)
}

// Close releases the countdown and all subscribers. The session is unusable
// afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.invalidateLocked()
	s.closed = true
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}

func (s *Session) View() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) Article() domain.Article {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.article
}

// Subscribe returns a channel of session events and a function that ends the
// subscription. Events are dropped for subscribers that fall behind.
func (s *Session) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- Event{Kind: EventState, Snapshot: s.snapshotLocked(), At: s.opts.Clock.Now()}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				close(c)
				delete(s.subs, id)
				s.touched = s.opts.Clock.Now()
			}
		})
	}
}

// touch marks the session as used.
func (s *Session) touch() {
	s.mu.Lock()
	s.touched = s.opts.Clock.Now()
	s.mu.Unlock()
}

// idleSince reports whether nothing is going on in the session and it has not
// been used after cutoff. Running countdowns and watched sessions are never
// idle.
func (s *Session) idleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.inFlight != "" || len(s.subs) > 0 {
		return false
	}
	if s.state == StateRunning || s.state == StateCollecting {
		return false
	}
	return !s.touched.After(cutoff)
}

// beginLocked enforces single-flight for button-triggered actions.
func (s *Session) beginLocked(action string) error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.inFlight != "" {
		return ErrActionInFlight
	}
	s.inFlight = action
	return nil
}

// finishLocked ends the in-flight action and reports whether gen is still
// current.
func (s *Session) finishLocked(gen uint64) bool {
	if s.closed || gen != s.gen {
		return false
	}
	s.inFlight = ""
	return true
}

// staleErr keeps the cause of a discarded result visible, so that an expired
// login still reads as ErrSessionExpired.
func staleErr(cause error) error {
	if cause == nil {
		return ErrStaleResult
	}
	return fmt.Errorf("%w: %w", ErrStaleResult, cause)
}

func (s *Session) invalidateLocked() {
	if s.countdown != nil {
		s.countdown.Stop()
		s.countdown = nil
	}
	s.gen++
	s.inFlight = ""
}

func (s *Session) setStateLocked(st State) {
	s.state = st
	transitionsTotal.WithLabelValues(string(st)).Inc()
	s.emitLocked(EventState, "")
}

func (s *Session) emitLocked(kind EventKind, msg string) {
	s.touched = s.opts.Clock.Now()
	if len(s.subs) == 0 {
		return
	}
	ev := Event{Kind: kind, Snapshot: s.snapshotLocked(), Message: msg, At: s.touched}
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ArticleID:        s.article.ID,
		Slug:             s.article.Slug,
		State:            s.state,
		RequiredSeconds:  s.required,
		RemainingSeconds: s.remaining,
		Degraded:         s.degraded,
		Busy:             s.inFlight,
		PointsCollected:  s.points,
		LastError:        s.lastErr,
	}
	snap.CanCollect = s.state == StateCompleted && s.inFlight == ""
	snap.CanGift = s.state == StateCollected && s.inFlight == ""
	if s.requiredMinutes != nil {
		m := *s.requiredMinutes
		snap.RequiredMinutes = &m
	}
	return snap
}

// elapsedMinutesLocked rounds the time spent reading up to whole minutes,
// never below the configured reading time.
func (s *Session) elapsedMinutesLocked() int {
	secs := float64(s.required)
	if !s.startedAt.IsZero() {
		if wall := s.opts.Clock.Now().Sub(s.startedAt).Seconds(); wall > secs {
			secs = wall
		}
	}
	return int(math.Ceil(secs / 60))
}

func (s *Session) rewarded(articleID int64) {
	if s.opts.OnRewarded != nil {
		s.opts.OnRewarded(articleID)
	}
}

func (s *Session) refreshWallet(ctx context.Context) {
	if s.deps.Wallet == nil {
		return
	}
	if _, err := s.deps.Wallet.Refresh(ctx); err != nil {
		logger.WithContext(ctx).Warn("wallet refresh failed", "error", err)
	}
}

func (s *Session) journal(ctx context.Context, articleID int64, action, category string, details map[string]interface{}) {
	if s.opts.Journal == nil {
		return
	}
	if details == nil {
		details = make(map[string]interface{})
	}
	details["article_id"] = articleID
	s.opts.Journal.Log(ctx, s.deps.UserID, action, category, details)
}
