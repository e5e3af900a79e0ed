package reading

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"readearn/internal/api"
	"readearn/internal/domain"
	"readearn/internal/testutil"
	"readearn/internal/wallet"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRewards struct {
	mu sync.Mutex

	start    *domain.ReadingStart
	startErr error
	collect  *domain.RewardCollection
	collErr  error
	gift     *domain.GiftResult
	giftErr  error

	// when set, calls block until the channel is closed
	hold chan struct{}

	startCalls, collectCalls, giftCalls int
	elapsed                             []*int
	gifts                               []domain.GiftRequest
}

func (s *stubRewards) wait() {
	s.mu.Lock()
	hold := s.hold
	s.mu.Unlock()
	if hold != nil {
		<-hold
	}
}

func (s *stubRewards) StartReading(context.Context, int64) (*domain.ReadingStart, error) {
	s.mu.Lock()
	s.startCalls++
	s.mu.Unlock()
	s.wait()
	if s.startErr != nil {
		return nil, s.startErr
	}
	if s.start == nil {
		return &domain.ReadingStart{}, nil
	}
	return s.start, nil
}

func (s *stubRewards) CollectReward(_ context.Context, _ int64, elapsed *int) (*domain.RewardCollection, error) {
	s.mu.Lock()
	s.collectCalls++
	s.elapsed = append(s.elapsed, elapsed)
	s.mu.Unlock()
	s.wait()
	if s.collErr != nil {
		return nil, s.collErr
	}
	if s.collect == nil {
		return &domain.RewardCollection{}, nil
	}
	return s.collect, nil
}

func (s *stubRewards) GiftPoints(_ context.Context, req domain.GiftRequest) (*domain.GiftResult, error) {
	s.mu.Lock()
	s.giftCalls++
	s.gifts = append(s.gifts, req)
	s.mu.Unlock()
	s.wait()
	if s.giftErr != nil {
		return nil, s.giftErr
	}
	if s.gift == nil {
		return &domain.GiftResult{}, nil
	}
	return s.gift, nil
}

func (s *stubRewards) counts() (int, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startCalls, s.collectCalls, s.giftCalls
}

type stubWallet struct {
	mu        sync.Mutex
	info      domain.WalletInfo
	cached    bool
	refreshes int
}

func (w *stubWallet) Refresh(context.Context) (domain.WalletInfo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.refreshes++
	w.cached = true
	return w.info, nil
}

func (w *stubWallet) CurrentOrRefresh(ctx context.Context) (domain.WalletInfo, error) {
	w.mu.Lock()
	if w.cached {
		defer w.mu.Unlock()
		return w.info, nil
	}
	w.mu.Unlock()
	return w.Refresh(ctx)
}

func (w *stubWallet) refreshCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.refreshes
}

type recordingJournal struct {
	mu      sync.Mutex
	actions []string
}

func (j *recordingJournal) Log(_ context.Context, _ int64, action, _ string, _ map[string]interface{}) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.actions = append(j.actions, action)
}

func (j *recordingJournal) has(action string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, a := range j.actions {
		if a == action {
			return true
		}
	}
	return false
}

func oneMinuteArticle() domain.Article {
	return domain.Article{
		ID:                      1,
		Slug:                    "go-concurrency",
		Title:                   "Go concurrency",
		ReadingTimeMinutes:      1,
		CollectableRewardPoints: domain.NewAmount(50),
		Author:                  domain.AuthorRef{ID: 77, Username: "writer"},
	}
}

type fixture struct {
	clock   *testutil.FakeClock
	rewards *stubRewards
	wallet  *stubWallet
	journal *recordingJournal
	session *Session
}

func newFixture(t *testing.T, article domain.Article) *fixture {
	t.Helper()
	f := &fixture{
		clock:   testutil.NewFakeClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)),
		rewards: &stubRewards{},
		wallet:  &stubWallet{},
		journal: &recordingJournal{},
	}
	f.session = NewSession(article, Deps{Rewards: f.rewards, Wallet: f.wallet, UserID: 5}, Options{
		Clock:   f.clock,
		Journal: f.journal,
	})
	t.Cleanup(f.session.Close)
	return f
}

func (f *fixture) waitState(t *testing.T, want State) {
	t.Helper()
	testutil.WaitFor(t, time.Second, func() bool { return f.session.View().State == want })
}

// runToCompletion starts the session and delivers every tick.
func (f *fixture) runToCompletion(t *testing.T) {
	t.Helper()
	require.NoError(t, f.session.Start(context.Background()))
	n := f.session.View().RequiredSeconds
	require.Equal(t, n, f.clock.TickN(n))
	f.waitState(t, StateCompleted)
}

func TestHappyPath(t *testing.T) {
	f := newFixture(t, oneMinuteArticle())
	f.rewards.collect = &domain.RewardCollection{PointsCollected: domain.NewAmount(50)}

	require.NoError(t, f.session.Start(context.Background()))
	view := f.session.View()
	assert.Equal(t, StateRunning, view.State)
	assert.Equal(t, 60, view.RequiredSeconds)
	assert.Equal(t, 60, view.RemainingSeconds)
	assert.False(t, view.CanCollect)

	require.Equal(t, 59, f.clock.TickN(59))
	testutil.WaitFor(t, time.Second, func() bool { return f.session.View().RemainingSeconds == 1 })
	assert.Equal(t, StateRunning, f.session.View().State)

	require.Equal(t, 1, f.clock.Tick())
	f.waitState(t, StateCompleted)
	view = f.session.View()
	assert.Equal(t, 0, view.RemainingSeconds)
	assert.True(t, view.CanCollect)

	points, err := f.session.Collect(context.Background())
	require.NoError(t, err)
	assert.True(t, points.Equal(decimal.NewFromInt(50)))

	view = f.session.View()
	assert.Equal(t, StateCollected, view.State)
	assert.True(t, view.CanGift)
	assert.Equal(t, 1, f.wallet.refreshCount())
	assert.True(t, f.journal.has(domain.AuditActionRewardCollected))
	testutil.WaitFor(t, time.Second, func() bool { return f.journal.has(domain.AuditActionReadingComplete) })
}

func TestCountdownNeverGoesNegative(t *testing.T) {
	f := newFixture(t, oneMinuteArticle())
	f.runToCompletion(t)

	// the countdown released its ticker; extra ticks reach nobody
	testutil.WaitFor(t, time.Second, func() bool { return f.clock.Live() == 0 })
	assert.Equal(t, 0, f.clock.Tick())
	assert.Equal(t, 0, f.session.View().RemainingSeconds)
}

func TestCollectBeforeCompletionIsRefusedLocally(t *testing.T) {
	f := newFixture(t, oneMinuteArticle())
	require.NoError(t, f.session.Start(context.Background()))
	require.Equal(t, 30, f.clock.TickN(30))
	testutil.WaitFor(t, time.Second, func() bool { return f.session.View().RemainingSeconds == 30 })

	_, err := f.session.Collect(context.Background())
	require.ErrorIs(t, err, ErrCollectNotReady)

	var notReady *NotReadyError
	require.ErrorAs(t, err, &notReady)
	assert.Equal(t, 1, notReady.RequiredMinutes)
	assert.Equal(t, 30, notReady.RemainingSeconds)

	view := f.session.View()
	assert.Equal(t, StateRunning, view.State)
	assert.False(t, view.CanCollect)
	_, collects, _ := f.rewards.counts()
	assert.Equal(t, 0, collects)
}

func TestAlreadyRewardedOnStartSkipsTimer(t *testing.T) {
	f := newFixture(t, oneMinuteArticle())
	f.rewards.start = &domain.ReadingStart{IsRewarded: true}

	require.NoError(t, f.session.Start(context.Background()))
	assert.Equal(t, StateAlreadyRewarded, f.session.View().State)
	assert.Equal(t, 0, f.clock.Live(), "no timer started")

	require.ErrorIs(t, f.session.Start(context.Background()), ErrAlreadyRewarded)
	_, err := f.session.Collect(context.Background())
	require.ErrorIs(t, err, ErrAlreadyRewarded)
	assert.False(t, f.session.View().CanCollect)
}

func TestDegradedStartStillRunsTimer(t *testing.T) {
	f := newFixture(t, oneMinuteArticle())
	f.rewards.startErr = &api.TransportError{Method: "POST", Path: "/x", Err: errors.New("connection refused")}

	require.NoError(t, f.session.Start(context.Background()))
	view := f.session.View()
	assert.Equal(t, StateRunning, view.State)
	assert.True(t, view.Degraded)
	assert.True(t, f.journal.has(domain.AuditActionReadingDegraded))

	require.Equal(t, 60, f.clock.TickN(60))
	f.waitState(t, StateCompleted)
}

func TestInsufficientTimeKeepsCompletedWithServerMinutes(t *testing.T) {
	f := newFixture(t, oneMinuteArticle())
	minutes := 3
	f.rewards.collErr = &api.APIError{Status: 400, Message: "Read for at least 3 minutes", RequiredMinutes: &minutes}
	f.runToCompletion(t)

	_, err := f.session.Collect(context.Background())
	require.ErrorIs(t, err, api.ErrInsufficientReadingTime)

	view := f.session.View()
	assert.Equal(t, StateCompleted, view.State)
	assert.True(t, view.CanCollect, "retry stays possible")
	require.NotNil(t, view.RequiredMinutes)
	assert.Equal(t, 3, *view.RequiredMinutes, "server value wins over the local one")
	assert.Equal(t, "Read for at least 3 minutes", view.LastError)

	f.rewards.collErr = nil
	f.rewards.collect = &domain.RewardCollection{}
	points, err := f.session.Collect(context.Background())
	require.NoError(t, err)
	assert.True(t, points.Equal(decimal.NewFromInt(50)), "falls back to the article reward")
	assert.Nil(t, f.session.View().RequiredMinutes)
}

func TestTransientCollectErrorAllowsRetry(t *testing.T) {
	f := newFixture(t, oneMinuteArticle())
	f.rewards.collErr = &api.APIError{Status: 503, Message: "Service Unavailable"}
	f.runToCompletion(t)

	_, err := f.session.Collect(context.Background())
	require.ErrorIs(t, err, api.ErrTransient)
	assert.Equal(t, StateCompleted, f.session.View().State)
	assert.Equal(t, 0, f.wallet.refreshCount())
}

func TestAlreadyRewardedOnCollectIsTerminal(t *testing.T) {
	f := newFixture(t, oneMinuteArticle())
	f.rewards.collErr = &api.APIError{Status: 400, Message: "Reward already collected"}
	f.runToCompletion(t)

	_, err := f.session.Collect(context.Background())
	require.ErrorIs(t, err, ErrAlreadyRewarded)
	assert.Equal(t, StateAlreadyRewarded, f.session.View().State)

	f.session.Cancel()
	assert.Equal(t, StateAlreadyRewarded, f.session.View().State, "terminal state survives cancel")
	require.ErrorIs(t, f.session.Start(context.Background()), ErrAlreadyRewarded)
}

func TestElapsedMinutesSent(t *testing.T) {
	f := newFixture(t, oneMinuteArticle())
	f.session.opts.SendElapsedMinutes = true
	f.runToCompletion(t)
	f.clock.Advance(30 * time.Second)

	_, err := f.session.Collect(context.Background())
	require.NoError(t, err)

	require.Len(t, f.rewards.elapsed, 1)
	require.NotNil(t, f.rewards.elapsed[0])
	assert.Equal(t, 2, *f.rewards.elapsed[0], "90s rounds up to 2 minutes")
}

func collected(t *testing.T, points int64) *fixture {
	t.Helper()
	f := newFixture(t, oneMinuteArticle())
	f.wallet.info = domain.WalletInfo{RewardPoints: domain.NewAmount(points)}
	f.runToCompletion(t)
	_, err := f.session.Collect(context.Background())
	require.NoError(t, err)
	return f
}

func TestGiftExceedingPointsRejectedLocally(t *testing.T) {
	f := collected(t, 10)

	_, err := f.session.Gift(context.Background(), decimal.NewFromInt(15), "thanks")
	require.ErrorIs(t, err, ErrInsufficientPoints)

	var perr *InsufficientPointsError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, err.Error(), "15")
	assert.Contains(t, err.Error(), "10")

	_, _, gifts := f.rewards.counts()
	assert.Equal(t, 0, gifts, "no network call")
	assert.Equal(t, StateCollected, f.session.View().State)
}

func TestGiftExactBalanceAllowed(t *testing.T) {
	f := collected(t, 10)
	f.rewards.gift = &domain.GiftResult{RemainingBalance: domain.NewAmount(0)}
	before := f.wallet.refreshCount()

	_, err := f.session.Gift(context.Background(), decimal.NewFromInt(10), "thanks")
	require.NoError(t, err)

	require.Len(t, f.rewards.gifts, 1)
	req := f.rewards.gifts[0]
	assert.Equal(t, int64(77), req.RecipientID)
	assert.Equal(t, int64(1), req.ArticleID)
	assert.Equal(t, "thanks", req.Message)
	assert.Equal(t, before+1, f.wallet.refreshCount(), "wallet refreshed after gift")
	assert.True(t, f.journal.has(domain.AuditActionGiftSent))
}

func TestGiftServerInsufficientForcesRefresh(t *testing.T) {
	f := collected(t, 10)
	f.rewards.giftErr = &api.APIError{Status: 400, Message: "Insufficient balance"}
	before := f.wallet.refreshCount()

	_, err := f.session.Gift(context.Background(), decimal.NewFromInt(5), "")
	require.ErrorIs(t, err, api.ErrInsufficientBalance)
	assert.Equal(t, before+1, f.wallet.refreshCount())
	assert.Equal(t, StateCollected, f.session.View().State)
	assert.Equal(t, "Insufficient balance", f.session.View().LastError)
}

func TestCollectBeforeStartReportsFullReadingTime(t *testing.T) {
	article := oneMinuteArticle()
	article.ReadingTimeMinutes = 3
	f := newFixture(t, article)

	_, err := f.session.Collect(context.Background())
	var notReady *NotReadyError
	require.ErrorAs(t, err, &notReady)
	assert.Equal(t, 3, notReady.RequiredMinutes)
	assert.Equal(t, 180, notReady.RemainingSeconds)
}

func TestGiftWithoutWalletIsUnavailable(t *testing.T) {
	f := collected(t, 10)
	f.session.mu.Lock()
	f.session.deps.Wallet = nil
	f.session.mu.Unlock()

	_, err := f.session.Gift(context.Background(), decimal.NewFromInt(5), "")
	require.ErrorIs(t, err, wallet.ErrUnavailable)

	_, _, gifts := f.rewards.counts()
	assert.Equal(t, 0, gifts)
	assert.Equal(t, StateCollected, f.session.View().State)

	// the action slot was released
	_, err = f.session.Gift(context.Background(), decimal.NewFromInt(5), "")
	require.ErrorIs(t, err, wallet.ErrUnavailable)
}

func TestGiftRules(t *testing.T) {
	f := newFixture(t, oneMinuteArticle())
	_, err := f.session.Gift(context.Background(), decimal.NewFromInt(1), "")
	require.ErrorIs(t, err, ErrGiftNotAllowed)

	f = collected(t, 10)
	_, err = f.session.Gift(context.Background(), decimal.Zero, "")
	require.ErrorIs(t, err, ErrInvalidGiftAmount)
	_, err = f.session.Gift(context.Background(), decimal.NewFromInt(-3), "")
	require.ErrorIs(t, err, ErrInvalidGiftAmount)
}

func TestCancelAndRestartResetsCountdown(t *testing.T) {
	f := newFixture(t, oneMinuteArticle())
	require.NoError(t, f.session.Start(context.Background()))
	require.Equal(t, 20, f.clock.TickN(20))
	testutil.WaitFor(t, time.Second, func() bool { return f.session.View().RemainingSeconds == 40 })

	f.session.Cancel()
	view := f.session.View()
	assert.Equal(t, StateNotStarted, view.State)
	assert.Equal(t, 60, view.RemainingSeconds)
	testutil.WaitFor(t, time.Second, func() bool { return f.clock.Live() == 0 })

	require.NoError(t, f.session.Start(context.Background()))
	assert.Equal(t, 60, f.session.View().RemainingSeconds, "fresh N, not the stale 40")

	require.Equal(t, 59, f.clock.TickN(59))
	testutil.WaitFor(t, time.Second, func() bool { return f.session.View().RemainingSeconds == 1 })
	assert.Equal(t, StateRunning, f.session.View().State)
	require.Equal(t, 1, f.clock.Tick())
	f.waitState(t, StateCompleted)
}

func TestStartTwiceRefused(t *testing.T) {
	f := newFixture(t, oneMinuteArticle())
	require.NoError(t, f.session.Start(context.Background()))
	require.ErrorIs(t, f.session.Start(context.Background()), ErrAlreadyStarted)
	assert.Equal(t, 1, f.clock.Live(), "one timer per session")
}

func TestZeroReadingTimeCompletesImmediately(t *testing.T) {
	article := oneMinuteArticle()
	article.ReadingTimeMinutes = 0
	f := newFixture(t, article)

	require.NoError(t, f.session.Start(context.Background()))
	assert.Equal(t, StateCompleted, f.session.View().State)
	assert.Equal(t, 0, f.clock.Live())
}

func TestSingleFlight(t *testing.T) {
	f := newFixture(t, oneMinuteArticle())
	f.runToCompletion(t)

	f.rewards.mu.Lock()
	f.rewards.hold = make(chan struct{})
	f.rewards.mu.Unlock()

	errc := make(chan error, 1)
	go func() {
		_, err := f.session.Collect(context.Background())
		errc <- err
	}()
	f.waitState(t, StateCollecting)

	_, err := f.session.Collect(context.Background())
	require.ErrorIs(t, err, ErrActionInFlight)
	assert.False(t, f.session.View().CanCollect)

	close(f.rewards.hold)
	require.NoError(t, <-errc)
	_, collects, _ := f.rewards.counts()
	assert.Equal(t, 1, collects)
}

func TestStaleResultDiscardedAfterArticleChange(t *testing.T) {
	f := newFixture(t, oneMinuteArticle())
	f.rewards.mu.Lock()
	f.rewards.hold = make(chan struct{})
	f.rewards.start = &domain.ReadingStart{IsRewarded: true}
	f.rewards.mu.Unlock()

	errc := make(chan error, 1)
	go func() { errc <- f.session.Start(context.Background()) }()
	testutil.WaitFor(t, time.Second, func() bool { return f.session.View().Busy == "start" })

	next := oneMinuteArticle()
	next.ID = 2
	next.Slug = "generics"
	next.ReadingTimeMinutes = 2
	f.session.ChangeArticle(next)

	close(f.rewards.hold)
	require.ErrorIs(t, <-errc, ErrStaleResult)

	view := f.session.View()
	assert.Equal(t, int64(2), view.ArticleID)
	assert.Equal(t, StateNotStarted, view.State, "old is_rewarded must not leak into the new article")
	assert.Equal(t, 120, view.RemainingSeconds)
}

func TestChangeArticleStopsCountdown(t *testing.T) {
	f := newFixture(t, oneMinuteArticle())
	require.NoError(t, f.session.Start(context.Background()))
	require.Equal(t, 10, f.clock.TickN(10))

	next := oneMinuteArticle()
	next.ID = 2
	f.session.ChangeArticle(next)

	testutil.WaitFor(t, time.Second, func() bool { return f.clock.Live() == 0 })
	assert.Equal(t, 60, f.session.View().RemainingSeconds)
}

func TestCloseReleasesTimerAndSubscribers(t *testing.T) {
	f := newFixture(t, oneMinuteArticle())
	events, _ := f.session.Subscribe()
	require.NoError(t, f.session.Start(context.Background()))

	f.session.Close()
	testutil.WaitFor(t, time.Second, func() bool { return f.clock.Live() == 0 })

	for range events {
	}
	require.ErrorIs(t, f.session.Start(context.Background()), ErrSessionClosed)
}

func TestSubscribeReceivesTransitions(t *testing.T) {
	f := newFixture(t, oneMinuteArticle())
	events, unsubscribe := f.session.Subscribe()
	defer unsubscribe()

	first := <-events
	assert.Equal(t, StateNotStarted, first.Snapshot.State)

	require.NoError(t, f.session.Start(context.Background()))
	require.Equal(t, 1, f.clock.Tick())

	seen := map[EventKind]bool{}
	states := map[State]bool{}
	testutil.WaitFor(t, time.Second, func() bool {
		for {
			select {
			case ev := <-events:
				seen[ev.Kind] = true
				states[ev.Snapshot.State] = true
			default:
				return seen[EventTick] && states[StateRunning]
			}
		}
	})
}
