package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"readearn/internal/domain"
	"readearn/internal/reading"
	"readearn/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopRewards struct{}

func (noopRewards) StartReading(context.Context, int64) (*domain.ReadingStart, error) {
	return &domain.ReadingStart{}, nil
}

func (noopRewards) CollectReward(context.Context, int64, *int) (*domain.RewardCollection, error) {
	return &domain.RewardCollection{}, nil
}

func (noopRewards) GiftPoints(context.Context, domain.GiftRequest) (*domain.GiftResult, error) {
	return &domain.GiftResult{}, nil
}

type noopWallet struct{}

func (noopWallet) Refresh(context.Context) (domain.WalletInfo, error) {
	return domain.WalletInfo{}, nil
}

func (noopWallet) CurrentOrRefresh(context.Context) (domain.WalletInfo, error) {
	return domain.WalletInfo{}, nil
}

func setup(t *testing.T) (*reading.Registry, *Hub, *testutil.FakeClock, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clk := testutil.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	reg := reading.NewRegistry(reading.Options{Clock: clk, TickInterval: time.Second})
	t.Cleanup(reg.CloseAll)

	reg.Open("sid-1", domain.Article{ID: 7, Slug: "go-idioms", ReadingTimeMinutes: 1},
		reading.Deps{Rewards: noopRewards{}, Wallet: noopWallet{}, UserID: 1})

	hub := NewHub()
	r := gin.New()
	r.GET("/ws", HandleWS(hub, reg, ""))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return reg, hub, clk, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(msg, &env))
	return env
}

// readUntil skips frames until one matches.
func readUntil(t *testing.T, conn *websocket.Conn, match func(Envelope) bool) Envelope {
	t.Helper()
	for i := 0; i < 100; i++ {
		env := readEnvelope(t, conn)
		if match(env) {
			return env
		}
	}
	t.Fatal("expected frame never arrived")
	return Envelope{}
}

func TestStreamsSessionEvents(t *testing.T) {
	reg, hub, clk, url := setup(t)

	conn, _, err := websocket.DefaultDialer.Dial(url+"/ws?sid=sid-1&slug=go-idioms", nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, MsgReady, readEnvelope(t, conn).Type)

	first := readEnvelope(t, conn)
	require.Equal(t, MsgEvent, first.Type)
	assert.Equal(t, reading.StateNotStarted, first.Event.Snapshot.State)
	testutil.WaitFor(t, time.Second, func() bool { return hub.Count("sid-1") == 1 })

	s, ok := reg.Find("sid-1", "go-idioms")
	require.True(t, ok)
	require.NoError(t, s.Start(context.Background()))

	running := readUntil(t, conn, func(e Envelope) bool {
		return e.Event != nil && e.Event.Snapshot.State == reading.StateRunning
	})
	assert.Equal(t, 60, running.Event.Snapshot.RemainingSeconds)

	clk.Tick()
	tick := readUntil(t, conn, func(e Envelope) bool {
		return e.Event != nil && e.Event.Kind == reading.EventTick
	})
	assert.Equal(t, 59, tick.Event.Snapshot.RemainingSeconds)
}

func TestPingAndLeave(t *testing.T) {
	reg, _, _, url := setup(t)

	conn, _, err := websocket.DefaultDialer.Dial(url+"/ws?sid=sid-1&slug=go-idioms", nil)
	require.NoError(t, err)
	defer conn.Close()

	s, _ := reg.Find("sid-1", "go-idioms")
	require.NoError(t, s.Start(context.Background()))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	readUntil(t, conn, func(e Envelope) bool { return e.Type == MsgPong })

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"leave"}`)))
	testutil.WaitFor(t, time.Second, func() bool { return s.View().State == reading.StateNotStarted })
}

func TestSessionCloseDisconnects(t *testing.T) {
	reg, hub, _, url := setup(t)

	conn, _, err := websocket.DefaultDialer.Dial(url+"/ws?sid=sid-1&slug=go-idioms", nil)
	require.NoError(t, err)
	defer conn.Close()
	readEnvelope(t, conn)
	testutil.WaitFor(t, time.Second, func() bool { return hub.Count("sid-1") == 1 })

	reg.CloseOwner("sid-1")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		// the server sends a close frame once the session is gone
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	testutil.WaitFor(t, time.Second, func() bool { return hub.Count("sid-1") == 0 })
}

func TestUnknownSessionIsNotFound(t *testing.T) {
	_, _, _, url := setup(t)

	_, resp, err := websocket.DefaultDialer.Dial(url+"/ws?sid=other&slug=go-idioms", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(url+"/ws?slug=go-idioms", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url+"/ws?sid=sid-1&slug=go-idioms", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	assert.Equal(t, MsgReady, readEnvelope(t, conn).Type)
	return conn
}

func TestDisconnectWithoutLeaveStopsTimer(t *testing.T) {
	reg, hub, clk, url := setup(t)
	s, ok := reg.Find("sid-1", "go-idioms")
	require.True(t, ok)

	first := dial(t, url)
	second := dial(t, url)
	testutil.WaitFor(t, time.Second, func() bool { return hub.Count("sid-1") == 2 })

	require.NoError(t, s.Start(context.Background()))
	require.Equal(t, 10, clk.TickN(10))

	// another tab still shows the article
	require.NoError(t, first.Close())
	testutil.WaitFor(t, time.Second, func() bool { return hub.Count("sid-1") == 1 })
	assert.Equal(t, reading.StateRunning, s.View().State)

	require.NoError(t, second.Close())
	testutil.WaitFor(t, time.Second, func() bool { return s.View().State == reading.StateNotStarted })
	testutil.WaitFor(t, time.Second, func() bool { return clk.Live() == 0 })
	assert.Equal(t, 0, clk.TickN(5), "no countdown left behind")
	assert.Equal(t, 60, s.View().RemainingSeconds)
}

func TestDisconnectKeepsCompletedReading(t *testing.T) {
	reg, hub, clk, url := setup(t)
	s, _ := reg.Find("sid-1", "go-idioms")

	conn := dial(t, url)
	testutil.WaitFor(t, time.Second, func() bool { return hub.Count("sid-1") == 1 })
	require.NoError(t, s.Start(context.Background()))
	require.Equal(t, 60, clk.TickN(60))
	testutil.WaitFor(t, time.Second, func() bool { return s.View().State == reading.StateCompleted })

	require.NoError(t, conn.Close())
	testutil.WaitFor(t, time.Second, func() bool { return hub.Count("sid-1") == 0 })
	assert.Equal(t, reading.StateCompleted, s.View().State)
	assert.True(t, s.View().CanCollect)
}
