package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"readearn/internal/api"
	"readearn/internal/auth"
	"readearn/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *api.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	store := auth.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), "t", auth.Tokens{Access: "a", Refresh: "r"}))
	return api.NewClient(srv.URL, auth.Bind(store, "t"))
}

func respond(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestArticleListAcceptsEnvelopeAndArray(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		count int64
		next  string
	}{
		{
			name:  "envelope",
			body:  `{"count": 12, "next": "https://api/articles/?page=2", "previous": null, "results": [{"id": 1, "slug": "a"}, {"id": 2, "slug": "b"}]}`,
			count: 12,
			next:  "https://api/articles/?page=2",
		},
		{
			name:  "bare array",
			body:  `[{"id": 1, "slug": "a"}, {"id": 2, "slug": "b"}]`,
			count: 2,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				respond(w, 200, tc.body)
			})
			page, err := NewArticleService(c).List(context.Background(), ListParams{})
			require.NoError(t, err)
			assert.Equal(t, tc.count, page.Count)
			assert.Equal(t, tc.next, page.Next)
			require.Len(t, page.Results, 2)
			assert.Equal(t, "b", page.Results[1].Slug)
		})
	}
}

func TestArticleListRejectsUnknownShape(t *testing.T) {
	for _, body := range []string{`{"items": []}`, `"articles"`, `42`} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			respond(w, 200, body)
		})
		_, err := NewArticleService(c).List(context.Background(), ListParams{})
		require.ErrorIs(t, err, api.ErrUnexpectedResponse, body)
	}
}

func TestArticleListQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/articles/", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "go", r.URL.Query().Get("search"))
		respond(w, 200, `[]`)
	})
	_, err := NewArticleService(c).List(context.Background(), ListParams{Page: 2, Search: "go"})
	require.NoError(t, err)
}

func TestCreateDraftSendsDraftStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "draft", body["status"])
		assert.Equal(t, "Title", body["title"])
		respond(w, 201, `{"id": 9, "slug": "title", "status": "draft"}`)
	})
	a, err := NewArticleService(c).CreateDraft(context.Background(), domain.ArticleDraft{Title: "Title", Content: "body"})
	require.NoError(t, err)
	assert.Equal(t, int64(9), a.ID)
	assert.Equal(t, domain.ArticleStatusDraft, a.Status)
}

func TestWalletInfoNormalizesStringNumbers(t *testing.T) {
	for _, body := range []string{
		`{"balance": "150.50", "reward_points": "10"}`,
		`{"balance": 150.5, "reward_points": 10}`,
	} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			respond(w, 200, body)
		})
		info, err := NewWalletService(c).Info(context.Background())
		require.NoError(t, err)
		assert.True(t, info.Balance.Decimal().Equal(decimal.RequireFromString("150.5")), body)
		assert.True(t, info.RewardPoints.Decimal().Equal(decimal.NewFromInt(10)), body)
	}
}

func TestWalletInfoMalformedAmount(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, 200, `{"balance": {"value": 1}}`)
	})
	_, err := NewWalletService(c).Info(context.Background())
	require.ErrorIs(t, err, api.ErrUnexpectedResponse)
	require.ErrorIs(t, err, domain.ErrMalformedAmount)
}

func TestCollectRewardElapsedMinutes(t *testing.T) {
	var bodies []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/articles/5/collect-reward/", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(raw))
		respond(w, 200, `{"points_collected": "50.00"}`)
	})
	svc := NewRewardService(c)

	res, err := svc.CollectReward(context.Background(), 5, nil)
	require.NoError(t, err)
	assert.Equal(t, "50.00", res.PointsCollected.String())

	minutes := 3
	_, err = svc.CollectReward(context.Background(), 5, &minutes)
	require.NoError(t, err)

	require.Len(t, bodies, 2)
	assert.Empty(t, bodies[0])
	assert.JSONEq(t, `{"elapsed_minutes": 3}`, bodies[1])
}

func TestCollectRewardErrorKeepsRequiredMinutes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, 400, `{"error": "Read for at least 2 minutes", "required_minutes": 2}`)
	})
	_, err := NewRewardService(c).CollectReward(context.Background(), 5, nil)
	require.ErrorIs(t, err, api.ErrInsufficientReadingTime)

	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 2, *apiErr.RequiredMinutes)
	assert.Equal(t, "Read for at least 2 minutes", api.Message(err))
}

func TestPublishCheckBalance(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wallet/publish-balance/", r.URL.Path)
		respond(w, 200, `{"current_balance": "100.00", "has_sufficient_balance": false, "required_balance": 150}`)
	})
	res, err := NewPublishService(c).CheckBalance(context.Background())
	require.NoError(t, err)
	assert.False(t, res.HasSufficientBalance)
	assert.Equal(t, "50", res.Shortfall().String())
}

func TestRequestPublishInsufficientBalance(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, 400, `{"error": "Insufficient balance to publish"}`)
	})
	_, err := NewPublishService(c).RequestPublish(context.Background(), 3)
	require.ErrorIs(t, err, api.ErrInsufficientBalance)
}

func TestPaymentRequestBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "withdraw", body["type"])
		assert.Equal(t, 25.5, body["amount"])
		respond(w, 201, `{"id": 4, "type": "withdraw", "amount": "25.50", "status": "pending"}`)
	})
	res, err := NewWalletService(c).RequestWithdrawal(context.Background(), decimal.RequireFromString("25.5"), "bank", "IBAN")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, res.Status)
}

func TestAdminModerate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/articles/7/moderate/", r.URL.Path)
		var m domain.Moderation
		require.NoError(t, json.NewDecoder(r.Body).Decode(&m))
		assert.Equal(t, "reject", m.Action)
		assert.Equal(t, "spam", m.Reason)
		respond(w, 200, `{}`)
	})
	require.NoError(t, NewAdminService(c).ModerateArticle(context.Background(), 7, false, "spam"))
}
