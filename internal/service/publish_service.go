package service

import (
	"context"
	"fmt"
	"net/http"

	"readearn/internal/domain"
)

type PublishService struct {
	api Requester
}

func NewPublishService(r Requester) *PublishService {
	return &PublishService{api: r}
}

// CheckBalance asks the backend whether the wallet covers publishing.
func (s *PublishService) CheckBalance(ctx context.Context) (*domain.BalanceCheck, error) {
	var res domain.BalanceCheck
	if err := s.api.Do(ctx, http.MethodGet, "/wallet/publish-balance/", nil, &res); err != nil {
		return nil, fmt.Errorf("check publish balance: %w", err)
	}
	return &res, nil
}

// RequestPublish moves a draft to pending review. The backend re-checks the
// balance and may refuse with an insufficient balance error.
func (s *PublishService) RequestPublish(ctx context.Context, articleID int64) (*domain.PublishResult, error) {
	var res domain.PublishResult
	if err := s.api.Do(ctx, http.MethodPost, idPath("/articles/%d/request-publish/", articleID), nil, &res); err != nil {
		return nil, fmt.Errorf("request publish: %w", err)
	}
	if res.ArticleID == 0 {
		res.ArticleID = articleID
	}
	return &res, nil
}
