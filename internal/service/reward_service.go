package service

import (
	"context"
	"fmt"
	"net/http"

	"readearn/internal/domain"
)

// RewardService wraps the reading-reward and gift endpoints.
type RewardService struct {
	api Requester
}

func NewRewardService(r Requester) *RewardService {
	return &RewardService{api: r}
}

func (s *RewardService) StartReading(ctx context.Context, articleID int64) (*domain.ReadingStart, error) {
	var res domain.ReadingStart
	if err := s.api.Do(ctx, http.MethodPost, idPath("/articles/%d/start-reading/", articleID), nil, &res); err != nil {
		return nil, fmt.Errorf("start reading: %w", err)
	}
	return &res, nil
}

// CollectReward claims the reading reward. elapsedMinutes is sent only when
// non-nil.
func (s *RewardService) CollectReward(ctx context.Context, articleID int64, elapsedMinutes *int) (*domain.RewardCollection, error) {
	var body any
	if elapsedMinutes != nil {
		body = map[string]int{"elapsed_minutes": *elapsedMinutes}
	}
	var res domain.RewardCollection
	if err := s.api.Do(ctx, http.MethodPost, idPath("/articles/%d/collect-reward/", articleID), body, &res); err != nil {
		return nil, fmt.Errorf("collect reward: %w", err)
	}
	return &res, nil
}

func (s *RewardService) GiftPoints(ctx context.Context, req domain.GiftRequest) (*domain.GiftResult, error) {
	var res domain.GiftResult
	if err := s.api.Do(ctx, http.MethodPost, "/wallet/gift/", req, &res); err != nil {
		return nil, fmt.Errorf("gift points: %w", err)
	}
	return &res, nil
}
