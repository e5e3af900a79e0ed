package domain

import "time"

// ReadingStart is the response of the start-reading endpoint
type ReadingStart struct {
	IsRewarded bool       `json:"is_rewarded"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
}

// RewardCollection is the response of the collect-reward endpoint.
// PointsCollected may be absent; callers fall back to the article's value.
type RewardCollection struct {
	PointsCollected Amount `json:"points_collected"`
	Message         string `json:"message,omitempty"`
}
