package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"readearn/internal/domain"
)

// AdminService wraps moderation and payment approval endpoints
type AdminService struct {
	api Requester
}

// NewAdminService creates a new admin service
func NewAdminService(r Requester) *AdminService {
	return &AdminService{api: r}
}

// PendingArticles returns articles awaiting review
func (s *AdminService) PendingArticles(ctx context.Context) ([]domain.Article, error) {
	var raw json.RawMessage
	if err := s.api.Do(ctx, http.MethodGet, "/admin/articles/pending/", nil, &raw); err != nil {
		return nil, fmt.Errorf("pending articles: %w", err)
	}
	items, _, err := decodeList[domain.Article](raw)
	if err != nil {
		return nil, fmt.Errorf("pending articles: %w", err)
	}
	return items, nil
}

// ModerateArticle approves or rejects a pending article
func (s *AdminService) ModerateArticle(ctx context.Context, articleID int64, approve bool, reason string) error {
	m := domain.Moderation{Action: "reject", Reason: reason}
	if approve {
		m.Action = "approve"
	}
	if err := s.api.Do(ctx, http.MethodPost, idPath("/admin/articles/%d/moderate/", articleID), m, nil); err != nil {
		return fmt.Errorf("moderate article %d: %w", articleID, err)
	}
	return nil
}

// PendingPayments returns deposit and withdrawal requests awaiting approval
func (s *AdminService) PendingPayments(ctx context.Context) ([]domain.PaymentRequest, error) {
	var raw json.RawMessage
	if err := s.api.Do(ctx, http.MethodGet, "/admin/payments/pending/", nil, &raw); err != nil {
		return nil, fmt.Errorf("pending payments: %w", err)
	}
	items, _, err := decodeList[domain.PaymentRequest](raw)
	if err != nil {
		return nil, fmt.Errorf("pending payments: %w", err)
	}
	return items, nil
}

// ApprovePayment approves a payment request
func (s *AdminService) ApprovePayment(ctx context.Context, requestID int64, note string) (*domain.PaymentRequest, error) {
	var res domain.PaymentRequest
	body := map[string]string{"admin_note": note}
	if err := s.api.Do(ctx, http.MethodPost, idPath("/admin/payments/%d/approve/", requestID), body, &res); err != nil {
		return nil, fmt.Errorf("approve payment %d: %w", requestID, err)
	}
	return &res, nil
}

// RejectPayment rejects a payment request with a reason
func (s *AdminService) RejectPayment(ctx context.Context, requestID int64, reason string) (*domain.PaymentRequest, error) {
	var res domain.PaymentRequest
	body := map[string]string{"admin_note": reason}
	if err := s.api.Do(ctx, http.MethodPost, idPath("/admin/payments/%d/reject/", requestID), body, &res); err != nil {
		return nil, fmt.Errorf("reject payment %d: %w", requestID, err)
	}
	return &res, nil
}
