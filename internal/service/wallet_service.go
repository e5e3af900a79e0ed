package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"readearn/internal/domain"

	"github.com/shopspring/decimal"
)

// WalletService covers balance, ledger, point conversion and payment
// requests.
type WalletService struct {
	api Requester
}

func NewWalletService(r Requester) *WalletService {
	return &WalletService{api: r}
}

func (s *WalletService) Info(ctx context.Context) (*domain.WalletInfo, error) {
	var w domain.WalletInfo
	if err := s.api.Do(ctx, http.MethodGet, "/wallet/", nil, &w); err != nil {
		return nil, fmt.Errorf("wallet info: %w", err)
	}
	return &w, nil
}

func (s *WalletService) Transactions(ctx context.Context, page int) (*domain.TransactionPage, error) {
	var raw json.RawMessage
	if err := s.api.Do(ctx, http.MethodGet, withPage("/wallet/transactions/", page, nil), nil, &raw); err != nil {
		return nil, fmt.Errorf("wallet transactions: %w", err)
	}
	items, meta, err := decodeList[domain.Transaction](raw)
	if err != nil {
		return nil, fmt.Errorf("wallet transactions: %w", err)
	}
	return &domain.TransactionPage{Count: meta.Count, Next: meta.Next, Results: items}, nil
}

// ConvertRewardPoints turns reward points into wallet balance.
func (s *WalletService) ConvertRewardPoints(ctx context.Context, points decimal.Decimal) (*domain.ConversionResult, error) {
	body := map[string]domain.Amount{"points": domain.AmountFromDecimal(points)}
	var res domain.ConversionResult
	if err := s.api.Do(ctx, http.MethodPost, "/wallet/convert-points/", body, &res); err != nil {
		return nil, fmt.Errorf("convert points: %w", err)
	}
	return &res, nil
}

func (s *WalletService) RequestDeposit(ctx context.Context, amount decimal.Decimal, method, reference string) (*domain.PaymentRequest, error) {
	return s.paymentRequest(ctx, domain.PaymentRequest{
		Type:      domain.PaymentRequestDeposit,
		Amount:    domain.AmountFromDecimal(amount),
		Method:    method,
		Reference: reference,
	})
}

func (s *WalletService) RequestWithdrawal(ctx context.Context, amount decimal.Decimal, method, reference string) (*domain.PaymentRequest, error) {
	return s.paymentRequest(ctx, domain.PaymentRequest{
		Type:      domain.PaymentRequestWithdrawal,
		Amount:    domain.AmountFromDecimal(amount),
		Method:    method,
		Reference: reference,
	})
}

func (s *WalletService) paymentRequest(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentRequest, error) {
	body := map[string]any{
		"type":      req.Type,
		"amount":    req.Amount,
		"method":    req.Method,
		"reference": req.Reference,
	}
	var res domain.PaymentRequest
	if err := s.api.Do(ctx, http.MethodPost, "/payments/requests/", body, &res); err != nil {
		return nil, fmt.Errorf("%s request: %w", req.Type, err)
	}
	return &res, nil
}

// PaymentRequests lists the caller's deposit and withdrawal requests.
func (s *WalletService) PaymentRequests(ctx context.Context) ([]domain.PaymentRequest, error) {
	var raw json.RawMessage
	if err := s.api.Do(ctx, http.MethodGet, "/payments/requests/", nil, &raw); err != nil {
		return nil, fmt.Errorf("payment requests: %w", err)
	}
	items, _, err := decodeList[domain.PaymentRequest](raw)
	if err != nil {
		return nil, fmt.Errorf("payment requests: %w", err)
	}
	return items, nil
}
