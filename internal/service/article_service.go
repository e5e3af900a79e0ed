package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"readearn/internal/domain"
)

type ArticleService struct {
	api Requester
}

func NewArticleService(r Requester) *ArticleService {
	return &ArticleService{api: r}
}

// ListParams filters the article listing.
type ListParams struct {
	Page   int
	Search string
	Author string
}

func (s *ArticleService) Get(ctx context.Context, slug string) (*domain.Article, error) {
	var a domain.Article
	if err := s.api.Do(ctx, http.MethodGet, "/articles/"+url.PathEscape(slug)+"/", nil, &a); err != nil {
		return nil, fmt.Errorf("get article %s: %w", slug, err)
	}
	return &a, nil
}

func (s *ArticleService) List(ctx context.Context, p ListParams) (*domain.ArticlePage, error) {
	extra := url.Values{}
	if p.Search != "" {
		extra.Set("search", p.Search)
	}
	if p.Author != "" {
		extra.Set("author", p.Author)
	}
	return s.list(ctx, withPage("/articles/", p.Page, extra))
}

// Mine lists the caller's own articles in every status.
func (s *ArticleService) Mine(ctx context.Context, page int) (*domain.ArticlePage, error) {
	return s.list(ctx, withPage("/articles/my-articles/", page, nil))
}

func (s *ArticleService) list(ctx context.Context, path string) (*domain.ArticlePage, error) {
	var raw json.RawMessage
	if err := s.api.Do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	items, meta, err := decodeList[domain.Article](raw)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	return &domain.ArticlePage{
		Count:    meta.Count,
		Next:     meta.Next,
		Previous: meta.Previous,
		Results:  items,
	}, nil
}

// CreateDraft saves a new article as a draft. It never needs a balance.
func (s *ArticleService) CreateDraft(ctx context.Context, d domain.ArticleDraft) (*domain.Article, error) {
	body := struct {
		domain.ArticleDraft
		Status domain.ArticleStatus `json:"status"`
	}{d, domain.ArticleStatusDraft}

	var a domain.Article
	if err := s.api.Do(ctx, http.MethodPost, "/articles/", body, &a); err != nil {
		return nil, fmt.Errorf("create draft: %w", err)
	}
	return &a, nil
}

func (s *ArticleService) ToggleLike(ctx context.Context, articleID int64) (*domain.LikeToggle, error) {
	var res domain.LikeToggle
	if err := s.api.Do(ctx, http.MethodPost, idPath("/articles/%d/like/", articleID), nil, &res); err != nil {
		return nil, fmt.Errorf("toggle like: %w", err)
	}
	return &res, nil
}

func (s *ArticleService) ToggleBookmark(ctx context.Context, articleID int64) (*domain.BookmarkToggle, error) {
	var res domain.BookmarkToggle
	if err := s.api.Do(ctx, http.MethodPost, idPath("/articles/%d/bookmark/", articleID), nil, &res); err != nil {
		return nil, fmt.Errorf("toggle bookmark: %w", err)
	}
	return &res, nil
}
