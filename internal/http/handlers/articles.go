package handlers

import (
	"net/http"
	"strconv"

	"readearn/internal/domain"
	"readearn/internal/service"

	"github.com/gin-gonic/gin"
)

func queryPage(c *gin.Context) int {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// ListArticles proxies the article listing.
func (h *Handler) ListArticles(c *gin.Context) {
	a, ok := h.account(c)
	if !ok {
		return
	}
	page, err := a.articles.List(c.Request.Context(), service.ListParams{
		Page:   queryPage(c),
		Search: c.Query("search"),
		Author: c.Query("author"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	for _, art := range page.Results {
		a.tracker.Observe(art)
	}
	c.JSON(http.StatusOK, page)
}

// MyArticles lists the caller's own articles, drafts included.
func (h *Handler) MyArticles(c *gin.Context) {
	a, ok := h.account(c)
	if !ok {
		return
	}
	page, err := a.articles.Mine(c.Request.Context(), queryPage(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetArticle returns the article together with its like/bookmark state and
// the reading session, if one is open.
func (h *Handler) GetArticle(c *gin.Context) {
	a, ok := h.account(c)
	if !ok {
		return
	}
	art, err := a.articles.Get(c.Request.Context(), c.Param("slug"))
	if err != nil {
		writeError(c, err)
		return
	}

	resp := gin.H{
		"article":    art,
		"engagement": a.tracker.Observe(*art),
	}
	if s, ok := h.Registry.Get(a.sid, art.ID); ok {
		resp["session"] = s.View()
	}
	c.JSON(http.StatusOK, resp)
}

// CreateDraft saves a new article as draft. Drafts never need a balance.
func (h *Handler) CreateDraft(c *gin.Context) {
	a, ok := h.account(c)
	if !ok {
		return
	}
	var req domain.ArticleDraft
	if err := c.ShouldBindJSON(&req); err != nil || req.Title == "" {
		badRequest(c, "title is required")
		return
	}
	art, err := a.gate.CreateDraft(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, art)
}

// articleRef resolves the :slug path parameter to an article id. Numeric
// values are taken as ids, anything else is looked up by slug.
func articleRef(c *gin.Context, a *account) (int64, bool) {
	ref := c.Param("slug")
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		if id <= 0 {
			badRequest(c, "invalid id")
			return 0, false
		}
		return id, true
	}
	art, err := a.articles.Get(c.Request.Context(), ref)
	if err != nil {
		writeError(c, err)
		return 0, false
	}
	return art.ID, true
}

func (h *Handler) ToggleLike(c *gin.Context) {
	a, ok := h.account(c)
	if !ok {
		return
	}
	id, ok := articleRef(c, a)
	if !ok {
		return
	}
	st, err := a.tracker.ToggleLike(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) ToggleBookmark(c *gin.Context) {
	a, ok := h.account(c)
	if !ok {
		return
	}
	id, ok := articleRef(c, a)
	if !ok {
		return
	}
	st, err := a.tracker.ToggleBookmark(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
