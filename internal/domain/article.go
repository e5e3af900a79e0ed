package domain

import "time"

// ArticleStatus is the moderation state of an article
type ArticleStatus string

const (
	ArticleStatusDraft     ArticleStatus = "draft"
	ArticleStatusPending   ArticleStatus = "pending"
	ArticleStatusPublished ArticleStatus = "published"
	ArticleStatusRejected  ArticleStatus = "rejected"
)

// AuthorRef identifies the writer of an article
type AuthorRef struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Article is the reader-side projection of an article
type Article struct {
	ID                      int64         `json:"id"`
	Slug                    string        `json:"slug"`
	Title                   string        `json:"title"`
	Content                 string        `json:"content,omitempty"`
	Status                  ArticleStatus `json:"status,omitempty"`
	ReadingTimeMinutes      int           `json:"reading_time_minutes"`
	CollectableRewardPoints Amount        `json:"collectable_reward_points"`
	Author                  AuthorRef     `json:"author"`
	LikesCount              int64         `json:"likes_count"`
	BookmarksCount          int64         `json:"bookmarks_count"`
	ReadsCount              int64         `json:"reads_count"`
	IsLiked                 bool          `json:"is_liked"`
	IsBookmarked            bool          `json:"is_bookmarked"`
	CreatedAt               time.Time     `json:"created_at"`
}

// RequiredSeconds is the dwell time before the reward can be collected.
func (a *Article) RequiredSeconds() int {
	if a.ReadingTimeMinutes <= 0 {
		return 0
	}
	return a.ReadingTimeMinutes * 60
}

// ArticleDraft is the payload for creating an article. Drafts never need a
// wallet balance.
type ArticleDraft struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
}

// ArticlePage is one page of an article listing
type ArticlePage struct {
	Count    int64     `json:"count"`
	Next     string    `json:"next,omitempty"`
	Previous string    `json:"previous,omitempty"`
	Results  []Article `json:"results"`
}

// LikeToggle is the response of the like endpoint
type LikeToggle struct {
	Liked      bool  `json:"liked"`
	LikesCount int64 `json:"likes_count"`
}

// BookmarkToggle is the response of the bookmark endpoint
type BookmarkToggle struct {
	Bookmarked     bool  `json:"bookmarked"`
	BookmarksCount int64 `json:"bookmarks_count"`
}

// Moderation is an admin decision on a pending article
type Moderation struct {
	Action string `json:"action"` // approve | reject
	Reason string `json:"reason,omitempty"`
}
