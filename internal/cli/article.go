package cli

import (
	"context"
	"strconv"

	"readearn/internal/domain"
	"readearn/internal/engagement"
	"readearn/internal/service"

	"github.com/spf13/cobra"
)

// NewArticleCommand creates the article command group.
func NewArticleCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "article",
		Short: "Browse articles and toggle likes and bookmarks",
	}

	cmd.AddCommand(newArticleListCommand(rootOpts))
	cmd.AddCommand(newArticleMineCommand(rootOpts))
	cmd.AddCommand(newArticleGetCommand(rootOpts))
	cmd.AddCommand(newArticleToggleCommand(rootOpts, "like"))
	cmd.AddCommand(newArticleToggleCommand(rootOpts, "bookmark"))

	return cmd
}

// withApp runs fn with a logged-in client runtime.
func withApp(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(opts, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	if err := a.requireLogin(ctx, opts.Account); err != nil {
		return err
	}
	return fn(ctx, a)
}

func newArticleListCommand(rootOpts *RootOptions) *cobra.Command {
	var params service.ListParams

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List published articles",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				page, err := a.articles.List(ctx, params)
				if err != nil {
					return fail(a.out, err)
				}
				return a.out.Success(ArticleList{page})
			})
		},
	}

	cmd.Flags().IntVar(&params.Page, "page", 1, "page number")
	cmd.Flags().StringVar(&params.Search, "search", "", "search text")
	cmd.Flags().StringVar(&params.Author, "author", "", "author username")

	return cmd
}

func newArticleMineCommand(rootOpts *RootOptions) *cobra.Command {
	var page int

	cmd := &cobra.Command{
		Use:           "mine",
		Short:         "List your own articles, drafts included",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				res, err := a.articles.Mine(ctx, page)
				if err != nil {
					return fail(a.out, err)
				}
				return a.out.Success(ArticleList{res})
			})
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page number")
	return cmd
}

func newArticleGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "get <slug>",
		Short:         "Show one article",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				art, err := a.articles.Get(ctx, args[0])
				if err != nil {
					return fail(a.out, err)
				}
				return a.out.Success(articleDetail(art, a.tracker.Observe(*art)))
			})
		},
	}
}

func newArticleToggleCommand(rootOpts *RootOptions, kind string) *cobra.Command {
	return &cobra.Command{
		Use:           kind + " <slug|id>",
		Short:         "Toggle the " + kind + " on an article",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				art, err := resolveArticle(ctx, a, args[0])
				if err != nil {
					return fail(a.out, err)
				}
				toggle := a.tracker.ToggleLike
				if kind == "bookmark" {
					toggle = a.tracker.ToggleBookmark
				}
				st, err := toggle(ctx, art.ID)
				if err != nil {
					return fail(a.out, err)
				}
				return a.out.Success(articleDetail(art, st))
			})
		},
	}
}

// resolveArticle accepts a numeric id or a slug. Toggles need the id; the
// fetch also seeds the tracker with the confirmed counters.
func resolveArticle(ctx context.Context, a *app, ref string) (*domain.Article, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil && id > 0 {
		return &domain.Article{ID: id, Slug: ref}, nil
	}
	art, err := a.articles.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	a.tracker.Observe(*art)
	return art, nil
}

func articleDetail(art *domain.Article, st engagement.State) ArticleDetail {
	return ArticleDetail{
		Article:    art,
		Likes:      st.Likes,
		Liked:      st.Liked,
		Bookmarked: st.Bookmarked,
	}
}
