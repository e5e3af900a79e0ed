package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"readearn/internal/domain"
	"readearn/internal/publish"

	"github.com/spf13/cobra"
)

// NewPublishCommand creates the publish command group.
func NewPublishCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Write drafts and request publication",
		Long: `Drafts are free. Requesting publication needs a wallet balance of at
least PUBLISH_MIN_BALANCE (150). The balance is checked first and the request
is not sent when it is short.`,
	}

	cmd.AddCommand(newPublishBalanceCommand(rootOpts))
	cmd.AddCommand(newPublishDraftCommand(rootOpts))
	cmd.AddCommand(newPublishRequestCommand(rootOpts))

	return cmd
}

func newPublishBalanceCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "balance",
		Short:         "Check whether the balance allows publishing",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				return a.out.Success(BalanceResult{a.gate.CheckBalance(ctx)})
			})
		},
	}
}

func newPublishDraftCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		draft domain.ArticleDraft
		tags  string
	)

	cmd := &cobra.Command{
		Use:           "draft",
		Short:         "Create an article draft",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				if strings.TrimSpace(draft.Title) == "" {
					return usageError(a.out, "--title is required")
				}
				for _, t := range strings.Split(tags, ",") {
					if t = strings.TrimSpace(t); t != "" {
						draft.Tags = append(draft.Tags, t)
					}
				}
				art, err := a.gate.CreateDraft(ctx, draft)
				if err != nil {
					return fail(a.out, err)
				}
				return a.out.Success(draftResult{art})
			})
		},
	}

	cmd.Flags().StringVar(&draft.Title, "title", "", "article title (required)")
	cmd.Flags().StringVar(&draft.Content, "content", "", "article body")
	cmd.Flags().StringVar(&tags, "tags", "", "comma separated tags")
	return cmd
}

type draftResult struct {
	*domain.Article
}

func (d draftResult) Text() string {
	return fmt.Sprintf("Draft %d created (%s). Publish it with: readearn publish request %d\n", d.ID, d.Slug, d.ID)
}

func newPublishRequestCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "request <article-id>",
		Short:         "Request publication of an article",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil || id <= 0 {
					return usageError(a.out, "article id must be a positive integer")
				}

				res, st, err := a.gate.RequestPublish(ctx, id)
				if err != nil {
					if errors.Is(err, publish.ErrBlockedLocally) {
						a.out.Progress(BalanceResult{st}.Text())
					}
					return fail(a.out, err)
				}
				return a.out.Success(publishResult{Result: res, Balance: a.cache.Display().Balance.StringFixed(2)})
			})
		},
	}
}

type publishResult struct {
	Result *domain.PublishResult `json:"result"`
	// Balance is the provisional balance after the fee.
	Balance string `json:"balance"`
}

func (p publishResult) Text() string {
	msg := p.Result.Message
	if msg == "" {
		msg = "submitted"
	}
	return fmt.Sprintf("Article %d: %s (%s). Balance now %s.\n", p.Result.ArticleID, p.Result.Status, msg, p.Balance)
}
