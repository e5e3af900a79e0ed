package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"readearn/internal/audit"
	"readearn/internal/domain"

	"github.com/spf13/cobra"
)

// NewAdminCommand creates the admin command group. The backend decides who
// is an admin; a refusal shows up as a forbidden error.
func NewAdminCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Moderate articles and payment requests",
	}

	cmd.AddCommand(newAdminPendingCommand(rootOpts))
	cmd.AddCommand(newAdminModerateCommand(rootOpts))
	cmd.AddCommand(newAdminPaymentsCommand(rootOpts))
	cmd.AddCommand(newAdminReviewCommand(rootOpts, true))
	cmd.AddCommand(newAdminReviewCommand(rootOpts, false))
	cmd.AddCommand(newAdminActivityCommand(rootOpts))

	return cmd
}

func newAdminPendingCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "pending",
		Short:         "List articles waiting for moderation",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				items, err := a.admin.PendingArticles(ctx)
				if err != nil {
					return fail(a.out, err)
				}
				return a.out.Success(ArticleList{&domain.ArticlePage{Count: int64(len(items)), Results: items}})
			})
		},
	}
}

func newAdminModerateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		approve, reject bool
		reason          string
	)

	cmd := &cobra.Command{
		Use:           "moderate <article-id>",
		Short:         "Approve or reject a pending article",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				id, err := parseID(args[0])
				if err != nil {
					return usageError(a.out, "article id must be a positive integer")
				}
				if approve == reject {
					return usageError(a.out, "exactly one of --approve or --reject is required")
				}
				if reject && reason == "" {
					return usageError(a.out, "--reason is required to reject")
				}

				if err := a.admin.ModerateArticle(ctx, id, approve, reason); err != nil {
					return fail(a.out, err)
				}
				action, done := "approve", "approved"
				if reject {
					action, done = "reject", "rejected"
				}
				if a.audit != nil {
					a.audit.LogAdminAction(ctx, a.userID(ctx, rootOpts.Account), domain.AuditActionModerateArticle, id, map[string]interface{}{
						"decision": action,
						"reason":   reason,
					})
				}
				return a.out.Success(message(fmt.Sprintf("Article %d %s", id, done)))
			})
		},
	}

	cmd.Flags().BoolVar(&approve, "approve", false, "publish the article")
	cmd.Flags().BoolVar(&reject, "reject", false, "send the article back")
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason")
	return cmd
}

func newAdminPaymentsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "payments",
		Short:         "List payment requests waiting for review",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				items, err := a.admin.PendingPayments(ctx)
				if err != nil {
					return fail(a.out, err)
				}
				return a.out.Success(PaymentRequests(items))
			})
		},
	}
}

func newAdminReviewCommand(rootOpts *RootOptions, approve bool) *cobra.Command {
	var note string
	use, short, flag := "approve", "Approve a payment request", "note"
	if !approve {
		use, short, flag = "reject", "Reject a payment request", "reason"
	}

	cmd := &cobra.Command{
		Use:           use + " <request-id>",
		Short:         short,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				id, err := parseID(args[0])
				if err != nil {
					return usageError(a.out, "request id must be a positive integer")
				}

				var (
					res    *domain.PaymentRequest
					action string
				)
				if approve {
					res, err = a.admin.ApprovePayment(ctx, id, note)
					action = domain.AuditActionApprovePayment
				} else {
					if note == "" {
						return usageError(a.out, "--reason is required to reject")
					}
					res, err = a.admin.RejectPayment(ctx, id, note)
					action = domain.AuditActionRejectPayment
				}
				if err != nil {
					return fail(a.out, err)
				}
				if a.audit != nil {
					a.audit.LogAdminAction(ctx, a.userID(ctx, rootOpts.Account), action, id, map[string]interface{}{
						flag: note,
					})
				}
				return a.out.Success(PaymentRequests{*res})
			})
		},
	}

	cmd.Flags().StringVar(&note, flag, "", "text stored with the decision")
	return cmd
}

func newAdminActivityCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		limit    int
		userID   int64
		category string
	)

	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show the audit journal",
		Long: `Show recent entries of the audit journal. Needs DATABASE_URL; the
journal is written by readearn serve and by this client.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if a.audit == nil {
				_ = a.out.Error(ErrCodeConfig, "audit journal not configured, set DATABASE_URL", nil)
				return NewExitError(ExitCommandError, "audit journal not configured")
			}
			ctx := cmd.Context()
			logs, err := a.audit.Logs(ctx, audit.Filter{UserID: userID, Category: category, Limit: limit})
			if err != nil {
				return fail(a.out, err)
			}
			return a.out.Success(AuditList(logs))
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "number of entries")
	cmd.Flags().Int64Var(&userID, "user", 0, "only this user's entries")
	cmd.Flags().StringVar(&category, "category", "", "only this category (auth, reading, wallet, publish, admin)")
	return cmd
}

// AuditList renders journal entries, newest first.
type AuditList []*domain.AuditLog

func (l AuditList) Text() string {
	if len(l) == 0 {
		return "No entries.\n"
	}
	var b strings.Builder
	for _, e := range l {
		fmt.Fprintf(&b, "%s  user %-6d %-10s %s\n", e.CreatedAt.Format("2006-01-02 15:04:05"), e.UserID, e.Category, e.Action)
	}
	return b.String()
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, fmt.Errorf("not positive: %d", id)
	}
	return id, nil
}
