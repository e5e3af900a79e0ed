package cli

import (
	"context"
	"fmt"
	"strings"

	"readearn/internal/domain"
	"readearn/internal/logger"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// NewWalletCommand creates the wallet command group. Without a subcommand
// it shows the wallet.
func NewWalletCommand(rootOpts *RootOptions) *cobra.Command {
	show := func(cmd *cobra.Command, args []string) error {
		return withApp(rootOpts, cmd, showWallet)
	}

	cmd := &cobra.Command{
		Use:           "wallet",
		Short:         "Show the wallet and manage payments",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          show,
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "show",
		Short:         "Show balance and reward points",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          show,
	})
	cmd.AddCommand(newWalletTransactionsCommand(rootOpts))
	cmd.AddCommand(newWalletConvertCommand(rootOpts))
	cmd.AddCommand(newPaymentRequestCommand(rootOpts, domain.PaymentRequestDeposit))
	cmd.AddCommand(newPaymentRequestCommand(rootOpts, domain.PaymentRequestWithdrawal))
	cmd.AddCommand(newWalletRequestsCommand(rootOpts))

	return cmd
}

func showWallet(ctx context.Context, a *app) error {
	if _, err := a.cache.Refresh(ctx); err != nil {
		if _, ok := a.cache.Current(); !ok {
			return fail(a.out, err)
		}
		return a.out.Success(WalletResult{Wallet: a.cache.Display(), Stale: true})
	}
	return a.out.Success(WalletResult{Wallet: a.cache.Display()})
}

func newWalletTransactionsCommand(rootOpts *RootOptions) *cobra.Command {
	var page int

	cmd := &cobra.Command{
		Use:           "transactions",
		Short:         "List wallet transactions",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				res, err := a.wallets.Transactions(ctx, page)
				if err != nil {
					return fail(a.out, err)
				}
				return a.out.Success(TransactionList{res})
			})
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page number")
	return cmd
}

func newWalletConvertCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "convert <points>",
		Short:         "Convert reward points into balance",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				pts, err := positiveAmount(args[0])
				if err != nil {
					return usageError(a.out, "points must be a positive number")
				}
				res, err := a.wallets.ConvertRewardPoints(ctx, pts)
				if err != nil {
					return fail(a.out, err)
				}
				if _, err := a.cache.Refresh(ctx); err != nil {
					logger.WithContext(ctx).Warn("wallet refresh after conversion failed", "error", err)
				}
				if a.audit != nil {
					a.audit.Log(ctx, a.userID(ctx, rootOpts.Account), domain.AuditActionConvertPoints, domain.AuditCategoryWallet, map[string]interface{}{
						"points": pts.String(),
					})
				}
				return a.out.Success(conversion{res})
			})
		},
	}
}

type conversion struct {
	*domain.ConversionResult
}

func (c conversion) Text() string {
	return fmt.Sprintf("Converted %s points into %s. Balance %s, %s reward points left.\n",
		c.PointsConverted.String(), c.AmountCredited.String(), c.Balance.String(), c.RewardPoints.String())
}

func newPaymentRequestCommand(rootOpts *RootOptions, kind domain.PaymentRequestType) *cobra.Command {
	var method, reference string

	cmd := &cobra.Command{
		Use:           string(kind) + " <amount>",
		Short:         "Ask an admin to approve a " + string(kind),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				amount, err := positiveAmount(args[0])
				if err != nil {
					return usageError(a.out, "amount must be a positive number")
				}
				var res *domain.PaymentRequest
				if kind == domain.PaymentRequestDeposit {
					res, err = a.wallets.RequestDeposit(ctx, amount, method, reference)
				} else {
					res, err = a.wallets.RequestWithdrawal(ctx, amount, method, reference)
				}
				if err != nil {
					return fail(a.out, err)
				}
				if a.audit != nil {
					a.audit.Log(ctx, a.userID(ctx, rootOpts.Account), domain.AuditActionPaymentRequest, domain.AuditCategoryWallet, map[string]interface{}{
						"type":   string(kind),
						"amount": amount.String(),
						"method": method,
					})
				}
				return a.out.Success(PaymentRequests{*res})
			})
		},
	}

	cmd.Flags().StringVar(&method, "method", "", "payment method (required)")
	cmd.Flags().StringVar(&reference, "reference", "", "payment reference")
	_ = cmd.MarkFlagRequired("method")
	return cmd
}

func newWalletRequestsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "requests",
		Short:         "List your deposit and withdrawal requests",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				items, err := a.wallets.PaymentRequests(ctx)
				if err != nil {
					return fail(a.out, err)
				}
				return a.out.Success(PaymentRequests(items))
			})
		},
	}
}

// PaymentRequests renders deposit and withdrawal requests.
type PaymentRequests []domain.PaymentRequest

func (p PaymentRequests) Text() string {
	if len(p) == 0 {
		return "No payment requests.\n"
	}
	var b strings.Builder
	for _, r := range p {
		fmt.Fprintf(&b, "#%-5d %-8s %10s  %-8s %s", r.ID, r.Type, r.Amount.String(), r.Status, r.Method)
		if r.AdminNote != "" {
			fmt.Fprintf(&b, "  (%s)", r.AdminNote)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func positiveAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("not positive: %s", s)
	}
	return d, nil
}
