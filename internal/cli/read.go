package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"readearn/internal/clock"
	"readearn/internal/reading"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// ReadOptions holds flags for the read command.
type ReadOptions struct {
	*RootOptions
	Manual      bool
	Gift        string
	GiftMessage string
}

// NewReadCommand creates the read command.
func NewReadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "read <slug>",
		Short: "Read an article and collect its reward",
		Long: `Start a reading session for the article, wait out the required reading
time and collect the reward. Ctrl-C cancels the timer; nothing is collected.

With --manual the reward is collected only after Enter is pressed once the
timer is done. With --gift some of the collected points go to the author.

Example:
  readearn read go-idioms
  readearn read go-idioms --gift 5 --gift-message "thanks!"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRead(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Manual, "manual", false, "wait for Enter before collecting")
	cmd.Flags().StringVar(&opts.Gift, "gift", "", "reward points to gift to the author after collecting")
	cmd.Flags().StringVar(&opts.GiftMessage, "gift-message", "", "message sent with the gift")

	return cmd
}

func runRead(opts *ReadOptions, slug string, cmd *cobra.Command) error {
	a, err := newApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	var gift decimal.Decimal
	if opts.Gift != "" {
		gift, err = decimal.NewFromString(opts.Gift)
		if err != nil || !gift.IsPositive() {
			return usageError(a.out, "--gift must be a positive number")
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.requireLogin(ctx, opts.Account); err != nil {
		return err
	}

	art, err := a.articles.Get(ctx, slug)
	if err != nil {
		return fail(a.out, err)
	}

	sessOpts := reading.Options{
		Clock:              clock.Real{},
		TickInterval:       a.cfg.TickInterval,
		SendElapsedMinutes: a.cfg.SendElapsedMinutes,
	}
	if a.audit != nil {
		sessOpts.Journal = a.audit
	}
	userID := a.userID(ctx, opts.Account)
	s := reading.NewSession(*art, reading.Deps{Rewards: a.rewards, Wallet: a.cache, UserID: userID}, sessOpts)
	defer s.Close()

	events, unsubscribe := s.Subscribe()
	defer unsubscribe()

	a.out.VerboseLog("article %d %q: %d min, %s points", art.ID, art.Title, art.ReadingTimeMinutes, art.CollectableRewardPoints.String())

	if err := s.Start(ctx); err != nil {
		return fail(a.out, err)
	}

	if err := waitReadable(ctx, s, events, a.out); err != nil {
		if errors.Is(err, errCancelled) {
			s.Cancel()
			a.out.Progress("\n")
		}
		return fail(a.out, err)
	}

	if s.View().State == reading.StateAlreadyRewarded {
		return a.out.Success(ReadResult{Session: s.View(), Wallet: a.cache.Display()})
	}

	if opts.Manual {
		a.out.Progress("Press Enter to collect the reward.\n")
		if err := waitEnter(ctx, cmd); err != nil {
			return fail(a.out, err)
		}
	}

	if _, err := s.Collect(ctx); err != nil {
		return fail(a.out, err)
	}
	drain(events, a.out)

	res := ReadResult{Wallet: a.cache.Display()}
	if opts.Gift != "" {
		g, err := s.Gift(ctx, gift, opts.GiftMessage)
		drain(events, a.out)
		if err != nil {
			return fail(a.out, err)
		}
		res.Gift = g
		res.Wallet = a.cache.Display()
	}
	res.Session = s.View()
	return a.out.Success(res)
}

// waitReadable renders session events until the reward can be collected or
// the article turns out to be rewarded already.
func waitReadable(ctx context.Context, s *reading.Session, events <-chan reading.Event, out *OutputFormatter) error {
	for {
		if st := s.View().State; st == reading.StateCompleted || st.Terminal() {
			drain(events, out)
			return nil
		}
		select {
		case <-ctx.Done():
			return errCancelled
		case ev, ok := <-events:
			if !ok {
				return reading.ErrSessionClosed
			}
			out.Progress(renderEvent(ev))
		}
	}
}

// drain renders the events already queued.
func drain(events <-chan reading.Event, out *OutputFormatter) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			out.Progress(renderEvent(ev))
		default:
			return
		}
	}
}

func waitEnter(ctx context.Context, cmd *cobra.Command) error {
	done := make(chan error, 1)
	go func() {
		_, err := readLine(cmd.InOrStdin())
		done <- err
	}()
	select {
	case <-ctx.Done():
		return errCancelled
	case err := <-done:
		return err
	}
}
