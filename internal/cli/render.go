package cli

import (
	"fmt"
	"strings"

	"readearn/internal/domain"
	"readearn/internal/publish"
	"readearn/internal/reading"
	"readearn/internal/wallet"

	"github.com/shopspring/decimal"
)

// formatClock renders seconds as mm:ss.
func formatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func points(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// renderEvent is the terminal line for one session event. Countdown ticks
// rewrite the current line; everything else ends it.
func renderEvent(ev reading.Event) string {
	snap := ev.Snapshot
	switch ev.Kind {
	case reading.EventTick:
		return "\r" + countdownLine(snap)
	case reading.EventError:
		return "\n! " + ev.Message + "\n"
	case reading.EventGift:
		return "Gift: " + ev.Message + "\n"
	}

	switch snap.State {
	case reading.StateRunning:
		if snap.RemainingSeconds == snap.RequiredSeconds {
			return countdownLine(snap)
		}
		return "\r" + countdownLine(snap)
	case reading.StateCompleted:
		if snap.LastError != "" {
			// a failed collect falls back here
			return ""
		}
		return "\rReading time completed.      \n"
	case reading.StateCollecting:
		return "Collecting reward...\n"
	case reading.StateCollected:
		return fmt.Sprintf("Collected %s points.\n", points(snap.PointsCollected))
	case reading.StateAlreadyRewarded:
		return "Reward already collected for this article.\n"
	}
	return ""
}

func countdownLine(snap reading.Snapshot) string {
	line := "Reading... " + formatClock(snap.RemainingSeconds) + " left"
	if snap.Degraded {
		line += " (offline timer)"
	}
	return line
}

// WalletResult is the wallet as shown to the user.
type WalletResult struct {
	Wallet wallet.View `json:"wallet"`
	// Stale is set when the refresh failed and the last snapshot is shown.
	Stale bool `json:"stale,omitempty"`
}

func (r WalletResult) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Balance:       %s\n", points(r.Wallet.Balance))
	fmt.Fprintf(&b, "Reward points: %s\n", points(r.Wallet.RewardPoints))
	if r.Wallet.Provisional {
		b.WriteString("(pending confirmation)\n")
	}
	if r.Stale {
		b.WriteString("(offline, last known values)\n")
	}
	return b.String()
}

// BalanceResult is the publish gate answer.
type BalanceResult struct {
	publish.Status
}

func (r BalanceResult) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current balance:  %s\n", points(r.CurrentBalance))
	fmt.Fprintf(&b, "Required balance: %s\n", points(r.RequiredBalance))
	switch {
	case r.CheckFailed:
		fmt.Fprintf(&b, "Publishing:       blocked, balance check failed (%s)\n", r.Error)
	case r.HasSufficientBalance:
		b.WriteString("Publishing:       allowed\n")
	default:
		fmt.Fprintf(&b, "Publishing:       blocked, top up %s\n", points(r.Shortfall))
	}
	return b.String()
}

// ArticleList is one page of articles.
type ArticleList struct {
	*domain.ArticlePage
}

func (l ArticleList) Text() string {
	if l.ArticlePage == nil || len(l.Results) == 0 {
		return "No articles.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-6s %-24s %4s %8s  %s\n", "ID", "SLUG", "MIN", "POINTS", "TITLE")
	for _, a := range l.Results {
		fmt.Fprintf(&b, "%-6d %-24s %4d %8s  %s\n",
			a.ID, a.Slug, a.ReadingTimeMinutes, a.CollectableRewardPoints.String(), a.Title)
	}
	if l.Next != "" {
		fmt.Fprintf(&b, "(%d articles, more with --page)\n", l.Count)
	}
	return b.String()
}

// ArticleDetail is one article with its engagement counters.
type ArticleDetail struct {
	Article    *domain.Article `json:"article"`
	Likes      int64           `json:"likes_count"`
	Liked      bool            `json:"liked"`
	Bookmarked bool            `json:"bookmarked"`
}

func (d ArticleDetail) Text() string {
	a := d.Article
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", a.Title)
	fmt.Fprintf(&b, "by %s, %d min read, %s points\n", a.Author.Username, a.ReadingTimeMinutes, a.CollectableRewardPoints.String())
	fmt.Fprintf(&b, "%d likes", d.Likes)
	if d.Liked {
		b.WriteString(", liked")
	}
	if d.Bookmarked {
		b.WriteString(", bookmarked")
	}
	b.WriteString("\n")
	if a.Content != "" {
		fmt.Fprintf(&b, "\n%s\n", a.Content)
	}
	return b.String()
}

// TransactionList is one page of the wallet ledger.
type TransactionList struct {
	*domain.TransactionPage
}

func (l TransactionList) Text() string {
	if l.TransactionPage == nil || len(l.Results) == 0 {
		return "No transactions.\n"
	}
	var b strings.Builder
	for _, t := range l.Results {
		fmt.Fprintf(&b, "%s  %-14s %10s  %s\n",
			t.CreatedAt.Format("2006-01-02 15:04"), t.Type, t.Amount.String(), t.Description)
	}
	return b.String()
}

// ReadResult summarizes a finished reading session.
type ReadResult struct {
	Session reading.Snapshot   `json:"session"`
	Gift    *domain.GiftResult `json:"gift,omitempty"`
	Wallet  wallet.View        `json:"wallet"`
}

func (r ReadResult) Text() string {
	var b strings.Builder
	switch r.Session.State {
	case reading.StateCollected:
		fmt.Fprintf(&b, "Done: %s points collected for %q.\n", points(r.Session.PointsCollected), r.Session.Slug)
	case reading.StateAlreadyRewarded:
		fmt.Fprintf(&b, "Done: %q was already rewarded.\n", r.Session.Slug)
	default:
		fmt.Fprintf(&b, "Stopped in state %s.\n", r.Session.State)
	}
	if r.Gift != nil {
		b.WriteString("Gift sent")
		if r.Gift.RemainingBalance.Valid {
			fmt.Fprintf(&b, ", %s reward points left", r.Gift.RemainingBalance.String())
		}
		b.WriteString(".\n")
	}
	if r.Wallet.Loaded {
		b.WriteString(WalletResult{Wallet: r.Wallet}.Text())
	}
	return b.String()
}
