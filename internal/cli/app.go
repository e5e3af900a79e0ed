package cli

import (
	"context"
	"errors"
	"net/http"

	"readearn/internal/api"
	"readearn/internal/audit"
	"readearn/internal/auth"
	"readearn/internal/config"
	"readearn/internal/db"
	"readearn/internal/engagement"
	"readearn/internal/logger"
	"readearn/internal/publish"
	"readearn/internal/service"
	"readearn/internal/wallet"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

// app is one terminal user's client runtime: the tokens of the selected
// account plus the services and caches built on them.
type app struct {
	cfg    *config.Config
	out    *OutputFormatter
	tokens auth.Store
	client *api.Client

	articles *service.ArticleService
	rewards  *service.RewardService
	wallets  *service.WalletService
	admin    *service.AdminService
	cache    *wallet.Cache
	gate     *publish.Gate
	tracker  *engagement.Tracker

	audit *audit.Service
	pool  *pgxpool.Pool
}

// httpClient lets tests point the CLI at an httptest server.
var httpClient *http.Client

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// newApp loads the configuration and builds the client runtime for the
// account selected with --account.
func newApp(opts *RootOptions, cmd *cobra.Command) (*app, error) {
	out := newFormatter(opts, cmd)

	cfg, err := config.Parse()
	if err != nil {
		_ = out.Error(ErrCodeConfig, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	level := cfg.LogLevel
	if opts.Verbose {
		level = "debug"
	} else if level == "info" {
		// keep the terminal quiet unless asked
		level = "warn"
	}
	logger.InitWithWriter(cmd.ErrOrStderr(), level, cfg.LogJSON)

	a := &app{
		cfg:    cfg,
		out:    out,
		tokens: auth.NewFileStore(cfg.TokenFile),
	}

	clientOpts := []api.Option{
		api.WithTimeout(cfg.APITimeout),
		api.WithSessionExpired(func(ctx context.Context) {
			logger.WithContext(ctx).Warn("session expired", "account", opts.Account)
		}),
	}
	if httpClient != nil {
		clientOpts = append(clientOpts, api.WithHTTPClient(httpClient))
	}
	a.client = api.NewClient(cfg.APIBaseURL, auth.Bind(a.tokens, opts.Account), clientOpts...)

	a.articles = service.NewArticleService(a.client)
	a.rewards = service.NewRewardService(a.client)
	a.wallets = service.NewWalletService(a.client)
	a.admin = service.NewAdminService(a.client)
	a.cache = wallet.NewCache(a.wallets)
	a.tracker = engagement.NewTracker(a.articles)

	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			// the journal is optional
			logger.Warn("audit journal unavailable", "error", err)
		} else {
			a.pool = pool
			a.audit = audit.NewService(audit.NewRepository(pool))
		}
	}

	var gateOpts []publish.Option
	if a.audit != nil {
		gateOpts = append(gateOpts, publish.WithJournal(a.audit, a.userID(cmd.Context(), opts.Account)))
	}
	a.gate = publish.NewGate(service.NewPublishService(a.client), a.articles, a.cache, cfg.PublishMinBalance, gateOpts...)

	return a, nil
}

// requireLogin fails early when the account has no stored tokens.
func (a *app) requireLogin(ctx context.Context, account string) error {
	if _, err := a.tokens.Load(ctx, account); err != nil {
		if errors.Is(err, auth.ErrNoTokens) {
			return fail(a.out, errNotLoggedIn)
		}
		return fail(a.out, err)
	}
	return nil
}

// userID reads the user id from the stored access token; 0 when unknown.
func (a *app) userID(ctx context.Context, account string) int64 {
	t, err := a.tokens.Load(ctx, account)
	if err != nil {
		return 0
	}
	claims, err := auth.ParseClaims(t.Access)
	if err != nil {
		return 0
	}
	return claims.UserID
}

func (a *app) close() {
	if a.pool != nil {
		a.pool.Close()
	}
}
