package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"readearn/internal/api"
	"readearn/internal/auth"
	"readearn/internal/domain"

	"github.com/spf13/cobra"
)

// LoginOptions holds flags for the login command.
type LoginOptions struct {
	*RootOptions
	Username      string
	PasswordStdin bool
}

// LoginResult is printed after a successful login.
type LoginResult struct {
	Account   string     `json:"account"`
	UserID    int64      `json:"user_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	TokenFile string     `json:"token_file"`
}

func (r LoginResult) Text() string {
	return fmt.Sprintf("Logged in as user %d (account %q)\n", r.UserID, r.Account)
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoginOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the token pair",
		Long: `Log in with username and password. The password is read from
READEARN_PASSWORD, or from stdin with --password-stdin.

Example:
  echo "$PASS" | readearn login -u alice --password-stdin
  readearn --account work login -u alice`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Username, "username", "u", "", "platform username (required)")
	cmd.Flags().BoolVar(&opts.PasswordStdin, "password-stdin", false, "read the password from stdin")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}

func runLogin(opts *LoginOptions, cmd *cobra.Command) error {
	a, err := newApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	password := os.Getenv("READEARN_PASSWORD")
	if opts.PasswordStdin {
		password, err = readLine(cmd.InOrStdin())
		if err != nil {
			return usageError(a.out, "could not read password from stdin")
		}
	}
	if password == "" {
		return usageError(a.out, "no password: set READEARN_PASSWORD or use --password-stdin")
	}

	ctx := cmd.Context()
	res, err := a.client.Login(ctx, opts.Username, password)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			_ = a.out.Error(ErrCodeForbidden, "invalid credentials", nil)
			return WrapExitError(ExitFailure, "invalid credentials", err)
		}
		return fail(a.out, err)
	}

	out := LoginResult{Account: opts.Account, TokenFile: a.cfg.TokenFile}
	if claims, err := auth.ParseClaims(res.Access); err == nil {
		out.UserID = claims.UserID
		if !claims.ExpiresAt.IsZero() {
			exp := claims.ExpiresAt
			out.ExpiresAt = &exp
		}
		if a.audit != nil {
			a.audit.LogLogin(ctx, claims.UserID, "", "readearn-cli")
		}
	}
	a.out.VerboseLog("tokens stored in %s", a.cfg.TokenFile)
	return a.out.Success(out)
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "logout",
		Short:         "Forget the stored token pair",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			userID := a.userID(ctx, rootOpts.Account)
			if err := a.client.Logout(ctx); err != nil {
				return fail(a.out, err)
			}
			if a.audit != nil && userID != 0 {
				a.audit.Log(ctx, userID, domain.AuditActionLogout, domain.AuditCategoryAuth, map[string]interface{}{
					"account": rootOpts.Account,
				})
			}
			return a.out.Success(message("Logged out"))
		},
	}
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// message is a plain text result; JSON output wraps it as {"message": ...}.
type message string

func (m message) Text() string { return string(m) + "\n" }

func (m message) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"message": string(m)})
}
