package commands

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/certforge/certstore/cmd/certstorectl/cmdutil"
	"github.com/certforge/certstore/internal/cli/credentials"
	"github.com/certforge/certstore/internal/cli/prompt"
	"github.com/certforge/certstore/internal/cli/timeutil"
)

var (
	loginServer  string
	loginToken   string
	loginContext string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store credentials for a certstore server",
	Long: `Store a server URL and bearer token as a named context.

Tokens are issued on the server host with "certstore token". The token is
checked against the server before it is saved. Servers running without
authentication accept an empty token.

Examples:
  # Prompt for the token
  certstorectl login --server http://localhost:8080

  # Non-interactive
  certstorectl login --server https://files.example.com --token "$TOKEN" --name prod`,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&loginServer, "server", "", "Server URL")
	loginCmd.Flags().StringVar(&loginToken, "token", "", "Bearer token (prompted when omitted)")
	loginCmd.Flags().StringVar(&loginContext, "name", "", "Context name (defaults to the server host)")
	_ = loginCmd.MarkFlagRequired("server")
}

func runLogin(cmd *cobra.Command, args []string) error {
	serverURL := strings.TrimSuffix(loginServer, "/")
	u, err := url.Parse(serverURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid server URL %q", loginServer)
	}

	token := loginToken
	if token == "" {
		token, err = prompt.Secret("Token (leave empty if auth is disabled)")
		if err != nil {
			return cmdutil.HandleAbort(err)
		}
	}

	ctx := &credentials.Context{ServerURL: serverURL, Token: token}
	if token != "" {
		if err := fillTokenClaims(ctx, token); err != nil {
			return err
		}
	}

	client := cmdutil.NewClient(serverURL, token)
	if _, err := client.Stats(""); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	store, err := cmdutil.OpenContexts()
	if err != nil {
		return err
	}

	name := loginContext
	if name == "" {
		name = u.Host
	}
	if err := store.SetContext(name, ctx); err != nil {
		return fmt.Errorf("failed to save context: %w", err)
	}
	if err := store.UseContext(name); err != nil {
		return fmt.Errorf("failed to switch context: %w", err)
	}

	msg := fmt.Sprintf("Logged in to %s (context %q)", serverURL, name)
	if ctx.Subject != "" {
		msg += fmt.Sprintf(" as %s", ctx.Subject)
	}
	cmdutil.PrintSuccess(msg)
	if !ctx.ExpiresAt.IsZero() {
		_, _ = fmt.Fprintf(cmdutil.Out, "Token expires at %s\n", timeutil.FormatLocal(ctx.ExpiresAt))
	}
	return nil
}

// fillTokenClaims copies subject, role and expiry from an unverified token.
// The server is the only party that can check the signature.
func fillTokenClaims(ctx *credentials.Context, token string) error {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}

	if sub, err := claims.GetSubject(); err == nil {
		ctx.Subject = sub
	}
	if role, ok := claims["role"].(string); ok {
		ctx.Role = role
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		ctx.ExpiresAt = exp.Time
		if time.Now().After(exp.Time) {
			return fmt.Errorf("token expired at %s", timeutil.FormatLocal(exp.Time))
		}
	}
	return nil
}
