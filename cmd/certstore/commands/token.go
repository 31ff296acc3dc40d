package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/certforge/certstore/internal/controlplane/api/auth"
	"github.com/certforge/certstore/pkg/config"
)

var (
	tokenUser string
	tokenRole string
	tokenTTL  time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an API bearer token",
	Long: `Mint a bearer token signed with the configured API secret.

Tokens are normally issued by the application that embeds certstore; this
command exists for operators and scripts.

Examples:
  # Token for a regular user, valid for the default duration
  certstore token --user alice

  # Admin token valid for one day
  certstore token --user ops --role admin --ttl 24h`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "Subject of the token (required)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", auth.RoleUser, "Role claim (user|admin)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")
}

func runToken(cmd *cobra.Command, args []string) error {
	if tokenRole != auth.RoleUser && tokenRole != auth.RoleAdmin {
		return fmt.Errorf("invalid role %q: must be %s or %s", tokenRole, auth.RoleUser, auth.RoleAdmin)
	}

	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	jwtService, err := auth.NewJWTService(auth.JWTConfig{
		Secret: cfg.Server.GetAuthSecret(),
		Issuer: cfg.Server.Auth.Issuer,
	})
	if err != nil {
		return fmt.Errorf("cannot sign tokens: %w", err)
	}

	token, expiresAt, err := jwtService.GenerateToken(tokenUser, tokenRole, tokenTTL)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
	cmd.PrintErrf("Expires at %s\n", expiresAt.Format(time.RFC3339))
	return nil
}
