package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/iudanet/tokenauth/internal/client/auth"
)

func (c *Cli) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the local session and clear the refresh cookie",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.commandContext(cmd)
			defer cancel()
			return c.withService(ctx, c.runLogout)
		},
	}
}

func (c *Cli) runLogout(ctx context.Context, svc *auth.Service) error {
	if err := svc.Logout(ctx); err != nil {
		if errors.Is(err, auth.ErrNotLoggedIn) {
			c.io.Println("Not logged in")
			return nil
		}
		return err
	}

	c.io.Println("✓ Logged out")
	return nil
}
