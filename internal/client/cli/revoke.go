package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/iudanet/tokenauth/internal/client/auth"
)

func (c *Cli) newRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <user-id>",
		Short: "Revoke all refresh tokens of a user",
		Long: `Revoke bumps the user's token version on the server. Refresh tokens issued
before the call stop working; access tokens stay valid until they expire.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || userID <= 0 {
				return fmt.Errorf("invalid user id: %q", args[0])
			}

			ctx, cancel := c.commandContext(cmd)
			defer cancel()
			return c.withService(ctx, func(ctx context.Context, svc *auth.Service) error {
				ok, err := svc.Revoke(ctx, userID)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("user %d not found", userID)
				}
				c.io.Printf("✓ Refresh tokens of user %d revoked\n", userID)
				return nil
			})
		},
	}
}
