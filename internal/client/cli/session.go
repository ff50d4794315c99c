package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/tokenauth/internal/client/auth"
)

func (c *Cli) newMeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the current user as seen by the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.commandContext(cmd)
			defer cancel()
			return c.withService(ctx, c.runMe)
		},
	}
}

func (c *Cli) runMe(ctx context.Context, svc *auth.Service) error {
	user, err := svc.Me(ctx)
	if err != nil {
		return err
	}
	if user == nil {
		c.io.Println("Not authenticated")
		return nil
	}

	c.io.Printf("ID: %d\n", user.ID)
	c.io.Printf("Email: %s\n", user.Email)
	c.io.Printf("Token version: %d\n", user.TokenVersion)
	c.io.Printf("Created: %s\n", user.CreatedAt.Local().Format(time.RFC3339))
	return nil
}

func (c *Cli) newByeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bye",
		Short: "Call the protected bye endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.commandContext(cmd)
			defer cancel()
			return c.withService(ctx, func(ctx context.Context, svc *auth.Service) error {
				msg, err := svc.Bye(ctx)
				if err != nil {
					return err
				}
				c.io.Println(msg)
				return nil
			})
		},
	}
}

func (c *Cli) newUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List registered users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.commandContext(cmd)
			defer cancel()
			return c.withService(ctx, c.runUsers)
		},
	}
}

func (c *Cli) runUsers(ctx context.Context, svc *auth.Service) error {
	users, err := svc.Users(ctx)
	if err != nil {
		return err
	}

	if len(users) == 0 {
		c.io.Println("No users")
		return nil
	}

	c.io.Printf("%-6s %-32s %s\n", "ID", "EMAIL", "TOKEN VERSION")
	for _, u := range users {
		c.io.Printf("%-6d %-32s %d\n", u.ID, u.Email, u.TokenVersion)
	}
	c.io.Println()
	c.io.Printf("Total: %d user(s)\n", len(users))
	return nil
}

func (c *Cli) newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the stored refresh token for a new token pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.commandContext(cmd)
			defer cancel()
			return c.withService(ctx, func(ctx context.Context, svc *auth.Service) error {
				session, err := svc.Refresh(ctx)
				if err != nil {
					return err
				}
				c.io.Println("✓ Tokens refreshed")
				c.io.Printf("Access token expires: %s\n", session.AccessExpiresAt.Local().Format(time.RFC3339))
				return nil
			})
		},
	}
}
