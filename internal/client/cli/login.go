package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/tokenauth/internal/client/auth"
)

func (c *Cli) newLoginCmd() *cobra.Command {
	var (
		email     string
		passwords Passwords
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.commandContext(cmd)
			defer cancel()
			return c.runLogin(ctx, email, passwords)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "user email (prompted if empty)")
	cmd.Flags().StringVar(&passwords.FromArgs, "password", "", "user password (prompted if empty)")
	cmd.Flags().StringVar(&passwords.FromFile, "password-file", "", "read password from file")

	return cmd
}

func (c *Cli) runLogin(ctx context.Context, emailArg string, passwords Passwords) error {
	c.io.Println("=== Login ===")
	c.io.Println()

	email, err := c.getEmail(emailArg)
	if err != nil {
		return err
	}

	password, err := c.getPassword(passwords, "Password: ")
	if err != nil {
		return err
	}

	c.io.Println("Authenticating...")

	return c.withService(ctx, func(ctx context.Context, svc *auth.Service) error {
		session, err := svc.Login(ctx, email, password)
		if err != nil {
			return err
		}

		c.io.Println()
		c.io.Println("✓ Login successful!")
		c.io.Printf("Email: %s\n", session.Email)
		c.io.Printf("User ID: %d\n", session.UserID)
		c.io.Printf("Access token expires: %s\n", session.AccessExpiresAt.Local().Format(time.RFC3339))
		return nil
	})
}
