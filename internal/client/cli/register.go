package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iudanet/tokenauth/internal/client/auth"
	"github.com/iudanet/tokenauth/internal/validation"
)

func (c *Cli) newRegisterCmd() *cobra.Command {
	var (
		email     string
		passwords Passwords
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.commandContext(cmd)
			defer cancel()
			return c.runRegister(ctx, email, passwords)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "user email (prompted if empty)")
	cmd.Flags().StringVar(&passwords.FromArgs, "password", "", "user password (prompted if empty)")
	cmd.Flags().StringVar(&passwords.FromFile, "password-file", "", "read password from file")

	return cmd
}

func (c *Cli) runRegister(ctx context.Context, emailArg string, passwords Passwords) error {
	c.io.Println("=== Registration ===")
	c.io.Println()

	email, err := c.getEmail(emailArg)
	if err != nil {
		return err
	}

	password, err := c.getPassword(passwords, "Password: ")
	if err != nil {
		return err
	}

	// подтверждение нужно только при ручном вводе
	if passwords.FromArgs == "" && passwords.FromFile == "" && !passwordFromEnv() {
		confirm, err := c.io.ReadPassword("Confirm password: ")
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if password != confirm {
			return fmt.Errorf("passwords do not match")
		}
	}

	// сервер не объясняет отказ, поэтому проверяем ввод заранее
	if err := validation.ValidateEmail(validation.NormalizeEmail(email)); err != nil {
		return err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return err
	}

	c.io.Println("Registering user...")

	return c.withService(ctx, func(ctx context.Context, svc *auth.Service) error {
		ok, err := svc.Register(ctx, email, password)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("registration rejected (email may already be taken)")
		}

		c.io.Println()
		c.io.Println("✓ Registration successful!")
		c.io.Printf("Email: %s\n", validation.NormalizeEmail(email))
		c.io.Println()
		c.io.Println("Please run 'tokenauth login' to start a session.")
		return nil
	})
}
