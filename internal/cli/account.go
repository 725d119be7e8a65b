// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tomtom215/animescope/internal/client"
	"github.com/tomtom215/animescope/internal/favorites"
)

// CredentialOptions holds flags for commands that take a password.
type CredentialOptions struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// readPassword reads one line from in when no --password was given.
func readPassword(cmd *cobra.Command, in io.Reader, given string) (string, error) {
	if given != "" {
		return given, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("password is required")
	}
	return line, nil
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand(opts *Options) *cobra.Command {
	creds := &CredentialOptions{}

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			password, err := readPassword(cmd, cmd.InOrStdin(), creds.Password)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
			defer cancel()

			u, err := c.Register(ctx, creds.FirstName, creds.LastName, creds.Email, password)
			if errors.Is(err, client.ErrConflict) {
				return fmt.Errorf("an account for %s already exists", creds.Email)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (%s). Run 'animescope login' to sign in.\n", u.Email, u.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&creds.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&creds.Password, "password", "", "Account password (prompted when omitted)")
	cmd.Flags().StringVar(&creds.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&creds.LastName, "last-name", "", "Last name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("first-name")
	_ = cmd.MarkFlagRequired("last-name")
	return cmd
}

// NewLoginCommand creates the login command.
func NewLoginCommand(opts *Options) *cobra.Command {
	creds := &CredentialOptions{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and keep the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			password, err := readPassword(cmd, cmd.InOrStdin(), creds.Password)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
			defer cancel()

			res, err := c.Login(ctx, creds.Email, password)
			if errors.Is(err, favorites.ErrUnauthenticated) {
				return errors.New("invalid email or password")
			}
			if err != nil {
				return err
			}
			if err := saveToken(opts.TokenFile, res.Token); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", res.User.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&creds.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&creds.Password, "password", "", "Account password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			if c.Token() != "" {
				ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
				defer cancel()
				// The local token is dropped even when the server is unreachable.
				if err := c.Logout(ctx); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
				}
			}
			if err := removeToken(opts.TokenFile); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

// NewWhoamiCommand creates the whoami command.
func NewWhoamiCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
			defer cancel()

			u, err := c.CurrentUser(ctx)
			if err != nil {
				return err
			}
			if u == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s <%s> (%s)\n", u.FirstName, u.LastName, u.Email, u.Role)
			return nil
		},
	}
}
