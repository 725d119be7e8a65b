// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

// Package cli implements the animescope terminal client commands.
package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/animescope/internal/client"
)

// DefaultServer is used when neither --server nor ANIMESCOPE_SERVER is set.
const DefaultServer = "http://localhost:3000"

// Options are the persistent flags shared by every command.
type Options struct {
	Server    string
	TokenFile string
	Timeout   time.Duration
}

// client builds an API client carrying the stored token.
func (o *Options) client() (*client.Client, error) {
	token, err := loadToken(o.TokenFile)
	if err != nil {
		return nil, err
	}
	return client.New(o.Server, token), nil
}

// NewRootCommand creates the root command.
func NewRootCommand(version string) *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:           "animescope",
		Short:         "Animescope - browse the anime catalog from your terminal",
		Long:          "Animescope browses the anime catalog through an Animescope server and manages your favorites.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.TokenFile == "" {
				path, err := defaultTokenFile()
				if err != nil {
					return err
				}
				opts.TokenFile = path
			}
			return nil
		},
	}

	server := os.Getenv("ANIMESCOPE_SERVER")
	if server == "" {
		server = DefaultServer
	}
	cmd.PersistentFlags().StringVar(&opts.Server, "server", server, "Animescope server URL")
	cmd.PersistentFlags().StringVar(&opts.TokenFile, "token-file", "", "Where the login token is kept (default: user config dir)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "Request timeout")

	cmd.AddCommand(
		NewRegisterCommand(opts),
		NewLoginCommand(opts),
		NewLogoutCommand(opts),
		NewWhoamiCommand(opts),
		NewGenresCommand(opts),
		NewShowCommand(opts),
		NewBrowseCommand(opts),
	)
	return cmd
}
