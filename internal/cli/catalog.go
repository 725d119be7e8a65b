// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/tomtom215/animescope/internal/client"
	"github.com/tomtom215/animescope/internal/favorites"
	"github.com/tomtom215/animescope/internal/jikan"
	"github.com/tomtom215/animescope/internal/logging"
	"github.com/tomtom215/animescope/internal/models"
	"github.com/tomtom215/animescope/internal/paginate"
	"github.com/tomtom215/animescope/internal/tui"
)

// NewGenresCommand creates the genres command.
func NewGenresCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "genres",
		Short: "List genre ids for --genre",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
			defer cancel()

			genres, err := c.Genres(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME")
			for _, g := range genres {
				fmt.Fprintf(w, "%d\t%s\n", g.ID, g.Name)
			}
			return w.Flush()
		},
	}
}

// NewShowCommand creates the show command.
func NewShowCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid anime id %q", args[0])
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
			defer cancel()

			d, err := c.Details(ctx, id)
			if client.IsNotFound(err) {
				return fmt.Errorf("anime %d not found", id)
			}
			if err != nil {
				return err
			}
			printDetails(cmd.OutOrStdout(), d)
			return nil
		},
	}
}

func printDetails(out io.Writer, d *models.Details) {
	fmt.Fprintf(out, "%s (#%d)\n", d.Title, d.ID)
	if d.TitleJA != nil && *d.TitleJA != "" {
		fmt.Fprintf(out, "  %s\n", *d.TitleJA)
	}
	if d.Score != nil {
		fmt.Fprintf(out, "Score:    %.2f\n", *d.Score)
	}
	if d.Year != nil {
		fmt.Fprintf(out, "Year:     %d\n", *d.Year)
	}
	if d.Episodes != nil {
		fmt.Fprintf(out, "Episodes: %d\n", *d.Episodes)
	}
	fmt.Fprintf(out, "Status:   %s\n", d.Status)
	if len(d.Studios) > 0 {
		fmt.Fprintf(out, "Studios:  %s\n", strings.Join(d.Studios, ", "))
	}
	if len(d.Genres) > 0 {
		names := make([]string, len(d.Genres))
		for i, g := range d.Genres {
			names[i] = g.Name
		}
		fmt.Fprintf(out, "Genres:   %s\n", strings.Join(names, ", "))
	}
	if d.Synopsis != nil {
		fmt.Fprintf(out, "\n%s\n", *d.Synopsis)
	}
	if d.Source == models.SourceCache {
		fmt.Fprintln(out, "\n(served from the local cache, the catalog is unavailable)")
	}
}

// BrowseOptions holds flags for the browse command.
type BrowseOptions struct {
	Query     string
	GenreID   int
	Sort      string
	Favorites bool
	ChunkSize int
}

// query validates the flags.
func (b *BrowseOptions) query() (jikan.BrowseQuery, error) {
	q := jikan.BrowseQuery{Query: b.Query, GenreID: b.GenreID}
	if b.GenreID < 0 {
		return q, fmt.Errorf("invalid genre id %d", b.GenreID)
	}
	if b.Sort != "" {
		s := jikan.Sort(strings.ToLower(b.Sort))
		if jikan.ParseSort(b.Sort) != s {
			keys := make([]string, len(jikan.Sorts))
			for i, k := range jikan.Sorts {
				keys[i] = string(k)
			}
			return q, fmt.Errorf("unknown sort %q (one of: %s)", b.Sort, strings.Join(keys, ", "))
		}
		q.Sort = s
	}
	return q, nil
}

// NewBrowseCommand creates the browse command.
func NewBrowseCommand(opts *Options) *cobra.Command {
	b := &BrowseOptions{}

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse the catalog (or your favorites) interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := b.query()
			if err != nil {
				return err
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			// Keep log output off the alternate screen.
			logging.Init(logging.Config{Level: "disabled"})

			model, err := newBrowser(cmd.Context(), c, q, b, opts)
			if err != nil {
				return err
			}
			defer model.Close()

			p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			_, err = p.Run()
			return err
		},
	}

	cmd.Flags().StringVarP(&b.Query, "q", "q", "", "Search text (3+ characters)")
	cmd.Flags().IntVar(&b.GenreID, "genre", 0, "Genre id (see 'animescope genres')")
	cmd.Flags().StringVar(&b.Sort, "sort", "", "Sort key: popular, least_popular, az, za, top_rated, worst_rated, airing, upcoming")
	cmd.Flags().BoolVar(&b.Favorites, "favorites", false, "Browse your favorites instead of the catalog")
	cmd.Flags().IntVar(&b.ChunkSize, "chunk", 25, "Titles fetched per page")
	return cmd
}

// newBrowser builds the TUI model: session lookup, favorites overlay and
// the list source.
func newBrowser(ctx context.Context, c *client.Client, q jikan.BrowseQuery, b *BrowseOptions, opts *Options) (*tui.Model, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	sess, err := c.Session(ctx)
	if err != nil {
		return nil, fmt.Errorf("contact server: %w", err)
	}
	if b.Favorites && !sess.Authenticated() {
		return nil, fmt.Errorf("%w: run 'animescope login' first", favorites.ErrUnauthenticated)
	}

	var overlay *favorites.Overlay
	if sess.Authenticated() {
		overlay = favorites.NewOverlay(sess, c)
		if err := overlay.Sync(ctx); err != nil {
			return nil, fmt.Errorf("load favorites: %w", err)
		}
	}

	title, kind := "Animescope", "browse"
	src := c.BrowseSource(q)
	if b.Favorites {
		title, kind = "Animescope - Favorites", "favorites"
		src = c.FavoritesSource(q)
	}
	if q.EffectiveQuery() != "" {
		title += fmt.Sprintf(" - %q", q.EffectiveQuery())
	}

	return tui.New(tui.Options{
		Title:   title,
		Source:  src,
		Config:  paginate.Config{Kind: kind, ChunkSize: b.ChunkSize},
		Overlay: overlay,
		Details: c.Details,
	}), nil
}
