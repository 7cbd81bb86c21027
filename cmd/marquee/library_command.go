package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/library"
	"github.com/mmcdole/marquee/internal/tui/styles"
)

const titleWidth = 40

func newLibraryCommand(c *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "library [query]",
		Short: "List saved titles, or fuzzy-search them",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openLibrary(cmd, c)
			defer s.Close()
			if err != nil {
				return err
			}
			svc := library.NewService(s.Store, c.logger)
			out := cmd.OutOrStdout()

			if query := strings.Join(args, " "); query != "" {
				matches, err := svc.Search(cmd.Context(), query)
				if err != nil {
					return err
				}
				if len(matches) == 0 {
					fmt.Fprintln(out, styles.DimStyle.Render("no matches"))
				}
				for _, m := range matches {
					printTitle(out, m.Record, styles.HighlightMatches(m.Record.Title, m.MatchedIndexes))
				}
				return nil
			}

			recs, err := svc.Titles(cmd.Context())
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Fprintln(out, styles.DimStyle.Render("library is empty"))
			}
			for _, r := range recs {
				printTitle(out, r, styles.Truncate(r.Title, titleWidth))
			}
			return nil
		},
	}
}

func printTitle(out io.Writer, r *domain.LibraryRecord, title string) {
	fmt.Fprintf(out, "%s  %s  %s\n", title,
		styles.SubtitleStyle.Render(r.MediaType),
		styles.DimStyle.Render(r.ID.String()))
}

func newHistoryCommand(c *commandContext) *cobra.Command {
	var inProgress bool
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show watch progress, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openLibrary(cmd, c)
			defer s.Close()
			if err != nil {
				return err
			}
			svc := library.NewService(s.Store, c.logger)

			var recs []*domain.HistoryRecord
			if inProgress {
				recs, err = svc.ContinueWatching(cmd.Context(), limit)
			} else {
				recs, err = svc.History(cmd.Context())
				if limit > 0 && len(recs) > limit {
					recs = recs[:limit]
				}
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(recs) == 0 {
				fmt.Fprintln(out, styles.DimStyle.Render("nothing watched yet"))
			}
			for _, r := range recs {
				fmt.Fprintf(out, "%s %3.0f%%  %s\n",
					styles.RenderProgressBar(r.Fraction(), 20), r.Fraction()*100, historyLabel(r))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&inProgress, "in-progress", false, "Only started, unfinished items")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum entries to show (0 = all)")
	return cmd
}

func historyLabel(r *domain.HistoryRecord) string {
	title := r.Title
	if title == "" {
		title = r.ID.String()
	}
	if r.MediaType == domain.MediaKindTV && (r.Season > 0 || r.Episode > 0) {
		return fmt.Sprintf("%s S%02dE%02d", title, r.Season, r.Episode)
	}
	return title
}
