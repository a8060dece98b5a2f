package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/dockyard/internal/app"
	"github.com/zjrosen/dockyard/internal/presentation"
)

var openCmd = &cobra.Command{
	Use:   "open KEY",
	Short: "Mark a layout as opened",
	Long: `Mark a layout as the active one and move it to the front of the recent
list. When KEY names no layout, a local layout named "default" is created and
opened instead, and its key is printed.

Examples:
  dockyard open 7c0e...
  dockyard open "$(dockyard add Scratch)"`,
	Args: cobra.ExactArgs(1),
	RunE: runOpen,
}

var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "Print the most recently opened layout",
	Args:  cobra.NoArgs,
	RunE:  runCurrent,
}

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List recently opened layouts, newest first",
	Args:  cobra.NoArgs,
	RunE:  runRecent,
}

func init() {
	rootCmd.AddCommand(openCmd, currentCmd, recentCmd)
}

func runOpen(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(_ context.Context, s *app.Session) error {
		l, created := s.OpenOrCreate(args[0])
		out := cmd.OutOrStdout()
		if created {
			_, _ = fmt.Fprintf(out, "%s (created %q)\n", l.Key, l.Name)
			return nil
		}
		_, _ = fmt.Fprintln(out, l.Key)
		return nil
	})
}

func runCurrent(cmd *cobra.Command, _ []string) error {
	return withSession(cmd, func(_ context.Context, s *app.Session) error {
		l, ok := s.Registry.Current()
		if jsonOutput {
			if !ok {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "null")
				return nil
			}
			return presentation.NewFormatter(cmd.OutOrStdout()).FormatLayout(presentation.FromLayout(l))
		}
		if !ok {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No layout has been opened.")
			return nil
		}
		describeLayout(cmd.OutOrStdout(), l, clock())
		return nil
	})
}

func runRecent(cmd *cobra.Command, _ []string) error {
	return withSession(cmd, func(_ context.Context, s *app.Session) error {
		recent := s.Registry.RecentLayouts()
		if jsonOutput {
			return presentation.NewFormatter(cmd.OutOrStdout()).FormatLayouts(presentation.FromLayouts(recent))
		}
		if len(recent) == 0 {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No layout has been opened.")
			return nil
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), layoutTable(recent, clock()))
		return nil
	})
}
