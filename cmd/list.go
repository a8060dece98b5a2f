package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zjrosen/dockyard/internal/app"
	"github.com/zjrosen/dockyard/internal/config"
	"github.com/zjrosen/dockyard/internal/layouts/query"
	"github.com/zjrosen/dockyard/internal/log"
	"github.com/zjrosen/dockyard/internal/presentation"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List saved layouts",
	Long: `List saved layouts, filtered and sorted.

The view starts from the list section of the config. Flags override it for
this run; --save-view writes the overridden sort, kind and updated values
back to the config.

Sort keys: name-asc, name-desc, updated-asc, updated-desc, opened-asc, opened-desc
Kinds:     all, local, online
Updated:   all, today, yesterday, last7Days, last30Days, thisMonth, lastMonth, thisYear

Examples:
  dockyard list
  dockyard list --search ops --sort name-asc
  dockyard list --kind online --updated last7Days --save-view
  dockyard list --group`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var (
	listSearch   string
	listSort     string
	listKind     string
	listUpdated  string
	listGroup    bool
	listSaveView bool
)

func init() {
	listCmd.Flags().StringVarP(&listSearch, "search", "s", "", "only layouts whose name contains this text")
	listCmd.Flags().StringVar(&listSort, "sort", "", "sort key (default from config)")
	listCmd.Flags().StringVar(&listKind, "kind", "", "kind filter (default from config)")
	listCmd.Flags().StringVar(&listUpdated, "updated", "", "updated-time filter (default from config)")
	listCmd.Flags().BoolVarP(&listGroup, "group", "g", false, "show recent layouts, then local and online groups")
	listCmd.Flags().BoolVar(&listSaveView, "save-view", false, "save sort, kind and updated as the default view")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	view := cfg.List
	if cmd.Flags().Changed("sort") {
		view.Sort = listSort
	}
	if cmd.Flags().Changed("kind") {
		view.Kind = listKind
	}
	if cmd.Flags().Changed("updated") {
		view.Updated = listUpdated
	}
	q, err := view.Query()
	if err != nil {
		return err
	}
	q.Filter.Search = listSearch

	if listSaveView {
		if err := config.SaveListView(configPath(), view); err != nil {
			return fmt.Errorf("saving list view: %w", err)
		}
		log.Info(log.CatConfig, "list view saved", "sort", view.Sort, "kind", view.Kind, "updated", view.Updated)
	}

	return withSession(cmd, func(ctx context.Context, s *app.Session) error {
		now := clock()
		layouts := s.Registry.View(ctx, q, now)
		out := cmd.OutOrStdout()

		if jsonOutput {
			f := presentation.NewFormatter(out)
			if listGroup {
				return f.FormatGroups(presentation.FromGroups(s.Registry.RecentLayouts(), query.GroupByKind(layouts)))
			}
			return f.FormatLayouts(presentation.FromLayouts(layouts))
		}

		if listGroup {
			printSection(out, "RECENT", s.Registry.RecentLayouts(), now)
			for _, g := range query.GroupByKind(layouts) {
				printSection(out, strings.ToUpper(g.Kind.Display()), g.Layouts, now)
			}
			return nil
		}

		if len(layouts) == 0 {
			_, _ = fmt.Fprintln(out, "No layouts match.")
			return nil
		}
		_, _ = fmt.Fprintln(out, layoutTable(layouts, now))
		return nil
	})
}
