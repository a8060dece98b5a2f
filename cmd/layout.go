package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/zjrosen/dockyard/internal/app"
	"github.com/zjrosen/dockyard/internal/layouts/domain"
	"github.com/zjrosen/dockyard/internal/presentation"
)

// errNotFound is returned for keys that name no layout.
var errNotFound = errors.New("layout not found")

func lookup(s *app.Session, key string) (domain.Layout, error) {
	l, ok := s.Registry.Get(key)
	if !ok {
		return domain.Layout{}, fmt.Errorf("%s: %w", key, errNotFound)
	}
	return l, nil
}

var addCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Create a layout and print its key",
	Long: `Create an empty layout with both side panels shown.

Examples:
  dockyard add "Ops overview"
  dockyard add "Shared board" --kind online`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

var addKind string

var renameCmd = &cobra.Command{
	Use:   "rename KEY NAME",
	Short: "Rename a layout",
	Args:  cobra.ExactArgs(2),
	RunE:  runRename,
}

var removeCmd = &cobra.Command{
	Use:     "rm KEY...",
	Aliases: []string{"delete"},
	Short:   "Delete layouts",
	Args:    cobra.MinimumNArgs(1),
	RunE:    runRemove,
}

var duplicateCmd = &cobra.Command{
	Use:     "dup KEY",
	Aliases: []string{"duplicate"},
	Short:   "Copy a layout under a new key and print the key",
	Args:    cobra.ExactArgs(1),
	RunE:    runDuplicate,
}

var showCmd = &cobra.Command{
	Use:   "show KEY",
	Short: "Print every field of a layout",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var panelsCmd = &cobra.Command{
	Use:   "panels KEY LEFT RIGHT",
	Short: "Show or hide the side panels of a layout",
	Long: `Set the visibility of the left and right side panels.

Examples:
  dockyard panels 7c0e... true false
  dockyard panels 7c0e... false false`,
	Args: cobra.ExactArgs(3),
	RunE: runPanels,
}

var payloadCmd = &cobra.Command{
	Use:   "payload KEY FILE",
	Short: "Store a docking engine payload in a layout",
	Long: `Replace the opaque panel arrangement stored in a layout with the
contents of FILE. Use "-" to read standard input.`,
	Args: cobra.ExactArgs(2),
	RunE: runPayload,
}

func init() {
	addCmd.Flags().StringVarP(&addKind, "kind", "k", string(domain.KindLocal), "local or online")
	rootCmd.AddCommand(addCmd, renameCmd, removeCmd, duplicateCmd, showCmd, panelsCmd, payloadCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	kind := domain.Kind(addKind)
	if !kind.IsValid() {
		return fmt.Errorf("unknown kind %q (want local or online)", addKind)
	}
	return withSession(cmd, func(_ context.Context, s *app.Session) error {
		key := s.Registry.Add(args[0], kind)
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), key)
		return nil
	})
}

func runRename(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(_ context.Context, s *app.Session) error {
		if _, err := lookup(s, args[0]); err != nil {
			return err
		}
		s.Registry.Rename(args[0], args[1])
		return nil
	})
}

func runRemove(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(_ context.Context, s *app.Session) error {
		var missing []error
		for _, key := range args {
			if _, err := lookup(s, key); err != nil {
				missing = append(missing, err)
				continue
			}
			s.Registry.Delete(key)
		}
		return errors.Join(missing...)
	})
}

func runDuplicate(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(_ context.Context, s *app.Session) error {
		key, ok := s.Registry.Duplicate(args[0])
		if !ok {
			return fmt.Errorf("%s: %w", args[0], errNotFound)
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), key)
		return nil
	})
}

func runShow(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(_ context.Context, s *app.Session) error {
		l, err := lookup(s, args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return presentation.NewFormatter(cmd.OutOrStdout()).FormatLayout(presentation.FromLayout(l))
		}
		describeLayout(cmd.OutOrStdout(), l, clock())
		return nil
	})
}

func runPanels(cmd *cobra.Command, args []string) error {
	left, err := strconv.ParseBool(args[1])
	if err != nil {
		return fmt.Errorf("left panel: %w", err)
	}
	right, err := strconv.ParseBool(args[2])
	if err != nil {
		return fmt.Errorf("right panel: %w", err)
	}
	return withSession(cmd, func(_ context.Context, s *app.Session) error {
		if _, err := lookup(s, args[0]); err != nil {
			return err
		}
		s.Registry.SetPanelVisibility(args[0], left, right)
		return nil
	})
}

func runPayload(cmd *cobra.Command, args []string) error {
	var (
		data []byte
		err  error
	)
	if args[1] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[1])
	}
	if err != nil {
		return fmt.Errorf("reading payload: %w", err)
	}
	return withSession(cmd, func(_ context.Context, s *app.Session) error {
		if _, err := lookup(s, args[0]); err != nil {
			return err
		}
		s.Registry.SavePayload(args[0], string(data))
		return nil
	})
}
