package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"github.com/zjrosen/dockyard/internal/app"
	"github.com/zjrosen/dockyard/internal/layouts/snapshot"
)

var exportCmd = &cobra.Command{
	Use:   "export KEY",
	Short: "Write a layout as a portable snapshot",
	Long: `Encode one layout as a snapshot that 'dockyard import' can read on any
machine. The snapshot goes to standard output unless --output is given.

Examples:
  dockyard export 7c0e... > ops.json
  dockyard export 7c0e... -o ops.json`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

var exportOutput string

var importCmd = &cobra.Command{
	Use:   "import [FILE...]",
	Short: "Add layouts from snapshot files",
	Long: `Add the layout in each snapshot file under a fresh key. Imported layouts
are local, updated now and never opened.

With --watch, keep running and import every *.json snapshot written into the
directory until interrupted.

Examples:
  dockyard import ops.json board.json
  dockyard import --watch ~/Downloads/layouts`,
	RunE: runImport,
}

var importWatchDir string

var diffCmd = &cobra.Command{
	Use:   "diff A B",
	Short: "Compare two snapshots",
	Long: `Show a line diff of two snapshots. Each argument is a snapshot file or the
key of a stored layout.

Examples:
  dockyard diff ops.json 7c0e...
  dockyard diff old.json new.json`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write the snapshot to this file")
	importCmd.Flags().StringVarP(&importWatchDir, "watch", "w", "", "watch this directory for dropped snapshots")
	rootCmd.AddCommand(exportCmd, importCmd, diffCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(_ context.Context, s *app.Session) error {
		if _, err := lookup(s, args[0]); err != nil {
			return err
		}
		text := s.Registry.ExportSnapshot(args[0])
		if exportOutput == "" {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		}
		if err := os.WriteFile(exportOutput, []byte(text+"\n"), 0o600); err != nil {
			return fmt.Errorf("writing snapshot: %w", err)
		}
		return nil
	})
}

func runImport(cmd *cobra.Command, args []string) error {
	if importWatchDir == "" && len(args) == 0 {
		return errors.New("nothing to import: give snapshot files or --watch DIR")
	}

	return withSession(cmd, func(ctx context.Context, s *app.Session) error {
		out := cmd.OutOrStdout()
		var failed []error
		for _, path := range args {
			key, err := s.ImportFile(path)
			if err != nil {
				failed = append(failed, err)
				continue
			}
			_, _ = fmt.Fprintf(out, "%s -> %s\n", path, key)
		}
		if importWatchDir == "" {
			return errors.Join(failed...)
		}

		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		_, _ = fmt.Fprintf(out, "Watching %s for snapshots (Ctrl-C to stop)\n", importWatchDir)
		err := s.WatchImports(ctx, importWatchDir, func(r app.ImportResult) {
			if r.Err != nil {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", r.Path, r.Err)
				return
			}
			_, _ = fmt.Fprintf(out, "%s -> %s\n", r.Path, r.Key)
		})
		return errors.Join(append(failed, err)...)
	})
}

func runDiff(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(_ context.Context, s *app.Session) error {
		left, err := readSnapshot(s, args[0])
		if err != nil {
			return err
		}
		right, err := readSnapshot(s, args[1])
		if err != nil {
			return err
		}
		writeDiff(cmd.OutOrStdout(), args[0], args[1], left, right)
		return nil
	})
}

// readSnapshot returns the indented snapshot held in the file at arg or,
// when there is no such file, the export of the layout keyed arg.
func readSnapshot(s *app.Session, arg string) (string, error) {
	var text string
	if data, err := os.ReadFile(arg); err == nil {
		text = string(data)
	} else if _, lookupErr := lookup(s, arg); lookupErr == nil {
		text = s.Registry.ExportSnapshot(arg)
	} else {
		return "", fmt.Errorf("%s is neither a snapshot file nor a layout key: %w", arg, err)
	}

	if _, err := snapshot.Decode(text); err != nil {
		return "", fmt.Errorf("%s: %w", arg, err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(strings.TrimSpace(text)), "", "  "); err != nil {
		return "", fmt.Errorf("%s: %w", arg, err)
	}
	buf.WriteByte('\n')
	return buf.String(), nil
}

// writeDiff prints a unified-style line diff of a and b.
func writeDiff(w io.Writer, nameA, nameB, a, b string) {
	dmp := diffmatchpatch.New()
	charsA, charsB, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(charsA, charsB, false), lines)

	changed := false
	for _, d := range diffs {
		if d.Type != diffmatchpatch.DiffEqual {
			changed = true
			break
		}
	}
	if !changed {
		_, _ = fmt.Fprintln(w, "Snapshots are identical.")
		return
	}

	_, _ = fmt.Fprintf(w, "--- %s\n+++ %s\n", nameA, nameB)
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			_, _ = fmt.Fprint(w, prefix, line)
			if !strings.HasSuffix(line, "\n") {
				_, _ = fmt.Fprintln(w)
			}
		}
	}
}
