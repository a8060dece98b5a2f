package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/dockyard/internal/app"
	"github.com/zjrosen/dockyard/internal/layouts/snapshot"
	"github.com/zjrosen/dockyard/internal/presentation"
)

var fixedNow = time.Date(2024, time.March, 14, 15, 9, 26, 0, time.UTC)

// newConfig writes a config file into a fresh directory and returns its
// path. Layouts are stored next to it.
func newConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	prev := clock
	clock = func() time.Time { return fixedNow }
	t.Cleanup(func() { clock = prev })
	return path
}

// resetFlags puts every flag back to its default so one test's flags do not
// leak into the next Execute.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func run(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, cfgPath string, args ...string) string {
	t.Helper()
	out, err := run(t, cfgPath, args...)
	require.NoError(t, err, out)
	return out
}

func addLayout(t *testing.T, cfgPath, name string, extra ...string) string {
	t.Helper()
	out := mustRun(t, cfgPath, append([]string{"add", name}, extra...)...)
	key := strings.TrimSpace(out)
	require.Len(t, key, 36, "add prints a uuid key")
	return key
}

func TestAddListShow(t *testing.T) {
	cfgPath := newConfig(t, "")

	key := addLayout(t, cfgPath, "Ops overview")

	out := mustRun(t, cfgPath, "list")
	require.Contains(t, out, key)
	require.Contains(t, out, "Ops overview")
	require.Contains(t, out, "Local")
	require.Contains(t, out, "never")

	out = mustRun(t, cfgPath, "show", key)
	require.Contains(t, out, "Name:     Ops overview")
	require.Contains(t, out, "Opened:   never")
	require.Contains(t, out, "left=shown right=shown")

	_, err := os.Stat(filepath.Join(filepath.Dir(cfgPath), "layouts.json"))
	require.NoError(t, err, "state file is written next to the config")
}

func TestListEmpty(t *testing.T) {
	cfgPath := newConfig(t, "")

	out := mustRun(t, cfgPath, "list")
	require.Contains(t, out, "No layouts match.")
}

func TestRenameDuplicateRemove(t *testing.T) {
	cfgPath := newConfig(t, "")
	key := addLayout(t, cfgPath, "Ops")

	mustRun(t, cfgPath, "rename", key, "Ops v2")
	require.Contains(t, mustRun(t, cfgPath, "show", key), "Name:     Ops v2")

	dup := strings.TrimSpace(mustRun(t, cfgPath, "dup", key))
	require.NotEqual(t, key, dup)
	require.Contains(t, mustRun(t, cfgPath, "show", dup), "Name:     Ops v2 copy")

	mustRun(t, cfgPath, "rm", key)
	out := mustRun(t, cfgPath, "list")
	require.NotContains(t, out, key)
	require.Contains(t, out, dup)
}

func TestMissingKeyErrors(t *testing.T) {
	cfgPath := newConfig(t, "")

	for _, args := range [][]string{
		{"rm", "nope"},
		{"rename", "nope", "x"},
		{"dup", "nope"},
		{"show", "nope"},
		{"export", "nope"},
		{"panels", "nope", "true", "true"},
	} {
		_, err := run(t, cfgPath, args...)
		require.ErrorIs(t, err, errNotFound, "%v", args)
	}
}

func TestAddRejectsUnknownKind(t *testing.T) {
	cfgPath := newConfig(t, "")

	_, err := run(t, cfgPath, "add", "Board", "--kind", "remote")
	require.ErrorContains(t, err, "unknown kind")
}

func TestListFilters(t *testing.T) {
	cfgPath := newConfig(t, "")
	local := addLayout(t, cfgPath, "Alpha")
	online := addLayout(t, cfgPath, "Beta", "--kind", "online")

	out := mustRun(t, cfgPath, "list", "--kind", "online")
	require.Contains(t, out, online)
	require.NotContains(t, out, local)

	out = mustRun(t, cfgPath, "list", "--search", "ALP")
	require.Contains(t, out, local)
	require.NotContains(t, out, online)

	out = mustRun(t, cfgPath, "list", "--sort", "name-desc")
	require.Less(t, strings.Index(out, "Beta"), strings.Index(out, "Alpha"))

	_, err := run(t, cfgPath, "list", "--sort", "size")
	require.ErrorContains(t, err, "list.sort")
}

func TestListSaveView(t *testing.T) {
	cfgPath := newConfig(t, "# my settings\nsearch:\n  locale: en\n")
	local := addLayout(t, cfgPath, "Alpha")
	online := addLayout(t, cfgPath, "Beta", "--kind", "online")

	mustRun(t, cfgPath, "list", "--kind", "online", "--save-view")

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "kind: online")
	require.Contains(t, string(data), "locale: en")

	out := mustRun(t, cfgPath, "list")
	require.Contains(t, out, online)
	require.NotContains(t, out, local)
}

func TestListGroup(t *testing.T) {
	cfgPath := newConfig(t, "")
	local := addLayout(t, cfgPath, "Alpha")
	addLayout(t, cfgPath, "Beta", "--kind", "online")
	mustRun(t, cfgPath, "open", local)

	out := mustRun(t, cfgPath, "list", "--group")
	recent := strings.Index(out, "RECENT")
	localAt := strings.Index(out, "LOCAL")
	onlineAt := strings.Index(out, "ONLINE")
	require.GreaterOrEqual(t, recent, 0)
	require.Greater(t, localAt, recent)
	require.Greater(t, onlineAt, localAt)
}

func TestOpenCurrentRecent(t *testing.T) {
	cfgPath := newConfig(t, "")

	require.Contains(t, mustRun(t, cfgPath, "current"), "No layout has been opened.")
	require.Contains(t, mustRun(t, cfgPath, "recent"), "No layout has been opened.")

	first := addLayout(t, cfgPath, "First")
	second := addLayout(t, cfgPath, "Second")

	require.Equal(t, first+"\n", mustRun(t, cfgPath, "open", first))
	mustRun(t, cfgPath, "open", second)

	out := mustRun(t, cfgPath, "current")
	require.Contains(t, out, "Name:     Second")
	require.Contains(t, out, "Opened:   2024-03-14T15:09:26Z")

	out = mustRun(t, cfgPath, "recent")
	require.Less(t, strings.Index(out, second), strings.Index(out, first))
}

func TestOpenMissingCreatesDefault(t *testing.T) {
	cfgPath := newConfig(t, "")

	out := mustRun(t, cfgPath, "open", "does-not-exist")
	require.Contains(t, out, `(created "default")`)

	key := strings.Fields(out)[0]
	require.Contains(t, mustRun(t, cfgPath, "current"), "Key:      "+key)
}

func TestPanelsAndPayload(t *testing.T) {
	cfgPath := newConfig(t, "")
	key := addLayout(t, cfgPath, "Board")

	mustRun(t, cfgPath, "panels", key, "false", "true")

	payloadPath := filepath.Join(t.TempDir(), "payload.bin")
	require.NoError(t, os.WriteFile(payloadPath, []byte("hello"), 0o600))
	mustRun(t, cfgPath, "payload", key, payloadPath)

	out := mustRun(t, cfgPath, "show", key)
	require.Contains(t, out, "left=hidden right=shown")
	require.Contains(t, out, "Payload:  5 B")

	_, err := run(t, cfgPath, "panels", key, "maybe", "true")
	require.ErrorContains(t, err, "left panel")
}

func TestExportImport(t *testing.T) {
	cfgPath := newConfig(t, "")
	key := addLayout(t, cfgPath, "Shared")
	mustRun(t, cfgPath, "open", key)

	snapPath := filepath.Join(t.TempDir(), "shared.json")
	mustRun(t, cfgPath, "export", key, "-o", snapPath)

	data, err := os.ReadFile(snapPath)
	require.NoError(t, err)
	l, err := snapshot.Decode(string(data))
	require.NoError(t, err)
	require.Equal(t, "Shared", l.Name)

	stdout := mustRun(t, cfgPath, "export", key)
	require.Equal(t, string(data), stdout)

	out := mustRun(t, cfgPath, "import", snapPath)
	require.Contains(t, out, snapPath+" -> ")
	imported := strings.TrimSpace(strings.SplitN(out, "-> ", 2)[1])
	require.NotEqual(t, key, imported)

	show := mustRun(t, cfgPath, "show", imported)
	require.Contains(t, show, "Name:     Shared")
	require.Contains(t, show, "Opened:   never")
}

func TestImportErrors(t *testing.T) {
	cfgPath := newConfig(t, "")

	_, err := run(t, cfgPath, "import")
	require.ErrorContains(t, err, "nothing to import")

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"json":null}`), 0o600))
	_, err = run(t, cfgPath, "import", bad)
	require.ErrorIs(t, err, app.ErrImportFailed)

	require.Contains(t, mustRun(t, cfgPath, "list"), "No layouts match.")
}

func TestImport_PartialFailureKeepsImported(t *testing.T) {
	cfgPath := newConfig(t, "")
	key := addLayout(t, cfgPath, "Shared")

	good := filepath.Join(t.TempDir(), "good.json")
	mustRun(t, cfgPath, "export", key, "-o", good)
	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("not a snapshot"), 0o600))

	out, err := run(t, cfgPath, "import", good, bad)
	require.ErrorIs(t, err, app.ErrImportFailed)
	require.Contains(t, out, good+" -> ")
	imported := strings.TrimSpace(strings.SplitN(strings.SplitN(out, good+" -> ", 2)[1], "\n", 2)[0])
	require.Len(t, imported, 36)

	require.Contains(t, mustRun(t, cfgPath, "show", imported), "Name:     Shared")
}

func TestRemove_PartialFailureKeepsDeletions(t *testing.T) {
	cfgPath := newConfig(t, "")
	doomed := addLayout(t, cfgPath, "Doomed")
	kept := addLayout(t, cfgPath, "Kept")

	_, err := run(t, cfgPath, "rm", doomed, "missing-key")
	require.ErrorIs(t, err, errNotFound)
	require.ErrorContains(t, err, "missing-key")

	out := mustRun(t, cfgPath, "list")
	require.NotContains(t, out, doomed)
	require.Contains(t, out, kept)
}

func TestDiff(t *testing.T) {
	cfgPath := newConfig(t, "")
	key := addLayout(t, cfgPath, "Ops")

	before := filepath.Join(t.TempDir(), "before.json")
	mustRun(t, cfgPath, "export", key, "-o", before)

	require.Contains(t, mustRun(t, cfgPath, "diff", before, key), "Snapshots are identical.")

	mustRun(t, cfgPath, "rename", key, "Ops v2")
	out := mustRun(t, cfgPath, "diff", before, key)
	require.Contains(t, out, "--- "+before)
	require.Contains(t, out, "+++ "+key)
	require.Contains(t, out, `-    "name": "Ops",`)
	require.Contains(t, out, `+    "name": "Ops v2",`)
	require.Contains(t, out, `     "kind": "local",`)

	_, err := run(t, cfgPath, "diff", before, "missing")
	require.ErrorContains(t, err, "neither a snapshot file nor a layout key")
}

func TestSQLiteBackend(t *testing.T) {
	cfgPath := newConfig(t, "store:\n  backend: sqlite\n")
	key := addLayout(t, cfgPath, "Stored in sqlite")

	require.Contains(t, mustRun(t, cfgPath, "list"), key)

	_, err := os.Stat(filepath.Join(filepath.Dir(cfgPath), "layouts.db"))
	require.NoError(t, err)
}

func TestMissingConfigIsCreated(t *testing.T) {
	prev := clock
	clock = func() time.Time { return fixedNow }
	t.Cleanup(func() { clock = prev })

	cfgPath := filepath.Join(t.TempDir(), "nested", "config.yaml")
	mustRun(t, cfgPath, "list")

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "# Dockyard Configuration")
}

func TestInvalidConfig(t *testing.T) {
	cfgPath := newConfig(t, "store:\n  backend: floppy\n")

	_, err := run(t, cfgPath, "list")
	require.ErrorContains(t, err, "store.backend")
}

func TestJSONOutput(t *testing.T) {
	cfgPath := newConfig(t, "")
	key := addLayout(t, cfgPath, "Board")

	require.Equal(t, "[]\n", mustRun(t, cfgPath, "recent", "--json"))
	require.Equal(t, "null\n", mustRun(t, cfgPath, "current", "--json"))

	var listed []presentation.LayoutDTO
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, cfgPath, "list", "--json")), &listed))
	require.Len(t, listed, 1)
	require.Equal(t, key, listed[0].Key)
	require.Equal(t, "local", listed[0].Kind)
	require.Equal(t, fixedNow, listed[0].LastUpdated)

	mustRun(t, cfgPath, "open", key)
	var shown presentation.LayoutDTO
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, cfgPath, "show", key, "--json")), &shown))
	require.NotNil(t, shown.LastOpened)

	var groups []presentation.GroupDTO
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, cfgPath, "list", "--group", "--json")), &groups))
	require.Equal(t, "recent", groups[0].Title)
	require.Equal(t, key, groups[0].Layouts[0].Key)
}
