package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growthcore/internal/core"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// workspace writes a config backed by a sqlite file and a filesystem blob
// root inside a temp dir, and returns the config path.
func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := "storage:\n  driver: sqlite\n  sqlite_path: " + filepath.Join(dir, "growth.db") +
		"\nblob:\n  driver: fs\n  fs_root: " + filepath.Join(dir, "blobs") +
		"\nlog:\n  level: error\n"
	path := filepath.Join(dir, "growthcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func run(t *testing.T, cfgPath, stdin string, args ...string) (string, error) {
	t.Helper()
	out, _, err := runWithStderr(t, cfgPath, stdin, args...)
	return out, err
}

func runWithStderr(t *testing.T, cfgPath, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", cfgPath, "--deterministic-ids"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func mustRun(t *testing.T, cfgPath, stdin string, args ...string) string {
	t.Helper()
	out, err := run(t, cfgPath, stdin, args...)
	require.NoError(t, err, "growthctl %s", strings.Join(args, " "))
	return out
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "growthctl", cmd.Use)

	for _, name := range []string{"northstar", "objective", "strategy", "experiment", "explore", "board", "library", "tree", "project", "team"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, "command %s should exist", name)
		assert.Equal(t, name, sub.Name())
	}
	for _, flag := range []string{"config", "deterministic-ids", "strict", "verbose", "project", "metrics", "trace"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "missing flag %s", flag)
	}
}

func TestWorkflowAcrossInvocations(t *testing.T) {
	cfg := workspace(t)

	out := mustRun(t, cfg, "", "objective", "create", "Grow", "Revenue")
	assert.Contains(t, out, "Created objective obj-1: Grow Revenue")

	out = mustRun(t, cfg, "", "strategy", "create", "obj-1", "Pricing")
	assert.Contains(t, out, "Created strategy strat-2: Pricing")

	out = mustRun(t, cfg, "", "experiment", "create", "Annual plan discount",
		"--impact", "8", "--confidence", "5", "--ease", "10", "--strategy", "strat-2", "--stage", "revenue")
	assert.Contains(t, out, "exp-3")
	assert.Contains(t, out, "ICE 400")

	out = mustRun(t, cfg, "", "experiment", "ice", "exp-3", "confidence", "9")
	assert.Contains(t, out, "ICE 720")

	mustRun(t, cfg, "", "experiment", "status", "exp-3", "live", "testing")
	out = mustRun(t, cfg, "", "explore")
	assert.Contains(t, out, "Annual plan discount")
	out = mustRun(t, cfg, "", "board")
	assert.Contains(t, out, "Live Testing (1)")

	out = mustRun(t, cfg, "", "experiment", "finish", "exp-3", "winner", "--learnings", "Annual billing converts")
	assert.Contains(t, out, "Finished - Winner")
	assert.NotContains(t, mustRun(t, cfg, "", "explore"), "Annual plan discount")

	out = mustRun(t, cfg, "", "library", "--result", "winners")
	assert.Contains(t, out, "Annual billing converts")

	out = mustRun(t, cfg, "", "tree")
	assert.Contains(t, out, "obj-1")
	assert.Contains(t, out, "strat-2")
	assert.Contains(t, out, "exp-3")

	out = mustRun(t, cfg, "y\n", "objective", "delete", "obj-1")
	assert.Contains(t, out, "1 strategies removed, 1 experiments unlinked")

	out = mustRun(t, cfg, "", "experiment", "show", "exp-3")
	assert.Contains(t, out, "Annual plan discount")
	assert.NotContains(t, out, "Strategy:")

	out = mustRun(t, cfg, "", "objective", "create", "Next")
	assert.Contains(t, out, "obj-4", "sequence ids must continue after reload")
}

func TestNorthStarPromptAndSet(t *testing.T) {
	cfg := workspace(t)

	out := mustRun(t, cfg, "450000\n1,000,000\n", "northstar", "prompt")
	assert.Contains(t, out, "$450,000 / $1,000,000")
	assert.Contains(t, out, "45%")

	out = mustRun(t, cfg, "", "northstar", "prompt")
	assert.Contains(t, out, "Cancelled.")
	assert.Contains(t, mustRun(t, cfg, "", "northstar"), "45%")

	_, err := run(t, cfg, "lots\n", "northstar", "prompt")
	require.Error(t, err)

	out = mustRun(t, cfg, "", "ns", "set", "--name", "Signups", "--type", "count", "--current", "20", "--target", "10")
	assert.Contains(t, out, "Signups")
	assert.Contains(t, out, "100%")
}

func TestPromptCreateAndDecline(t *testing.T) {
	cfg := workspace(t)

	out := mustRun(t, cfg, "Reduce churn\n", "objective", "create")
	assert.Contains(t, out, "Created objective obj-1: Reduce churn")

	out = mustRun(t, cfg, "\n", "strategy", "create", "obj-1")
	assert.Contains(t, out, "Cancelled.")

	out = mustRun(t, cfg, "n\n", "objective", "delete", "obj-1")
	assert.Contains(t, out, "Cancelled.")
	assert.Contains(t, mustRun(t, cfg, "", "objective", "list"), "Reduce churn")

	out = mustRun(t, cfg, "", "objective", "delete", "obj-1", "--yes")
	assert.Contains(t, out, "Deleted objective obj-1")
	assert.Contains(t, mustRun(t, cfg, "", "objective", "list"), "No objectives found.")
}

func TestCommandErrors(t *testing.T) {
	cfg := workspace(t)

	_, err := run(t, cfg, "", "experiment", "create", "Bad", "--impact", "11")
	require.Error(t, err)

	_, err = run(t, cfg, "", "experiment", "status", "exp-404", "building")
	require.Error(t, err)

	_, err = run(t, cfg, "", "strategy", "create", "obj-404", "Orphan")
	require.Error(t, err)

	_, err = run(t, cfg, "", "library", "--result", "best")
	require.Error(t, err)

	out := mustRun(t, cfg, "", "experiment", "delete", "exp-404")
	assert.Contains(t, out, "nothing deleted")
}

func TestStrictFlag(t *testing.T) {
	cfg := workspace(t)
	mustRun(t, cfg, "", "experiment", "create", "Strict", "--status", "analysis")
	_, err := run(t, cfg, "", "--strict", "experiment", "status", "exp-1", "idea")
	require.Error(t, err)
	mustRun(t, cfg, "", "experiment", "status", "exp-1", "idea")
}

func TestAttachProof(t *testing.T) {
	cfg := workspace(t)
	mustRun(t, cfg, "", "experiment", "create", "Hero shot")
	img := filepath.Join(t.TempDir(), "variant.png")
	require.NoError(t, os.WriteFile(img, []byte("png"), 0o600))

	out := mustRun(t, cfg, "", "experiment", "attach", "exp-1", img)
	key := core.VisualProofKey("exp-1", "variant.png")
	assert.Contains(t, out, key)

	out = mustRun(t, cfg, "", "experiment", "proof-url", key)
	assert.Contains(t, out, key)
	assert.Contains(t, mustRun(t, cfg, "", "experiment", "show", "exp-1"), key)
}

func TestLinePrompter(t *testing.T) {
	var prompts bytes.Buffer
	p := newLinePrompter(strings.NewReader("typed\n\n"), &prompts)
	ctx := context.Background()

	v, ok, err := p.Prompt(ctx, core.PromptRequest{Kind: core.PromptText, Label: "Title"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "typed", v)

	v, ok, err = p.Prompt(ctx, core.PromptRequest{Kind: core.PromptNumber, Label: "Target", Default: "10"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "10", v)

	_, ok, err = p.Prompt(ctx, core.PromptRequest{Kind: core.PromptText, Label: "More"})
	require.NoError(t, err)
	assert.False(t, ok, "end of input cancels")
	assert.Contains(t, prompts.String(), "Target [10]: ")
}

func TestProjectsKeepSeparateWorkspaces(t *testing.T) {
	cfg := workspace(t)

	mustRun(t, cfg, "", "objective", "create", "Default", "goal")
	out := mustRun(t, cfg, "", "project", "create", "Dental", "Clinic", "--industry", "Health")
	assert.Contains(t, out, "Created project proj-2: Dental Clinic")

	out = mustRun(t, cfg, "", "team", "add", "Ana", "Ruiz", "--email", "ana@example.com", "--role", "lead")
	assert.Contains(t, out, "Added team member member-3: Ana Ruiz (Lead)")

	out = mustRun(t, cfg, "", "experiment", "create", "Welcome", "email")
	assert.Contains(t, out, "exp-4")
	assert.Contains(t, mustRun(t, cfg, "", "experiment", "show", "exp-4"), "Owner:      Ana Ruiz")
	assert.Contains(t, mustRun(t, cfg, "", "objective", "list"), "No objectives found.")

	assert.Contains(t, mustRun(t, cfg, "", "--project", "default", "objective", "list"), "Default goal")
	_, err := run(t, cfg, "", "--project", "proj-404", "objective", "list")
	require.Error(t, err)

	out = mustRun(t, cfg, "", "project", "list")
	assert.Contains(t, out, "* proj-2  Dental Clinic (Health)  1 members")
	assert.Contains(t, out, "  default")

	mustRun(t, cfg, "", "project", "use", "default")
	assert.Contains(t, mustRun(t, cfg, "", "objective", "list"), "Default goal")
	_, err = run(t, cfg, "", "experiment", "show", "exp-4")
	require.Error(t, err, "project experiments must not leak into the default workspace")
}

func TestTeamRosterCommands(t *testing.T) {
	cfg := workspace(t)

	mustRun(t, cfg, "", "team", "add", "Ana")
	mustRun(t, cfg, "", "team", "add", "Bo", "--role", "admin")
	_, err := run(t, cfg, "", "team", "add", "Cy", "--role", "owner")
	require.Error(t, err)

	out := mustRun(t, cfg, "", "experiment", "create", "Referral", "bonus", "--owner-id", "member-2")
	assert.Contains(t, out, "exp-3")
	assert.Contains(t, mustRun(t, cfg, "", "experiment", "show", "exp-3"), "Owner:      Bo")
	_, err = run(t, cfg, "", "experiment", "create", "Ghost", "--owner-id", "member-404")
	require.Error(t, err)

	mustRun(t, cfg, "", "experiment", "update", "exp-3", "--owner-id", "member-1")
	assert.Contains(t, mustRun(t, cfg, "", "experiment", "show", "exp-3"), "Owner:      Ana")

	out = mustRun(t, cfg, "", "team", "update", "member-1", "--name", "Ana Ruiz", "--role", "lead")
	assert.Contains(t, out, "Lead   Ana Ruiz")

	out = mustRun(t, cfg, "", "team", "list")
	assert.Contains(t, out, "member-1")
	assert.Contains(t, out, "member-2")

	assert.Contains(t, mustRun(t, cfg, "", "team", "remove", "member-2"), "Removed team member member-2")
	assert.Contains(t, mustRun(t, cfg, "", "team", "remove", "member-2"), "nothing removed")
	assert.NotContains(t, mustRun(t, cfg, "", "team", "list"), "member-2")
}

func TestMetricsAndTraceFlags(t *testing.T) {
	cfg := workspace(t)

	_, stderr, err := runWithStderr(t, cfg, "", "--metrics", "prometheus", "objective", "create", "Measured")
	require.NoError(t, err)
	assert.Contains(t, stderr, `growthcore_operations_total{operation="create_objective",status="success"} 1`)

	_, stderr, err = runWithStderr(t, cfg, "", "--metrics", "expvar", "objective", "list")
	require.NoError(t, err)
	assert.Contains(t, stderr, `"load_workspace"`)

	_, stderr, err = runWithStderr(t, cfg, "", "--trace", "objective", "create", "Traced")
	require.NoError(t, err)
	assert.Contains(t, stderr, `"operation":"create_objective"`)
	assert.Contains(t, stderr, `"status":"success"`)

	_, _, err = runWithStderr(t, cfg, "", "--metrics", "statsd", "objective", "list")
	require.Error(t, err)
}
