package cli

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fssbcheck/internal/harness"
	"github.com/roach88/fssbcheck/internal/sandbox"
	"github.com/roach88/fssbcheck/internal/testutil"
)

type cliResult struct {
	stdout string
	stderr string
	err    error
	code   int
}

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvRoot, "")
	t.Setenv(EnvScenarios, "")
	t.Setenv(EnvDebug, "")
}

func runCLI(t *testing.T, opts *RootOptions, args ...string) cliResult {
	t.Helper()
	if opts == nil {
		opts = &RootOptions{}
	}
	cmd := newRootCommand(opts)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{}, args...))
	err := cmd.Execute()
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), err: err, code: GetExitCode(err)}
}

func newGolden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestRoot_NoArgsPrintsUsage(t *testing.T) {
	clearEnv(t)

	res := runCLI(t, nil)

	assert.Equal(t, ExitCommandError, res.code)
	var usage *UsageError
	require.True(t, errors.As(res.err, &usage))
	assert.Empty(t, usage.Args)
	newGolden(t).Assert(t, "usage", []byte(res.stdout))
}

func TestRoot_OneArgPrintsUsage(t *testing.T) {
	clearEnv(t)

	res := runCLI(t, nil, "verify")

	assert.Equal(t, ExitCommandError, res.code)
	assert.Equal(t, usageText, res.stdout)
	assert.EqualError(t, res.err, `invalid usage: missing <test> after phase "verify"`)
}

func TestRoot_InvalidPhaseBeforeFilesystem(t *testing.T) {
	clearEnv(t)
	missing := filepath.Join(t.TempDir(), "missing")

	// Neither the scratch root nor the scenario directory exist; the phase
	// error must win because nothing is read before it is checked.
	res := runCLI(t, nil, "--root", missing, "--scenarios", missing, "run", "save_empty_file")

	assert.Equal(t, ExitCommandError, res.code)
	var invalid *harness.InvalidPhaseError
	require.True(t, errors.As(res.err, &invalid))
	assert.Equal(t, "run", invalid.Phase)
	assert.Empty(t, res.stdout)
}

func TestRoot_UnknownTest(t *testing.T) {
	clearEnv(t)

	res := runCLI(t, nil, "--root", t.TempDir(), "exercise", "no_such_test")

	assert.Equal(t, ExitCommandError, res.code)
	var unknown *harness.UnknownTestError
	require.True(t, errors.As(res.err, &unknown))
	assert.Empty(t, res.stdout)
}

func TestRoot_VerifyWithoutSandbox(t *testing.T) {
	clearEnv(t)

	res := runCLI(t, nil, "--root", t.TempDir(), "verify", "no_syscalls")

	assert.Equal(t, ExitCommandError, res.code)
	assert.ErrorIs(t, res.err, sandbox.ErrNoSandboxFound)
}

func TestRoot_ScenarioA_SaveEmptyFile(t *testing.T) {
	clearEnv(t)
	root := testutil.NewRoot(t)
	chdir(t, t.TempDir())

	res := runCLI(t, nil, "--root", root.Dir, "--no-color", "exercise", "save_empty_file")
	require.NoError(t, res.err)
	assert.Equal(t, "Launching exercise on save_empty_file\n", res.stdout)

	info, err := os.Stat("save_empty_file")
	require.NoError(t, err)
	assert.Zero(t, info.Size())

	root.Next(t).Create("save_empty_file", nil)

	res = runCLI(t, nil, "--root", root.Dir, "--no-color", "verify", "save_empty_file")
	require.NoError(t, res.err)
	lines := strings.Split(strings.TrimRight(res.stdout, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Launching verify on save_empty_file", lines[0])
	for _, line := range lines[1:] {
		assert.Regexp(t, `^Assert in line \d+ passed: save_empty_file$`, line)
	}
}

func TestRoot_ScenarioB_NoSyscalls(t *testing.T) {
	clearEnv(t)
	root := testutil.NewRoot(t)
	root.Next(t)

	res := runCLI(t, nil, "--root", root.Dir, "verify", "no_syscalls")

	require.NoError(t, res.err)
	assert.Equal(t, ExitSuccess, res.code)
	assert.Contains(t, res.stdout, "Launching verify on no_syscalls\n")
	assert.Contains(t, res.stdout, "passed: no_syscalls")
}

func TestRoot_FailedAssertionsExitZero(t *testing.T) {
	clearEnv(t)
	root := testutil.NewRoot(t)
	root.Next(t).Create("stray", nil)

	res := runCLI(t, nil, "--root", root.Dir, "verify", "no_syscalls")

	assert.NoError(t, res.err)
	assert.Equal(t, ExitSuccess, res.code)
	assert.Contains(t, res.stdout, "failed: no_syscalls")
}

func TestRoot_BehaviorErrorExitsOne(t *testing.T) {
	clearEnv(t)
	reg := harness.NewRegistry()
	require.NoError(t, reg.Register(harness.TestCase{
		Name: "broken",
		Exercise: func(ctx context.Context, logger *slog.Logger) error {
			return errors.New("disk on fire")
		},
		Verify: func(ctx context.Context, c *harness.Checker) error { return nil },
	}))

	res := runCLI(t, &RootOptions{Registry: reg}, "exercise", "broken")

	assert.Equal(t, ExitFailure, res.code)
	assert.EqualError(t, res.err, "phase failed: exercise broken: disk on fire")
	assert.Equal(t, "Launching exercise on broken\n", res.stdout)
}

func TestRoot_CustomPrefix(t *testing.T) {
	clearEnv(t)
	root := testutil.NewRoot(t)
	root.Prefix = "box"
	root.Next(t)

	res := runCLI(t, nil, "--root", root.Dir, "--prefix", "box", "verify", "no_syscalls")
	assert.NoError(t, res.err)

	res = runCLI(t, nil, "--root", root.Dir, "verify", "no_syscalls")
	assert.ErrorIs(t, res.err, sandbox.ErrNoSandboxFound)
}

func TestRoot_RootFromEnvironment(t *testing.T) {
	clearEnv(t)
	root := testutil.NewRoot(t)
	root.Next(t)
	t.Setenv(EnvRoot, root.Dir)

	res := runCLI(t, nil, "verify", "no_syscalls")

	assert.NoError(t, res.err)
}

func TestRoot_ScenarioDirectory(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.yaml"), []byte(`name: save_hello
description: Saving a small file records one entry
exercise:
  - create: hello.txt
    content: "hello\n"
verify:
  - manifest: [hello.txt]
  - artifact: hello.txt
    content: "hello\n"
`), 0o644))

	root := testutil.NewRoot(t)
	root.Next(t).Create("hello.txt", []byte("hello\n"))

	res := runCLI(t, nil, "--root", root.Dir, "--scenarios", dir, "verify", "save_hello")

	require.NoError(t, res.err)
	assert.Equal(t,
		"Launching verify on save_hello\n"+
			"Assert in line 7 passed: save_hello\n"+
			"Assert in line 8 passed: save_hello\n",
		res.stdout)
}

func TestRoot_BadScenarioExitsTwo(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("name: bad\ndescription: d\nverify:\n  - nonsense: 1\n"), 0o644))

	res := runCLI(t, nil, "--root", t.TempDir(), "--scenarios", dir, "verify", "bad")

	assert.Equal(t, ExitCommandError, res.code)
	var se *harness.ScenarioError
	assert.True(t, errors.As(res.err, &se))
	assert.Empty(t, res.stdout)
}

func TestRoot_ScenarioShadowingBuiltinExitsTwo(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dup.yaml"), []byte("name: no_syscalls\ndescription: d\nverify:\n  - manifest: []\n"), 0o644))

	res := runCLI(t, nil, "--scenarios", dir, "--list")

	assert.Equal(t, ExitCommandError, res.code)
	var dup *harness.DuplicateTestError
	assert.True(t, errors.As(res.err, &dup))
}

func TestRoot_ListText(t *testing.T) {
	clearEnv(t)

	res := runCLI(t, nil, "--list")

	require.NoError(t, res.err)
	newGolden(t).Assert(t, "list_text", []byte(res.stdout))
}

func TestRoot_ListJSON(t *testing.T) {
	clearEnv(t)

	res := runCLI(t, &RootOptions{RunID: "test-run"}, "--list", "--format", "json")

	require.NoError(t, res.err)
	newGolden(t).Assert(t, "list_json", []byte(res.stdout))
}

func TestRoot_InvalidFormat(t *testing.T) {
	clearEnv(t)

	res := runCLI(t, nil, "--list", "--format", "yaml")

	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.err.Error(), `invalid format "yaml"`)
}

func TestRoot_UnknownFlag(t *testing.T) {
	clearEnv(t)

	res := runCLI(t, nil, "--bogus", "verify", "no_syscalls")

	assert.Equal(t, ExitCommandError, res.code)
	assert.Equal(t, usageText, res.stdout)
}

func TestRoot_VerboseLogsRunID(t *testing.T) {
	clearEnv(t)
	root := testutil.NewRoot(t)
	root.Next(t)

	res := runCLI(t, &RootOptions{RunID: "run-1234"}, "--root", root.Dir, "-v", "verify", "no_syscalls")

	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "level=DEBUG")
	assert.Contains(t, res.stderr, "run_id=run-1234")
	assert.Contains(t, res.stderr, "msg=dispatching")
	// Logs never leak into the status stream.
	assert.NotContains(t, res.stdout, "run_id")
}

func TestRoot_DebugFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvDebug, "1")
	root := testutil.NewRoot(t)
	root.Next(t)

	res := runCLI(t, nil, "--root", root.Dir, "verify", "no_syscalls")

	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "level=DEBUG")
}

func TestRoot_QuietByDefault(t *testing.T) {
	clearEnv(t)
	root := testutil.NewRoot(t)
	root.Next(t)

	res := runCLI(t, nil, "--root", root.Dir, "verify", "no_syscalls")

	require.NoError(t, res.err)
	assert.Empty(t, res.stderr)
}

func TestRoot_ExtraArgumentsIgnored(t *testing.T) {
	clearEnv(t)
	root := testutil.NewRoot(t)
	root.Next(t)

	res := runCLI(t, nil, "--root", root.Dir, "verify", "no_syscalls", "extra")

	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "ignoring extra arguments")
}

func TestExecute_ReportsErrorAndCode(t *testing.T) {
	clearEnv(t)
	var stdout, stderr bytes.Buffer

	code := Execute(context.Background(), nil, &stdout, &stderr)

	assert.Equal(t, ExitCommandError, code)
	assert.Equal(t, usageText, stdout.String())
	assert.Equal(t, "fssbcheck: invalid usage: missing <phase> and <test>\n", stderr.String())
}

func TestExecute_Success(t *testing.T) {
	clearEnv(t)
	root := testutil.NewRoot(t)
	root.Next(t)
	var stdout, stderr bytes.Buffer

	code := Execute(context.Background(), []string{"--root", root.Dir, "verify", "no_syscalls"}, &stdout, &stderr)

	assert.Equal(t, ExitSuccess, code)
	assert.Empty(t, stderr.String())
}
