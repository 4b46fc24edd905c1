package main

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ansiRE = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiRE.ReplaceAllString(s, "")
}

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// execute runs the command tree in-process and returns its combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	cmd.SetContext(t.Context())

	err := cmd.Execute()
	return stripANSI(out.String()), err
}

// runCLI executes this package's cobra CLI in a helper subprocess so we can
// assert on the exit code.
func runCLI(t *testing.T, env []string, args ...string) (stdoutStderr string, exitCode int) {
	t.Helper()

	cmd := exec.Command(os.Args[0], append([]string{"-test.run=TestHelperProcess", "--"}, args...)...)
	cmd.Env = append(os.Environ(),
		"GO_WANT_HELPER_PROCESS=1",
		"NO_COLOR=1",
		"TERM=dumb",
	)
	cmd.Env = append(cmd.Env, env...)

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()

	if err == nil {
		return buf.String(), 0
	}

	if ee, ok := err.(*exec.ExitError); ok {
		return buf.String(), ee.ExitCode()
	}

	t.Fatalf("unexpected error running CLI: %v", err)
	return "", 0
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	// Args are: <testbin> -test.run=TestHelperProcess -- <cli args...>
	idx := -1
	for i, a := range os.Args {
		if a == "--" {
			idx = i
			break
		}
	}
	if idx == -1 {
		os.Exit(2)
	}

	rootCmd := newRootCmd()
	rootCmd.SetArgs(os.Args[idx+1:])
	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
	os.Exit(0)
}

func TestRootCommand_ExitCodes(t *testing.T) {
	root := t.TempDir()
	env := []string{"HOME=" + t.TempDir()}
	ledgerPath := filepath.Join(root, "state", "ledger.ini")
	archivePath := filepath.Join(root, "cloud", "links.tar.gz")
	require.NoError(t, os.MkdirAll(filepath.Dir(archivePath), 0o755))
	require.NoError(t, os.WriteFile(archivePath, nil, 0o644))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "missing directory",
			args: []string{"--dir", filepath.Join(root, "nope"), "--tar-file", archivePath, "--ledger", ledgerPath},
			want: "directory does not exist",
		},
		{
			name: "missing archive",
			args: []string{"--dir", root, "--tar-file", filepath.Join(t.TempDir(), "none.tar.gz"), "--ledger", ledgerPath},
			want: "archive file does not exist",
		},
		{
			name: "missing dir flag",
			args: []string{"--tar-file", archivePath},
			want: "`dir` is required",
		},
		{
			name: "archive inside directory",
			args: []string{"--dir", root, "--tar-file", archivePath},
			want: "archive must not live inside the link directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, code := runCLI(t, env, tt.args...)
			assert.Equal(t, 1, code, out)
			assert.Contains(t, stripANSI(out), tt.want)
		})
	}
}
