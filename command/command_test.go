package command

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRunnerMissingProgram(t *testing.T) {
	_, err := ExecRunner{}.Run(context.Background(), Cmd{Name: "catsync-definitely-not-installed"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotInstalled)
}

func TestExecRunnerCapturesOutputAndFailures(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()

	out, err := ExecRunner{}.Run(context.Background(), Cmd{
		Dir:  dir,
		Name: "sh",
		Args: []string{"-c", "pwd; echo $CATSYNC_TEST"},
		Env:  []string{"CATSYNC_TEST=yes"},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(string(out)), "yes"))
	assert.Contains(t, string(out), dir)

	_, err = ExecRunner{}.Run(context.Background(), Cmd{Name: "sh", Args: []string{"-c", "echo first >&2; echo boom >&2; exit 3"}})
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "want *ExitError, got %v", err)
	assert.Equal(t, 3, exitErr.Code)
	assert.Equal(t, "sh -c echo first >&2; echo boom >&2; exit 3: exit status 3: boom", exitErr.Error())
}

func TestRecorder(t *testing.T) {
	boom := errors.New("boom")
	r := &Recorder{
		Outputs: map[string]string{"git status --porcelain": " M a.po\n"},
		Errors:  map[string]error{"git push": boom},
	}

	out, err := r.Run(context.Background(), Cmd{Name: "git", Args: []string{"status", "--porcelain"}})
	require.NoError(t, err)
	assert.Equal(t, " M a.po\n", string(out))

	_, err = r.Run(context.Background(), Cmd{Name: "git", Args: []string{"push"}})
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, []string{"git status --porcelain", "git push"}, r.Lines())
}

func TestCmdMasksSecrets(t *testing.T) {
	c := Cmd{Name: "wlc", Args: []string{"--key", "wlu_1234567890", "lock", "weblate"}, Secrets: []string{"wlu_1234567890"}}
	assert.Equal(t, "wlc --key wlu_...7890 lock weblate", c.String())
	assert.Equal(t, []string{"wlc", "--key", "wlu_...7890", "lock", "weblate"}, c.Argv())
	assert.Equal(t, "wlu_1234567890", c.Args[1], "arguments passed to the program are untouched")
}

func TestExecRunnerKeepsSecretsOutOfErrorsAndLogs(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	const secret = "SECRET-API-KEY"

	var buf bytes.Buffer
	oldLogger, oldLevel := log.Logger, zerolog.GlobalLevel()
	log.Logger = zerolog.New(&buf)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() {
		log.Logger = oldLogger
		zerolog.SetGlobalLevel(oldLevel)
	})

	_, err := ExecRunner{}.Run(context.Background(), Cmd{
		Name:    "sh",
		Args:    []string{"-c", `echo "invalid key $1" >&2; exit 1`, "sh", secret},
		Secrets: []string{secret},
	})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), secret)
	assert.Contains(t, err.Error(), "SECR...-KEY")
	assert.NotContains(t, buf.String(), secret)
	assert.Contains(t, buf.String(), "running")
}
