package git

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dcmtk-tools/support-libs/internal/domain/supportlib"
)

// fakeRunner returns canned output and records the last invocation.
type fakeRunner struct {
	output []byte
	err    error

	dir     string
	command string
	args    []string
}

func (f *fakeRunner) Run(_ context.Context, dir, command string, args ...string) ([]byte, error) {
	f.dir = dir
	f.command = command
	f.args = args

	return f.output, f.err
}

// TestResolve_StripsPrefixAndNewline verifies DCMTK-3.6.7 becomes 3.6.7 / 367.
func TestResolve_StripsPrefixAndNewline(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{output: []byte("DCMTK-3.6.7\n")}

	release, err := NewResolver(runner, "/src/dcmtk", "", time.Second).Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, "3.6.7", release.Version)
	require.Equal(t, "367", release.Dotless())

	require.Equal(t, "/src/dcmtk", runner.dir)
	require.Equal(t, "git", runner.command)
	require.Equal(t, []string{"describe", "--tags", "--abbrev=0"}, runner.args)
}

// TestResolve_RunnerFailure ensures a missing tool or tag is fatal with no fallback.
func TestResolve_RunnerFailure(t *testing.T) {
	t.Parallel()

	cause := errors.New("fatal: No names found, cannot describe anything.")
	runner := &fakeRunner{err: cause}

	release, err := NewResolver(runner, ".", "", 0).Resolve(context.Background())
	require.ErrorIs(t, err, ErrResolveVersion)
	require.ErrorIs(t, err, cause)
	require.Empty(t, release.Version)
}

// TestResolve_UnparsableTag rejects tags without a numeric-dotted version.
func TestResolve_UnparsableTag(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{output: []byte("nightly\n")}

	_, err := NewResolver(runner, ".", "", 0).Resolve(context.Background())
	require.ErrorIs(t, err, ErrResolveVersion)
	require.ErrorIs(t, err, supportlib.ErrInvalidTag)
}

// TestResolve_RealGit runs against a throwaway repository when git is installed.
func TestResolve_RealGit(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git is not installed")
	}

	ctx := context.Background()
	dir := t.TempDir()
	runner := ExecRunner{}
	resolver := NewResolver(runner, dir, "", 10*time.Second)

	gitArgs := []string{
		"-c", "user.name=test", "-c", "user.email=test@example.com",
		"-c", "commit.gpgsign=false", "-c", "tag.gpgsign=false",
	}

	_, err := runner.Run(ctx, dir, "git", "init", "-q")
	require.NoError(t, err)

	// No tags yet.
	_, err = resolver.Resolve(ctx)
	require.ErrorIs(t, err, ErrResolveVersion)

	_, err = runner.Run(ctx, dir, "git", append(gitArgs, "commit", "-q", "--allow-empty", "-m", "init")...)
	require.NoError(t, err)

	_, err = runner.Run(ctx, dir, "git", append(gitArgs, "tag", "DCMTK-3.6.7")...)
	require.NoError(t, err)

	release, err := resolver.Resolve(ctx)
	require.NoError(t, err)
	require.Equal(t, "3.6.7", release.Version)
}
