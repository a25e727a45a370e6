package version

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// TestInfoString covers the optional parts of the rendered line.
func TestInfoString(t *testing.T) {
	t.Parallel()

	bare := Info{Version: "1.2.0", GoVersion: "go1.25.0"}
	require.Equal(t, "fetch-support-libs 1.2.0 go1.25.0", bare.String())

	full := Info{
		Version:   "1.2.0",
		Commit:    "0123456789abcdef0123",
		BuildTime: "2026-10-18T08:00:00Z",
		GoVersion: "go1.25.0",
		Modified:  true,
	}
	require.Equal(t,
		"fetch-support-libs 1.2.0 (commit 0123456789ab, modified) built 2026-10-18T08:00:00Z go1.25.0",
		full.String())
}

// TestCurrent keeps injected values and reports the toolchain.
func TestCurrent(t *testing.T) {
	t.Parallel()

	info := Current()
	require.Equal(t, Version, info.Version)
	require.NotEmpty(t, info.GoVersion)
}

// TestAttachCobraVersionCommand runs the subcommand and checks its output.
func TestAttachCobraVersionCommand(t *testing.T) {
	t.Parallel()

	root := &cobra.Command{Use: "fetch-support-libs"}
	AttachCobraVersionCommand(root)

	var out bytes.Buffer

	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	require.Equal(t, Current().String()+"\n", out.String())
}
