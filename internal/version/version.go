package version

import (
	"runtime"
	"runtime/debug"
	"strings"
)

// shortCommitLen is how many characters of a VCS revision are shown.
const shortCommitLen = 12

// Values injected with -ldflags "-X". Empty values are filled from the
// module build info when the binary was built inside a git checkout.
var (
	// Version is the release of fetch-support-libs.
	Version = "0.1.0-dev"
	// Commit is the git revision the binary was built from.
	Commit = ""
	// BuildTime is the UTC build timestamp.
	BuildTime = ""
)

// Info describes the running binary.
type Info struct {
	Version   string
	Commit    string
	BuildTime string
	GoVersion string
	// Modified is set when the checkout had uncommitted changes.
	Modified bool
}

// Current returns the build description of the running binary.
func Current() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}

	build, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}

	for _, setting := range build.Settings {
		switch setting.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = setting.Value
			}
		case "vcs.time":
			if info.BuildTime == "" {
				info.BuildTime = setting.Value
			}
		case "vcs.modified":
			info.Modified = setting.Value == "true"
		}
	}

	return info
}

// String renders the info on one line, leaving out unknown parts.
func (i Info) String() string {
	var b strings.Builder

	b.WriteString("fetch-support-libs ")
	b.WriteString(i.Version)

	if i.Commit != "" {
		commit := i.Commit
		if len(commit) > shortCommitLen {
			commit = commit[:shortCommitLen]
		}

		b.WriteString(" (commit ")
		b.WriteString(commit)

		if i.Modified {
			b.WriteString(", modified")
		}

		b.WriteString(")")
	}

	if i.BuildTime != "" {
		b.WriteString(" built ")
		b.WriteString(i.BuildTime)
	}

	b.WriteString(" ")
	b.WriteString(i.GoVersion)

	return b.String()
}
