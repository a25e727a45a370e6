package git

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dcmtk-tools/support-libs/internal/domain/supportlib"
	"github.com/dcmtk-tools/support-libs/internal/logger"
)

// ErrResolveVersion wraps every failure to obtain the release from git.
var ErrResolveVersion = errors.New("resolve version from git")

// gitExecutable is the name of the git binary looked up in PATH.
const gitExecutable = "git"

// Resolver derives the DCMTK release from the latest git tag.
type Resolver struct {
	runner  Runner
	dir     string
	prefix  string
	timeout time.Duration
}

// NewResolver creates a resolver running git in dir. A nil runner uses
// ExecRunner, an empty prefix uses supportlib.DefaultTagPrefix, and a
// non-positive timeout leaves the subprocess bounded by ctx alone.
func NewResolver(runner Runner, dir, prefix string, timeout time.Duration) *Resolver {
	if runner == nil {
		runner = ExecRunner{}
	}

	if prefix == "" {
		prefix = supportlib.DefaultTagPrefix
	}

	return &Resolver{
		runner:  runner,
		dir:     dir,
		prefix:  prefix,
		timeout: timeout,
	}
}

// Resolve runs `git describe --tags --abbrev=0` and parses the tag.
// There is no fallback: a missing git binary or an untagged repository fails.
func (r *Resolver) Resolve(ctx context.Context) (supportlib.Release, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	output, err := r.runner.Run(ctx, r.dir, gitExecutable, "describe", "--tags", "--abbrev=0")
	if err != nil {
		return supportlib.Release{}, fmt.Errorf("%w: %w", ErrResolveVersion, err)
	}

	release, err := supportlib.ParseTag(string(output), r.prefix)
	if err != nil {
		return supportlib.Release{}, fmt.Errorf("%w: %w", ErrResolveVersion, err)
	}

	logger.DebugKV(ctx, "Resolved release from git tag", "version", release.Version, "dir", r.dir)

	return release, nil
}
