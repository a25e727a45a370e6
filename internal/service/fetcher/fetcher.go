package fetcher

import (
	"context"
	"fmt"
	"os"

	"github.com/dcmtk-tools/support-libs/internal/archive"
	"github.com/dcmtk-tools/support-libs/internal/config"
	"github.com/dcmtk-tools/support-libs/internal/domain/supportlib"
	"github.com/dcmtk-tools/support-libs/internal/logger"
	"github.com/dcmtk-tools/support-libs/internal/repository/git"
	"github.com/dcmtk-tools/support-libs/internal/service/common"
	"github.com/dcmtk-tools/support-libs/internal/service/listing"
)

// outputDirMode is used when the output directory has to be created.
const outputDirMode os.FileMode = 0o755

// Options are inputs accepted by the fetcher entry point.
type Options struct {
	// ConfigPath is the settings file read when Config is nil.
	ConfigPath string
	// Config overrides the settings file.
	Config *config.Config
	// Runtime is the C runtime linkage of the wanted archives.
	Runtime supportlib.Runtime
	// Conversion is the character conversion backend of the wanted archives.
	Conversion supportlib.Conversion
	// Arch is the architecture of the wanted archives.
	Arch supportlib.Arch
	// Runner executes git; nil uses os/exec.
	Runner git.Runner
}

// runner holds the collaborators of a single fetch execution.
type runner struct {
	cfg      *config.Config
	opts     *Options
	resolver *git.Resolver
	listing  *listing.Fetcher
	download *downloader
}

// Run executes a full fetch and returns the per-download report. Errors are
// returned only for stages that abort the whole run; failed downloads are
// logged and reported in the Report.
func Run(ctx context.Context, opts *Options) (*Report, error) {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "fetch-support-libs")

	r, err := newRunner(opts)
	if err != nil {
		return nil, err
	}

	if err = os.MkdirAll(r.cfg.OutputDir, outputDirMode); err != nil {
		return nil, fmt.Errorf("prepare output directory: %w", err)
	}

	releaseMarker, err := acquireMarker(ctx, r.cfg.OutputDir)
	if err != nil {
		return nil, err
	}

	defer releaseMarker()

	report, err := r.run(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Fetch failed", "error", err)

		return report, err
	}

	extracted, skipped, failed := report.Counts()
	logger.InfoKV(ctx, "Fetch completed",
		"release", report.Release.Version,
		"extracted", extracted,
		"skipped", skipped,
		"failed", failed)

	return report, nil
}

// newRunner loads settings and wires the collaborators.
func newRunner(opts *Options) (*runner, error) {
	if opts == nil {
		opts = new(Options)
	}

	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load configuration: %w", err)
		}

		cfg = loaded
	} else if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	listingClient := common.NewClient(
		common.WithTimeout(cfg.ListingTimeout),
		common.WithUserAgent(cfg.UserAgent),
	)

	downloadClient := common.NewClient(
		common.WithIdleTimeout(cfg.DownloadTimeout),
		common.WithUserAgent(cfg.UserAgent),
	)

	return &runner{
		cfg:      cfg,
		opts:     opts,
		resolver: git.NewResolver(opts.Runner, cfg.RepositoryDir, cfg.TagPrefix, cfg.VersionTimeout),
		listing:  listing.NewFetcher(listingClient, cfg.MinTableRows),
		download: &downloader{
			client:    downloadClient,
			extractor: archive.NewExtractor(),
			dest:      cfg.OutputDir,
			limit:     cfg.MaxConcurrentDownloads,
		},
	}, nil
}

// run performs the version, listing and download stages.
func (r *runner) run(ctx context.Context) (*Report, error) {
	release, err := r.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{Release: release}

	selection := supportlib.Selection{
		Release:    release,
		Runtime:    withDefault(r.opts.Runtime, supportlib.DefaultRuntime),
		Conversion: withDefault(r.opts.Conversion, supportlib.DefaultConversion),
		Arch:       withDefault(r.opts.Arch, supportlib.DefaultArch),
	}

	if err = selection.Validate(); err != nil {
		return report, err
	}

	logger.InfoKV(ctx, "Selecting support libraries",
		"version", release.Version,
		"runtime", selection.Runtime,
		"conversion", selection.Conversion,
		"arch", selection.Arch)

	report.ListingURL, err = listing.URL(r.cfg.ListingURL, release)
	if err != nil {
		return report, err
	}

	urls, err := r.listing.Fetch(ctx, report.ListingURL, selection)
	if err != nil {
		return report, err
	}

	if len(urls) == 0 {
		logger.Warnf(ctx, "No archives on %s match %v", report.ListingURL, selection.Needles())
	}

	report.Results = r.download.downloadAll(ctx, urls)

	return report, nil
}

// withDefault returns def for the zero value of v.
func withDefault[T ~string](v, def T) T {
	if v == "" {
		return def
	}

	return v
}
