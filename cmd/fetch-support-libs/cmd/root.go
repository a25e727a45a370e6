package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dcmtk-tools/support-libs/internal/config"
	"github.com/dcmtk-tools/support-libs/internal/domain/supportlib"
	"github.com/dcmtk-tools/support-libs/internal/logger"
	"github.com/dcmtk-tools/support-libs/internal/service/fetcher"
	"github.com/dcmtk-tools/support-libs/internal/version"
)

var (
	_ pflag.Value = (*supportlib.Runtime)(nil)
	_ pflag.Value = (*supportlib.Conversion)(nil)
	_ pflag.Value = (*supportlib.Arch)(nil)
)

// runFunc executes a fetch with the parsed options.
type runFunc func(ctx context.Context, opts *fetcher.Options) error

// rootCmd represents the base command for fetching support libraries.
//
//nolint:gochecknoglobals // Required by Cobra CLI framework architecture.
var rootCmd = newRootCommand(run)

// Execute runs the fetch-support-libs CLI and exits with non-zero status on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCommand builds the root command; fn receives the parsed options.
func newRootCommand(fn runFunc) *cobra.Command {
	opts := &fetcher.Options{
		Runtime:    supportlib.DefaultRuntime,
		Conversion: supportlib.DefaultConversion,
		Arch:       supportlib.DefaultArch,
	}

	root := &cobra.Command{
		Use:   "fetch-support-libs",
		Short: "Download and unpack DCMTK Windows support libraries",
		Long: "Resolve the DCMTK release from the latest git tag, read the vendor's support library listing " +
			"and unpack every archive matching the requested runtime, conversion backend and architecture " +
			"into the output directory (settings: " + config.DefaultConfigFilename + ", or $" + config.ConfigPathEnv + ").",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return fn(ctx, opts)
		},
	}

	// Enumerated values are validated by the flag parser itself.
	root.Flags().VarP(&opts.Runtime, "runtime", "r", "C runtime linkage")
	root.Flags().VarP(&opts.Conversion, "conv", "c", "character conversion backend")
	root.Flags().VarP(&opts.Arch, "arch", "a", "target architecture")

	version.AttachCobraVersionCommand(root)

	return root
}

// run loads settings and performs the fetch.
func run(ctx context.Context, opts *fetcher.Options) error {
	defer logger.Sync()

	cfg, err := config.Load(config.Path())
	if err != nil {
		return err
	}

	if level, ok := logger.ParseLogLevel(cfg.LogLevel); ok {
		logger.SetLevel(level)
	}

	logger.DebugKV(ctx, "Starting", "build", version.Current().String())

	opts.Config = cfg

	_, err = fetcher.Run(ctx, opts)

	return err
}
