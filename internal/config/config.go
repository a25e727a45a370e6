package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dcmtk-tools/support-libs/internal/domain/supportlib"
	"github.com/dcmtk-tools/support-libs/internal/logger"
)

// Config holds the tunables of a fetch run.
type Config struct {
	// ListingURL is the directory listing template; {dotless} and {version}
	// are replaced with the resolved release.
	ListingURL string `yaml:"listing_url"`
	// TagPrefix is stripped from the git tag to obtain the version.
	TagPrefix string `yaml:"tag_prefix"`
	// RepositoryDir is where git describe is executed.
	RepositoryDir string `yaml:"repository_dir"`
	// OutputDir receives the downloaded archives and their contents.
	OutputDir string `yaml:"output_dir"`
	// ListingTimeout bounds the listing page request.
	ListingTimeout time.Duration `yaml:"listing_timeout"`
	// DownloadTimeout bounds connecting and every stall of an archive
	// download; a transfer that keeps receiving data is not limited.
	DownloadTimeout time.Duration `yaml:"download_timeout"`
	// VersionTimeout bounds the git subprocess.
	VersionTimeout time.Duration `yaml:"version_timeout"`
	// MinTableRows is the row count below which listing tables are ignored.
	MinTableRows int `yaml:"min_table_rows"`
	// MaxConcurrentDownloads caps parallel downloads; zero means no cap.
	MaxConcurrentDownloads int `yaml:"max_concurrent_downloads"`
	// UserAgent is sent with every HTTP request when set.
	UserAgent string `yaml:"user_agent"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultConfigFilename is looked up in the working directory.
	DefaultConfigFilename = "dcmtk-support-libs.yaml"

	// ConfigPathEnv overrides DefaultConfigFilename.
	ConfigPathEnv = "DCMTK_SUPPORT_LIBS_CONFIG"

	// DefaultListingURL is the vendor's support library folder.
	DefaultListingURL = "https://dicom.offis.de/download/dcmtk/dcmtk{dotless}/support/"

	// DefaultListingTimeout bounds the listing fetch.
	DefaultListingTimeout = 30 * time.Second

	// DefaultDownloadTimeout is the idle limit of archive downloads.
	DefaultDownloadTimeout = 120 * time.Second

	// DefaultVersionTimeout bounds git describe.
	DefaultVersionTimeout = 10 * time.Second

	// DefaultMinTableRows skips navigation and footer tables on the listing page.
	DefaultMinTableRows = 20

	// DefaultFilePermissions is used when saving the config file.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errNegativeValue is returned for negative durations or counts.
	errNegativeValue = errors.New("value must not be negative")
	// errUnsupportedScheme is returned for listing URLs that are not http(s).
	errUnsupportedScheme = errors.New("unsupported URL scheme")
	// errUnknownLogLevel is returned for unparsable log levels.
	errUnknownLogLevel = errors.New("unknown log level")
)

// Default returns a configuration with every field set to its default.
func Default() *Config {
	cfg := new(Config)

	// Defaults always validate.
	_ = Validate(cfg)

	return cfg
}

// Path returns the config path from the environment or the default name.
func Path() string {
	if p := strings.TrimSpace(os.Getenv(ConfigPathEnv)); p != "" {
		return p
	}

	return DefaultConfigFilename
}

// Load reads configuration from path. A missing file yields defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes cfg to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks the provided settings.
//
//nolint:cyclop // Flat list of independent checks.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.ListingURL == "" {
		settings.ListingURL = DefaultListingURL
	}

	probe := strings.NewReplacer("{dotless}", "0", "{version}", "0").Replace(settings.ListingURL)
	if u, err := url.ParseRequestURI(probe); err != nil {
		return fmt.Errorf("invalid listing URL: %w", err)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("listing URL scheme %q: %w", u.Scheme, errUnsupportedScheme)
	}

	if settings.TagPrefix == "" {
		settings.TagPrefix = supportlib.DefaultTagPrefix
	}

	if settings.RepositoryDir == "" {
		settings.RepositoryDir = "."
	}

	if settings.OutputDir == "" {
		settings.OutputDir = "."
	}

	if settings.ListingTimeout < 0 || settings.DownloadTimeout < 0 || settings.VersionTimeout < 0 {
		return fmt.Errorf("timeouts: %w", errNegativeValue)
	}

	if settings.ListingTimeout == 0 {
		settings.ListingTimeout = DefaultListingTimeout
	}

	if settings.DownloadTimeout == 0 {
		settings.DownloadTimeout = DefaultDownloadTimeout
	}

	if settings.VersionTimeout == 0 {
		settings.VersionTimeout = DefaultVersionTimeout
	}

	if settings.MinTableRows < 0 || settings.MaxConcurrentDownloads < 0 {
		return fmt.Errorf("min_table_rows/max_concurrent_downloads: %w", errNegativeValue)
	}

	if settings.MinTableRows == 0 {
		settings.MinTableRows = DefaultMinTableRows
	}

	if _, ok := logger.ParseLogLevel(settings.LogLevel); !ok {
		return fmt.Errorf("%q: %w", settings.LogLevel, errUnknownLogLevel)
	}

	return nil
}
