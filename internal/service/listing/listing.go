package listing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/dcmtk-tools/support-libs/internal/domain/supportlib"
	"github.com/dcmtk-tools/support-libs/internal/logger"
	"github.com/dcmtk-tools/support-libs/internal/service/common"
)

// ErrListing wraps every failure to fetch or parse the listing page.
var ErrListing = errors.New("fetch support library listing")

// URL expands the {dotless} and {version} placeholders of template.
func URL(template string, release supportlib.Release) (string, error) {
	expanded := strings.NewReplacer(
		"{dotless}", release.Dotless(),
		"{version}", release.Version,
	).Replace(template)

	if _, err := url.ParseRequestURI(expanded); err != nil {
		return "", fmt.Errorf("%w: listing url %q: %w", ErrListing, expanded, err)
	}

	return expanded, nil
}

// Fetcher downloads and parses the listing page.
type Fetcher struct {
	client  *common.Client
	minRows int
}

// NewFetcher creates a Fetcher. minRows is the table size threshold.
func NewFetcher(client *common.Client, minRows int) *Fetcher {
	return &Fetcher{
		client:  client,
		minRows: minRows,
	}
}

// Fetch requests listingURL and returns the matching archive URLs.
// An empty result is not an error, and neither is a non-2xx listing
// status: a release without published support libraries yields no links.
// Transport and HTML failures wrap ErrListing.
func (f *Fetcher) Fetch(ctx context.Context, listingURL string, sel supportlib.Selection) ([]string, error) {
	logger.InfoKV(ctx, "Fetching support library listing", "url", listingURL)

	response, err := f.client.Get(ctx, listingURL)
	if statusErr, ok := common.IsStatusError(err); ok {
		logger.WarnKV(ctx, "Listing unavailable", "url", listingURL, "status", statusErr.Status)

		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListing, err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	// Relative links are resolved against the final URL, after redirects.
	base := response.Request.URL

	links, err := Parse(response.Body, base, sel, f.minRows)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListing, err)
	}

	logger.InfoKV(ctx, "Listing parsed", "matches", len(links))

	return links, nil
}
