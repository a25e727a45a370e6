package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/dcmtk-tools/support-libs/internal/archive"
	"github.com/dcmtk-tools/support-libs/internal/logger"
	"github.com/dcmtk-tools/support-libs/internal/service/common"
)

// archiveFileMode is the permission of downloaded archives.
const archiveFileMode os.FileMode = 0o644

// errNoFileName is returned when a URL has no usable final path segment.
var errNoFileName = errors.New("unable to infer archive name from url")

// downloader fetches and unpacks archives into a single directory.
type downloader struct {
	client    *common.Client
	extractor *archive.Extractor
	// archives serialises tasks that map to the same local archive name.
	archives archive.KeyedMutex
	dest     string
	limit    int
}

// downloadAll runs one task per URL and waits for all of them.
// A limit of zero or less starts every task immediately.
func (d *downloader) downloadAll(ctx context.Context, urls []string) []Result {
	results := make([]Result, len(urls))

	// Tasks never return errors, so one failure does not cancel the others.
	var g errgroup.Group
	if d.limit > 0 {
		g.SetLimit(d.limit)
	}

	for i, rawURL := range urls {
		i, rawURL := i, rawURL

		g.Go(func() error {
			results[i] = d.download(ctx, rawURL)

			return nil
		})
	}

	_ = g.Wait()

	return results
}

// download fetches one archive, unpacks it into dest and removes it.
func (d *downloader) download(ctx context.Context, rawURL string) Result {
	result := Result{URL: rawURL}

	logger.Infof(ctx, "Downloading %s", rawURL)

	name, err := archiveName(rawURL)
	if err != nil {
		return markFailed(ctx, result, err)
	}

	result.File = name
	ctx = logger.WithKV(ctx, "archive", name)

	response, err := d.client.Get(ctx, rawURL)
	if statusErr, ok := common.IsStatusError(err); ok {
		logger.DebugKV(ctx, "Skipping archive", "url", rawURL, "status", statusErr.Status)

		result.Outcome = OutcomeSkipped
		result.StatusCode = statusErr.StatusCode

		return result
	}

	if err != nil {
		return markFailed(ctx, result, err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	archivePath := filepath.Join(d.dest, name)

	unlock := d.archives.Lock(archivePath)
	defer unlock()

	defer func() {
		if err := os.Remove(archivePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.WarnKV(ctx, "Unable to remove archive", "path", archivePath, "error", err)
		}
	}()

	if err = writeFile(archivePath, response.Body); err != nil {
		return markFailed(ctx, result, err)
	}

	entries, err := d.extractor.Extract(ctx, archivePath, d.dest)
	if err != nil {
		return markFailed(ctx, result, fmt.Errorf("extract %s: %w", name, err))
	}

	logger.InfoKV(ctx, "Extracted archive", "file", name, "entries", len(entries))

	result.Outcome = OutcomeExtracted
	result.Entries = entries

	return result
}

// markFailed marks result as failed with err and logs it.
func markFailed(ctx context.Context, result Result, err error) Result {
	logger.ErrorKV(ctx, "Download failed", "url", result.URL, "error", err)

	result.Outcome = OutcomeFailed
	result.Err = err

	return result
}

// writeFile stores the body at path, truncating any previous file.
func writeFile(path string, body io.Reader) error {
	out, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, archiveFileMode)
	if err != nil {
		return fmt.Errorf("create archive %s: %w", path, err)
	}

	if _, err = io.Copy(out, body); err != nil {
		_ = out.Close()

		return fmt.Errorf("write archive %s: %w", path, err)
	}

	if err = out.Close(); err != nil {
		return fmt.Errorf("close archive %s: %w", path, err)
	}

	return nil
}

// archiveName returns the final path segment of rawURL.
func archiveName(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse archive url: %w", err)
	}

	base := path.Base(parsed.Path)
	if base == "." || base == "/" || !filepath.IsLocal(base) {
		return "", fmt.Errorf("%s: %w", rawURL, errNoFileName)
	}

	return base, nil
}
