package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/dcmtk-tools/support-libs/internal/logger"
)

const (
	// defaultFileMode is used for entries that carry no permission bits.
	defaultFileMode os.FileMode = 0o644
	// defaultDirMode is used for directories created during extraction.
	defaultDirMode os.FileMode = 0o755
)

// ErrUnsafePath is returned for entries that would land outside the destination.
var ErrUnsafePath = errors.New("archive entry escapes destination")

// Extractor unpacks zip archives. The zero value is ready to use and safe
// for concurrent use.
type Extractor struct {
	// targets serialises writes to the same destination file.
	targets KeyedMutex
}

// NewExtractor creates an Extractor.
func NewExtractor() *Extractor {
	return new(Extractor)
}

// Extract unpacks every entry of archivePath into dest and returns the
// slash-separated names of the files written.
func (e *Extractor) Extract(ctx context.Context, archivePath, dest string) ([]string, error) {
	reader, err := zip.OpenReader(archivePath)
	if errors.Is(err, zip.ErrInsecurePath) {
		_ = reader.Close()

		return nil, fmt.Errorf("%s: %w", archivePath, ErrUnsafePath)
	}

	if err != nil {
		return nil, fmt.Errorf("open zip %s: %w", archivePath, err)
	}

	defer func() {
		_ = reader.Close()
	}()

	files := make([]string, 0, len(reader.File))

	for _, entry := range reader.File {
		if err = ctx.Err(); err != nil {
			return files, err
		}

		name := filepath.FromSlash(entry.Name)
		if !filepath.IsLocal(name) {
			return files, fmt.Errorf("%s: %w", entry.Name, ErrUnsafePath)
		}

		target := filepath.Join(dest, name)

		if entry.FileInfo().IsDir() {
			if err = os.MkdirAll(target, defaultDirMode); err != nil {
				return files, fmt.Errorf("create dir %s: %w", target, err)
			}

			continue
		}

		if err = e.install(entry, target); err != nil {
			return files, err
		}

		logger.DebugKV(ctx, "Extracted entry", "file", target)

		files = append(files, entry.Name)
	}

	return files, nil
}

// install writes a single entry to target while holding the target's lock.
func (e *Extractor) install(entry *zip.File, target string) (err error) {
	unlock := e.targets.Lock(target)
	defer unlock()

	if err = os.MkdirAll(filepath.Dir(target), defaultDirMode); err != nil {
		return fmt.Errorf("prepare file %s: %w", target, err)
	}

	created, err := ensureFile(target)
	if err != nil {
		return err
	}

	if created {
		defer func() {
			if err != nil {
				_ = os.Remove(target)
			}
		}()
	}

	rc, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open zip entry %s: %w", entry.Name, err)
	}

	defer func() {
		_ = rc.Close()
	}()

	mode := entry.Mode().Perm()
	if mode == 0 {
		mode = defaultFileMode
	}

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: mode,
	}

	if err = goupdate.Apply(rc, options); err != nil {
		return fmt.Errorf("write file %s: %w", target, err)
	}

	return nil
}

// ensureFile creates an empty target when none exists, since go-update
// swaps the existing file aside. It reports whether the file was created.
func ensureFile(target string) (bool, error) {
	_, err := os.Stat(target)
	if err == nil {
		return false, nil
	}

	if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat %s: %w", target, err)
	}

	placeholder, err := os.OpenFile(filepath.Clean(target), os.O_CREATE|os.O_WRONLY, defaultFileMode)
	if err != nil {
		return false, fmt.Errorf("create file %s: %w", target, err)
	}

	if err = placeholder.Close(); err != nil {
		_ = os.Remove(target)

		return false, fmt.Errorf("close file %s: %w", target, err)
	}

	return true, nil
}

// KeyedMutex hands out one mutex per file path. The zero value is ready
// to use.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Lock acquires the mutex guarding path and returns its release function.
func (k *KeyedMutex) Lock(path string) func() {
	key, err := filepath.Abs(path)
	if err != nil {
		key = filepath.Clean(path)
	}

	k.mu.Lock()

	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}

	m, ok := k.locks[key]
	if !ok {
		m = new(sync.Mutex)
		k.locks[key] = m
	}

	k.mu.Unlock()

	m.Lock()

	return m.Unlock
}
