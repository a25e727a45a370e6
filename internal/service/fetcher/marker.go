package fetcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/dcmtk-tools/support-libs/internal/logger"
)

// MarkerFilename marks an output directory as being written by a running fetch.
const MarkerFilename = ".dcmtk-support-libs.lock"

// markerFileMode is the permission of the marker file.
const markerFileMode os.FileMode = 0o644

// ErrAlreadyRunning is returned when another live process owns the marker.
var ErrAlreadyRunning = errors.New("another fetch is running in this directory")

// takeoverSuffix names the file guarding the replacement of a stale marker.
const takeoverSuffix = ".takeover"

// acquireMarker creates the marker in dir and returns a function removing it.
// A marker left behind by a process that no longer exists is replaced.
func acquireMarker(ctx context.Context, dir string) (func(), error) {
	path := filepath.Join(dir, MarkerFilename)

	for attempt := 0; ; attempt++ {
		err := createPIDFile(path)
		if err == nil {
			break
		}

		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create marker: %w", err)
		}

		// A second collision means another run won the takeover.
		if attempt > 0 {
			return nil, fmt.Errorf("%w (marker %s)", ErrAlreadyRunning, path)
		}

		owner, ok := readMarker(path)
		if !ok {
			continue
		}

		if err = takeOverStale(ctx, path, owner); err != nil {
			return nil, err
		}
	}

	return func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.WarnKV(ctx, "Unable to remove marker", "path", path, "error", err)
		}
	}, nil
}

// takeOverStale removes the marker at path if it still belongs to owner and
// owner is no longer alive. The check and the removal happen under the
// takeover lock, so a marker written meanwhile by another run is kept.
func takeOverStale(ctx context.Context, path string, owner int) error {
	alive, err := isProcessAlive(owner)
	if err != nil {
		return fmt.Errorf("check marker owner: %w", err)
	}

	if alive {
		return fmt.Errorf("%w (pid %d, marker %s)", ErrAlreadyRunning, owner, path)
	}

	unlock, err := lockTakeover(path + takeoverSuffix)
	if err != nil {
		return err
	}

	defer unlock()

	current, ok := readMarker(path)
	if !ok {
		return nil
	}

	if current != owner {
		return fmt.Errorf("%w (pid %d, marker %s)", ErrAlreadyRunning, current, path)
	}

	logger.InfoKV(ctx, "Removing stale marker", "path", path, "pid", owner)

	if err = os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale marker: %w", err)
	}

	return nil
}

// lockTakeover creates the takeover lock file. A lock left by a process that
// died mid-takeover is cleared once.
func lockTakeover(path string) (func(), error) {
	err := createPIDFile(path)
	if errors.Is(err, os.ErrExist) {
		holder, _ := readMarker(path)

		alive, aliveErr := isProcessAlive(holder)
		if aliveErr != nil {
			return nil, fmt.Errorf("check takeover owner: %w", aliveErr)
		}

		if alive {
			return nil, fmt.Errorf("%w (pid %d is replacing a stale marker)", ErrAlreadyRunning, holder)
		}

		_ = os.Remove(path)
		err = createPIDFile(path)
	}

	if errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("%w (stale marker is being replaced)", ErrAlreadyRunning)
	}

	if err != nil {
		return nil, fmt.Errorf("create takeover lock: %w", err)
	}

	return func() {
		_ = os.Remove(path)
	}, nil
}

// createPIDFile exclusively creates path holding the current PID. The file
// is written aside and linked into place, so readers never see it empty.
// It fails with os.ErrExist when path is already present.
func createPIDFile(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}

	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	_, err = tmp.WriteString(strconv.Itoa(os.Getpid()))
	if err == nil {
		err = tmp.Chmod(markerFileMode)
	}

	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}

	return os.Link(tmp.Name(), path)
}

// readMarker returns the PID stored in the marker. An unreadable or
// malformed marker is reported with pid 0, which is never alive.
func readMarker(path string) (int, bool) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return 0, !errors.Is(err, os.ErrNotExist)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil {
		return 0, true
	}

	return pid, true
}

// isProcessAlive reports whether a process with pid exists.
func isProcessAlive(pid int) (bool, error) {
	if pid <= 0 {
		return false, nil
	}

	process, err := ps.FindProcess(pid)
	if err != nil {
		return false, err
	}

	return process != nil, nil
}
