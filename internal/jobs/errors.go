package jobs

import (
	"errors"
	"fmt"
)

// Sentinel errors for task operations.
// These can be checked with errors.Is().
var (
	ErrUnsupportedFile = errors.New("unsupported video file")
	ErrProfileNotFound = errors.New("profile not found")
	ErrProbe           = errors.New("failed to read media info")
	ErrEmptyBatch      = errors.New("no video files found to process")
	ErrBusy            = errors.New("a compression task is already running")
)

func unsupportedFileError(path, reason string) error {
	return fmt.Errorf("%w (%s): %s", ErrUnsupportedFile, reason, path)
}

func profileNotFoundError(name string) error {
	return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
}

func probeError(err error) error {
	return fmt.Errorf("%w: %w", ErrProbe, err)
}
