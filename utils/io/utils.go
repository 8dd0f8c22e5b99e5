package io

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

const defaultBufioWriteSize = 1024 * 32

// FileExists returns true if a file (or directory) exists at the given path.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// SyncOnCloseRenameFile writes into a temporary file in the target's directory.
// Close flushes and fsyncs the temporary file and renames it to the target, so
// readers either see the complete file or none at all.
type SyncOnCloseRenameFile struct {
	logger     zerolog.Logger
	file       *os.File
	targetName string
	*bufio.Writer
}

// NewSyncOnCloseRenameFile creates the temporary file for writing `target`.
func NewSyncOnCloseRenameFile(target string, logger zerolog.Logger) (*SyncOnCloseRenameFile, error) {
	dir, name := filepath.Split(target)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create directory %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, fmt.Sprintf("writing-%v-*", name))
	if err != nil {
		return nil, fmt.Errorf("could not create temporary file for %s: %w", target, err)
	}

	return &SyncOnCloseRenameFile{
		logger:     logger,
		file:       tmpFile,
		targetName: target,
		Writer:     bufio.NewWriterSize(tmpFile, defaultBufioWriteSize),
	}, nil
}

// Close flushes, syncs and closes the temporary file and moves it into place.
// On any failure the temporary file is removed and the target is left untouched.
func (s *SyncOnCloseRenameFile) Close() error {
	defer func() {
		// no-op once the file was renamed
		_ = os.Remove(s.file.Name())
	}()

	err := s.Flush()
	if err != nil {
		_ = s.file.Close()
		return fmt.Errorf("cannot flush buffer: %w", err)
	}

	err = s.file.Sync()
	if err != nil {
		_ = s.file.Close()
		return fmt.Errorf("cannot sync file %s: %w", s.file.Name(), err)
	}

	err = s.file.Close()
	if err != nil {
		return fmt.Errorf("error while closing file %s: %w", s.file.Name(), err)
	}

	err = os.Rename(s.file.Name(), s.targetName)
	if err != nil {
		return fmt.Errorf("error renaming temporary file %s to %s: %w", s.file.Name(), s.targetName, err)
	}

	s.logger.Debug().Str("file", s.targetName).Msg("file written")
	return nil
}

// Abort discards everything written so far.
func (s *SyncOnCloseRenameFile) Abort() {
	_ = s.file.Close()
	_ = os.Remove(s.file.Name())
}
