package sync

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Staging directory names under the image root. Files live in
// not_uploaded until the destination confirms the upload, then move to
// uploaded. The split is what lets the startup integrity pass tell
// "downloaded but never sent" from "sent and safe to keep as a marker".
const (
	notUploadedDirName = "not_uploaded"
	uploadedDirName    = "uploaded"
)

// Staging manages the local filesystem staging area for downloaded
// photos.
type Staging struct {
	root   string
	logger *slog.Logger
}

// NewStaging creates a staging area rooted at imageDir.
func NewStaging(imageDir string, logger *slog.Logger) *Staging {
	if logger == nil {
		logger = slog.Default()
	}

	return &Staging{root: imageDir, logger: logger}
}

// EnsureDirs creates both staging directories if absent.
func (s *Staging) EnsureDirs() error {
	for _, dir := range []string{s.root, s.notUploadedDir(), s.uploadedDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("sync: creating staging directory %s: %w", dir, err)
		}
	}

	return nil
}

func (s *Staging) notUploadedDir() string {
	return filepath.Join(s.root, notUploadedDirName)
}

func (s *Staging) uploadedDir() string {
	return filepath.Join(s.root, uploadedDirName)
}

// NotUploadedPath returns the pre-upload path for a staged filename.
func (s *Staging) NotUploadedPath(filename string) string {
	return filepath.Join(s.notUploadedDir(), filename)
}

// UploadedPath returns the post-upload path for a staged filename.
func (s *Staging) UploadedPath(filename string) string {
	return filepath.Join(s.uploadedDir(), filename)
}

// Stage writes photo bytes into not_uploaded. An existing file is left
// in place: the bytes are content-addressed, so identical content is
// identical bytes.
func (s *Staging) Stage(filename string, data []byte) error {
	path := s.NotUploadedPath(filename)

	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("sync: staging %s: %w", filename, err)
	}

	return nil
}

// MarkUploaded moves a staged file from not_uploaded to uploaded after a
// confirmed upload.
func (s *Staging) MarkUploaded(filename string) error {
	if err := os.Rename(s.NotUploadedPath(filename), s.UploadedPath(filename)); err != nil {
		return fmt.Errorf("sync: moving %s to uploaded staging: %w", filename, err)
	}

	return nil
}

// Has reports whether filename is present in either staging location.
func (s *Staging) Has(filename string) bool {
	if filename == "" {
		return false
	}

	for _, path := range []string{s.NotUploadedPath(filename), s.UploadedPath(filename)} {
		if _, err := os.Stat(path); err == nil {
			return true
		}
	}

	return false
}

// Remove deletes a staged file from whichever location holds it. Removing
// a file that was never staged is not an error.
func (s *Staging) Remove(filename string) {
	if filename == "" {
		// An entry without a filename was adopted from the destination;
		// there is nothing staged to remove, and joining an empty name
		// would target the staging directories themselves.
		return
	}

	for _, path := range []string{s.NotUploadedPath(filename), s.UploadedPath(filename)} {
		err := os.Remove(path)
		if err == nil {
			s.logger.Debug("removed staged file", slog.String("path", path))
			return
		}

		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to remove staged file",
				slog.String("path", path), slog.String("error", err.Error()))
		}
	}
}

// Verify runs the startup integrity pass: every filename referenced by a
// non-removed ledger entry must exist in the staging location its upload
// state implies. A file in the wrong location is silently relocated. A
// file missing from both locations is fatal: whether the upload happened
// cannot be inferred, and guessing risks duplicate uploads or lost state.
func (s *Staging) Verify(ledger *Ledger) error {
	if err := s.EnsureDirs(); err != nil {
		return err
	}

	for key, entry := range ledger.All() {
		if entry.Removed || entry.Filename == "" {
			continue
		}

		expected, other := s.NotUploadedPath(entry.Filename), s.UploadedPath(entry.Filename)
		if entry.Uploaded() {
			expected, other = other, expected
		}

		if _, err := os.Stat(expected); err == nil {
			continue
		}

		if _, err := os.Stat(other); err != nil {
			s.logger.Error("staged file missing from both locations",
				slog.String("filename", entry.Filename),
				slog.String("album_id", key.AlbumID),
				slog.String("playlist", key.Playlist),
			)

			return &IntegrityError{Filename: entry.Filename}
		}

		s.logger.Info("relocating staged file",
			slog.String("filename", entry.Filename),
			slog.String("to", expected),
		)

		if err := os.Rename(other, expected); err != nil {
			return fmt.Errorf("sync: relocating %s: %w", entry.Filename, err)
		}
	}

	return nil
}
