// Package archive builds the per-study ZIP handed to the uploader.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// ZipStudy writes a ZIP of the tree rooted at studyDir to zipPath, with
// entry names relative to studyDir. An existing file at zipPath is replaced,
// so a partial archive left by a crash or a failed upload is regenerated.
// Returns the number of files archived and the final archive size.
func ZipStudy(studyDir, zipPath string) (files int, size int64, err error) {
	out, err := os.Create(zipPath)
	if err != nil {
		return 0, 0, fmt.Errorf("create archive: %w", err)
	}

	w := zip.NewWriter(out)
	walkErr := filepath.WalkDir(studyDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(studyDir, path)
		if err != nil {
			return err
		}
		entry, err := w.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		if _, err := io.Copy(entry, f); err != nil {
			return err
		}
		files++
		return nil
	})
	if walkErr != nil {
		_ = w.Close()
		_ = out.Close()
		_ = os.Remove(zipPath)
		return 0, 0, fmt.Errorf("archive %s: %w", studyDir, walkErr)
	}
	if err := w.Close(); err != nil {
		_ = out.Close()
		_ = os.Remove(zipPath)
		return 0, 0, fmt.Errorf("finalise archive: %w", err)
	}
	if err := out.Close(); err != nil {
		return 0, 0, fmt.Errorf("close archive: %w", err)
	}

	info, err := os.Stat(zipPath)
	if err != nil {
		return 0, 0, fmt.Errorf("stat archive: %w", err)
	}
	return files, info.Size(), nil
}
