// Package connectors moves repository sources between the indexing client
// and the worker fleet.
package connectors

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// maxEntrySize bounds each extracted file.
const maxEntrySize = 100 * 1024 * 1024

// ObjectStore is the subset of the artifact bucket the connector uses.
type ObjectStore interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error
	DownloadFile(ctx context.Context, objectName string) (io.ReadCloser, error)
}

// ZipConnector ships a snapshot of the files to index as a single ZIP.
type ZipConnector struct {
	store ObjectStore
}

func NewZipConnector(store ObjectStore) *ZipConnector {
	return &ZipConnector{store: store}
}

// SourceObjectName is where the snapshot of a run is stored.
func SourceObjectName(runID string) string {
	return "sources/" + runID + ".zip"
}

// Upload zips files, given relative to root, and stores the archive.
func (z *ZipConnector) Upload(ctx context.Context, objectName, root string, files []string) error {
	var buf bytes.Buffer
	if err := WriteZip(&buf, root, files); err != nil {
		return err
	}
	return z.store.UploadFile(ctx, objectName, bytes.NewReader(buf.Bytes()), int64(buf.Len()), "application/zip")
}

// WriteZip writes files, given relative to root, to w as a ZIP archive.
func WriteZip(w io.Writer, root string, files []string) error {
	zw := zip.NewWriter(w)
	for _, rel := range files {
		if err := addFile(zw, root, rel); err != nil {
			zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return nil
}

func addFile(zw *zip.Writer, root, rel string) error {
	f, err := os.Open(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return fmt.Errorf("open %s: %w", rel, err)
	}
	defer f.Close()

	entry, err := zw.Create(filepath.ToSlash(rel))
	if err != nil {
		return fmt.Errorf("add %s: %w", rel, err)
	}
	if _, err := io.Copy(entry, f); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	return nil
}

// Extract downloads a ZIP and extracts it to destDir. When only is not
// empty just those entries are written.
func (z *ZipConnector) Extract(ctx context.Context, objectName, destDir string, only []string) error {
	reader, err := z.store.DownloadFile(ctx, objectName)
	if err != nil {
		return fmt.Errorf("download zip: %w", err)
	}
	defer reader.Close()

	// zip needs random access
	tmpFile, err := os.CreateTemp("", "ectomigo-zip-*.zip")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmpFile.Name())
	defer tmpFile.Close()

	if _, err := io.Copy(tmpFile, reader); err != nil {
		return fmt.Errorf("copy to temp: %w", err)
	}
	tmpFile.Close()

	zr, err := zip.OpenReader(tmpFile.Name())
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()
	return ExtractFiles(&zr.Reader, destDir, only)
}

// ExtractFiles writes the entries of zr below destDir.
func ExtractFiles(zr *zip.Reader, destDir string, only []string) error {
	var wanted map[string]bool
	if len(only) > 0 {
		wanted = make(map[string]bool, len(only))
		for _, rel := range only {
			wanted[filepath.ToSlash(rel)] = true
		}
	}

	for _, f := range zr.File {
		if wanted != nil && !wanted[f.Name] {
			continue
		}
		target := filepath.Join(destDir, filepath.FromSlash(f.Name))

		// Prevent zip slip
		if !strings.HasPrefix(filepath.Clean(target), filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("invalid zip entry: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("mkdir: %w", err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("mkdir: %w", err)
		}
		if err := extractEntry(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractEntry(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open zip entry: %w", err)
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, io.LimitReader(rc, maxEntrySize)); err != nil {
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	return nil
}
