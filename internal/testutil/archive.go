// archive.go - Builders for support archives used in tests
package testutil

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
)

// ArchiveBuilder assembles an in-memory support archive with the
// directory layout produced by real POS exports.
type ArchiveBuilder struct {
	files map[string][]byte
}

// NewArchiveBuilder creates an empty builder.
func NewArchiveBuilder() *ArchiveBuilder {
	return &ArchiveBuilder{files: make(map[string][]byte)}
}

// AddFile adds a file at an arbitrary path inside the archive.
func (b *ArchiveBuilder) AddFile(path, content string) *ArchiveBuilder {
	b.files[path] = []byte(content)
	return b
}

// AddDatedLog adds a log file under the dated application-logs
// directory for the given compact date (YYYYMMDD).
func (b *ArchiveBuilder) AddDatedLog(compactDate, name, content string) *ArchiveBuilder {
	return b.AddFile(filepath.ToSlash(filepath.Join("logs", "application_logs", compactDate, name)), content)
}

// AddSystemInfo adds a file under the canonical system_info directory.
func (b *ArchiveBuilder) AddSystemInfo(name, content string) *ArchiveBuilder {
	return b.AddFile("system_info/"+name, content)
}

// AddVendorLog adds a log file under a terminal-driver directory in the
// canonical pts_vendor tree.
func (b *ArchiveBuilder) AddVendorLog(driver, name, content string) *ArchiveBuilder {
	return b.AddFile("pts_vendor/"+driver+"/"+name, content)
}

// BuildZip writes the archive as a zip file and returns its path.
func (b *ArchiveBuilder) BuildZip(t *testing.T) string {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for path, data := range b.files {
		w, err := zw.Create(path)
		if err != nil {
			t.Fatalf("creating zip entry %s: %v", path, err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("writing zip entry %s: %v", path, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}

	path := filepath.Join(t.TempDir(), "support.zip")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("writing archive: %v", err)
	}
	return path
}

// BuildTarGz writes the archive as a gzipped tarball and returns its path.
func (b *ArchiveBuilder) BuildTarGz(t *testing.T) string {
	t.Helper()

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	for path, data := range b.files {
		hdr := &tar.Header{
			Name: path,
			Mode: 0644,
			Size: int64(len(data)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("writing tar header %s: %v", path, err)
		}
		if _, err := tw.Write(data); err != nil {
			t.Fatalf("writing tar entry %s: %v", path, err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("closing tar: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("closing gzip: %v", err)
	}

	path := filepath.Join(t.TempDir(), "support.tar.gz")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("writing archive: %v", err)
	}
	return path
}
