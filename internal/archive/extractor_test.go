// extractor_test.go - Tests for archive extraction and workspace cleanup
package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
)

// createZipArchive writes a zip with the given name→content entries.
func createZipArchive(t *testing.T, files map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}

	path := filepath.Join(t.TempDir(), "support.zip")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("write archive: %v", err)
	}
	return path
}

func createTarGzArchive(t *testing.T, files map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0644, Size: int64(len(content)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("tar header: %v", err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatalf("tar write: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar close: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}

	path := filepath.Join(t.TempDir(), "support.tar.gz")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("write archive: %v", err)
	}
	return path
}

func TestExtractor_ExtractZip(t *testing.T) {
	x := NewExtractor(t.TempDir(), nil)
	archive := createZipArchive(t, map[string]string{
		"logs/application_logs/POS_20240110/app.log": "10:00:00.000 started",
		"readme.txt": "hello",
	})

	workspace, err := x.Extract(context.Background(), archive)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if workspace != x.Workspace() {
		t.Errorf("Workspace mismatch: %s vs %s", workspace, x.Workspace())
	}

	data, err := os.ReadFile(filepath.Join(workspace, "logs", "application_logs", "POS_20240110", "app.log"))
	if err != nil {
		t.Fatalf("extracted file missing: %v", err)
	}
	if string(data) != "10:00:00.000 started" {
		t.Errorf("Unexpected content: %s", data)
	}
}

func TestExtractor_ExtractTarGz(t *testing.T) {
	x := NewExtractor(t.TempDir(), nil)
	archive := createTarGzArchive(t, map[string]string{
		"system_info/Application.evtx": "<Event/>",
	})

	workspace, err := x.Extract(context.Background(), archive)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(workspace, "system_info", "Application.evtx")); err != nil {
		t.Errorf("extracted file missing: %v", err)
	}
}

func TestExtractor_CorruptArchive(t *testing.T) {
	x := NewExtractor(t.TempDir(), nil)
	path := filepath.Join(t.TempDir(), "broken.zip")
	if err := os.WriteFile(path, []byte("not a zip"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := x.Extract(context.Background(), path)
	if err == nil {
		t.Fatal("Expected error for corrupt archive")
	}
	var extractErr *ExtractError
	if !errors.As(err, &extractErr) {
		t.Errorf("Expected ExtractError, got %T", err)
	}

	// The partial workspace must still be removable.
	if err := x.Cleanup(); err != nil {
		t.Errorf("Cleanup after failure: %v", err)
	}
}

func TestExtractor_ZipSlipRejected(t *testing.T) {
	x := NewExtractor(t.TempDir(), nil)
	archive := createZipArchive(t, map[string]string{
		"../escape.txt": "bad",
	})

	if _, err := x.Extract(context.Background(), archive); err == nil {
		t.Fatal("Expected error for path traversal entry")
	}
}

func TestExtractor_Cleanup(t *testing.T) {
	x := NewExtractor(t.TempDir(), nil)

	t.Run("before extract is a no-op", func(t *testing.T) {
		if err := x.Cleanup(); err != nil {
			t.Errorf("Cleanup: %v", err)
		}
	})

	t.Run("removes workspace and is idempotent", func(t *testing.T) {
		archive := createZipArchive(t, map[string]string{"a.log": "x"})
		workspace, err := x.Extract(context.Background(), archive)
		if err != nil {
			t.Fatalf("Extract: %v", err)
		}

		if err := x.Cleanup(); err != nil {
			t.Fatalf("Cleanup: %v", err)
		}
		if _, err := os.Stat(workspace); !os.IsNotExist(err) {
			t.Error("Workspace still present after Cleanup")
		}
		if err := x.Cleanup(); err != nil {
			t.Errorf("Second Cleanup: %v", err)
		}
	})
}

func TestExtractor_ContextCancelled(t *testing.T) {
	x := NewExtractor(t.TempDir(), nil)
	archive := createZipArchive(t, map[string]string{"a.log": "x", "b.log": "y"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := x.Extract(ctx, archive); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
