// Package archive handles support-archive extraction and the date-scoped
// lookup of log directories inside the extracted workspace.
package archive

import (
	"archive/tar"
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
)

// ExtractError means the archive itself is unreadable or corrupt. It is
// the only archive-handling failure that propagates to the caller.
type ExtractError struct {
	Archive string
	Err     error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extracting archive %s: %v", e.Archive, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// Extractor unpacks one support archive into an isolated workspace
// directory and owns that workspace's lifetime.
type Extractor struct {
	tempRoot  string
	workspace string
	log       *slog.Logger
}

// NewExtractor creates an extractor that places workspaces under tempRoot.
func NewExtractor(tempRoot string, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{tempRoot: tempRoot, log: log.With("component", "extractor")}
}

// Workspace returns the current workspace path, or "" before Extract.
func (x *Extractor) Workspace() string { return x.workspace }

// Extract decompresses the archive into a fresh uniquely-named workspace
// and returns its path. On failure the partially populated workspace is
// kept on disk so Cleanup can still remove it.
func (x *Extractor) Extract(ctx context.Context, archivePath string) (string, error) {
	workspace := filepath.Join(x.tempRoot, "support_logs_"+uuid.New().String())
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return "", &ExtractError{Archive: archivePath, Err: err}
	}
	x.workspace = workspace

	var err error
	switch {
	case hasSuffixFold(archivePath, ".tar.gz") || hasSuffixFold(archivePath, ".tgz"):
		err = extractTarGz(ctx, archivePath, workspace)
	default:
		err = extractZip(ctx, archivePath, workspace)
	}
	if err != nil {
		return "", &ExtractError{Archive: archivePath, Err: err}
	}

	x.log.Info("archive extracted", "archive", filepath.Base(archivePath), "workspace", workspace)
	return workspace, nil
}

// Cleanup removes the workspace. Safe to call multiple times: once the
// directory is gone it is a no-op.
func (x *Extractor) Cleanup() error {
	if x.workspace == "" {
		return nil
	}
	if err := os.RemoveAll(x.workspace); err != nil {
		return fmt.Errorf("removing workspace %s: %w", x.workspace, err)
	}
	x.log.Info("workspace removed", "workspace", x.workspace)
	x.workspace = ""
	return nil
}

func extractZip(ctx context.Context, archivePath, dest string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		target, err := securePath(dest, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := copyZipEntry(f, target); err != nil {
			return fmt.Errorf("entry %s: %w", f.Name, err)
		}
	}
	return nil
}

func copyZipEntry(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	w, err := os.Create(target)
	if err != nil {
		return err
	}
	defer w.Close()

	_, err = io.Copy(w, rc)
	return err
}

func extractTarGz(ctx context.Context, archivePath, dest string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		target, err := securePath(dest, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			w, err := os.Create(target)
			if err != nil {
				return err
			}
			if _, err := io.Copy(w, tr); err != nil {
				w.Close()
				return fmt.Errorf("entry %s: %w", hdr.Name, err)
			}
			w.Close()
		}
	}
}

// securePath rejects entries that would escape the workspace (zip-slip).
func securePath(dest, name string) (string, error) {
	target := filepath.Join(dest, filepath.FromSlash(name))
	if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
		return "", fmt.Errorf("illegal entry path: %s", name)
	}
	return target, nil
}

func hasSuffixFold(s, suffix string) bool {
	return strings.HasSuffix(strings.ToLower(s), suffix)
}
