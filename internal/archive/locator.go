package archive

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotFound means the workspace holds no logs for the requested scope.
// Callers treat it as a normal, reportable outcome, not a failure.
var ErrNotFound = errors.New("no matching log directory found")

// CompactDate converts a YYYY-MM-DD date into the archive's internal
// YYYYMMDD directory naming convention.
func CompactDate(date string) (string, error) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", date, err)
	}
	return t.Format("20060102"), nil
}

// Locate resolves the application-log directory for the given date.
// Search order: logs/application_logs/*<YYYYMMDD>*, then the archives
// subfolder underneath it. The first matching directory that holds at
// least one file wins.
func Locate(workspace, date string) (string, error) {
	compact, err := CompactDate(date)
	if err != nil {
		return "", err
	}

	base := filepath.Join(workspace, "logs", "application_logs")
	for _, root := range []string{base, filepath.Join(base, "archives")} {
		dir, ok := findDatedSubdir(root, compact)
		if ok {
			return dir, nil
		}
	}
	return "", ErrNotFound
}

func findDatedSubdir(root, compact string) (string, bool) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if !e.IsDir() || !strings.Contains(e.Name(), compact) {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if hasAnyFile(dir) {
			return dir, true
		}
	}
	return "", false
}

func hasAnyFile(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() {
			return true
		}
	}
	return false
}

// systemInfoAlternates are the known alternate roots for OS journal
// exports, probed when the canonical system_info directory is absent.
var systemInfoAlternates = []string{
	filepath.Join("logs", "system_info"),
	filepath.Join("diagnostics", "system_info"),
	filepath.Join("diagnostic_info", "system_info"),
	filepath.Join("system", "info"),
	"",
}

// LocateSystemInfo resolves the directory holding OS journal exports.
// The canonical system_info directory is accepted as-is; alternates
// (including the workspace root) count only when they actually contain
// event-log files somewhere underneath.
func LocateSystemInfo(workspace string) (string, error) {
	canonical := filepath.Join(workspace, "system_info")
	if info, err := os.Stat(canonical); err == nil && info.IsDir() {
		return canonical, nil
	}

	for _, alt := range systemInfoAlternates {
		dir := filepath.Join(workspace, alt)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		if len(FindEventLogFiles(dir)) > 0 {
			return dir, nil
		}
	}
	return "", ErrNotFound
}

// FindEventLogFiles returns every *.evtx and *.evt file under dir.
func FindEventLogFiles(dir string) []string {
	var files []string
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(d.Name())) {
		case ".evtx", ".evt":
			files = append(files, path)
		}
		return nil
	})
	return files
}

// vendorAlternates are the known alternate roots for payment-terminal
// driver logs.
var vendorAlternates = []string{
	filepath.Join("logs", "pts_vendor"),
	filepath.Join("diagnostics", "pts_vendor"),
	filepath.Join("payment", "pts_vendor"),
}

// LocateVendorDir resolves the payment-terminal driver root.
func LocateVendorDir(workspace string) (string, error) {
	canonical := filepath.Join(workspace, "pts_vendor")
	if info, err := os.Stat(canonical); err == nil && info.IsDir() {
		return canonical, nil
	}
	for _, alt := range vendorAlternates {
		dir := filepath.Join(workspace, alt)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir, nil
		}
	}
	return "", ErrNotFound
}
