// locator_test.go - Tests for date-scoped log directory lookup
package archive

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func makeWorkspace(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return root
}

func TestCompactDate(t *testing.T) {
	t.Run("valid date", func(t *testing.T) {
		compact, err := CompactDate("2024-01-10")
		if err != nil {
			t.Fatalf("CompactDate: %v", err)
		}
		if compact != "20240110" {
			t.Errorf("Expected 20240110, got %s", compact)
		}
	})

	t.Run("invalid date", func(t *testing.T) {
		if _, err := CompactDate("10.01.2024"); err == nil {
			t.Error("Expected error for wrong date format")
		}
	})
}

func TestLocate(t *testing.T) {
	t.Run("direct dated directory", func(t *testing.T) {
		root := makeWorkspace(t, map[string]string{
			"logs/application_logs/POS_20240110/app.log": "x",
		})

		dir, err := Locate(root, "2024-01-10")
		if err != nil {
			t.Fatalf("Locate: %v", err)
		}
		want := filepath.Join(root, "logs", "application_logs", "POS_20240110")
		if dir != want {
			t.Errorf("Expected %s, got %s", want, dir)
		}
	})

	t.Run("archives fallback", func(t *testing.T) {
		root := makeWorkspace(t, map[string]string{
			"logs/application_logs/archives/20240110_rotated/app.log": "x",
		})

		dir, err := Locate(root, "2024-01-10")
		if err != nil {
			t.Fatalf("Locate: %v", err)
		}
		want := filepath.Join(root, "logs", "application_logs", "archives", "20240110_rotated")
		if dir != want {
			t.Errorf("Expected %s, got %s", want, dir)
		}
	})

	t.Run("empty dated directory is skipped", func(t *testing.T) {
		root := t.TempDir()
		empty := filepath.Join(root, "logs", "application_logs", "POS_20240110")
		if err := os.MkdirAll(empty, 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}

		if _, err := Locate(root, "2024-01-10"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("no logs for date", func(t *testing.T) {
		root := makeWorkspace(t, map[string]string{
			"logs/application_logs/POS_20240109/app.log": "x",
		})

		if _, err := Locate(root, "2024-01-10"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("invalid date propagates", func(t *testing.T) {
		if _, err := Locate(t.TempDir(), "not-a-date"); err == nil {
			t.Error("Expected error for invalid date")
		}
	})
}

func TestLocateSystemInfo(t *testing.T) {
	t.Run("canonical directory wins without content check", func(t *testing.T) {
		root := t.TempDir()
		canonical := filepath.Join(root, "system_info")
		if err := os.MkdirAll(canonical, 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}

		dir, err := LocateSystemInfo(root)
		if err != nil {
			t.Fatalf("LocateSystemInfo: %v", err)
		}
		if dir != canonical {
			t.Errorf("Expected %s, got %s", canonical, dir)
		}
	})

	t.Run("alternate needs event files", func(t *testing.T) {
		root := makeWorkspace(t, map[string]string{
			"logs/system_info/Application.evtx": "x",
		})

		dir, err := LocateSystemInfo(root)
		if err != nil {
			t.Fatalf("LocateSystemInfo: %v", err)
		}
		want := filepath.Join(root, "logs", "system_info")
		if dir != want {
			t.Errorf("Expected %s, got %s", want, dir)
		}
	})

	t.Run("workspace root as last resort", func(t *testing.T) {
		root := makeWorkspace(t, map[string]string{
			"System.evt": "x",
		})

		dir, err := LocateSystemInfo(root)
		if err != nil {
			t.Fatalf("LocateSystemInfo: %v", err)
		}
		if dir != root {
			t.Errorf("Expected workspace root, got %s", dir)
		}
	})

	t.Run("nothing found", func(t *testing.T) {
		if _, err := LocateSystemInfo(t.TempDir()); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}

func TestFindEventLogFiles(t *testing.T) {
	root := makeWorkspace(t, map[string]string{
		"a/Application.evtx": "x",
		"b/System.EVT":       "x",
		"b/notes.txt":        "x",
	})

	files := FindEventLogFiles(root)
	if len(files) != 2 {
		t.Errorf("Expected 2 event logs, got %d: %v", len(files), files)
	}
}

func TestLocateVendorDir(t *testing.T) {
	t.Run("canonical", func(t *testing.T) {
		root := makeWorkspace(t, map[string]string{
			"pts_vendor/inpas/DualConnector20240110.log": "x",
		})

		dir, err := LocateVendorDir(root)
		if err != nil {
			t.Fatalf("LocateVendorDir: %v", err)
		}
		if dir != filepath.Join(root, "pts_vendor") {
			t.Errorf("Unexpected dir: %s", dir)
		}
	})

	t.Run("alternate root", func(t *testing.T) {
		root := makeWorkspace(t, map[string]string{
			"logs/pts_vendor/sberbank/1/sbkernel0110.log": "x",
		})

		dir, err := LocateVendorDir(root)
		if err != nil {
			t.Fatalf("LocateVendorDir: %v", err)
		}
		if dir != filepath.Join(root, "logs", "pts_vendor") {
			t.Errorf("Unexpected dir: %s", dir)
		}
	})

	t.Run("missing", func(t *testing.T) {
		if _, err := LocateVendorDir(t.TempDir()); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}
