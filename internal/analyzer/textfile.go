// Package analyzer implements the four domain parser families that
// extract structured records from an extracted support archive.
package analyzer

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/text/encoding/charmap"

	"github.com/pos-insight/backend/internal/models"
)

// timestampRegex matches the HH:MM:SS.mmm prefix the vendor logs use.
var timestampRegex = regexp.MustCompile(`(\d{2}:\d{2}:\d{2}\.\d{3})`)

const maxLineBytes = 1024 * 1024

// scanLines streams a log file line by line. Gzip-compressed files are
// decompressed transparently; lines that are not valid UTF-8 are decoded
// as cp1251, the legacy encoding of the vendor equipment. The callback
// returns false to stop early.
func scanLines(path string, fn func(line string) bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return err
		}
		defer gz.Close()
		r = gz
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	first := true
	for scanner.Scan() {
		line := decodeLine(scanner.Text())
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		if !fn(line) {
			return nil
		}
	}
	return scanner.Err()
}

// readLines reads the whole file into memory. Used by the window-bounded
// payment parsers, which need lookahead over a line buffer.
func readLines(path string) ([]string, error) {
	var lines []string
	err := scanLines(path, func(line string) bool {
		lines = append(lines, line)
		return true
	})
	return lines, err
}

func decodeLine(line string) string {
	if utf8.ValidString(line) {
		return line
	}
	decoded, err := charmap.Windows1251.NewDecoder().String(line)
	if err != nil {
		return line
	}
	return decoded
}

// listFilesBySuffix returns directory entries whose names end with any of
// the given suffixes, sorted by name for deterministic scan order.
func listFilesBySuffix(dir string, suffixes ...string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		for _, suf := range suffixes {
			if strings.HasSuffix(e.Name(), suf) {
				files = append(files, filepath.Join(dir, e.Name()))
				break
			}
		}
	}
	sort.Strings(files)
	return files
}

func baseName(path string) string { return filepath.Base(path) }

// extractTimestamp pulls the HH:MM:SS.mmm stamp out of a line, or the
// explicit unknown-time sentinel when the line carries none.
func extractTimestamp(line string) string {
	if m := timestampRegex.FindStringSubmatch(line); m != nil {
		return m[1]
	}
	return models.PlaceholderUnknownTime
}
