package analyzer

// lineWindow is a bounded forward cursor over a line buffer. The payment
// parsers collect sibling fields within a fixed number of lines after a
// marker; the bound is explicit so "give up after N lines" is testable.
type lineWindow struct {
	lines []string
	start int
	limit int
}

// newLineWindow opens a window of at most size lines beginning at start.
func newLineWindow(lines []string, start, size int) *lineWindow {
	limit := start + size
	if limit > len(lines) {
		limit = len(lines)
	}
	if start > len(lines) {
		start = len(lines)
	}
	return &lineWindow{lines: lines, start: start, limit: limit}
}

// scan walks the window in order. The callback receives the absolute
// index and the line; returning false stops the walk.
func (w *lineWindow) scan(fn func(i int, line string) bool) {
	for i := w.start; i < w.limit; i++ {
		if !fn(i, w.lines[i]) {
			return
		}
	}
}

// end returns the first index past the window.
func (w *lineWindow) end() int { return w.limit }
