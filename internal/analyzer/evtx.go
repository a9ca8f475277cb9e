package analyzer

// BinaryLogReader is the capability-probed strategy for reading binary
// OS journal files. The native reader is an optional runtime capability;
// when it is not present the OS-event parser degrades to the text
// heuristic instead of failing.
type BinaryLogReader interface {
	// Available reports whether the native capability can be used.
	Available() bool
	// Records returns one XML fragment per journal record.
	Records(path string) ([]string, error)
}

// unavailableBinaryReader is the default: no native binary journal
// support is linked into this build.
type unavailableBinaryReader struct{}

func (unavailableBinaryReader) Available() bool                  { return false }
func (unavailableBinaryReader) Records(string) ([]string, error) { return nil, nil }
