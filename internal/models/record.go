// Package models contains domain types for the POS support-archive analyzer.
package models

// Shared display placeholders. The vendor logs are Russian-language, so the
// tables keep the same literals the equipment operators see elsewhere.
const (
	PlaceholderNA           = "Н/Д"
	PlaceholderUndetermined = "не определен"
	PlaceholderUnknownTime  = "неизвестное время"
)

// Record is the common surface shared by every per-domain record variant.
// Records are immutable once constructed; formatting only reads them.
type Record interface {
	// Time returns the record's display timestamp. Never empty: parsers
	// substitute an explicit sentinel when the source line had no time.
	Time() string
	// TableRow returns the record's columns for tabular rendering. The
	// column count is fixed per record type.
	TableRow() []string
}

// AnalysisKind identifies one of the four analyzer domains.
type AnalysisKind string

const (
	KindSupport         AnalysisKind = "support"
	KindMarking         AnalysisKind = "marking"
	KindOSEvents        AnalysisKind = "os_events"
	KindPaymentTerminal AnalysisKind = "payment_terminal"
)
