package models

import "fmt"

// LogEntry is one classified line from a support log file.
type LogEntry struct {
	Timestamp  string `json:"timestamp"`
	LogType    string `json:"logType"` // ERROR, WARNING, INFO
	Content    string `json:"content"`
	SourceFile string `json:"sourceFile,omitempty"`
}

func (e LogEntry) Time() string { return e.Timestamp }

func (e LogEntry) TableRow() []string {
	return []string{e.Timestamp, e.LogType, e.Content}
}

// ExportRow renders the entry for the untruncated export dump.
func (e LogEntry) ExportRow() string {
	return fmt.Sprintf("[%s] [%s] %s", e.Timestamp, e.LogType, e.Content)
}

// ReceiptOperation is one "Builded receipt" occurrence from the device
// event logs. Every field is independently optional in the source line;
// absent values carry their domain placeholder instead of being empty.
type ReceiptOperation struct {
	Timestamp     string `json:"timestamp"`
	PrintStatus   string `json:"printStatus"`
	Amount        string `json:"amount"`
	FiscalType    string `json:"fiscalType"`
	SaleNumber    string `json:"saleNumber"`
	OperationType string `json:"operationType"`
	PaymentMethod string `json:"paymentMethod"`
	RegNumber     string `json:"regNumber"`
}

func (r ReceiptOperation) Time() string { return r.Timestamp }

func (r ReceiptOperation) TableRow() []string {
	return []string{
		r.Timestamp, r.PrintStatus, r.Amount, r.FiscalType,
		r.SaleNumber, r.OperationType, r.PaymentMethod, r.RegNumber,
	}
}

// SupportSummary accompanies a general support-log analysis.
type SupportSummary struct {
	TotalEntries int `json:"totalEntries"`
	Errors       int `json:"errors"`
	Warnings     int `json:"warnings"`
	FilesScanned int `json:"filesScanned"`
}
