package analyzer

import (
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pos-insight/backend/internal/models"
)

// Per-file cap on matching lines, bounds work on runaway logs.
const maxEntriesPerFile = 1000

// Device event and error log families, matched by filename suffix.
var (
	eventFileSuffixes = []string{"_Devices-events.log", "_DevicesOffline-events.log"}
	errorFileSuffixes = []string{
		"_DevicesOffline-errors.log",
		"_PaymentTerminalOfflineRu-errors.log",
		"_Devices-errors.log",
		"_PaymentTerminalPluginRu-errors.log",
	}
)

var (
	firmwareRegex    = regexp.MustCompile(`"FirmwareVersionUnified":"([^"]+)"`)
	printModeRegex   = regexp.MustCompile(`"PrintMode":(\d)`)
	totalSumRegex    = regexp.MustCompile(`"TotalSum":(\d+\.?\d*)`)
	nonFiscalRegex   = regexp.MustCompile(`(?i)"non_fiscal":(true|false)`)
	saleNumRegex     = regexp.MustCompile(`"Номер продажи","ContentRight":"(\d+)"`)
	returnNumRegex   = regexp.MustCompile(`"Номер возврата","ContentRight":"(\d+)"`)
	saleNumAltRegex  = regexp.MustCompile(`"SaleNumber":(\d+)`)
	returnNumAltRx   = regexp.MustCompile(`"ReturnNumber":(\d+)`)
	documentTypeRx   = regexp.MustCompile(`"DocumentType":(\d+)`)
	bankCardSumRegex = regexp.MustCompile(`"BankCardSum":(\d+\.?\d*)`)
	regNumberRegex   = regexp.MustCompile(`"kkm_reg_number":"([^"]+)"`)
)

// GeneralAnalysis is the result of a general support-log scan.
type GeneralAnalysis struct {
	FirmwareVersion string                `json:"firmwareVersion"`
	Entries         []models.LogEntry     `json:"entries"`
	Summary         models.SupportSummary `json:"summary"`
}

// SupportAnalyzer extracts error/warning entries and receipt operations
// from the application support logs.
type SupportAnalyzer struct {
	log *slog.Logger
}

func NewSupportAnalyzer(log *slog.Logger) *SupportAnalyzer {
	if log == nil {
		log = slog.Default()
	}
	return &SupportAnalyzer{log: log.With("component", "support")}
}

// ParseLogLine classifies one line. ERROR wins over WARNING; everything
// else is INFO. Empty lines yield nil.
func (a *SupportAnalyzer) ParseLogLine(line, sourceFile string) *models.LogEntry {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	timestamp := "00:00:00.000"
	content := line
	if m := timestampRegex.FindStringIndex(line); m != nil && m[0] == 0 {
		timestamp = line[m[0]:m[1]]
		content = strings.TrimSpace(line[m[1]:])
	}

	upper := strings.ToUpper(line)
	logType := "INFO"
	switch {
	case strings.Contains(upper, "ERROR"):
		logType = "ERROR"
	case strings.Contains(upper, "WARNING"):
		logType = "WARNING"
	}

	return &models.LogEntry{
		Timestamp:  timestamp,
		LogType:    logType,
		Content:    content,
		SourceFile: sourceFile,
	}
}

// ReadLogEntries collects entries of the wanted types from one file,
// capped at maxEntriesPerFile matches.
func (a *SupportAnalyzer) ReadLogEntries(path, sourceFile string, logTypes []string) []models.LogEntry {
	wanted := make(map[string]bool, len(logTypes))
	for _, t := range logTypes {
		wanted[t] = true
	}

	var entries []models.LogEntry
	err := scanLines(path, func(line string) bool {
		entry := a.ParseLogLine(line, sourceFile)
		if entry != nil && wanted[entry.LogType] {
			entries = append(entries, *entry)
		}
		return len(entries) < maxEntriesPerFile
	})
	if err != nil {
		a.log.Error("reading log file", "file", path, "err", err)
	}
	return entries
}

// FindFirmwareVersion scans the device event logs for the unified
// firmware version key. Returns the first match, or the explicit
// undetermined sentinel.
func (a *SupportAnalyzer) FindFirmwareVersion(logDir string) string {
	version := "не определена"
	for _, path := range listFilesBySuffix(logDir, eventFileSuffixes...) {
		found := ""
		scanLines(path, func(line string) bool {
			if !strings.Contains(line, `"FirmwareVersionUnified":`) {
				return true
			}
			if m := firmwareRegex.FindStringSubmatch(line); m != nil {
				found = m[1]
				return false
			}
			return true
		})
		if found != "" {
			a.log.Info("firmware version found", "version", found)
			return found
		}
	}
	return version
}

// AnalyzeReceiptOperations extracts every "Builded receipt" occurrence
// from the device event logs. Each field is independently optional.
func (a *SupportAnalyzer) AnalyzeReceiptOperations(logDir string) []models.ReceiptOperation {
	var operations []models.ReceiptOperation
	for _, path := range listFilesBySuffix(logDir, eventFileSuffixes...) {
		scanLines(path, func(line string) bool {
			if strings.Contains(line, "Builded receipt") {
				operations = append(operations, a.parseReceiptLine(line))
			}
			return true
		})
	}
	return operations
}

func (a *SupportAnalyzer) parseReceiptLine(line string) models.ReceiptOperation {
	op := models.ReceiptOperation{
		Timestamp:     extractTimestamp(line),
		PrintStatus:   parsePrintStatus(line),
		Amount:        parseTotalAmount(line),
		FiscalType:    parseFiscalType(line),
		SaleNumber:    parseSaleNumber(line),
		OperationType: parseOperationType(line),
		PaymentMethod: parsePaymentMethod(line),
		RegNumber:     parseRegNumber(line),
	}
	return op
}

func parsePrintStatus(line string) string {
	m := printModeRegex.FindStringSubmatch(line)
	if m == nil {
		return models.PlaceholderUndetermined
	}
	switch m[1] {
	case "0", "2":
		return "Печатать"
	case "4", "6":
		return "Не печатать"
	default:
		return "неизвестный (" + m[1] + ")"
	}
}

func parseTotalAmount(line string) string {
	m := totalSumRegex.FindStringSubmatch(line)
	if m == nil {
		return "не определена"
	}
	return m[1] + " руб."
}

func parseFiscalType(line string) string {
	m := nonFiscalRegex.FindStringSubmatch(line)
	if m == nil {
		return models.PlaceholderUndetermined
	}
	if strings.EqualFold(m[1], "true") {
		return "нефискальный"
	}
	return "фискальный"
}

func parseSaleNumber(line string) string {
	if m := saleNumRegex.FindStringSubmatch(line); m != nil {
		return "Продажа: " + m[1]
	}
	if m := returnNumRegex.FindStringSubmatch(line); m != nil {
		return "Возврат: " + m[1]
	}
	if m := saleNumAltRegex.FindStringSubmatch(line); m != nil {
		return "Продажа: " + m[1]
	}
	if m := returnNumAltRx.FindStringSubmatch(line); m != nil {
		return "Возврат: " + m[1]
	}
	return models.PlaceholderUndetermined
}

func parseOperationType(line string) string {
	if m := documentTypeRx.FindStringSubmatch(line); m != nil {
		switch m[1] {
		case "8":
			return "Приход"
		case "9":
			return "Возврат"
		default:
			return "Другое(" + m[1] + ")"
		}
	}
	// The document type is absent from some firmware revisions; the
	// receipt header literals still identify the operation.
	if strings.Contains(line, `"Номер возврата"`) {
		return "Возврат"
	}
	if strings.Contains(line, `"Номер продажи"`) {
		return "Приход"
	}
	return models.PlaceholderUndetermined
}

func parsePaymentMethod(line string) string {
	cardSum := 0.0
	if m := bankCardSumRegex.FindStringSubmatch(line); m != nil {
		cardSum, _ = strconv.ParseFloat(m[1], 64)
	}
	totalSum := 0.0
	if m := totalSumRegex.FindStringSubmatch(line); m != nil {
		totalSum, _ = strconv.ParseFloat(m[1], 64)
	}

	switch {
	case totalSum == 0:
		return "Не удалось определить"
	case cardSum == 0:
		return "Наличными"
	case cardSum == totalSum:
		return "Безналичными"
	default:
		return "Смешанная"
	}
}

func parseRegNumber(line string) string {
	if m := regNumberRegex.FindStringSubmatch(line); m != nil {
		return m[1]
	}
	return models.PlaceholderUndetermined
}

// GeneralAnalysis unions matches across the error-file patterns, adds
// warnings from the event files when requested, and stable-sorts the
// result by timestamp string.
func (a *SupportAnalyzer) GeneralAnalysis(logDir string, includeWarnings bool) *GeneralAnalysis {
	result := &GeneralAnalysis{
		FirmwareVersion: a.FindFirmwareVersion(logDir),
	}

	logTypes := []string{"ERROR"}
	if includeWarnings {
		logTypes = append(logTypes, "WARNING")
	}

	var all []models.LogEntry
	for _, path := range listFilesBySuffix(logDir, errorFileSuffixes...) {
		entries := a.ReadLogEntries(path, baseName(path), logTypes)
		all = append(all, entries...)
		a.log.Info("scanned error log", "file", baseName(path), "entries", len(entries))
	}
	if includeWarnings {
		for _, path := range listFilesBySuffix(logDir, eventFileSuffixes...) {
			entries := a.ReadLogEntries(path, baseName(path), []string{"WARNING"})
			all = append(all, entries...)
			a.log.Info("scanned event log", "file", baseName(path), "warnings", len(entries))
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp < all[j].Timestamp
	})
	result.Entries = all

	errorCount := 0
	warningCount := 0
	for _, e := range all {
		switch e.LogType {
		case "ERROR":
			errorCount++
		case "WARNING":
			warningCount++
		}
	}
	filesScanned := len(errorFileSuffixes)
	if includeWarnings {
		filesScanned += len(eventFileSuffixes)
	}
	result.Summary = models.SupportSummary{
		TotalEntries: len(all),
		Errors:       errorCount,
		Warnings:     warningCount,
		FilesScanned: filesScanned,
	}
	return result
}
