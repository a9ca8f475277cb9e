package analyzer

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pos-insight/backend/internal/models"
)

// Lookahead bounds for the window parsers. The receipts and kernel logs
// interleave unrelated lines, so sibling fields are only searched within
// these fixed distances from their marker.
const (
	inpasHeadingWindow = 15
	inpasReceiptWindow = 10
	sberbankDataWindow = 20
)

var (
	inpasDateTimeRegex = regexp.MustCompile(`(\d{2}\.\d{2}\.\d{2})\s+(\d{2}:\d{2}:\d{2})`)
	inpasTerminalRx    = regexp.MustCompile(`ТЕРМИНАЛ:\s*(\d+)`)
	inpasCardTypeRx    = regexp.MustCompile(`КАРТА\s+([A-Za-z ]+)`)
	inpasAmountRegex   = regexp.MustCompile(`СУММА \(RUB\)\s+([\d\.]+)`)
	inpasAuthRegex     = regexp.MustCompile(`КОД АВТОРИЗАЦИИ:\s+(\d+)`)
	inpasRRNRegex      = regexp.MustCompile(`№ ССЫЛКИ:\s+(\d+)`)
	sberTimeRegex      = regexp.MustCompile(`(\d{2}\.\d{2})\s+(\d{2}:\d{2}:\d{2}\.\d{3})`)
	sberAmountRegex    = regexp.MustCompile(`Amount\s*=\s*([\d\.]+)`)
	sberDeptRegex      = regexp.MustCompile(`Department\s*=\s*(\d+)`)
	sberVersionRegex   = regexp.MustCompile(`Version:([\d\.]+)`)
	sberResultRegex    = regexp.MustCompile(`Result\s*=\s*(\d+)`)
	sberGUIDRegex      = regexp.MustCompile(`GUID=([A-F0-9]+)`)
	sberCardRegex      = regexp.MustCompile(`\*{12}(\d{4})`)
	inpasCardLast4Rx   = regexp.MustCompile(`\*\*\*\*\s+\*\*\*\*\s+\*\*\*\*\s+\*\*\*\*\s+(\d{4})`)
)

// PaymentAnalyzer discovers terminal drivers under the vendor directory
// and reconstructs transactions from their logs.
type PaymentAnalyzer struct {
	log *slog.Logger
}

func NewPaymentAnalyzer(log *slog.Logger) *PaymentAnalyzer {
	if log == nil {
		log = slog.Default()
	}
	return &PaymentAnalyzer{log: log.With("component", "payment")}
}

// DetectDrivers lists the driver subdirectories and classifies each by
// vendor substring. Unmatched directories are still reported as UNKNOWN
// with their log-file count.
func (a *PaymentAnalyzer) DetectDrivers(vendorDir string) []models.TerminalDriverInfo {
	entries, err := os.ReadDir(vendorDir)
	if err != nil {
		return nil
	}

	var drivers []models.TerminalDriverInfo
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(vendorDir, e.Name())
		drivers = append(drivers, models.TerminalDriverInfo{
			DriverName:   e.Name(),
			DriverType:   ClassifyDriver(e.Name()),
			Found:        true,
			LogFileCount: countLogFiles(dir),
		})
	}
	sort.Slice(drivers, func(i, j int) bool { return drivers[i].DriverName < drivers[j].DriverName })
	return drivers
}

// ClassifyDriver maps a driver directory name to its vendor family.
// Comparison is trimmed and case-folded.
func ClassifyDriver(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	switch {
	case strings.Contains(lower, "inpas"):
		return models.DriverINPAS
	case strings.Contains(lower, "sberbank") || strings.Contains(lower, "sber"):
		return models.DriverSberbank
	case strings.Contains(lower, "sc552"):
		return models.DriverSC552
	case strings.Contains(lower, "arcus"):
		return models.DriverArcus
	default:
		return models.DriverUnknown
	}
}

func countLogFiles(dir string) int {
	count := 0
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), ".log") {
			count++
		}
		return nil
	})
	return count
}

// AnalyzeInpasDriver parses INPAS DualConnector logs for the target day.
func (a *PaymentAnalyzer) AnalyzeInpasDriver(driverDir, targetDate string) []models.InpasTransaction {
	patterns := []string{
		"DualConnector" + strings.ReplaceAll(targetDate, "-", "") + ".log",
		"DualConnector" + strings.ReplaceAll(targetDate[2:], "-", "") + ".log",
		"DualConnector*.log",
	}

	var transactions []models.InpasTransaction
	for _, path := range findLogFiles(driverDir, patterns) {
		a.log.Info("parsing INPAS log", "file", filepath.Base(path))
		transactions = append(transactions, a.parseInpasLog(path, targetDate)...)
	}
	return transactions
}

func (a *PaymentAnalyzer) parseInpasLog(path, targetDate string) []models.InpasTransaction {
	lines, err := readLines(path)
	if err != nil {
		a.log.Error("reading INPAS log", "file", path, "err", err)
		return nil
	}

	var transactions []models.InpasTransaction
	i := 0
	for i < len(lines) {
		heading := strings.TrimSpace(lines[i])
		if !isBankHeading(heading) {
			i++
			continue
		}

		tx, next := a.scanInpasReceipt(lines, i, heading, targetDate)
		if tx != nil {
			transactions = append(transactions, *tx)
		}
		i = next
	}
	return transactions
}

// isBankHeading matches the bank-name line that opens an INPAS receipt.
func isBankHeading(line string) bool {
	return strings.Contains(line, "ПАО") || strings.Contains(line, "АО") || strings.Contains(line, "БАНК")
}

// scanInpasReceipt looks ahead from a bank heading for the purchase
// marker, then collects sibling fields within the receipt window. The
// transaction is only emitted once every mandatory field is present.
func (a *PaymentAnalyzer) scanInpasReceipt(lines []string, start int, bank, targetDate string) (*models.InpasTransaction, int) {
	day := targetDate[8:10]

	headingWin := newLineWindow(lines, start, inpasHeadingWindow)
	var tx *models.InpasTransaction
	next := start + 1

	headingWin.scan(func(j int, line string) bool {
		if !strings.Contains(line, "ОПЛАТА ПОКУПКИ") {
			return true
		}

		fields := map[string]string{"bank": bank}
		if j+1 < len(lines) {
			fields["status"] = strings.TrimSpace(lines[j+1])
		}

		receiptWin := newLineWindow(lines, j, inpasReceiptWindow)
		receiptWin.scan(func(_ int, l string) bool {
			if strings.Contains(l, day) {
				if m := inpasDateTimeRegex.FindStringSubmatch(l); m != nil {
					fields["date"], fields["time"] = m[1], m[2]
				}
			}
			if m := inpasTerminalRx.FindStringSubmatch(l); m != nil {
				fields["terminal"] = m[1]
			}
			if m := inpasCardTypeRx.FindStringSubmatch(l); m != nil {
				fields["card_type"] = strings.TrimSpace(m[1])
			}
			if m := inpasCardLast4Rx.FindStringSubmatch(l); m != nil {
				fields["card_last4"] = m[1]
			}
			if m := inpasAmountRegex.FindStringSubmatch(l); m != nil {
				fields["amount"] = m[1]
			}
			if m := inpasAuthRegex.FindStringSubmatch(l); m != nil {
				fields["auth_code"] = m[1]
			}
			if m := inpasRRNRegex.FindStringSubmatch(l); m != nil {
				fields["rrn"] = m[1]
			}
			return true
		})

		if hasAll(fields, "date", "time", "amount", "terminal", "status", "bank") {
			tx = &models.InpasTransaction{
				Timestamp: fields["date"] + " " + fields["time"],
				Amount:    fields["amount"],
				Terminal:  fields["terminal"],
				Status:    fields["status"],
				Bank:      fields["bank"],
				CardType:  fields["card_type"],
				AuthCode:  fields["auth_code"],
				RRN:       fields["rrn"],
			}
		}
		next = receiptWin.end()
		return false
	})
	return tx, next
}

// AnalyzeSberbankDriver parses sbkernel logs from the numbered register
// subdirectories (or the driver directory itself).
func (a *PaymentAnalyzer) AnalyzeSberbankDriver(driverDir, targetDate string) []models.SberbankTransaction {
	var subdirs []string
	entries, err := os.ReadDir(driverDir)
	if err == nil {
		for _, e := range entries {
			if e.IsDir() && isAllDigits(e.Name()) {
				subdirs = append(subdirs, filepath.Join(driverDir, e.Name()))
			}
		}
	}
	if len(subdirs) == 0 {
		subdirs = []string{driverDir}
	}
	sort.Strings(subdirs)

	patterns := []string{
		"sbkernel" + targetDate[5:7] + targetDate[8:10] + ".log", // MMDD
		"sbkernel" + targetDate[2:4] + targetDate[5:7] + ".log",  // YYMM
		"sbkernel*.log",
	}

	var transactions []models.SberbankTransaction
	for _, dir := range subdirs {
		for _, path := range findLogFiles(dir, patterns) {
			a.log.Info("parsing Sberbank log", "file", filepath.Base(path))
			transactions = append(transactions, a.parseSberbankLog(path, targetDate)...)
		}
	}
	return transactions
}

func (a *PaymentAnalyzer) parseSberbankLog(path, targetDate string) []models.SberbankTransaction {
	lines, err := readLines(path)
	if err != nil {
		a.log.Error("reading Sberbank log", "file", path, "err", err)
		return nil
	}

	targetDayMonth := targetDate[8:10] + "." + targetDate[5:7]

	var transactions []models.SberbankTransaction
	i := 0
	for i < len(lines) {
		line := lines[i]
		if !strings.Contains(line, "SBKRNL:") || !strings.Contains(line, "Command = 4000") ||
			!strings.Contains(line, targetDayMonth) {
			i++
			continue
		}

		fields := map[string]string{}
		if m := sberTimeRegex.FindStringSubmatch(line); m != nil {
			fields["date"], fields["time"] = m[1], m[2]
		}
		if m := sberAmountRegex.FindStringSubmatch(line); m != nil {
			fields["amount"] = m[1]
		}
		if m := sberDeptRegex.FindStringSubmatch(line); m != nil {
			fields["department"] = m[1]
		}

		win := newLineWindow(lines, i+1, sberbankDataWindow)
		win.scan(func(_ int, l string) bool {
			if strings.Contains(l, "Version:") && !strings.Contains(l, "MSBuild") {
				if m := sberVersionRegex.FindStringSubmatch(l); m != nil {
					fields["version"] = m[1]
				}
			}
			if strings.Contains(l, "Result") && strings.Contains(l, "GUID") {
				if m := sberResultRegex.FindStringSubmatch(l); m != nil {
					fields["status"] = models.SberbankResultText(strings.TrimSpace(m[1]))
				}
				if m := sberGUIDRegex.FindStringSubmatch(l); m != nil {
					fields["guid"] = m[1]
				}
			}
			if m := sberCardRegex.FindStringSubmatch(l); m != nil {
				fields["card_last4"] = m[1]
			}
			return true
		})

		if hasAll(fields, "date", "time", "amount", "status") {
			transactions = append(transactions, models.SberbankTransaction{
				Timestamp:  fields["date"] + " " + fields["time"],
				Amount:     fields["amount"],
				Status:     fields["status"],
				Version:    fields["version"],
				CardLast4:  fields["card_last4"],
				GUID:       fields["guid"],
				Department: fields["department"],
			})
		}
		i = win.end()
	}
	return transactions
}

// findLogFiles tries each pattern in order and stops at the first one
// with matches; an empty result falls back to every *.log under dir.
func findLogFiles(dir string, patterns []string) []string {
	for _, pattern := range patterns {
		var matches []string
		filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if ok, _ := filepath.Match(pattern, d.Name()); ok {
				matches = append(matches, path)
			}
			return nil
		})
		if len(matches) > 0 {
			sort.Strings(matches)
			return matches
		}
	}

	var all []string
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), ".log") {
			all = append(all, path)
		}
		return nil
	})
	sort.Strings(all)
	return all
}

func hasAll(fields map[string]string, keys ...string) bool {
	for _, k := range keys {
		if fields[k] == "" {
			return false
		}
	}
	return true
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ValidDate reports whether the target date is in the YYYY-MM-DD form
// the window parsers slice by position.
func ValidDate(date string) bool {
	_, err := time.Parse("2006-01-02", date)
	return err == nil
}
