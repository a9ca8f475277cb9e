package analyzer

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/pos-insight/backend/internal/models"
)

// ScanEngine selects which physical log family the scan analysis reads.
// The two families use different markers and are mutually exclusive per
// invocation.
type ScanEngine string

const (
	EngineDevices ScanEngine = "devices"
	EngineConsole ScanEngine = "console"
)

const (
	devicesScanMarker = "From the scanner the code is read:"
	consoleScanMarker = "Событие от сканера -"
	infoResultMarker  = "[PCC|OnlineModule] Result native: Http code: 200"
	connectionMarker  = "Нет подключения к локальному модулю"
	openingCallMarker = "RetailOpeningBuffer.Insert/1("
)

var (
	devicesScanRegex = regexp.MustCompile(devicesScanMarker + `\s*([^\s]+)`)
	consoleScanRegex = regexp.MustCompile(consoleScanMarker + `\s*([^\s]+)`)
	basicAuthRegex   = regexp.MustCompile(`AUTHORIZATION:\s*Basic\s*([a-zA-Z0-9+/=]+)`)
	responseRegex    = regexp.MustCompile(`Response:\s*({.*?})$`)
	openingJSONRegex = regexp.MustCompile(`RetailOpeningBuffer\.Insert/1\(({.*?})\);\)`)
)

// markingInfoResponse is the shape of the marking-module HTTP response
// embedded in a result line.
type markingInfoResponse struct {
	Codes []struct {
		CIS            string `json:"cis"`
		Realizable     bool   `json:"realizable"`
		Sold           bool   `json:"sold"`
		SoldUnitCount  *int   `json:"soldUnitCount"`
		InnerUnitCount *int   `json:"innerUnitCount"`
		ExpireDate     string `json:"expireDate"`
		IsOwner        bool   `json:"isOwner"`
		IsTracking     bool   `json:"isTracking"`
	} `json:"codes"`
}

// MarkingAnalyzer runs the five marking-subsystem extraction modes over
// one located log directory.
type MarkingAnalyzer struct {
	log *slog.Logger
}

func NewMarkingAnalyzer(log *slog.Logger) *MarkingAnalyzer {
	if log == nil {
		log = slog.Default()
	}
	return &MarkingAnalyzer{log: log.With("component", "marking")}
}

// AnalyzeScans extracts every scanned marking code using the selected
// engine's log family and marker.
func (a *MarkingAnalyzer) AnalyzeScans(logDir string, engine ScanEngine) []models.MarkingScanResult {
	var (
		files  []string
		rx     *regexp.Regexp
		marker string
		junk   string
	)
	switch engine {
	case EngineConsole:
		files = listFilesBySuffix(logDir, "_UI-console.log")
		rx, marker, junk = consoleScanRegex, consoleScanMarker, "-"
	default:
		files = listFilesBySuffix(logDir, eventFileSuffixes...)
		rx, marker, junk = devicesScanRegex, devicesScanMarker, ":"
	}

	var results []models.MarkingScanResult
	for _, path := range files {
		src := baseName(path)
		scanLines(path, func(line string) bool {
			if !strings.Contains(line, marker) {
				return true
			}
			m := rx.FindStringSubmatch(line)
			if m == nil {
				return true
			}
			code := strings.TrimSpace(m[1])
			if code == "" || code == junk {
				return true
			}
			results = append(results, models.MarkingScanResult{
				Timestamp:   extractTimestamp(line),
				ScannedCode: code,
				SourceFile:  src,
			})
			return true
		})
	}
	return results
}

// AnalyzeMarkingInfo extracts the marking-module response for each CIS
// status query. A line whose embedded JSON does not parse is skipped.
func (a *MarkingAnalyzer) AnalyzeMarkingInfo(logDir string) ([]models.MarkingInfoResult, []models.ParseSkip) {
	var results []models.MarkingInfoResult
	var skips []models.ParseSkip

	for _, path := range listFilesBySuffix(logDir, eventFileSuffixes...) {
		src := baseName(path)
		scanLines(path, func(line string) bool {
			if !strings.Contains(line, infoResultMarker) {
				return true
			}
			m := responseRegex.FindStringSubmatch(line)
			if m == nil {
				return true
			}
			var resp markingInfoResponse
			if err := json.Unmarshal([]byte(m[1]), &resp); err != nil {
				skips = append(skips, models.ParseSkip{File: src, Reason: "malformed response JSON: " + err.Error()})
				a.log.Debug("skipping malformed response", "file", src, "err", err)
				return true
			}
			if len(resp.Codes) == 0 || resp.Codes[0].CIS == "" {
				return true
			}
			code := resp.Codes[0]
			results = append(results, models.MarkingInfoResult{
				Timestamp:      extractTimestamp(line),
				CIS:            code.CIS,
				Realizable:     code.Realizable,
				Sold:           code.Sold,
				SoldUnitCount:  code.SoldUnitCount,
				InnerUnitCount: code.InnerUnitCount,
				ExpireDate:     code.ExpireDate,
				IsOwner:        code.IsOwner,
				IsTracking:     code.IsTracking,
				SourceFile:     src,
			})
			return true
		})
	}
	return results, skips
}

// AnalyzeConnectionIssues finds marking-module connectivity failures.
func (a *MarkingAnalyzer) AnalyzeConnectionIssues(logDir string) []models.ConnectionIssueResult {
	var results []models.ConnectionIssueResult
	for _, path := range listFilesBySuffix(logDir, eventFileSuffixes...) {
		src := baseName(path)
		scanLines(path, func(line string) bool {
			if strings.Contains(line, connectionMarker) {
				results = append(results, models.ConnectionIssueResult{
					Timestamp:  extractTimestamp(line),
					Message:    connectionMarker,
					SourceFile: src,
				})
			}
			return true
		})
	}
	return results
}

// AnalyzeLoginPassword captures Basic-auth tokens, decodes them, and
// deduplicates by the raw encoded token across the whole run. Decode
// failures become a placeholder message rather than aborting.
func (a *MarkingAnalyzer) AnalyzeLoginPassword(logDir string) []models.LoginPasswordResult {
	var results []models.LoginPasswordResult
	seen := make(map[string]bool)

	for _, path := range listFilesBySuffix(logDir, eventFileSuffixes...) {
		src := baseName(path)
		scanLines(path, func(line string) bool {
			m := basicAuthRegex.FindStringSubmatch(line)
			if m == nil {
				return true
			}
			encoded := m[1]
			if seen[encoded] {
				return true
			}
			seen[encoded] = true

			decoded := ""
			if raw, err := base64.StdEncoding.DecodeString(encoded); err != nil {
				decoded = fmt.Sprintf("Ошибка декодирования: %v", err)
			} else {
				decoded = string(raw)
			}
			results = append(results, models.LoginPasswordResult{
				Timestamp:   extractTimestamp(line),
				EncodedAuth: encoded,
				DecodedAuth: decoded,
				SourceFile:  src,
			})
			return true
		})
	}
	return results
}

// AnalyzeOpeningCheck extracts tamper-check buffer inserts from the main
// service logs. The payload is a positional list: [3] CIS, [4] volume,
// [7] expiration date, [8] connection date.
func (a *MarkingAnalyzer) AnalyzeOpeningCheck(logDir string) ([]models.OpeningCheckResult, []models.ParseSkip) {
	var results []models.OpeningCheckResult
	var skips []models.ParseSkip

	for _, path := range listMainServiceFiles(logDir) {
		src := baseName(path)
		scanLines(path, func(line string) bool {
			if !strings.Contains(line, openingCallMarker) || !strings.Contains(line, "SerialNumber") {
				return true
			}
			m := openingJSONRegex.FindStringSubmatch(line)
			if m == nil {
				return true
			}
			var payload struct {
				D []json.RawMessage `json:"d"`
			}
			if err := json.Unmarshal([]byte(m[1]), &payload); err != nil {
				skips = append(skips, models.ParseSkip{File: src, Reason: "malformed opening payload: " + err.Error()})
				a.log.Debug("skipping malformed opening payload", "file", src, "err", err)
				return true
			}
			if len(payload.D) < 9 {
				return true
			}

			cis := rawString(payload.D[3])
			if cis == "" || cis == "null" {
				return true
			}
			result := models.OpeningCheckResult{
				Timestamp:      extractTimestamp(line),
				CIS:            cis,
				Volume:         rawFloat(payload.D[4]),
				ExpirationDate: rawString(payload.D[7]),
				ConnectionDate: rawString(payload.D[8]),
				SourceFile:     src,
			}
			results = append(results, result)
			return true
		})
	}
	return results, skips
}

// listMainServiceFiles matches the dated main-service event logs
// (names start with the year prefix the collector stamps on them).
func listMainServiceFiles(logDir string) []string {
	var files []string
	for _, path := range listFilesBySuffix(logDir, "-events.log") {
		name := baseName(path)
		if strings.HasPrefix(name, "202") && strings.Contains(name, "_MainService-events") {
			files = append(files, path)
		}
	}
	return files
}

func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.Trim(string(raw), `"`)
}

func rawFloat(raw json.RawMessage) float64 {
	var f float64
	json.Unmarshal(raw, &f)
	return f
}
