package analyzer

import (
	"encoding/xml"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/pos-insight/backend/internal/archive"
	"github.com/pos-insight/backend/internal/models"
)

// evtxMagic is the signature of a binary Windows event log file.
const evtxMagic = "ElfFile\x00"

// DefaultEventCodes is the fixed code set applied when no custom list is
// active.
var DefaultEventCodes = []string{"41", "55", "98", "7031", "7001", "7000"}

var (
	plainCodeRegex  = regexp.MustCompile(`(\d+)`)
	markerTailRegex = regexp.MustCompile(`:\s*(.+)`)
	contextCodeRx   = regexp.MustCompile(`(?:Event Code|Код события|Event ID|Идентификатор события):\s*(\d+)`)
	ctxTimeRegex    = regexp.MustCompile(`Event Time:\s*(.+)`)
	ctxLevelRegex   = regexp.MustCompile(`Level:\s*(.+)`)
	ctxSourceRegex  = regexp.MustCompile(`Source:\s*(.+)`)
	ctxDescRegex    = regexp.MustCompile(`Description:\s*(.+)`)
)

// OSEventAnalyzer parses Windows-style OS journals out of the archive's
// system_info directory, falling through binary → XML → plain text.
type OSEventAnalyzer struct {
	binary      BinaryLogReader
	customCodes []string
	useCustom   bool
	log         *slog.Logger
}

func NewOSEventAnalyzer(log *slog.Logger) *OSEventAnalyzer {
	if log == nil {
		log = slog.Default()
	}
	return &OSEventAnalyzer{
		binary: unavailableBinaryReader{},
		log:    log.With("component", "os_events"),
	}
}

// SetBinaryLogReader installs a native binary journal reader capability.
func (a *OSEventAnalyzer) SetBinaryLogReader(r BinaryLogReader) {
	if r != nil {
		a.binary = r
	}
}

// SetCustomPatterns installs a caller-supplied event-code list. When
// enabled it replaces the default set entirely; the two are never
// unioned.
func (a *OSEventAnalyzer) SetCustomPatterns(codes []string, use bool) {
	trimmed := make([]string, 0, len(codes))
	for _, c := range codes {
		if c = strings.TrimSpace(c); c != "" {
			trimmed = append(trimmed, c)
		}
	}
	a.customCodes = trimmed
	a.useCustom = use
}

// ActiveCodes returns the exclusive code set currently in effect.
func (a *OSEventAnalyzer) ActiveCodes() []string {
	if a.useCustom && len(a.customCodes) > 0 {
		return a.customCodes
	}
	return DefaultEventCodes
}

func (a *OSEventAnalyzer) codeAllowed(code string) bool {
	for _, c := range a.ActiveCodes() {
		if c == code {
			return true
		}
	}
	return false
}

// AnalyzeOSLogs locates the Application and System journals under the
// system-info directory and parses both. Returns application events,
// system events.
func (a *OSEventAnalyzer) AnalyzeOSLogs(systemInfoDir string) ([]models.OSEvent, []models.OSEvent) {
	appPath, sysPath := assignJournalRoles(archive.FindEventLogFiles(systemInfoDir))

	var appEvents, sysEvents []models.OSEvent
	if appPath != "" {
		appEvents = a.ParseEventFile(appPath, models.LogTypeApplication)
		a.log.Info("application journal parsed", "file", filepath.Base(appPath), "events", len(appEvents))
	} else {
		a.log.Warn("application journal not found")
	}
	if sysPath != "" {
		sysEvents = a.ParseEventFile(sysPath, models.LogTypeSystem)
		a.log.Info("system journal parsed", "file", filepath.Base(sysPath), "events", len(sysEvents))
	} else {
		a.log.Warn("system journal not found")
	}
	return appEvents, sysEvents
}

// assignJournalRoles decides which file is the Application journal and
// which the System one: filename substrings first, then a size/order
// fallback (files come sorted by size, largest first).
func assignJournalRoles(files []string) (appPath, sysPath string) {
	sort.Slice(files, func(i, j int) bool { return fileSize(files[i]) > fileSize(files[j]) })

	var leftovers []string
	for _, f := range files {
		name := strings.ToLower(filepath.Base(f))
		switch {
		case strings.Contains(name, "security") || strings.Contains(name, "безопасность"):
			// Security journal is out of scope.
		case appPath == "" && (strings.Contains(name, "application") || strings.Contains(name, "app") || strings.Contains(name, "приложение")):
			appPath = f
		case sysPath == "" && (strings.Contains(name, "system") || strings.Contains(name, "sys") || strings.Contains(name, "система")):
			sysPath = f
		default:
			leftovers = append(leftovers, f)
		}
	}
	for _, f := range leftovers {
		if appPath == "" {
			appPath = f
		} else if sysPath == "" {
			sysPath = f
		}
	}
	return appPath, sysPath
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// ParseEventFile parses one journal file, choosing the representation
// from its leading bytes.
func (a *OSEventAnalyzer) ParseEventFile(path, logType string) []models.OSEvent {
	raw, err := os.ReadFile(path)
	if err != nil {
		a.log.Error("reading journal", "file", path, "err", err)
		return nil
	}

	if len(raw) >= len(evtxMagic) && string(raw[:len(evtxMagic)]) == evtxMagic {
		if a.binary.Available() {
			return a.parseNativeBinary(path, logType)
		}
		a.log.Warn("binary journal without native reader, using text heuristic", "file", filepath.Base(path))
		return a.parseBinaryAsText(raw, logType)
	}

	content := decodeContent(raw)
	if strings.Contains(content, "<Event") && strings.Contains(content, "<System>") {
		return a.parseXMLEvents(content, logType)
	}
	return a.ParsePlainTextEvents(content, logType)
}

func (a *OSEventAnalyzer) parseNativeBinary(path, logType string) []models.OSEvent {
	fragments, err := a.binary.Records(path)
	if err != nil {
		a.log.Error("native binary reader failed", "file", path, "err", err)
		return nil
	}
	var events []models.OSEvent
	for _, frag := range fragments {
		if ev, ok := a.parseXMLEvent(frag, logType); ok {
			events = append(events, ev)
		}
	}
	return events
}

// xmlEventRecord mirrors the journal's event XML. Namespaces are matched
// by local name.
type xmlEventRecord struct {
	System struct {
		Provider struct {
			Name string `xml:"Name,attr"`
		} `xml:"Provider"`
		EventID     string `xml:"EventID"`
		Level       string `xml:"Level"`
		TimeCreated struct {
			SystemTime string `xml:"SystemTime,attr"`
		} `xml:"TimeCreated"`
	} `xml:"System"`
	EventData struct {
		Data []string `xml:"Data"`
	} `xml:"EventData"`
}

// parseXMLEvents splits the document on event boundaries and parses each
// fragment independently; a malformed fragment is skipped, not fatal.
func (a *OSEventAnalyzer) parseXMLEvents(content, logType string) []models.OSEvent {
	var events []models.OSEvent
	rest := content
	for {
		start := indexEventStart(rest)
		if start < 0 {
			break
		}
		end := strings.Index(rest[start:], "</Event>")
		if end < 0 {
			break
		}
		end += start + len("</Event>")
		if ev, ok := a.parseXMLEvent(rest[start:end], logType); ok {
			events = append(events, ev)
		}
		rest = rest[end:]
	}
	return events
}

// indexEventStart finds the next <Event> start tag. The tag name must
// end at the match, otherwise wrapper elements such as <Events> would
// swallow the first record of the document.
func indexEventStart(s string) int {
	off := 0
	for {
		i := strings.Index(s[off:], "<Event")
		if i < 0 {
			return -1
		}
		i += off
		next := i + len("<Event")
		if next >= len(s) {
			return -1
		}
		switch s[next] {
		case ' ', '\t', '\r', '\n', '>', '/':
			return i
		}
		off = next
	}
}

func (a *OSEventAnalyzer) parseXMLEvent(fragment, logType string) (models.OSEvent, bool) {
	var rec xmlEventRecord
	if err := xml.Unmarshal([]byte(fragment), &rec); err != nil {
		a.log.Debug("skipping malformed event fragment", "err", err)
		return models.OSEvent{}, false
	}

	code := strings.TrimSpace(rec.System.EventID)
	if code == "" {
		code = "0"
	}
	if !a.codeAllowed(code) {
		return models.OSEvent{}, false
	}

	levelNum, _ := strconv.Atoi(strings.TrimSpace(rec.System.Level))
	source := rec.System.Provider.Name
	if source == "" {
		source = "Неизвестно"
	}

	var parts []string
	for _, d := range rec.EventData.Data {
		if d = strings.TrimSpace(d); d != "" {
			parts = append(parts, d)
		}
	}

	return models.OSEvent{
		Timestamp:   normalizeEventTime(rec.System.TimeCreated.SystemTime),
		Level:       models.EventLevelText(levelNum),
		EventCode:   code,
		Source:      source,
		Description: strings.Join(parts, " | "),
		LogType:     logType,
	}, true
}

// normalizeEventTime reduces an ISO-ish journal timestamp to the fixed
// display format. Unparseable values pass through untouched.
func normalizeEventTime(ts string) string {
	if ts == "" {
		return "Неизвестно"
	}
	if !strings.Contains(ts, "T") {
		return ts
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.Format("2006-01-02 15:04:05")
		}
	}
	return ts
}

// ParsePlainTextEvents is the line-oriented state machine over textual
// journal exports. A code marker opens a record; the description marker
// closes it; a trailing in-flight record is flushed at end of input.
func (a *OSEventAnalyzer) ParsePlainTextEvents(content, logType string) []models.OSEvent {
	var events []models.OSEvent
	current := map[string]string{}
	inEvent := false

	flush := func() {
		if !inEvent || current["code"] == "" {
			return
		}
		if ev, ok := a.eventFromFields(current, logType); ok {
			events = append(events, ev)
		}
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.Contains(line, "Event Code:") || strings.Contains(line, "Код события:"):
			flush()
			current = map[string]string{}
			inEvent = true
			if m := plainCodeRegex.FindStringSubmatch(line); m != nil {
				current["code"] = m[1]
			}
		case strings.Contains(line, "Event Time:") || strings.Contains(line, "Время события:"):
			if m := markerTailRegex.FindStringSubmatch(line); m != nil {
				current["time"] = strings.TrimSpace(m[1])
			}
		case strings.Contains(line, "Event Type:") || strings.Contains(line, "Тип события:") ||
			strings.Contains(line, "Level:") || strings.Contains(line, "Уровень:"):
			if m := markerTailRegex.FindStringSubmatch(line); m != nil {
				current["level"] = convertLevelText(strings.TrimSpace(m[1]))
			}
		case strings.Contains(line, "Source:") || strings.Contains(line, "Источник:"):
			if m := markerTailRegex.FindStringSubmatch(line); m != nil {
				current["source"] = strings.TrimSpace(m[1])
			}
		case strings.Contains(line, "Description:") || strings.Contains(line, "Описание:"):
			if m := markerTailRegex.FindStringSubmatch(line); m != nil {
				current["description"] = strings.TrimSpace(m[1])
			}
			flush()
			inEvent = false
			current = map[string]string{}
		}
	}
	flush()
	return events
}

func (a *OSEventAnalyzer) eventFromFields(fields map[string]string, logType string) (models.OSEvent, bool) {
	code := fields["code"]
	if code == "" {
		code = "0"
	}
	if !a.codeAllowed(code) {
		return models.OSEvent{}, false
	}
	ev := models.OSEvent{
		Timestamp:   fields["time"],
		Level:       fields["level"],
		EventCode:   code,
		Source:      fields["source"],
		Description: fields["description"],
		LogType:     logType,
	}
	if ev.Timestamp == "" {
		ev.Timestamp = "Неизвестно"
	}
	if ev.Level == "" {
		ev.Level = models.LevelInformation
	}
	if ev.Source == "" {
		ev.Source = "Неизвестно"
	}
	return ev, true
}

// parseBinaryAsText is the degraded path for binary journals without the
// native capability: the raw bytes are decoded as text and code markers
// are located with a context window around each hit.
func (a *OSEventAnalyzer) parseBinaryAsText(raw []byte, logType string) []models.OSEvent {
	content := decodeContent(raw)

	var events []models.OSEvent
	for _, loc := range contextCodeRx.FindAllStringSubmatchIndex(content, -1) {
		code := content[loc[2]:loc[3]]
		if !a.codeAllowed(code) {
			continue
		}

		start := loc[0] - 500
		if start < 0 {
			start = 0
		}
		end := loc[1] + 500
		if end > len(content) {
			end = len(content)
		}
		context := content[start:end]

		fields := map[string]string{"code": code}
		if m := ctxTimeRegex.FindStringSubmatch(context); m != nil {
			fields["time"] = strings.TrimSpace(m[1])
		}
		if m := ctxLevelRegex.FindStringSubmatch(context); m != nil {
			fields["level"] = convertLevelText(strings.TrimSpace(m[1]))
		}
		if m := ctxSourceRegex.FindStringSubmatch(context); m != nil {
			fields["source"] = strings.TrimSpace(m[1])
		}
		if m := ctxDescRegex.FindStringSubmatch(context); m != nil {
			fields["description"] = strings.TrimSpace(m[1])
		}
		if ev, ok := a.eventFromFields(fields, logType); ok {
			events = append(events, ev)
		}
	}
	return events
}

// convertLevelText maps a textual (possibly localized) level to the
// fixed display values; unrecognized text passes through.
func convertLevelText(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "critical") || strings.Contains(lower, "критич"):
		return models.LevelCritical
	case strings.Contains(lower, "error") || strings.Contains(lower, "ошибка"):
		return models.LevelError
	case strings.Contains(lower, "warning") || strings.Contains(lower, "предупреждение"):
		return models.LevelWarning
	case strings.Contains(lower, "information") || strings.Contains(lower, "информация"):
		return models.LevelInformation
	default:
		return text
	}
}

func decodeContent(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	decoded, err := charmap.Windows1251.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}
