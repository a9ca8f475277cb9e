package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/pos-insight/backend/internal/analyzer"
	"github.com/pos-insight/backend/internal/models"
)

const bannerWidth = 60

// Table headers reused by the export dumps. Column order mirrors the
// corresponding TableRow implementations in internal/models.
const (
	HeaderReceipts    = "Время       | Статус печати  | Сумма       | Тип чека     | № операции | Тип опер. | Способ оплаты   | РНМ"
	HeaderScans       = "Время       | Результат"
	HeaderMarkingInfo = "Время       | КМ | Статус | Продажа | Продано | Всего | Срок годности | Владелец | Прослеживаемость"
	HeaderConnection  = "Время       | Сообщение"
	HeaderCredentials = "Время       | Закодированные данные | Раскодированные данные"
	HeaderOpening     = "Время       | КМ | Литраж | Срок годности | Дата вскрытия"
	HeaderOSEvents    = "Дата и время           | Уровень       | Код события | Источник | Журнал"
)

// RunHeader is the banner that opens every export dump.
func RunHeader(title string, now time.Time) string {
	var b strings.Builder
	banner := strings.Repeat("=", bannerWidth)
	b.WriteString(banner + "\n")
	b.WriteString(title + "\n")
	b.WriteString(banner + "\n\n")
	fmt.Fprintf(&b, "Дата анализа: %s\n\n", now.Format("2006-01-02 15:04:05"))
	return b.String()
}

// ExportGeneralAnalysis produces the full, untruncated support-log dump.
func ExportGeneralAnalysis(result *analyzer.GeneralAnalysis, now time.Time) string {
	var b strings.Builder
	b.WriteString(RunHeader("АНАЛИЗ ЛОГОВ ПОДДЕРЖКИ ОБОРУДОВАНИЯ", now))

	fmt.Fprintf(&b, "Версия прошивки ККТ: %s\n\n", result.FirmwareVersion)

	b.WriteString("СТАТИСТИКА:\n")
	fmt.Fprintf(&b, "- Всего записей: %d\n", result.Summary.TotalEntries)
	fmt.Fprintf(&b, "- Ошибок: %d\n", result.Summary.Errors)
	fmt.Fprintf(&b, "- Предупреждений: %d\n", result.Summary.Warnings)
	fmt.Fprintf(&b, "- Файлов просканировано: %d\n\n", result.Summary.FilesScanned)

	if len(result.Entries) == 0 {
		b.WriteString("Записей логов не найдено.\n")
		return b.String()
	}

	b.WriteString("ДЕТАЛЬНЫЕ ЛОГИ:\n")
	b.WriteString(strings.Repeat("=", 80) + "\n")
	for _, e := range result.Entries {
		b.WriteString(e.ExportRow() + "\n")
	}
	return b.String()
}

// ExportTable produces an untruncated dump of any record sequence under
// a run header. Used by the per-domain export endpoints.
func ExportTable(title string, header string, records []models.Record, now time.Time) string {
	var b strings.Builder
	b.WriteString(RunHeader(title, now))
	fmt.Fprintf(&b, "Всего записей: %d\n\n", len(records))

	if len(records) == 0 {
		b.WriteString("Записей не найдено.\n")
		return b.String()
	}

	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("-", len([]rune(header))) + "\n")
	for _, r := range records {
		b.WriteString(strings.Join(r.TableRow(), " | ") + "\n")
	}
	return b.String()
}
