// Package report renders analysis records into the tabular text the
// support operators read. Tables are pipe-delimited with a bounded
// preview; the export dumps in export.go are untruncated.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pos-insight/backend/internal/analyzer"
	"github.com/pos-insight/backend/internal/models"
)

// Preview caps. The wide marking-info and OS journal tables show fewer
// rows than the narrow ones.
const (
	previewWide    = 50
	previewDefault = 100
)

// FormatGeneralAnalysis renders the general support-log analysis.
func FormatGeneralAnalysis(result *analyzer.GeneralAnalysis) string {
	var b strings.Builder

	fmt.Fprintf(&b, "ПО ККТ: %q\n\n", result.FirmwareVersion)

	b.WriteString("=== СТАТИСТИКА АНАЛИЗА ===\n")
	fmt.Fprintf(&b, "• Всего записей: %d\n", result.Summary.TotalEntries)
	fmt.Fprintf(&b, "• Ошибок: %d\n", result.Summary.Errors)
	fmt.Fprintf(&b, "• Предупреждений: %d\n", result.Summary.Warnings)
	fmt.Fprintf(&b, "• Просканировано файлов: %d\n\n", result.Summary.FilesScanned)

	if len(result.Entries) == 0 {
		b.WriteString("Записей логов не найдено")
		return b.String()
	}

	b.WriteString("=== ТАБЛИЦА ЛОГОВ ===\n")
	b.WriteString("Время       | Тип     | Содержание\n")
	b.WriteString(divider(80))
	for _, e := range preview(result.Entries, previewDefault) {
		fmt.Fprintf(&b, "%s | %-8s | %s\n", e.Timestamp, e.LogType, e.Content)
	}
	writeMore(&b, len(result.Entries), previewDefault, "записей")

	return strings.TrimRight(b.String(), "\n")
}

// FormatReceiptOperations renders the receipt-operation table with the
// sale/return totals footer.
func FormatReceiptOperations(operations []models.ReceiptOperation) string {
	if len(operations) == 0 {
		return "Операций с чеками не найдено"
	}

	var b strings.Builder
	b.WriteString("=== ОПЕРАЦИИ С ЧЕКАМИ ===\n\n")
	b.WriteString(HeaderReceipts + "\n")
	b.WriteString(divider(120))

	for _, op := range preview(operations, previewDefault) {
		fmt.Fprintf(&b, "%s | %-12s | %-10s | %-12s | %-8s | %-10s | %-15s | %s\n",
			op.Timestamp, op.PrintStatus, op.Amount, op.FiscalType,
			op.SaleNumber, op.OperationType, op.PaymentMethod, op.RegNumber)
	}
	writeMore(&b, len(operations), previewDefault, "записей")

	saleCount, returnCount, unknownCount := 0, 0, 0
	for _, op := range operations {
		switch {
		case strings.Contains(op.SaleNumber, "Продажа:"):
			saleCount++
		case strings.Contains(op.SaleNumber, "Возврат:"):
			returnCount++
		case strings.Contains(op.SaleNumber, models.PlaceholderUndetermined):
			unknownCount++
		}
	}
	fmt.Fprintf(&b, "\nКоличество операций: %d (Продажи: %d, Возвраты: %d", len(operations), saleCount, returnCount)
	if unknownCount > 0 {
		fmt.Fprintf(&b, ", Не определено: %d", unknownCount)
	}
	b.WriteString(")")

	return b.String()
}

// FormatScans renders scanned marking codes.
func FormatScans(results []models.MarkingScanResult) string {
	if len(results) == 0 {
		return "Сканирований не найдено"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Найдено сканирований: %d\n\n", len(results))
	b.WriteString(HeaderScans + "\n")
	b.WriteString(divider(50))
	for _, r := range preview(results, previewDefault) {
		fmt.Fprintf(&b, "%s | %s\n", r.Timestamp, r.ScannedCode)
	}
	writeMore(&b, len(results), previewDefault, "записей")
	return strings.TrimRight(b.String(), "\n")
}

// FormatMarkingInfo renders CIS status responses. CIS codes are long;
// the table shows a truncated prefix.
func FormatMarkingInfo(results []models.MarkingInfoResult) string {
	if len(results) == 0 {
		return "Информации по КМ не найдено"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Найдено записей информации по КМ: %d\n\n", len(results))
	b.WriteString(HeaderMarkingInfo + "\n")
	b.WriteString(divider(120))
	for _, r := range preview(results, previewWide) {
		row := r.TableRow()
		row[1] = truncate(r.CIS, 15)
		b.WriteString(strings.Join(row, " | "))
		b.WriteByte('\n')
	}
	writeMore(&b, len(results), previewWide, "записей")
	return strings.TrimRight(b.String(), "\n")
}

// FormatConnectionIssues renders marking-module connectivity failures.
func FormatConnectionIssues(results []models.ConnectionIssueResult) string {
	if len(results) == 0 {
		return "Проблем подключения не найдено"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Найдено проблем подключения: %d\n\n", len(results))
	b.WriteString(HeaderConnection + "\n")
	b.WriteString(divider(80))
	for _, r := range preview(results, previewDefault) {
		fmt.Fprintf(&b, "%s | %s\n", r.Timestamp, r.Message)
	}
	writeMore(&b, len(results), previewDefault, "записей")
	return strings.TrimRight(b.String(), "\n")
}

// FormatLoginPassword renders captured credentials. The set is already
// deduplicated and small, so it is never truncated.
func FormatLoginPassword(results []models.LoginPasswordResult) string {
	if len(results) == 0 {
		return "Данных авторизации не найдено"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Найдено уникальных авторизаций: %d\n\n", len(results))
	b.WriteString(HeaderCredentials + "\n")
	b.WriteString(divider(100))
	for _, r := range results {
		fmt.Fprintf(&b, "%s | %s | %s\n", r.Timestamp, r.EncodedAuth, r.DecodedAuth)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatOpeningCheck renders tamper-check records.
func FormatOpeningCheck(results []models.OpeningCheckResult) string {
	if len(results) == 0 {
		return "Данных вскрытия не найдено"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Найдено записей вскрытия: %d\n\n", len(results))
	b.WriteString(HeaderOpening + "\n")
	b.WriteString(divider(80))
	for _, r := range preview(results, previewDefault) {
		row := r.TableRow()
		row[1] = truncate(r.CIS, 20)
		b.WriteString(strings.Join(row, " | "))
		b.WriteByte('\n')
	}
	writeMore(&b, len(results), previewDefault, "записей")
	return strings.TrimRight(b.String(), "\n")
}

// FormatOSEvents renders both OS journals with the per-level statistics
// block. The active code set is echoed when a custom list was applied.
func FormatOSEvents(appEvents, sysEvents []models.OSEvent, activeCodes []string, customUsed bool) string {
	total := len(appEvents) + len(sysEvents)

	var b strings.Builder
	b.WriteString("=== АНАЛИЗ ЖУРНАЛОВ ОС WINDOWS ===\n\n")
	fmt.Fprintf(&b, "Всего событий найдено: %d\n", total)
	fmt.Fprintf(&b, "• Журнал приложения: %d событий\n", len(appEvents))
	fmt.Fprintf(&b, "• Журнал системы: %d событий\n\n", len(sysEvents))

	if customUsed {
		fmt.Fprintf(&b, "Использованные коды событий: %s\n\n", strings.Join(activeCodes, ", "))
	}

	if total == 0 {
		b.WriteString("Событий не найдено.\nВозможные причины:\n")
		b.WriteString("1. Файлы журналов отсутствуют в архиве\n")
		b.WriteString("2. Журналы не содержат событий с выбранными кодами\n")
		b.WriteString("3. Формат файлов журналов не поддерживается")
		return b.String()
	}

	b.WriteString("=== ЖУРНАЛ ПРИЛОЖЕНИЯ ===\n\n")
	writeJournal(&b, appEvents)
	b.WriteString("\n\n=== ЖУРНАЛ СИСТЕМЫ ===\n\n")
	writeJournal(&b, sysEvents)

	b.WriteString("\n=== СТАТИСТИКА ПО УРОВНЯМ ===\n\n")
	writeLevelStats(&b, appEvents, sysEvents)

	return strings.TrimRight(b.String(), "\n")
}

func writeJournal(b *strings.Builder, events []models.OSEvent) {
	if len(events) == 0 {
		b.WriteString("Событий не найдено\n")
		return
	}
	b.WriteString("Дата и время           | Уровень       | Код события | Источник\n")
	b.WriteString(divider(80))
	for _, ev := range preview(events, previewWide) {
		fmt.Fprintf(b, "%-20s | %-13s | %-11s | %s\n", ev.Timestamp, ev.Level, ev.EventCode, ev.Source)
	}
	writeMore(b, len(events), previewWide, "событий")
}

func writeLevelStats(b *strings.Builder, appEvents, sysEvents []models.OSEvent) {
	total := len(appEvents) + len(sysEvents)
	stats := map[string]int{}
	for _, ev := range appEvents {
		stats[ev.Level]++
	}
	for _, ev := range sysEvents {
		stats[ev.Level]++
	}

	levels := make([]string, 0, len(stats))
	for level := range stats {
		levels = append(levels, level)
	}
	sort.Slice(levels, func(i, j int) bool {
		if stats[levels[i]] != stats[levels[j]] {
			return stats[levels[i]] > stats[levels[j]]
		}
		return levels[i] < levels[j]
	})
	for _, level := range levels {
		pct := float64(stats[level]) / float64(total) * 100
		fmt.Fprintf(b, "• %s: %d (%.1f%%)\n", level, stats[level], pct)
	}
}

// FormatDrivers renders the detected-driver overview.
func FormatDrivers(drivers []models.TerminalDriverInfo) string {
	if len(drivers) == 0 {
		return "Драйверы терминалов не найдены"
	}

	var b strings.Builder
	b.WriteString("=== ОБНАРУЖЕННЫЕ ДРАЙВЕРЫ ТЕРМИНАЛОВ ===\n\n")
	for _, d := range drivers {
		fmt.Fprintf(&b, "• %s\n", d.Text())
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatInpasTransactions renders INPAS purchase receipts.
func FormatInpasTransactions(transactions []models.InpasTransaction) string {
	if len(transactions) == 0 {
		return "Транзакции INPAS не найдены"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "=== ТРАНЗАКЦИИ INPAS (%d) ===\n\n", len(transactions))
	b.WriteString("Дата и время        | Сумма    | Терминал  | Статус    | Банк                 | Тип карты      | Код авторизации | RRN\n")
	b.WriteString(divider(120))
	for _, tx := range preview(transactions, previewDefault) {
		fmt.Fprintf(&b, "%-19s | %-8s | %-9s | %-9s | %-20s | %-14s | %-15s | %s\n",
			tx.Timestamp, tx.Amount, tx.Terminal, tx.Status,
			truncate(tx.Bank, 20), tx.CardType, tx.AuthCode, tx.RRN)
	}
	writeMore(&b, len(transactions), previewDefault, "транзакций")
	return strings.TrimRight(b.String(), "\n")
}

// FormatSberbankTransactions renders Sberbank-family payments.
func FormatSberbankTransactions(transactions []models.SberbankTransaction) string {
	if len(transactions) == 0 {
		return "Транзакции Сбербанка не найдены"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "=== ТРАНЗАКЦИИ СБЕРБАНКА (%d) ===\n\n", len(transactions))
	b.WriteString("Дата и время        | Сумма    | Статус              | Версия   | Карта | GUID       | Отдел\n")
	b.WriteString(divider(100))
	for _, tx := range preview(transactions, previewDefault) {
		fmt.Fprintf(&b, "%-19s | %-8s | %-19s | %-8s | %-5s | %-10s | %s\n",
			tx.Timestamp, tx.Amount, tx.Status, tx.Version, tx.CardLast4, tx.GUID, tx.Department)
	}
	writeMore(&b, len(transactions), previewDefault, "транзакций")
	return strings.TrimRight(b.String(), "\n")
}

// preview returns at most cap leading elements.
func preview[T any](items []T, limit int) []T {
	if len(items) > limit {
		return items[:limit]
	}
	return items
}

func writeMore(b *strings.Builder, total, limit int, noun string) {
	if total > limit {
		fmt.Fprintf(b, "... и еще %d %s\n", total-limit, noun)
	}
}

func divider(n int) string {
	return strings.Repeat("-", n) + "\n"
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
