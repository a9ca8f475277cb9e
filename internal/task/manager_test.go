// manager_test.go - Tests for the background analysis task manager
package task

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pos-insight/backend/internal/models"
	"github.com/pos-insight/backend/internal/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// waitForTask polls until the task leaves the running states.
func waitForTask(t *testing.T, m *Manager, taskID string) *models.AnalysisTask {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		task, err := m.GetTask(taskID)
		if err != nil {
			t.Fatalf("GetTask: %v", err)
		}
		if task.Status == models.TaskStatusComplete || task.Status == models.TaskStatusError {
			return task
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("Task %s did not finish in time", taskID)
	return nil
}

func TestManager_SupportAnalysis(t *testing.T) {
	archivePath := testutil.NewArchiveBuilder().
		AddDatedLog("20240115", "pos_Devices-errors.log",
			"10:15:30.123 ERROR printer offline\n"+
				"10:16:00.500 INFO normal operation\n").
		AddDatedLog("20240115", "pos_Devices-events.log",
			`10:00:01.000 INFO device info {"FirmwareVersionUnified":"5.8.100"}`+"\n"+
				"10:20:45.999 WARNING paper low\n").
		BuildZip(t)

	m := NewManager(t.TempDir(), testLogger())
	task, err := m.StartAnalysis("arch-1", archivePath, models.KindSupport, Options{
		Date:            "2024-01-15",
		IncludeWarnings: true,
	})
	if err != nil {
		t.Fatalf("StartAnalysis: %v", err)
	}
	if task.Status != models.TaskStatusPending {
		t.Errorf("Expected pending status, got %s", task.Status)
	}

	done := waitForTask(t, m, task.ID)
	if done.Status != models.TaskStatusComplete {
		t.Fatalf("Expected complete status, got %s (error: %s)", done.Status, done.Error)
	}
	if done.Stage != models.StageDone {
		t.Errorf("Expected stage done, got %s", done.Stage)
	}
	if done.Progress != 100 {
		t.Errorf("Expected progress 100, got %f", done.Progress)
	}
	if done.RecordCount != 2 {
		t.Errorf("Expected 2 records, got %d", done.RecordCount)
	}

	result, err := m.GetResult(task.ID)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if len(result.Records) != 2 {
		t.Errorf("Expected 2 records in result, got %d", len(result.Records))
	}
	if !strings.Contains(result.Text, `ПО ККТ: "5.8.100"`) {
		t.Errorf("Expected firmware version in text, got:\n%s", result.Text)
	}
	if !strings.Contains(result.Text, "printer offline") {
		t.Errorf("Expected error entry in text, got:\n%s", result.Text)
	}
	if !strings.Contains(result.Export, "АНАЛИЗ ЛОГОВ ПОДДЕРЖКИ ОБОРУДОВАНИЯ") {
		t.Errorf("Expected export header, got:\n%s", result.Export)
	}
}

func TestManager_EmptyDateCompletesWithEmptyResult(t *testing.T) {
	// Archive holds logs for a different date than the one requested.
	archivePath := testutil.NewArchiveBuilder().
		AddDatedLog("20240110", "pos_Devices-errors.log", "10:00:00.000 ERROR x\n").
		BuildZip(t)

	m := NewManager(t.TempDir(), testLogger())
	task, err := m.StartAnalysis("arch-1", archivePath, models.KindSupport, Options{Date: "2024-01-15"})
	if err != nil {
		t.Fatalf("StartAnalysis: %v", err)
	}

	done := waitForTask(t, m, task.ID)
	if done.Status != models.TaskStatusComplete {
		t.Fatalf("Expected complete status, got %s (error: %s)", done.Status, done.Error)
	}
	if done.RecordCount != 0 {
		t.Errorf("Expected 0 records, got %d", done.RecordCount)
	}

	result, err := m.GetResult(task.ID)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if !strings.Contains(result.Text, "Записей логов не найдено") {
		t.Errorf("Expected empty-result text, got:\n%s", result.Text)
	}
}

func TestManager_OSEventsAnalysis(t *testing.T) {
	plaintext := "Код события: 41\n" +
		"Время события: 2024-01-15 08:15:30\n" +
		"Уровень: 1\n" +
		"Источник: Microsoft-Windows-Kernel-Power\n" +
		"Описание: система перезагрузилась без корректного завершения работы\n" +
		"\n"
	archivePath := testutil.NewArchiveBuilder().
		AddSystemInfo("system_events.evtx", plaintext).
		BuildZip(t)

	m := NewManager(t.TempDir(), testLogger())
	task, err := m.StartAnalysis("arch-1", archivePath, models.KindOSEvents, Options{Date: "2024-01-15"})
	if err != nil {
		t.Fatalf("StartAnalysis: %v", err)
	}

	done := waitForTask(t, m, task.ID)
	if done.Status != models.TaskStatusComplete {
		t.Fatalf("Expected complete status, got %s (error: %s)", done.Status, done.Error)
	}
	if done.RecordCount != 1 {
		t.Errorf("Expected 1 record, got %d", done.RecordCount)
	}

	result, err := m.GetResult(task.ID)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if !strings.Contains(result.Text, "Kernel-Power") {
		t.Errorf("Expected event source in text, got:\n%s", result.Text)
	}
}

func TestManager_PaymentAnalysis(t *testing.T) {
	inpasLog := "ПАО СБЕРБАНК\n" +
		"г. Москва\n" +
		"ОПЛАТА ПОКУПКИ\n" +
		"ОДОБРЕНО\n" +
		"15.01.24 14:30:25\n" +
		"ТЕРМИНАЛ: 00123456\n" +
		"СУММА (RUB) 1500.00\n"
	archivePath := testutil.NewArchiveBuilder().
		AddVendorLog("inpas", "DualConnector20240115.log", inpasLog).
		BuildZip(t)

	m := NewManager(t.TempDir(), testLogger())
	task, err := m.StartAnalysis("arch-1", archivePath, models.KindPaymentTerminal, Options{Date: "2024-01-15"})
	if err != nil {
		t.Fatalf("StartAnalysis: %v", err)
	}

	done := waitForTask(t, m, task.ID)
	if done.Status != models.TaskStatusComplete {
		t.Fatalf("Expected complete status, got %s (error: %s)", done.Status, done.Error)
	}
	if done.RecordCount != 1 {
		t.Errorf("Expected 1 record, got %d", done.RecordCount)
	}

	result, err := m.GetResult(task.ID)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if !strings.Contains(result.Text, "ТРАНЗАКЦИИ INPAS") {
		t.Errorf("Expected INPAS section in text, got:\n%s", result.Text)
	}
	if !strings.Contains(result.Text, "00123456") {
		t.Errorf("Expected terminal number in text, got:\n%s", result.Text)
	}
}

func TestManager_InvalidDateRejected(t *testing.T) {
	m := NewManager(t.TempDir(), testLogger())
	_, err := m.StartAnalysis("arch-1", "/nonexistent.zip", models.KindSupport, Options{Date: "15.01.2024"})
	if err == nil {
		t.Fatal("Expected error for invalid date")
	}
}

func TestManager_CorruptArchiveFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.zip")
	if err := os.WriteFile(path, []byte("not a zip archive"), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	m := NewManager(t.TempDir(), testLogger())
	task, err := m.StartAnalysis("arch-1", path, models.KindSupport, Options{Date: "2024-01-15"})
	if err != nil {
		t.Fatalf("StartAnalysis: %v", err)
	}

	done := waitForTask(t, m, task.ID)
	if done.Status != models.TaskStatusError {
		t.Fatalf("Expected error status, got %s", done.Status)
	}
	if done.Error == "" {
		t.Error("Expected error message on failed task")
	}
}

func TestManager_GetResultBeforeComplete(t *testing.T) {
	m := NewManager(t.TempDir(), testLogger())
	if _, err := m.GetResult("missing"); err == nil {
		t.Fatal("Expected error for unknown task")
	}
}

func TestManager_Cancel(t *testing.T) {
	archivePath := testutil.NewArchiveBuilder().
		AddDatedLog("20240115", "pos_Devices-errors.log", "10:00:00.000 ERROR x\n").
		BuildZip(t)

	m := NewManager(t.TempDir(), testLogger())
	task, err := m.StartAnalysis("arch-1", archivePath, models.KindSupport, Options{Date: "2024-01-15"})
	if err != nil {
		t.Fatalf("StartAnalysis: %v", err)
	}
	if err := m.Cancel(task.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := m.Cancel("missing"); err == nil {
		t.Error("Expected error cancelling unknown task")
	}

	// Cancelled tasks still settle into a terminal state.
	done := waitForTask(t, m, task.ID)
	if done.Status != models.TaskStatusComplete && done.Status != models.TaskStatusError {
		t.Errorf("Expected terminal status, got %s", done.Status)
	}
}
