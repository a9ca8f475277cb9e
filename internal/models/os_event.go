package models

import "fmt"

// OS journal roles inside a support archive.
const (
	LogTypeApplication = "Журнал приложения"
	LogTypeSystem      = "Журнал системы"
)

// Event level display values, mapped from the numeric 5-level table.
const (
	LevelCritical    = "Критическое"
	LevelError       = "Ошибка"
	LevelWarning     = "Предупреждение"
	LevelInformation = "Информация"
	LevelVerbose     = "Подробно"
)

// OSEvent is a single Windows-style OS journal event.
type OSEvent struct {
	Timestamp   string `json:"timestamp"`
	Level       string `json:"level"`
	EventCode   string `json:"eventCode"`
	Source      string `json:"source"`
	Description string `json:"description"`
	LogType     string `json:"logType"`
}

func (e OSEvent) Time() string { return e.Timestamp }

func (e OSEvent) TableRow() []string {
	return []string{e.Timestamp, e.Level, e.EventCode, e.Source, e.LogType}
}

// EventLevelText maps a numeric journal level to its display value.
// Levels outside the fixed table render as "Уровень N" so nothing is
// dropped silently.
func EventLevelText(level int) string {
	switch level {
	case 1:
		return LevelCritical
	case 2:
		return LevelError
	case 3:
		return LevelWarning
	case 4:
		return LevelInformation
	case 5:
		return LevelVerbose
	default:
		return fmt.Sprintf("Уровень %d", level)
	}
}
