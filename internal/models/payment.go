package models

import "fmt"

// Terminal driver families recognized under the vendor directory.
const (
	DriverINPAS    = "INPAS"
	DriverSberbank = "SBERBANK"
	DriverSC552    = "SC552" // Sberbank family hardware
	DriverArcus    = "ARCUS2"
	DriverUnknown  = "UNKNOWN"
)

// InpasTransaction is one purchase receipt reconstructed from an INPAS
// DualConnector log.
type InpasTransaction struct {
	Timestamp string `json:"timestamp"`
	Amount    string `json:"amount"`
	Terminal  string `json:"terminal"`
	Status    string `json:"status"`
	Bank      string `json:"bank"`
	CardType  string `json:"cardType,omitempty"`
	AuthCode  string `json:"authCode,omitempty"`
	RRN       string `json:"rrn,omitempty"`
}

func (t InpasTransaction) Time() string { return t.Timestamp }

func (t InpasTransaction) TableRow() []string {
	return []string{
		t.Timestamp, t.Amount, t.Terminal, t.Status,
		t.Bank, t.CardType, t.AuthCode, t.RRN,
	}
}

// SberbankTransaction is one Command=4000 payment reconstructed from an
// sbkernel log.
type SberbankTransaction struct {
	Timestamp  string `json:"timestamp"`
	Amount     string `json:"amount"`
	Status     string `json:"status"`
	Version    string `json:"version,omitempty"`
	CardLast4  string `json:"cardLast4,omitempty"`
	GUID       string `json:"guid,omitempty"`
	Department string `json:"department,omitempty"`
}

func (t SberbankTransaction) Time() string { return t.Timestamp }

func (t SberbankTransaction) TableRow() []string {
	return []string{
		t.Timestamp, t.Amount, t.Status, t.Version,
		t.CardLast4, t.GUID, t.Department,
	}
}

// SberbankResultText maps a numeric kernel result code to its display
// status. Unlisted codes render as "Код N".
func SberbankResultText(code string) string {
	switch code {
	case "0":
		return "Успешно"
	case "99":
		return "Потеряна связь"
	case "2000":
		return "Отменено пользователем"
	case "2001":
		return "Таймаут"
	case "2002":
		return "Ошибка карты"
	case "2003":
		return "Отказ банка"
	default:
		return fmt.Sprintf("Код %s", code)
	}
}

// TerminalDriverInfo describes one discovered driver directory.
type TerminalDriverInfo struct {
	DriverName   string `json:"driverName"`
	DriverType   string `json:"driverType"`
	Found        bool   `json:"found"`
	LogFileCount int    `json:"logFileCount"`
}

func (d TerminalDriverInfo) Text() string {
	status := "не найден"
	if d.Found {
		status = "найден"
	}
	return fmt.Sprintf("%s (%s): %s, лог-файлов: %d", d.DriverName, d.DriverType, status, d.LogFileCount)
}
