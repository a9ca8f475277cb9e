package models

import (
	"fmt"
	"strings"
)

// MarkingScanResult is one scanned marking code event.
type MarkingScanResult struct {
	Timestamp   string `json:"timestamp"`
	ScannedCode string `json:"scannedCode"`
	SourceFile  string `json:"sourceFile,omitempty"`
}

func (r MarkingScanResult) Time() string { return r.Timestamp }

func (r MarkingScanResult) TableRow() []string {
	return []string{r.Timestamp, r.ScannedCode}
}

// MarkingInfoResult carries the marking-module response fields for one
// CIS code. SoldUnitCount and InnerUnitCount are nil when absent from
// the response.
type MarkingInfoResult struct {
	Timestamp      string `json:"timestamp"`
	CIS            string `json:"cis"`
	Realizable     bool   `json:"realizable"`
	Sold           bool   `json:"sold"`
	SoldUnitCount  *int   `json:"soldUnitCount,omitempty"`
	InnerUnitCount *int   `json:"innerUnitCount,omitempty"`
	ExpireDate     string `json:"expireDate,omitempty"`
	IsOwner        bool   `json:"isOwner"`
	IsTracking     bool   `json:"isTracking"`
	SourceFile     string `json:"sourceFile,omitempty"`
}

func (r MarkingInfoResult) Time() string { return r.Timestamp }

func (r MarkingInfoResult) TableRow() []string {
	status := "В обороте"
	if !r.Realizable {
		status = "Выведен"
	}
	sold := "Не продан"
	if r.Sold {
		sold = "Продан"
	}
	return []string{
		r.Timestamp,
		r.CIS,
		status,
		sold,
		optionalCount(r.SoldUnitCount),
		optionalCount(r.InnerUnitCount),
		datePart(r.ExpireDate, "T", PlaceholderNA),
		yesNo(r.IsOwner),
		yesNo(r.IsTracking),
	}
}

// ConnectionIssueResult is one marking-module connectivity failure.
type ConnectionIssueResult struct {
	Timestamp  string `json:"timestamp"`
	Message    string `json:"message"`
	SourceFile string `json:"sourceFile,omitempty"`
}

func (r ConnectionIssueResult) Time() string { return r.Timestamp }

func (r ConnectionIssueResult) TableRow() []string {
	return []string{r.Timestamp, r.Message}
}

// LoginPasswordResult is a captured Basic-auth credential. Unique per run
// by EncodedAuth.
type LoginPasswordResult struct {
	Timestamp   string `json:"timestamp"`
	EncodedAuth string `json:"encodedAuth"`
	DecodedAuth string `json:"decodedAuth"`
	SourceFile  string `json:"sourceFile,omitempty"`
}

func (r LoginPasswordResult) Time() string { return r.Timestamp }

func (r LoginPasswordResult) TableRow() []string {
	return []string{r.Timestamp, r.EncodedAuth, r.DecodedAuth}
}

// OpeningCheckResult is one tamper-check (opening) buffer insert.
type OpeningCheckResult struct {
	Timestamp      string  `json:"timestamp"`
	CIS            string  `json:"cis"`
	Volume         float64 `json:"volume"`
	ExpirationDate string  `json:"expirationDate,omitempty"`
	ConnectionDate string  `json:"connectionDate"`
	SourceFile     string  `json:"sourceFile,omitempty"`
}

func (r OpeningCheckResult) Time() string { return r.Timestamp }

func (r OpeningCheckResult) TableRow() []string {
	return []string{
		r.Timestamp,
		r.CIS,
		fmt.Sprintf("%v л", r.Volume),
		datePart(r.ExpirationDate, " ", "Не получен"),
		datePart(r.ConnectionDate, " ", PlaceholderNA),
	}
}

func optionalCount(n *int) string {
	if n == nil || *n == 0 {
		return PlaceholderNA
	}
	return fmt.Sprintf("%d", *n)
}

func datePart(s, sep, placeholder string) string {
	if s == "" {
		return placeholder
	}
	if i := strings.Index(s, sep); i >= 0 {
		return s[:i]
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Да"
	}
	return "Нет"
}
