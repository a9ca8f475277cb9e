// rules_test.go - Tests for event-code rule set parsing
package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseRuleSetFromReader(t *testing.T) {
	t.Run("valid rule set", func(t *testing.T) {
		yml := `name: extended
description: power and service failures
use_custom: true
event_codes:
  - "41"
  - " 7031 "
  - ""
`
		rs, err := ParseRuleSetFromReader(strings.NewReader(yml))
		if err != nil {
			t.Fatalf("ParseRuleSetFromReader: %v", err)
		}
		if rs.Name != "extended" {
			t.Errorf("Unexpected name: %s", rs.Name)
		}
		if len(rs.EventCodes) != 2 || rs.EventCodes[0] != "41" || rs.EventCodes[1] != "7031" {
			t.Errorf("Codes not normalized: %v", rs.EventCodes)
		}
	})

	t.Run("custom without codes rejected", func(t *testing.T) {
		yml := "name: empty\nuse_custom: true\nevent_codes: []\n"
		if _, err := ParseRuleSetFromReader(strings.NewReader(yml)); err == nil {
			t.Error("Expected validation error")
		}
	})

	t.Run("non-numeric code rejected", func(t *testing.T) {
		yml := "name: bad\nuse_custom: true\nevent_codes: [\"41a\"]\n"
		if _, err := ParseRuleSetFromReader(strings.NewReader(yml)); err == nil {
			t.Error("Expected validation error for non-numeric code")
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		if _, err := ParseRuleSetFromReader(strings.NewReader("name: [unclosed")); err == nil {
			t.Error("Expected parse error")
		}
	})
}

func TestParseRuleSet_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := "name: defaults-off\nuse_custom: false\nevent_codes: []\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	rs, err := ParseRuleSet(path)
	if err != nil {
		t.Fatalf("ParseRuleSet: %v", err)
	}
	if rs.UseCustom {
		t.Error("Expected use_custom=false")
	}

	if _, err := ParseRuleSet(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}
