// Package rules loads event-code rule sets for OS journal filtering.
// A rule set is a small YAML document operators edit by hand, so parsing
// is forgiving: codes are trimmed and blanks dropped.
package rules

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// RuleSet selects which OS event codes an analysis keeps. When UseCustom
// is false the analyzer's built-in default set applies and EventCodes is
// ignored.
type RuleSet struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	UseCustom   bool     `yaml:"use_custom"`
	EventCodes  []string `yaml:"event_codes"`
}

// ParseRuleSet parses a YAML rule-set file.
func ParseRuleSet(filePath string) (*RuleSet, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseRuleSetFromReader(file)
}

// ParseRuleSetFromReader parses a rule set from an io.Reader.
func ParseRuleSetFromReader(r io.Reader) (*RuleSet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parsing rule set: %w", err)
	}

	rs.normalize()
	if err := rs.validate(); err != nil {
		return nil, err
	}
	return &rs, nil
}

func (rs *RuleSet) normalize() {
	codes := make([]string, 0, len(rs.EventCodes))
	for _, c := range rs.EventCodes {
		if c = strings.TrimSpace(c); c != "" {
			codes = append(codes, c)
		}
	}
	rs.EventCodes = codes
}

func (rs *RuleSet) validate() error {
	if rs.UseCustom && len(rs.EventCodes) == 0 {
		return fmt.Errorf("rule set %q enables custom codes but lists none", rs.Name)
	}
	for _, c := range rs.EventCodes {
		for _, r := range c {
			if r < '0' || r > '9' {
				return fmt.Errorf("rule set %q: event code %q is not numeric", rs.Name, c)
			}
		}
	}
	return nil
}
