package models

import (
	"fmt"
	"strings"
)

// RiskLevel is the ordinal risk tier of a credit profile.
type RiskLevel uint8

const (
	RiskUnknown RiskLevel = iota
	RiskVeryLow
	RiskLow
	RiskMedium
	RiskHigh
	RiskVeryHigh
)

var riskLabels = map[RiskLevel]string{
	RiskUnknown:  "Unknown",
	RiskVeryLow:  "Very Low",
	RiskLow:      "Low",
	RiskMedium:   "Medium",
	RiskHigh:     "High",
	RiskVeryHigh: "Very High",
}

func (r RiskLevel) String() string {
	if s, ok := riskLabels[r]; ok {
		return s
	}
	return fmt.Sprintf("RiskLevel(%d)", uint8(r))
}

func (r RiskLevel) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *RiskLevel) UnmarshalText(text []byte) error {
	for level, label := range riskLabels {
		if strings.EqualFold(label, string(text)) {
			*r = level
			return nil
		}
	}
	return fmt.Errorf("unknown risk level %q", string(text))
}
