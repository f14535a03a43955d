package model

import (
	"fmt"
	"time"
)

// MCCCode is reference data binding a four-digit merchant category code to the taxonomy.
type MCCCode struct {
	SubCategoryID    *int
	Code             string
	Description      string
	MerchantPatterns []string
	CategoryID       int
	Confidence       float64
}

// Validate ensures the code is four digits and carries a placement.
func (m *MCCCode) Validate() error {
	if !IsMCC(m.Code) {
		return fmt.Errorf("mcc code must be four digits, got %q", m.Code)
	}
	if m.CategoryID <= 0 {
		return fmt.Errorf("mcc %s has no category", m.Code)
	}
	if m.Confidence < 0 || m.Confidence > 1 {
		return fmt.Errorf("confidence must be between 0 and 1, got %.2f", m.Confidence)
	}
	return nil
}

// IsMCC reports whether s is a four-digit code.
func IsMCC(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// MerchantAlias binds a normalized merchant and its aliases to an MCC.
// Confidence only ever increases.
type MerchantAlias struct {
	UpdatedAt    time.Time
	MerchantName string
	MCCCode      string
	Aliases      []string
	Confidence   float64
	UsageCount   int
}
