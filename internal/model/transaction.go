package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// ResolutionSource records which strategy produced a transaction's MCC.
type ResolutionSource string

// Resolution source constants.
const (
	SourceDatabase     ResolutionSource = "database"
	SourceFuzzyMatch   ResolutionSource = "fuzzy_match"
	SourcePatternMatch ResolutionSource = "pattern_match"
	SourceAIOracle     ResolutionSource = "ai_oracle"
	SourceUnresolved   ResolutionSource = "unresolved"
)

// Transaction is a single statement line. Amount is signed: positive is spend,
// negative is a credit or refund.
type Transaction struct {
	Date                 time.Time
	MCCCode              *string
	CategoryID           *int
	SubCategoryID        *int
	ID                   string
	SessionID            string
	RawDescription       string
	Merchant             string
	ResolutionSource     ResolutionSource
	Amount               float64
	ResolutionConfidence float64
	NeedsReview          bool
}

// IsResolved reports whether the pipeline has already written resolution fields.
func (t *Transaction) IsResolved() bool {
	return t.MCCCode != nil && t.CategoryID != nil
}

// MerchantOrDescription returns the cleaned merchant, falling back to the raw line.
func (t *Transaction) MerchantOrDescription() string {
	if t.Merchant != "" {
		return t.Merchant
	}
	return t.RawDescription
}

// GenerateID derives a stable id for duplicate detection within a session.
func (t *Transaction) GenerateID() string {
	data := fmt.Sprintf("%s:%s:%.2f:%s",
		t.SessionID,
		t.Date.Format("2006-01-02"),
		t.Amount,
		t.RawDescription)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash[:16])
}

// Resolution is the outcome of resolving one merchant. CategoryID is only
// set when the resolving strategy already validated a category (the oracle);
// otherwise the category is derived from the MCC code.
type Resolution struct {
	SubCategoryID      *int
	MCCCode            string
	Source             ResolutionSource
	CategoryID         int
	Confidence         float64
	CategoryConfidence float64
}

// Resolved reports whether an MCC code was found.
func (r Resolution) Resolved() bool {
	return r.Source != SourceUnresolved && r.MCCCode != ""
}
