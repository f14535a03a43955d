package testutil

import (
	"time"

	"github.com/Veraticus/cardwise/internal/model"
)

// SessionBuilder provides a fluent interface for constructing a statement
// session and its lines. Dates advance by one day per line so ordering is
// deterministic.
type SessionBuilder struct {
	start time.Time
	id    string
	txns  []model.Transaction
}

// NewSession starts a builder for the given session id.
func NewSession(id string) *SessionBuilder {
	return &SessionBuilder{
		id:    id,
		start: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Spend adds a purchase.
func (b *SessionBuilder) Spend(description string, amount float64) *SessionBuilder {
	return b.add(description, amount)
}

// Credit adds a refund or payment; the amount is stored negative.
func (b *SessionBuilder) Credit(description string, amount float64) *SessionBuilder {
	if amount > 0 {
		amount = -amount
	}
	return b.add(description, amount)
}

// Resolved adds a line that already carries resolution fields.
func (b *SessionBuilder) Resolved(description string, amount float64, mcc string, categoryID int) *SessionBuilder {
	b.add(description, amount)
	txn := &b.txns[len(b.txns)-1]
	code := mcc
	cat := categoryID
	txn.MCCCode = &code
	txn.CategoryID = &cat
	txn.ResolutionSource = model.SourceDatabase
	txn.ResolutionConfidence = 0.9
	return b
}

func (b *SessionBuilder) add(description string, amount float64) *SessionBuilder {
	txn := model.Transaction{
		SessionID:        b.id,
		Date:             b.start.AddDate(0, 0, len(b.txns)),
		RawDescription:   description,
		Merchant:         description,
		Amount:           amount,
		ResolutionSource: model.SourceUnresolved,
	}
	txn.ID = txn.GenerateID()
	b.txns = append(b.txns, txn)
	return b
}

// Build returns the session and a copy of its lines.
func (b *SessionBuilder) Build() (*model.Session, []model.Transaction) {
	session := &model.Session{
		ID:     b.id,
		Source: "test",
		Status: model.SessionUploaded,
	}
	return session, append([]model.Transaction(nil), b.txns...)
}
