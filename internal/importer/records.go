package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/Veraticus/cardwise/internal/model"
)

// ErrMalformedRecords is returned when an extractor file is not a record list.
var ErrMalformedRecords = errors.New("malformed transaction records")

// statementDateLayouts are statement formats cast does not understand on its own.
var statementDateLayouts = []string{
	"02/01/2006",
	"02-01-2006",
	"02 Jan 2006",
	"02-Jan-2006",
	"Jan 2, 2006",
}

// Record is one raw line produced by a statement extractor. Amount may be a
// number or a formatted string such as "1,250.00"; Type "credit" or "cr"
// marks a refund or payment regardless of the amount's sign.
type Record struct {
	Amount      any    `json:"amount"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Merchant    string `json:"merchant,omitempty"`
	Type        string `json:"type,omitempty"`
}

type recordEnvelope struct {
	Transactions []Record `json:"transactions"`
}

// DecodeRecords reads extractor output, either a bare JSON array of records or
// an object with a "transactions" array, and converts it into raw session
// transactions. Records that cannot be converted fail the whole decode so a
// partially read statement never looks complete.
func DecodeRecords(r io.Reader, sessionID string) ([]model.Transaction, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	var records []Record
	trimmed := strings.TrimSpace(string(raw))
	switch {
	case strings.HasPrefix(trimmed, "["):
		err = json.Unmarshal(raw, &records)
	case strings.HasPrefix(trimmed, "{"):
		var env recordEnvelope
		err = json.Unmarshal(raw, &env)
		records = env.Transactions
	default:
		return nil, fmt.Errorf("%w: expected a JSON array or object", ErrMalformedRecords)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecords, err)
	}

	transactions := make([]model.Transaction, 0, len(records))
	for i, rec := range records {
		txn, err := rec.Transaction(sessionID)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		transactions = append(transactions, txn)
	}
	return transactions, nil
}

// Transaction converts the record into an unresolved transaction.
func (r Record) Transaction(sessionID string) (model.Transaction, error) {
	description := strings.TrimSpace(r.Description)
	if description == "" {
		return model.Transaction{}, fmt.Errorf("%w: missing description", ErrMalformedRecords)
	}

	date, err := parseDate(r.Date)
	if err != nil {
		return model.Transaction{}, err
	}

	amount, err := parseAmount(r.Amount)
	if err != nil {
		return model.Transaction{}, err
	}
	switch strings.ToLower(strings.TrimSpace(r.Type)) {
	case "credit", "cr":
		amount = amount.Abs().Neg()
	case "debit", "dr":
		amount = amount.Abs()
	}

	txn := model.Transaction{
		SessionID:        sessionID,
		Date:             date,
		RawDescription:   description,
		Merchant:         strings.TrimSpace(r.Merchant),
		Amount:           amount.Round(2).InexactFloat64(),
		ResolutionSource: model.SourceUnresolved,
	}
	txn.ID = txn.GenerateID()
	return txn, nil
}

func parseAmount(v any) (decimal.Decimal, error) {
	if s, ok := v.(string); ok {
		s = strings.NewReplacer(",", "", " ", "").Replace(s)
		switch {
		case strings.HasSuffix(strings.ToUpper(s), "CR"):
			s = "-" + strings.TrimPrefix(s[:len(s)-2], "-")
		case strings.HasSuffix(strings.ToUpper(s), "DR"):
			s = s[:len(s)-2]
		}
		v = s
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %v: %v", ErrMalformedRecords, v, err)
	}
	return decimal.NewFromFloat(f), nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: missing date", ErrMalformedRecords)
	}
	if t, err := cast.ToTimeInDefaultLocationE(s, time.UTC); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range statementDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognized date %q", ErrMalformedRecords, s)
}
