// Package ofx reads OFX/QFX statement downloads into raw session transactions.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/cardwise/internal/model"
)

// AccountKind tells bank statements from card statements.
type AccountKind string

// Statement sources.
const (
	KindBank AccountKind = "bank"
	KindCard AccountKind = "card"
)

// Account is one statement found in a download.
type Account struct {
	ID           string
	Kind         AccountKind
	Currency     string
	Transactions int
}

// Statement is everything read from one OFX/QFX download.
type Statement struct {
	Accounts     []Account
	Transactions []model.Transaction
}

var (
	lowerSeverity = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	openTagLine   = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
	authDate      = regexp.MustCompile(`^\d{2}/\d{2}\s+`)
	networkPrefix = regexp.MustCompile(`(?i)^(POS PURCHASE|PURCHASE AUTHORIZED ON|DEBIT CARD PURCHASE|CHECK CARD|VISA PURCHASE|MC PURCHASE|DEBIT PURCHASE)\s+`)
)

// placeholderNames are transaction names that say nothing about the merchant.
var placeholderNames = map[string]bool{
	"DEBIT":           true,
	"CREDIT":          true,
	"PURCHASE":        true,
	"PAYMENT":         true,
	"POS TRANSACTION": true,
	"CARD PURCHASE":   true,
}

// Reader turns OFX/QFX downloads into session transactions.
type Reader struct {
	logger *slog.Logger
}

// NewReader creates a Reader. A nil logger uses slog.Default.
func NewReader(logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{logger: logger}
}

// sanitize repairs the SGML quirks ofxgo rejects: leading blank lines,
// lower-case severities and tag lines missing their closing bracket.
func sanitize(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = lowerSeverity.ReplaceAllStringFunc(content, strings.ToUpper)
	return openTagLine.ReplaceAllString(content, "$1>")
}

// Read parses src into a Statement for sessionID. Spend is positive and
// credits or refunds are negative, the reverse of OFX's own signs.
func (r *Reader) Read(ctx context.Context, src io.Reader, sessionID string) (*Statement, error) {
	content, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}
	resp, err := ofxgo.ParseResponse(strings.NewReader(sanitize(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st := &Statement{}
	for _, msg := range resp.Bank {
		if s, ok := msg.(*ofxgo.StatementResponse); ok {
			st.add(KindBank, s.BankAcctFrom.AcctID, s.CurDef, s.BankTranList, sessionID)
		}
	}
	for _, msg := range resp.CreditCard {
		if s, ok := msg.(*ofxgo.CCStatementResponse); ok {
			st.add(KindCard, s.CCAcctFrom.AcctID, s.CurDef, s.BankTranList, sessionID)
		}
	}

	r.logger.Info("Parsed OFX file",
		"session_id", sessionID,
		"accounts", len(st.Accounts),
		"transactions", len(st.Transactions))
	return st, nil
}

// ReadTransactions is Read without the account summary.
func (r *Reader) ReadTransactions(ctx context.Context, src io.Reader, sessionID string) ([]model.Transaction, error) {
	st, err := r.Read(ctx, src, sessionID)
	if err != nil {
		return nil, err
	}
	return st.Transactions, nil
}

func (st *Statement) add(kind AccountKind, id ofxgo.String, cur ofxgo.CurrSymbol, list *ofxgo.TransactionList, sessionID string) {
	acct := Account{ID: string(id), Kind: kind, Currency: cur.String()}
	if list != nil {
		for _, t := range list.Transactions {
			st.Transactions = append(st.Transactions, toTransaction(t, sessionID))
		}
		acct.Transactions = len(list.Transactions)
	}
	st.Accounts = append(st.Accounts, acct)
}

// AccountIDs returns the distinct non-empty account ids in file order.
func (st *Statement) AccountIDs() []string {
	var ids []string
	seen := make(map[string]bool, len(st.Accounts))
	for _, a := range st.Accounts {
		if a.ID != "" && !seen[a.ID] {
			seen[a.ID] = true
			ids = append(ids, a.ID)
		}
	}
	return ids
}

func toTransaction(t ofxgo.Transaction, sessionID string) model.Transaction {
	amt, _ := t.TrnAmt.Float64()

	txn := model.Transaction{
		SessionID:        sessionID,
		Date:             t.DtPosted.Time.UTC(),
		RawDescription:   strings.TrimSpace(string(t.Name)),
		Merchant:         merchantName(t),
		Amount:           decimal.NewFromFloat(amt).Neg().Round(2).InexactFloat64(),
		ResolutionSource: model.SourceUnresolved,
	}
	if txn.RawDescription == "" {
		txn.RawDescription = txn.Merchant
	}
	txn.ID = txn.GenerateID()
	return txn
}

// merchantName prefers the payee, then the memo when the name is a
// placeholder, and strips card-network prefixes and MM/DD auth dates.
func merchantName(t ofxgo.Transaction) string {
	if t.Payee != nil && t.Payee.Name != "" {
		return strings.TrimSpace(string(t.Payee.Name))
	}

	name := strings.TrimSpace(string(t.Name))
	if t.Memo != "" && placeholderNames[strings.ToUpper(name)] {
		name = strings.TrimSpace(string(t.Memo))
	}
	name = networkPrefix.ReplaceAllString(name, "")
	return strings.TrimSpace(authDate.ReplaceAllString(name, ""))
}
