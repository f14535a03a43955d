package ofx

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/cardwise/internal/model"
)

const sampleBankOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>USD
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>1234567890
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240115120000[0:GMT]
<TRNAMT>-25.50
<FITID>2024011501
<NAME>STARBUCKS STORE #1234
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240120120000[0:GMT]
<TRNAMT>-125.00
<FITID>2024012001
<NAME>Whole Foods Market
</STMTTRN>
<STMTTRN>
<TRNTYPE>CHECK
<DTPOSTED>20240125120000[0:GMT]
<TRNAMT>-500.00
<FITID>2024012501
<CHECKNUM>1234
<NAME>CHECK #1234
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240128120000[0:GMT]
<TRNAMT>40.00
<FITID>2024012801
<NAME>CREDIT
<MEMO>WHOLE FOODS REFUND
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

const sampleCreditCardOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<CREDITCARDMSGSRSV1>
<CCSTMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<CCSTMTRS>
<CURDEF>USD
<CCACCTFROM>
<ACCTID>4111111111111111
</CCACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240110120000[0:GMT]
<TRNAMT>-45.99
<FITID>CC2024011001
<NAME>AMAZON.COM*RT4Y7HG2
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240115120000[0:GMT]
<TRNAMT>-15.00
<FITID>CC2024011501
<NAME>NETFLIX.COM
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>-500.00
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</CCSTMTRS>
</CCSTMTTRNRS>
</CREDITCARDMSGSRSV1>
</OFX>`

func TestRead(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantTxns int
		wantKind AccountKind
		wantErr  bool
	}{
		{name: "bank statement", data: sampleBankOFX, wantTxns: 4, wantKind: KindBank},
		{name: "card statement", data: sampleCreditCardOFX, wantTxns: 2, wantKind: KindCard},
		{name: "not OFX", data: "not valid OFX", wantErr: true},
		{name: "empty", data: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := NewReader(nil).Read(context.Background(), strings.NewReader(tt.data), "sess-1")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, st.Accounts, 1)
			assert.Equal(t, tt.wantKind, st.Accounts[0].Kind)
			assert.Equal(t, tt.wantTxns, st.Accounts[0].Transactions)
			assert.Len(t, st.Transactions, tt.wantTxns)
			for _, txn := range st.Transactions {
				assert.Equal(t, "sess-1", txn.SessionID)
				assert.Equal(t, model.SourceUnresolved, txn.ResolutionSource)
				assert.False(t, txn.IsResolved())
			}
		})
	}
}

func TestReadBankSignsAndNames(t *testing.T) {
	txns, err := NewReader(nil).ReadTransactions(context.Background(), strings.NewReader(sampleBankOFX), "sess-1")
	require.NoError(t, err)
	require.Len(t, txns, 4)

	coffee := txns[0]
	assert.Equal(t, "STARBUCKS STORE #1234", coffee.RawDescription)
	assert.Equal(t, "STARBUCKS STORE #1234", coffee.Merchant)
	assert.InDelta(t, 25.50, coffee.Amount, 0.001)
	assert.Equal(t, coffee.GenerateID(), coffee.ID)
	assert.Equal(t, time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC), coffee.Date.Truncate(24*time.Hour))

	assert.Equal(t, "Whole Foods Market", txns[1].Merchant)
	assert.InDelta(t, 125.00, txns[1].Amount, 0.001)

	assert.Equal(t, "CHECK #1234", txns[2].RawDescription)
	assert.InDelta(t, 500.00, txns[2].Amount, 0.001)

	refund := txns[3]
	assert.Equal(t, "CREDIT", refund.RawDescription)
	assert.Equal(t, "WHOLE FOODS REFUND", refund.Merchant, "memo stands in for a placeholder name")
	assert.InDelta(t, -40.00, refund.Amount, 0.001)
}

func TestReadCardStatement(t *testing.T) {
	st, err := NewReader(nil).Read(context.Background(), strings.NewReader(sampleCreditCardOFX), "sess-2")
	require.NoError(t, err)
	require.Len(t, st.Transactions, 2)

	assert.Equal(t, "AMAZON.COM*RT4Y7HG2", st.Transactions[0].RawDescription)
	assert.InDelta(t, 45.99, st.Transactions[0].Amount, 0.001)
	assert.Equal(t, "NETFLIX.COM", st.Transactions[1].Merchant)
	assert.InDelta(t, 15.00, st.Transactions[1].Amount, 0.001)
	assert.NotEqual(t, st.Transactions[0].ID, st.Transactions[1].ID)
	assert.Equal(t, []string{"4111111111111111"}, st.AccountIDs())
}

func TestReadCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewReader(nil).Read(ctx, strings.NewReader(sampleBankOFX), "sess-1")
	require.ErrorIs(t, err, context.Canceled)
}

func TestMerchantName(t *testing.T) {
	tests := map[string]struct {
		tx   ofxgo.Transaction
		want string
	}{
		"pos prefix":          {tx: ofxgo.Transaction{Name: "POS PURCHASE STARBUCKS"}, want: "STARBUCKS"},
		"debit card prefix":   {tx: ofxgo.Transaction{Name: "DEBIT CARD PURCHASE WHOLE FOODS"}, want: "WHOLE FOODS"},
		"lower-case prefix":   {tx: ofxgo.Transaction{Name: "visa purchase Zomato"}, want: "Zomato"},
		"auth date":           {tx: ofxgo.Transaction{Name: "CHECK CARD 03/14 SWIGGY BANGALORE"}, want: "SWIGGY BANGALORE"},
		"clean name":          {tx: ofxgo.Transaction{Name: "NETFLIX.COM"}, want: "NETFLIX.COM"},
		"padded name":         {tx: ofxgo.Transaction{Name: "  AMAZON.COM  "}, want: "AMAZON.COM"},
		"memo for generic":    {tx: ofxgo.Transaction{Name: "PURCHASE", Memo: "SHELL OIL 5541"}, want: "SHELL OIL 5541"},
		"memo ignored":        {tx: ofxgo.Transaction{Name: "UBER TRIP", Memo: "HELP.UBER.COM"}, want: "UBER TRIP"},
		"payee wins":          {tx: ofxgo.Transaction{Name: "SQ *BLUE TOKAI", Payee: &ofxgo.Payee{Name: "Blue Tokai"}}, want: "Blue Tokai"},
		"empty payee ignored": {tx: ofxgo.Transaction{Name: "IRCTC", Payee: &ofxgo.Payee{}}, want: "IRCTC"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, merchantName(tt.tx))
		})
	}
}

func TestSanitize(t *testing.T) {
	out := sanitize("\n\n  <OFX>\n<SEVERITY>Info</SEVERITY>\n<CODE\n")
	assert.True(t, strings.HasPrefix(out, "<OFX>"))
	assert.Contains(t, out, "<SEVERITY>INFO</SEVERITY>")
	assert.Contains(t, out, "<CODE>")
}

func TestAccountIDsDedupes(t *testing.T) {
	st := &Statement{Accounts: []Account{
		{ID: "A", Kind: KindBank},
		{ID: "", Kind: KindCard},
		{ID: "B", Kind: KindCard},
		{ID: "A", Kind: KindCard},
	}}
	assert.Equal(t, []string{"A", "B"}, st.AccountIDs())
}
