package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleNotification = `<html><body>
<table border="1">
<tr><td>Godzina</td><td>Opis</td></tr>
<tr><td>12:30</td><td>mBank: Autoryzacja karty nr ...1234: BIEDRONKA 123 WARSZAWA. Kwota: 45,99 PLN. Dostepne: 1234,56 PLN</td></tr>
<tr><td>14:02</td><td>mBank: Obciazenie rach. ...5678 kwota 45,99 PLN</td></tr>
<tr><td>15:45</td><td>mBank: Przelew przych. od JAN KOWALSKI; kwota 1200,00 PLN; Dost. 2434,56</td></tr>
<tr><td>16:00</td><td>mBank: Logowanie do serwisu transakcyjnego</td></tr>
</table>
</body></html>`

func TestParseNotification(t *testing.T) {
	p := NewMBank(nil)

	parsed, err := p.Parse([]byte(sampleNotification), "2024-01-15")
	require.NoError(t, err)
	require.Len(t, parsed, 2, "debit mirror and login rows must be skipped")

	card := parsed[0]
	assert.Equal(t, "12:30", card.Transaction.Time)
	assert.Equal(t, "45.99", card.Transaction.Expense.StringFixed(2))
	assert.True(t, card.Transaction.Income.IsZero())
	assert.Equal(t, "1234.56", card.Transaction.Balance.StringFixed(2))
	assert.Equal(t, "2024-01-15", card.Transaction.Date)
	assert.Equal(t, "BIEDRONKA 123 WARSZAWA", card.Keyword)
	assert.Contains(t, card.Transaction.Description, "BIEDRONKA")

	income := parsed[1]
	assert.Equal(t, "15:45", income.Transaction.Time)
	assert.True(t, income.Transaction.Expense.IsZero())
	assert.Equal(t, "1200.00", income.Transaction.Income.StringFixed(2))
	assert.Equal(t, "2434.56", income.Transaction.Balance.StringFixed(2))
	assert.Equal(t, "Income: JAN KOWALSKI", income.Transaction.Description)
}

func TestParseNoTable(t *testing.T) {
	p := NewMBank(nil)

	_, err := p.Parse([]byte("<html><body><p>nothing here</p></body></html>"), "2024-01-15")
	assert.Error(t, err)
}

func TestParseUnparsableRowDoesNotAbortBatch(t *testing.T) {
	payload := `<table border="1">
<tr><td>Godzina</td><td>Opis</td></tr>
<tr><td>09:00</td><td>mBank: Autoryzacja karty nr ...1: SKLEP. Kwota: ,, PLN</td></tr>
<tr><td>10:00</td><td>mBank: Autoryzacja karty nr ...1: ZABKA. Kwota: 12,50 PLN. Dostepne: 100,00 PLN</td></tr>
</table>`

	p := NewMBank(nil)
	parsed, err := p.Parse([]byte(payload), "2024-01-16")
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Equal(t, "12.50", parsed[0].Transaction.Expense.StringFixed(2))
}

func TestExtractKeyword(t *testing.T) {
	tests := []struct {
		name string
		desc string
		want string
	}{
		{
			name: "card authorization",
			desc: "mBank: Autoryzacja karty nr ...1234: ZABKA Z5678. Kwota: 10,00 PLN",
			want: "ZABKA Z5678",
		},
		{
			name: "location suffix stripped",
			desc: "mBank: Autoryzacja karty nr ...1234: ZABKA Z5678 /WARSZAWA. Kwota: 10,00 PLN",
			want: "ZABKA Z5678",
		},
		{
			name: "card number noise stripped",
			desc: "mBank: Autoryzacja karty nr ...1234: SKLEP K.2 WARSZAWA. Kwota: 10,00 PLN",
			want: "SKLEP",
		},
		{
			name: "transfer title",
			desc: "mBank: Przelew wych. na rach. ...9; tytulem: czynsz styczen; kwota 2 100,00 PLN",
			want: "czynsz styczen",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractKeyword(tt.desc))
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "45,99", want: "45.99"},
		{in: "1 234,56", want: "1234.56"},
		{in: "1,234.56", want: "1234.56"},
		{in: "+250,00", want: "250.00"},
		{in: "100", want: "100.00"},
		{in: "abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAmount(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}
