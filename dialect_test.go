/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package tally

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"50.00", "50.00"},
		{"-50.00", "-50.00"},
		{"$1,234.56", "1234.56"},
		{"($1,234.56)", "-1234.56"},
		{"50.00-", "-50.00"},
		{"1.234,56", "1234.56"},
		{"12,50", "12.50"},
		{"1,234", "1234"},
		{"100.00 CR", "100.00"},
		{"100.00 DR", "-100.00"},
		{"USD 75.10", "75.10"},
		{"+9.99", "9.99"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			require.NoError(t, err)
			assert.True(t, got.Equal(money(tt.want)), "got %s", got)
		})
	}

	for _, bad := range []string{"", "   ", "abc", "12.3.4"} {
		_, err := ParseAmount(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestDetectLayout(t *testing.T) {
	tests := []struct {
		header  string
		dialect string
	}{
		{"Date,Description,Amount", "signed_amount"},
		{"Transaction Date,Memo,Debit,Credit,Balance", "split_columns"},
		{"date,payee,amount,type", "typed_amount"},
		{"Date,Description,Amount,Card Member", "card_statement"},
		{"Date,Description,Amount,Account Number", "signed_amount"},
	}
	for _, tt := range tests {
		t.Run(tt.dialect, func(t *testing.T) {
			layout, err := detectLayout(strings.Split(tt.header, ","), "", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.dialect, layout.dialect.Name)
		})
	}

	_, err := detectLayout([]string{"When", "What", "How much"}, "", nil)
	assert.Error(t, err)

	_, err = detectLayout([]string{"Date", "Description", "Amount"}, "split_columns", nil)
	assert.ErrorContains(t, err, "does not fit")

	_, err = detectLayout([]string{"Date", "Description", "Amount"}, "nope", nil)
	assert.ErrorContains(t, err, "unknown dialect")
}

const acmeDialects = `
dialects:
  - name: acme_bank
    institution: Acme Bank
    date: [Booked]
    description: [Text]
    amount: [Sum]
    date_formats: ["02.01.2006"]
`

func TestLoadDialects(t *testing.T) {
	dialects, err := LoadDialects(strings.NewReader(acmeDialects))
	require.NoError(t, err)
	require.Len(t, dialects, 1)
	assert.Equal(t, "Acme Bank", dialects[0].Institution)

	_, err = LoadDialects(strings.NewReader("dialects:\n  - name: broken\n    date: [Date]\n    description: [Text]\n"))
	assert.ErrorContains(t, err, "amount column")

	_, err = LoadDialects(strings.NewReader("dialects: [: nope"))
	assert.Error(t, err)
}

func TestParseStatementCustomDialect(t *testing.T) {
	dialects, err := LoadDialects(strings.NewReader(acmeDialects))
	require.NoError(t, err)

	parsed, err := ParseStatement(strings.NewReader("Booked,Text,Sum\n04.03.2024,Kaffee,\"-3,50\"\n"), &ImportHint{Currency: "eur"}, dialects...)
	require.NoError(t, err)
	assert.Equal(t, "acme_bank", parsed.Dialect)
	assert.Equal(t, "Acme Bank", parsed.Institution)
	require.Len(t, parsed.Groups, 1)
	row := parsed.Groups[0].Rows[0]
	assert.Equal(t, day("2024-03-04"), row.TransactionDate)
	assert.True(t, row.Amount.Equal(money("-3.50")))
	assert.Equal(t, "EUR", row.Currency)
}

func TestParseStatementSplitColumns(t *testing.T) {
	csv := "Date,Description,Withdrawals,Deposits\n" +
		"2024-03-04,STAPLES #1234,50.00,\n" +
		"2024-03-05,ACME CORP INV-1001,,\"1,200.00\"\n" +
		"2024-03-06,BROKEN,10.00,5.00\n" +
		"2024-03-07,NOTHING,,\n"

	parsed, err := ParseStatement(strings.NewReader(csv), nil)
	require.NoError(t, err)

	assert.Equal(t, "split_columns", parsed.Dialect)
	assert.Equal(t, 4, parsed.TotalRows)
	require.Len(t, parsed.Groups, 1)
	rows := parsed.Groups[0].Rows
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Amount.Equal(money("-50.00")))
	assert.True(t, rows[1].Amount.Equal(money("1200.00")))

	require.Len(t, parsed.Errors, 2)
	assert.Equal(t, 3, parsed.Errors[0].Row)
	assert.Equal(t, 4, parsed.Errors[1].Row)
	assert.Equal(t, "amount", parsed.Errors[1].Field)
	assert.Equal(t, parsed.TotalRows, parsed.Parsed()+len(parsed.Errors))
}

func TestParseStatementCardInvertsSign(t *testing.T) {
	csv := "Date,Description,Amount,Card Member\n" +
		"03/04/2024,STAPLES #1234,50.00,****1234\n" +
		"03/05/2024,PAYMENT THANK YOU,-500.00,****1234\n" +
		"03/05/2024,UBER TRIP,18.40,****9876\n"

	parsed, err := ParseStatement(strings.NewReader(csv), nil)
	require.NoError(t, err)
	assert.Equal(t, "card_statement", parsed.Dialect)

	require.Len(t, parsed.Groups, 2)
	assert.Equal(t, "****1234", parsed.Groups[0].AccountIdentifier)
	assert.Equal(t, "****9876", parsed.Groups[1].AccountIdentifier)
	assert.True(t, parsed.Groups[0].Rows[0].Amount.Equal(money("-50.00")), "a charge leaves the account")
	assert.True(t, parsed.Groups[0].Rows[1].Amount.Equal(money("500.00")), "a payment reduces the card balance")
}

func TestParseStatementTypedAmount(t *testing.T) {
	csv := "Date,Description,Amount,Type\n" +
		"2024-03-04,STAPLES,50.00,Debit\n" +
		"2024-03-05,REFUND,12.00,credit\n" +
		"2024-03-06,ODD,-7.00,adjustment\n"

	parsed, err := ParseStatement(strings.NewReader(csv), nil)
	require.NoError(t, err)
	rows := parsed.Groups[0].Rows
	assert.True(t, rows[0].Amount.Equal(money("-50.00")))
	assert.True(t, rows[1].Amount.Equal(money("12.00")))
	assert.True(t, rows[2].Amount.Equal(money("-7.00")), "unknown type keeps the printed sign")
}

func TestParseStatementKeepsWrittenDate(t *testing.T) {
	csv := "Date,Description,Amount\n" +
		"2024-03-01T23:00:00-05:00,LATE WIRE,-5.00\n" +
		"2024-03-01T01:00:00+05:00,EARLY WIRE,-6.00\n"

	parsed, err := ParseStatement(strings.NewReader(csv), nil)
	require.NoError(t, err)
	require.Empty(t, parsed.Errors)
	rows := parsed.Groups[0].Rows
	require.Len(t, rows, 2)
	assert.Equal(t, day("2024-03-01"), rows[0].TransactionDate)
	assert.Equal(t, day("2024-03-01"), rows[1].TransactionDate)
}

func TestParseStatementRowErrors(t *testing.T) {
	csv := "Date,Description,Amount\n" +
		"2024-03-04,STAPLES,-50.00\n" +
		"not a date,COFFEE,-4.50\n" +
		"2024-03-05,,-4.50\n" +
		"2024-03-05,LUNCH,twelve\n" +
		"\n" +
		"2024-03-06,POST-DATED,-1.005\n"

	parsed, err := ParseStatement(strings.NewReader(csv), nil)
	require.NoError(t, err)

	assert.Equal(t, 5, parsed.TotalRows, "blank lines are not rows")
	assert.Equal(t, 2, parsed.Parsed())
	fields := make([]string, 0, len(parsed.Errors))
	for _, rowErr := range parsed.Errors {
		fields = append(fields, rowErr.Field)
	}
	assert.Equal(t, []string{"date", "description", "amount"}, fields)
	assert.True(t, parsed.Groups[0].Rows[1].Amount.Equal(money("-1.01")), "amounts are rounded to the currency scale")
}

func TestParseStatementUnknownHeader(t *testing.T) {
	_, err := ParseStatement(strings.NewReader("When,What\n2024-03-04,x\n"), nil)
	assert.Error(t, err)
}
