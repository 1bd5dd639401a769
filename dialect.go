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
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Dialect describes how one institution lays out its statement export. Column lists hold
// header names, compared case-insensitively; the first one present in the file is used.
type Dialect struct {
	Name        string   `yaml:"name" json:"name"`
	Institution string   `yaml:"institution" json:"institution,omitempty"`
	Date        []string `yaml:"date" json:"date"`
	PostDate    []string `yaml:"post_date" json:"post_date,omitempty"`
	Description []string `yaml:"description" json:"description"`
	Amount      []string `yaml:"amount" json:"amount,omitempty"`
	// Debit and Credit name split columns: money out and money in respectively.
	Debit    []string `yaml:"debit" json:"debit,omitempty"`
	Credit   []string `yaml:"credit" json:"credit,omitempty"`
	Type     []string `yaml:"type" json:"type,omitempty"`
	Account  []string `yaml:"account" json:"account,omitempty"`
	Currency []string `yaml:"currency" json:"currency,omitempty"`
	Category []string `yaml:"category" json:"category,omitempty"`
	// DateFormats are Go reference layouts tried in order.
	DateFormats []string `yaml:"date_formats" json:"date_formats,omitempty"`
	// InvertSign marks exports where a positive amount is a charge, as on most card statements.
	InvertSign bool `yaml:"invert_sign" json:"invert_sign,omitempty"`
	// RequireAccount only accepts files that carry an account or card column.
	RequireAccount bool `yaml:"require_account" json:"require_account,omitempty"`
}

var defaultDateFormats = []string{
	"2006-01-02",
	time.RFC3339,
	"01/02/2006",
	"1/2/2006",
	"02/01/2006",
	"2006/01/02",
	"Jan 2, 2006",
	"02-Jan-2006",
}

var (
	dateColumns        = []string{"date", "transaction date", "trans date", "transaction_date", "booking date", "value date"}
	postDateColumns    = []string{"post date", "posted date", "posting date", "post_date", "posted_date"}
	descriptionColumns = []string{"description", "merchant", "payee", "details", "narrative", "memo", "name"}
	currencyColumns    = []string{"currency", "ccy"}
	categoryColumns    = []string{"category", "raw_category"}
	accountColumns     = []string{"account", "account number", "account_number", "account #", "account id", "card", "card number", "card no.", "card no", "card member"}
	cardColumns        = []string{"card", "card number", "card no.", "card no", "card member"}
)

// builtinDialects are tried after any custom dialect, most specific first.
var builtinDialects = []Dialect{
	{
		Name:        "split_columns",
		Date:        dateColumns,
		PostDate:    postDateColumns,
		Description: descriptionColumns,
		Debit:       []string{"debit", "withdrawal", "withdrawals", "money out", "paid out", "debit amount"},
		Credit:      []string{"credit", "deposit", "deposits", "money in", "paid in", "credit amount"},
		Account:     accountColumns,
		Currency:    currencyColumns,
		Category:    categoryColumns,
	},
	{
		Name:        "typed_amount",
		Date:        dateColumns,
		PostDate:    postDateColumns,
		Description: descriptionColumns,
		Amount:      []string{"amount", "transaction amount"},
		Type:        []string{"type", "transaction type", "debit/credit", "dr/cr"},
		Account:     accountColumns,
		Currency:    currencyColumns,
		Category:    categoryColumns,
	},
	{
		Name:           "card_statement",
		Date:           dateColumns,
		PostDate:       postDateColumns,
		Description:    descriptionColumns,
		Amount:         []string{"amount", "transaction amount"},
		Account:        cardColumns,
		Currency:       currencyColumns,
		Category:       categoryColumns,
		InvertSign:     true,
		RequireAccount: true,
	},
	{
		Name:        "signed_amount",
		Date:        dateColumns,
		PostDate:    postDateColumns,
		Description: descriptionColumns,
		Amount:      []string{"amount", "transaction amount", "value"},
		Account:     accountColumns,
		Currency:    currencyColumns,
		Category:    categoryColumns,
	},
}

// BuiltinDialects returns a copy of the dialects known without configuration.
func BuiltinDialects() []Dialect {
	out := make([]Dialect, len(builtinDialects))
	copy(out, builtinDialects)
	return out
}

// LoadDialects reads custom dialect definitions from YAML:
//
//	dialects:
//	  - name: acme_bank
//	    institution: Acme Bank
//	    date: [Booked]
//	    description: [Text]
//	    amount: [Sum]
//	    date_formats: ["02.01.2006"]
func LoadDialects(r io.Reader) ([]Dialect, error) {
	var file struct {
		Dialects []Dialect `yaml:"dialects"`
	}
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, errors.Wrap(err, "decoding dialect file")
	}
	for i, dialect := range file.Dialects {
		if err := dialect.validate(); err != nil {
			return nil, errors.Wrapf(err, "dialect %d", i+1)
		}
	}
	return file.Dialects, nil
}

func (d Dialect) validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return errors.New("name is required")
	}
	if len(d.Date) == 0 || len(d.Description) == 0 {
		return fmt.Errorf("%s: date and description columns are required", d.Name)
	}
	if len(d.Amount) == 0 && (len(d.Debit) == 0 || len(d.Credit) == 0) {
		return fmt.Errorf("%s: needs an amount column or both debit and credit columns", d.Name)
	}
	return nil
}

// columnLayout is a dialect resolved against one header row. Missing columns are -1.
type columnLayout struct {
	dialect     Dialect
	date        int
	postDate    int
	description int
	amount      int
	debit       int
	credit      int
	txnType     int
	account     int
	currency    int
	category    int
}

func findColumn(index map[string]int, names []string) int {
	for _, name := range names {
		if i, ok := index[strings.ToLower(strings.TrimSpace(name))]; ok {
			return i
		}
	}
	return -1
}

// resolve reports whether the header carries every column the dialect needs.
func (d Dialect) resolve(header []string) (columnLayout, bool) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}
	layout := columnLayout{
		dialect:     d,
		date:        findColumn(index, d.Date),
		postDate:    findColumn(index, d.PostDate),
		description: findColumn(index, d.Description),
		amount:      findColumn(index, d.Amount),
		debit:       findColumn(index, d.Debit),
		credit:      findColumn(index, d.Credit),
		txnType:     findColumn(index, d.Type),
		account:     findColumn(index, d.Account),
		currency:    findColumn(index, d.Currency),
		category:    findColumn(index, d.Category),
	}
	if layout.date < 0 || layout.description < 0 {
		return layout, false
	}
	if d.RequireAccount && layout.account < 0 {
		return layout, false
	}
	switch {
	case len(d.Debit) > 0 && len(d.Credit) > 0:
		return layout, layout.debit >= 0 && layout.credit >= 0
	case len(d.Type) > 0:
		return layout, layout.amount >= 0 && layout.txnType >= 0
	default:
		return layout, layout.amount >= 0
	}
}

// detectLayout picks the first dialect that fits the header. A named dialect is used on its own.
func detectLayout(header []string, name string, custom []Dialect) (columnLayout, error) {
	candidates := append(append([]Dialect{}, custom...), builtinDialects...)
	if name != "" {
		for _, dialect := range candidates {
			if strings.EqualFold(dialect.Name, name) {
				layout, ok := dialect.resolve(header)
				if !ok {
					return layout, fmt.Errorf("header does not fit dialect %s", dialect.Name)
				}
				return layout, nil
			}
		}
		return columnLayout{}, fmt.Errorf("unknown dialect %s", name)
	}
	for _, dialect := range candidates {
		if layout, ok := dialect.resolve(header); ok {
			return layout, nil
		}
	}
	return columnLayout{}, fmt.Errorf("no known dialect fits header %q", strings.Join(header, ","))
}

func field(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}

func (l columnLayout) parseDate(value string) (time.Time, error) {
	formats := l.dialect.DateFormats
	if len(formats) == 0 {
		formats = defaultDateFormats
	}
	for _, layout := range formats {
		if t, err := time.Parse(layout, value); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

var (
	outflowTypes = map[string]struct{}{
		"debit": {}, "dr": {}, "sale": {}, "purchase": {}, "charge": {}, "withdrawal": {}, "fee": {}, "payment out": {},
	}
	inflowTypes = map[string]struct{}{
		"credit": {}, "cr": {}, "payment": {}, "refund": {}, "return": {}, "deposit": {}, "interest": {},
	}
)

// signedAmount applies the dialect's sign convention so the result is negative for money
// leaving the source account.
func (l columnLayout) signedAmount(fields []string) (decimal.Decimal, string, error) {
	if l.debit >= 0 && l.credit >= 0 {
		debitText, creditText := field(fields, l.debit), field(fields, l.credit)
		if debitText == "" && creditText == "" {
			return decimal.Zero, "amount", errors.New("amount is missing")
		}
		var debit, credit decimal.Decimal
		var err error
		if debitText != "" {
			if debit, err = ParseAmount(debitText); err != nil {
				return decimal.Zero, "debit", err
			}
		}
		if creditText != "" {
			if credit, err = ParseAmount(creditText); err != nil {
				return decimal.Zero, "credit", err
			}
		}
		if !debit.IsZero() && !credit.IsZero() {
			return decimal.Zero, "amount", errors.New("both debit and credit are set")
		}
		if !debit.IsZero() {
			return debit.Abs().Neg(), "", nil
		}
		return credit.Abs(), "", nil
	}

	text := field(fields, l.amount)
	if text == "" {
		return decimal.Zero, "amount", errors.New("amount is missing")
	}
	amount, err := ParseAmount(text)
	if err != nil {
		return decimal.Zero, "amount", err
	}

	if l.txnType >= 0 {
		kind := strings.ToLower(field(fields, l.txnType))
		if _, ok := outflowTypes[kind]; ok {
			return amount.Abs().Neg(), "", nil
		}
		if _, ok := inflowTypes[kind]; ok {
			return amount.Abs(), "", nil
		}
	}
	if l.dialect.InvertSign {
		return amount.Neg(), "", nil
	}
	return amount, "", nil
}

var currencySymbols = strings.NewReplacer("$", "", "€", "", "£", "", "¥", "", "₦", "", "₹", "", " ", "", "\u00a0", "")

// ParseAmount reads an amount the way statements print them: currency symbols, thousands
// separators, parentheses for negatives, a trailing minus, and CR/DR markers are accepted.
// A decimal comma is recognised when it is the last separator or the only one with two digits after it.
func ParseAmount(text string) (decimal.Decimal, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return decimal.Zero, errors.New("amount is empty")
	}

	negative := false
	upper := strings.ToUpper(s)
	switch {
	case strings.HasSuffix(upper, "CR"):
		s = strings.TrimSpace(s[:len(s)-2])
	case strings.HasSuffix(upper, "DR"):
		s = strings.TrimSpace(s[:len(s)-2])
		negative = true
	}
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = s[1 : len(s)-1]
		negative = !negative
	}
	s = currencySymbols.Replace(s)
	for _, code := range []string{"USD", "EUR", "GBP", "NGN", "CAD", "AUD"} {
		s = strings.TrimPrefix(strings.TrimSuffix(s, code), code)
	}
	if strings.HasSuffix(s, "-") {
		s = s[:len(s)-1]
		negative = !negative
	}
	if strings.HasPrefix(s, "-") {
		s = s[1:]
		negative = !negative
	} else {
		s = strings.TrimPrefix(s, "+")
	}

	lastComma, lastDot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0 && lastComma > lastDot:
		s = strings.ReplaceAll(strings.ReplaceAll(s, ".", ""), ",", ".")
	case lastComma >= 0 && lastDot < 0 && strings.Count(s, ",") == 1 && len(s)-lastComma-1 == 2:
		s = strings.Replace(s, ",", ".", 1)
	default:
		s = strings.ReplaceAll(s, ",", "")
	}

	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparseable amount %q", text)
	}
	if negative {
		amount = amount.Neg()
	}
	return amount, nil
}
