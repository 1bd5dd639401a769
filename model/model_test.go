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

package model

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestGenerateUUIDWithSuffix(t *testing.T) {
	id := GenerateUUIDWithSuffix("jrn")
	assert.Regexp(t, `^jrn_[0-9a-f-]{36}$`, id)
	assert.NotEqual(t, id, GenerateUUIDWithSuffix("jrn"))
}

func TestHasScale(t *testing.T) {
	assert.True(t, HasScale(d("10.25"), 2))
	assert.True(t, HasScale(d("10"), 2))
	assert.False(t, HasScale(d("10.255"), 2))
	assert.True(t, RoundMoney(d("10.255"), 2).Equal(d("10.26")))
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)
	b := time.Date(2024, 3, 3, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, 2, DaysBetween(a, b))
	assert.Equal(t, 2, DaysBetween(b, a))
	assert.Equal(t, 0, DaysBetween(a, a))
}

func TestImportHashIgnoresCaseAndSpacing(t *testing.T) {
	date := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	h1 := ImportHash("src_1", date, d("-12.50"), "STAPLES  #4521", 1)
	h2 := ImportHash("src_1", date.Add(5*time.Hour), d("-12.5"), "staples #4521", 1)
	h3 := ImportHash("src_2", date, d("-12.50"), "STAPLES #4521", 1)
	h4 := ImportHash("src_1", date, d("-12.50"), "STAPLES #4521", 2)
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.NotEqual(t, h1, h4)
	assert.Equal(t, h1, ImportHash("src_1", date, d("-12.50"), "STAPLES #4521", 0))
}

func TestTransactionStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to TransactionStatus
		allowed  bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusMatched, true},
		{StatusPending, StatusPosted, false},
		{StatusApproved, StatusPosted, true},
		{StatusApproved, StatusRejected, false},
		{StatusPosted, StatusApproved, false},
		{StatusPosted, StatusPosted, false},
		{StatusRejected, StatusApproved, false},
		{StatusMatched, StatusPosted, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}

	assert.True(t, StatusPosted.IsTerminal())
	assert.True(t, StatusRejected.IsTerminal())
	assert.True(t, StatusMatched.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, TransactionStatus("bogus").Valid())
}

func TestJournalStatusTransitions(t *testing.T) {
	assert.True(t, JournalStatusDraft.CanTransitionTo(JournalStatusPosted))
	assert.False(t, JournalStatusPosted.CanTransitionTo(JournalStatusDraft))
	assert.False(t, JournalStatusPosted.CanTransitionTo(JournalStatusPosted))
}

func TestHasUsableMatchAndResolvedAccount(t *testing.T) {
	high, low := ConfidenceHigh, ConfidenceLow
	item := "item_1"
	txn := &ImportedTransaction{MatchedEntityID: &item, Confidence: &high}
	assert.True(t, txn.HasUsableMatch())

	txn.Confidence = &low
	assert.False(t, txn.HasUsableMatch())

	assert.Nil(t, txn.ResolvedAccountID())
	suggested, approved := "acct_s", "acct_a"
	txn.SuggestedAccountID = &suggested
	assert.Equal(t, "acct_s", *txn.ResolvedAccountID())
	txn.ApprovedAccountID = &approved
	assert.Equal(t, "acct_a", *txn.ResolvedAccountID())
}

func TestJournalEntryValidateForPosting(t *testing.T) {
	balanced := &JournalEntry{Lines: []JournalEntryLine{
		{AccountID: "a", Debit: d("50.00"), Credit: decimal.Zero},
		{AccountID: "b", Debit: decimal.Zero, Credit: d("20.00")},
		{AccountID: "c", Debit: decimal.Zero, Credit: d("30.00")},
	}}
	assert.NoError(t, balanced.ValidateForPosting(2))

	unbalanced := &JournalEntry{Lines: []JournalEntryLine{
		{AccountID: "a", Debit: d("50.00"), Credit: decimal.Zero},
		{AccountID: "b", Debit: decimal.Zero, Credit: d("49.99")},
	}}
	err := unbalanced.ValidateForPosting(2)
	assert.True(t, errors.Is(err, ErrEntryUnbalanced))
	assert.Contains(t, err.Error(), "debits 50.00, credits 49.99")

	single := &JournalEntry{Lines: []JournalEntryLine{{AccountID: "a", Debit: d("1"), Credit: decimal.Zero}}}
	assert.ErrorIs(t, single.ValidateForPosting(2), ErrTooFewLines)

	bothSides := &JournalEntry{Lines: []JournalEntryLine{
		{AccountID: "a", Debit: d("5"), Credit: d("5")},
		{AccountID: "b", Debit: decimal.Zero, Credit: decimal.Zero},
	}}
	assert.ErrorIs(t, bothSides.ValidateForPosting(2), ErrLineBothSides)

	negative := &JournalEntry{Lines: []JournalEntryLine{
		{AccountID: "a", Debit: d("-5"), Credit: decimal.Zero},
		{AccountID: "b", Debit: decimal.Zero, Credit: d("-5")},
	}}
	assert.ErrorIs(t, negative.ValidateForPosting(2), ErrLineNegative)

	fine := &JournalEntry{Lines: []JournalEntryLine{
		{AccountID: "a", Debit: d("0.001"), Credit: decimal.Zero},
		{AccountID: "b", Debit: decimal.Zero, Credit: d("0.001")},
	}}
	assert.ErrorIs(t, fine.ValidateForPosting(2), ErrLineScale)
}

func TestExactDecimalSummation(t *testing.T) {
	entry := &JournalEntry{}
	for i := 0; i < 10; i++ {
		entry.Lines = append(entry.Lines, JournalEntryLine{AccountID: "a", Debit: d("0.10"), Credit: decimal.Zero})
	}
	entry.Lines = append(entry.Lines, JournalEntryLine{AccountID: "b", Debit: decimal.Zero, Credit: d("1.00")})
	assert.True(t, entry.IsBalanced())
}

func TestReversedSwapsSidesWithoutMutatingOriginal(t *testing.T) {
	original := &JournalEntry{
		JournalEntryID: "jrn_1",
		Reference:      "INV-1",
		Status:         JournalStatusPosted,
		Lines: []JournalEntryLine{
			{LineNumber: 1, AccountID: "supplies", Debit: d("50.00"), Credit: decimal.Zero},
			{LineNumber: 2, AccountID: "checking", Debit: decimal.Zero, Credit: d("50.00")},
		},
	}
	reversal := original.Reversed("alice", "correction", time.Now())

	require.Len(t, reversal.Lines, 2)
	assert.Equal(t, "REV-INV-1", reversal.Reference)
	assert.Equal(t, "jrn_1", *reversal.ReversalOf)
	assert.Equal(t, JournalSourceReversal, reversal.Source)
	assert.True(t, reversal.Lines[0].Credit.Equal(d("50.00")))
	assert.True(t, reversal.Lines[1].Debit.Equal(d("50.00")))
	assert.True(t, original.Lines[0].Debit.Equal(d("50.00")))
	assert.True(t, reversal.IsBalanced())

	net := map[string]decimal.Decimal{}
	for _, e := range []*JournalEntry{original, reversal} {
		for _, l := range e.Lines {
			net[l.AccountID] = net[l.AccountID].Add(l.Debit).Sub(l.Credit)
		}
	}
	for account, balance := range net {
		assert.True(t, balance.IsZero(), account)
	}
}

func TestBankRuleMatches(t *testing.T) {
	staples := BankRule{Name: "Staples", MatchField: MatchFieldDescription, MatchType: MatchTypeContains, MatchValue: "STAPLES", AssignAccountID: "supplies", Priority: 1}
	require.NoError(t, staples.Validate())

	assert.True(t, staples.Matches(&ImportedTransaction{Description: "STAPLES #4521"}))
	assert.True(t, staples.Matches(&ImportedTransaction{Description: "staples store"}))
	assert.False(t, staples.Matches(&ImportedTransaction{Description: "OFFICE DEPOT"}))

	prefix := BankRule{Name: "Uber", MatchField: MatchFieldDescription, MatchType: MatchTypeStartsWith, MatchValue: "uber", AssignAccountID: "travel"}
	assert.True(t, prefix.Matches(&ImportedTransaction{Description: "UBER *TRIP"}))
	assert.False(t, prefix.Matches(&ImportedTransaction{Description: "PAY UBER"}))

	raw := BankRule{Name: "Fuel", MatchField: MatchFieldRawCategory, MatchType: MatchTypeEquals, MatchValue: "gas", AssignAccountID: "fuel"}
	assert.True(t, raw.Matches(&ImportedTransaction{RawCategory: "Gas"}))

	big := BankRule{Name: "Big", MatchField: MatchFieldAmount, MatchType: MatchTypeGreaterThan, MatchValue: "1000", AssignAccountID: "capex"}
	require.NoError(t, big.Validate())
	assert.True(t, big.Matches(&ImportedTransaction{Amount: d("-1500.00")}))
	assert.False(t, big.Matches(&ImportedTransaction{Amount: d("-999.99")}))
}

func TestBankRuleValidate(t *testing.T) {
	assert.EqualError(t, BankRule{}.Validate(), "rule name is required")
	assert.EqualError(t, BankRule{Name: "x", AssignAccountID: "a", MatchValue: "v", MatchField: "memo", MatchType: MatchTypeContains}.Validate(), "invalid match_field")
	assert.EqualError(t, BankRule{Name: "x", AssignAccountID: "a", MatchValue: "v", MatchField: MatchFieldDescription, MatchType: MatchTypeGreaterThan}.Validate(), "invalid match_type for a text field")
	assert.EqualError(t, BankRule{Name: "x", AssignAccountID: "a", MatchValue: "abc", MatchField: MatchFieldAmount, MatchType: MatchTypeEquals}.Validate(), "match_value must be a decimal for the amount field")
}

func TestRunReference(t *testing.T) {
	run := time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)
	assert.Equal(t, "tpl_1:2024-05-01", RunReference("tpl_1", run))
}

func TestRowError(t *testing.T) {
	assert.Equal(t, "row 4: amount: not a number", RowError{Row: 4, Field: "amount", Message: "not a number"}.Error())
	assert.Equal(t, "row 2: missing columns", RowError{Row: 2, Message: "missing columns"}.Error())
}
