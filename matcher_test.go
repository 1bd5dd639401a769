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
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blnkfinance/tally/config"
	"github.com/blnkfinance/tally/model"
)

func testPolicy() MatchPolicy {
	return MatchPolicy{
		AmountTolerance:       decimal.Zero,
		DateWindowDays:        5,
		TightWindowDays:       1,
		DescriptionSimilarity: 0.85,
	}
}

func invoicePayment(id, amount, date string) model.OpenItem {
	return model.OpenItem{
		ItemID:          id,
		ItemType:        model.EntityCustomerPayment,
		DocumentNumber:  "INV-1001",
		Amount:          money(amount),
		Date:            day(date),
		SourceAccountID: strPtr("src_1"),
		Status:          model.OpenItemStatusOpen,
	}
}

func deposit(amount, date, description string) *model.ImportedTransaction {
	txn := pendingTxn(amount)
	txn.TransactionDate = day(date)
	txn.Description = description
	return txn
}

func TestMatchConfidenceTiers(t *testing.T) {
	tests := []struct {
		name       string
		policy     func() MatchPolicy
		txn        *model.ImportedTransaction
		item       model.OpenItem
		found      bool
		confidence model.Confidence
	}{
		{
			name:       "exact amount, next day, reference in description",
			txn:        deposit("1200.00", "2024-03-02", "ACH DEPOSIT ACME CORP INV-1001"),
			item:       invoicePayment("item_1", "1200.00", "2024-03-01"),
			found:      true,
			confidence: model.ConfidenceHigh,
		},
		{
			name:       "exact amount without corroboration",
			txn:        deposit("1200.00", "2024-03-02", "ACH DEPOSIT ACME CORP"),
			item:       invoicePayment("item_1", "1200.00", "2024-03-01"),
			found:      true,
			confidence: model.ConfidenceMedium,
		},
		{
			name:       "corroborated but outside the tight window",
			txn:        deposit("1200.00", "2024-03-04", "ACH DEPOSIT INV-1001"),
			item:       invoicePayment("item_1", "1200.00", "2024-03-01"),
			found:      true,
			confidence: model.ConfidenceMedium,
		},
		{
			name: "within tolerance only",
			policy: func() MatchPolicy {
				p := testPolicy()
				p.AmountTolerance = money("1.00")
				return p
			},
			txn:        deposit("1199.50", "2024-03-01", "ACH DEPOSIT INV-1001"),
			item:       invoicePayment("item_1", "1200.00", "2024-03-01"),
			found:      true,
			confidence: model.ConfidenceLow,
		},
		{
			name:  "outside the date window",
			txn:   deposit("1200.00", "2024-03-07", "ACH DEPOSIT INV-1001"),
			item:  invoicePayment("item_1", "1200.00", "2024-03-01"),
			found: false,
		},
		{
			name:  "amount off by a cent with zero tolerance",
			txn:   deposit("1199.99", "2024-03-01", "ACH DEPOSIT INV-1001"),
			item:  invoicePayment("item_1", "1200.00", "2024-03-01"),
			found: false,
		},
		{
			name:  "outflow never matches a customer payment",
			txn:   deposit("-1200.00", "2024-03-01", "INV-1001"),
			item:  invoicePayment("item_1", "1200.00", "2024-03-01"),
			found: false,
		},
		{
			name: "already matched item",
			txn:  deposit("1200.00", "2024-03-01", "INV-1001"),
			item: func() model.OpenItem {
				item := invoicePayment("item_1", "1200.00", "2024-03-01")
				item.Status = model.OpenItemStatusMatched
				return item
			}(),
			found: false,
		},
		{
			name: "bill payment recorded with a positive amount",
			txn:  deposit("-310.00", "2024-03-01", "CHECK 4411 CITY UTILITIES"),
			item: model.OpenItem{
				ItemID: "item_2", ItemType: model.EntityBillPayment, Reference: "4411",
				Amount: money("310.00"), Date: day("2024-03-01"), Status: model.OpenItemStatusOpen,
			},
			found:      true,
			confidence: model.ConfidenceHigh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := testPolicy()
			if tt.policy != nil {
				policy = tt.policy()
			}
			result := NewMatcher(policy).Match(tt.txn, []model.OpenItem{tt.item})
			require.Equal(t, tt.found, result.Found())
			if tt.found {
				assert.Equal(t, tt.confidence, result.Confidence)
				assert.Equal(t, tt.item.ItemID, result.Candidate.ItemID)
				assert.False(t, result.Tied)
			}
		})
	}
}

func TestMatchTieDowngradesToLow(t *testing.T) {
	first := invoicePayment("item_b", "1200.00", "2024-03-01")
	first.DocumentNumber = ""
	second := invoicePayment("item_a", "1200.00", "2024-03-03")
	second.DocumentNumber = ""

	result := NewMatcher(testPolicy()).Match(deposit("1200.00", "2024-03-02", "ACH DEPOSIT"), []model.OpenItem{second, first})
	require.True(t, result.Found())
	assert.True(t, result.Tied)
	assert.Equal(t, model.ConfidenceLow, result.Confidence)
	assert.Equal(t, "item_b", result.Candidate.ItemID, "earliest candidate is offered")
}

func TestMatchPrefersHigherTier(t *testing.T) {
	corroborated := invoicePayment("item_1", "1200.00", "2024-03-02")
	plain := invoicePayment("item_2", "1200.00", "2024-03-01")
	plain.DocumentNumber = "INV-2002"

	result := NewMatcher(testPolicy()).Match(deposit("1200.00", "2024-03-02", "ACME INV-1001"), []model.OpenItem{plain, corroborated})
	require.True(t, result.Found())
	assert.False(t, result.Tied)
	assert.Equal(t, model.ConfidenceHigh, result.Confidence)
	assert.Equal(t, "item_1", result.Candidate.ItemID)
}

func TestMatchPreviousImport(t *testing.T) {
	previous := pendingTxn("-45.00")
	previous.TransactionID = "txn_prev"
	previous.TransactionDate = day("2024-03-01")
	previous.Description = "UBER   TRIP 1234"
	item := model.OpenItemFromImported(*previous)
	item.Status = model.OpenItemStatusOpen

	txn := deposit("-45.00", "2024-03-02", "Uber Trip 1235")
	result := NewMatcher(testPolicy()).Match(txn, []model.OpenItem{item})
	require.True(t, result.Found())
	assert.Equal(t, model.ConfidenceHigh, result.Confidence)
	assert.True(t, result.Corroborated)

	txn.Description = "LYFT RIDE"
	result = NewMatcher(testPolicy()).Match(txn, []model.OpenItem{item})
	require.True(t, result.Found())
	assert.Equal(t, model.ConfidenceMedium, result.Confidence)
}

func TestMatchIgnoresZeroAmountAndSelf(t *testing.T) {
	m := NewMatcher(testPolicy())
	assert.False(t, m.Match(deposit("0.00", "2024-03-01", "FEE REVERSAL"), []model.OpenItem{invoicePayment("item_1", "0.00", "2024-03-01")}).Found())

	txn := deposit("-45.00", "2024-03-01", "UBER TRIP")
	self := model.OpenItemFromImported(*txn)
	self.Status = model.OpenItemStatusOpen
	assert.False(t, m.Match(txn, []model.OpenItem{self}).Found())
}

func TestInScope(t *testing.T) {
	txn := pendingTxn("100.00")
	bySource := model.OpenItem{SourceAccountID: strPtr("src_1")}
	byLedger := model.OpenItem{LedgerAccountID: strPtr("acct_1000")}
	other := model.OpenItem{SourceAccountID: strPtr("src_2"), LedgerAccountID: strPtr("acct_2100")}

	assert.True(t, InScope(txn, "acct_1000", bySource))
	assert.True(t, InScope(txn, "acct_1000", byLedger))
	assert.False(t, InScope(txn, "", byLedger))
	assert.False(t, InScope(txn, "acct_1000", other))
}

func TestDescriptionSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, DescriptionSimilarity("STAPLES  #1234", "staples #1234"))
	assert.Equal(t, 1.0, DescriptionSimilarity("", ""))
	assert.InDelta(t, 0.93, DescriptionSimilarity("uber trip 1234", "uber trip 1235"), 0.01)
	assert.Less(t, DescriptionSimilarity("STAPLES", "AMAZON MKTPLACE"), 0.5)
}

func TestSameDayTightWindow(t *testing.T) {
	zero := 0
	policy := MatchPolicyFromConfig(config.MatchingConfig{
		AmountTolerance:       "0",
		DateWindowDays:        5,
		TightWindowDays:       &zero,
		DescriptionSimilarity: 0.85,
	})
	require.Equal(t, 0, policy.TightWindowDays)

	item := invoicePayment("item_1", "1200.00", "2024-03-01")
	sameDay := NewMatcher(policy).Match(deposit("1200.00", "2024-03-01", "ACH INV-1001"), []model.OpenItem{item})
	nextDay := NewMatcher(policy).Match(deposit("1200.00", "2024-03-02", "ACH INV-1001"), []model.OpenItem{item})

	assert.Equal(t, model.ConfidenceHigh, sameDay.Confidence)
	assert.Equal(t, model.ConfidenceMedium, nextDay.Confidence)
}
