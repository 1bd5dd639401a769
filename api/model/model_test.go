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
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/blnkfinance/tally/model"
)

func TestValidateCreateAccount(t *testing.T) {
	tests := []struct {
		name    string
		account CreateAccount
		wantErr bool
	}{
		{"valid", CreateAccount{Code: "6100", Name: "Office Supplies", Type: "expense"}, false},
		{"missing code", CreateAccount{Name: "Office Supplies", Type: "expense"}, true},
		{"missing name", CreateAccount{Code: "6100", Type: "expense"}, true},
		{"unknown type", CreateAccount{Code: "6100", Name: "Office Supplies", Type: "contra"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.account.ValidateCreateAccount()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateJournalEntry(t *testing.T) {
	valid := JournalEntry{
		TransactionDate: "2024-03-04",
		CreatedBy:       "jane",
		Lines: []JournalLine{
			{AccountID: "acct_6100", Debit: decimal.RequireFromString("50.00")},
			{AccountID: "acct_1000", Credit: decimal.RequireFromString("50.00")},
		},
	}
	assert.NoError(t, valid.ValidateJournalEntry())

	badDate := valid
	badDate.TransactionDate = "03/04/2024"
	assert.Error(t, badDate.ValidateJournalEntry())

	noLines := valid
	noLines.Lines = nil
	assert.Error(t, noLines.ValidateJournalEntry())

	noAccount := valid
	noAccount.Lines = []JournalLine{{Debit: decimal.RequireFromString("1")}, {AccountID: "acct_1000"}}
	assert.Error(t, noAccount.ValidateJournalEntry())

	entry := valid.ToJournalEntry()
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), entry.TransactionDate)
	assert.Len(t, entry.Lines, 2)
	assert.True(t, entry.Lines[1].Credit.Equal(decimal.RequireFromString("50")))
}

func TestValidateOpenItem(t *testing.T) {
	item := OpenItem{ItemType: "bill_payment", Amount: decimal.RequireFromString("310.00"), Date: "2024-03-01", SourceAccountID: "src_1"}
	assert.NoError(t, item.ValidateOpenItem())
	assert.Equal(t, model.EntityBillPayment, item.ToOpenItem().ItemType)
	assert.Nil(t, item.ToOpenItem().LedgerAccountID)

	zero := item
	zero.Amount = decimal.Zero
	assert.Error(t, zero.ValidateOpenItem())

	unanchored := item
	unanchored.SourceAccountID = ""
	assert.Error(t, unanchored.ValidateOpenItem())

	previous := item
	previous.ItemType = "previous_import"
	assert.Error(t, previous.ValidateOpenItem())
}

func TestValidateBankRule(t *testing.T) {
	rule := BankRule{Name: "Staples", MatchField: "description", MatchType: "contains", MatchValue: "staples", AssignAccountID: "acct_6100"}
	assert.NoError(t, rule.ValidateBankRule())

	bad := rule
	bad.MatchType = "regex"
	assert.Error(t, bad.ValidateBankRule())

	negative := rule
	negative.Priority = -1
	assert.Error(t, negative.ValidateBankRule())
}

func TestValidateRecurringTemplate(t *testing.T) {
	template := RecurringTemplate{Name: "Retainer", TransactionType: "invoice", Frequency: "monthly", NextRunDate: "2024-04-01", SourceAccountID: "src_1"}
	assert.NoError(t, template.ValidateRecurringTemplate())

	journal := template
	journal.TransactionType = "journal_entry"
	journal.SourceAccountID = ""
	assert.NoError(t, journal.ValidateRecurringTemplate())

	invoice := template
	invoice.SourceAccountID = ""
	assert.Error(t, invoice.ValidateRecurringTemplate())
}

func TestValidateRecurringRun(t *testing.T) {
	run := RecurringRun{
		RunDate:     "2024-04-01",
		NextRunDate: "2024-05-01",
		Draft: JournalEntry{
			CreatedBy: "scheduler",
			Lines:     []JournalLine{{AccountID: "acct_1200"}, {AccountID: "acct_4000"}},
		},
	}
	assert.NoError(t, run.ValidateRecurringRun())
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), run.ToRecurringRun().NextRunDate)

	noDraft := run
	noDraft.Draft.Lines = nil
	assert.Error(t, noDraft.ValidateRecurringRun())
}
