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
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/blnkfinance/tally/config"
	"github.com/blnkfinance/tally/database/mocks"
	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/model"
)

func newTestTally(t *testing.T) (*Tally, *mocks.MockDataSource) {
	t.Helper()
	config.MockConfig(&config.Configuration{
		Server: config.ServerConfig{SecretKey: "some-secret"},
		Redis:  config.RedisConfig{Dns: "localhost:6379"},
	})
	ds := new(mocks.MockDataSource)
	return &Tally{datasource: ds}, ds
}

func testAccount(code, name string, accountType model.AccountType) *model.Account {
	return &model.Account{
		AccountID: "acct_" + code,
		Code:      code,
		Name:      name,
		Type:      accountType,
		Status:    model.AccountStatusActive,
		CreatedAt: time.Now(),
	}
}

// testChart is a small business chart: checking, a card, receivables, sales and two expenses.
func testChart() []model.Account {
	return []model.Account{
		*testAccount("1000", "Checking", model.AccountTypeAsset),
		*testAccount("1200", "Accounts Receivable", model.AccountTypeAsset),
		*testAccount("2100", "Business Card", model.AccountTypeLiability),
		*testAccount("4000", "Sales", model.AccountTypeRevenue),
		*testAccount("6100", "Office Supplies", model.AccountTypeExpense),
		*testAccount("6200", "Meals", model.AccountTypeExpense),
	}
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(s string) time.Time {
	parsed, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return parsed
}

func strPtr(s string) *string {
	return &s
}

func confidencePtr(c model.Confidence) *model.Confidence {
	return &c
}

func notFoundErr() error {
	return apierror.NewAPIError(apierror.ErrNotFound, "not found", nil)
}

func staleErr() error {
	return apierror.NewValidationError(apierror.ErrConflict, apierror.ReasonStaleState, "row changed")
}

func mappedSource(id, ledgerAccountID string) *model.SourceAccount {
	return &model.SourceAccount{
		SourceAccountID:   id,
		Institution:       "First Bank",
		AccountIdentifier: "****1234",
		Currency:          "USD",
		LedgerAccountID:   strPtr(ledgerAccountID),
	}
}

// stubSuggester returns a fixed answer and counts how often it was asked.
type stubSuggester struct {
	accountID string
	err       error
	calls     int32
}

func (s *stubSuggester) Suggest(context.Context, SuggestionRequest) (string, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.accountID, s.err
}

func (s *stubSuggester) Calls() int {
	return int(atomic.LoadInt32(&s.calls))
}
