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
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/internal/cache"
	"github.com/blnkfinance/tally/model"
)

func TestCreateAccount(t *testing.T) {
	tl, ds := newTestTally(t)
	ds.On("GetAccountByCode", mock.Anything, "6300").Return(nil, notFoundErr())
	ds.On("GetAccountByID", mock.Anything, "acct_6100").Return(testAccount("6100", "Office Supplies", model.AccountTypeExpense), nil)
	var saved model.Account
	ds.On("CreateAccount", mock.Anything, mock.AnythingOfType("model.Account")).
		Run(func(args mock.Arguments) { saved = args.Get(1).(model.Account) }).
		Return(model.Account{AccountID: "acct_new"}, nil)

	name := gofakeit.BuzzWord() + " supplies"
	_, err := tl.CreateAccount(context.Background(), model.Account{
		Code:            " 6300 ",
		Name:            name,
		Type:            model.AccountTypeExpense,
		ParentAccountID: strPtr("acct_6100"),
	})
	require.NoError(t, err)

	assert.Equal(t, "6300", saved.Code)
	assert.Contains(t, saved.AccountID, "acct_")
	assert.Equal(t, model.AccountStatusActive, saved.Status)
}

func TestCreateAccountRefusals(t *testing.T) {
	t.Run("duplicate code", func(t *testing.T) {
		tl, ds := newTestTally(t)
		ds.On("GetAccountByCode", mock.Anything, "1000").Return(testAccount("1000", "Checking", model.AccountTypeAsset), nil)

		_, err := tl.CreateAccount(context.Background(), model.Account{Code: "1000", Name: "Savings", Type: model.AccountTypeAsset})
		assert.Equal(t, apierror.ErrConflict, apierror.CodeOf(err))
		ds.AssertNotCalled(t, "CreateAccount", mock.Anything, mock.Anything)
	})

	t.Run("unknown type", func(t *testing.T) {
		tl, _ := newTestTally(t)
		_, err := tl.CreateAccount(context.Background(), model.Account{Code: "9000", Name: "Misc", Type: "contra"})
		assert.Equal(t, apierror.ErrInvalidInput, apierror.CodeOf(err))
	})

	t.Run("missing parent", func(t *testing.T) {
		tl, ds := newTestTally(t)
		ds.On("GetAccountByCode", mock.Anything, "6300").Return(nil, notFoundErr())
		ds.On("GetAccountByID", mock.Anything, "acct_nope").Return(nil, notFoundErr())

		_, err := tl.CreateAccount(context.Background(), model.Account{Code: "6300", Name: "Postage", Type: model.AccountTypeExpense, ParentAccountID: strPtr("acct_nope")})
		assert.Equal(t, apierror.ErrInvalidInput, apierror.CodeOf(err))
	})
}

func TestUpdateAccountRejectsCycle(t *testing.T) {
	tl, ds := newTestTally(t)
	parent := testAccount("6000", "Operating Expenses", model.AccountTypeExpense)
	child := testAccount("6100", "Office Supplies", model.AccountTypeExpense)
	child.ParentAccountID = strPtr(parent.AccountID)
	ds.On("GetAccountByID", mock.Anything, "acct_6000").Return(parent, nil)
	ds.On("GetAccountByID", mock.Anything, "acct_6100").Return(child, nil)

	update := *parent
	update.ParentAccountID = strPtr("acct_6100")
	err := tl.UpdateAccount(context.Background(), &update)
	assert.Equal(t, apierror.ReasonAccountCycle, apierror.ReasonOf(err))
	ds.AssertNotCalled(t, "UpdateAccount", mock.Anything, mock.Anything)
}

func TestUpdateAccountTypeFrozenOnceUsed(t *testing.T) {
	tl, ds := newTestTally(t)
	ds.On("GetAccountByID", mock.Anything, "acct_6100").Return(testAccount("6100", "Office Supplies", model.AccountTypeExpense), nil)
	ds.On("AccountHasLines", mock.Anything, "acct_6100").Return(true, nil)

	update := testAccount("6100", "Office Supplies", model.AccountTypeAsset)
	err := tl.UpdateAccount(context.Background(), update)
	assert.Equal(t, apierror.ReasonTypeImmutable, apierror.ReasonOf(err))
}

func TestUpdateAccountTypeChangeWhenUnused(t *testing.T) {
	tl, ds := newTestTally(t)
	ds.On("GetAccountByID", mock.Anything, "acct_6100").Return(testAccount("6100", "Office Supplies", model.AccountTypeExpense), nil)
	ds.On("AccountHasLines", mock.Anything, "acct_6100").Return(false, nil)
	ds.On("UpdateAccount", mock.Anything, mock.AnythingOfType("*model.Account")).Return(nil)

	update := testAccount("6100", "Prepaid Supplies", model.AccountTypeAsset)
	update.Status = ""
	require.NoError(t, tl.UpdateAccount(context.Background(), update))
	assert.Equal(t, model.AccountStatusActive, update.Status)
}

func TestMapSourceAccount(t *testing.T) {
	tl, ds := newTestTally(t)
	expectChartLookups(ds)
	source := mappedSource("src_1", "acct_1000")
	source.LedgerAccountID = nil
	ds.On("GetSourceAccountByID", mock.Anything, "src_1").Return(source, nil)
	ds.On("UpdateSourceAccountLedger", mock.Anything, "src_1", "acct_2100").Return(nil)

	mapped, err := tl.MapSourceAccount(context.Background(), "src_1", "acct_2100")
	require.NoError(t, err)
	assert.Equal(t, "acct_2100", *mapped.LedgerAccountID)

	_, err = tl.MapSourceAccount(context.Background(), "src_1", "acct_6100")
	assert.Equal(t, apierror.ErrInvalidInput, apierror.CodeOf(err), "expense accounts do not hold money")
	ds.AssertNumberOfCalls(t, "UpdateSourceAccountLedger", 1)
}

func TestChartSnapshotIsCached(t *testing.T) {
	tl, ds := newTestTally(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	tl.cache = cache.NewCache(client)

	ds.On("GetAllAccounts", mock.Anything).Return(testChart(), nil).Once()

	first, err := tl.ChartSnapshot(context.Background())
	require.NoError(t, err)
	second, err := tl.ChartSnapshot(context.Background())
	require.NoError(t, err)

	codes := func(snapshot *ChartSnapshot) []string {
		out := []string{}
		for _, account := range snapshot.Accounts() {
			out = append(out, account.Code)
		}
		return out
	}
	assert.Equal(t, codes(first), codes(second))
	ds.AssertNumberOfCalls(t, "GetAllAccounts", 1)

	account, ok := second.AccountByCode("6100")
	require.True(t, ok)
	assert.Equal(t, "acct_6100", account.AccountID)
	assert.True(t, second.IsActive("acct_6100"))
	assert.False(t, second.IsActive("acct_missing"))
}

func TestChartSnapshotOrdersByCode(t *testing.T) {
	chart := testChart()
	chart[0], chart[5] = chart[5], chart[0]
	inactive := testAccount("6900", "Old Expenses", model.AccountTypeExpense)
	inactive.Status = model.AccountStatusInactive
	chart = append(chart, *inactive)

	snapshot := NewChartSnapshot(chart)
	codes := make([]string, 0, len(chart))
	for _, account := range snapshot.Accounts() {
		codes = append(codes, account.Code)
	}
	assert.Equal(t, []string{"1000", "1200", "2100", "4000", "6100", "6200", "6900"}, codes)
	assert.Len(t, snapshot.ActiveAccounts(), 6)
}

const seedYAML = `
asset:
  - code: "1000"
    name: Checking
    subtype: bank
expense:
  - code: "6100"
    name: Office Supplies
  - code: "6110"
    name: Printer Ink
    parent: "6100"
`

func TestSeedChart(t *testing.T) {
	tl, ds := newTestTally(t)
	supplies := testAccount("6100", "Office Supplies", model.AccountTypeExpense)
	ds.On("GetAccountByCode", mock.Anything, "1000").Return(nil, notFoundErr())
	ds.On("GetAccountByCode", mock.Anything, "6100").Return(supplies, nil)
	ds.On("GetAccountByCode", mock.Anything, "6110").Return(nil, notFoundErr())
	ds.On("GetAccountByID", mock.Anything, "acct_6100").Return(supplies, nil)

	var created []model.Account
	ds.On("CreateAccount", mock.Anything, mock.AnythingOfType("model.Account")).
		Run(func(args mock.Arguments) { created = append(created, args.Get(1).(model.Account)) }).
		Return(model.Account{}, nil)

	result, err := tl.SeedChart(context.Background(), strings.NewReader(seedYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"1000", "6110"}, result.Created)
	assert.Equal(t, []string{"6100"}, result.Skipped)
	require.Len(t, created, 2)
	assert.Equal(t, model.AccountTypeAsset, created[0].Type)
	assert.Equal(t, "bank", created[0].Subtype)
	assert.Equal(t, "acct_6100", *created[1].ParentAccountID)
}

func TestSeedChartRejectsUnknownType(t *testing.T) {
	tl, ds := newTestTally(t)
	_, err := tl.SeedChart(context.Background(), strings.NewReader("contra:\n  - code: \"1\"\n    name: x\n"))
	assert.Equal(t, apierror.ErrInvalidInput, apierror.CodeOf(err))
	ds.AssertNotCalled(t, "CreateAccount", mock.Anything, mock.Anything)
}
