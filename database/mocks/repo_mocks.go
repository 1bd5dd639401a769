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

package mocks

import (
	"context"
	"time"

	"github.com/blnkfinance/tally/database"
	"github.com/blnkfinance/tally/model"
	"github.com/stretchr/testify/mock"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Chart methods

func (m *MockDataSource) CreateAccount(ctx context.Context, account model.Account) (model.Account, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(model.Account), args.Error(1)
}

func (m *MockDataSource) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *MockDataSource) GetAccountByCode(ctx context.Context, code string) (*model.Account, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *MockDataSource) GetAllAccounts(ctx context.Context) ([]model.Account, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Account), args.Error(1)
}

func (m *MockDataSource) UpdateAccount(ctx context.Context, account *model.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockDataSource) AccountHasLines(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// Source account methods

func (m *MockDataSource) CreateSourceAccount(ctx context.Context, source model.SourceAccount) (model.SourceAccount, error) {
	args := m.Called(ctx, source)
	return args.Get(0).(model.SourceAccount), args.Error(1)
}

func (m *MockDataSource) GetSourceAccountByID(ctx context.Context, id string) (*model.SourceAccount, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SourceAccount), args.Error(1)
}

func (m *MockDataSource) GetSourceAccountByIdentifier(ctx context.Context, institution, identifier string) (*model.SourceAccount, error) {
	args := m.Called(ctx, institution, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SourceAccount), args.Error(1)
}

func (m *MockDataSource) GetAllSourceAccounts(ctx context.Context) ([]model.SourceAccount, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.SourceAccount), args.Error(1)
}

func (m *MockDataSource) UpdateSourceAccountLedger(ctx context.Context, id, ledgerAccountID string) error {
	args := m.Called(ctx, id, ledgerAccountID)
	return args.Error(0)
}

// Import batch methods

func (m *MockDataSource) GetImportBatch(ctx context.Context, id string) (*model.ImportBatch, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ImportBatch), args.Error(1)
}

func (m *MockDataSource) UpdateImportBatchStatus(ctx context.Context, id string, from, to model.BatchStatus) error {
	args := m.Called(ctx, id, from, to)
	return args.Error(0)
}

func (m *MockDataSource) UpdateImportBatchArchive(ctx context.Context, id, archiveKey string) error {
	args := m.Called(ctx, id, archiveKey)
	return args.Error(0)
}

func (m *MockDataSource) CompleteImportBatch(ctx context.Context, batch *model.ImportBatch) error {
	args := m.Called(ctx, batch)
	return args.Error(0)
}

// Imported transaction methods

func (m *MockDataSource) RecordImport(ctx context.Context, batch *model.ImportBatch, txns []*model.ImportedTransaction) ([]*model.ImportedTransaction, error) {
	args := m.Called(ctx, batch, txns)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.ImportedTransaction), args.Error(1)
}

func (m *MockDataSource) GetImportedTransaction(ctx context.Context, id string) (*model.ImportedTransaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ImportedTransaction), args.Error(1)
}

func (m *MockDataSource) GetImportedTransactions(ctx context.Context, filter model.TransactionFilter, limit, offset int) ([]model.ImportedTransaction, error) {
	args := m.Called(ctx, filter, limit, offset)
	return args.Get(0).([]model.ImportedTransaction), args.Error(1)
}

func (m *MockDataSource) GetPendingTransactionsByBatch(ctx context.Context, batchID string) ([]*model.ImportedTransaction, error) {
	args := m.Called(ctx, batchID)
	return args.Get(0).([]*model.ImportedTransaction), args.Error(1)
}

func (m *MockDataSource) GetMatchableImportedTransactions(ctx context.Context, excludeBatchID string, from, to time.Time) ([]model.ImportedTransaction, error) {
	args := m.Called(ctx, excludeBatchID, from, to)
	return args.Get(0).([]model.ImportedTransaction), args.Error(1)
}

func (m *MockDataSource) UpdateTransactionSuggestion(ctx context.Context, txn *model.ImportedTransaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func (m *MockDataSource) TransitionTransaction(ctx context.Context, txn *model.ImportedTransaction, from model.TransactionStatus) error {
	args := m.Called(ctx, txn, from)
	return args.Error(0)
}

func (m *MockDataSource) LinkTransactionMatch(ctx context.Context, txn *model.ImportedTransaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

// Journal methods

func (m *MockDataSource) RecordPostedEntry(ctx context.Context, entry *model.JournalEntry, opts database.PostingOptions) error {
	args := m.Called(ctx, entry, opts)
	return args.Error(0)
}

func (m *MockDataSource) SaveDraftEntry(ctx context.Context, entry *model.JournalEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockDataSource) PostDraftEntry(ctx context.Context, entry *model.JournalEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockDataSource) GetJournalEntry(ctx context.Context, id string) (*model.JournalEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.JournalEntry), args.Error(1)
}

func (m *MockDataSource) GetJournalEntries(ctx context.Context, limit, offset int) ([]model.JournalEntry, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]model.JournalEntry), args.Error(1)
}

func (m *MockDataSource) IsEntryReversed(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockDataSource) GetAccountBalance(ctx context.Context, accountID string) (model.AccountBalance, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(model.AccountBalance), args.Error(1)
}

// Bank rule methods

func (m *MockDataSource) CreateBankRule(ctx context.Context, rule model.BankRule) (model.BankRule, error) {
	args := m.Called(ctx, rule)
	return args.Get(0).(model.BankRule), args.Error(1)
}

func (m *MockDataSource) GetBankRule(ctx context.Context, id string) (*model.BankRule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BankRule), args.Error(1)
}

func (m *MockDataSource) GetBankRules(ctx context.Context) ([]model.BankRule, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.BankRule), args.Error(1)
}

func (m *MockDataSource) UpdateBankRule(ctx context.Context, rule *model.BankRule) error {
	args := m.Called(ctx, rule)
	return args.Error(0)
}

func (m *MockDataSource) DeleteBankRule(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Open item methods

func (m *MockDataSource) RecordOpenItem(ctx context.Context, item model.OpenItem) (model.OpenItem, error) {
	args := m.Called(ctx, item)
	return args.Get(0).(model.OpenItem), args.Error(1)
}

func (m *MockDataSource) GetOpenItem(ctx context.Context, id string) (*model.OpenItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OpenItem), args.Error(1)
}

func (m *MockDataSource) GetOpenItems(ctx context.Context, status model.OpenItemStatus) ([]model.OpenItem, error) {
	args := m.Called(ctx, status)
	return args.Get(0).([]model.OpenItem), args.Error(1)
}

// Recurring template methods

func (m *MockDataSource) CreateRecurringTemplate(ctx context.Context, template model.RecurringTemplate) (model.RecurringTemplate, error) {
	args := m.Called(ctx, template)
	return args.Get(0).(model.RecurringTemplate), args.Error(1)
}

func (m *MockDataSource) GetRecurringTemplate(ctx context.Context, id string) (*model.RecurringTemplate, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RecurringTemplate), args.Error(1)
}

func (m *MockDataSource) UpdateRecurringTemplateStatus(ctx context.Context, id string, from, to model.TemplateStatus) error {
	args := m.Called(ctx, id, from, to)
	return args.Error(0)
}

var _ database.IDataSource = (*MockDataSource)(nil)
