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

package database

import (
	"context"
	"time"

	"github.com/blnkfinance/tally/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	chart               // Chart of accounts
	sourceAccount       // External bank and card accounts
	importBatch         // Statement import batches
	importedTransaction // Statement rows and their review state
	journal             // Journal entries and lines
	bankRule            // Categorization rules
	openItem            // Already-entered payments used as match candidates
	recurring           // Recurring templates
}

// chart defines methods for the chart of accounts.
type chart interface {
	CreateAccount(ctx context.Context, account model.Account) (model.Account, error)
	GetAccountByID(ctx context.Context, id string) (*model.Account, error)
	GetAccountByCode(ctx context.Context, code string) (*model.Account, error)
	GetAllAccounts(ctx context.Context) ([]model.Account, error)
	UpdateAccount(ctx context.Context, account *model.Account) error
	AccountHasLines(ctx context.Context, id string) (bool, error)
}

// sourceAccount defines methods for bank and card accounts feeding imports.
type sourceAccount interface {
	CreateSourceAccount(ctx context.Context, source model.SourceAccount) (model.SourceAccount, error)
	GetSourceAccountByID(ctx context.Context, id string) (*model.SourceAccount, error)
	GetSourceAccountByIdentifier(ctx context.Context, institution, identifier string) (*model.SourceAccount, error)
	GetAllSourceAccounts(ctx context.Context) ([]model.SourceAccount, error)
	UpdateSourceAccountLedger(ctx context.Context, id, ledgerAccountID string) error
}

// importBatch defines methods for import batches.
type importBatch interface {
	GetImportBatch(ctx context.Context, id string) (*model.ImportBatch, error)
	UpdateImportBatchStatus(ctx context.Context, id string, from, to model.BatchStatus) error
	UpdateImportBatchArchive(ctx context.Context, id, archiveKey string) error
	CompleteImportBatch(ctx context.Context, batch *model.ImportBatch) error
}

// importedTransaction defines methods for statement rows.
type importedTransaction interface {
	RecordImport(ctx context.Context, batch *model.ImportBatch, txns []*model.ImportedTransaction) ([]*model.ImportedTransaction, error)
	GetImportedTransaction(ctx context.Context, id string) (*model.ImportedTransaction, error)
	GetImportedTransactions(ctx context.Context, filter model.TransactionFilter, limit, offset int) ([]model.ImportedTransaction, error)
	GetPendingTransactionsByBatch(ctx context.Context, batchID string) ([]*model.ImportedTransaction, error)
	GetMatchableImportedTransactions(ctx context.Context, excludeBatchID string, from, to time.Time) ([]model.ImportedTransaction, error)
	UpdateTransactionSuggestion(ctx context.Context, txn *model.ImportedTransaction) error
	TransitionTransaction(ctx context.Context, txn *model.ImportedTransaction, from model.TransactionStatus) error
	LinkTransactionMatch(ctx context.Context, txn *model.ImportedTransaction) error
}

// journal defines methods for journal entries.
type journal interface {
	RecordPostedEntry(ctx context.Context, entry *model.JournalEntry, opts PostingOptions) error
	SaveDraftEntry(ctx context.Context, entry *model.JournalEntry) error
	PostDraftEntry(ctx context.Context, entry *model.JournalEntry) error
	GetJournalEntry(ctx context.Context, id string) (*model.JournalEntry, error)
	GetJournalEntries(ctx context.Context, limit, offset int) ([]model.JournalEntry, error)
	IsEntryReversed(ctx context.Context, id string) (bool, error)
	GetAccountBalance(ctx context.Context, accountID string) (model.AccountBalance, error)
}

// bankRule defines methods for categorization rules.
type bankRule interface {
	CreateBankRule(ctx context.Context, rule model.BankRule) (model.BankRule, error)
	GetBankRule(ctx context.Context, id string) (*model.BankRule, error)
	GetBankRules(ctx context.Context) ([]model.BankRule, error)
	UpdateBankRule(ctx context.Context, rule *model.BankRule) error
	DeleteBankRule(ctx context.Context, id string) error
}

// openItem defines methods for match candidates entered outside the bank feed.
type openItem interface {
	RecordOpenItem(ctx context.Context, item model.OpenItem) (model.OpenItem, error)
	GetOpenItem(ctx context.Context, id string) (*model.OpenItem, error)
	GetOpenItems(ctx context.Context, status model.OpenItemStatus) ([]model.OpenItem, error)
}

// recurring defines methods for recurring templates.
type recurring interface {
	CreateRecurringTemplate(ctx context.Context, template model.RecurringTemplate) (model.RecurringTemplate, error)
	GetRecurringTemplate(ctx context.Context, id string) (*model.RecurringTemplate, error)
	UpdateRecurringTemplateStatus(ctx context.Context, id string, from, to model.TemplateStatus) error
}

// PostingOptions carries the writes that must commit together with a posted entry.
type PostingOptions struct {
	// SourceTransactionID is the imported row to stamp Posted. It must currently be Approved.
	SourceTransactionID string
	// OpenItem is registered in the same transaction, e.g. the payment a recurring invoice expects.
	OpenItem *model.OpenItem
	// TemplateRun advances a recurring template in the same transaction.
	TemplateRun *TemplateRun
}

// TemplateRun records a materialized recurring occurrence.
type TemplateRun struct {
	TemplateID  string
	RunDate     time.Time
	NextRunDate time.Time
}
