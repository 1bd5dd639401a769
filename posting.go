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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/wacul/ptr"

	"github.com/blnkfinance/tally/config"
	"github.com/blnkfinance/tally/database"
	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/model"
)

const systemUser = "system"

func currencyScale() (int32, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return 0, err
	}
	return cfg.Currency.Scale, nil
}

func entryValidationError(err error) error {
	if errors.Is(err, model.ErrEntryUnbalanced) {
		return invalidInput(apierror.ReasonUnbalancedEntry, "%s", err.Error())
	}
	return invalidInput(apierror.ReasonInvalidLine, "%s", err.Error())
}

// requireActiveAccounts checks that every line references an existing, active account.
func (t *Tally) requireActiveAccounts(ctx context.Context, entry *model.JournalEntry) error {
	checked := map[string]struct{}{}
	for i, line := range entry.Lines {
		if _, ok := checked[line.AccountID]; ok {
			continue
		}
		checked[line.AccountID] = struct{}{}

		account, err := t.datasource.GetAccountByID(ctx, line.AccountID)
		if err != nil {
			if isNotFound(err) {
				return invalidInput(apierror.ReasonInvalidLine, "line %d: account %s does not exist", i+1, line.AccountID)
			}
			return err
		}
		if !account.IsActive() {
			return invalidInput(apierror.ReasonAccountInactive, "line %d: account %s is inactive", i+1, line.AccountID)
		}
	}
	return nil
}

// validateForPosting runs every check a Posted entry must pass. Nothing is adjusted to force
// a balance; an unbalanced entry is refused.
func (t *Tally) validateForPosting(ctx context.Context, entry *model.JournalEntry, checkAccounts bool) error {
	scale, err := currencyScale()
	if err != nil {
		return err
	}
	if err := entry.ValidateForPosting(scale); err != nil {
		return entryValidationError(err)
	}
	if checkAccounts {
		return t.requireActiveAccounts(ctx, entry)
	}
	return nil
}

func prepareEntry(entry *model.JournalEntry, source model.JournalSource) {
	if entry.JournalEntryID == "" {
		entry.JournalEntryID = model.GenerateUUIDWithSuffix("jrn")
	}
	if strings.TrimSpace(entry.Reference) == "" {
		entry.Reference = entry.JournalEntryID
	}
	if entry.Source == "" {
		entry.Source = source
	}
	if entry.CreatedBy == "" {
		entry.CreatedBy = systemUser
	}
	if entry.TransactionDate.IsZero() {
		entry.TransactionDate = model.DateOnly(time.Now())
	}
	for i := range entry.Lines {
		line := &entry.Lines[i]
		line.JournalEntryID = entry.JournalEntryID
		if line.LineID == "" {
			line.LineID = model.GenerateUUIDWithSuffix("line")
		}
		line.LineNumber = i + 1
	}
}

// PostJournalEntry posts a manually authored entry of any number of lines. The entry and all
// of its lines are written in one transaction or not at all.
func (t *Tally) PostJournalEntry(ctx context.Context, entry model.JournalEntry) (*model.JournalEntry, error) {
	ctx, span := tracer.Start(ctx, "Posting journal entry")
	defer span.End()

	prepareEntry(&entry, model.JournalSourceManual)
	if err := t.validateForPosting(ctx, &entry, true); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := t.datasource.RecordPostedEntry(ctx, &entry, database.PostingOptions{}); err != nil {
		return nil, logAndRecordError(span, "failed to post journal entry", err)
	}
	t.publish(ctx, EventJournalEntryPosted, entry)
	return &entry, nil
}

// SaveDraftEntry stores an entry that is still being edited. Drafts may be unbalanced; their
// lines are kept with the header and never reach the ledger until posted.
func (t *Tally) SaveDraftEntry(ctx context.Context, entry model.JournalEntry) (*model.JournalEntry, error) {
	ctx, span := tracer.Start(ctx, "Saving draft journal entry")
	defer span.End()

	prepareEntry(&entry, model.JournalSourceManual)
	for i, line := range entry.Lines {
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return nil, invalidInput(apierror.ReasonInvalidLine, "line %d: %s", i+1, model.ErrLineNegative)
		}
	}
	if err := t.datasource.SaveDraftEntry(ctx, &entry); err != nil {
		return nil, logAndRecordError(span, "failed to save draft", err)
	}
	return &entry, nil
}

// PostDraftEntry posts a stored draft. A draft that has since been posted is refused.
func (t *Tally) PostDraftEntry(ctx context.Context, id string) (*model.JournalEntry, error) {
	ctx, span := tracer.Start(ctx, "Posting draft journal entry")
	defer span.End()

	entry, err := t.datasource.GetJournalEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if !entry.Status.CanTransitionTo(model.JournalStatusPosted) {
		return nil, conflict(apierror.ReasonAlreadyPosted, "journal entry %s is already posted", id)
	}

	prepareEntry(entry, model.JournalSourceManual)
	if err := t.validateForPosting(ctx, entry, true); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := t.datasource.PostDraftEntry(ctx, entry); err != nil {
		return nil, logAndRecordError(span, "failed to post draft", err)
	}
	t.publish(ctx, EventJournalEntryPosted, entry)
	return entry, nil
}

// BuildImportedEntry constructs the two lines for a statement row. ledgerAccountID mirrors the
// source account (side A), targetAccountID is the resolved counter account (side B).
// An outflow debits B and credits A; an inflow debits A and credits B.
func BuildImportedEntry(txn *model.ImportedTransaction, ledgerAccountID, targetAccountID string) *model.JournalEntry {
	amount := txn.Amount.Abs()
	debitAccount, creditAccount := ledgerAccountID, targetAccountID
	if txn.IsOutflow() {
		debitAccount, creditAccount = targetAccountID, ledgerAccountID
	}

	createdBy := txn.ReviewedBy
	if createdBy == "" {
		createdBy = systemUser
	}
	entry := &model.JournalEntry{
		Reference:           txn.TransactionID,
		TransactionDate:     txn.TransactionDate,
		Description:         txn.Description,
		Status:              model.JournalStatusDraft,
		Source:              model.JournalSourceImported,
		SourceTransactionID: ptr.String(txn.TransactionID),
		CreatedBy:           createdBy,
		Lines: []model.JournalEntryLine{
			{AccountID: debitAccount, Description: txn.Description, Debit: amount, Credit: decimal.Zero},
			{AccountID: creditAccount, Description: txn.Description, Debit: decimal.Zero, Credit: amount},
		},
	}
	return entry
}

// PostImportedTransaction posts an Approved row. It is reached through approval, and again
// when an earlier posting attempt for the row failed.
func (t *Tally) PostImportedTransaction(ctx context.Context, id string) (*model.JournalEntry, error) {
	txn, err := t.datasource.GetImportedTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	return t.postApproved(ctx, txn)
}

func (t *Tally) postApproved(ctx context.Context, txn *model.ImportedTransaction) (*model.JournalEntry, error) {
	ctx, span := tracer.Start(ctx, "Posting imported transaction")
	defer span.End()

	switch txn.Status {
	case model.StatusApproved:
	case model.StatusPosted:
		return nil, conflict(apierror.ReasonAlreadyPosted, "imported transaction %s is already posted", txn.TransactionID)
	case model.StatusMatched:
		return nil, conflict(apierror.ReasonMatchedNotPostable, "imported transaction %s is linked to an existing record", txn.TransactionID)
	default:
		return nil, conflict(apierror.ReasonInvalidTransition, "imported transaction %s is %s, not approved", txn.TransactionID, txn.Status)
	}
	if txn.HasUsableMatch() {
		return nil, conflict(apierror.ReasonMatchedNotPostable, "imported transaction %s is linked to an existing record", txn.TransactionID)
	}

	target := txn.ResolvedAccountID()
	if target == nil {
		return nil, invalidInput(apierror.ReasonMissingCategorization, "imported transaction %s has no account to post against", txn.TransactionID)
	}
	source, err := t.datasource.GetSourceAccountByID(ctx, txn.SourceAccountID)
	if err != nil {
		return nil, err
	}
	if source.LedgerAccountID == nil || *source.LedgerAccountID == "" {
		return nil, invalidInput(apierror.ReasonSourceUnmapped, "source account %s is not mapped to a ledger account", source.SourceAccountID)
	}
	if *source.LedgerAccountID == *target {
		return nil, invalidInput(apierror.ReasonInvalidLine, "account %s is the source account's own ledger account", *target)
	}

	entry := BuildImportedEntry(txn, *source.LedgerAccountID, *target)
	prepareEntry(entry, model.JournalSourceImported)
	if err := t.validateForPosting(ctx, entry, true); err != nil {
		span.RecordError(err)
		return nil, err
	}

	err = t.datasource.RecordPostedEntry(ctx, entry, database.PostingOptions{SourceTransactionID: txn.TransactionID})
	if err != nil {
		return nil, logAndRecordError(span, "failed to post imported transaction", err)
	}
	txn.Status = model.StatusPosted
	txn.JournalEntryID = ptr.String(entry.JournalEntryID)

	logrus.WithFields(logrus.Fields{
		"transaction_id":   txn.TransactionID,
		"journal_entry_id": entry.JournalEntryID,
		"amount":           txn.Amount.String(),
	}).Info("imported transaction posted")
	t.publish(ctx, EventTransactionPosted, txn)
	t.publish(ctx, EventJournalEntryPosted, entry)
	return entry, nil
}

// ReverseJournalEntry posts the offsetting entry for a posted entry. The original is left
// untouched and can be reversed only once.
func (t *Tally) ReverseJournalEntry(ctx context.Context, id, reason, createdBy string) (*model.JournalEntry, error) {
	ctx, span := tracer.Start(ctx, "Reversing journal entry")
	defer span.End()

	original, err := t.datasource.GetJournalEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if original.Status != model.JournalStatusPosted {
		return nil, conflict(apierror.ReasonEntryNotPosted, "journal entry %s is not posted", id)
	}
	reversed, err := t.datasource.IsEntryReversed(ctx, id)
	if err != nil {
		return nil, logAndRecordError(span, "failed to check reversal", err)
	}
	if reversed {
		return nil, conflict(apierror.ReasonAlreadyReversed, "journal entry %s has already been reversed", id)
	}

	if createdBy == "" {
		createdBy = systemUser
	}
	description := fmt.Sprintf("Reversal of %s", original.Reference)
	if reason != "" {
		description = fmt.Sprintf("%s: %s", description, reason)
	}
	reversal := original.Reversed(createdBy, description, model.DateOnly(time.Now()))
	for i := range reversal.Lines {
		reversal.Lines[i].LineID = ""
	}
	prepareEntry(reversal, model.JournalSourceReversal)

	// Accounts deactivated since the original posted can still be reversed against.
	if err := t.validateForPosting(ctx, reversal, false); err != nil {
		return nil, err
	}
	if err := t.datasource.RecordPostedEntry(ctx, reversal, database.PostingOptions{}); err != nil {
		return nil, logAndRecordError(span, "failed to post reversal", err)
	}
	t.publish(ctx, EventJournalEntryReversed, reversal)
	return reversal, nil
}

func (t *Tally) GetJournalEntry(ctx context.Context, id string) (*model.JournalEntry, error) {
	return t.datasource.GetJournalEntry(ctx, id)
}

func (t *Tally) ListJournalEntries(ctx context.Context, limit, offset int) ([]model.JournalEntry, error) {
	return t.datasource.GetJournalEntries(ctx, limit, offset)
}

// AccountBalance is the net of posted lines against an account: debits minus credits.
func (t *Tally) AccountBalance(ctx context.Context, accountID string) (model.AccountBalance, error) {
	if _, err := t.datasource.GetAccountByID(ctx, accountID); err != nil {
		return model.AccountBalance{}, err
	}
	return t.datasource.GetAccountBalance(ctx, accountID)
}
