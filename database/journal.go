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
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/model"
	"github.com/lib/pq"
	"github.com/wacul/ptr"
	"go.opentelemetry.io/otel"
)

var journalTracer = otel.Tracer("Journal")

const journalEntryColumns = `journal_entry_id, reference, transaction_date, description, status, source,
	source_transaction_id, reversal_of, created_by, draft_lines, posted_at, created_at`

func scanJournalEntry(row rowScanner) (model.JournalEntry, error) {
	var entry model.JournalEntry
	var sourceTxn, reversalOf sql.NullString
	var draftLines []byte
	var postedAt sql.NullTime
	err := row.Scan(&entry.JournalEntryID, &entry.Reference, &entry.TransactionDate, &entry.Description, &entry.Status,
		&entry.Source, &sourceTxn, &reversalOf, &entry.CreatedBy, &draftLines, &postedAt, &entry.CreatedAt)
	if err != nil {
		return entry, err
	}
	entry.SourceTransactionID = stringPtr(sourceTxn)
	entry.ReversalOf = stringPtr(reversalOf)
	entry.PostedAt = timePtr(postedAt)
	if entry.Status == model.JournalStatusDraft && len(draftLines) > 0 {
		if err := json.Unmarshal(draftLines, &entry.Lines); err != nil {
			return entry, err
		}
	}
	return entry, nil
}

// mapJournalWriteError turns constraint failures on journal tables into the reason the
// caller needs: a second entry for the same source row or reversal, or a reused reference.
func mapJournalWriteError(err error, entry *model.JournalEntry) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		switch pqErr.Constraint {
		case "journal_entries_source_transaction_id_key":
			return apierror.NewValidationError(apierror.ErrConflict, apierror.ReasonAlreadyPosted,
				"imported transaction already has a posted journal entry")
		case "journal_entries_reversal_of_key":
			return apierror.NewValidationError(apierror.ErrConflict, apierror.ReasonAlreadyReversed,
				"journal entry has already been reversed")
		case "journal_entries_reference_key":
			return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Journal entry with reference '%s' already exists", entry.Reference), err)
		}
	}
	return mapWriteError(err, "Journal entry already exists", "Failed to record journal entry")
}

// mapCommitError reports the deferred balance trigger as an unbalanced entry.
func mapCommitError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "raise_exception" {
		return apierror.NewValidationError(apierror.ErrInvalidInput, apierror.ReasonUnbalancedEntry, pqErr.Message)
	}
	return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
}

func insertJournalLines(ctx context.Context, tx *sql.Tx, entry *model.JournalEntry) error {
	for i := range entry.Lines {
		line := &entry.Lines[i]
		line.JournalEntryID = entry.JournalEntryID
		if line.LineNumber == 0 {
			line.LineNumber = i + 1
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tally.journal_entry_lines (line_id, journal_entry_id, line_number, account_id, description, debit, credit)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, line.LineID, entry.JournalEntryID, line.LineNumber, line.AccountID, line.Description, line.Debit, line.Credit)
		if err != nil {
			return mapWriteError(err, "Journal line already exists", fmt.Sprintf("Failed to record line %d", line.LineNumber))
		}
	}
	return nil
}

// stampImportedPosted moves the source row from Approved to Posted inside the posting
// transaction. A row that is already Posted reports ALREADY_POSTED so a retried approval
// can never create a second entry.
func stampImportedPosted(ctx context.Context, tx *sql.Tx, transactionID, journalEntryID string) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE tally.imported_transactions
		SET status = $3, journal_entry_id = $4, updated_at = $5
		WHERE transaction_id = $1 AND status = $2
	`, transactionID, model.StatusApproved, model.StatusPosted, journalEntryID, time.Now())
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to stamp imported transaction", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 1 {
		return nil
	}

	var current model.TransactionStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM tally.imported_transactions WHERE transaction_id = $1`, transactionID).Scan(&current)
	if err != nil {
		return mapReadError(err, "Imported transaction with ID '"+transactionID+"' not found", "Failed to read imported transaction")
	}
	if current == model.StatusPosted {
		return apierror.NewValidationError(apierror.ErrConflict, apierror.ReasonAlreadyPosted,
			fmt.Sprintf("imported transaction %s is already posted", transactionID))
	}
	return staleState(fmt.Sprintf("imported transaction %s is %s, not approved", transactionID, current))
}

func insertOpenItem(ctx context.Context, exec interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}, item *model.OpenItem) error {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	if item.Status == "" {
		item.Status = model.OpenItemStatusOpen
	}
	_, err := exec.ExecContext(ctx, `
		INSERT INTO tally.open_items (item_id, item_type, document_number, reference, description, amount, date,
			source_account_id, ledger_account_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, item.ItemID, item.ItemType, item.DocumentNumber, item.Reference, item.Description, item.Amount, item.Date,
		optionalString(item.SourceAccountID), optionalString(item.LedgerAccountID), item.Status, item.CreatedAt)
	if err != nil {
		return mapWriteError(err, "Open item already exists", "Failed to record open item")
	}
	return nil
}

func advanceTemplate(ctx context.Context, tx *sql.Tx, run *TemplateRun) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE tally.recurring_templates SET last_run_date = $3, next_run_date = $4
		WHERE template_id = $1 AND status = $2
	`, run.TemplateID, model.TemplateStatusActive, run.RunDate, run.NextRunDate)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to advance recurring template", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewValidationError(apierror.ErrConflict, apierror.ReasonTemplatePaused,
			fmt.Sprintf("recurring template %s is not active", run.TemplateID))
	}
	return nil
}

// RecordPostedEntry writes a balanced entry and all of its lines as one unit, together with
// every dependent write in opts. Nothing is persisted unless all of it commits.
func (d Datasource) RecordPostedEntry(ctx context.Context, entry *model.JournalEntry, opts PostingOptions) error {
	ctx, span := journalTracer.Start(ctx, "Recording posted journal entry")
	defer span.End()

	now := time.Now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.Status = model.JournalStatusPosted
	entry.PostedAt = ptr.Time(now)
	if opts.SourceTransactionID != "" {
		entry.SourceTransactionID = ptr.String(opts.SourceTransactionID)
	}

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tally.journal_entries (journal_entry_id, reference, transaction_date, description, status, source,
			source_transaction_id, reversal_of, created_by, posted_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, entry.JournalEntryID, entry.Reference, entry.TransactionDate, entry.Description, entry.Status, entry.Source,
		optionalString(entry.SourceTransactionID), optionalString(entry.ReversalOf), entry.CreatedBy, now, entry.CreatedAt)
	if err != nil {
		return mapJournalWriteError(err, entry)
	}

	if err := insertJournalLines(ctx, tx, entry); err != nil {
		return err
	}

	if opts.SourceTransactionID != "" {
		if err := stampImportedPosted(ctx, tx, opts.SourceTransactionID, entry.JournalEntryID); err != nil {
			return err
		}
	}
	if opts.OpenItem != nil {
		if err := insertOpenItem(ctx, tx, opts.OpenItem); err != nil {
			return err
		}
	}
	if opts.TemplateRun != nil {
		if err := advanceTemplate(ctx, tx, opts.TemplateRun); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return mapCommitError(err)
	}
	return nil
}

// SaveDraftEntry stores a draft header with its lines as a JSON snapshot. Draft lines never
// reach journal_entry_lines. Saving over a posted entry is refused.
func (d Datasource) SaveDraftEntry(ctx context.Context, entry *model.JournalEntry) error {
	ctx, span := journalTracer.Start(ctx, "Saving draft journal entry")
	defer span.End()

	draftLines, err := json.Marshal(entry.Lines)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrBadRequest, "Failed to marshal draft lines", err)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	entry.Status = model.JournalStatusDraft

	result, err := d.Conn.ExecContext(ctx, `
		INSERT INTO tally.journal_entries (journal_entry_id, reference, transaction_date, description, status, source,
			created_by, draft_lines, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (journal_entry_id) DO UPDATE
		SET reference = EXCLUDED.reference, transaction_date = EXCLUDED.transaction_date,
			description = EXCLUDED.description, draft_lines = EXCLUDED.draft_lines
		WHERE tally.journal_entries.status = $5
	`, entry.JournalEntryID, entry.Reference, entry.TransactionDate, entry.Description, entry.Status, entry.Source,
		entry.CreatedBy, draftLines, entry.CreatedAt)
	if err != nil {
		return mapJournalWriteError(err, entry)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewValidationError(apierror.ErrConflict, apierror.ReasonAlreadyPosted,
			fmt.Sprintf("journal entry %s is posted and cannot be edited", entry.JournalEntryID))
	}
	return nil
}

// PostDraftEntry flips a draft to Posted and writes its lines in the same transaction.
// The guarded update makes a second post of the same draft fail with ALREADY_POSTED.
func (d Datasource) PostDraftEntry(ctx context.Context, entry *model.JournalEntry) error {
	ctx, span := journalTracer.Start(ctx, "Posting draft journal entry")
	defer span.End()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	now := time.Now()
	result, err := tx.ExecContext(ctx, `
		UPDATE tally.journal_entries SET status = $3, posted_at = $4, draft_lines = NULL
		WHERE journal_entry_id = $1 AND status = $2
	`, entry.JournalEntryID, model.JournalStatusDraft, model.JournalStatusPosted, now)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to post draft journal entry", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewValidationError(apierror.ErrConflict, apierror.ReasonAlreadyPosted,
			fmt.Sprintf("journal entry %s is not a draft", entry.JournalEntryID))
	}

	if err := insertJournalLines(ctx, tx, entry); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapCommitError(err)
	}
	entry.Status = model.JournalStatusPosted
	entry.PostedAt = ptr.Time(now)
	return nil
}

func (d Datasource) getJournalLines(ctx context.Context, ids []string) (map[string][]model.JournalEntryLine, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT line_id, journal_entry_id, line_number, account_id, description, debit, credit
		FROM tally.journal_entry_lines WHERE journal_entry_id = ANY($1)
		ORDER BY journal_entry_id, line_number
	`, pq.Array(ids))
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve journal lines", err)
	}
	defer rows.Close()

	lines := make(map[string][]model.JournalEntryLine)
	for rows.Next() {
		var line model.JournalEntryLine
		if err := rows.Scan(&line.LineID, &line.JournalEntryID, &line.LineNumber, &line.AccountID, &line.Description,
			&line.Debit, &line.Credit); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan journal line", err)
		}
		lines[line.JournalEntryID] = append(lines[line.JournalEntryID], line)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over journal lines", err)
	}
	return lines, nil
}

func (d Datasource) GetJournalEntry(ctx context.Context, id string) (*model.JournalEntry, error) {
	ctx, span := journalTracer.Start(ctx, "Fetching journal entry")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, `SELECT `+journalEntryColumns+` FROM tally.journal_entries WHERE journal_entry_id = $1`, id)
	entry, err := scanJournalEntry(row)
	if err != nil {
		return nil, mapReadError(err, "Journal entry with ID '"+id+"' not found", "Failed to retrieve journal entry")
	}
	if entry.Status == model.JournalStatusPosted {
		lines, err := d.getJournalLines(ctx, []string{entry.JournalEntryID})
		if err != nil {
			return nil, err
		}
		entry.Lines = lines[entry.JournalEntryID]
	}
	return &entry, nil
}

// GetJournalEntries lists entries newest first with their lines.
func (d Datasource) GetJournalEntries(ctx context.Context, limit, offset int) ([]model.JournalEntry, error) {
	ctx, span := journalTracer.Start(ctx, "Listing journal entries")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `SELECT `+journalEntryColumns+` FROM tally.journal_entries
		ORDER BY transaction_date DESC, created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve journal entries", err)
	}
	defer rows.Close()

	entries := []model.JournalEntry{}
	var posted []string
	for rows.Next() {
		entry, err := scanJournalEntry(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan journal entry", err)
		}
		if entry.Status == model.JournalStatusPosted {
			posted = append(posted, entry.JournalEntryID)
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over journal entries", err)
	}
	if len(posted) == 0 {
		return entries, nil
	}

	lines, err := d.getJournalLines(ctx, posted)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].Status == model.JournalStatusPosted {
			entries[i].Lines = lines[entries[i].JournalEntryID]
		}
	}
	return entries, nil
}

func (d Datasource) IsEntryReversed(ctx context.Context, id string) (bool, error) {
	ctx, span := journalTracer.Start(ctx, "Checking journal entry reversal")
	defer span.End()

	var reversed bool
	err := d.Conn.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM tally.journal_entries WHERE reversal_of = $1)`, id).Scan(&reversed)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check journal entry reversal", err)
	}
	return reversed, nil
}

// GetAccountBalance sums the posted lines of one account.
func (d Datasource) GetAccountBalance(ctx context.Context, accountID string) (model.AccountBalance, error) {
	ctx, span := journalTracer.Start(ctx, "Computing account balance")
	defer span.End()

	balance := model.AccountBalance{AccountID: accountID}
	err := d.Conn.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
		FROM tally.journal_entry_lines l
		JOIN tally.journal_entries e ON e.journal_entry_id = l.journal_entry_id
		WHERE l.account_id = $1 AND e.status = $2
	`, accountID, model.JournalStatusPosted).Scan(&balance.DebitTotal, &balance.CreditTotal)
	if err != nil {
		return balance, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to compute account balance", err)
	}
	balance.Net = balance.DebitTotal.Sub(balance.CreditTotal)
	return balance, nil
}
