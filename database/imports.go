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
	"fmt"
	"strings"
	"time"

	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/model"
	"go.opentelemetry.io/otel"
)

var importTracer = otel.Tracer("Import")

const importBatchColumns = `batch_id, file_name, dialect, total_rows, imported, skipped, failed, errors, status,
	matched, suggested, uncategorized, archive_key, created_at, processed_at`

const importedTransactionColumns = `transaction_id, batch_id, source_account_id, row_number, transaction_date, post_date,
	description, raw_category, amount, currency, status, suggested_account_id, suggestion_source, suggestion_rule_id,
	approved_account_id, matched_entity_type, matched_entity_id, confidence, journal_entry_id, import_hash,
	reviewed_by, rejection_reason, created_at, updated_at`

func staleState(message string) error {
	return apierror.NewValidationError(apierror.ErrConflict, apierror.ReasonStaleState, message)
}

func scanImportBatch(row rowScanner) (model.ImportBatch, error) {
	var batch model.ImportBatch
	var errorsJSON []byte
	var processedAt sql.NullTime
	err := row.Scan(&batch.BatchID, &batch.FileName, &batch.Dialect, &batch.TotalRows, &batch.Imported, &batch.Skipped,
		&batch.Failed, &errorsJSON, &batch.Status, &batch.Matched, &batch.Suggested, &batch.Uncategorized,
		&batch.ArchiveKey, &batch.CreatedAt, &processedAt)
	if err != nil {
		return batch, err
	}
	batch.ProcessedAt = timePtr(processedAt)
	if len(errorsJSON) > 0 {
		if err := json.Unmarshal(errorsJSON, &batch.Errors); err != nil {
			return batch, err
		}
	}
	return batch, nil
}

func scanImportedTransaction(row rowScanner) (model.ImportedTransaction, error) {
	var txn model.ImportedTransaction
	var postDate sql.NullTime
	var suggested, ruleID, approved, matchedID, confidence, journalID sql.NullString
	var suggestionSource, matchedType string
	err := row.Scan(&txn.TransactionID, &txn.BatchID, &txn.SourceAccountID, &txn.RowNumber, &txn.TransactionDate, &postDate,
		&txn.Description, &txn.RawCategory, &txn.Amount, &txn.Currency, &txn.Status, &suggested, &suggestionSource, &ruleID,
		&approved, &matchedType, &matchedID, &confidence, &journalID, &txn.ImportHash,
		&txn.ReviewedBy, &txn.RejectionReason, &txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		return txn, err
	}
	txn.PostDate = timePtr(postDate)
	txn.SuggestedAccountID = stringPtr(suggested)
	txn.SuggestionSource = model.SuggestionSource(suggestionSource)
	txn.SuggestionRuleID = stringPtr(ruleID)
	txn.ApprovedAccountID = stringPtr(approved)
	txn.MatchedEntityType = model.MatchedEntityType(matchedType)
	txn.MatchedEntityID = stringPtr(matchedID)
	txn.JournalEntryID = stringPtr(journalID)
	if confidence.Valid {
		c := model.Confidence(confidence.String)
		txn.Confidence = &c
	}
	return txn, nil
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func optionalString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return nullString(*s)
}

func optionalConfidence(c *model.Confidence) sql.NullString {
	if c == nil {
		return sql.NullString{}
	}
	return nullString(string(*c))
}

// RecordImport stores a batch and its rows in one transaction. Rows whose import hash already
// exists for their source account are skipped, not failed; only the rows actually inserted are
// returned and the batch counts are corrected to match.
func (d Datasource) RecordImport(ctx context.Context, batch *model.ImportBatch, txns []*model.ImportedTransaction) ([]*model.ImportedTransaction, error) {
	ctx, span := importTracer.Start(ctx, "Recording import batch")
	defer span.End()

	errorsJSON, err := json.Marshal(batch.Errors)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Failed to marshal row errors", err)
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now()
	}

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tally.import_batches (batch_id, file_name, dialect, total_rows, failed, errors, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, batch.BatchID, batch.FileName, batch.Dialect, batch.TotalRows, batch.Failed, errorsJSON, batch.Status, batch.CreatedAt)
	if err != nil {
		return nil, mapWriteError(err, "Import batch already exists", "Failed to record import batch")
	}

	inserted := make([]*model.ImportedTransaction, 0, len(txns))
	for _, txn := range txns {
		if txn.CreatedAt.IsZero() {
			txn.CreatedAt = batch.CreatedAt
		}
		txn.UpdatedAt = txn.CreatedAt
		result, err := tx.ExecContext(ctx, `
			INSERT INTO tally.imported_transactions (transaction_id, batch_id, source_account_id, row_number,
				transaction_date, post_date, description, raw_category, amount, currency, status, import_hash,
				created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			ON CONFLICT (source_account_id, import_hash) DO NOTHING
		`, txn.TransactionID, batch.BatchID, txn.SourceAccountID, txn.RowNumber, txn.TransactionDate, nullTime(txn.PostDate),
			txn.Description, txn.RawCategory, txn.Amount, txn.Currency, txn.Status, txn.ImportHash, txn.CreatedAt, txn.UpdatedAt)
		if err != nil {
			return nil, mapWriteError(err, "Imported transaction already exists", fmt.Sprintf("Failed to record row %d", txn.RowNumber))
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
		}
		if rowsAffected == 1 {
			inserted = append(inserted, txn)
		}
	}

	batch.Imported = len(inserted)
	batch.Skipped = len(txns) - len(inserted)
	_, err = tx.ExecContext(ctx, `
		UPDATE tally.import_batches SET imported = $2, skipped = $3 WHERE batch_id = $1
	`, batch.BatchID, batch.Imported, batch.Skipped)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update import batch counts", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return inserted, nil
}

func (d Datasource) GetImportBatch(ctx context.Context, id string) (*model.ImportBatch, error) {
	ctx, span := importTracer.Start(ctx, "Fetching import batch")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, `SELECT `+importBatchColumns+` FROM tally.import_batches WHERE batch_id = $1`, id)
	batch, err := scanImportBatch(row)
	if err != nil {
		return nil, mapReadError(err, "Import batch with ID '"+id+"' not found", "Failed to retrieve import batch")
	}
	return &batch, nil
}

// UpdateImportBatchStatus moves a batch between processing states only if it is still in from.
func (d Datasource) UpdateImportBatchStatus(ctx context.Context, id string, from, to model.BatchStatus) error {
	ctx, span := importTracer.Start(ctx, "Updating import batch status")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE tally.import_batches SET status = $3 WHERE batch_id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update import batch status", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return staleState(fmt.Sprintf("import batch %s is not %s", id, from))
	}
	return nil
}

// CompleteImportBatch stores the matching outcome of a processed batch.
func (d Datasource) CompleteImportBatch(ctx context.Context, batch *model.ImportBatch) error {
	ctx, span := importTracer.Start(ctx, "Completing import batch")
	defer span.End()

	_, err := d.Conn.ExecContext(ctx, `
		UPDATE tally.import_batches
		SET status = $2, matched = $3, suggested = $4, uncategorized = $5, processed_at = $6
		WHERE batch_id = $1
	`, batch.BatchID, batch.Status, batch.Matched, batch.Suggested, batch.Uncategorized, nullTime(batch.ProcessedAt))
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to complete import batch", err)
	}
	return nil
}

// UpdateImportBatchArchive records where the raw payload of a batch was archived.
func (d Datasource) UpdateImportBatchArchive(ctx context.Context, id, archiveKey string) error {
	ctx, span := importTracer.Start(ctx, "Recording import archive key")
	defer span.End()

	_, err := d.Conn.ExecContext(ctx, `UPDATE tally.import_batches SET archive_key = $2 WHERE batch_id = $1`, id, archiveKey)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record archive key", err)
	}
	return nil
}

func (d Datasource) GetImportedTransaction(ctx context.Context, id string) (*model.ImportedTransaction, error) {
	ctx, span := importTracer.Start(ctx, "Fetching imported transaction")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, `SELECT `+importedTransactionColumns+` FROM tally.imported_transactions WHERE transaction_id = $1`, id)
	txn, err := scanImportedTransaction(row)
	if err != nil {
		return nil, mapReadError(err, "Imported transaction with ID '"+id+"' not found", "Failed to retrieve imported transaction")
	}
	return &txn, nil
}

func (d Datasource) queryImportedTransactions(ctx context.Context, query string, args ...interface{}) ([]model.ImportedTransaction, error) {
	rows, err := d.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve imported transactions", err)
	}
	defer rows.Close()

	txns := []model.ImportedTransaction{}
	for rows.Next() {
		txn, err := scanImportedTransaction(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan imported transaction", err)
		}
		txns = append(txns, txn)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over imported transactions", err)
	}
	return txns, nil
}

// GetImportedTransactions lists rows in statement order, narrowed by the filter.
func (d Datasource) GetImportedTransactions(ctx context.Context, filter model.TransactionFilter, limit, offset int) ([]model.ImportedTransaction, error) {
	ctx, span := importTracer.Start(ctx, "Listing imported transactions")
	defer span.End()

	var conditions []string
	var args []interface{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.BatchID != "" {
		args = append(args, filter.BatchID)
		conditions = append(conditions, fmt.Sprintf("batch_id = $%d", len(args)))
	}
	if filter.SourceAccountID != "" {
		args = append(args, filter.SourceAccountID)
		conditions = append(conditions, fmt.Sprintf("source_account_id = $%d", len(args)))
	}

	query := `SELECT ` + importedTransactionColumns + ` FROM tally.imported_transactions`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY transaction_date, row_number LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	return d.queryImportedTransactions(ctx, query, args...)
}

// GetPendingTransactionsByBatch returns the rows of a batch that still await matching or review.
func (d Datasource) GetPendingTransactionsByBatch(ctx context.Context, batchID string) ([]*model.ImportedTransaction, error) {
	ctx, span := importTracer.Start(ctx, "Fetching pending transactions of batch")
	defer span.End()

	txns, err := d.queryImportedTransactions(ctx, `SELECT `+importedTransactionColumns+`
		FROM tally.imported_transactions WHERE batch_id = $1 AND status = $2 ORDER BY row_number`, batchID, model.StatusPending)
	if err != nil {
		return nil, err
	}
	pending := make([]*model.ImportedTransaction, len(txns))
	for i := range txns {
		pending[i] = &txns[i]
	}
	return pending, nil
}

// GetMatchableImportedTransactions returns rows from other batches within the date range
// that may be duplicates of newly imported ones. Rejected rows are never candidates.
func (d Datasource) GetMatchableImportedTransactions(ctx context.Context, excludeBatchID string, from, to time.Time) ([]model.ImportedTransaction, error) {
	ctx, span := importTracer.Start(ctx, "Fetching matchable imported transactions")
	defer span.End()

	return d.queryImportedTransactions(ctx, `SELECT `+importedTransactionColumns+`
		FROM tally.imported_transactions
		WHERE batch_id <> $1 AND status <> $2 AND transaction_date BETWEEN $3 AND $4
		ORDER BY transaction_date, transaction_id`, excludeBatchID, model.StatusRejected, from, to)
}

// UpdateTransactionSuggestion writes the matching and categorization outcome of a row.
// It only succeeds while the row is still Pending.
func (d Datasource) UpdateTransactionSuggestion(ctx context.Context, txn *model.ImportedTransaction) error {
	ctx, span := importTracer.Start(ctx, "Updating transaction suggestion")
	defer span.End()

	txn.UpdatedAt = time.Now()
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE tally.imported_transactions
		SET suggested_account_id = $3, suggestion_source = $4, suggestion_rule_id = $5, matched_entity_type = $6,
			matched_entity_id = $7, confidence = $8, reviewed_by = $9, updated_at = $10
		WHERE transaction_id = $1 AND status = $2
	`, txn.TransactionID, model.StatusPending, optionalString(txn.SuggestedAccountID), txn.SuggestionSource,
		optionalString(txn.SuggestionRuleID), txn.MatchedEntityType, optionalString(txn.MatchedEntityID),
		optionalConfidence(txn.Confidence), txn.ReviewedBy, txn.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "Suggestion conflicts with an existing record", "Failed to update transaction suggestion")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return staleState(fmt.Sprintf("imported transaction %s is no longer pending", txn.TransactionID))
	}
	return nil
}

// TransitionTransaction moves a row to txn.Status only if it is still in from,
// recording the reviewer's account choice and rejection reason alongside.
func (d Datasource) TransitionTransaction(ctx context.Context, txn *model.ImportedTransaction, from model.TransactionStatus) error {
	ctx, span := importTracer.Start(ctx, "Transitioning imported transaction")
	defer span.End()

	txn.UpdatedAt = time.Now()
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE tally.imported_transactions
		SET status = $3, approved_account_id = $4, reviewed_by = $5, rejection_reason = $6, updated_at = $7
		WHERE transaction_id = $1 AND status = $2
	`, txn.TransactionID, from, txn.Status, optionalString(txn.ApprovedAccountID), txn.ReviewedBy, txn.RejectionReason, txn.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "Transition conflicts with an existing record", "Failed to update imported transaction")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return staleState(fmt.Sprintf("imported transaction %s is no longer %s", txn.TransactionID, from))
	}
	return nil
}

// LinkTransactionMatch closes a Pending row as Matched and, for payments entered through
// another flow, marks the open item matched in the same transaction.
func (d Datasource) LinkTransactionMatch(ctx context.Context, txn *model.ImportedTransaction) error {
	ctx, span := importTracer.Start(ctx, "Linking matched transaction")
	defer span.End()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	txn.UpdatedAt = time.Now()
	result, err := tx.ExecContext(ctx, `
		UPDATE tally.imported_transactions
		SET status = $3, reviewed_by = $4, updated_at = $5
		WHERE transaction_id = $1 AND status = $2
	`, txn.TransactionID, model.StatusPending, model.StatusMatched, txn.ReviewedBy, txn.UpdatedAt)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to link imported transaction", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return staleState(fmt.Sprintf("imported transaction %s is no longer pending", txn.TransactionID))
	}

	if txn.MatchedEntityType != model.EntityImportedTransaction && txn.MatchedEntityID != nil {
		result, err = tx.ExecContext(ctx, `
			UPDATE tally.open_items SET status = $3, matched_transaction_id = $4
			WHERE item_id = $1 AND status = $2
		`, *txn.MatchedEntityID, model.OpenItemStatusOpen, model.OpenItemStatusMatched, txn.TransactionID)
		if err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to mark open item matched", err)
		}
		rowsAffected, err = result.RowsAffected()
		if err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
		}
		if rowsAffected == 0 {
			return staleState(fmt.Sprintf("open item %s is already matched", *txn.MatchedEntityID))
		}
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	txn.Status = model.StatusMatched
	return nil
}
