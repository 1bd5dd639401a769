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
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/wacul/ptr"

	"github.com/blnkfinance/tally/config"
	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/internal/files"
	"github.com/blnkfinance/tally/model"
)

// ImportHint carries what the caller knows about a statement that the file itself may not say.
type ImportHint struct {
	SourceAccountID   string `json:"source_account_id,omitempty"`
	Institution       string `json:"institution,omitempty"`
	AccountIdentifier string `json:"account_identifier,omitempty"`
	Currency          string `json:"currency,omitempty"`
	Dialect           string `json:"dialect,omitempty"`
	FileName          string `json:"file_name,omitempty"`
	Scale             int32  `json:"-"`
}

// StatementRow is one parsed row in canonical form.
type StatementRow struct {
	Row               int
	AccountIdentifier string
	TransactionDate   time.Time
	PostDate          *time.Time
	Description       string
	RawCategory       string
	Amount            decimal.Decimal
	Currency          string
}

// StatementGroup holds the rows of one account identifier in file order.
type StatementGroup struct {
	AccountIdentifier string
	Rows              []StatementRow
}

// ParsedStatement is the result of ParseStatement. Groups appear in first-seen order.
type ParsedStatement struct {
	Dialect     string
	Institution string
	TotalRows   int
	Groups      []StatementGroup
	Errors      []model.RowError
}

// Parsed returns the number of rows that made it into a group.
func (p *ParsedStatement) Parsed() int {
	n := 0
	for _, group := range p.Groups {
		n += len(group.Rows)
	}
	return n
}

// ImportResult is returned by Import. Imported + Skipped + len(Errors) == TotalRows.
type ImportResult struct {
	BatchID      string                       `json:"batch_id"`
	Dialect      string                       `json:"dialect"`
	TotalRows    int                          `json:"total_rows"`
	Imported     int                          `json:"imported"`
	Skipped      int                          `json:"skipped"`
	Transactions []*model.ImportedTransaction `json:"transactions"`
	Errors       []model.RowError             `json:"errors"`
}

// ParseStatement turns a statement payload into canonical rows grouped by account identifier.
// Rows that cannot be parsed become RowErrors; they never fail the statement as a whole.
// Custom dialects are tried before the built-in ones.
func ParseStatement(r io.Reader, hint *ImportHint, custom ...Dialect) (*ParsedStatement, error) {
	if hint == nil {
		hint = &ImportHint{}
	}
	scale := hint.Scale
	if scale <= 0 {
		scale = config.DEFAULT_CURRENCY_SCALE
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading statement")
	}
	table, err := files.ReadTable(data, hint.FileName)
	if err != nil {
		return nil, err
	}
	layout, err := detectLayout(table.Header, hint.Dialect, custom)
	if err != nil {
		return nil, err
	}

	parsed := &ParsedStatement{
		Dialect:     layout.dialect.Name,
		Institution: layout.dialect.Institution,
		TotalRows:   len(table.Records),
		Errors:      []model.RowError{},
	}
	groupIndex := map[string]int{}

	for _, record := range table.Records {
		if record.Err != nil {
			parsed.Errors = append(parsed.Errors, model.RowError{Row: record.Row, Message: record.Err.Error()})
			continue
		}
		row, rowErr := layout.parseRow(record, hint, scale)
		if rowErr != nil {
			parsed.Errors = append(parsed.Errors, *rowErr)
			continue
		}

		i, ok := groupIndex[row.AccountIdentifier]
		if !ok {
			i = len(parsed.Groups)
			groupIndex[row.AccountIdentifier] = i
			parsed.Groups = append(parsed.Groups, StatementGroup{AccountIdentifier: row.AccountIdentifier})
		}
		parsed.Groups[i].Rows = append(parsed.Groups[i].Rows, row)
	}
	return parsed, nil
}

func (l columnLayout) parseRow(record files.Record, hint *ImportHint, scale int32) (StatementRow, *model.RowError) {
	fields := record.Fields
	account := field(fields, l.account)
	rowError := func(name string, err error) *model.RowError {
		return &model.RowError{Row: record.Row, AccountIdentifier: account, Field: name, Message: err.Error()}
	}

	dateText := field(fields, l.date)
	if dateText == "" {
		return StatementRow{}, rowError("date", errors.New("date is missing"))
	}
	date, err := l.parseDate(dateText)
	if err != nil {
		return StatementRow{}, rowError("date", err)
	}

	var postDate *time.Time
	if text := field(fields, l.postDate); text != "" {
		parsedPost, err := l.parseDate(text)
		if err != nil {
			return StatementRow{}, rowError("post_date", err)
		}
		postDate = ptr.Time(parsedPost)
	}

	description := field(fields, l.description)
	if description == "" {
		return StatementRow{}, rowError("description", errors.New("description is missing"))
	}

	amount, fieldName, err := l.signedAmount(fields)
	if err != nil {
		return StatementRow{}, rowError(fieldName, err)
	}

	currency := strings.ToUpper(field(fields, l.currency))
	if currency == "" {
		currency = strings.ToUpper(hint.Currency)
	}

	return StatementRow{
		Row:               record.Row,
		AccountIdentifier: account,
		TransactionDate:   date,
		PostDate:          postDate,
		Description:       description,
		RawCategory:       field(fields, l.category),
		Amount:            model.RoundMoney(amount, scale),
		Currency:          currency,
	}, nil
}

// resolveSourceAccount finds the source account for one identifier group, creating it the
// first time an identifier is seen.
func (t *Tally) resolveSourceAccount(ctx context.Context, institution, identifier, currency string) (*model.SourceAccount, error) {
	existing, err := t.datasource.GetSourceAccountByIdentifier(ctx, institution, identifier)
	if err == nil {
		return existing, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	created, err := t.datasource.CreateSourceAccount(ctx, model.SourceAccount{
		SourceAccountID:   model.GenerateUUIDWithSuffix("src"),
		Institution:       institution,
		AccountIdentifier: identifier,
		Currency:          currency,
		CreatedAt:         time.Now(),
	})
	if err != nil {
		if apierror.CodeOf(err) == apierror.ErrConflict {
			// Another import created it between our read and insert.
			return t.datasource.GetSourceAccountByIdentifier(ctx, institution, identifier)
		}
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"source_account_id": created.SourceAccountID, "institution": institution}).
		Info("created source account from import")
	return &created, nil
}

// Import parses a statement, resolves its source accounts and records a batch of Pending rows.
// Rows already imported for the same source account are skipped. Nothing is posted here.
func (t *Tally) Import(ctx context.Context, r io.Reader, hint *ImportHint) (*ImportResult, error) {
	ctx, span := tracer.Start(ctx, "Importing statement")
	defer span.End()

	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	if hint == nil {
		hint = &ImportHint{}
	}
	hint.Scale = cfg.Currency.Scale
	if hint.Currency == "" {
		hint.Currency = cfg.Currency.Default
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, logAndRecordError(span, "failed to read statement", errors.Wrap(err, "reading statement"))
	}
	parsed, err := ParseStatement(bytes.NewReader(data), hint, t.dialects...)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, fmt.Sprintf("statement could not be read: %v", err), err)
	}

	institution := hint.Institution
	if institution == "" {
		institution = parsed.Institution
	}
	if institution == "" {
		institution = parsed.Dialect
	}

	batch := &model.ImportBatch{
		BatchID:   model.GenerateUUIDWithSuffix("bat"),
		FileName:  hint.FileName,
		Dialect:   parsed.Dialect,
		TotalRows: parsed.TotalRows,
		Status:    model.BatchStatusImported,
		Errors:    parsed.Errors,
		CreatedAt: time.Now(),
	}

	var txns []*model.ImportedTransaction
	for _, group := range parsed.Groups {
		source, err := t.groupSourceAccount(ctx, group, hint, institution)
		if err != nil {
			if apierror.CodeOf(err) == apierror.ErrInternalServer {
				return nil, logAndRecordError(span, "failed to resolve source account", err)
			}
			for _, row := range group.Rows {
				batch.Errors = append(batch.Errors, model.RowError{Row: row.Row, AccountIdentifier: group.AccountIdentifier, Field: "account", Message: err.Error()})
			}
			continue
		}
		txns = append(txns, buildImportedTransactions(batch, source, group.Rows)...)
	}
	batch.Failed = len(batch.Errors)

	inserted, err := t.datasource.RecordImport(ctx, batch, txns)
	if err != nil {
		return nil, logAndRecordError(span, "failed to record import", err)
	}
	span.AddEvent("import recorded")

	if t.archiver != nil {
		key, err := t.archiver.Archive(ctx, batch.BatchID, hint.FileName, data)
		if err != nil {
			logrus.WithError(err).WithField("batch_id", batch.BatchID).Warn("failed to archive statement")
		} else if err := t.datasource.UpdateImportBatchArchive(ctx, batch.BatchID, key); err != nil {
			logrus.WithError(err).WithField("batch_id", batch.BatchID).Warn("failed to record archive key")
		}
	}

	if cfg.Queue.AutoProcess && t.queue != nil && len(inserted) > 0 {
		if err := t.queue.QueueBatch(ctx, batch.BatchID); err != nil {
			logrus.WithError(err).WithField("batch_id", batch.BatchID).Error("failed to queue batch for processing")
		}
	}

	logrus.WithFields(logrus.Fields{
		"batch_id": batch.BatchID,
		"dialect":  batch.Dialect,
		"rows":     batch.TotalRows,
		"imported": batch.Imported,
		"skipped":  batch.Skipped,
		"failed":   batch.Failed,
	}).Info("statement imported")

	if inserted == nil {
		inserted = []*model.ImportedTransaction{}
	}
	return &ImportResult{
		BatchID:      batch.BatchID,
		Dialect:      batch.Dialect,
		TotalRows:    batch.TotalRows,
		Imported:     batch.Imported,
		Skipped:      batch.Skipped,
		Transactions: inserted,
		Errors:       batch.Errors,
	}, nil
}

func (t *Tally) groupSourceAccount(ctx context.Context, group StatementGroup, hint *ImportHint, institution string) (*model.SourceAccount, error) {
	currency := hint.Currency
	if len(group.Rows) > 0 && group.Rows[0].Currency != "" {
		currency = group.Rows[0].Currency
	}
	switch {
	case group.AccountIdentifier != "":
		return t.resolveSourceAccount(ctx, institution, group.AccountIdentifier, currency)
	case hint.SourceAccountID != "":
		return t.datasource.GetSourceAccountByID(ctx, hint.SourceAccountID)
	case hint.AccountIdentifier != "":
		return t.resolveSourceAccount(ctx, institution, hint.AccountIdentifier, currency)
	default:
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "row has no account identifier and no source account was given", nil)
	}
}

// buildImportedTransactions numbers repeated identical lines within the file so each keeps
// its own import hash, while a re-import of the same file hashes identically.
func buildImportedTransactions(batch *model.ImportBatch, source *model.SourceAccount, rows []StatementRow) []*model.ImportedTransaction {
	occurrences := map[string]int{}
	txns := make([]*model.ImportedTransaction, 0, len(rows))
	for _, row := range rows {
		base := model.ImportHash(source.SourceAccountID, row.TransactionDate, row.Amount, row.Description, 0)
		occurrences[base]++

		currency := row.Currency
		if currency == "" {
			currency = source.Currency
		}
		txns = append(txns, &model.ImportedTransaction{
			TransactionID:   model.GenerateUUIDWithSuffix("txn"),
			BatchID:         batch.BatchID,
			SourceAccountID: source.SourceAccountID,
			RowNumber:       row.Row,
			TransactionDate: row.TransactionDate,
			PostDate:        row.PostDate,
			Description:     row.Description,
			RawCategory:     row.RawCategory,
			Amount:          row.Amount,
			Currency:        currency,
			Status:          model.StatusPending,
			ImportHash:      model.ImportHash(source.SourceAccountID, row.TransactionDate, row.Amount, row.Description, occurrences[base]),
			CreatedAt:       batch.CreatedAt,
			UpdatedAt:       batch.CreatedAt,
		})
	}
	return txns
}

// GetImportBatch returns a batch with its counts and row errors.
func (t *Tally) GetImportBatch(ctx context.Context, id string) (*model.ImportBatch, error) {
	return t.datasource.GetImportBatch(ctx, id)
}
