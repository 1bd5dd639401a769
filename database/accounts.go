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
	"time"

	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/model"
	"github.com/wacul/ptr"
	"go.opentelemetry.io/otel"
)

var chartTracer = otel.Tracer("Chart")

const accountColumns = `account_id, code, name, type, subtype, parent_account_id, status, created_at, meta_data`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (model.Account, error) {
	var account model.Account
	var parent sql.NullString
	var metaDataJSON []byte
	err := row.Scan(&account.AccountID, &account.Code, &account.Name, &account.Type, &account.Subtype,
		&parent, &account.Status, &account.CreatedAt, &metaDataJSON)
	if err != nil {
		return account, err
	}
	if parent.Valid {
		account.ParentAccountID = ptr.String(parent.String)
	}
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &account.MetaData); err != nil {
			return account, err
		}
	}
	return account, nil
}

func (d Datasource) CreateAccount(ctx context.Context, account model.Account) (model.Account, error) {
	ctx, span := chartTracer.Start(ctx, "Saving account to db")
	defer span.End()

	metaDataJSON, err := json.Marshal(account.MetaData)
	if err != nil {
		return model.Account{}, apierror.NewAPIError(apierror.ErrBadRequest, "Failed to marshal metadata", err)
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}

	var parent sql.NullString
	if account.ParentAccountID != nil {
		parent = nullString(*account.ParentAccountID)
	}

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO tally.accounts (account_id, code, name, type, subtype, parent_account_id, status, created_at, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, account.AccountID, account.Code, account.Name, account.Type, account.Subtype, parent, account.Status, account.CreatedAt, metaDataJSON)
	if err != nil {
		return model.Account{}, mapWriteError(err, "Account with this code already exists", "Failed to create account")
	}
	return account, nil
}

func (d Datasource) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	ctx, span := chartTracer.Start(ctx, "Fetching account by id")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM tally.accounts WHERE account_id = $1`, id)
	account, err := scanAccount(row)
	if err != nil {
		return nil, mapReadError(err, "Account with ID '"+id+"' not found", "Failed to retrieve account")
	}
	return &account, nil
}

func (d Datasource) GetAccountByCode(ctx context.Context, code string) (*model.Account, error) {
	ctx, span := chartTracer.Start(ctx, "Fetching account by code")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM tally.accounts WHERE code = $1`, code)
	account, err := scanAccount(row)
	if err != nil {
		return nil, mapReadError(err, "Account with code '"+code+"' not found", "Failed to retrieve account")
	}
	return &account, nil
}

func (d Datasource) GetAllAccounts(ctx context.Context) ([]model.Account, error) {
	ctx, span := chartTracer.Start(ctx, "Fetching chart of accounts")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `SELECT `+accountColumns+` FROM tally.accounts ORDER BY code`)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve accounts", err)
	}
	defer rows.Close()

	accounts := []model.Account{}
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan account data", err)
		}
		accounts = append(accounts, account)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over accounts", err)
	}
	return accounts, nil
}

func (d Datasource) UpdateAccount(ctx context.Context, account *model.Account) error {
	ctx, span := chartTracer.Start(ctx, "Updating account")
	defer span.End()

	metaDataJSON, err := json.Marshal(account.MetaData)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrBadRequest, "Failed to marshal metadata", err)
	}
	var parent sql.NullString
	if account.ParentAccountID != nil {
		parent = nullString(*account.ParentAccountID)
	}

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE tally.accounts
		SET code = $2, name = $3, type = $4, subtype = $5, parent_account_id = $6, status = $7, meta_data = $8
		WHERE account_id = $1
	`, account.AccountID, account.Code, account.Name, account.Type, account.Subtype, parent, account.Status, metaDataJSON)
	if err != nil {
		return mapWriteError(err, "Account with this code already exists", "Failed to update account")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Account with ID '"+account.AccountID+"' not found", nil)
	}
	return nil
}

// AccountHasLines reports whether any journal line references the account.
func (d Datasource) AccountHasLines(ctx context.Context, id string) (bool, error) {
	ctx, span := chartTracer.Start(ctx, "Checking account usage")
	defer span.End()

	var exists bool
	err := d.Conn.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM tally.journal_entry_lines WHERE account_id = $1)
	`, id).Scan(&exists)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check account usage", err)
	}
	return exists, nil
}

const sourceAccountColumns = `source_account_id, institution, account_identifier, currency, ledger_account_id, created_at`

func scanSourceAccount(row rowScanner) (model.SourceAccount, error) {
	var source model.SourceAccount
	var ledger sql.NullString
	err := row.Scan(&source.SourceAccountID, &source.Institution, &source.AccountIdentifier, &source.Currency, &ledger, &source.CreatedAt)
	if ledger.Valid {
		source.LedgerAccountID = ptr.String(ledger.String)
	}
	return source, err
}

func (d Datasource) CreateSourceAccount(ctx context.Context, source model.SourceAccount) (model.SourceAccount, error) {
	ctx, span := chartTracer.Start(ctx, "Saving source account to db")
	defer span.End()

	if source.CreatedAt.IsZero() {
		source.CreatedAt = time.Now()
	}
	var ledger sql.NullString
	if source.LedgerAccountID != nil {
		ledger = nullString(*source.LedgerAccountID)
	}
	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO tally.source_accounts (source_account_id, institution, account_identifier, currency, ledger_account_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, source.SourceAccountID, source.Institution, source.AccountIdentifier, source.Currency, ledger, source.CreatedAt)
	if err != nil {
		return model.SourceAccount{}, mapWriteError(err, "Source account with this identifier already exists", "Failed to create source account")
	}
	return source, nil
}

func (d Datasource) GetSourceAccountByID(ctx context.Context, id string) (*model.SourceAccount, error) {
	ctx, span := chartTracer.Start(ctx, "Fetching source account by id")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, `SELECT `+sourceAccountColumns+` FROM tally.source_accounts WHERE source_account_id = $1`, id)
	source, err := scanSourceAccount(row)
	if err != nil {
		return nil, mapReadError(err, "Source account with ID '"+id+"' not found", "Failed to retrieve source account")
	}
	return &source, nil
}

func (d Datasource) GetSourceAccountByIdentifier(ctx context.Context, institution, identifier string) (*model.SourceAccount, error) {
	ctx, span := chartTracer.Start(ctx, "Fetching source account by identifier")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, `SELECT `+sourceAccountColumns+` FROM tally.source_accounts WHERE institution = $1 AND account_identifier = $2`, institution, identifier)
	source, err := scanSourceAccount(row)
	if err != nil {
		return nil, mapReadError(err, "Source account '"+identifier+"' not found", "Failed to retrieve source account")
	}
	return &source, nil
}

func (d Datasource) GetAllSourceAccounts(ctx context.Context) ([]model.SourceAccount, error) {
	ctx, span := chartTracer.Start(ctx, "Fetching source accounts")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `SELECT `+sourceAccountColumns+` FROM tally.source_accounts ORDER BY created_at`)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve source accounts", err)
	}
	defer rows.Close()

	sources := []model.SourceAccount{}
	for rows.Next() {
		source, err := scanSourceAccount(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan source account data", err)
		}
		sources = append(sources, source)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over source accounts", err)
	}
	return sources, nil
}

// UpdateSourceAccountLedger maps a source account onto its ledger account.
func (d Datasource) UpdateSourceAccountLedger(ctx context.Context, id, ledgerAccountID string) error {
	ctx, span := chartTracer.Start(ctx, "Mapping source account to ledger account")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE tally.source_accounts SET ledger_account_id = $2 WHERE source_account_id = $1
	`, id, ledgerAccountID)
	if err != nil {
		return mapWriteError(err, "Source account mapping conflict", "Failed to map source account")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Source account with ID '"+id+"' not found", nil)
	}
	return nil
}
