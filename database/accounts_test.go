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
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/model"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/wacul/ptr"
)

func TestCreateAccount_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	account := model.Account{
		AccountID: "acct_1",
		Code:      "6100",
		Name:      "Office Supplies",
		Type:      model.AccountTypeExpense,
		Status:    model.AccountStatusActive,
		MetaData:  map[string]interface{}{"group": "opex"},
	}
	metaDataJSON, err := json.Marshal(account.MetaData)
	assert.NoError(t, err)

	mock.ExpectExec("INSERT INTO tally.accounts").
		WithArgs("acct_1", "6100", "Office Supplies", "expense", "", nil, "active", sqlmock.AnyArg(), metaDataJSON).
		WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := ds.CreateAccount(context.Background(), account)
	assert.NoError(t, err)
	assert.WithinDuration(t, time.Now(), created.CreatedAt, time.Second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAccount_DuplicateCode(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("INSERT INTO tally.accounts").
		WillReturnError(&pq.Error{Code: "23505"})

	_, err = ds.CreateAccount(context.Background(), model.Account{AccountID: "acct_1", Code: "1000"})
	assert.Error(t, err)
	assert.Equal(t, apierror.ErrConflict, apierror.CodeOf(err))
}

func TestGetAccountByID_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	now := time.Now()

	rows := sqlmock.NewRows([]string{"account_id", "code", "name", "type", "subtype", "parent_account_id", "status", "created_at", "meta_data"}).
		AddRow("acct_2", "1010", "Checking", "asset", "bank", "acct_1", "active", now, []byte(`{"bank":"first"}`))
	mock.ExpectQuery("SELECT account_id, code, name").WithArgs("acct_2").WillReturnRows(rows)

	account, err := ds.GetAccountByID(context.Background(), "acct_2")
	assert.NoError(t, err)
	assert.Equal(t, "1010", account.Code)
	assert.Equal(t, model.AccountTypeAsset, account.Type)
	assert.Equal(t, "acct_1", *account.ParentAccountID)
	assert.Equal(t, "first", account.MetaData["bank"])
}

func TestGetAccountByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT account_id, code, name").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err = ds.GetAccountByID(context.Background(), "missing")
	assert.Error(t, err)
	assert.Equal(t, apierror.ErrNotFound, apierror.CodeOf(err))
}

func TestGetAllAccounts(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	now := time.Now()

	rows := sqlmock.NewRows([]string{"account_id", "code", "name", "type", "subtype", "parent_account_id", "status", "created_at", "meta_data"}).
		AddRow("acct_1", "1000", "Cash", "asset", "", nil, "active", now, nil).
		AddRow("acct_2", "6100", "Office Supplies", "expense", "", nil, "inactive", now, nil)
	mock.ExpectQuery("SELECT account_id, code, name .* ORDER BY code").WillReturnRows(rows)

	accounts, err := ds.GetAllAccounts(context.Background())
	assert.NoError(t, err)
	assert.Len(t, accounts, 2)
	assert.Nil(t, accounts[0].ParentAccountID)
	assert.False(t, accounts[1].IsActive())
}

func TestUpdateAccount_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE tally.accounts").WillReturnResult(sqlmock.NewResult(0, 0))

	err = ds.UpdateAccount(context.Background(), &model.Account{AccountID: "acct_x", Code: "9999"})
	assert.Error(t, err)
	assert.Equal(t, apierror.ErrNotFound, apierror.CodeOf(err))
}

func TestAccountHasLines(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT EXISTS").WithArgs("acct_1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	used, err := ds.AccountHasLines(context.Background(), "acct_1")
	assert.NoError(t, err)
	assert.True(t, used)
}

func TestCreateSourceAccount_WithLedger(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	source := model.SourceAccount{
		SourceAccountID:   "src_1",
		Institution:       "First Bank",
		AccountIdentifier: "4521",
		Currency:          "USD",
		LedgerAccountID:   ptr.String("acct_2"),
	}
	mock.ExpectExec("INSERT INTO tally.source_accounts").
		WithArgs("src_1", "First Bank", "4521", "USD", "acct_2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	_, err = ds.CreateSourceAccount(context.Background(), source)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSourceAccountByIdentifier_Unmapped(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	rows := sqlmock.NewRows([]string{"source_account_id", "institution", "account_identifier", "currency", "ledger_account_id", "created_at"}).
		AddRow("src_1", "", "4521", "USD", nil, time.Now())
	mock.ExpectQuery("SELECT source_account_id").WithArgs("", "4521").WillReturnRows(rows)

	source, err := ds.GetSourceAccountByIdentifier(context.Background(), "", "4521")
	assert.NoError(t, err)
	assert.Equal(t, "src_1", source.SourceAccountID)
	assert.Nil(t, source.LedgerAccountID)
}

func TestUpdateSourceAccountLedger(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE tally.source_accounts SET ledger_account_id").
		WithArgs("src_1", "acct_2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, ds.UpdateSourceAccountLedger(context.Background(), "src_1", "acct_2"))

	mock.ExpectExec("UPDATE tally.source_accounts SET ledger_account_id").
		WithArgs("src_2", "acct_2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = ds.UpdateSourceAccountLedger(context.Background(), "src_2", "acct_2")
	assert.Equal(t, apierror.ErrNotFound, apierror.CodeOf(err))
}
