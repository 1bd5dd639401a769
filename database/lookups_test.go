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
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/model"
	"github.com/stretchr/testify/assert"
	"github.com/wacul/ptr"
)

func TestCreateBankRule(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	rule := model.BankRule{RuleID: "rul_1", Name: "Staples", MatchField: model.MatchFieldDescription,
		MatchType: model.MatchTypeContains, MatchValue: "STAPLES", AssignAccountID: "acct_office", Priority: 1}

	mock.ExpectExec("INSERT INTO tally.bank_rules").
		WithArgs("rul_1", "Staples", "description", "contains", "STAPLES", "acct_office", 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := ds.CreateBankRule(context.Background(), rule)
	assert.NoError(t, err)
	assert.False(t, created.CreatedAt.IsZero())
}

func TestGetBankRules_Ordered(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	now := time.Now()

	mock.ExpectQuery("SELECT rule_id, name .* ORDER BY priority, created_at, rule_id").
		WillReturnRows(sqlmock.NewRows([]string{"rule_id", "name", "match_field", "match_type", "match_value", "assign_account_id", "priority", "created_at"}).
			AddRow("rul_1", "Staples", "description", "contains", "STAPLES", "acct_office", 1, now).
			AddRow("rul_2", "Large", "amount", "greater_than", "1000", "acct_capex", 5, now))

	rules, err := ds.GetBankRules(context.Background())
	assert.NoError(t, err)
	assert.Len(t, rules, 2)
	assert.Equal(t, model.MatchFieldAmount, rules[1].MatchField)
}

func TestDeleteBankRule_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("DELETE FROM tally.bank_rules").WithArgs("rul_x").WillReturnResult(sqlmock.NewResult(0, 0))

	err = ds.DeleteBankRule(context.Background(), "rul_x")
	assert.Equal(t, apierror.ErrNotFound, apierror.CodeOf(err))
}

func TestGetOpenItems(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT item_id, item_type").WithArgs("open").
		WillReturnRows(sqlmock.NewRows([]string{"item_id", "item_type", "document_number", "reference", "description", "amount",
			"date", "source_account_id", "ledger_account_id", "status", "matched_transaction_id", "created_at"}).
			AddRow("itm_1", "customer_payment", "INV-1001", "", "Acme", "500.00", date, "src_1", nil, "open", nil, date))

	items, err := ds.GetOpenItems(context.Background(), model.OpenItemStatusOpen)
	assert.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, "src_1", *items[0].SourceAccountID)
	assert.Equal(t, "500.00", items[0].Amount.StringFixed(2))
}

func TestRecordOpenItem_DefaultsStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("INSERT INTO tally.open_items").WillReturnResult(sqlmock.NewResult(1, 1))

	item, err := ds.RecordOpenItem(context.Background(), model.OpenItem{ItemID: "itm_1", ItemType: model.EntityBillPayment})
	assert.NoError(t, err)
	assert.Equal(t, model.OpenItemStatusOpen, item.Status)
}

func TestCreateAndGetRecurringTemplate(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	next := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	template := model.RecurringTemplate{TemplateID: "tpl_1", Name: "Rent", TransactionType: model.RecurringBill,
		Frequency: model.FrequencyMonthly, Interval: 1, DayOfMonth: ptr.Int(1), Status: model.TemplateStatusActive, NextRunDate: next}

	mock.ExpectExec("INSERT INTO tally.recurring_templates").
		WithArgs("tpl_1", "Rent", "bill", "monthly", 1, 1, nil, "active", next, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	_, err = ds.CreateRecurringTemplate(context.Background(), template)
	assert.NoError(t, err)

	mock.ExpectQuery("SELECT template_id, name").WithArgs("tpl_1").
		WillReturnRows(sqlmock.NewRows([]string{"template_id", "name", "transaction_type", "frequency", "interval", "day_of_month",
			"day_of_week", "status", "next_run_date", "last_run_date", "source_account_id", "created_at"}).
			AddRow("tpl_1", "Rent", "bill", "monthly", 1, 1, nil, "active", next, nil, nil, next))

	got, err := ds.GetRecurringTemplate(context.Background(), "tpl_1")
	assert.NoError(t, err)
	assert.Equal(t, 1, *got.DayOfMonth)
	assert.Nil(t, got.DayOfWeek)
	assert.Nil(t, got.LastRunDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRecurringTemplateStatus_Stale(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE tally.recurring_templates SET status").
		WithArgs("tpl_1", "active", "paused").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = ds.UpdateRecurringTemplateStatus(context.Background(), "tpl_1", model.TemplateStatusActive, model.TemplateStatusPaused)
	assert.Equal(t, apierror.ReasonStaleState, apierror.ReasonOf(err))
}
