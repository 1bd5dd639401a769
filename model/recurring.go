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

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type RecurringTransactionType string

const (
	RecurringInvoice      RecurringTransactionType = "invoice"
	RecurringBill         RecurringTransactionType = "bill"
	RecurringJournalEntry RecurringTransactionType = "journal_entry"
)

func (t RecurringTransactionType) Valid() bool {
	switch t {
	case RecurringInvoice, RecurringBill, RecurringJournalEntry:
		return true
	}
	return false
}

type RecurringFrequency string

const (
	FrequencyDaily   RecurringFrequency = "daily"
	FrequencyWeekly  RecurringFrequency = "weekly"
	FrequencyMonthly RecurringFrequency = "monthly"
	FrequencyYearly  RecurringFrequency = "yearly"
)

func (f RecurringFrequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return true
	}
	return false
}

type TemplateStatus string

const (
	TemplateStatusActive TemplateStatus = "active"
	TemplateStatusPaused TemplateStatus = "paused"
)

// RecurringTemplate describes a repeating transaction. When a run is due is decided by an
// external scheduler; this service only records what it is told.
type RecurringTemplate struct {
	ID              int64                    `json:"-"`
	TemplateID      string                   `json:"template_id"`
	Name            string                   `json:"name"`
	TransactionType RecurringTransactionType `json:"transaction_type"`
	Frequency       RecurringFrequency       `json:"frequency"`
	Interval        int                      `json:"interval"`
	DayOfMonth      *int                     `json:"day_of_month,omitempty"`
	DayOfWeek       *int                     `json:"day_of_week,omitempty"`
	Status          TemplateStatus           `json:"status"`
	NextRunDate     time.Time                `json:"next_run_date"`
	LastRunDate     *time.Time               `json:"last_run_date,omitempty"`
	SourceAccountID *string                  `json:"source_account_id,omitempty"`
	CreatedAt       time.Time                `json:"created_at"`
}

// RecurringRun is one due occurrence handed over by the scheduler.
// Draft carries the fully-formed entry; for invoices and bills OpenAmount and
// DocumentNumber describe the payment the bank feed should later show.
type RecurringRun struct {
	RunDate        time.Time       `json:"run_date"`
	NextRunDate    time.Time       `json:"next_run_date"`
	Draft          JournalEntry    `json:"draft"`
	DocumentNumber string          `json:"document_number,omitempty"`
	OpenAmount     decimal.Decimal `json:"open_amount"`
}

// RunReference is the idempotency reference for a template occurrence.
func RunReference(templateID string, runDate time.Time) string {
	return templateID + ":" + DateOnly(runDate).Format("2006-01-02")
}
