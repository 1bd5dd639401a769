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
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/blnkfinance/tally/database"
	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/model"
)

func validateTemplate(template model.RecurringTemplate) error {
	switch {
	case strings.TrimSpace(template.Name) == "":
		return apierror.NewAPIError(apierror.ErrInvalidInput, "name is required", nil)
	case !template.TransactionType.Valid():
		return apierror.NewAPIError(apierror.ErrInvalidInput, "transaction_type must be invoice, bill or journal_entry", nil)
	case !template.Frequency.Valid():
		return apierror.NewAPIError(apierror.ErrInvalidInput, "frequency must be daily, weekly, monthly or yearly", nil)
	case template.Interval < 0:
		return apierror.NewAPIError(apierror.ErrInvalidInput, "interval must not be negative", nil)
	case template.DayOfMonth != nil && (*template.DayOfMonth < 1 || *template.DayOfMonth > 31):
		return apierror.NewAPIError(apierror.ErrInvalidInput, "day_of_month must be between 1 and 31", nil)
	case template.DayOfWeek != nil && (*template.DayOfWeek < 0 || *template.DayOfWeek > 6):
		return apierror.NewAPIError(apierror.ErrInvalidInput, "day_of_week must be between 0 and 6", nil)
	case template.NextRunDate.IsZero():
		return apierror.NewAPIError(apierror.ErrInvalidInput, "next_run_date is required", nil)
	case template.TransactionType != model.RecurringJournalEntry && template.SourceAccountID == nil:
		return apierror.NewAPIError(apierror.ErrInvalidInput, "invoice and bill templates need the source account the payment will arrive in", nil)
	}
	return nil
}

// CreateRecurringTemplate stores a template. The schedule fields are kept for the external
// scheduler; nothing here computes when a run is due.
func (t *Tally) CreateRecurringTemplate(ctx context.Context, template model.RecurringTemplate) (model.RecurringTemplate, error) {
	if err := validateTemplate(template); err != nil {
		return model.RecurringTemplate{}, err
	}
	if template.SourceAccountID != nil {
		if _, err := t.datasource.GetSourceAccountByID(ctx, *template.SourceAccountID); err != nil {
			return model.RecurringTemplate{}, err
		}
	}
	if template.Interval == 0 {
		template.Interval = 1
	}
	template.TemplateID = model.GenerateUUIDWithSuffix("tmpl")
	template.Status = model.TemplateStatusActive
	template.NextRunDate = model.DateOnly(template.NextRunDate)
	template.LastRunDate = nil
	template.CreatedAt = time.Now()
	return t.datasource.CreateRecurringTemplate(ctx, template)
}

func (t *Tally) GetRecurringTemplate(ctx context.Context, id string) (*model.RecurringTemplate, error) {
	return t.datasource.GetRecurringTemplate(ctx, id)
}

func (t *Tally) setTemplateStatus(ctx context.Context, id string, from, to model.TemplateStatus) (*model.RecurringTemplate, error) {
	template, err := t.datasource.GetRecurringTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	if template.Status == to {
		return template, nil
	}
	if err := t.datasource.UpdateRecurringTemplateStatus(ctx, id, from, to); err != nil {
		return nil, err
	}
	template.Status = to
	return template, nil
}

// PauseRecurringTemplate stops the template from materializing runs. Pausing a paused
// template is a no-op.
func (t *Tally) PauseRecurringTemplate(ctx context.Context, id string) (*model.RecurringTemplate, error) {
	return t.setTemplateStatus(ctx, id, model.TemplateStatusActive, model.TemplateStatusPaused)
}

func (t *Tally) ResumeRecurringTemplate(ctx context.Context, id string) (*model.RecurringTemplate, error) {
	return t.setTemplateStatus(ctx, id, model.TemplateStatusPaused, model.TemplateStatusActive)
}

// openItemForRun describes the payment an invoice or bill run expects to see on a statement.
func (t *Tally) openItemForRun(ctx context.Context, template *model.RecurringTemplate, run model.RecurringRun, entry *model.JournalEntry) (*model.OpenItem, error) {
	amount := run.OpenAmount
	if amount.IsZero() {
		amount, _ = entry.Totals()
	}
	item := &model.OpenItem{
		ItemID:          model.GenerateUUIDWithSuffix("item"),
		DocumentNumber:  run.DocumentNumber,
		Reference:       entry.Reference,
		Description:     entry.Description,
		Amount:          amount,
		Date:            model.DateOnly(run.RunDate),
		SourceAccountID: template.SourceAccountID,
		Status:          model.OpenItemStatusOpen,
	}
	if template.TransactionType == model.RecurringInvoice {
		item.ItemType = model.EntityCustomerPayment
	} else {
		item.ItemType = model.EntityBillPayment
	}
	normalizeOpenItemSign(item)

	if template.SourceAccountID != nil {
		source, err := t.datasource.GetSourceAccountByID(ctx, *template.SourceAccountID)
		if err != nil {
			return nil, err
		}
		item.LedgerAccountID = source.LedgerAccountID
	}
	return item, nil
}

// MaterializeRecurringRun posts one due occurrence handed over by the scheduler. The run is
// identified by template and run date, so a repeated handoff is refused rather than posted
// twice. The template's next run date is whatever the scheduler supplied.
func (t *Tally) MaterializeRecurringRun(ctx context.Context, templateID string, run model.RecurringRun) (*model.JournalEntry, error) {
	ctx, span := tracer.Start(ctx, "Materializing recurring run")
	defer span.End()

	template, err := t.datasource.GetRecurringTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if template.Status != model.TemplateStatusActive {
		return nil, conflict(apierror.ReasonTemplatePaused, "recurring template %s is paused", templateID)
	}
	if run.RunDate.IsZero() {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "run_date is required", nil)
	}
	if !run.NextRunDate.After(run.RunDate) {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "next_run_date must be after run_date", nil)
	}

	entry := run.Draft
	entry.JournalEntryID = ""
	entry.Reference = model.RunReference(templateID, run.RunDate)
	entry.Source = model.JournalSourceRecurring
	entry.TransactionDate = model.DateOnly(run.RunDate)
	if entry.Description == "" {
		entry.Description = template.Name
	}
	entry.Lines = append([]model.JournalEntryLine(nil), run.Draft.Lines...)
	for i := range entry.Lines {
		entry.Lines[i].LineID = ""
	}
	prepareEntry(&entry, model.JournalSourceRecurring)
	if err := t.validateForPosting(ctx, &entry, true); err != nil {
		span.RecordError(err)
		return nil, err
	}

	opts := database.PostingOptions{
		TemplateRun: &database.TemplateRun{
			TemplateID:  templateID,
			RunDate:     model.DateOnly(run.RunDate),
			NextRunDate: model.DateOnly(run.NextRunDate),
		},
	}
	if template.TransactionType != model.RecurringJournalEntry {
		item, err := t.openItemForRun(ctx, template, run, &entry)
		if err != nil {
			return nil, err
		}
		opts.OpenItem = item
	}

	if err := t.datasource.RecordPostedEntry(ctx, &entry, opts); err != nil {
		return nil, logAndRecordError(span, "failed to materialize recurring run", err)
	}

	logrus.WithFields(logrus.Fields{
		"template_id":      templateID,
		"run_date":         entry.TransactionDate.Format("2006-01-02"),
		"journal_entry_id": entry.JournalEntryID,
	}).Info("recurring run posted")
	t.publish(ctx, EventJournalEntryPosted, entry)
	return &entry, nil
}
