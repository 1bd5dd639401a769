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
	"fmt"
	"time"

	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/model"
	"go.opentelemetry.io/otel"
)

var recurringTracer = otel.Tracer("Recurring")

func (d Datasource) CreateRecurringTemplate(ctx context.Context, template model.RecurringTemplate) (model.RecurringTemplate, error) {
	ctx, span := recurringTracer.Start(ctx, "Saving recurring template to db")
	defer span.End()

	if template.CreatedAt.IsZero() {
		template.CreatedAt = time.Now()
	}
	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO tally.recurring_templates (template_id, name, transaction_type, frequency, interval, day_of_month,
			day_of_week, status, next_run_date, source_account_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, template.TemplateID, template.Name, template.TransactionType, template.Frequency, template.Interval,
		optionalInt(template.DayOfMonth), optionalInt(template.DayOfWeek), template.Status, template.NextRunDate,
		optionalString(template.SourceAccountID), template.CreatedAt)
	if err != nil {
		return model.RecurringTemplate{}, mapWriteError(err, "Recurring template already exists", "Failed to create recurring template")
	}
	return template, nil
}

func (d Datasource) GetRecurringTemplate(ctx context.Context, id string) (*model.RecurringTemplate, error) {
	ctx, span := recurringTracer.Start(ctx, "Fetching recurring template")
	defer span.End()

	var template model.RecurringTemplate
	var dayOfMonth, dayOfWeek sql.NullInt64
	var lastRun sql.NullTime
	var sourceID sql.NullString
	err := d.Conn.QueryRowContext(ctx, `
		SELECT template_id, name, transaction_type, frequency, interval, day_of_month, day_of_week, status,
			next_run_date, last_run_date, source_account_id, created_at
		FROM tally.recurring_templates WHERE template_id = $1
	`, id).Scan(&template.TemplateID, &template.Name, &template.TransactionType, &template.Frequency, &template.Interval,
		&dayOfMonth, &dayOfWeek, &template.Status, &template.NextRunDate, &lastRun, &sourceID, &template.CreatedAt)
	if err != nil {
		return nil, mapReadError(err, "Recurring template with ID '"+id+"' not found", "Failed to retrieve recurring template")
	}
	template.DayOfMonth = intPtr(dayOfMonth)
	template.DayOfWeek = intPtr(dayOfWeek)
	template.LastRunDate = timePtr(lastRun)
	template.SourceAccountID = stringPtr(sourceID)
	return &template, nil
}

// UpdateRecurringTemplateStatus pauses or resumes a template if it is still in from.
func (d Datasource) UpdateRecurringTemplateStatus(ctx context.Context, id string, from, to model.TemplateStatus) error {
	ctx, span := recurringTracer.Start(ctx, "Updating recurring template status")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE tally.recurring_templates SET status = $3 WHERE template_id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update recurring template", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return staleState(fmt.Sprintf("recurring template %s is not %s", id, from))
	}
	return nil
}

func optionalInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
