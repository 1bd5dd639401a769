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
	"time"

	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/model"
	"go.opentelemetry.io/otel"
)

var ruleTracer = otel.Tracer("BankRule")

const bankRuleColumns = `rule_id, name, match_field, match_type, match_value, assign_account_id, priority, created_at`

func scanBankRule(row rowScanner) (model.BankRule, error) {
	var rule model.BankRule
	err := row.Scan(&rule.RuleID, &rule.Name, &rule.MatchField, &rule.MatchType, &rule.MatchValue,
		&rule.AssignAccountID, &rule.Priority, &rule.CreatedAt)
	return rule, err
}

func (d Datasource) CreateBankRule(ctx context.Context, rule model.BankRule) (model.BankRule, error) {
	ctx, span := ruleTracer.Start(ctx, "Saving bank rule to db")
	defer span.End()

	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now()
	}
	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO tally.bank_rules (rule_id, name, match_field, match_type, match_value, assign_account_id, priority, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rule.RuleID, rule.Name, rule.MatchField, rule.MatchType, rule.MatchValue, rule.AssignAccountID, rule.Priority, rule.CreatedAt)
	if err != nil {
		return model.BankRule{}, mapWriteError(err, "Bank rule already exists", "Failed to create bank rule")
	}
	return rule, nil
}

func (d Datasource) GetBankRule(ctx context.Context, id string) (*model.BankRule, error) {
	ctx, span := ruleTracer.Start(ctx, "Fetching bank rule")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, `SELECT `+bankRuleColumns+` FROM tally.bank_rules WHERE rule_id = $1`, id)
	rule, err := scanBankRule(row)
	if err != nil {
		return nil, mapReadError(err, "Bank rule with ID '"+id+"' not found", "Failed to retrieve bank rule")
	}
	return &rule, nil
}

// GetBankRules returns rules in evaluation order.
func (d Datasource) GetBankRules(ctx context.Context) ([]model.BankRule, error) {
	ctx, span := ruleTracer.Start(ctx, "Fetching bank rules")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `SELECT `+bankRuleColumns+` FROM tally.bank_rules ORDER BY priority, created_at, rule_id`)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve bank rules", err)
	}
	defer rows.Close()

	rules := []model.BankRule{}
	for rows.Next() {
		rule, err := scanBankRule(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan bank rule", err)
		}
		rules = append(rules, rule)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over bank rules", err)
	}
	return rules, nil
}

func (d Datasource) UpdateBankRule(ctx context.Context, rule *model.BankRule) error {
	ctx, span := ruleTracer.Start(ctx, "Updating bank rule")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE tally.bank_rules
		SET name = $2, match_field = $3, match_type = $4, match_value = $5, assign_account_id = $6, priority = $7
		WHERE rule_id = $1
	`, rule.RuleID, rule.Name, rule.MatchField, rule.MatchType, rule.MatchValue, rule.AssignAccountID, rule.Priority)
	if err != nil {
		return mapWriteError(err, "Bank rule conflict", "Failed to update bank rule")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Bank rule with ID '"+rule.RuleID+"' not found", nil)
	}
	return nil
}

func (d Datasource) DeleteBankRule(ctx context.Context, id string) error {
	ctx, span := ruleTracer.Start(ctx, "Deleting bank rule")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `DELETE FROM tally.bank_rules WHERE rule_id = $1`, id)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to delete bank rule", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Bank rule with ID '"+id+"' not found", nil)
	}
	return nil
}
