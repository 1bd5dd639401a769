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

	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/model"
	"go.opentelemetry.io/otel"
)

var openItemTracer = otel.Tracer("OpenItem")

const openItemColumns = `item_id, item_type, document_number, reference, description, amount, date,
	source_account_id, ledger_account_id, status, matched_transaction_id, created_at`

func scanOpenItem(row rowScanner) (model.OpenItem, error) {
	var item model.OpenItem
	var sourceID, ledgerID, matchedTxn sql.NullString
	err := row.Scan(&item.ItemID, &item.ItemType, &item.DocumentNumber, &item.Reference, &item.Description, &item.Amount,
		&item.Date, &sourceID, &ledgerID, &item.Status, &matchedTxn, &item.CreatedAt)
	item.SourceAccountID = stringPtr(sourceID)
	item.LedgerAccountID = stringPtr(ledgerID)
	item.MatchedTransactionID = stringPtr(matchedTxn)
	return item, err
}

func (d Datasource) RecordOpenItem(ctx context.Context, item model.OpenItem) (model.OpenItem, error) {
	ctx, span := openItemTracer.Start(ctx, "Saving open item to db")
	defer span.End()

	if err := insertOpenItem(ctx, d.Conn, &item); err != nil {
		return model.OpenItem{}, err
	}
	return item, nil
}

func (d Datasource) GetOpenItem(ctx context.Context, id string) (*model.OpenItem, error) {
	ctx, span := openItemTracer.Start(ctx, "Fetching open item")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, `SELECT `+openItemColumns+` FROM tally.open_items WHERE item_id = $1`, id)
	item, err := scanOpenItem(row)
	if err != nil {
		return nil, mapReadError(err, "Open item with ID '"+id+"' not found", "Failed to retrieve open item")
	}
	return &item, nil
}

// GetOpenItems returns items oldest first; an empty status returns all of them.
func (d Datasource) GetOpenItems(ctx context.Context, status model.OpenItemStatus) ([]model.OpenItem, error) {
	ctx, span := openItemTracer.Start(ctx, "Fetching open items")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `SELECT `+openItemColumns+` FROM tally.open_items
		WHERE $1 = '' OR status = $1 ORDER BY date, item_id`, status)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve open items", err)
	}
	defer rows.Close()

	items := []model.OpenItem{}
	for rows.Next() {
		item, err := scanOpenItem(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan open item", err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over open items", err)
	}
	return items, nil
}
