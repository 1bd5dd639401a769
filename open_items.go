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
	"time"

	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/model"
)

// normalizeOpenItemSign stores customer payments as inflows and bill payments as outflows,
// whichever sign the caller used.
func normalizeOpenItemSign(item *model.OpenItem) {
	switch item.ItemType {
	case model.EntityCustomerPayment:
		item.Amount = item.Amount.Abs()
	case model.EntityBillPayment:
		item.Amount = item.Amount.Abs().Neg()
	}
}

// RecordOpenItem registers a payment entered outside the bank feed so a later statement row
// can be matched to it instead of being posted twice.
func (t *Tally) RecordOpenItem(ctx context.Context, item model.OpenItem) (model.OpenItem, error) {
	ctx, span := tracer.Start(ctx, "Recording open item")
	defer span.End()

	if item.ItemType != model.EntityCustomerPayment && item.ItemType != model.EntityBillPayment {
		return model.OpenItem{}, apierror.NewAPIError(apierror.ErrInvalidInput, "item_type must be customer_payment or bill_payment", nil)
	}
	if item.Amount.IsZero() {
		return model.OpenItem{}, apierror.NewAPIError(apierror.ErrInvalidInput, "amount must not be zero", nil)
	}
	if item.Date.IsZero() {
		return model.OpenItem{}, apierror.NewAPIError(apierror.ErrInvalidInput, "date is required", nil)
	}
	if item.SourceAccountID == nil && item.LedgerAccountID == nil {
		return model.OpenItem{}, apierror.NewAPIError(apierror.ErrInvalidInput, "source_account_id or ledger_account_id is required", nil)
	}
	if item.SourceAccountID != nil {
		if _, err := t.datasource.GetSourceAccountByID(ctx, *item.SourceAccountID); err != nil {
			return model.OpenItem{}, err
		}
	}
	if item.LedgerAccountID != nil {
		if err := t.requireActiveAccount(ctx, *item.LedgerAccountID); err != nil {
			return model.OpenItem{}, err
		}
	}

	normalizeOpenItemSign(&item)
	item.ItemID = model.GenerateUUIDWithSuffix("item")
	item.Date = model.DateOnly(item.Date)
	item.Status = model.OpenItemStatusOpen
	item.MatchedTransactionID = nil
	item.CreatedAt = time.Now()

	recorded, err := t.datasource.RecordOpenItem(ctx, item)
	if err != nil {
		return model.OpenItem{}, logAndRecordError(span, "failed to record open item", err)
	}
	return recorded, nil
}

func (t *Tally) GetOpenItem(ctx context.Context, id string) (*model.OpenItem, error) {
	return t.datasource.GetOpenItem(ctx, id)
}

// ListOpenItems returns items with the given status, optionally limited to one source account.
// Empty arguments mean no filter.
func (t *Tally) ListOpenItems(ctx context.Context, sourceAccountID string, status model.OpenItemStatus) ([]model.OpenItem, error) {
	items, err := t.datasource.GetOpenItems(ctx, status)
	if err != nil {
		return nil, err
	}
	if sourceAccountID == "" {
		return items, nil
	}
	filtered := make([]model.OpenItem, 0, len(items))
	for _, item := range items {
		if item.SourceAccountID != nil && *item.SourceAccountID == sourceAccountID {
			filtered = append(filtered, item)
		}
	}
	return filtered, nil
}
