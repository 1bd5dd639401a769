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
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wacul/ptr"
	"gopkg.in/yaml.v3"

	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/model"
)

const (
	chartCacheKey = "tally:chart"
	chartCacheTTL = 5 * time.Minute
)

// ChartSnapshot is a read-only view of the chart of accounts, safe to share between
// goroutines. Accounts are sorted by code.
type ChartSnapshot struct {
	accounts []model.Account
	byID     map[string]int
	byCode   map[string]int
}

func NewChartSnapshot(accounts []model.Account) *ChartSnapshot {
	sorted := make([]model.Account, len(accounts))
	copy(sorted, accounts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })

	snapshot := &ChartSnapshot{
		accounts: sorted,
		byID:     make(map[string]int, len(sorted)),
		byCode:   make(map[string]int, len(sorted)),
	}
	for i, account := range sorted {
		snapshot.byID[account.AccountID] = i
		snapshot.byCode[account.Code] = i
	}
	return snapshot
}

// Accounts returns a copy of every account in code order.
func (c *ChartSnapshot) Accounts() []model.Account {
	out := make([]model.Account, len(c.accounts))
	copy(out, c.accounts)
	return out
}

// ActiveAccounts returns the accounts a row may be categorized against.
func (c *ChartSnapshot) ActiveAccounts() []model.Account {
	out := make([]model.Account, 0, len(c.accounts))
	for _, account := range c.accounts {
		if account.IsActive() {
			out = append(out, account)
		}
	}
	return out
}

func (c *ChartSnapshot) Account(id string) (model.Account, bool) {
	i, ok := c.byID[id]
	if !ok {
		return model.Account{}, false
	}
	return c.accounts[i], true
}

func (c *ChartSnapshot) AccountByCode(code string) (model.Account, bool) {
	i, ok := c.byCode[code]
	if !ok {
		return model.Account{}, false
	}
	return c.accounts[i], true
}

// IsActive reports whether id names an active account in the snapshot.
func (c *ChartSnapshot) IsActive(id string) bool {
	account, ok := c.Account(id)
	return ok && account.IsActive()
}

func isNotFound(err error) bool {
	return apierror.CodeOf(err) == apierror.ErrNotFound
}

// checkParentChain walks up from parentID and refuses the parent if accountID is an ancestor
// of it (or is the parent itself).
func (t *Tally) checkParentChain(ctx context.Context, accountID, parentID string) error {
	visited := map[string]struct{}{}
	current := parentID
	for current != "" {
		if current == accountID {
			return invalidInput(apierror.ReasonAccountCycle, "account %s cannot be its own ancestor", accountID)
		}
		if _, seen := visited[current]; seen {
			return invalidInput(apierror.ReasonAccountCycle, "parent chain of %s already contains a cycle", parentID)
		}
		visited[current] = struct{}{}

		parent, err := t.datasource.GetAccountByID(ctx, current)
		if err != nil {
			if isNotFound(err) {
				return apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("parent account %s does not exist", current), err)
			}
			return err
		}
		if parent.ParentAccountID == nil {
			return nil
		}
		current = *parent.ParentAccountID
	}
	return nil
}

func validateAccountFields(account *model.Account) error {
	account.Code = strings.TrimSpace(account.Code)
	account.Name = strings.TrimSpace(account.Name)
	if account.Code == "" {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "account code is required", nil)
	}
	if account.Name == "" {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "account name is required", nil)
	}
	if !account.Type.Valid() {
		return apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("invalid account type %q", account.Type), nil)
	}
	if account.ParentAccountID != nil && *account.ParentAccountID == "" {
		account.ParentAccountID = nil
	}
	return nil
}

// CreateAccount adds an account to the chart. Codes are unique and the parent chain must
// not loop back to the new account.
func (t *Tally) CreateAccount(ctx context.Context, account model.Account) (model.Account, error) {
	ctx, span := tracer.Start(ctx, "Creating account")
	defer span.End()

	if err := validateAccountFields(&account); err != nil {
		return model.Account{}, err
	}

	existing, err := t.datasource.GetAccountByCode(ctx, account.Code)
	if err != nil && !isNotFound(err) {
		return model.Account{}, logAndRecordError(span, "failed to check account code", err)
	}
	if existing != nil {
		return model.Account{}, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("account code %s is already in use", account.Code), nil)
	}

	if account.AccountID == "" {
		account.AccountID = model.GenerateUUIDWithSuffix("acct")
	}
	if account.ParentAccountID != nil {
		if err := t.checkParentChain(ctx, account.AccountID, *account.ParentAccountID); err != nil {
			return model.Account{}, err
		}
	}
	if account.Status == "" {
		account.Status = model.AccountStatusActive
	}
	account.CreatedAt = time.Now()

	created, err := t.datasource.CreateAccount(ctx, account)
	if err != nil {
		return model.Account{}, logAndRecordError(span, "failed to create account", err)
	}
	t.invalidateChart(ctx)
	return created, nil
}

// UpdateAccount edits an account in place. The type is frozen once any journal line
// references the account, and the parent may not introduce a cycle.
func (t *Tally) UpdateAccount(ctx context.Context, account *model.Account) error {
	ctx, span := tracer.Start(ctx, "Updating account")
	defer span.End()

	if err := validateAccountFields(account); err != nil {
		return err
	}
	current, err := t.datasource.GetAccountByID(ctx, account.AccountID)
	if err != nil {
		return err
	}

	if current.Type != account.Type {
		used, err := t.datasource.AccountHasLines(ctx, account.AccountID)
		if err != nil {
			return logAndRecordError(span, "failed to check account usage", err)
		}
		if used {
			return conflict(apierror.ReasonTypeImmutable, "account %s already has posted lines; its type cannot change", account.AccountID)
		}
	}

	if current.Code != account.Code {
		existing, err := t.datasource.GetAccountByCode(ctx, account.Code)
		if err != nil && !isNotFound(err) {
			return err
		}
		if existing != nil && existing.AccountID != account.AccountID {
			return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("account code %s is already in use", account.Code), nil)
		}
	}

	if account.ParentAccountID != nil {
		if err := t.checkParentChain(ctx, account.AccountID, *account.ParentAccountID); err != nil {
			return err
		}
	}
	if account.Status == "" {
		account.Status = current.Status
	}
	account.CreatedAt = current.CreatedAt

	if err := t.datasource.UpdateAccount(ctx, account); err != nil {
		return logAndRecordError(span, "failed to update account", err)
	}
	t.invalidateChart(ctx)
	return nil
}

func (t *Tally) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	return t.datasource.GetAccountByID(ctx, id)
}

func (t *Tally) GetAccountByCode(ctx context.Context, code string) (*model.Account, error) {
	return t.datasource.GetAccountByCode(ctx, code)
}

func (t *Tally) ListAccounts(ctx context.Context) ([]model.Account, error) {
	return t.datasource.GetAllAccounts(ctx)
}

// DeactivateAccount hides an account from categorization and posting. Its history stays.
func (t *Tally) DeactivateAccount(ctx context.Context, id string) (*model.Account, error) {
	account, err := t.datasource.GetAccountByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !account.IsActive() {
		return account, nil
	}
	account.Status = model.AccountStatusInactive
	if err := t.datasource.UpdateAccount(ctx, account); err != nil {
		return nil, err
	}
	t.invalidateChart(ctx)
	return account, nil
}

// MapSourceAccount binds a bank or card account to the ledger account that mirrors it.
// Only asset and liability accounts can stand for money held at an institution.
func (t *Tally) MapSourceAccount(ctx context.Context, sourceAccountID, ledgerAccountID string) (*model.SourceAccount, error) {
	ctx, span := tracer.Start(ctx, "Mapping source account")
	defer span.End()

	source, err := t.datasource.GetSourceAccountByID(ctx, sourceAccountID)
	if err != nil {
		return nil, err
	}
	ledger, err := t.datasource.GetAccountByID(ctx, ledgerAccountID)
	if err != nil {
		return nil, err
	}
	if ledger.Type != model.AccountTypeAsset && ledger.Type != model.AccountTypeLiability {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput,
			fmt.Sprintf("account %s is %s; source accounts map to asset or liability accounts", ledger.AccountID, ledger.Type), nil)
	}
	if !ledger.IsActive() {
		return nil, invalidInput(apierror.ReasonAccountInactive, "account %s is inactive", ledger.AccountID)
	}
	if err := t.datasource.UpdateSourceAccountLedger(ctx, sourceAccountID, ledgerAccountID); err != nil {
		return nil, logAndRecordError(span, "failed to map source account", err)
	}
	source.LedgerAccountID = ptr.String(ledger.AccountID)
	return source, nil
}

func (t *Tally) ListSourceAccounts(ctx context.Context) ([]model.SourceAccount, error) {
	return t.datasource.GetAllSourceAccounts(ctx)
}

func (t *Tally) GetSourceAccount(ctx context.Context, id string) (*model.SourceAccount, error) {
	return t.datasource.GetSourceAccountByID(ctx, id)
}

// ChartSnapshot returns the chart as of now, served from cache when possible.
func (t *Tally) ChartSnapshot(ctx context.Context) (*ChartSnapshot, error) {
	var accounts []model.Account
	if t.cache != nil {
		found, err := t.cache.Get(ctx, chartCacheKey, &accounts)
		if err != nil {
			logrus.WithError(err).Warn("chart cache read failed")
		}
		if found {
			return NewChartSnapshot(accounts), nil
		}
	}

	accounts, err := t.datasource.GetAllAccounts(ctx)
	if err != nil {
		return nil, err
	}
	if t.cache != nil {
		if err := t.cache.Set(ctx, chartCacheKey, accounts, chartCacheTTL); err != nil {
			logrus.WithError(err).Warn("chart cache write failed")
		}
	}
	return NewChartSnapshot(accounts), nil
}

func (t *Tally) invalidateChart(ctx context.Context) {
	if t.cache == nil {
		return
	}
	if err := t.cache.Delete(ctx, chartCacheKey); err != nil {
		logrus.WithError(err).Warn("chart cache invalidation failed")
	}
}

type seedAccount struct {
	Code    string `yaml:"code"`
	Name    string `yaml:"name"`
	Subtype string `yaml:"subtype"`
	Parent  string `yaml:"parent"`
}

// SeedResult reports what SeedChart did.
type SeedResult struct {
	Created []string `json:"created"`
	Skipped []string `json:"skipped"`
}

var seedTypeOrder = []model.AccountType{
	model.AccountTypeAsset,
	model.AccountTypeLiability,
	model.AccountTypeEquity,
	model.AccountTypeRevenue,
	model.AccountTypeExpense,
}

// SeedChart loads a YAML chart grouped by account type and creates every code that does
// not exist yet. Parents are referenced by code and must appear earlier in the file.
//
//	asset:
//	  - code: "1000"
//	    name: Checking
//	    subtype: bank
//	expense:
//	  - code: "6100"
//	    name: Office Supplies
func (t *Tally) SeedChart(ctx context.Context, r io.Reader) (SeedResult, error) {
	var seed map[model.AccountType][]seedAccount
	if err := yaml.NewDecoder(r).Decode(&seed); err != nil {
		return SeedResult{}, apierror.NewAPIError(apierror.ErrInvalidInput, "chart seed is not valid YAML", err)
	}
	for accountType := range seed {
		if !accountType.Valid() {
			return SeedResult{}, apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("unknown account type %q in chart seed", accountType), nil)
		}
	}

	result := SeedResult{Created: []string{}, Skipped: []string{}}
	for _, accountType := range seedTypeOrder {
		for _, entry := range seed[accountType] {
			existing, err := t.datasource.GetAccountByCode(ctx, entry.Code)
			if err != nil && !isNotFound(err) {
				return result, err
			}
			if existing != nil {
				result.Skipped = append(result.Skipped, entry.Code)
				continue
			}

			account := model.Account{Code: entry.Code, Name: entry.Name, Type: accountType, Subtype: entry.Subtype}
			if entry.Parent != "" {
				parent, err := t.datasource.GetAccountByCode(ctx, entry.Parent)
				if err != nil {
					return result, apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("parent code %s of %s is not in the chart", entry.Parent, entry.Code), err)
				}
				account.ParentAccountID = ptr.String(parent.AccountID)
			}
			if _, err := t.CreateAccount(ctx, account); err != nil {
				return result, err
			}
			result.Created = append(result.Created, entry.Code)
		}
	}
	return result, nil
}
