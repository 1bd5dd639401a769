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
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"google.golang.org/genai"

	"github.com/blnkfinance/tally/config"
	"github.com/blnkfinance/tally/model"
)

// SuggestionRequest is what the AI collaborator sees of a row.
type SuggestionRequest struct {
	Description string
	RawCategory string
	Amount      decimal.Decimal
	Currency    string
	Candidates  []model.Account
}

// Suggester proposes an account for a row. An empty id means no suggestion.
// Implementations must return an id drawn from req.Candidates.
type Suggester interface {
	Suggest(ctx context.Context, req SuggestionRequest) (string, error)
}

// NoopSuggester never suggests anything. It is used when AI categorization is disabled.
type NoopSuggester struct{}

func (NoopSuggester) Suggest(context.Context, SuggestionRequest) (string, error) {
	return "", nil
}

// NewSuggester builds the collaborator named by the categorization config.
func NewSuggester(ctx context.Context, cfg config.CategorizationConfig) (Suggester, error) {
	switch cfg.Provider {
	case "", "none", "disabled":
		return NoopSuggester{}, nil
	case "gemini", "genai", "google":
		return NewGenAISuggester(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown categorization provider %q", cfg.Provider)
	}
}

type generateFunc func(ctx context.Context, prompt string) (string, error)

// GenAISuggester asks a Gemini model to pick one account from the chart.
type GenAISuggester struct {
	generate   generateFunc
	timeout    time.Duration
	maxRetries uint64
}

func NewGenAISuggester(ctx context.Context, cfg config.CategorizationConfig) (*GenAISuggester, error) {
	if cfg.ApiKey == "" {
		return nil, fmt.Errorf("categorization provider %s needs an api key", cfg.Provider)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.ApiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	modelName := cfg.Model
	generate := func(ctx context.Context, prompt string) (string, error) {
		contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: prompt}}}}
		resp, err := client.Models.GenerateContent(ctx, modelName, contents, nil)
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	}
	return newGenAISuggester(generate, time.Duration(cfg.TimeoutMs)*time.Millisecond, cfg.MaxRetries), nil
}

func newGenAISuggester(generate generateFunc, timeout time.Duration, maxRetries int) *GenAISuggester {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &GenAISuggester{generate: generate, timeout: timeout, maxRetries: uint64(maxRetries)}
}

// Suggest makes one bounded attempt per retry, all within the suggester's timeout.
// Anything the model returns that is not a candidate id or code is treated as no suggestion.
func (g *GenAISuggester) Suggest(ctx context.Context, req SuggestionRequest) (string, error) {
	if len(req.Candidates) == 0 {
		return "", nil
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	prompt := buildSuggestionPrompt(req)
	var raw string
	operation := func() error {
		text, err := g.generate(ctx, prompt)
		if err != nil {
			return err
		}
		raw = text
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), g.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return "", err
	}
	return ResolveSuggestion(raw, req.Candidates), nil
}

func buildSuggestionPrompt(req SuggestionRequest) string {
	var b strings.Builder
	b.WriteString("You categorize bank transactions for a small business ledger.\n")
	b.WriteString("Choose the single best account for the other side of this transaction from the list below.\n")
	b.WriteString("Reply with JSON only, in the form {\"account_id\": \"<id>\"}. ")
	b.WriteString("If no account fits, reply {\"account_id\": \"\"}. Never invent an account.\n\n")
	fmt.Fprintf(&b, "Transaction: %s\n", req.Description)
	fmt.Fprintf(&b, "Amount: %s %s (negative means money left the account)\n", req.Amount.StringFixed(2), req.Currency)
	if req.RawCategory != "" {
		fmt.Fprintf(&b, "Bank category: %s\n", req.RawCategory)
	}
	b.WriteString("\nAccounts:\n")
	for _, account := range req.Candidates {
		fmt.Fprintf(&b, "- id=%s code=%s name=%q type=%s\n", account.AccountID, account.Code, account.Name, account.Type)
	}
	return b.String()
}

func stripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// ResolveSuggestion maps a model reply onto a candidate account id. The reply may be
// {"account_id": "..."} or a bare id or code; anything unrecognised resolves to "".
func ResolveSuggestion(raw string, candidates []model.Account) string {
	text := stripCodeFences(raw)
	if start := strings.Index(text, "{"); start != -1 {
		if end := strings.LastIndex(text, "}"); end > start {
			var reply struct {
				AccountID string `json:"account_id"`
			}
			if err := json.Unmarshal([]byte(text[start:end+1]), &reply); err == nil {
				text = reply.AccountID
			}
		}
	}
	text = strings.Trim(strings.TrimSpace(text), `"'`)
	if text == "" {
		return ""
	}
	for _, account := range candidates {
		if account.AccountID == text {
			return account.AccountID
		}
	}
	for _, account := range candidates {
		if strings.EqualFold(account.Code, text) {
			return account.AccountID
		}
	}
	return ""
}
