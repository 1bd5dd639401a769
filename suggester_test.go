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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blnkfinance/tally/config"
)

func TestResolveSuggestion(t *testing.T) {
	candidates := NewChartSnapshot(testChart()).ActiveAccounts()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"json reply", `{"account_id": "acct_6100"}`, "acct_6100"},
		{"fenced json", "```json\n{\"account_id\": \"acct_6200\"}\n```", "acct_6200"},
		{"json with chatter", `Sure! {"account_id":"acct_4000"} hope that helps`, "acct_4000"},
		{"bare id", "acct_6100\n", "acct_6100"},
		{"bare code", `"6200"`, "acct_6200"},
		{"code in json", `{"account_id": "6100"}`, "acct_6100"},
		{"empty answer", `{"account_id": ""}`, ""},
		{"invented account", `{"account_id": "acct_7777"}`, ""},
		{"prose", "Office supplies, probably", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveSuggestion(tt.raw, candidates))
		})
	}
}

func suggestionRequest() SuggestionRequest {
	return SuggestionRequest{
		Description: "STAPLES #1234",
		RawCategory: "Shopping",
		Amount:      money("-50.00"),
		Currency:    "USD",
		Candidates:  NewChartSnapshot(testChart()).ActiveAccounts(),
	}
}

func TestGenAISuggesterRetriesThenSucceeds(t *testing.T) {
	var attempts int
	var prompt string
	generate := func(_ context.Context, p string) (string, error) {
		attempts++
		prompt = p
		if attempts == 1 {
			return "", errors.New("503 unavailable")
		}
		return `{"account_id": "acct_6100"}`, nil
	}

	accountID, err := newGenAISuggester(generate, 5*time.Second, 2).Suggest(context.Background(), suggestionRequest())
	require.NoError(t, err)
	assert.Equal(t, "acct_6100", accountID)
	assert.Equal(t, 2, attempts)

	assert.Contains(t, prompt, "STAPLES #1234")
	assert.Contains(t, prompt, "-50.00 USD")
	assert.Contains(t, prompt, "Bank category: Shopping")
	assert.Contains(t, prompt, "id=acct_6100 code=6100")
	assert.Contains(t, prompt, "id=acct_1000 code=1000")
}

func TestGenAISuggesterGivesUp(t *testing.T) {
	var attempts int
	generate := func(context.Context, string) (string, error) {
		attempts++
		return "", errors.New("quota exceeded")
	}

	accountID, err := newGenAISuggester(generate, 5*time.Second, 1).Suggest(context.Background(), suggestionRequest())
	require.Error(t, err)
	assert.Empty(t, accountID)
	assert.Equal(t, 2, attempts)
}

func TestGenAISuggesterWithoutCandidates(t *testing.T) {
	generate := func(context.Context, string) (string, error) {
		t.Fatal("model must not be called without candidates")
		return "", nil
	}
	accountID, err := newGenAISuggester(generate, time.Second, 0).Suggest(context.Background(), SuggestionRequest{Description: "x"})
	require.NoError(t, err)
	assert.Empty(t, accountID)
}

func TestNewSuggester(t *testing.T) {
	s, err := NewSuggester(context.Background(), config.CategorizationConfig{})
	require.NoError(t, err)
	assert.IsType(t, NoopSuggester{}, s)

	_, err = NewSuggester(context.Background(), config.CategorizationConfig{Provider: "oracle"})
	assert.Error(t, err)

	_, err = NewSuggester(context.Background(), config.CategorizationConfig{Provider: "gemini"})
	assert.ErrorContains(t, err, "api key")
}
