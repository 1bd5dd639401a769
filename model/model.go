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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GenerateUUIDWithSuffix generates a UUID prefixed with the module name, e.g. "jrn_<uuid>".
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	return fmt.Sprintf("%s_%s", module, id.String())
}

// RoundMoney rounds an amount to the currency scale.
func RoundMoney(amount decimal.Decimal, scale int32) decimal.Decimal {
	return amount.Round(scale)
}

// HasScale reports whether amount carries no more than scale fractional digits.
func HasScale(amount decimal.Decimal, scale int32) bool {
	return amount.Equal(amount.Truncate(scale))
}

// DateOnly strips the clock from t, keeping the calendar day in UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the absolute number of calendar days between a and b.
func DaysBetween(a, b time.Time) int {
	diff := DateOnly(a).Sub(DateOnly(b))
	if diff < 0 {
		diff = -diff
	}
	return int(diff.Hours() / 24)
}

// NormalizeDescription lowercases and collapses whitespace so descriptions can be compared.
func NormalizeDescription(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// ImportHash fingerprints a statement row within its source account. Two rows with the
// same hash are the same bank line seen twice (e.g. overlapping statement exports).
// occurrence numbers identical lines within one file so two genuine same-day coffees
// stay distinct; the first occurrence hashes without it.
func ImportHash(sourceAccountID string, date time.Time, amount decimal.Decimal, description string, occurrence int) string {
	data := fmt.Sprintf("%s|%s|%s|%s", sourceAccountID, DateOnly(date).Format("2006-01-02"), amount.StringFixed(2), NormalizeDescription(description))
	if occurrence > 1 {
		data = fmt.Sprintf("%s|%d", data, occurrence)
	}
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
