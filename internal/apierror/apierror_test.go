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

package apierror_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/blnkfinance/tally/internal/apierror"
)

func TestErrorString(t *testing.T) {
	plain := apierror.NewAPIError(apierror.ErrNotFound, "account acct_1 not found", nil)
	assert.Equal(t, "NOT_FOUND: account acct_1 not found", plain.Error())
	assert.Empty(t, plain.Reason)

	refused := apierror.NewValidationError(apierror.ErrInvalidInput, apierror.ReasonUnbalancedEntry, "debits 100.00, credits 90.00")
	assert.Equal(t, "INVALID_INPUT (UNBALANCED_ENTRY): debits 100.00, credits 90.00", refused.Error())
	assert.Nil(t, refused.Details)
}

// Each refusal the engine raises maps to the status the API answers with.
func TestRefusalStatuses(t *testing.T) {
	tests := []struct {
		code   apierror.ErrorCode
		reason apierror.Reason
		want   int
	}{
		{apierror.ErrInvalidInput, apierror.ReasonUnbalancedEntry, http.StatusBadRequest},
		{apierror.ErrInvalidInput, apierror.ReasonInvalidLine, http.StatusBadRequest},
		{apierror.ErrInvalidInput, apierror.ReasonAccountInactive, http.StatusBadRequest},
		{apierror.ErrInvalidInput, apierror.ReasonAccountCycle, http.StatusBadRequest},
		{apierror.ErrInvalidInput, apierror.ReasonMissingCategorization, http.StatusBadRequest},
		{apierror.ErrInvalidInput, apierror.ReasonSourceUnmapped, http.StatusBadRequest},
		{apierror.ErrConflict, apierror.ReasonAlreadyPosted, http.StatusConflict},
		{apierror.ErrConflict, apierror.ReasonAlreadyRejected, http.StatusConflict},
		{apierror.ErrConflict, apierror.ReasonInvalidTransition, http.StatusConflict},
		{apierror.ErrConflict, apierror.ReasonStaleState, http.StatusConflict},
		{apierror.ErrConflict, apierror.ReasonAlreadyReversed, http.StatusConflict},
		{apierror.ErrConflict, apierror.ReasonTemplatePaused, http.StatusConflict},
		{apierror.ErrConflict, apierror.ReasonMatchTaken, http.StatusConflict},
		{apierror.ErrConflict, apierror.ReasonTypeImmutable, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			err := fmt.Errorf("handling request: %w", apierror.NewValidationError(tt.code, tt.reason, "refused"))
			assert.Equal(t, tt.want, apierror.MapErrorToHTTPStatus(err))
			assert.Equal(t, tt.reason, apierror.ReasonOf(err))
			assert.Equal(t, tt.code, apierror.CodeOf(err))
		})
	}
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", apierror.NewAPIError(apierror.ErrNotFound, "batch not found", nil), http.StatusNotFound},
		{"bad request", apierror.NewAPIError(apierror.ErrBadRequest, "no dialect matched", nil), http.StatusBadRequest},
		{"internal", apierror.NewAPIError(apierror.ErrInternalServer, "database error", errors.New("conn reset")), http.StatusInternalServerError},
		{"unknown code", apierror.APIError{Code: "TEAPOT"}, http.StatusInternalServerError},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apierror.MapErrorToHTTPStatus(tt.err))
		})
	}
}

func TestReasonOfNonAPIErrors(t *testing.T) {
	assert.Equal(t, apierror.Reason(""), apierror.ReasonOf(errors.New("plain")))
	assert.Equal(t, apierror.Reason(""), apierror.ReasonOf(nil))
	assert.Equal(t, apierror.ErrorCode(""), apierror.CodeOf(nil))
}
