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

package apierror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

type ErrorCode string

const (
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrConflict       ErrorCode = "CONFLICT"
	ErrBadRequest     ErrorCode = "BAD_REQUEST"
	ErrInvalidInput   ErrorCode = "INVALID_INPUT"
	ErrInternalServer ErrorCode = "INTERNAL_SERVER_ERROR"
)

// Reason narrows an ErrorCode down to the rule that refused the request.
type Reason string

const (
	ReasonUnbalancedEntry       Reason = "UNBALANCED_ENTRY"
	ReasonAlreadyPosted         Reason = "ALREADY_POSTED"
	ReasonAlreadyRejected       Reason = "ALREADY_REJECTED"
	ReasonMissingCategorization Reason = "MISSING_CATEGORIZATION"
	ReasonInvalidTransition     Reason = "INVALID_TRANSITION"
	ReasonInvalidLine           Reason = "INVALID_LINE"
	ReasonAccountInactive       Reason = "ACCOUNT_INACTIVE"
	ReasonAccountCycle          Reason = "ACCOUNT_CYCLE"
	ReasonTypeImmutable         Reason = "TYPE_IMMUTABLE"
	ReasonStaleState            Reason = "STALE_STATE"
	ReasonEntryNotPosted        Reason = "ENTRY_NOT_POSTED"
	ReasonAlreadyReversed       Reason = "ALREADY_REVERSED"
	ReasonMatchedNotPostable    Reason = "MATCHED_NOT_POSTABLE"
	ReasonMatchTaken            Reason = "MATCH_TAKEN"
	ReasonTemplatePaused        Reason = "TEMPLATE_PAUSED"
	ReasonSourceUnmapped        Reason = "SOURCE_ACCOUNT_UNMAPPED"
)

type APIError struct {
	Code    ErrorCode   `json:"code"`
	Reason  Reason      `json:"reason,omitempty"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Reason, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAPIError(code ErrorCode, message string, details interface{}) APIError {
	logrus.Error(details)
	return APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewValidationError builds a rejection that carries a specific reason code.
// Validation refusals are expected outcomes, so they are logged at warn level.
func NewValidationError(code ErrorCode, reason Reason, message string) APIError {
	logrus.WithField("reason", reason).Warn(message)
	return APIError{
		Code:    code,
		Reason:  reason,
		Message: message,
	}
}

// ReasonOf returns the reason code carried by err, or "" when err is not an APIError.
func ReasonOf(err error) Reason {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr.Reason
	}
	return ""
}

// CodeOf returns the error code carried by err, or "" when err is not an APIError.
func CodeOf(err error) ErrorCode {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

func MapErrorToHTTPStatus(err error) int {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case ErrNotFound:
			return http.StatusNotFound
		case ErrConflict:
			return http.StatusConflict
		case ErrInvalidInput, ErrBadRequest:
			return http.StatusBadRequest
		case ErrInternalServer:
			return http.StatusInternalServerError
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}
