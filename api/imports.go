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

package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/blnkfinance/tally"
)

// maxStatementSize bounds an uploaded statement.
const maxStatementSize = 10 << 20

// ImportStatement accepts a statement either as a multipart "file" field or as the raw request
// body. The hint comes from form fields or query parameters of the same names.
//
// Responses:
// - 400 Bad Request: the file is missing or no dialect can read its header.
// - 201 Created: the import result, including per-row errors.
func (a Api) ImportStatement(c *gin.Context) {
	hint := &tally.ImportHint{
		SourceAccountID:   c.Query("source_account_id"),
		Institution:       c.Query("institution"),
		AccountIdentifier: c.Query("account_identifier"),
		Currency:          c.Query("currency"),
		Dialect:           c.Query("dialect"),
		FileName:          c.Query("file_name"),
	}

	var body io.Reader
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		file, err := header.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		defer file.Close()
		body = file
		if hint.FileName == "" {
			hint.FileName = header.Filename
		}
		for field, target := range map[string]*string{
			"source_account_id":  &hint.SourceAccountID,
			"institution":        &hint.Institution,
			"account_identifier": &hint.AccountIdentifier,
			"currency":           &hint.Currency,
			"dialect":            &hint.Dialect,
		} {
			if value := c.PostForm(field); value != "" {
				*target = value
			}
		}
	} else {
		body = c.Request.Body
	}

	result, err := a.tally.Import(c.Request.Context(), io.LimitReader(body, maxStatementSize), hint)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (a Api) GetImportBatch(c *gin.Context) {
	batch, err := a.tally.GetImportBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

// ProcessImportBatch runs matching and categorization for a batch. With ?async=true the batch
// is queued for the workers instead.
func (a Api) ProcessImportBatch(c *gin.Context) {
	id := c.Param("id")
	if c.Query("async") == "true" {
		if err := a.tally.QueueBatch(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"batch_id": id, "message": "batch queued"})
		return
	}

	summary, err := a.tally.ProcessBatch(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
