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
	"log"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/blnkfinance/tally/config"
	"github.com/blnkfinance/tally/internal/request"
)

const (
	EventTransactionApproved  = "imported_transaction.approved"
	EventTransactionPosted    = "imported_transaction.posted"
	EventTransactionMatched   = "imported_transaction.matched"
	EventTransactionRejected  = "imported_transaction.rejected"
	EventJournalEntryPosted   = "journal_entry.posted"
	EventJournalEntryReversed = "journal_entry.reversed"
	EventBatchProcessed       = "import_batch.processed"
)

// NewWebhook represents the structure of a webhook notification.
type NewWebhook struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"data"`
}

// publish queues a webhook for event. Nothing is sent when no webhook url is configured,
// and a failure to queue never fails the operation that raised the event.
func (t *Tally) publish(ctx context.Context, event string, payload interface{}) {
	if t.queue == nil {
		return
	}
	cfg, err := config.Fetch()
	if err != nil || cfg.Notification.Webhook.Url == "" {
		return
	}
	if err := t.queue.enqueueWebhook(ctx, NewWebhook{Event: event, Payload: payload}); err != nil {
		logrus.WithError(err).WithField("event", event).Error("failed to queue webhook")
	}
}

// ProcessWebhook delivers a queued webhook to the configured url.
func ProcessWebhook(ctx context.Context, task *asynq.Task) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}
	if conf.Notification.Webhook.Url == "" {
		return nil
	}

	var payload NewWebhook
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		log.Printf("Error unmarshaling task payload: %v", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	log.Printf("Processing webhook: %+v\n", payload.Event)
	return request.PostJSON(ctx, conf.Notification.Webhook.Url, conf.Notification.Webhook.Headers, payload)
}
