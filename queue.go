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
	"errors"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/blnkfinance/tally/config"
	"github.com/blnkfinance/tally/internal/apierror"
	redis_db "github.com/blnkfinance/tally/internal/redis-db"
	"github.com/blnkfinance/tally/model"
)

// Queue represents a queue for handling background tasks.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// BatchPayload is the task body for processing an import batch.
type BatchPayload struct {
	BatchID string `json:"batch_id"`
}

// RecurringPayload is the task body for a scheduler handoff.
type RecurringPayload struct {
	TemplateID string             `json:"template_id"`
	Run        model.RecurringRun `json:"run"`
}

// RedisClientOpt builds the asynq connection options from the redis config.
func RedisClientOpt(conf *config.Configuration) (asynq.RedisClientOpt, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("error parsing Redis URL: %w", err)
	}
	return asynq.RedisClientOpt{
		Addr:      redisOption.Addr,
		Password:  redisOption.Password,
		DB:        redisOption.DB,
		TLSConfig: redisOption.TLSConfig,
	}, nil
}

// NewQueue initializes a new Queue instance with the provided configuration.
func NewQueue(conf *config.Configuration) (*Queue, error) {
	queueOptions, err := RedisClientOpt(conf)
	if err != nil {
		return nil, err
	}
	return &Queue{
		Client:    asynq.NewClient(queueOptions),
		Inspector: asynq.NewInspector(queueOptions),
	}, nil
}

func (q *Queue) Close() error {
	if err := q.Inspector.Close(); err != nil {
		return err
	}
	return q.Client.Close()
}

func (q *Queue) enqueue(ctx context.Context, queueName, taskID string, payload interface{}) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	taskOptions := []asynq.Option{asynq.Queue(queueName), asynq.MaxRetry(cfg.Queue.MaxRetry)}
	if taskID != "" {
		taskOptions = append(taskOptions, asynq.TaskID(taskID))
	}
	task := asynq.NewTask(queueName, body, taskOptions...)
	info, err := q.Client.EnqueueContext(ctx, task)
	if err != nil {
		// A task with the same id is already waiting; the work will happen once.
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued %s task %s", queueName, info.ID)
	return nil
}

// QueueBatch schedules matching and categorization for a batch. Queuing the same batch
// twice while the first task is pending is a no-op.
func (q *Queue) QueueBatch(ctx context.Context, batchID string) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}
	return q.enqueue(ctx, cfg.Queue.BatchQueue, "batch:"+batchID, BatchPayload{BatchID: batchID})
}

// QueueRecurringRun hands a due occurrence to the workers.
func (q *Queue) QueueRecurringRun(ctx context.Context, templateID string, run model.RecurringRun) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}
	payload := RecurringPayload{TemplateID: templateID, Run: run}
	return q.enqueue(ctx, cfg.Queue.RecurringQueue, model.RunReference(templateID, run.RunDate), payload)
}

func (q *Queue) enqueueWebhook(ctx context.Context, hook NewWebhook) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}
	return q.enqueue(ctx, cfg.Queue.WebhookQueue, "", hook)
}

// QueueBatch schedules a batch for the workers. Without a queue the batch is processed
// immediately.
func (t *Tally) QueueBatch(ctx context.Context, batchID string) error {
	if t.queue == nil {
		_, err := t.ProcessBatch(ctx, batchID)
		return err
	}
	return t.queue.QueueBatch(ctx, batchID)
}

// QueueRecurringRun schedules a scheduler handoff for the workers.
func (t *Tally) QueueRecurringRun(ctx context.Context, templateID string, run model.RecurringRun) error {
	if t.queue == nil {
		_, err := t.MaterializeRecurringRun(ctx, templateID, run)
		return err
	}
	return t.queue.QueueRecurringRun(ctx, templateID, run)
}

// ProcessBatchTask is the worker handler for batch tasks.
func (t *Tally) ProcessBatchTask(ctx context.Context, task *asynq.Task) error {
	var payload BatchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	_, err := t.ProcessBatch(ctx, payload.BatchID)
	return err
}

// ProcessRecurringTask is the worker handler for recurring runs. A run that was already
// posted, or whose template is paused, is not retried.
func (t *Tally) ProcessRecurringTask(ctx context.Context, task *asynq.Task) error {
	var payload RecurringPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	_, err := t.MaterializeRecurringRun(ctx, payload.TemplateID, payload.Run)
	if err != nil && isTerminal(err) {
		log.Printf(" [*] Recurring run %s not posted: %v", payload.TemplateID, err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

// isTerminal reports whether retrying err can never succeed.
func isTerminal(err error) bool {
	switch apierror.CodeOf(err) {
	case apierror.ErrConflict, apierror.ErrInvalidInput, apierror.ErrBadRequest, apierror.ErrNotFound:
		return true
	}
	return false
}
