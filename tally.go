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
	"embed"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/blnkfinance/tally/config"
	"github.com/blnkfinance/tally/database"
	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/internal/cache"
	redis_db "github.com/blnkfinance/tally/internal/redis-db"
)

var tracer = otel.Tracer("Tally")

// Tally is the ingestion, reconciliation and posting engine.
type Tally struct {
	datasource database.IDataSource
	queue      *Queue
	redis      redis.UniversalClient
	cache      cache.Cache
	suggester  Suggester
	archiver   Archiver
	dialects   []Dialect
}

//go:embed sql/*.sql
var SQLFiles embed.FS

// NewTally wires the engine to its datasource and to the redis-backed queue, cache and lock.
// The AI suggester and S3 archiver are only enabled when configured.
func NewTally(db database.IDataSource) (*Tally, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient(configuration.Redis.Dns, configuration.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}

	suggester, err := NewSuggester(context.Background(), configuration.Categorization)
	if err != nil {
		return nil, err
	}

	archiver, err := NewArchiver(configuration.Archive)
	if err != nil {
		return nil, err
	}

	newQueue, err := NewQueue(configuration)
	if err != nil {
		return nil, err
	}

	opts := []Option{WithRedis(redisClient.Client()), WithQueue(newQueue), WithSuggester(suggester)}
	if archiver != nil {
		opts = append(opts, WithArchiver(archiver))
	}
	return New(db, opts...), nil
}

// Option configures an engine built with New.
type Option func(*Tally)

// WithRedis enables the batch lock and the chart cache.
func WithRedis(client redis.UniversalClient) Option {
	return func(t *Tally) {
		t.redis = client
		t.cache = cache.NewCache(client)
	}
}

func WithQueue(q *Queue) Option {
	return func(t *Tally) { t.queue = q }
}

func WithSuggester(s Suggester) Option {
	return func(t *Tally) { t.suggester = s }
}

func WithArchiver(a Archiver) Option {
	return func(t *Tally) { t.archiver = a }
}

// New builds an engine from explicit parts. Without a queue, batches and recurring runs are
// processed in the calling goroutine.
func New(db database.IDataSource, opts ...Option) *Tally {
	t := &Tally{datasource: db}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RegisterDialects adds institution dialects that are tried before the built-in ones.
func (t *Tally) RegisterDialects(dialects ...Dialect) {
	t.dialects = append(t.dialects, dialects...)
}

// SetSuggester replaces the AI categorization collaborator.
func (t *Tally) SetSuggester(s Suggester) {
	t.suggester = s
}

func logAndRecordError(span trace.Span, msg string, err error) error {
	span.RecordError(err)
	logrus.WithError(err).Error(msg)
	return err
}

func invalidInput(reason apierror.Reason, format string, args ...interface{}) error {
	return apierror.NewValidationError(apierror.ErrInvalidInput, reason, fmt.Sprintf(format, args...))
}

func conflict(reason apierror.Reason, format string, args ...interface{}) error {
	return apierror.NewValidationError(apierror.ErrConflict, reason, fmt.Sprintf(format, args...))
}
