package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/hotelbooker-backend/pkg/config"
	"github.com/angelmondragon/hotelbooker-backend/pkg/db/models"
	"github.com/angelmondragon/hotelbooker-backend/pkg/logger"
	"github.com/angelmondragon/hotelbooker-backend/pkg/metrics"
	"github.com/angelmondragon/hotelbooker-backend/pkg/outbox"
)

const (
	defaultBatchSize      = 50
	defaultMaxAttempts    = 10
	defaultPublishTimeout = 15 * time.Second
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

// errNotRetryable marks publish failures that another attempt cannot fix.
var errNotRetryable = errors.New("not retryable")

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	DomainPublisher() *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         dbClient
	PubSub     pubSubClient
	Repository outboxRepository
	Metrics    *metrics.OutboxMetrics
	// Publisher replaces the domain topic publisher.
	Publisher publisher
}

// Service drains the outbox table onto the domain Pub/Sub topic.
type Service struct {
	logg        *logger.Logger
	db          dbClient
	repo        outboxRepository
	pubsub      pubSubClient
	publisher   publisher
	metrics     *metrics.OutboxMetrics
	batchSize   int
	maxAttempts int
	poll        time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	}

	pub := params.Publisher
	if pub == nil {
		pub = newGCPPublisher(params.PubSub.DomainPublisher())
	}
	cfg := params.Config.Outbox
	s := &Service{
		logg:        params.Logger,
		db:          params.DB,
		repo:        params.Repository,
		pubsub:      params.PubSub,
		publisher:   pub,
		metrics:     params.Metrics,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
		poll:        cfg.PollInterval(),
	}
	if s.batchSize <= 0 {
		s.batchSize = defaultBatchSize
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = defaultMaxAttempts
	}
	return s, nil
}

// Run drains the outbox until ctx is cancelled. A full batch is followed
// immediately by the next one; an empty batch waits one poll interval and a
// failed batch backs off exponentially.
func (s *Service) Run(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	if err := s.pubsub.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping: %w", err)
	}

	wait := s.poll
	for ctx.Err() == nil {
		claimed, err := s.drain(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox batch failed", err)
			wait = nextBackoff(wait, s.poll, maxBackoff)
		case claimed > 0:
			wait = s.poll
			continue
		default:
			wait = s.poll
		}
		if err := sleepCtx(ctx, withJitter(wait)); err != nil {
			return err
		}
	}
	s.logg.Info(ctx, "outbox publisher context canceled")
	return ctx.Err()
}

// drain claims one batch and settles every row in it within a single
// transaction. It returns the number of rows claimed.
func (s *Service) drain(ctx context.Context) (int, error) {
	claimed := 0
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim outbox rows: %w", err)
		}
		claimed = len(rows)
		s.metrics.ObserveBatch(claimed)
		for _, row := range rows {
			if err := s.settle(ctx, tx, row); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

// settle publishes one row and records the result on it. Only a failure to
// write that result is returned.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) error {
	rowCtx := s.logg.WithFields(ctx, map[string]any{
		"outbox_id":     row.ID.String(),
		"event_type":    row.EventType,
		"aggregate_id":  row.AggregateID.String(),
		"attempt_count": row.AttemptCount,
	})
	eventType := string(row.EventType)

	envelope, err := outbox.DecodeEnvelope(row.Payload)
	if err == nil {
		rowCtx = s.logg.WithEventID(rowCtx, envelope.EventID)
		err = s.publish(ctx, row, envelope)
	} else {
		err = fmt.Errorf("decode envelope: %w", err)
		err = errors.Join(err, errNotRetryable)
	}

	switch {
	case err == nil:
		if markErr := s.repo.MarkPublishedTx(tx, row.ID); markErr != nil {
			return fmt.Errorf("mark published %s: %w", row.ID, markErr)
		}
		s.metrics.IncDelivery(eventType, metrics.DeliveryPublished)
		s.logg.Info(rowCtx, "outbox event published")
		return nil

	case errors.Is(err, errNotRetryable) || row.AttemptCount+1 >= s.maxAttempts:
		s.logg.Warn(s.logg.WithField(rowCtx, "error", err.Error()), "outbox event parked")
		if markErr := s.repo.MarkTerminalTx(tx, row.ID, err, s.maxAttempts); markErr != nil {
			return fmt.Errorf("mark terminal %s: %w", row.ID, markErr)
		}
		s.metrics.IncDelivery(eventType, metrics.DeliveryTerminal)
		return nil

	default:
		s.logg.Warn(s.logg.WithField(rowCtx, "error", err.Error()), "outbox publish failed, will retry")
		if markErr := s.repo.MarkFailedTx(tx, row.ID, err); markErr != nil {
			return fmt.Errorf("mark failed %s: %w", row.ID, markErr)
		}
		s.metrics.IncDelivery(eventType, metrics.DeliveryRetry)
		return nil
	}
}

func (s *Service) publish(ctx context.Context, row models.OutboxEvent, envelope outbox.PayloadEnvelope) error {
	if s.publisher == nil {
		return fmt.Errorf("domain publisher not configured: %w", errNotRetryable)
	}
	ctx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()

	result := s.publisher.Publish(ctx, &gcppubsub.Message{
		Data: row.Payload,
		Attributes: map[string]string{
			"event_id":       envelope.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"occurred_at":    envelope.OccurredAt.UTC().Format(time.RFC3339Nano),
		},
	})
	if result == nil {
		return fmt.Errorf("publisher returned no result: %w", errNotRetryable)
	}
	_, err := result.Get(ctx)
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, ceiling time.Duration) time.Duration {
	if current < base {
		current = base
	}
	if current*2 > ceiling {
		return ceiling
	}
	return current * 2
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(jitterSource.Int63n(int64(jitterWindow)))
}

type gcpPublisher struct {
	topic *gcppubsub.Publisher
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return gcpPublisher{topic: p}
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.topic.Publish(ctx, msg)
}
