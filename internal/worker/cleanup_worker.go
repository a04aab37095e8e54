package worker

import (
	"OceanBooks/config"
	"OceanBooks/internal/logger"
	"OceanBooks/internal/mq"
	"OceanBooks/internal/storage"
	"OceanBooks/internal/task"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type dlqMessage struct {
	BookID   uint64    `json:"book_id"`
	Paths    []string  `json:"paths"`
	Attempt  int       `json:"attempt"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

type retryPublisher interface {
	PublishRetry(ctx context.Context, body []byte, delay time.Duration) error
	PublishDLQ(ctx context.Context, body []byte) error
}

// CleanupWorker removes the blobs of deleted books.
type CleanupWorker struct {
	blobs       storage.Store
	publisher   retryPublisher
	limiter     *rate.Limiter
	retryMax    int
	retryDelays []time.Duration
	log         *zap.Logger
}

func NewCleanupWorker(cfg config.Config, blobs storage.Store, publisher retryPublisher, log *zap.Logger) *CleanupWorker {
	if log == nil {
		log = logger.L()
	}
	burst := cfg.CleanupBurst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Inf, burst)
	if cfg.CleanupRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.CleanupRate), burst)
	}
	retryMax := cfg.CleanupRetryMax
	if retryMax < 0 {
		retryMax = 0
	}
	return &CleanupWorker{
		blobs:       blobs,
		publisher:   publisher,
		limiter:     limiter,
		retryMax:    retryMax,
		retryDelays: cfg.CleanupRetryDelays,
		log:         log,
	}
}

// RunCleanupWorker consumes cleanup messages until ctx is done.
func RunCleanupWorker(ctx context.Context, cfg config.Config, blobs storage.Store, log *zap.Logger) error {
	client, err := mq.Dial(cfg.RabbitMQURL)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.DeclareTopology(); err != nil {
		return err
	}

	prefetch := cfg.RabbitMQPrefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := client.Channel.Qos(prefetch, 0, false); err != nil {
		return err
	}

	deliveries, err := client.Channel.Consume(mq.QueueTasks, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	w := NewCleanupWorker(cfg, blobs, client, log)
	concurrency := cfg.CleanupWorkerConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)

	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("cleanup worker: delivery channel closed")
			}
			sem <- struct{}{}
			go func(d amqp.Delivery) {
				defer func() { <-sem }()
				w.Handle(ctx, d)
			}(delivery)
		}
	}
}

// Handle processes one delivery and acks, retries or dead-letters it.
func (w *CleanupWorker) Handle(ctx context.Context, delivery amqp.Delivery) {
	var msg task.CleanupMessage
	if err := json.Unmarshal(delivery.Body, &msg); err != nil {
		w.log.Warn("cleanup worker: invalid message", zap.Error(err))
		_ = delivery.Ack(false)
		return
	}

	if err := w.limiter.Wait(ctx); err != nil {
		_ = delivery.Nack(false, true)
		return
	}

	if err := w.Process(ctx, msg); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			_ = delivery.Nack(false, true)
			return
		}
		if err := w.scheduleRetry(ctx, msg, err); err != nil {
			w.log.Error("cleanup worker: retry schedule failed", zap.Uint64("book_id", msg.BookID), zap.Error(err))
			_ = delivery.Nack(false, true)
			return
		}
	}

	_ = delivery.Ack(false)
}

// Process removes every path of msg. Missing blobs count as removed.
func (w *CleanupWorker) Process(ctx context.Context, msg task.CleanupMessage) error {
	var errs []error
	for _, p := range msg.Paths {
		if p == "" {
			continue
		}
		if err := w.blobs.Remove(ctx, p); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			errs = append(errs, fmt.Errorf("remove %s: %w", p, err))
			continue
		}
		w.log.Info("blob removed", zap.Uint64("book_id", msg.BookID), zap.String("path", p))
	}
	return errors.Join(errs...)
}

func (w *CleanupWorker) scheduleRetry(ctx context.Context, msg task.CleanupMessage, procErr error) error {
	nextAttempt := msg.Attempt + 1
	if w.retryMax == 0 || nextAttempt > w.retryMax {
		return w.deadLetter(ctx, msg, procErr)
	}
	delay := pickRetryDelay(nextAttempt, w.retryDelays)
	w.log.Warn("cleanup worker: retrying",
		zap.Uint64("book_id", msg.BookID),
		zap.Int("attempt", nextAttempt),
		zap.Duration("delay", delay),
		zap.Error(procErr),
	)
	msg.Attempt = nextAttempt
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return w.publisher.PublishRetry(ctx, body, delay)
}

func (w *CleanupWorker) deadLetter(ctx context.Context, msg task.CleanupMessage, procErr error) error {
	body, err := json.Marshal(dlqMessage{
		BookID:   msg.BookID,
		Paths:    msg.Paths,
		Attempt:  msg.Attempt,
		Error:    procErr.Error(),
		FailedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	w.log.Error("cleanup worker: giving up", zap.Uint64("book_id", msg.BookID), zap.Error(procErr))
	if err := w.publisher.PublishDLQ(ctx, body); err != nil {
		w.log.Error("cleanup worker: dlq publish failed", zap.Error(err))
	}
	return nil
}

func pickRetryDelay(attempt int, delays []time.Duration) time.Duration {
	if len(delays) == 0 {
		return 0
	}
	index := attempt - 1
	if index < 0 {
		index = 0
	}
	if index >= len(delays) {
		return delays[len(delays)-1]
	}
	return delays[index]
}
