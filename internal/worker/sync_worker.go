package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-rmib/internal/bridge"
	"github.com/stemsi/exstem-rmib/internal/config"
	"github.com/stemsi/exstem-rmib/internal/model"
	"github.com/stemsi/exstem-rmib/internal/rmib"
)

const (
	SyncPollTimeout = 1 * time.Second
	SyncRetryDelay  = 5 * time.Second
)

// StoreFactory returns the backend store for one student.
type StoreFactory func(ctx context.Context, studentID int) (bridge.Store, error)

// SyncWorker consumes the RMIB progress and results queues and forwards each
// job to the school backend.
type SyncWorker struct {
	rdb        *redis.Client
	storeFor   StoreFactory
	retryDelay time.Duration
	log        zerolog.Logger
}

// NewSyncWorker creates a new SyncWorker.
func NewSyncWorker(rdb *redis.Client, storeFor StoreFactory, log zerolog.Logger) *SyncWorker {
	return &SyncWorker{
		rdb:        rdb,
		storeFor:   storeFor,
		retryDelay: SyncRetryDelay,
		log:        log.With().Str("component", "sync_worker").Logger(),
	}
}

func (w *SyncWorker) queues() []string {
	return []string{config.WorkerKey.PersistRMIBResultsQueue, config.WorkerKey.PersistRMIBProgressQueue}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *SyncWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *SyncWorker) processNext(ctx context.Context) {
	// Results first: BLPop checks keys in order.
	result, err := w.rdb.BLPop(ctx, SyncPollTimeout, w.queues()...).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	queue, raw := result[0], result[1]
	if err := w.forward(ctx, queue, raw); err != nil {
		if !retryable(err) {
			w.log.Error().Err(err).Str("queue", queue).Msg("Backend rejected job, dropping")
			return
		}
		w.log.Error().Err(err).
			Str("queue", queue).
			Dur("retry_in", w.retryDelay).
			Msg("Forward error, retrying")
		w.requeue(queue, raw)
		select {
		case <-time.After(w.retryDelay):
		case <-ctx.Done():
		}
	}
}

func (w *SyncWorker) forward(ctx context.Context, queue, raw string) error {
	switch queue {
	case config.WorkerKey.PersistRMIBProgressQueue:
		var job model.ProgressJob
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			return &rmib.DataIntegrityError{Op: "sync", Message: fmt.Sprintf("unmarshal progress job: %v", err)}
		}
		store, err := w.storeFor(ctx, job.StudentID)
		if err != nil {
			return err
		}
		snap := rmib.Snapshot{Mode: rmib.Mode(job.Mode), Values: job.Values}
		if err := store.Save(ctx, snap); err != nil {
			return err
		}
		w.log.Debug().Int("student_id", job.StudentID).Int("filled", len(job.Values)).Msg("Progress forwarded")
		return nil

	case config.WorkerKey.PersistRMIBResultsQueue:
		var job model.ResultJob
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			return &rmib.DataIntegrityError{Op: "sync", Message: fmt.Sprintf("unmarshal result job: %v", err)}
		}
		store, err := w.storeFor(ctx, job.StudentID)
		if err != nil {
			return err
		}
		res, err := store.Submit(ctx, rmib.Snapshot{Mode: rmib.Mode(job.Mode), Values: job.Values})
		if err != nil {
			return err
		}
		if res.TotalScore != job.TotalScore {
			w.log.Warn().
				Int("student_id", job.StudentID).
				Int("local_total", job.TotalScore).
				Int("backend_total", res.TotalScore).
				Msg("Backend score differs from kiosk score")
		}
		w.log.Info().Int("student_id", job.StudentID).Int("total_score", res.TotalScore).Msg("Result forwarded")
		return nil
	}

	return &rmib.DataIntegrityError{Op: "sync", Message: "unknown queue " + queue}
}

// requeue puts a failed job back at the head of its queue so later snapshots
// of the same student are not forwarded before it. It must succeed even when
// the worker context is already cancelled.
func (w *SyncWorker) requeue(queue, raw string) {
	ctx, cancel := context.WithTimeout(context.Background(), SyncPollTimeout)
	defer cancel()
	if err := w.rdb.LPush(ctx, queue, raw).Err(); err != nil {
		w.log.Error().Err(err).Str("queue", queue).Msg("Requeue failed, job lost")
	}
}

// retryable reports whether a failed job should go back on its queue.
// Anything the backend actively rejected is final.
func retryable(err error) bool {
	var die *rmib.DataIntegrityError
	return !errors.As(err, &die)
}

// drain forwards all remaining items before shutdown.
func (w *SyncWorker) drain(ctx context.Context) {
	drained := 0
	for _, queue := range w.queues() {
		for {
			raw, err := w.rdb.LPop(ctx, queue).Result()
			if err != nil {
				break
			}
			if err := w.forward(ctx, queue, raw); err != nil {
				w.log.Error().Err(err).Str("queue", queue).Msg("Drain forward error")
				if retryable(err) {
					w.requeue(queue, raw)
					return
				}
				continue
			}
			drained++
		}
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
