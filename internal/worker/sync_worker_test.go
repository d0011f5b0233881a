package worker

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-rmib/internal/bridge"
	"github.com/stemsi/exstem-rmib/internal/config"
	"github.com/stemsi/exstem-rmib/internal/model"
	"github.com/stemsi/exstem-rmib/internal/rmib"
)

type backendSpy struct {
	saved     []rmib.Snapshot
	submitted []rmib.Snapshot
	err       error
}

func (b *backendSpy) Start(ctx context.Context) (*bridge.StartResult, error) {
	return &bridge.StartResult{}, nil
}

func (b *backendSpy) Load(ctx context.Context, mode rmib.Mode) (*bridge.LoadResult, error) {
	return &bridge.LoadResult{}, nil
}

func (b *backendSpy) Save(ctx context.Context, snap rmib.Snapshot) error {
	if b.err != nil {
		return b.err
	}
	b.saved = append(b.saved, snap)
	return nil
}

func (b *backendSpy) Submit(ctx context.Context, snap rmib.Snapshot) (*bridge.SubmitResult, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.submitted = append(b.submitted, snap)
	return &bridge.SubmitResult{TotalScore: 360}, nil
}

func newTestSyncWorker(spy *backendSpy, asked *[]int) *SyncWorker {
	return NewSyncWorker(nil, func(ctx context.Context, studentID int) (bridge.Store, error) {
		*asked = append(*asked, studentID)
		return spy, nil
	}, zerolog.Nop())
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(raw)
}

func TestForwardProgress(t *testing.T) {
	spy := &backendSpy{}
	var asked []int
	w := newTestSyncWorker(spy, &asked)

	raw := mustJSON(t, model.ProgressJob{StudentID: 7, Mode: "level", Values: map[string]int{"outdoor": 3}})
	if err := w.forward(context.Background(), config.WorkerKey.PersistRMIBProgressQueue, raw); err != nil {
		t.Fatal(err)
	}

	if len(asked) != 1 || asked[0] != 7 {
		t.Errorf("expected store for student 7, got %v", asked)
	}
	if len(spy.saved) != 1 || spy.saved[0].Mode != rmib.ModeLevel || spy.saved[0].Values["outdoor"] != 3 {
		t.Errorf("unexpected saves %+v", spy.saved)
	}
}

func TestForwardResult(t *testing.T) {
	spy := &backendSpy{}
	var asked []int
	w := newTestSyncWorker(spy, &asked)

	raw := mustJSON(t, model.ResultJob{StudentID: 2, Mode: "rank", Values: map[string]int{"outdoor": 1}, TotalScore: 300})
	if err := w.forward(context.Background(), config.WorkerKey.PersistRMIBResultsQueue, raw); err != nil {
		t.Fatal(err)
	}
	if len(spy.submitted) != 1 || spy.submitted[0].Mode != rmib.ModeRank {
		t.Errorf("unexpected submits %+v", spy.submitted)
	}
}

func TestForwardErrorsAndRetry(t *testing.T) {
	var asked []int

	// Malformed payloads are never retried.
	w := newTestSyncWorker(&backendSpy{}, &asked)
	err := w.forward(context.Background(), config.WorkerKey.PersistRMIBProgressQueue, "{")
	if err == nil || retryable(err) {
		t.Errorf("malformed job should fail without retry, got %v", err)
	}
	if err := w.forward(context.Background(), "other", "{}"); err == nil || retryable(err) {
		t.Errorf("unknown queue should fail without retry, got %v", err)
	}

	// Transport failures are retried, rejections are not.
	netErr := &rmib.NetworkError{Op: "save", Status: 503, Err: errors.New("unavailable")}
	w = newTestSyncWorker(&backendSpy{err: netErr}, &asked)
	raw := mustJSON(t, model.ProgressJob{StudentID: 1, Mode: "level", Values: map[string]int{"outdoor": 3}})
	if err := w.forward(context.Background(), config.WorkerKey.PersistRMIBProgressQueue, raw); !retryable(err) {
		t.Errorf("network error should be retried, got %v", err)
	}

	w = newTestSyncWorker(&backendSpy{err: &rmib.DataIntegrityError{Op: "save", Message: "Tes sudah selesai."}}, &asked)
	if err := w.forward(context.Background(), config.WorkerKey.PersistRMIBProgressQueue, raw); retryable(err) {
		t.Errorf("rejection should not be retried, got %v", err)
	}
}

// testRedis connects to REDIS_TEST_URL and flushes that database. Tests are
// skipped without it.
func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatal(err)
	}
	rdb := redis.NewClient(opts)
	t.Cleanup(func() { rdb.Close() })

	if err := rdb.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	return rdb
}

// cancellingStore cancels the worker context while a save is in flight and
// then fails it, the way a shutdown mid-request looks to the worker.
type cancellingStore struct {
	backendSpy
	cancel context.CancelFunc
}

func (c *cancellingStore) Save(ctx context.Context, snap rmib.Snapshot) error {
	c.cancel()
	return &rmib.NetworkError{Op: "save", Err: context.Canceled}
}

func TestFailedJobKeepsQueueOrder(t *testing.T) {
	rdb := testRedis(t)
	ctx := context.Background()
	queue := config.WorkerKey.PersistRMIBProgressQueue

	older := mustJSON(t, model.ProgressJob{StudentID: 1, Mode: "level", Values: map[string]int{"outdoor": 3}})
	newer := mustJSON(t, model.ProgressJob{StudentID: 1, Mode: "level", Values: map[string]int{"outdoor": 9}})
	if err := rdb.RPush(ctx, queue, older, newer).Err(); err != nil {
		t.Fatal(err)
	}

	var asked []int
	w := newTestSyncWorker(&backendSpy{err: &rmib.NetworkError{Op: "save", Status: 503}}, &asked)
	w.rdb = rdb
	w.retryDelay = time.Millisecond

	tests := []struct {
		name string
		run  func()
	}{
		{"process", func() { w.processNext(ctx) }},
		{"drain", func() { w.drain(ctx) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.run()
			got, err := rdb.LRange(ctx, queue, 0, -1).Result()
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 2 || got[0] != older || got[1] != newer {
				t.Errorf("expected [older newer], got %v", got)
			}
		})
	}
}

func TestFailedJobRequeuedAfterCancel(t *testing.T) {
	rdb := testRedis(t)
	queue := config.WorkerKey.PersistRMIBProgressQueue

	raw := mustJSON(t, model.ProgressJob{StudentID: 1, Mode: "level", Values: map[string]int{"outdoor": 3}})
	if err := rdb.RPush(context.Background(), queue, raw).Err(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := &cancellingStore{cancel: cancel}
	w := NewSyncWorker(rdb, func(ctx context.Context, studentID int) (bridge.Store, error) {
		return store, nil
	}, zerolog.Nop())

	w.processNext(ctx)

	got, err := rdb.LRange(context.Background(), queue, 0, -1).Result()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != raw {
		t.Errorf("job should survive a cancelled worker, queue is %v", got)
	}
}
