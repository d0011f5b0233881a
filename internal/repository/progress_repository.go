package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-rmib/internal/bridge"
	"github.com/stemsi/exstem-rmib/internal/config"
	"github.com/stemsi/exstem-rmib/internal/model"
	"github.com/stemsi/exstem-rmib/internal/rmib"
)

const (
	statusInProgress = "in_progress"
	statusCompleted  = "completed"

	saveMaxRetries = 3
)

// ProgressRepository keeps one student's RMIB progress in Redis and queues
// every save and submit for the sync worker. It satisfies bridge.Store.
type ProgressRepository struct {
	rdb        *redis.Client
	studentID  int
	categories []model.Category
	resultURL  string
	now        func() time.Time
}

// NewProgressRepository creates a repository for one student. resultURL is
// returned as the redirect target after submit.
func NewProgressRepository(rdb *redis.Client, studentID int, categories []model.Category, resultURL string) *ProgressRepository {
	return &ProgressRepository{
		rdb:        rdb,
		studentID:  studentID,
		categories: categories,
		resultURL:  resultURL,
		now:        time.Now,
	}
}

var _ bridge.Store = (*ProgressRepository)(nil)

// Start marks the test in progress. A completed test cannot be restarted.
func (r *ProgressRepository) Start(ctx context.Context) (*bridge.StartResult, error) {
	statusKey := config.CacheKey.RMIBStatusKey(r.studentID)

	status, err := r.rdb.Get(ctx, statusKey).Result()
	if err != nil && err != redis.Nil {
		return nil, &rmib.NetworkError{Op: "start", Err: err}
	}
	if status == statusCompleted {
		return nil, &rmib.DataIntegrityError{Op: "start", Message: "Tes RMIB sudah diselesaikan."}
	}

	pipe := r.rdb.Pipeline()
	pipe.SetNX(ctx, statusKey, statusInProgress, 0)
	exists := pipe.Exists(ctx, config.CacheKey.RMIBProgressKey(r.studentID))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, &rmib.NetworkError{Op: "start", Err: err}
	}

	has := exists.Val() > 0
	return &bridge.StartResult{Message: "Tes RMIB dimulai.", HasProgress: &has}, nil
}

// Load reads the progress hash. Non-numeric fields are an integrity error.
func (r *ProgressRepository) Load(ctx context.Context, mode rmib.Mode) (*bridge.LoadResult, error) {
	pipe := r.rdb.Pipeline()
	fields := pipe.HGetAll(ctx, config.CacheKey.RMIBProgressKey(r.studentID))
	savedAt := pipe.Get(ctx, config.CacheKey.RMIBSavedAtKey(r.studentID))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, &rmib.NetworkError{Op: "load", Err: err}
	}

	raw := fields.Val()
	if len(raw) == 0 {
		return &bridge.LoadResult{Found: false}, nil
	}

	values := make(map[string]int, len(raw))
	for k, v := range raw {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, &rmib.DataIntegrityError{Op: "load", Message: fmt.Sprintf("Nilai tersimpan untuk %s tidak valid.", k)}
		}
		values[k] = n
	}

	return &bridge.LoadResult{Values: values, Found: true, SavedAt: savedAt.Val()}, nil
}

// Save replaces the progress hash and queues the snapshot. A completed test
// refuses further saves.
func (r *ProgressRepository) Save(ctx context.Context, snap rmib.Snapshot) error {
	savedAt := r.now().UTC().Format(time.RFC3339)
	job, err := json.Marshal(model.ProgressJob{
		StudentID: r.studentID,
		Mode:      string(snap.Mode),
		Values:    snap.Values,
		SavedAt:   savedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal progress job: %w", err)
	}

	progressKey := config.CacheKey.RMIBProgressKey(r.studentID)
	statusKey := config.CacheKey.RMIBStatusKey(r.studentID)

	// The status is watched so a save racing a submit cannot land after the
	// test was closed.
	txf := func(tx *redis.Tx) error {
		status, err := tx.Get(ctx, statusKey).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		if status == statusCompleted {
			return &rmib.DataIntegrityError{Op: "save", Message: "Tes RMIB sudah diselesaikan."}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, progressKey)
			if len(snap.Values) > 0 {
				fields := make(map[string]interface{}, len(snap.Values))
				for k, v := range snap.Values {
					fields[k] = v
				}
				pipe.HSet(ctx, progressKey, fields)
			}
			pipe.Set(ctx, config.CacheKey.RMIBSavedAtKey(r.studentID), savedAt, 0)
			pipe.RPush(ctx, config.WorkerKey.PersistRMIBProgressQueue, job)
			return nil
		})
		return err
	}

	for range saveMaxRetries {
		err = r.rdb.Watch(ctx, txf, statusKey)
		if err != redis.TxFailedErr {
			break
		}
	}

	var die *rmib.DataIntegrityError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &die):
		return err
	default:
		return &rmib.NetworkError{Op: "save", Err: err}
	}
}

// Submit scores the final assignment, closes the test and queues the result.
func (r *ProgressRepository) Submit(ctx context.Context, snap rmib.Snapshot) (*bridge.SubmitResult, error) {
	if err := rmib.NewValidator(snap.Mode, r.categories).Final(snap.Values); err != nil {
		var ve *rmib.ValidationError
		if errors.As(err, &ve) {
			return nil, &rmib.DataIntegrityError{Op: "submit", Message: ve.Error()}
		}
		return nil, err
	}

	summary := rmib.NewScorer(snap.Mode, r.categories).Summarize(snap.Values)
	res := &bridge.SubmitResult{
		TotalScore:  summary.Total,
		RedirectURL: r.resultURL,
		Message:     "Tes RMIB berhasil diselesaikan.",
	}
	if primary, ok := summary.Primary(); ok {
		res.PrimaryInterest = primary.Category
		res.PrimaryLevel = primary.Value
	}

	job, err := json.Marshal(model.ResultJob{
		StudentID:       r.studentID,
		Mode:            string(snap.Mode),
		Values:          snap.Values,
		TotalScore:      res.TotalScore,
		PrimaryInterest: res.PrimaryInterest,
		PrimaryLevel:    res.PrimaryLevel,
		SubmittedAt:     r.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal result job: %w", err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, config.CacheKey.RMIBStatusKey(r.studentID), statusCompleted, 0)
	pipe.RPush(ctx, config.WorkerKey.PersistRMIBResultsQueue, job)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, &rmib.NetworkError{Op: "submit", Err: err}
	}

	return res, nil
}
