package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-rmib/internal/rmib"
)

// Bridge synchronizes a session with a Store. Saves may run concurrently;
// ordering between overlapping saves is decided by arrival at the server.
type Bridge struct {
	store       Store
	log         zerolog.Logger
	saveTimeout time.Duration

	wg sync.WaitGroup
}

// New creates a Bridge. saveTimeout bounds each fire-and-forget save.
func New(store Store, log zerolog.Logger, saveTimeout time.Duration) *Bridge {
	return &Bridge{
		store:       store,
		log:         log.With().Str("component", "bridge").Logger(),
		saveTimeout: saveTimeout,
	}
}

// Start begins or resumes the remote test.
func (b *Bridge) Start(ctx context.Context) (*StartResult, error) {
	res, err := b.store.Start(ctx)
	if err != nil {
		b.log.Error().Err(err).Msg("Start failed")
		return nil, err
	}
	b.log.Info().Str("message", res.Message).Msg("Test started")
	return res, nil
}

// Load fetches stored progress.
func (b *Bridge) Load(ctx context.Context, mode rmib.Mode) (*LoadResult, error) {
	res, err := b.store.Load(ctx, mode)
	if err != nil {
		b.log.Warn().Err(err).Msg("Load failed")
		return nil, err
	}
	if res.Found {
		b.log.Info().
			Int("entries", len(res.Values)).
			Str("saved_at", res.SavedAt).
			Msg("Progress loaded")
	} else {
		b.log.Info().Msg("No saved progress")
	}
	return res, nil
}

// Save stores the snapshot and waits for the answer.
func (b *Bridge) Save(ctx context.Context, snap rmib.Snapshot) error {
	if err := b.store.Save(ctx, snap); err != nil {
		b.log.Warn().Err(err).Int("filled", len(snap.Values)).Msg("Save failed")
		return err
	}
	b.log.Debug().Int("filled", len(snap.Values)).Msg("Progress saved")
	return nil
}

// SaveAsync saves in the background. Failures are logged only; the next
// autosave tick is the retry.
func (b *Bridge) SaveAsync(snap rmib.Snapshot) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), b.saveTimeout)
		defer cancel()
		_ = b.Save(ctx, snap)
	}()
}

// Submit sends the final assignment.
func (b *Bridge) Submit(ctx context.Context, snap rmib.Snapshot) (*SubmitResult, error) {
	res, err := b.store.Submit(ctx, snap)
	if err != nil {
		b.log.Error().Err(err).Msg("Submit failed")
		return nil, err
	}
	b.log.Info().
		Int("total_score", res.TotalScore).
		Str("primary_interest", res.PrimaryInterest).
		Msg("Test submitted")
	return res, nil
}

// Wait blocks until every background save has returned.
func (b *Bridge) Wait() {
	b.wg.Wait()
}
