package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-rmib/internal/bridge"
	"github.com/stemsi/exstem-rmib/internal/rmib"
	"github.com/stemsi/exstem-rmib/internal/worker"
)

// SessionService drives one RMIB test: it applies user actions to the session,
// keeps the progress store in sync and tells the presenter what to draw.
type SessionService struct {
	session   *rmib.Session
	scorer    *rmib.Scorer
	bridge    *bridge.Bridge
	autosave  *worker.AutosaveWorker
	presenter rmib.Presenter
	rng       *rand.Rand
	log       zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// startMu serializes Start so concurrent callers cannot both load.
	startMu sync.Mutex

	mu     sync.Mutex
	result *bridge.SubmitResult
}

// SessionOptions tunes a SessionService. Zero values are fine.
type SessionOptions struct {
	AutosaveInterval time.Duration
	SaveTimeout      time.Duration
	NewTicker        worker.TickerFunc
	Rand             *rand.Rand
}

// NewSessionService creates a new SessionService. A nil presenter discards output.
func NewSessionService(
	session *rmib.Session,
	store bridge.Store,
	presenter rmib.Presenter,
	opts SessionOptions,
	log zerolog.Logger,
) *SessionService {
	if presenter == nil {
		presenter = nopPresenter{}
	}
	if opts.AutosaveInterval <= 0 {
		opts.AutosaveInterval = 30 * time.Second
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = 15 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	log = log.With().Str("session_id", session.ID().String()).Str("mode", string(session.Mode())).Logger()

	s := &SessionService{
		session:   session,
		scorer:    rmib.NewScorer(session.Mode(), session.Categories()),
		bridge:    bridge.New(store, log, opts.SaveTimeout),
		presenter: presenter,
		rng:       opts.Rand,
		log:       log.With().Str("component", "session_service").Logger(),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.autosave = worker.NewAutosaveWorker(session, s.bridge.SaveAsync, opts.AutosaveInterval, opts.NewTicker, log)
	return s
}

// Session exposes the underlying session for read-only use.
func (s *SessionService) Session() *rmib.Session { return s.session }

// View returns the current render state.
func (s *SessionService) View() rmib.View {
	return rmib.BuildView(s.session, s.scorer)
}

// Result returns the submit outcome, or nil before a successful submit.
func (s *SessionService) Result() *bridge.SubmitResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// NextAutosave returns the time left until the next autosave.
func (s *SessionService) NextAutosave() time.Duration {
	return s.autosave.NextTick()
}

// Summary scores the current assignment.
func (s *SessionService) Summary() rmib.Summary {
	return s.scorer.Summarize(s.session.Values())
}

// ─── Lifecycle ─────────────────────────────────────────────────────────

// Start begins the test on the backend, restores saved progress when there
// is any and activates the session. Calling it on an active session only
// redraws.
func (s *SessionService) Start(ctx context.Context) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	switch st := s.session.State(); st {
	case rmib.StateActive:
		s.render()
		return nil
	case rmib.StateNotStarted:
	default:
		return s.reject(fmt.Errorf("start in state %s", st), stateErr(st))
	}

	started, err := s.bridge.Start(ctx)
	if err != nil {
		s.notifyErr("Gagal memulai tes", err)
		return err
	}

	resumed := s.restore(ctx, started.HasProgress)

	if err := s.session.Activate(); err != nil {
		return err
	}
	s.autosave.Start(s.ctx)
	s.render()

	if resumed {
		s.notify(rmib.NoticeInfo, "Progres dimuat", "Jawaban yang tersimpan sebelumnya telah dimuat.")
	} else {
		s.notify(rmib.NoticeSuccess, "Tes dimulai", started.Message)
	}
	return nil
}

// restore loads stored progress into the session. Any failure falls back to
// the default assignment; the test must stay usable.
func (s *SessionService) restore(ctx context.Context, hint *bool) bool {
	if hint == nil || *hint {
		loaded, err := s.bridge.Load(ctx, s.session.Mode())
		switch {
		case err != nil:
			s.notify(rmib.NoticeWarning, "Progres tidak dapat dimuat", "Memulai dengan jawaban baru.")
		case loaded.Found:
			err := s.session.Replace(loaded.Values)
			if err == nil {
				return true
			}
			s.log.Warn().Err(err).Msg("Stored progress rejected")
			s.notify(rmib.NoticeWarning, "Data tersimpan tidak valid", "Memulai dengan jawaban baru.")
		}
	}

	if err := s.session.InitializeEmpty(s.rng); err != nil {
		s.log.Error().Err(err).Msg("Initialize failed")
	}
	return false
}

// Close stops autosave and waits for in-flight saves.
func (s *SessionService) Close() {
	s.autosave.Stop()
	s.cancel()
	s.bridge.Wait()
}

// ─── Edits ─────────────────────────────────────────────────────────────

// SetValue assigns a value to one category.
func (s *SessionService) SetValue(key string, value int) error {
	return s.edit(s.session.SetValue(key, value))
}

// Unset empties one category.
func (s *SessionService) Unset(key string) error {
	return s.edit(s.session.Unset(key))
}

// MoveRank moves the entry at position from to position to (0-based).
func (s *SessionService) MoveRank(from, to int) error {
	return s.edit(s.session.MoveRank(from, to))
}

// Clear empties every category.
func (s *SessionService) Clear() error {
	return s.edit(s.session.Clear())
}

// edit redraws after every attempted edit so a rejected input snaps back.
func (s *SessionService) edit(err error) error {
	if err != nil {
		s.notifyErr("Perubahan ditolak", err)
	}
	s.render()
	return err
}

// ─── Persistence ───────────────────────────────────────────────────────

// SaveNow saves immediately and reports the outcome.
func (s *SessionService) SaveNow(ctx context.Context) error {
	if st := s.session.State(); st != rmib.StateActive {
		return s.reject(fmt.Errorf("save in state %s", st), stateErr(st))
	}

	snap := s.session.Snapshot()
	if len(snap.Values) == 0 {
		s.notify(rmib.NoticeInfo, "Belum ada jawaban", "Belum ada jawaban untuk disimpan.")
		return nil
	}
	if err := s.bridge.Save(ctx, snap); err != nil {
		s.notifyErr("Gagal menyimpan", err)
		return err
	}
	s.notify(rmib.NoticeSuccess, "Tersimpan", "Progres berhasil disimpan.")
	return nil
}

// Submit validates the assignment and sends it for scoring. A failed submit
// returns the session to active with every value intact.
func (s *SessionService) Submit(ctx context.Context) (*bridge.SubmitResult, error) {
	if st := s.session.State(); st != rmib.StateActive {
		return nil, s.reject(fmt.Errorf("submit in state %s", st), stateErr(st))
	}
	snap, err := s.session.BeginSubmit()
	if err != nil {
		var ve *rmib.ValidationError
		if errors.As(err, &ve) {
			s.notifyErr("Jawaban belum lengkap", err)
		} else {
			s.notifyErr("Tidak dapat mengirim", err)
		}
		s.render()
		return nil, err
	}
	s.render()

	res, err := s.bridge.Submit(ctx, snap)
	if err != nil {
		s.session.FinishSubmit(false)
		s.notifyErr("Gagal mengirim jawaban", err)
		s.render()
		return nil, err
	}

	s.autosave.Stop()
	s.session.FinishSubmit(true)

	s.mu.Lock()
	s.result = res
	s.mu.Unlock()

	s.checkResult(snap, res)
	s.render()

	msg := res.Message
	if msg == "" {
		msg = fmt.Sprintf("Total skor: %d", res.TotalScore)
	}
	s.notify(rmib.NoticeSuccess, "Tes selesai", msg)
	return res, nil
}

// checkResult logs when the backend's scoring disagrees with the local one.
func (s *SessionService) checkResult(snap rmib.Snapshot, res *bridge.SubmitResult) {
	local := s.scorer.Summarize(snap.Values)
	primary, _ := local.Primary()

	if local.Total != res.TotalScore || (res.PrimaryInterest != "" && primary.Category != res.PrimaryInterest) {
		s.log.Warn().
			Int("local_total", local.Total).
			Int("server_total", res.TotalScore).
			Str("local_primary", primary.Category).
			Str("server_primary", res.PrimaryInterest).
			Msg("Server score differs from local score")
	}
}

// UnloadGuard reports whether leaving now would abandon a partly filled test.
func (s *SessionService) UnloadGuard() bool {
	if s.session.State() == rmib.StateTerminal {
		return false
	}
	filled := s.session.FilledCount()
	return filled > 0 && filled < len(s.session.Categories())
}

// ─── Presentation ──────────────────────────────────────────────────────

// Render redraws the current view.
func (s *SessionService) Render() { s.render() }

func (s *SessionService) render() {
	s.presenter.Render(s.View())
}

func (s *SessionService) notify(level rmib.NoticeLevel, title, message string) {
	s.presenter.Notify(rmib.Notice{Level: level, Title: title, Message: message})
}

// notifyErr maps an error to a notice: validation problems are warnings,
// everything else is an error.
func (s *SessionService) notifyErr(title string, err error) {
	var ve *rmib.ValidationError
	if errors.As(err, &ve) {
		s.notify(rmib.NoticeWarning, title, ve.Error())
		return
	}

	var ne *rmib.NetworkError
	if errors.As(err, &ne) {
		s.notify(rmib.NoticeError, title, "Koneksi ke server gagal. Periksa jaringan dan coba lagi.")
		return
	}

	s.notify(rmib.NoticeError, title, err.Error())
}

func (s *SessionService) reject(cause, err error) error {
	s.log.Debug().Err(cause).Msg("Action rejected")
	s.notifyErr("Tidak dapat diproses", err)
	return err
}

func stateErr(st rmib.State) error {
	switch st {
	case rmib.StateNotStarted:
		return rmib.ErrNotActive
	case rmib.StateSubmitting:
		return rmib.ErrSubmitInProgress
	default:
		return rmib.ErrSessionClosed
	}
}

type nopPresenter struct{}

func (nopPresenter) Render(rmib.View)   {}
func (nopPresenter) Notify(rmib.Notice) {}
