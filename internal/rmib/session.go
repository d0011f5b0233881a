package rmib

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-rmib/internal/model"
)

// Mode selects the capture variant.
type Mode string

const (
	// ModeRank is the forced-choice variant: every category holds a unique rank.
	ModeRank Mode = "rank"
	// ModeLevel is the independent-rating variant: duplicates are allowed.
	ModeLevel Mode = "level"
)

// ParseMode parses "rank" or "level".
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeRank:
		return ModeRank, nil
	case ModeLevel:
		return ModeLevel, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

const (
	MinValue     = 1
	MaxLevel     = 12
	DefaultLevel = 6
)

// State is the session lifecycle position.
type State int

const (
	StateNotStarted State = iota
	StateActive
	StateSubmitting
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateActive:
		return "active"
	case StateSubmitting:
		return "submitting"
	case StateTerminal:
		return "terminal"
	}
	return "unknown"
}

// Snapshot is the serializable form of the assignment.
type Snapshot struct {
	Mode      Mode           `json:"mode"`
	Values    map[string]int `json:"values"`
	Completed []string       `json:"completed"`
}

// Session is the single source of truth for one test attempt. All methods
// are safe for concurrent use; each mutation is atomic with respect to
// readers.
type Session struct {
	mu sync.RWMutex

	id         uuid.UUID
	mode       Mode
	categories []model.Category
	validator  *Validator

	values map[string]int
	state  State
}

// NewSession creates an empty session in StateNotStarted.
func NewSession(mode Mode, categories []model.Category) (*Session, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("session: no categories")
	}
	if mode == ModeRank && len(categories) > len(RankScores) {
		return nil, fmt.Errorf("session: %d categories exceed the %d-entry rank table", len(categories), len(RankScores))
	}

	cats := slices.Clone(categories)
	return &Session{
		id:         uuid.New(),
		mode:       mode,
		categories: cats,
		validator:  NewValidator(mode, cats),
		values:     make(map[string]int, len(cats)),
	}, nil
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) Mode() Mode { return s.mode }

// Categories returns the catalog in declaration order.
func (s *Session) Categories() []model.Category { return slices.Clone(s.categories) }

// Validator returns the validator bound to this session's mode and catalog.
func (s *Session) Validator() *Validator { return s.validator }

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// ─── Lifecycle ─────────────────────────────────────────────────────────

// Activate moves NotStarted to Active. Calling it on an active session is a no-op.
func (s *Session) Activate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateNotStarted, StateActive:
		s.state = StateActive
		return nil
	case StateSubmitting:
		return ErrSubmitInProgress
	default:
		return ErrSessionClosed
	}
}

// BeginSubmit runs the final validation and moves Active to Submitting in
// one step. The returned snapshot is exactly the assignment that passed.
func (s *Session) BeginSubmit() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editableLocked(); err != nil {
		return Snapshot{}, err
	}
	if err := s.validator.Final(s.values); err != nil {
		return Snapshot{}, err
	}
	s.state = StateSubmitting
	return s.snapshotLocked(), nil
}

// FinishSubmit ends a submit: Terminal on success, back to Active otherwise.
func (s *Session) FinishSubmit(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateSubmitting {
		return
	}
	if ok {
		s.state = StateTerminal
	} else {
		s.state = StateActive
	}
}

func (s *Session) editableLocked() error {
	switch s.state {
	case StateActive:
		return nil
	case StateNotStarted:
		return ErrNotActive
	case StateSubmitting:
		return ErrSubmitInProgress
	default:
		return ErrSessionClosed
	}
}

// loadableLocked allows (re)initialization before and during the active phase.
func (s *Session) loadableLocked() error {
	switch s.state {
	case StateNotStarted, StateActive:
		return nil
	case StateSubmitting:
		return ErrSubmitInProgress
	default:
		return ErrSessionClosed
	}
}

// ─── Initialization ────────────────────────────────────────────────────

// InitializeEmpty sets the default assignment: a uniform random permutation
// in rank mode, DefaultLevel everywhere in level mode. A nil rng uses the
// global source.
func (s *Session) InitializeEmpty(rng *rand.Rand) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadableLocked(); err != nil {
		return err
	}

	n := len(s.categories)
	values := make(map[string]int, n)
	if s.mode == ModeRank {
		var perm []int
		if rng != nil {
			perm = rng.Perm(n)
		} else {
			perm = rand.Perm(n)
		}
		for i, c := range s.categories {
			values[c.Key] = perm[i] + 1
		}
	} else {
		for _, c := range s.categories {
			values[c.Key] = DefaultLevel
		}
	}
	s.values = values
	return nil
}

// Replace swaps in a loaded assignment wholesale. Data the session could not
// have produced is rejected with a *DataIntegrityError and nothing changes.
func (s *Session) Replace(values map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadableLocked(); err != nil {
		return err
	}
	if err := s.validator.checkLoaded(values); err != nil {
		return err
	}

	next := make(map[string]int, len(values))
	for k, v := range values {
		next[k] = v
	}
	s.values = next
	return nil
}

// ─── Mutations ─────────────────────────────────────────────────────────

// SetValue writes one entry. In rank mode a value already held elsewhere is
// swapped: the previous holder takes this category's old value, or becomes
// empty if there was none.
func (s *Session) SetValue(key string, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editableLocked(); err != nil {
		return err
	}
	if err := s.validator.CheckEntry(key, value); err != nil {
		return err
	}

	if s.mode == ModeRank {
		prev, hadPrev := s.values[key]
		for other, v := range s.values {
			if other == key || v != value {
				continue
			}
			if hadPrev {
				s.values[other] = prev
			} else {
				delete(s.values, other)
			}
			break
		}
	}
	s.values[key] = value
	return nil
}

// Unset empties one category.
func (s *Session) Unset(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editableLocked(); err != nil {
		return err
	}
	if _, ok := s.validator.known[key]; !ok {
		return invalid(Issue{Code: IssueUnknownCategory, Category: key})
	}
	delete(s.values, key)
	return nil
}

// MoveRank removes the category at position from (0-based, rank order) and
// reinserts it at position to. Ranks are then position+1, so the result is
// always a permutation.
func (s *Session) MoveRank(from, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editableLocked(); err != nil {
		return err
	}
	if s.mode != ModeRank {
		return invalid(Issue{Code: IssueWrongMode})
	}
	if !s.completeLocked() {
		return invalid(Issue{Code: IssueIncomplete})
	}

	n := len(s.categories)
	var issues []Issue
	if from < 0 || from >= n {
		issues = append(issues, Issue{Code: IssueInvalidMove, Value: from})
	}
	if to < 0 || to >= n {
		issues = append(issues, Issue{Code: IssueInvalidMove, Value: to})
	}
	if len(issues) > 0 {
		return invalid(issues...)
	}
	if from == to {
		return nil
	}

	order := s.orderLocked()
	moved := order[from]
	order = slices.Delete(order, from, from+1)
	order = slices.Insert(order, to, moved)
	for i, key := range order {
		s.values[key] = i + 1
	}
	return nil
}

// Clear empties every category.
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editableLocked(); err != nil {
		return err
	}
	s.values = make(map[string]int, len(s.categories))
	return nil
}

// ─── Queries ───────────────────────────────────────────────────────────

// Value returns the current value of a category.
func (s *Session) Value(key string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Values returns a copy of the assignment.
func (s *Session) Values() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

// FilledCount is the number of categories holding a value.
func (s *Session) FilledCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// IsComplete reports whether every category is filled and, in rank mode,
// the values are exactly {1..N}.
func (s *Session) IsComplete() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.completeLocked()
}

// Order returns category keys by ascending rank; unranked categories follow
// in declaration order. In level mode it is the declaration order.
func (s *Session) Order() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orderLocked()
}

// Snapshot captures the assignment for the progress store.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	completed := make([]string, 0, len(s.values))
	for k := range s.values {
		completed = append(completed, k)
	}
	sort.Strings(completed)

	return Snapshot{Mode: s.mode, Values: s.copyLocked(), Completed: completed}
}

type capture struct {
	values map[string]int
	order  []string
	state  State
}

func (s *Session) capture() capture {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return capture{values: s.copyLocked(), order: s.orderLocked(), state: s.state}
}

func (s *Session) completeLocked() bool {
	n := len(s.categories)
	if len(s.values) != n {
		return false
	}
	if s.mode == ModeLevel {
		for _, c := range s.categories {
			if _, ok := s.values[c.Key]; !ok {
				return false
			}
		}
		return true
	}

	seen := make([]bool, n+1)
	for _, c := range s.categories {
		v, ok := s.values[c.Key]
		if !ok || v < 1 || v > n || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}

func (s *Session) orderLocked() []string {
	keys := make([]string, 0, len(s.categories))
	for _, c := range s.categories {
		keys = append(keys, c.Key)
	}
	if s.mode != ModeRank {
		return keys
	}

	sort.SliceStable(keys, func(i, j int) bool {
		vi, iok := s.values[keys[i]]
		vj, jok := s.values[keys[j]]
		if iok != jok {
			return iok
		}
		return vi < vj
	})
	return keys
}

func (s *Session) copyLocked() map[string]int {
	out := make(map[string]int, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
