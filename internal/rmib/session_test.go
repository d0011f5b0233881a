package rmib

import (
	"errors"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stemsi/exstem-rmib/internal/model"
)

func newActive(t *testing.T, mode Mode) *Session {
	t.Helper()
	s, err := NewSession(mode, model.DefaultCategories)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := s.Activate(); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	return s
}

func assertNoDuplicates(t *testing.T, values map[string]int) {
	t.Helper()
	seen := make(map[int]string)
	for k, v := range values {
		if other, dup := seen[v]; dup {
			t.Fatalf("rank %d held by both %s and %s", v, other, k)
		}
		seen[v] = k
	}
}

func sortedValues(values map[string]int) []int {
	out := make([]int, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

func TestInitializeEmptyRankIsPermutation(t *testing.T) {
	for seed := uint64(0); seed < 20; seed++ {
		s := newActive(t, ModeRank)
		if err := s.InitializeEmpty(rand.New(rand.NewPCG(seed, seed+1))); err != nil {
			t.Fatalf("InitializeEmpty: %v", err)
		}

		got := sortedValues(s.Values())
		if len(got) != 12 {
			t.Fatalf("expected 12 values, got %d", len(got))
		}
		for i, v := range got {
			if v != i+1 {
				t.Fatalf("seed %d: sorted values %v are not 1..12", seed, got)
			}
		}
		if !s.IsComplete() {
			t.Errorf("seed %d: expected complete session", seed)
		}
	}
}

func TestInitializeEmptyLevelIsMidpoint(t *testing.T) {
	s := newActive(t, ModeLevel)
	if err := s.InitializeEmpty(nil); err != nil {
		t.Fatalf("InitializeEmpty: %v", err)
	}
	for _, c := range model.DefaultCategories {
		if v, ok := s.Value(c.Key); !ok || v != DefaultLevel {
			t.Errorf("%s: expected %d, got %d (set=%v)", c.Key, DefaultLevel, v, ok)
		}
	}
}

func TestSetValueRankSwapsWithHolder(t *testing.T) {
	s := newActive(t, ModeRank)
	if err := s.InitializeEmpty(rand.New(rand.NewPCG(1, 2))); err != nil {
		t.Fatal(err)
	}

	order := s.Order()
	first, third := order[0], order[2]

	if err := s.SetValue(first, 3); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if v, _ := s.Value(first); v != 3 {
		t.Errorf("expected %s at 3, got %d", first, v)
	}
	if v, _ := s.Value(third); v != 1 {
		t.Errorf("expected previous holder %s to take rank 1, got %d", third, v)
	}
	assertNoDuplicates(t, s.Values())
	if !s.IsComplete() {
		t.Error("swap must keep the permutation complete")
	}
}

func TestSetValueRankFromEmptyClearsHolder(t *testing.T) {
	s := newActive(t, ModeRank)

	if err := s.SetValue("outdoor", 1); err != nil {
		t.Fatal(err)
	}
	if err := s.SetValue("medical", 1); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Value("outdoor"); ok {
		t.Error("expected outdoor to be emptied when medical took its rank")
	}
	if v, _ := s.Value("medical"); v != 1 {
		t.Errorf("expected medical=1, got %d", v)
	}
}

func TestSetValueRankNeverDuplicates(t *testing.T) {
	s := newActive(t, ModeRank)
	r := rand.New(rand.NewPCG(7, 7))
	keys := make([]string, 0, len(model.DefaultCategories))
	for _, c := range model.DefaultCategories {
		keys = append(keys, c.Key)
	}

	for i := 0; i < 500; i++ {
		key := keys[r.IntN(len(keys))]
		value := r.IntN(12) + 1
		if err := s.SetValue(key, value); err != nil {
			t.Fatalf("SetValue(%s, %d): %v", key, value, err)
		}
		assertNoDuplicates(t, s.Values())
	}
}

func TestSetValueRejectsOutOfRangeWithoutMutation(t *testing.T) {
	for _, mode := range []Mode{ModeRank, ModeLevel} {
		s := newActive(t, mode)
		if err := s.InitializeEmpty(nil); err != nil {
			t.Fatal(err)
		}
		before := s.Values()

		for _, bad := range []int{0, 13, -1} {
			err := s.SetValue("outdoor", bad)
			var ve *ValidationError
			if !errors.As(err, &ve) || !ve.Has(IssueOutOfRange, bad) {
				t.Errorf("%s: expected out-of-range for %d, got %v", mode, bad, err)
			}
		}
		err := s.SetValue("astrology", 3)
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.Issues[0].Code != IssueUnknownCategory {
			t.Errorf("%s: expected unknown category, got %v", mode, err)
		}

		after := s.Values()
		for k, v := range before {
			if after[k] != v {
				t.Errorf("%s: %s changed from %d to %d", mode, k, v, after[k])
			}
		}
	}
}

func TestSetValueLevelIsIndependent(t *testing.T) {
	s := newActive(t, ModeLevel)
	if err := s.InitializeEmpty(nil); err != nil {
		t.Fatal(err)
	}
	if err := s.SetValue("outdoor", 12); err != nil {
		t.Fatal(err)
	}
	if err := s.SetValue("medical", 12); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.Value("outdoor"); v != 12 {
		t.Errorf("expected outdoor to keep 12, got %d", v)
	}
	if v, _ := s.Value("mechanical"); v != DefaultLevel {
		t.Errorf("expected mechanical untouched, got %d", v)
	}
}

func TestMoveRank(t *testing.T) {
	s := newActive(t, ModeRank)
	if err := s.InitializeEmpty(rand.New(rand.NewPCG(3, 4))); err != nil {
		t.Fatal(err)
	}
	before := s.Order()

	if err := s.MoveRank(0, 4); err != nil {
		t.Fatalf("MoveRank: %v", err)
	}
	after := s.Order()

	want := append([]string{}, before[1:5]...)
	want = append(want, before[0])
	want = append(want, before[5:]...)
	for i := range want {
		if after[i] != want[i] {
			t.Fatalf("order mismatch at %d: want %v, got %v", i, want, after)
		}
	}
	for i, key := range after {
		if v, _ := s.Value(key); v != i+1 {
			t.Errorf("%s: expected rank %d, got %d", key, i+1, v)
		}
	}
	if !s.IsComplete() {
		t.Error("move must keep the permutation complete")
	}
}

func TestMoveRankRejections(t *testing.T) {
	s := newActive(t, ModeRank)
	var ve *ValidationError

	if err := s.MoveRank(0, 1); !errors.As(err, &ve) || ve.Issues[0].Code != IssueIncomplete {
		t.Errorf("expected incomplete on empty ranking, got %v", err)
	}

	if err := s.InitializeEmpty(nil); err != nil {
		t.Fatal(err)
	}
	if err := s.MoveRank(-1, 12); !errors.As(err, &ve) || len(ve.Issues) != 2 {
		t.Errorf("expected two invalid positions, got %v", err)
	}

	lv := newActive(t, ModeLevel)
	if err := lv.MoveRank(0, 1); !errors.As(err, &ve) || ve.Issues[0].Code != IssueWrongMode {
		t.Errorf("expected wrong mode, got %v", err)
	}
}

func TestClearAndUnset(t *testing.T) {
	s := newActive(t, ModeLevel)
	if err := s.InitializeEmpty(nil); err != nil {
		t.Fatal(err)
	}
	if err := s.Unset("musical"); err != nil {
		t.Fatal(err)
	}
	if s.FilledCount() != 11 || s.IsComplete() {
		t.Errorf("expected 11 filled and incomplete, got %d", s.FilledCount())
	}
	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	if s.FilledCount() != 0 {
		t.Errorf("expected empty after Clear, got %d", s.FilledCount())
	}
}

func TestIsCompleteRank(t *testing.T) {
	s := newActive(t, ModeRank)
	for i, c := range model.DefaultCategories {
		if i == 11 {
			break
		}
		if err := s.SetValue(c.Key, i+1); err != nil {
			t.Fatal(err)
		}
	}
	if s.IsComplete() {
		t.Error("11 of 12 ranks must not be complete")
	}
	if err := s.SetValue("medical", 12); err != nil {
		t.Fatal(err)
	}
	if !s.IsComplete() {
		t.Error("expected complete")
	}
}

func TestLifecycleGuards(t *testing.T) {
	s, err := NewSession(ModeLevel, model.DefaultCategories)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetValue("outdoor", 3); !errors.Is(err, ErrNotActive) {
		t.Errorf("expected ErrNotActive before start, got %v", err)
	}
	if err := s.InitializeEmpty(nil); err != nil {
		t.Errorf("initialization must be allowed before start: %v", err)
	}

	if err := s.Activate(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.BeginSubmit(); err != nil {
		t.Fatal(err)
	}
	if err := s.SetValue("outdoor", 3); !errors.Is(err, ErrSubmitInProgress) {
		t.Errorf("expected ErrSubmitInProgress, got %v", err)
	}

	s.FinishSubmit(false)
	if s.State() != StateActive {
		t.Fatalf("failed submit must return to active, got %s", s.State())
	}
	if err := s.SetValue("outdoor", 3); err != nil {
		t.Errorf("expected edits after failed submit: %v", err)
	}

	if _, err := s.BeginSubmit(); err != nil {
		t.Fatal(err)
	}
	s.FinishSubmit(true)
	if s.State() != StateTerminal {
		t.Fatalf("expected terminal, got %s", s.State())
	}
	for name, fn := range map[string]func() error{
		"SetValue": func() error { return s.SetValue("outdoor", 4) },
		"Clear":    s.Clear,
		"Activate": s.Activate,
		"Replace":  func() error { return s.Replace(map[string]int{}) },
	} {
		if err := fn(); !errors.Is(err, ErrSessionClosed) {
			t.Errorf("%s after submit: expected ErrSessionClosed, got %v", name, err)
		}
	}
	if v, _ := s.Value("outdoor"); v != 3 {
		t.Errorf("terminal session must keep its values, got %d", v)
	}
}

func TestReplace(t *testing.T) {
	s := newActive(t, ModeRank)
	if err := s.InitializeEmpty(nil); err != nil {
		t.Fatal(err)
	}
	before := s.Values()

	bad := []map[string]int{
		{"outdoor": 1, "mechanical": 1},
		{"outdoor": 13},
		{"astrology": 2},
	}
	for _, values := range bad {
		var die *DataIntegrityError
		if err := s.Replace(values); !errors.As(err, &die) {
			t.Errorf("Replace(%v): expected DataIntegrityError, got %v", values, err)
		}
	}
	after := s.Values()
	for k, v := range before {
		if after[k] != v {
			t.Fatalf("rejected load changed %s", k)
		}
	}

	if err := s.Replace(map[string]int{"outdoor": 2, "medical": 1}); err != nil {
		t.Fatalf("partial load: %v", err)
	}
	if s.FilledCount() != 2 {
		t.Errorf("replace must not merge, got %d entries", s.FilledCount())
	}
	order := s.Order()
	if order[0] != "medical" || order[1] != "outdoor" || order[2] != "mechanical" {
		t.Errorf("unexpected order %v", order[:3])
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := newActive(t, ModeLevel)
	if err := s.SetValue("outdoor", 9); err != nil {
		t.Fatal(err)
	}
	snap := s.Snapshot()
	snap.Values["outdoor"] = 1

	if v, _ := s.Value("outdoor"); v != 9 {
		t.Errorf("snapshot must not alias session state, got %d", v)
	}
	if len(snap.Completed) != 1 || snap.Completed[0] != "outdoor" {
		t.Errorf("unexpected completed set %v", snap.Completed)
	}
}

func TestNewSessionRejectsOversizedRankCatalog(t *testing.T) {
	cats := append([]model.Category{}, model.DefaultCategories...)
	cats = append(cats, model.Category{Key: "extra"})
	if _, err := NewSession(ModeRank, cats); err == nil {
		t.Error("expected error for 13 categories in rank mode")
	}
	if _, err := NewSession(ModeLevel, cats); err != nil {
		t.Errorf("level mode has no table limit: %v", err)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"rank", ModeRank, false},
		{" LEVEL ", ModeLevel, false},
		{"likert", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseMode(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestBeginSubmitValidatesAndSnapshots(t *testing.T) {
	s := newActive(t, ModeLevel)
	if err := s.InitializeEmpty(nil); err != nil {
		t.Fatal(err)
	}
	if err := s.Unset("medical"); err != nil {
		t.Fatal(err)
	}

	_, err := s.BeginSubmit()
	var ve *ValidationError
	if !errors.As(err, &ve) || !ve.Has(IssueUnfilled, 0) {
		t.Fatalf("expected unfilled issue, got %v", err)
	}
	if s.State() != StateActive {
		t.Fatalf("rejected submit must stay active, got %s", s.State())
	}

	if err := s.SetValue("medical", 9); err != nil {
		t.Fatal(err)
	}
	snap, err := s.BeginSubmit()
	if err != nil {
		t.Fatal(err)
	}
	if s.State() != StateSubmitting {
		t.Errorf("expected submitting, got %s", s.State())
	}
	if len(snap.Values) != len(model.DefaultCategories) || snap.Values["medical"] != 9 {
		t.Errorf("snapshot should hold the validated assignment, got %v", snap.Values)
	}
}
