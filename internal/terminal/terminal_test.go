package terminal

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-rmib/internal/bridge"
	"github.com/stemsi/exstem-rmib/internal/model"
	"github.com/stemsi/exstem-rmib/internal/rmib"
	"github.com/stemsi/exstem-rmib/internal/service"
)

func TestParseCommand(t *testing.T) {
	cats := model.DefaultCategories

	tests := []struct {
		line    string
		want    Command
		wantErr bool
	}{
		{line: "set outdoor 3", want: Command{Name: "set", Category: "outdoor", Value: 3}},
		{line: "SET 2 11", want: Command{Name: "set", Category: cats[1].Key, Value: 11}},
		{line: "unset 1", want: Command{Name: "unset", Category: cats[0].Key}},
		{line: "move 1 12", want: Command{Name: "move", From: 0, To: 11}},
		{line: "exit", want: Command{Name: "quit"}},
		{line: "submit", want: Command{Name: "submit"}},
		{line: "set outdoor", wantErr: true},
		{line: "set 13 1", wantErr: true},
		{line: "set nowhere 1", wantErr: true},
		{line: "set outdoor x", wantErr: true},
		{line: "move a b", wantErr: true},
		{line: "save now", wantErr: true},
		{line: "dance", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseCommand(tt.line, cats)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPresenterRender(t *testing.T) {
	var buf bytes.Buffer
	p := NewPresenter(&buf)

	p.Render(rmib.View{
		Mode:  rmib.ModeLevel,
		State: "active",
		Entries: []rmib.Entry{
			{Key: "outdoor", Name: "Outdoor (Alam Terbuka)", Value: 12, Score: 12, Valid: true},
			{Key: "medical", Name: "Medical (Medis)", Valid: false, Issue: "Belum diisi"},
		},
		Filled:   1,
		Total:    2,
		Progress: 50,
		Score:    12,
	})

	out := buf.String()
	for _, want := range []string{"Tingkat minat", "Outdoor (Alam Terbuka)", "! Belum diisi", "Terisi 1/2 (50%)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, clearScreen) {
		t.Error("non-terminal output should not clear the screen")
	}

	buf.Reset()
	p.Notify(rmib.Notice{Level: rmib.NoticeWarning, Title: "Nilai tidak valid", Message: "x"})
	if got := buf.String(); got != "[WARNING] Nilai tidak valid: x\n" {
		t.Errorf("unexpected notice line %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("Computational", 5); got != "Comp…" {
		t.Errorf("got %q", got)
	}
	if got := truncate("abc", 5); got != "abc" {
		t.Errorf("got %q", got)
	}
}

type memStore struct {
	mu      sync.Mutex
	saves   int
	submits int
}

func (m *memStore) Start(ctx context.Context) (*bridge.StartResult, error) {
	no := false
	return &bridge.StartResult{HasProgress: &no}, nil
}

func (m *memStore) Load(ctx context.Context, mode rmib.Mode) (*bridge.LoadResult, error) {
	return &bridge.LoadResult{}, nil
}

func (m *memStore) Save(ctx context.Context, snap rmib.Snapshot) error {
	m.mu.Lock()
	m.saves++
	m.mu.Unlock()
	return nil
}

func (m *memStore) Submit(ctx context.Context, snap rmib.Snapshot) (*bridge.SubmitResult, error) {
	m.mu.Lock()
	m.submits++
	m.mu.Unlock()
	return &bridge.SubmitResult{TotalScore: 360, PrimaryInterest: "outdoor", RedirectURL: "/students/1/rmib/result/"}, nil
}

func runScript(t *testing.T, mode rmib.Mode, script string) (*service.SessionService, *memStore, string) {
	t.Helper()
	sess, err := rmib.NewSession(mode, model.DefaultCategories)
	if err != nil {
		t.Fatal(err)
	}
	store := &memStore{}
	svc := service.NewSessionService(sess, store, NewPresenter(&bytes.Buffer{}), service.SessionOptions{}, zerolog.Nop())
	t.Cleanup(svc.Close)

	var out bytes.Buffer
	r := NewRunner(svc, strings.NewReader(script), &out, zerolog.Nop())
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return svc, store, out.String()
}

func TestRunnerAppliesEdits(t *testing.T) {
	svc, store, _ := runScript(t, rmib.ModeLevel, "set 1 12\nset medical 13\nsave\n")

	if v, _ := svc.Session().Value(model.DefaultCategories[0].Key); v != 12 {
		t.Errorf("expected 12, got %d", v)
	}
	if v, _ := svc.Session().Value("medical"); v != rmib.DefaultLevel {
		t.Errorf("out of range value should be rejected, got %d", v)
	}
	if store.saves != 1 {
		t.Errorf("expected one save, got %d", store.saves)
	}
}

func TestRunnerConfirmsQuitWhenIncomplete(t *testing.T) {
	_, _, out := runScript(t, rmib.ModeLevel, "unset 1\nquit\nhelp\nquit\nquit\n")

	if n := strings.Count(out, "ketik 'quit' lagi"); n != 2 {
		t.Errorf("expected two confirmations, got %d:\n%s", n, out)
	}
}

func TestRunnerSubmitEnds(t *testing.T) {
	svc, store, out := runScript(t, rmib.ModeRank, "move 1 12\nsubmit\nset 1 1\n")

	if store.submits != 1 {
		t.Fatalf("expected one submit, got %d", store.submits)
	}
	if svc.Session().State() != rmib.StateTerminal {
		t.Errorf("expected terminal state, got %s", svc.Session().State())
	}
	if !strings.Contains(out, "Total skor 360") {
		t.Errorf("missing result line:\n%s", out)
	}
}
