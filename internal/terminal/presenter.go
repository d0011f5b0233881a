package terminal

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/stemsi/exstem-rmib/internal/rmib"
	"golang.org/x/term"
)

const (
	defaultWidth = 80
	clearScreen  = "\033[H\033[2J"
)

// Presenter draws the session as a text table. It implements rmib.Presenter.
type Presenter struct {
	mu    sync.Mutex
	out   io.Writer
	width int
	tty   bool
}

// NewPresenter creates a Presenter writing to out. When out is a terminal
// the screen is cleared before each redraw and the table fits its width.
func NewPresenter(out io.Writer) *Presenter {
	p := &Presenter{out: out, width: defaultWidth}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.tty = true
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 40 {
			p.width = w
		}
	}
	return p
}

// Render redraws the table.
func (p *Presenter) Render(v rmib.View) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var b strings.Builder
	if p.tty {
		b.WriteString(clearScreen)
	}

	title := "RMIB - Urutkan minat (1 = paling diminati)"
	valueHead := "Peringkat"
	if v.Mode == rmib.ModeLevel {
		title = "RMIB - Tingkat minat (1-12)"
		valueHead = "Tingkat"
	}
	fmt.Fprintf(&b, "%s\n%s\n", title, strings.Repeat("=", min(len(title), p.width)))

	nameWidth := max(p.width-32, 16)
	fmt.Fprintf(&b, "%3s  %-*s %9s %5s\n", "#", nameWidth, "Kategori", valueHead, "Skor")
	for i, e := range v.Entries {
		value := "-"
		if e.Value > 0 {
			value = fmt.Sprint(e.Value)
		}
		mark := ""
		if !e.Valid {
			mark = "  ! " + e.Issue
		}
		fmt.Fprintf(&b, "%3d  %-*s %9s %5d%s\n", i+1, nameWidth, truncate(e.Name, nameWidth), value, e.Score, mark)
	}

	fmt.Fprintf(&b, "\nTerisi %d/%d (%.0f%%)  Total skor: %d  Status: %s\n",
		v.Filled, v.Total, v.Progress, v.Score, v.State)
	if v.CanSubmit {
		b.WriteString("Semua kategori sudah terisi. Ketik 'submit' untuk mengirim.\n")
	}

	io.WriteString(p.out, b.String())
}

// Notify prints a notice line.
func (p *Presenter) Notify(n rmib.Notice) {
	p.mu.Lock()
	defer p.mu.Unlock()

	line := fmt.Sprintf("[%s] %s", strings.ToUpper(string(n.Level)), n.Title)
	if n.Message != "" {
		line += ": " + n.Message
	}
	fmt.Fprintln(p.out, line)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
