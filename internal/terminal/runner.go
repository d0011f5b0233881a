package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-rmib/internal/model"
	"github.com/stemsi/exstem-rmib/internal/service"
)

// Command is one parsed input line.
type Command struct {
	Name     string
	Category string
	Value    int
	From, To int
}

const helpText = `Perintah:
  set <kategori> <nilai>   isi nilai (kategori: kunci atau nomor 1-12)
  unset <kategori>         kosongkan kategori
  move <dari> <ke>         pindahkan peringkat (posisi 1-12, mode peringkat)
  clear                    kosongkan semua
  show                     tampilkan ulang tabel
  save                     simpan sekarang
  submit                   kirim jawaban
  status                   waktu sampai simpan otomatis
  quit                     keluar`

var errUsage = errors.New("perintah tidak dikenal, ketik 'help'")

// ParseCommand parses one input line. Categories may be given by key or by
// 1-based position in the catalog; move positions are 1-based.
func ParseCommand(line string, categories []model.Category) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, errUsage
	}

	cmd := Command{Name: strings.ToLower(fields[0])}
	args := fields[1:]

	switch cmd.Name {
	case "set":
		if len(args) != 2 {
			return Command{}, errors.New("pemakaian: set <kategori> <nilai>")
		}
		key, err := resolveCategory(args[0], categories)
		if err != nil {
			return Command{}, err
		}
		value, err := strconv.Atoi(args[1])
		if err != nil {
			return Command{}, fmt.Errorf("nilai %q bukan angka", args[1])
		}
		cmd.Category, cmd.Value = key, value

	case "unset":
		if len(args) != 1 {
			return Command{}, errors.New("pemakaian: unset <kategori>")
		}
		key, err := resolveCategory(args[0], categories)
		if err != nil {
			return Command{}, err
		}
		cmd.Category = key

	case "move":
		if len(args) != 2 {
			return Command{}, errors.New("pemakaian: move <dari> <ke>")
		}
		from, err1 := strconv.Atoi(args[0])
		to, err2 := strconv.Atoi(args[1])
		if err1 != nil || err2 != nil {
			return Command{}, errors.New("posisi harus angka")
		}
		cmd.From, cmd.To = from-1, to-1

	case "clear", "show", "save", "submit", "status", "help", "quit", "exit":
		if len(args) != 0 {
			return Command{}, fmt.Errorf("pemakaian: %s", cmd.Name)
		}
		if cmd.Name == "exit" {
			cmd.Name = "quit"
		}

	default:
		return Command{}, errUsage
	}

	return cmd, nil
}

func resolveCategory(arg string, categories []model.Category) (string, error) {
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(categories) {
			return "", fmt.Errorf("nomor kategori harus 1-%d", len(categories))
		}
		return categories[n-1].Key, nil
	}
	for _, c := range categories {
		if strings.EqualFold(c.Key, arg) {
			return c.Key, nil
		}
	}
	return "", fmt.Errorf("kategori %q tidak dikenal", arg)
}

// Runner reads commands from in and applies them to the session.
type Runner struct {
	svc *service.SessionService
	in  io.Reader
	out io.Writer
	log zerolog.Logger
}

// NewRunner creates a Runner.
func NewRunner(svc *service.SessionService, in io.Reader, out io.Writer, log zerolog.Logger) *Runner {
	return &Runner{
		svc: svc,
		in:  in,
		out: out,
		log: log.With().Str("component", "terminal_runner").Logger(),
	}
}

// Run starts the test and processes commands until quit, end of input or a
// successful submit. Quitting with a partly filled test needs confirmation.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.svc.Start(ctx); err != nil {
		return err
	}

	categories := r.svc.Session().Categories()
	scanner := bufio.NewScanner(r.in)
	confirmQuit := false

	r.prompt()
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			r.prompt()
			continue
		}

		cmd, err := ParseCommand(line, categories)
		if err != nil {
			fmt.Fprintln(r.out, err)
			r.prompt()
			continue
		}

		if cmd.Name == "quit" {
			if r.svc.UnloadGuard() && !confirmQuit {
				fmt.Fprintln(r.out, "Jawaban belum lengkap. Progres terakhir disimpan otomatis; ketik 'quit' lagi untuk keluar.")
				confirmQuit = true
				r.prompt()
				continue
			}
			return nil
		}
		confirmQuit = false

		done := r.exec(ctx, cmd)
		if done {
			return nil
		}
		r.prompt()
	}

	return scanner.Err()
}

// exec applies one command. Errors are already shown by the presenter.
// It reports whether the session has ended.
func (r *Runner) exec(ctx context.Context, cmd Command) bool {
	var err error
	switch cmd.Name {
	case "set":
		err = r.svc.SetValue(cmd.Category, cmd.Value)
	case "unset":
		err = r.svc.Unset(cmd.Category)
	case "move":
		err = r.svc.MoveRank(cmd.From, cmd.To)
	case "clear":
		err = r.svc.Clear()
	case "show":
		r.svc.Render()
	case "save":
		err = r.svc.SaveNow(ctx)
	case "status":
		fmt.Fprintf(r.out, "Simpan otomatis dalam %s\n", r.svc.NextAutosave().Round(time.Second))
	case "help":
		fmt.Fprintln(r.out, helpText)
	case "submit":
		res, subErr := r.svc.Submit(ctx)
		if subErr != nil {
			err = subErr
			break
		}
		fmt.Fprintf(r.out, "Total skor %d. Minat utama: %s. Hasil: %s\n",
			res.TotalScore, res.PrimaryInterest, res.RedirectURL)
		return true
	}

	if err != nil {
		r.log.Debug().Err(err).Str("command", cmd.Name).Msg("Command failed")
	}
	return false
}

func (r *Runner) prompt() {
	fmt.Fprint(r.out, "> ")
}
