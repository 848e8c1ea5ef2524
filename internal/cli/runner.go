package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/Makepad-fr/tada/internal/backend"
	"github.com/Makepad-fr/tada/internal/config"
	"github.com/Makepad-fr/tada/internal/logging"
	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/todoapp"
	"github.com/Makepad-fr/tada/internal/tui"
	"github.com/Makepad-fr/tada/internal/ui"
)

// Options carry the resolved config and the process's streams.
type Options struct {
	Config *config.Config

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Open overrides backend.Open, mainly for tests.
	Open func(ctx context.Context, cfg *config.Config, logger *log.Logger) (backend.Backend, error)
	// RunApp overrides the interactive screen, mainly for tests.
	RunApp func(ctx context.Context, b tui.Backend, opts ...tui.Option) error
}

func (o *Options) defaults() {
	if o.Config == nil {
		o.Config = &config.Config{Backend: config.DefaultBackend, DataFile: config.DefaultDataFile}
	}
	if o.Stdin == nil {
		o.Stdin = os.Stdin
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	if o.Open == nil {
		o.Open = backend.Open
	}
	if o.RunApp == nil {
		o.RunApp = tui.Run
	}
}

// runner holds what every subcommand needs.
type runner struct {
	opt    Options
	logger *log.Logger
}

func (r *runner) ok(msg string)   { ui.OK(r.opt.Stdout, msg) }
func (r *runner) fail(msg string) { ui.Fail(r.opt.Stderr, msg) }

// Run dispatches subcommands and returns an exit code (0 ok, 1 error, 2 usage).
// With no arguments it opens the interactive app.
func Run(ctx context.Context, args []string, opt Options) int {
	opt.defaults()
	ui.SetTheme(opt.Config.Theme)

	cmd, a := "app", []string(nil)
	if len(args) > 0 {
		cmd, a = args[0], args[1:]
	}

	logOpts := logging.Options{
		Level:     opt.Config.LogLevel,
		Formatter: opt.Config.LogFormat,
		File:      opt.Config.LogFile,
		Writer:    opt.Stderr,
	}
	// The app owns the terminal; its logs must go to a file.
	if cmd == "app" && logOpts.File == "" {
		logOpts.File = defaultLogFile()
	}
	logger, closer, err := logging.New(logOpts)
	if err != nil {
		ui.Fail(opt.Stderr, "log: "+err.Error())
		return 1
	}
	defer closer.Close()

	r := &runner{opt: opt, logger: logger}

	switch cmd {
	case "help", "-h", "--help":
		PrintHelp(opt.Stdout)
		return 0

	case "auth":
		return r.auth(a)

	case "app", "ls", "add", "done", "edit", "rm", "label":
	default:
		r.fail("unknown subcommand: " + cmd)
		fmt.Fprintln(opt.Stderr)
		PrintHelp(opt.Stderr)
		return 2
	}

	b, err := opt.Open(ctx, opt.Config, logger)
	if err != nil {
		r.fail("open backend: " + err.Error())
		return 1
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Warn("close backend", "err", err)
		}
	}()

	switch cmd {
	case "app":
		if err := opt.RunApp(ctx, b, tui.WithLogger(logger)); err != nil {
			r.fail("tui: " + err.Error())
			return 1
		}
		return 0
	case "ls":
		return r.doList(ctx, b, a)
	case "add":
		return r.doAdd(ctx, b, a)
	case "done":
		return r.doToggle(ctx, b, a)
	case "edit":
		return r.doEdit(ctx, b, a)
	case "rm":
		return r.doRemove(ctx, b, a)
	default: // label
		return r.label(ctx, b, a)
	}
}

func PrintHelp(w io.Writer) {
	fmt.Fprint(w, `todo - a tiny todo client

Usage:
  todo [flags] [subcommand] [args]

Subcommands:
  app                          Interactive app (default)
  add [-l label-id]... <text>  Add a new todo (text can be multiple words)
  ls [--group]                 List todos (--group splits pending/done)
  done <id>                    Toggle done for the todo with id
  edit <id> <text...>          Replace the text of a todo
  rm <id>                      Remove a todo
  label <add|ls|rm>            Manage labels
  auth <login|logout|status|whoami>   Token authentication (http backend)

Flags:
  --backend json|sqlite|postgres|http   Where todos live (default json)
  --theme classic|neon|mono             Output theme

Examples:
  todo add "Buy milk"
  todo ls
  todo done 2
  todo rm 3
`)
}

func defaultLogFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "tada.log")
	}
	return filepath.Join(dir, "tada", "tada.log")
}

// report prints err and maps it to an exit code.
func (r *runner) report(op string, err error) int {
	r.logger.Debug(op+" failed", "err", err)
	r.fail(op + ": " + err.Error())
	switch {
	case errors.Is(err, model.ErrNotFound):
		fmt.Fprintln(r.opt.Stderr, ui.Current().Muted.Render("Hint: run `todo ls` to see valid ids"))
		return 2
	case errors.Is(err, model.ErrInvalidText):
		return 2
	}
	return 1
}

// parseID reads a positive id from a[0] when at least want args are given.
func parseID(a []string, want int) (int, bool) {
	if len(a) < want {
		return 0, false
	}
	n, err := strconv.Atoi(a[0])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// -------------- subcommand impls ----------------

func (r *runner) doList(ctx context.Context, b backend.Backend, a []string) int {
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	fs.SetOutput(r.opt.Stderr)
	group := fs.Bool("group", r.opt.Config.Group, "group output by pending/done")
	if err := fs.Parse(a); err != nil {
		return 2
	}
	if fs.NArg() > 0 {
		r.fail("usage: todo ls [--group]")
		return 2
	}

	todos, err := b.All(ctx)
	if err != nil {
		return r.report("load", err)
	}
	t := ui.Current()

	d, p := stats(todos)
	header := fmt.Sprintf("%s  %s %d  %s %d  %s %d",
		t.Title.Render("Todos"),
		t.Success.Render(t.SymDone), d,
		t.Pending.Render(t.SymPending), p,
		t.Accent.Render("Total"), len(todos),
	)

	var lines []string
	lines = append(lines, header)
	lines = append(lines, t.Muted.Render(ui.ProgressBar(d, d+p, 28)))
	lines = append(lines, "")
	if *group {
		lines = append(lines, groupLines(todos)...)
	} else {
		lines = append(lines, flatLines(todos)...)
	}
	lines = append(lines, "")
	lines = append(lines, t.Muted.Render("Tip: add with `todo add \"Buy milk\"`"))
	ui.Panel(r.opt.Stdout, lines)
	return 0
}

func (r *runner) doAdd(ctx context.Context, b backend.Backend, a []string) int {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(r.opt.Stderr)
	var labels intList
	fs.Var(&labels, "l", "attach the label with this id (repeatable)")
	if err := fs.Parse(a); err != nil {
		return 2
	}
	text := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if text == "" {
		r.fail("usage: todo add [-l label-id]... <text...>")
		return 2
	}

	list := todoapp.New(b, todoapp.WithLogger(r.logger))
	if err := list.Create(ctx, model.NewTodo{Text: text, Labels: labels}); err != nil {
		return r.report("add", err)
	}
	created := list.Todos()[0]
	r.ok(fmt.Sprintf("added #%d", created.ID))
	return 0
}

func (r *runner) doToggle(ctx context.Context, b backend.Backend, a []string) int {
	id, ok := parseID(a, 1)
	if !ok || len(a) != 1 {
		r.fail("usage: todo done <id>")
		return 2
	}
	cur, err := b.Find(ctx, id)
	if err != nil {
		return r.report("done", err)
	}
	done := !cur.Completed
	if _, err := b.Update(ctx, id, model.UpdateTodo{Completed: &done}); err != nil {
		return r.report("done", err)
	}
	if done {
		r.ok(fmt.Sprintf("completed #%d", id))
	} else {
		r.ok(fmt.Sprintf("reopened #%d", id))
	}
	return 0
}

func (r *runner) doEdit(ctx context.Context, b backend.Backend, a []string) int {
	id, ok := parseID(a, 2)
	if !ok {
		r.fail("usage: todo edit <id> <text...>")
		return 2
	}
	text := strings.TrimSpace(strings.Join(a[1:], " "))
	if _, err := b.Update(ctx, id, model.UpdateTodo{Text: &text}); err != nil {
		return r.report("edit", err)
	}
	r.ok(fmt.Sprintf("edited #%d", id))
	return 0
}

func (r *runner) doRemove(ctx context.Context, b backend.Backend, a []string) int {
	id, ok := parseID(a, 1)
	if !ok || len(a) != 1 {
		r.fail("usage: todo rm <id>")
		return 2
	}
	if err := b.Delete(ctx, id); err != nil {
		return r.report("rm", err)
	}
	r.ok(fmt.Sprintf("removed #%d", id))
	return 0
}

func (r *runner) label(ctx context.Context, b backend.Backend, a []string) int {
	const usage = "usage: todo label <add <name...>|ls|rm <id>>"
	if len(a) == 0 {
		r.fail(usage)
		return 2
	}
	switch a[0] {
	case "add":
		name := strings.TrimSpace(strings.Join(a[1:], " "))
		if name == "" {
			r.fail("usage: todo label add <name...>")
			return 2
		}
		l, err := b.CreateLabel(ctx, name)
		if err != nil {
			return r.report("label add", err)
		}
		r.ok(fmt.Sprintf("label #%d %s", l.ID, l.Name))
		return 0
	case "ls":
		labels, err := b.Labels(ctx)
		if err != nil {
			return r.report("label ls", err)
		}
		if len(labels) == 0 {
			fmt.Fprintln(r.opt.Stdout, ui.Current().Muted.Render("no labels"))
			return 0
		}
		for _, l := range labels {
			fmt.Fprintf(r.opt.Stdout, "%s %s\n", ui.Current().Muted.Render(fmt.Sprintf("%3d.", l.ID)), l.Name)
		}
		return 0
	case "rm":
		id, ok := parseID(a[1:], 1)
		if !ok || len(a) != 2 {
			r.fail("usage: todo label rm <id>")
			return 2
		}
		if err := b.DeleteLabel(ctx, id); err != nil {
			return r.report("label rm", err)
		}
		r.ok(fmt.Sprintf("removed label #%d", id))
		return 0
	}
	r.fail(usage)
	return 2
}

// -------------- rendering helpers --------------

func stats(todos []model.Todo) (done, pending int) {
	for _, t := range todos {
		if t.Completed {
			done++
		} else {
			pending++
		}
	}
	return
}

func flatLines(todos []model.Todo) []string {
	t := ui.Current()
	if len(todos) == 0 {
		return []string{t.Muted.Render("no items")}
	}
	out := make([]string, 0, len(todos))
	for _, it := range todos {
		idx := fmt.Sprintf("%3d.", it.ID)
		box, style := t.BoxUnchecked, t.Muted
		if it.Completed {
			box, style = t.BoxChecked, t.Success
		}
		line := fmt.Sprintf("%s %s %s", t.Muted.Render(idx), style.Render(box), ui.Truncate(it.Text, 80))
		for _, l := range it.Labels {
			line += " " + t.Accent.Render("#"+l.Name)
		}
		out = append(out, line)
	}
	return out
}

func groupLines(todos []model.Todo) []string {
	t := ui.Current()
	var pend, done []model.Todo
	for _, it := range todos {
		if it.Completed {
			done = append(done, it)
		} else {
			pend = append(pend, it)
		}
	}
	var lines []string
	lines = append(lines, t.Accent.Render("Pending"))
	if len(pend) == 0 {
		lines = append(lines, t.Muted.Render("(none)"))
	} else {
		lines = append(lines, flatLines(pend)...)
	}
	lines = append(lines, "")
	lines = append(lines, t.Accent.Render("Done"))
	if len(done) == 0 {
		lines = append(lines, t.Muted.Render("(none)"))
	} else {
		lines = append(lines, flatLines(done)...)
	}
	return lines
}

// intList collects a repeated integer flag.
type intList []int

func (l *intList) String() string {
	parts := make([]string, len(*l))
	for i, v := range *l {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func (l *intList) Set(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("not a number: %s", s)
	}
	*l = append(*l, n)
	return nil
}
