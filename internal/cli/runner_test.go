package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Makepad-fr/tada/internal/config"
	"github.com/Makepad-fr/tada/internal/tui"
)

type result struct {
	code   int
	stdout string
	stderr string
}

func newConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Backend:  config.BackendJSON,
		DataFile: filepath.Join(dir, "todos.json"),
		Theme:    "mono",
		LogLevel: "error",
		LogFile:  filepath.Join(dir, "tada.log"),
	}
}

func run(t *testing.T, cfg *config.Config, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	code := Run(context.Background(), args, Options{
		Config: cfg,
		Stdin:  strings.NewReader(""),
		Stdout: &out,
		Stderr: &errOut,
		RunApp: func(context.Context, tui.Backend, ...tui.Option) error {
			t.Fatal("interactive app started")
			return nil
		},
	})
	return result{code, out.String(), errOut.String()}
}

func TestAddListToggle(t *testing.T) {
	cfg := newConfig(t)

	r := run(t, cfg, "add", "buy", "milk")
	if r.code != 0 || !strings.Contains(r.stdout, "ok: added #1") {
		t.Fatalf("add: code=%d out=%q err=%q", r.code, r.stdout, r.stderr)
	}
	run(t, cfg, "add", "walk dog")

	r = run(t, cfg, "ls")
	if r.code != 0 {
		t.Fatalf("ls: code=%d err=%q", r.code, r.stderr)
	}
	for _, want := range []string{"[ ] buy milk", "[ ] walk dog", "0%"} {
		if !strings.Contains(r.stdout, want) {
			t.Errorf("ls output missing %q:\n%s", want, r.stdout)
		}
	}
	if strings.Index(r.stdout, "walk dog") > strings.Index(r.stdout, "buy milk") {
		t.Errorf("want newest first:\n%s", r.stdout)
	}

	if r = run(t, cfg, "done", "1"); r.code != 0 || !strings.Contains(r.stdout, "completed #1") {
		t.Fatalf("done: code=%d out=%q err=%q", r.code, r.stdout, r.stderr)
	}
	r = run(t, cfg, "ls")
	if !strings.Contains(r.stdout, "[x] buy milk") || !strings.Contains(r.stdout, "50%") {
		t.Errorf("after done:\n%s", r.stdout)
	}

	if r = run(t, cfg, "done", "1"); !strings.Contains(r.stdout, "reopened #1") {
		t.Errorf("second done: out=%q", r.stdout)
	}
}

func TestGroupedList(t *testing.T) {
	cfg := newConfig(t)
	run(t, cfg, "add", "a")
	run(t, cfg, "add", "b")
	run(t, cfg, "done", "2")

	cfg.Group = true
	r := run(t, cfg, "ls")
	pend, done := strings.Index(r.stdout, "Pending"), strings.Index(r.stdout, "Done")
	if pend < 0 || done < 0 {
		t.Fatalf("missing sections:\n%s", r.stdout)
	}
	if i := strings.Index(r.stdout, "[x] b"); i < done {
		t.Errorf("completed todo not under Done:\n%s", r.stdout)
	}
	if i := strings.Index(r.stdout, "[ ] a"); i < pend || i > done {
		t.Errorf("pending todo not under Pending:\n%s", r.stdout)
	}
}

func TestListGroupFlag(t *testing.T) {
	cfg := newConfig(t)
	run(t, cfg, "add", "a")
	run(t, cfg, "add", "b")
	run(t, cfg, "done", "2")

	r := run(t, cfg, "ls", "--group")
	if r.code != 0 {
		t.Fatalf("ls --group: code=%d err=%q", r.code, r.stderr)
	}
	done := strings.Index(r.stdout, "Done")
	if strings.Index(r.stdout, "Pending") < 0 || done < 0 {
		t.Fatalf("ls --group not grouped:\n%s", r.stdout)
	}
	if strings.Index(r.stdout, "[x] b") < done {
		t.Errorf("completed todo not under Done:\n%s", r.stdout)
	}

	if r := run(t, cfg, "ls"); strings.Contains(r.stdout, "Pending") {
		t.Errorf("plain ls grouped:\n%s", r.stdout)
	}
	if r := run(t, cfg, "ls", "bogus"); r.code != 2 || !strings.Contains(r.stderr, "usage: todo ls") {
		t.Errorf("ls bogus: code=%d err=%q", r.code, r.stderr)
	}
	if r := run(t, cfg, "ls", "--nope"); r.code != 2 {
		t.Errorf("ls --nope: code=%d", r.code)
	}
}

func TestEditAndRemove(t *testing.T) {
	cfg := newConfig(t)
	run(t, cfg, "add", "buy milk")

	if r := run(t, cfg, "edit", "1", "buy", "oat", "milk"); r.code != 0 {
		t.Fatalf("edit: code=%d err=%q", r.code, r.stderr)
	}
	if r := run(t, cfg, "ls"); !strings.Contains(r.stdout, "buy oat milk") {
		t.Errorf("edited text missing:\n%s", r.stdout)
	}
	if r := run(t, cfg, "edit", "1", " "); r.code != 2 {
		t.Errorf("blank edit: code=%d, want 2", r.code)
	}

	if r := run(t, cfg, "rm", "1"); r.code != 0 || !strings.Contains(r.stdout, "removed #1") {
		t.Fatalf("rm: code=%d out=%q", r.code, r.stdout)
	}
	if r := run(t, cfg, "ls"); !strings.Contains(r.stdout, "no items") {
		t.Errorf("want empty list:\n%s", r.stdout)
	}
}

func TestLabels(t *testing.T) {
	cfg := newConfig(t)

	if r := run(t, cfg, "label", "ls"); !strings.Contains(r.stdout, "no labels") {
		t.Errorf("label ls on empty store: %q", r.stdout)
	}
	if r := run(t, cfg, "label", "add", "home"); r.code != 0 || !strings.Contains(r.stdout, "label #1 home") {
		t.Fatalf("label add: code=%d out=%q err=%q", r.code, r.stdout, r.stderr)
	}
	if r := run(t, cfg, "add", "-l", "1", "buy milk"); r.code != 0 {
		t.Fatalf("add with label: code=%d err=%q", r.code, r.stderr)
	}
	if r := run(t, cfg, "ls"); !strings.Contains(r.stdout, "buy milk #home") {
		t.Errorf("label not shown:\n%s", r.stdout)
	}
	if r := run(t, cfg, "add", "-l", "7", "ghost"); r.code != 2 {
		t.Errorf("unknown label: code=%d, want 2", r.code)
	}
	if r := run(t, cfg, "label", "rm", "1"); r.code != 0 {
		t.Fatalf("label rm: code=%d err=%q", r.code, r.stderr)
	}
	if r := run(t, cfg, "ls"); strings.Contains(r.stdout, "#home") {
		t.Errorf("removed label still shown:\n%s", r.stdout)
	}
}

func TestUsageErrors(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want string
	}{
		{"unknown subcommand", []string{"frobnicate"}, "unknown subcommand"},
		{"add without text", []string{"add"}, "usage: todo add"},
		{"add blank text", []string{"add", "  "}, "usage: todo add"},
		{"done without id", []string{"done"}, "usage: todo done"},
		{"done bad id", []string{"done", "x"}, "usage: todo done"},
		{"done unknown id", []string{"done", "99"}, "Hint"},
		{"rm unknown id", []string{"rm", "99"}, "not found"},
		{"label without verb", []string{"label"}, "usage: todo label"},
		{"auth without verb", []string{"auth"}, "usage: todo auth"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := run(t, newConfig(t), tc.args...)
			if r.code != 2 {
				t.Errorf("code = %d, want 2 (stderr %q)", r.code, r.stderr)
			}
			if !strings.Contains(r.stderr, tc.want) {
				t.Errorf("stderr = %q, want it to contain %q", r.stderr, tc.want)
			}
		})
	}
}

func TestHelp(t *testing.T) {
	r := run(t, newConfig(t), "help")
	if r.code != 0 || !strings.Contains(r.stdout, "Subcommands:") {
		t.Errorf("help: code=%d out=%q", r.code, r.stdout)
	}
}

func TestNoArgsStartsApp(t *testing.T) {
	cfg := newConfig(t)
	started := false
	code := Run(context.Background(), nil, Options{
		Config: cfg,
		Stdout: &bytes.Buffer{},
		Stderr: &bytes.Buffer{},
		RunApp: func(_ context.Context, b tui.Backend, _ ...tui.Option) error {
			started = b != nil
			return nil
		},
	})
	if code != 0 || !started {
		t.Errorf("code=%d started=%v", code, started)
	}
}

func TestAuthWithEnvToken(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"alice","exp":4102444800}`))
	t.Setenv("TADA_TOKEN", "Bearer h."+payload+".s")
	cfg := newConfig(t)

	r := run(t, cfg, "auth", "status")
	if r.code != 0 || !strings.Contains(r.stdout, "source: env") {
		t.Errorf("status: code=%d out=%q", r.code, r.stdout)
	}

	r = run(t, cfg, "auth", "whoami")
	if r.code != 0 || !strings.Contains(r.stdout, "sub: alice") {
		t.Errorf("whoami: code=%d out=%q", r.code, r.stdout)
	}

	r = run(t, cfg, "auth", "logout")
	if r.code != 0 || !strings.Contains(r.stdout, "nothing to delete") {
		t.Errorf("logout: code=%d out=%q", r.code, r.stdout)
	}
}

func TestAuthLoginLogout(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("TADA_TOKEN", "")
	cfg := newConfig(t)

	if r := run(t, cfg, "auth", "whoami"); r.code != 2 {
		t.Errorf("whoami before login: code=%d", r.code)
	}

	var out, errOut bytes.Buffer
	code := Run(context.Background(), []string{"auth", "login"}, Options{
		Config: cfg,
		Stdin:  strings.NewReader("opaque-token\n"),
		Stdout: &out,
		Stderr: &errOut,
	})
	if code != 0 {
		t.Fatalf("login: code=%d err=%q", code, errOut.String())
	}

	r := run(t, cfg, "auth", "whoami")
	if !strings.Contains(r.stdout, "Opaque token") || !strings.Contains(r.stdout, "source: file") {
		t.Errorf("whoami after login: %q", r.stdout)
	}
	if r := run(t, cfg, "auth", "logout"); r.code != 0 || !strings.Contains(r.stdout, "logged out") {
		t.Errorf("logout: code=%d out=%q", r.code, r.stdout)
	}
	if r := run(t, cfg, "auth", "status"); !strings.Contains(r.stdout, "not logged in") {
		t.Errorf("status after logout: %q", r.stdout)
	}
}
