package cli

import (
	"bufio"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Makepad-fr/tada/internal/auth"
	"github.com/Makepad-fr/tada/internal/ui"
)

func (r *runner) auth(a []string) int {
	const usage = "usage: todo auth <login|logout|status|whoami>"
	if len(a) != 1 {
		r.fail(usage)
		return 2
	}
	switch a[0] {
	case "login":
		return r.authLogin()
	case "logout":
		return r.authLogout()
	case "status":
		return r.authStatus()
	case "whoami":
		return r.authWhoAmI()
	}
	r.fail(usage)
	return 2
}

func (r *runner) authLogin() int {
	fmt.Fprint(r.opt.Stdout, "Paste your token: ")
	line, err := bufio.NewReader(r.opt.Stdin).ReadString('\n')
	token := strings.TrimSpace(line)
	if token == "" {
		if err != nil {
			r.fail("read token: " + err.Error())
		} else {
			r.fail("empty token")
		}
		return 1
	}
	if err := auth.Set(token, nil); err != nil {
		r.fail("save token: " + err.Error())
		return 1
	}
	r.logger.Debug("token saved")
	r.ok("logged in")
	return 0
}

func (r *runner) authLogout() int {
	ti, _ := auth.Get()
	if ti != nil && ti.Source == "env" {
		r.ok("token is provided by " + auth.EnvToken + " env var (nothing to delete)")
		return 0
	}
	if err := auth.Delete(); err != nil {
		r.fail("logout: " + err.Error())
		return 1
	}
	r.ok("logged out")
	return 0
}

func (r *runner) authStatus() int {
	out := r.opt.Stdout
	ti, err := auth.Get()
	if err != nil {
		r.fail("read token: " + err.Error())
		return 1
	}
	if ti == nil {
		fmt.Fprintln(out, ui.Current().Muted.Render("not logged in"))
		fmt.Fprintln(out, "Run: todo auth login")
		return 0
	}
	fmt.Fprintf(out, "source: %s\n", ti.Source)
	switch {
	case ti.ExpiresAt == nil:
		fmt.Fprintln(out, "expires: (unknown)")
	case ti.Expired(time.Now()):
		fmt.Fprintf(out, "expires: %s %s\n", ti.ExpiresAt.UTC().Format(time.RFC3339), ui.Current().Error.Render("(expired)"))
	default:
		fmt.Fprintf(out, "expires: %s\n", ti.ExpiresAt.UTC().Format(time.RFC3339))
	}
	fmt.Fprintln(out, "env override: "+auth.EnvToken)
	return 0
}

func (r *runner) authWhoAmI() int {
	out := r.opt.Stdout
	ti, _ := auth.Get()
	if ti == nil {
		r.fail("not logged in. Run: todo auth login")
		return 2
	}
	claims, err := auth.Claims(ti.Token)
	if err != nil {
		fmt.Fprintln(out, "Opaque token (cannot introspect locally).")
		fmt.Fprintln(out, "source:", ti.Source)
		return 0
	}
	keys := make([]string, 0, len(claims))
	for k := range claims {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintln(out, "JWT payload:")
	for _, k := range keys {
		fmt.Fprintf(out, "  %s: %v\n", k, claims[k])
	}
	return 0
}
