package command

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/joeycumines/go-prompt"
	istrings "github.com/joeycumines/go-prompt/strings"
	"github.com/urfave/cli/v2"

	"redis_browser/internal/config"
	"redis_browser/internal/session"
)

const shellHelp = `commands:
  connect [PROFILE]    open a session (flags, PROFILE or environment)
  search [SUBSTRING]   list keys containing SUBSTRING
  refresh              list all keys
  select KEY           show a value
  edit KEY             start editing a value
  text TEXT            replace the pending text (\n for newlines)
  commit | cancel      finish the edit
  add KEY [TEXT]       create a key
  del KEY              delete a key
  theme                toggle the theme
  state                show the session state
  disconnect           close the session
  quit                 leave the shell
`

func (r *runner) shellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Interactive browser session",
		Action: func(c *cli.Context) error {
			ctl, err := r.newController(c)
			if err != nil {
				return err
			}
			defer ctl.Disconnect()

			sh := &shell{r: r, c: c, ctl: ctl}
			return sh.run(c.Context)
		},
	}
}

var shellVerbs = []prompt.Suggest{
	{Text: "connect", Description: "open a session"},
	{Text: "search", Description: "list keys containing a substring"},
	{Text: "refresh", Description: "list all keys"},
	{Text: "select", Description: "show a value"},
	{Text: "edit", Description: "start editing a value"},
	{Text: "text", Description: "replace the pending text"},
	{Text: "commit", Description: "write the pending text"},
	{Text: "cancel", Description: "drop the pending text"},
	{Text: "add", Description: "create a key"},
	{Text: "del", Description: "delete a key"},
	{Text: "theme", Description: "toggle the theme"},
	{Text: "state", Description: "show the session state"},
	{Text: "disconnect", Description: "close the session"},
	{Text: "help", Description: "list commands"},
	{Text: "quit", Description: "leave the shell"},
}

type shell struct {
	r    *runner
	c    *cli.Context
	ctl  *session.Controller
	quit bool
}

func (sh *shell) run(ctx context.Context) error {
	reader, writer := promptIO(sh.r.in, sh.r.out)

	executor := func(line string) {
		line = strings.TrimSpace(line)
		if line == "" {
			return
		}
		quit, err := sh.exec(ctx, line)
		if err != nil {
			sh.r.printf("error: %v\n", err)
		}
		sh.quit = quit
	}

	p := prompt.New(
		executor,
		prompt.WithPrefix("redis-browser> "),
		prompt.WithReader(reader),
		prompt.WithWriter(writer),
		prompt.WithCompleter(sh.complete),
		prompt.WithExitChecker(func(in string, breakline bool) bool {
			return breakline && sh.quit
		}),
	)
	p.Run()
	return ctx.Err()
}

// complete suggests verbs for the first word only
func (sh *shell) complete(d prompt.Document) ([]prompt.Suggest, istrings.RuneNumber, istrings.RuneNumber) {
	word := d.Text
	end := istrings.RuneNumber(utf8.RuneCountInString(word))
	if strings.ContainsRune(word, ' ') {
		return nil, end, end
	}

	var out []prompt.Suggest
	for _, s := range shellVerbs {
		if strings.HasPrefix(s.Text, strings.ToLower(word)) {
			out = append(out, s)
		}
	}
	return out, 0, end
}

func (sh *shell) exec(ctx context.Context, line string) (bool, error) {
	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	ctl := sh.ctl

	switch strings.ToLower(verb) {
	case "quit", "exit":
		return true, nil

	case "help", "?":
		sh.r.printf("%s", shellHelp)

	case "connect":
		if rest != "" {
			if err := sh.c.Set("profile", rest); err != nil {
				return false, err
			}
		}
		cfg, err := sh.r.connectionConfig(sh.c)
		if err != nil {
			return false, err
		}
		if err := ctl.Connect(ctx, cfg); err != nil {
			return false, err
		}
		sh.r.printf("connected to %s\n", cfg.Addr())

	case "search", "refresh":
		entries, err := ctl.Search(ctx, rest)
		if err != nil {
			return false, err
		}
		for _, entry := range entries {
			sh.r.printf("%s\n", entry.Name)
		}
		if ctl.ListingTruncated() {
			sh.r.printf("(%d keys shown, more match)\n", len(entries))
		} else {
			sh.r.printf("(%d keys)\n", len(entries))
		}

	case "select", "get":
		if rest == "" {
			return false, errors.New("usage: select KEY")
		}
		rec, err := ctl.SelectKey(ctx, rest)
		if err != nil {
			return false, err
		}
		sh.r.printRecord(rec)

	case "edit":
		if rest == "" {
			return false, errors.New("usage: edit KEY")
		}
		edit, err := ctl.BeginEdit(ctx, rest)
		if err != nil {
			return false, err
		}
		sh.r.printf("%s\n", edit.PendingText)

	case "text":
		if err := ctl.UpdateEdit(strings.ReplaceAll(rest, `\n`, "\n")); err != nil {
			return false, err
		}

	case "commit":
		if err := ctl.CommitEdit(ctx); err != nil {
			return false, err
		}
		sh.r.printf("OK\n")

	case "cancel":
		if err := ctl.CancelEdit(); err != nil {
			return false, err
		}

	case "add":
		key, text, _ := strings.Cut(rest, " ")
		if key == "" {
			return false, errors.New("usage: add KEY [TEXT]")
		}
		if err := ctl.AddKey(ctx, key, text); err != nil {
			return false, err
		}
		sh.r.printf("OK\n")

	case "del", "delete":
		if rest == "" {
			return false, errors.New("usage: del KEY")
		}
		outcome, err := ctl.DeleteKey(ctx, rest)
		if err != nil {
			return false, err
		}
		sh.r.printf("%s %s\n", rest, outcome)

	case "theme":
		theme := ctl.ToggleTheme()
		sh.saveTheme()
		sh.r.printf("theme %s\n", theme)

	case "state":
		sh.r.printf("state=%s link=%s theme=%s selected=%q stale=%t\n", ctl.State(), ctl.ConnectionState(), ctl.Theme(), ctl.Selected(), ctl.ListingStale())
		if edit := ctl.Edit(); edit != nil {
			sh.r.printf("editing %s dirty=%t\n", edit.Key, edit.Dirty)
		}
		if err := ctl.LastError(); err != nil {
			sh.r.printf("last error: %v\n", err)
		}

	case "disconnect":
		if err := ctl.Disconnect(); err != nil {
			return false, err
		}

	default:
		return false, errors.New("unknown command " + verb + ", try help")
	}
	return false, nil
}

// saveTheme records the theme preference in the profiles file
func (sh *shell) saveTheme() {
	path := sh.r.profilesPath(sh.c)
	pf, err := config.LoadProfiles(path)
	if err == nil {
		pf.Theme = sh.ctl.Theme()
		err = pf.Save(path)
	}
	if err != nil {
		sh.r.log.Warn().Err(err).Str("path", path).Msg("Theme not saved")
	}
}
