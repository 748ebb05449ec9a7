// Package command wires the store browser into a command-line application.
//
// Every subcommand opens its own session, runs one operation through the
// session controller and disconnects. The shell subcommand keeps one
// controller alive and reads operations line by line.
package command

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"redis_browser/internal/codec"
	"redis_browser/internal/config"
	"redis_browser/internal/search"
	"redis_browser/internal/session"
	"redis_browser/internal/store"
	"redis_browser/pkg"
	"redis_browser/src"
)

// Version is set via ldflags
var Version = "dev"

// Deps carries what the commands need from main
type Deps struct {
	Config *src.Config
	Logger zerolog.Logger
	In     io.Reader
	Out    io.Writer
}

type runner struct {
	cfg *src.Config
	log zerolog.Logger
	in  io.Reader
	out io.Writer
}

// App creates the CLI application
func App(deps Deps) *cli.App {
	r := &runner{
		cfg: deps.Config,
		log: deps.Logger,
		in:  deps.In,
		out: deps.Out,
	}
	if r.cfg == nil {
		r.cfg = &src.Config{}
	}
	if r.in == nil {
		r.in = os.Stdin
	}
	if r.out == nil {
		r.out = os.Stdout
	}

	return &cli.App{
		Name:      "redis-browser",
		Usage:     "Browse, search and edit keys in a Redis-compatible store",
		Version:   Version,
		Flags:     globalFlags(),
		Reader:    r.in,
		Writer:    r.out,
		ErrWriter: r.out,
		// main decides the exit code
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			r.pingCommand(),
			r.getCommand(),
			r.setCommand(),
			r.addCommand(),
			r.delCommand(),
			r.searchCommand(),
			r.profileCommand(),
			r.shellCommand(),
		},
	}
}

// globalFlags returns the connection flags. Unset flags fall back to the
// selected or default profile, then to the environment.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "host",
			Usage: "store host (default REDIS_HOST or 127.0.0.1)",
		},
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "store port (default REDIS_PORT or 6379)",
		},
		&cli.StringFlag{
			Name:    "username",
			Aliases: []string{"u"},
			Usage:   "ACL username",
		},
		&cli.StringFlag{
			Name:    "password",
			Aliases: []string{"a"},
			Usage:   "password",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "connect and command timeout (default REDIS_TIMEOUT or 5s)",
		},
		&cli.StringFlag{
			Name:  "profile",
			Usage: "named connection profile",
		},
		&cli.StringFlag{
			Name:    "profiles-file",
			Usage:   "profiles file",
			EnvVars: []string{"PROFILES_FILE"},
			Value:   "profiles.yaml",
		},
	}
}

func (r *runner) profilesPath(c *cli.Context) string {
	if c.IsSet("profiles-file") || r.cfg.UIConfig.ProfilesFile == "" {
		return c.String("profiles-file")
	}
	return r.cfg.UIConfig.ProfilesFile
}

// connectionConfig resolves environment, then profile, then flags. The
// default profile is used when --profile is absent.
func (r *runner) connectionConfig(c *cli.Context) (pkg.ConnectionConfig, error) {
	cfg := pkg.DefaultConnectionConfig()
	if r.cfg.StoreConfig.Host != "" || r.cfg.StoreConfig.URL != "" {
		envCfg, err := r.cfg.ConnectionConfig()
		if err != nil {
			return pkg.ConnectionConfig{}, err
		}
		cfg = envCfg
	}

	pf, err := config.LoadProfiles(r.profilesPath(c))
	if err != nil {
		return pkg.ConnectionConfig{}, err
	}
	// without --profile the default profile applies, if one was saved
	if name := c.String("profile"); name != "" || pf.DefaultProfile != "" {
		if cfg, err = pf.Profile(name); err != nil {
			return pkg.ConnectionConfig{}, err
		}
	}

	if c.IsSet("host") {
		cfg.Host = c.String("host")
	}
	if c.IsSet("port") {
		cfg.Port = c.Int("port")
	}
	if c.IsSet("username") {
		cfg.Username = c.String("username")
	}
	if c.IsSet("password") {
		cfg.Password = c.String("password")
	}
	if c.IsSet("timeout") {
		cfg.Timeout = c.Duration("timeout")
	}
	return cfg, cfg.Validate()
}

func (r *runner) theme(c *cli.Context) pkg.Theme {
	if pf, err := config.LoadProfiles(r.profilesPath(c)); err == nil && pf.Theme != "" {
		return pkg.ParseTheme(string(pf.Theme))
	}
	return pkg.ParseTheme(r.cfg.UIConfig.Theme)
}

func (r *runner) newController(c *cli.Context) (*session.Controller, error) {
	sc := r.cfg.StoreConfig
	cd, err := codec.Lookup(sc.ValueCodec)
	if err != nil {
		return nil, err
	}

	opts := []session.Option{
		session.WithCodec(cd),
		session.WithSearch(search.New(search.WithBatchSize(sc.ScanBatchSize), search.WithLogger(r.log))),
		session.WithLogger(r.log),
		session.WithTheme(r.theme(c)),
	}
	if sc.ListLimit > 0 {
		opts = append(opts, session.WithListLimit(sc.ListLimit))
	}
	return session.New(store.NewDialer(r.log), opts...), nil
}

// open connects a fresh controller with the resolved configuration
func (r *runner) open(c *cli.Context) (*session.Controller, error) {
	cfg, err := r.connectionConfig(c)
	if err != nil {
		return nil, err
	}
	ctl, err := r.newController(c)
	if err != nil {
		return nil, err
	}
	if err := ctl.Connect(c.Context, cfg); err != nil {
		return nil, err
	}
	return ctl, nil
}

func (r *runner) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}
