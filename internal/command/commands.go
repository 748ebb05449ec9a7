package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"redis_browser/internal/config"
	"redis_browser/internal/session"
	"redis_browser/internal/store"
	"redis_browser/pkg"
)

func (r *runner) pingCommand() *cli.Command {
	return &cli.Command{
		Name:  "ping",
		Usage: "Check that the store is reachable with the given credentials",
		Action: func(c *cli.Context) error {
			cfg, err := r.connectionConfig(c)
			if err != nil {
				return err
			}
			if err := store.Probe(c.Context, cfg, store.WithLogger(r.log)); err != nil {
				return err
			}
			r.printf("PONG %s\n", cfg.Addr())
			return nil
		},
	}
}

func (r *runner) getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Print the value stored at a key",
		ArgsUsage: "KEY",
		Action: func(c *cli.Context) error {
			key := c.Args().First()
			if key == "" {
				return errors.New("usage: get KEY")
			}
			ctl, err := r.open(c)
			if err != nil {
				return err
			}
			defer ctl.Disconnect()

			rec, err := ctl.SelectKey(c.Context, key)
			if err != nil {
				return err
			}
			r.printRecord(rec)
			return nil
		},
	}
}

func (r *runner) printRecord(rec *pkg.ValueRecord) {
	if cerr := rec.CodecErr(); cerr != nil {
		r.printf("# not decodable (%v), showing raw bytes\n", cerr)
	}
	r.printf("%s\n", session.RenderRecord(rec))
}

func (r *runner) setCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Replace the value of an existing key, keeping its value type",
		ArgsUsage: "KEY TEXT",
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return errors.New("usage: set KEY TEXT")
			}
			key, text := c.Args().First(), strings.Join(c.Args().Tail(), " ")

			ctl, err := r.open(c)
			if err != nil {
				return err
			}
			defer ctl.Disconnect()

			if _, err := ctl.BeginEdit(c.Context, key); err != nil {
				return err
			}
			if err := ctl.UpdateEdit(text); err != nil {
				return err
			}
			dirty := ctl.Edit().Dirty
			if err := ctl.CommitEdit(c.Context); err != nil {
				return err
			}
			if !dirty {
				r.printf("%s unchanged\n", key)
				return nil
			}
			r.printf("OK\n")
			return nil
		},
	}
}

func (r *runner) addCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Create a key holding a string value",
		ArgsUsage: "KEY [TEXT]",
		Action: func(c *cli.Context) error {
			key := c.Args().First()
			if key == "" {
				return errors.New("usage: add KEY [TEXT]")
			}
			ctl, err := r.open(c)
			if err != nil {
				return err
			}
			defer ctl.Disconnect()

			if err := ctl.AddKey(c.Context, key, strings.Join(c.Args().Tail(), " ")); err != nil {
				return err
			}
			r.printf("OK\n")
			return nil
		},
	}
}

func (r *runner) delCommand() *cli.Command {
	return &cli.Command{
		Name:      "del",
		Aliases:   []string{"delete"},
		Usage:     "Delete keys",
		ArgsUsage: "KEY...",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return errors.New("usage: del KEY...")
			}
			ctl, err := r.open(c)
			if err != nil {
				return err
			}
			defer ctl.Disconnect()

			for _, key := range c.Args().Slice() {
				outcome, err := ctl.DeleteKey(c.Context, key)
				if err != nil {
					return err
				}
				r.printf("%s %s\n", key, outcome)
			}
			return nil
		},
	}
}

func (r *runner) searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Aliases:   []string{"keys"},
		Usage:     "List keys containing a substring, streaming as they are found",
		ArgsUsage: "[SUBSTRING]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "stop after this many keys (0 for all)",
			},
		},
		Action: func(c *cli.Context) error {
			ctl, err := r.open(c)
			if err != nil {
				return err
			}
			defer ctl.Disconnect()

			res, err := ctl.Stream(c.Context, c.Args().First())
			if err != nil {
				return err
			}
			limit, n := c.Int("limit"), 0
			for entry, err := range res.All(c.Context) {
				if err != nil {
					return err
				}
				r.printf("%s\n", entry.Name)
				n++
				if limit > 0 && n >= limit {
					break
				}
			}
			r.log.Debug().Int("keys", n).Int("pages", res.Pages()).Msg("Search finished")
			return nil
		},
	}
}

func (r *runner) profileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Manage saved connection profiles",
		Subcommands: []*cli.Command{
			{
				Name:      "save",
				Usage:     "Save the current connection flags under a name",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "default",
						Usage: "make this the default profile",
					},
				},
				Action: func(c *cli.Context) error {
					name := c.Args().First()
					if name == "" {
						return errors.New("usage: profile save NAME")
					}
					cfg, err := r.connectionConfig(c)
					if err != nil {
						return err
					}
					path := r.profilesPath(c)
					pf, err := config.LoadProfiles(path)
					if err != nil {
						return err
					}
					if err := pf.Upsert(name, cfg); err != nil {
						return err
					}
					if c.Bool("default") {
						pf.DefaultProfile = name
					}
					if err := pf.Save(path); err != nil {
						return err
					}
					r.printf("saved profile %s (%s)\n", name, cfg.Addr())
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "List saved profiles",
				Action: func(c *cli.Context) error {
					pf, err := config.LoadProfiles(r.profilesPath(c))
					if err != nil {
						return err
					}
					for _, name := range pf.Names() {
						mark := " "
						if name == pf.DefaultProfile {
							mark = "*"
						}
						cfg := pf.Profiles[name]
						r.printf("%s %s\t%s\n", mark, name, describe(cfg))
					}
					return nil
				},
			},
		},
	}
}

func describe(cfg pkg.ConnectionConfig) string {
	if cfg.Username != "" {
		return fmt.Sprintf("%s@%s timeout=%s", cfg.Username, cfg.Addr(), cfg.Timeout)
	}
	return fmt.Sprintf("%s timeout=%s", cfg.Addr(), cfg.Timeout)
}
