// Command goosectl checks preset catalogues and loads them into Redis.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	dbRedis "github.com/goose-osm/goose/internal/db/redis"
	dompreset "github.com/goose-osm/goose/internal/domain/preset"
	logpkg "github.com/goose-osm/goose/internal/logger"
	presetrepo "github.com/goose-osm/goose/internal/repository/preset"
	"github.com/goose-osm/goose/internal/version"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "goosectl:", err)
		os.Exit(1)
	}
}

func redisFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "redis-addr",
			Usage:   "Redis/Valkey address (repeatable)",
			EnvVars: []string{"DATABASE_ADDR"},
			Value:   cli.NewStringSlice("localhost:6379"),
		},
		&cli.StringFlag{
			Name:    "redis-password",
			Usage:   "Redis password",
			EnvVars: []string{"DATABASE_PASSWORD"},
		},
		&cli.StringFlag{
			Name:  "key-prefix",
			Usage: "Key prefix of the preset hashes",
			Value: presetrepo.DefaultKeyPrefix,
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "How long to wait for Redis to become ready",
			Value: 10 * time.Second,
		},
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "goosectl",
		Usage:     "Manage goose search presets",
		Version:   fmt.Sprintf("%s (%s, %s)", version.Version, version.Commit, version.Date),
		Writer:    out,
		ErrWriter: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "validate",
				Usage:     "Parse and compile a preset catalogue file",
				ArgsUsage: "<presets.yaml>",
				Action:    validateCommand,
			},
			{
				Name:      "load",
				Usage:     "Replace the catalogue stored in Redis with a file",
				ArgsUsage: "<presets.yaml>",
				Action:    loadCommand,
				Flags:     redisFlags(),
			},
			{
				Name:      "show",
				Usage:     "Print a compiled preset",
				ArgsUsage: "<preset-id>",
				Action:    showCommand,
				Flags: append(redisFlags(),
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "Read the catalogue from this file instead of Redis",
					},
				),
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	logger, err := logpkg.NewLogger("local", c.String("log-level"))
	if err != nil {
		return err
	}
	c.Context = logpkg.ContextWithLogger(c.Context, logger)
	return nil
}

func validateCommand(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("catalogue file is required")
	}

	catalogue, err := presetrepo.NewFileSource(path).Load(c.Context)
	if err != nil {
		return err
	}
	compiled, err := catalogue.Compile()
	if err != nil {
		return describe(path, err)
	}

	fmt.Fprintf(c.App.Writer, "%s: %d presets, %d filters\n", path, len(compiled), len(catalogue.Filters))
	return nil
}

func loadCommand(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("catalogue file is required")
	}

	catalogue, err := presetrepo.NewFileSource(path).Load(c.Context)
	if err != nil {
		return err
	}

	source, closeFn, err := openRedis(c)
	if err != nil {
		return err
	}
	defer closeFn()

	rev, err := source.Save(c.Context, catalogue)
	if err != nil {
		return describe(path, err)
	}

	logpkg.FromContext(c.Context).Info("catalogue loaded", zap.String("path", path), zap.Int64("revision", rev))
	fmt.Fprintf(c.App.Writer, "loaded %d presets from %s, revision %d\n", len(catalogue.Presets), path, rev)
	return nil
}

func showCommand(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("preset id is required")
	}

	var source presetrepo.Source
	if path := c.String("file"); path != "" {
		source = presetrepo.NewFileSource(path)
	} else {
		rs, closeFn, err := openRedis(c)
		if err != nil {
			return err
		}
		defer closeFn()
		source = rs
	}

	p, err := presetrepo.NewStore(source).Get(c.Context, id)
	if err != nil {
		return err
	}
	printPreset(c.App.Writer, p)
	return nil
}

func openRedis(c *cli.Context) (*presetrepo.RedisSource, func(), error) {
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    c.StringSlice("redis-addr"),
		Password: c.String("redis-password"),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	if err := store.WaitForReady(c.Context, c.Duration("timeout")); err != nil {
		store.Close()
		return nil, nil, err
	}
	return presetrepo.NewRedisSource(store, c.String("key-prefix")), store.Close, nil
}

func describe(path string, err error) error {
	return fmt.Errorf("%s: %w", path, err)
}

func printPreset(w io.Writer, p *dompreset.CategoryPreset) {
	fmt.Fprintf(w, "%s  %s\n", p.ID, p.Name)

	selectors := make([]string, len(p.FeatureKeys))
	for i, k := range p.FeatureKeys {
		selectors[i] = k.Selector()
	}
	fmt.Fprintf(w, "  features: %s\n", strings.Join(selectors, " "))

	for _, r := range p.Render {
		fmt.Fprintf(w, "  render:   %s <- %s\n", r.Label, r.Key)
	}
	for _, f := range p.Filters {
		slugs := make([]string, 0, len(f.Clauses))
		for _, cl := range f.Clauses {
			slugs = append(slugs, cl.Slug)
		}
		fmt.Fprintf(w, "  filter:   %s [%s]\n", f.Name, strings.Join(slugs, ", "))
	}
}
