package main

import (
	"flag"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/hupe1980/lidisk"
	"github.com/hupe1980/lidisk/config"
)

// commonFlags are shared by every subcommand. Flags override the config
// file and the environment, in that order.
type commonFlags struct {
	configFile string
	fs         *flag.FlagSet
	set        map[string]func(*config.Config) error
}

func newFlagSet(name string) *commonFlags {
	c := &commonFlags{
		fs:  flag.NewFlagSet(name, flag.ContinueOnError),
		set: make(map[string]func(*config.Config) error),
	}
	c.fs.StringVar(&c.configFile, "config", "", "Path to configuration file (YAML or JSON)")

	c.str("data-dir", "Dataset directory", func(cfg *config.Config, v string) error { cfg.DataDir = v; return nil })
	c.str("strategy", "Fetch strategy: direct, mmap", func(cfg *config.Config, v string) error { cfg.Layout.Strategy = v; return nil })
	c.str("compression", "Layout: none, aligned, sequential", func(cfg *config.Config, v string) error { cfg.Layout.Compression = v; return nil })
	c.str("search", "Last-mile search: binary, linear", func(cfg *config.Config, v string) error { cfg.Layout.SearchMode = v; return nil })
	c.str("index", "Index model: rmi, btree", func(cfg *config.Config, v string) error { cfg.Index.Kind = config.IndexKind(v); return nil })
	c.str("workload", "Workload file (.zst, .lz4, .sz or raw)", func(cfg *config.Config, v string) error { cfg.Workload.Path = v; return nil })
	c.str("csv", "Append result rows to this CSV file", func(cfg *config.Config, v string) error { cfg.Report.CSV = v; return nil })
	c.str("sqlite", "Store result rows in this SQLite database", func(cfg *config.Config, v string) error { cfg.Report.SQLite = v; return nil })
	c.str("prom", "Write Prometheus metrics to this textfile", func(cfg *config.Config, v string) error { cfg.Report.Prometheus = v; return nil })
	c.str("log-level", "Log level: debug, info, warn, error", func(cfg *config.Config, v string) error { cfg.Log.Level = v; return nil })

	c.num("threads", "Worker count (0 = one per CPU)", func(cfg *config.Config, v string) (err error) {
		cfg.Threads, err = strconv.Atoi(v)
		return err
	})
	c.num("lookups", "Number of lookups", func(cfg *config.Config, v string) (err error) {
		cfg.Workload.Lookups, err = strconv.Atoi(v)
		return err
	})
	c.num("items", "Dataset records", func(cfg *config.Config, v string) (err error) {
		cfg.Dataset.Items, err = strconv.ParseUint(v, 10, 64)
		return err
	})
	c.num("granularity", "Prediction granularity in items", func(cfg *config.Config, v string) (err error) {
		cfg.Layout.Granularity, err = strconv.ParseUint(v, 10, 64)
		return err
	})
	c.num("seed", "Random seed", func(cfg *config.Config, v string) (err error) {
		cfg.Seed, err = strconv.ParseInt(v, 10, 64)
		return err
	})
	c.str("diffs", "Comma-separated stress interval widths", func(cfg *config.Config, v string) error {
		var diffs []uint64
		for _, s := range strings.Split(v, ",") {
			d, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
			if err != nil {
				return fmt.Errorf("diffs: %w", err)
			}
			diffs = append(diffs, d)
		}
		cfg.Workload.Diffs = diffs
		return nil
	})
	c.boolean("cold", "Evict the dataset from the page cache before every run", func(cfg *config.Config, v bool) { cfg.Workload.ColdCache = v })
	c.boolean("residency", "Count non-resident mapped pages as I/O", func(cfg *config.Config, v bool) { cfg.Layout.TrackResidency = v })
	c.boolean("in-memory", "Treat the dataset as memory resident (stress runs on one worker)", func(cfg *config.Config, v bool) { cfg.Dataset.OnDisk = !v })
	return c
}

func (c *commonFlags) str(name, usage string, apply func(*config.Config, string) error) {
	v := c.fs.String(name, "", usage)
	c.set[name] = func(cfg *config.Config) error { return apply(cfg, *v) }
}

func (c *commonFlags) num(name, usage string, apply func(*config.Config, string) error) {
	c.str(name, usage, apply)
}

func (c *commonFlags) boolean(name, usage string, apply func(*config.Config, bool)) {
	v := c.fs.Bool(name, false, usage)
	c.set[name] = func(cfg *config.Config) error { apply(cfg, *v); return nil }
}

// load parses args and resolves the configuration.
func (c *commonFlags) load(args []string) (*config.Config, error) {
	if err := c.fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := config.DefaultConfig()
	if c.configFile != "" {
		var err error
		if cfg, err = config.LoadFromFile(c.configFile); err != nil {
			return nil, err
		}
	}
	if err := config.LoadFromEnv(cfg); err != nil {
		return nil, err
	}

	var errs []error
	c.fs.Visit(func(f *flag.Flag) {
		if apply, ok := c.set[f.Name]; ok {
			if err := apply(cfg); err != nil {
				errs = append(errs, fmt.Errorf("-%s: %w", f.Name, err))
			}
		}
	})
	if len(errs) > 0 {
		return nil, errs[0]
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*lidisk.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	if strings.EqualFold(cfg.Log.Format, "json") {
		return lidisk.NewJSONLogger(level), nil
	}
	return lidisk.NewTextLogger(level), nil
}
