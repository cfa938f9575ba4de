package main

import (
	"context"
	"fmt"
	"os"

	"github.com/hupe1980/lidisk"
	"github.com/hupe1980/lidisk/config"
	"github.com/hupe1980/lidisk/index"
	"github.com/hupe1980/lidisk/report"
	"github.com/hupe1980/lidisk/workload"
)

func runGen(ctx context.Context, args []string) error {
	flags := newFlagSet("gen")
	maxGap := flags.fs.Uint64("max-gap", 0, "Largest gap between consecutive keys (0 = config value)")
	cfg, err := flags.load(args)
	if err != nil {
		return err
	}
	if *maxGap > 0 {
		cfg.Dataset.MaxGap = *maxGap
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	p, err := cfg.Params()
	if err != nil {
		return err
	}
	records := workload.Generate(int(cfg.Dataset.Items), cfg.Dataset.MaxGap, cfg.Seed)
	b, err := lidisk.Create(p, records, lidisk.WithLogger(log), lidisk.WithSeed(cfg.Seed))
	if err != nil {
		return err
	}
	defer b.Close()

	ds := b.Dataset()
	log.InfoContext(ctx, "dataset written",
		"path", p.Path(),
		"items", len(records),
		"file_bytes", ds.FileBytes,
		"compression", p.Compression.String(),
	)

	if cfg.Workload.Path == "" {
		return nil
	}
	lookups, err := b.Lookups(cfg.Workload.Lookups)
	if err != nil {
		return err
	}
	if err := workload.Save(nil, cfg.Workload.Path, lookups); err != nil {
		return err
	}
	log.InfoContext(ctx, "workload written", "path", cfg.Workload.Path, "lookups", len(lookups), "codec", workload.CodecFor(cfg.Workload.Path))
	return nil
}

func runLookup(ctx context.Context, args []string) error {
	return runModel(ctx, "lookup", args, (*lidisk.Bench).RunLookups)
}

func runMemory(ctx context.Context, args []string) error {
	return runModel(ctx, "memory", args, (*lidisk.Bench).RunMemoryLookups)
}

type modelRun func(b *lidisk.Bench, ctx context.Context, idx index.Index, l workload.Lookups) (report.Row, error)

func runModel(ctx context.Context, name string, args []string, run modelRun) error {
	flags := newFlagSet(name)
	cfg, err := flags.load(args)
	if err != nil {
		return err
	}

	s, err := open(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.close()

	idx, err := buildIndex(s.bench, cfg)
	if err != nil {
		return err
	}
	lookups, err := loadLookups(s.bench, cfg)
	if err != nil {
		return err
	}

	if _, err := run(s.bench, ctx, idx, lookups); err != nil {
		return err
	}
	return s.flush()
}

func runStress(ctx context.Context, args []string) error {
	flags := newFlagSet("stress")
	cfg, err := flags.load(args)
	if err != nil {
		return err
	}

	s, err := open(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.close()

	for _, diff := range cfg.Workload.Diffs {
		if _, err := s.bench.RunDiskStress(ctx, cfg.Workload.Lookups, diff); err != nil {
			return err
		}
	}
	return s.flush()
}

func runConfig(_ context.Context, args []string) error {
	flags := newFlagSet("config")
	asYAML := flags.fs.Bool("yaml", false, "Print the configuration as YAML")
	cfg, err := flags.load(args)
	if err != nil {
		return err
	}
	if *asYAML {
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	}
	return cfg.WriteBanner(os.Stdout)
}

func buildIndex(b *lidisk.Bench, cfg *config.Config) (index.Index, error) {
	switch cfg.Index.Kind {
	case config.IndexBTree:
		return b.BuildBTree(cfg.Index.Degree)
	case config.IndexRMI:
		return b.TrainRMI(cfg.Index.Fanout)
	}
	return nil, fmt.Errorf("unknown index kind %q", cfg.Index.Kind)
}

func loadLookups(b *lidisk.Bench, cfg *config.Config) (workload.Lookups, error) {
	if cfg.Workload.Path != "" {
		return workload.Load(nil, cfg.Workload.Path)
	}
	return b.Lookups(cfg.Workload.Lookups)
}
