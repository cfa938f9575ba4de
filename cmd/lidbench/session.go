package main

import (
	"context"
	"os"

	"github.com/hupe1980/lidisk"
	"github.com/hupe1980/lidisk/config"
	"github.com/hupe1980/lidisk/report"
)

// session is an opened bench plus the sinks it reports to.
type session struct {
	bench *lidisk.Bench
	prom  *report.PrometheusSink
	path  string
}

func open(ctx context.Context, cfg *config.Config) (*session, error) {
	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	p, err := cfg.Params()
	if err != nil {
		return nil, err
	}

	var sinks report.Multi
	closeSinks := func() { _ = sinks.Close() }

	if cfg.Report.CSV != "" {
		s, err := report.NewCSVSink(nil, cfg.Report.CSV)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if cfg.Report.SQLite != "" {
		s, err := report.NewSQLiteSink(ctx, cfg.Report.SQLite)
		if err != nil {
			closeSinks()
			return nil, err
		}
		sinks = append(sinks, s)
	}
	sess := &session{path: cfg.Report.Prometheus}
	if sess.path != "" {
		sess.prom = report.NewPrometheusSink()
		sinks = append(sinks, sess.prom)
	}

	b, err := lidisk.Open(p,
		lidisk.WithLogger(log),
		lidisk.WithWorkers(cfg.Threads),
		lidisk.WithSeed(cfg.Seed),
		lidisk.WithColdCache(cfg.Workload.ColdCache),
		lidisk.WithLimits(cfg.Limits.MemoryLimitBytes, cfg.Limits.IOLimitPagesPerSec, cfg.Limits.IOBurstPages),
		lidisk.WithReportSink(sinks),
		lidisk.WithConsole(os.Stdout),
	)
	if err != nil {
		closeSinks()
		return nil, err
	}
	sess.bench = b
	return sess, nil
}

// flush writes the Prometheus textfile, if one is configured.
func (s *session) flush() error {
	if s.prom == nil {
		return nil
	}
	return s.prom.WriteToTextfile(s.path)
}

func (s *session) close() {
	_ = s.bench.Close()
}
