// Package config provides the run configuration of the lidisk benchmark:
// dataset layout, fetch strategy, workload, index model, limits and report
// sinks.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/lidisk/internal/resource"
	"github.com/hupe1980/lidisk/layout"
)

// IndexKind selects the reference index model.
type IndexKind string

const (
	IndexRMI   IndexKind = "rmi"
	IndexBTree IndexKind = "btree"
)

// Config holds the configuration of a benchmark run.
type Config struct {
	// DataDir holds the dataset, its block directory and workload files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Threads is the worker count; 0 means one per CPU
	Threads int `json:"threads" yaml:"threads"`

	// Seed drives key generation, workload sampling and the stress shuffle
	Seed int64 `json:"seed" yaml:"seed"`

	Dataset  DatasetConfig  `json:"dataset" yaml:"dataset"`
	Layout   LayoutConfig   `json:"layout" yaml:"layout"`
	Workload WorkloadConfig `json:"workload" yaml:"workload"`
	Index    IndexConfig    `json:"index" yaml:"index"`
	Limits   LimitsConfig   `json:"limits" yaml:"limits"`
	Report   ReportConfig   `json:"report" yaml:"report"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

// DatasetConfig describes the generated dataset.
type DatasetConfig struct {
	FileName string `json:"file_name" yaml:"file_name"`

	// Items is the number of records
	Items uint64 `json:"items" yaml:"items"`

	// MaxGap bounds the distance between consecutive generated keys
	MaxGap uint64 `json:"max_gap" yaml:"max_gap"`

	// OnDisk is false when the dataset is expected to be page-cache resident
	OnDisk bool `json:"on_disk" yaml:"on_disk"`
}

// LayoutConfig holds the physical layout and access parameters.
type LayoutConfig struct {
	PageBytes   int    `json:"page_bytes" yaml:"page_bytes"`
	RecordBytes int    `json:"record_bytes" yaml:"record_bytes"`
	Granularity uint64 `json:"granularity" yaml:"granularity"`

	// Strategy is direct or mmap
	Strategy string `json:"strategy" yaml:"strategy"`

	// Compression is none, aligned or sequential
	Compression string `json:"compression" yaml:"compression"`

	// SearchMode is binary or linear
	SearchMode string `json:"search_mode" yaml:"search_mode"`

	PoolPages        int  `json:"pool_pages" yaml:"pool_pages"`
	MaxQualifying    int  `json:"max_qualifying" yaml:"max_qualifying"`
	MaxPayloadLength int  `json:"max_payload_length" yaml:"max_payload_length"`
	BlockItems       int  `json:"block_items" yaml:"block_items"`
	TrackResidency   bool `json:"track_residency" yaml:"track_residency"`
}

// WorkloadConfig holds lookup generation and stress settings.
type WorkloadConfig struct {
	// Path of a saved workload; empty means sample one uniformly
	Path string `json:"path" yaml:"path"`

	Lookups int `json:"lookups" yaml:"lookups"`

	// Diffs are the stress interval widths, one run each
	Diffs []uint64 `json:"diffs" yaml:"diffs"`

	// ColdCache evicts the dataset from the page cache before every run
	ColdCache bool `json:"cold_cache" yaml:"cold_cache"`
}

// IndexConfig selects and tunes the index model.
type IndexConfig struct {
	Kind   IndexKind `json:"kind" yaml:"kind"`
	Fanout int       `json:"fanout" yaml:"fanout"`
	Degree int       `json:"degree" yaml:"degree"`
}

// LimitsConfig bounds memory and page throughput.
type LimitsConfig struct {
	MemoryLimitBytes   int64   `json:"memory_limit_bytes" yaml:"memory_limit_bytes"`
	IOLimitPagesPerSec float64 `json:"io_limit_pages_per_sec" yaml:"io_limit_pages_per_sec"`
	IOBurstPages       int     `json:"io_burst_pages" yaml:"io_burst_pages"`
}

// ReportConfig names the result sinks. Empty paths disable a sink.
type ReportConfig struct {
	CSV        string `json:"csv" yaml:"csv"`
	SQLite     string `json:"sqlite" yaml:"sqlite"`
	Prometheus string `json:"prometheus" yaml:"prometheus"`
}

// LogConfig configures the logger.
type LogConfig struct {
	// Level is debug, info, warn or error
	Level string `json:"level" yaml:"level"`

	// Format is text or json
	Format string `json:"format" yaml:"format"`
}

// DefaultConfig returns a configuration for a 1M-record uncompressed dataset
// read with direct I/O.
func DefaultConfig() *Config {
	p := layout.DefaultParams()
	return &Config{
		DataDir: "./data/lidisk",
		Seed:    42,
		Dataset: DatasetConfig{
			FileName: layout.DefaultFileName,
			Items:    1_000_000,
			MaxGap:   1 << 20,
			OnDisk:   true,
		},
		Layout: LayoutConfig{
			PageBytes:        p.PageBytes,
			RecordBytes:      p.RecordBytes,
			Granularity:      p.Granularity,
			Strategy:         p.Strategy.String(),
			Compression:      p.Compression.String(),
			SearchMode:       p.SearchMode.String(),
			PoolPages:        p.PoolPages,
			MaxQualifying:    p.MaxQualifying,
			MaxPayloadLength: p.MaxPayloadLength,
			BlockItems:       p.BlockItems,
		},
		Workload: WorkloadConfig{
			Lookups: 100_000,
			Diffs:   []uint64{0, 8, 64, 256},
		},
		Index: IndexConfig{
			Kind:   IndexRMI,
			Fanout: 1000,
			Degree: 32,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Params converts the configuration to layout parameters.
func (c *Config) Params() (layout.Params, error) {
	strategy, err := layout.ParseStrategy(c.Layout.Strategy)
	if err != nil {
		return layout.Params{}, err
	}
	compression, err := layout.ParseCompression(c.Layout.Compression)
	if err != nil {
		return layout.Params{}, err
	}
	mode, err := layout.ParseSearchMode(c.Layout.SearchMode)
	if err != nil {
		return layout.Params{}, err
	}

	return layout.Params{
		PageBytes:        c.Layout.PageBytes,
		RecordBytes:      c.Layout.RecordBytes,
		DatasetBytes:     c.Dataset.Items * uint64(max(c.Layout.RecordBytes, 0)),
		Granularity:      c.Layout.Granularity,
		Strategy:         strategy,
		Compression:      compression,
		SearchMode:       mode,
		DataDir:          c.DataDir,
		FileName:         c.Dataset.FileName,
		OnDisk:           c.Dataset.OnDisk,
		PoolPages:        c.Layout.PoolPages,
		MaxQualifying:    c.Layout.MaxQualifying,
		MaxPayloadLength: c.Layout.MaxPayloadLength,
		BlockItems:       c.Layout.BlockItems,
		TrackResidency:   c.Layout.TrackResidency,
	}, nil
}

// Resource returns the resource controller settings.
func (c *Config) Resource() resource.Config {
	return resource.Config{
		MemoryLimitBytes:   c.Limits.MemoryLimitBytes,
		IOLimitPagesPerSec: c.Limits.IOLimitPagesPerSec,
		IOBurstPages:       c.Limits.IOBurstPages,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Dataset.FileName == "" {
		return fmt.Errorf("dataset.file_name is required")
	}
	if c.Threads < 0 {
		return fmt.Errorf("threads must not be negative, got %d", c.Threads)
	}
	if c.Workload.Lookups < 0 {
		return fmt.Errorf("workload.lookups must not be negative, got %d", c.Workload.Lookups)
	}

	switch c.Index.Kind {
	case IndexRMI:
		if c.Index.Fanout <= 0 {
			return fmt.Errorf("index.fanout must be positive, got %d", c.Index.Fanout)
		}
	case IndexBTree:
		if c.Index.Degree < 2 {
			return fmt.Errorf("index.degree must be at least 2, got %d", c.Index.Degree)
		}
	default:
		return fmt.Errorf("invalid index kind: %s (must be rmi or btree)", c.Index.Kind)
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Log.Format)
	}

	p, err := c.Params()
	if err != nil {
		return err
	}
	return p.Validate()
}

// LoadFromFile loads configuration from a YAML or JSON file on top of the
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv overrides cfg from LID_* environment variables. Malformed
// numbers are reported rather than ignored.
func LoadFromEnv(cfg *Config) error {
	return loadFromLookup(cfg, os.LookupEnv)
}

func loadFromLookup(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	var errs []string
	integer := func(name string, dst *int) {
		if v, ok := lookup(name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s=%q", name, v))
				return
			}
			*dst = n
		}
	}
	unsigned := func(name string, dst *uint64) {
		if v, ok := lookup(name); ok && v != "" {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s=%q", name, v))
				return
			}
			*dst = n
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v == "true" || v == "1"
		}
	}

	str("LID_DATA_DIR", &cfg.DataDir)
	integer("LID_THREADS", &cfg.Threads)
	if v, ok := lookup("LID_SEED"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("LID_SEED=%q", v))
		} else {
			cfg.Seed = n
		}
	}

	// Dataset
	str("LID_DATASET_FILE_NAME", &cfg.Dataset.FileName)
	unsigned("LID_DATASET_ITEMS", &cfg.Dataset.Items)
	boolean("LID_DATASET_ON_DISK", &cfg.Dataset.OnDisk)

	// Layout
	integer("LID_PAGE_BYTES", &cfg.Layout.PageBytes)
	integer("LID_RECORD_BYTES", &cfg.Layout.RecordBytes)
	unsigned("LID_GRANULARITY", &cfg.Layout.Granularity)
	str("LID_STRATEGY", &cfg.Layout.Strategy)
	str("LID_COMPRESSION", &cfg.Layout.Compression)
	str("LID_SEARCH_MODE", &cfg.Layout.SearchMode)
	integer("LID_POOL_PAGES", &cfg.Layout.PoolPages)
	integer("LID_MAX_QUALIFYING", &cfg.Layout.MaxQualifying)
	integer("LID_MAX_PAYLOAD_LENGTH", &cfg.Layout.MaxPayloadLength)
	boolean("LID_TRACK_RESIDENCY", &cfg.Layout.TrackResidency)

	// Workload
	str("LID_WORKLOAD", &cfg.Workload.Path)
	integer("LID_LOOKUPS", &cfg.Workload.Lookups)
	boolean("LID_COLD_CACHE", &cfg.Workload.ColdCache)

	// Index
	if v, ok := lookup("LID_INDEX"); ok && v != "" {
		cfg.Index.Kind = IndexKind(v)
	}

	// Reports
	str("LID_REPORT_CSV", &cfg.Report.CSV)
	str("LID_REPORT_SQLITE", &cfg.Report.SQLite)
	str("LID_REPORT_PROMETHEUS", &cfg.Report.Prometheus)

	str("LID_LOG_LEVEL", &cfg.Log.Level)
	str("LID_LOG_FORMAT", &cfg.Log.Format)

	if len(errs) > 0 {
		return fmt.Errorf("malformed environment: %s", strings.Join(errs, ", "))
	}
	return nil
}

// EnsureDirectories creates the data directory.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", c.DataDir, err)
	}
	return nil
}

// WriteBanner prints the effective settings, one per line.
func (c *Config) WriteBanner(w io.Writer) error {
	threads := strconv.Itoa(c.Threads)
	if c.Threads == 0 {
		threads = "auto"
	}
	lines := [][2]string{
		{"data_dir", c.DataDir},
		{"dataset", filepath.Join(c.DataDir, c.Dataset.FileName)},
		{"items", strconv.FormatUint(c.Dataset.Items, 10)},
		{"on_disk", strconv.FormatBool(c.Dataset.OnDisk)},
		{"page_bytes", strconv.Itoa(c.Layout.PageBytes)},
		{"record_bytes", strconv.Itoa(c.Layout.RecordBytes)},
		{"granularity", strconv.FormatUint(c.Layout.Granularity, 10)},
		{"fetch_strategy", c.Layout.Strategy},
		{"compression", c.Layout.Compression},
		{"search_mode", c.Layout.SearchMode},
		{"pool_pages", strconv.Itoa(c.Layout.PoolPages)},
		{"max_qualifying", strconv.Itoa(c.Layout.MaxQualifying)},
		{"max_payload_length", strconv.Itoa(c.Layout.MaxPayloadLength)},
		{"track_residency", strconv.FormatBool(c.Layout.TrackResidency)},
		{"index", string(c.Index.Kind)},
		{"threads", threads},
		{"lookups", strconv.Itoa(c.Workload.Lookups)},
	}
	for _, l := range lines {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", l[0], l[1]); err != nil {
			return err
		}
	}
	return nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
