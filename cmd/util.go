// Package cmd provides CLI commands for the council tool.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/council-records/config"
	"github.com/otherjamesbrown/council-records/pkg/db"
	"github.com/otherjamesbrown/council-records/pkg/ingest/events"
	"github.com/otherjamesbrown/council-records/pkg/logging"
)

// CommandDeps holds the dependencies shared by the council commands.
type CommandDeps struct {
	LoadConfig   func() (*config.CLIConfig, error)
	ConnectToDB  func(context.Context, *config.CLIConfig) (*pgxpool.Pool, error)
	NewPublisher func(context.Context, *config.CLIConfig, logging.Logger) (*events.Publisher, error)
	// Logger returns the logger configured for the current invocation.
	Logger func() logging.Logger
}

// DefaultDeps returns the default dependencies for production use.
func DefaultDeps() *CommandDeps {
	return &CommandDeps{
		LoadConfig:   config.LoadConfig,
		ConnectToDB:  connectToDatabase,
		NewPublisher: connectToRedis,
		Logger:       logging.MustGlobal,
	}
}

func (d *CommandDeps) logger() logging.Logger {
	if d.Logger == nil {
		return logging.NewNopLogger()
	}
	return logging.OrNop(d.Logger())
}

// connectToDatabase establishes a database connection from the config.
func connectToDatabase(ctx context.Context, cfg *config.CLIConfig) (*pgxpool.Pool, error) {
	dbCfg := cfg.Database.DB(cfg.Timeout)
	if err := dbCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}
	return db.Connect(ctx, dbCfg)
}

// connectToRedis opens the event publisher from the config.
func connectToRedis(ctx context.Context, cfg *config.CLIConfig, logger logging.Logger) (*events.Publisher, error) {
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis.addr is not configured (set COUNCIL_REDIS_ADDR)")
	}
	return events.NewPublisherFromConfig(ctx, cfg.Redis.Publisher(), logger)
}

// writeRecord encodes v as JSON or YAML.
func writeRecord(w io.Writer, format config.OutputFormat, v interface{}) error {
	switch format {
	case config.OutputFormatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(v)
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

// writeRecordFile writes v to path, choosing YAML for .yaml and .yml files.
func writeRecordFile(path string, v interface{}) error {
	format := config.OutputFormatJSON
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = config.OutputFormatYAML
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := writeRecord(f, format, v); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// stem returns the file name of path without its extension.
func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// truncate shortens s to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
