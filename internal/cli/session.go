package cli

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/ormlite/internal/config"
	"github.com/roach88/ormlite/internal/metrics"
	"github.com/roach88/ormlite/internal/registry"
	"github.com/roach88/ormlite/internal/sample"
	"github.com/roach88/ormlite/internal/schemafile"
)

// session is one opened registry plus everything a command needs to
// parse and render its entities.
type session struct {
	reg      *registry.Registry
	schema   *schemafile.Schema
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	out      *Printer
}

func newPrinter(opts *RootOptions, cmd *cobra.Command) *Printer {
	return &Printer{
		Format:  opts.Format,
		Out:     cmd.OutOrStdout(),
		Diag:    cmd.ErrOrStderr(),
		Verbose: opts.Verbose,
	}
}

// loadConfig reads --config (or defaults) and applies flag overrides.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		var err error
		cfg, err = config.Load(opts.ConfigPath)
		if err != nil {
			return config.Config{}, err
		}
	}
	if opts.Dir != "" {
		cfg.Dir = opts.Dir
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// openSession registers the sample model and any CUE schemas, then
// initializes the named store.
func openSession(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*session, error) {
	out := newPrinter(opts, cmd)

	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, out.Fail(ExitCommandError, "failed to load config", err)
	}

	level := cfg.Level()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	promReg := prometheus.NewRegistry()
	reg := registry.New(cfg,
		registry.WithLogger(logger),
		registry.WithMetrics(metrics.New(promReg)),
	)

	for _, d := range sample.Descriptors() {
		if err := reg.Register(d); err != nil {
			return nil, out.Fail(ExitCommandError, "failed to register sample types", err)
		}
	}

	var schema *schemafile.Schema
	if opts.SchemaDir != "" {
		schema, err = schemafile.LoadDir(opts.SchemaDir)
		if err != nil {
			return nil, out.Fail(ExitCommandError, "failed to load schema", err)
		}
		for _, d := range schema.Descriptors() {
			if err := reg.Register(d); err != nil {
				return nil, out.Fail(ExitCommandError, "failed to register schema type", err)
			}
		}
		out.Notef("loaded %d entity types from %d files", len(schema.Entities), schema.Files)
	}

	if err := reg.Initialize(ctx, opts.Name, opts.Version); err != nil {
		return nil, out.Fail(ExitCommandError, "failed to open store", err)
	}

	return &session{
		reg:      reg,
		schema:   schema,
		gatherer: promReg,
		logger:   logger,
		out:      out,
	}, nil
}

func (s *session) Close() {
	if err := s.reg.Close(); err != nil {
		s.logger.Warn("close failed", "error", err)
	}
}

// kind returns the schema type name of a field, empty for compiled types.
func (s *session) kind(typeName, field string) string {
	if s.schema == nil {
		return ""
	}
	e, ok := s.schema.Entity(typeName)
	if !ok {
		return ""
	}
	f, ok := e.Field(field)
	if !ok {
		return ""
	}
	return f.Kind
}
