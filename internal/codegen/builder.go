package codegen

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/funvibe/fatptr/internal/cache"
	"github.com/funvibe/fatptr/internal/config"
	"github.com/funvibe/fatptr/internal/conformance"
	"github.com/funvibe/fatptr/internal/descriptor"
	ferrors "github.com/funvibe/fatptr/internal/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Builder runs the generation pipeline for one package directory:
// resolve config, consult the cache, describe interfaces, check
// conformance, render, validate and write.
type Builder struct {
	// dir is the package directory.
	dir string

	// cfg is the configuration. When nil it is loaded from the nearest
	// fatptr.yaml at or above dir.
	cfg *config.Config

	// configData is the raw config content used for the cache key.
	configData []byte

	// configDir is the directory holding the config; the cache lives there.
	configDir string

	// force regenerates even when the cache stamp matches.
	force bool

	// useCache enables the generation cache.
	useCache bool

	// skipValidate disables the overlay type-check of the output.
	skipValidate bool

	// env is passed to go/packages.
	env []string
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithConfig uses cfg instead of searching for fatptr.yaml. data is the
// text the configuration came from (file content or flags) and feeds the
// cache key.
func WithConfig(cfg *config.Config, data []byte) BuilderOption {
	return func(b *Builder) { b.cfg = cfg; b.configData = data }
}

// WithForce regenerates even when the cache is fresh.
func WithForce(force bool) BuilderOption {
	return func(b *Builder) { b.force = force }
}

// WithCache enables or disables the generation cache.
func WithCache(enabled bool) BuilderOption {
	return func(b *Builder) { b.useCache = enabled }
}

// WithValidation enables or disables type-checking the output before it
// is written.
func WithValidation(enabled bool) BuilderOption {
	return func(b *Builder) { b.skipValidate = !enabled }
}

// WithEnv sets the environment for package loading.
func WithEnv(env []string) BuilderOption {
	return func(b *Builder) { b.env = env }
}

// NewBuilder creates a Builder for the package in dir.
func NewBuilder(dir string, opts ...BuilderOption) *Builder {
	b := &Builder{dir: dir, useCache: true}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildResult describes a finished generation.
type BuildResult struct {
	// Path is the generated file path.
	Path string

	// Cached is true when the existing file was up to date.
	Cached bool

	// Interfaces lists the generated interface names.
	Interfaces []string
}

// Config returns the resolved configuration, loading it if needed.
func (b *Builder) Config() (*config.Config, error) {
	if err := b.resolveConfig(); err != nil {
		return nil, err
	}
	return b.cfg, nil
}

// Cache returns the generation cache for this builder's project.
func (b *Builder) Cache() (*cache.Cache, error) {
	if err := b.resolveConfig(); err != nil {
		return nil, err
	}
	return cache.New(b.configDir), nil
}

// Build performs the full pipeline:
// 1. Resolve config
// 2. Check the cache
// 3. Describe interfaces and check configured types
// 4. Render, validate and write
// 5. Update the cache stamp
func (b *Builder) Build(ctx context.Context) (*BuildResult, error) {
	start := time.Now()

	// Step 1: Resolve config
	if err := b.resolveConfig(); err != nil {
		return nil, err
	}
	out := filepath.Join(b.dir, b.cfg.Output)
	result := &BuildResult{Path: out, Interfaces: b.cfg.Names()}

	// Step 2: Check the cache
	c := cache.New(b.configDir)
	var key string
	if b.useCache {
		sources, err := cache.ModuleSources(b.dir, b.cfg.Output)
		if err != nil {
			return nil, ferrors.New(ferrors.PhaseCache, ferrors.KindIO).Cause(err).Build()
		}
		key = cache.Key(b.configData, sources, Version)
		if !b.force && c.Lookup(b.dir, b.cfg.Output, key) {
			log().Info("up to date", zap.String("file", out))
			result.Cached = true
			return result, nil
		}
	}

	// Step 3: Describe interfaces and check configured types
	units, err := b.Units(ctx)
	if err != nil {
		return nil, err
	}

	// Step 4: Render, validate and write
	file, err := NewGenerator(b.cfg.Output).Generate(ctx, units)
	if err != nil {
		return nil, err
	}
	if !b.skipValidate {
		if err := Validate(ctx, b.dir, file, b.env); err != nil {
			return nil, err
		}
	}
	if err := os.WriteFile(out, []byte(file.Content), 0o644); err != nil {
		return nil, ferrors.New(ferrors.PhaseGenerate, ferrors.KindIO).
			Detail("writing %s", out).Cause(err).Build()
	}

	// Step 5: Update the cache stamp
	if b.useCache {
		if err := c.Store(b.dir, b.cfg.Output, key); err != nil {
			// Non-fatal: the next run regenerates
			log().Warn("failed to update cache", zap.Error(err))
		}
	}

	log().Info("generated",
		zap.String("file", out),
		zap.Strings("interfaces", result.Interfaces),
		zap.Duration("elapsed", time.Since(start)))

	return result, nil
}

// Check describes the configured interfaces and checks the configured
// types without writing anything.
func (b *Builder) Check(ctx context.Context) ([]*descriptor.Interface, error) {
	if err := b.resolveConfig(); err != nil {
		return nil, err
	}
	units, err := b.Units(ctx)
	if err != nil {
		return nil, err
	}
	ifaces := make([]*descriptor.Interface, len(units))
	for i, u := range units {
		ifaces[i] = u.Iface
	}
	return ifaces, nil
}

// Units loads descriptors for the configured interfaces and runs the
// conformance checks, reporting every failure at once.
func (b *Builder) Units(ctx context.Context) ([]Unit, error) {
	if err := b.resolveConfig(); err != nil {
		return nil, err
	}
	ifaces, err := descriptor.Load(ctx, descriptor.LoadOptions{
		Dir:   b.dir,
		Names: b.cfg.Names(),
		Skip:  b.cfg.Output,
		Env:   b.env,
	})
	if err != nil {
		return nil, err
	}

	units := make([]Unit, len(ifaces))
	var errs error
	for i, d := range ifaces {
		spec, _ := b.cfg.Lookup(d.Name)
		units[i] = Unit{Spec: spec, Iface: d}
		errs = multierr.Append(errs, conformance.Check(d, spec.Check...))
	}
	if errs != nil {
		return nil, errs
	}
	return units, nil
}

func (b *Builder) resolveConfig() error {
	if b.cfg != nil {
		if b.configDir == "" {
			b.configDir = b.dir
		}
		return nil
	}

	path, err := config.FindConfig(b.dir)
	if err != nil {
		return ferrors.New(ferrors.PhaseConfig, ferrors.KindIO).Cause(err).Build()
	}
	if path == "" {
		return ferrors.New(ferrors.PhaseConfig, ferrors.KindNotFound).
			Detail("no %s found in %s or its parents", config.FileNames[0], b.dir).Build()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ferrors.New(ferrors.PhaseConfig, ferrors.KindIO).Cause(err).Build()
	}
	cfg, err := config.ParseConfig(data, path)
	if err != nil {
		return ferrors.New(ferrors.PhaseConfig, ferrors.KindInvalidInput).Cause(err).Build()
	}

	b.cfg = cfg
	b.configData = data
	b.configDir = filepath.Dir(path)
	log().Debug("config loaded", zap.String("path", path), zap.Strings("interfaces", cfg.Names()))
	return nil
}
