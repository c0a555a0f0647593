package senv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/senvtool/senv/pkg/config"
	"github.com/senvtool/senv/pkg/crypt"
	"github.com/senvtool/senv/pkg/paths"
	"github.com/senvtool/senv/pkg/telemetry"
	"github.com/senvtool/senv/pkg/tracker"
)

// Engine composes profiles into an environment. It owns the ambient
// environment binding, the merged environment and the load ledger. All
// exported methods are safe for concurrent use; calls are serialized.
type Engine struct {
	mu   sync.Mutex
	opts Options

	// baseline is the ambient environment as handed to New.
	baseline *tracker.Env
	ambient  *tracker.Env
	// current is the tracked accessor fragments write through.
	current tracker.Environ

	environment *tracker.Env
	ledger      *Ledger
	loading     string
	runID       string

	root      string
	key       string
	keySource string

	profiles map[string]*tracker.Env

	scripts  *config.StarlarkEvaluator
	data     *config.DataParser
	validate *validator.Validate

	logger  zerolog.Logger
	tracer  *telemetry.Tracer
	metrics *telemetry.Metrics
}

// New creates an engine. Nothing is read from disk until a method needs it.
func New(opts Options) (*Engine, error) {
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	ambient := tracker.FromEnviron(opts.Environ)

	tel := opts.Telemetry
	if tel == nil {
		var err error
		tel, err = telemetry.NewTelemetry(telemetry.ConfigFromEnviron(ambient.Lookup), os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
	}

	logger := tel.Logger.With().Str("component", "senv").Logger()

	e := &Engine{
		opts:        opts,
		baseline:    ambient.Clone(),
		ambient:     ambient,
		environment: tracker.NewEnv(),
		ledger:      NewLedger(),
		profiles:    make(map[string]*tracker.Env),
		scripts:     config.NewStarlarkEvaluator(logger, opts.MaxSteps),
		data:        config.NewDataParser(),
		validate:    validator.New(),
		logger:      logger,
		tracer:      tel.Tracer,
		metrics:     tel.Metrics,
	}
	e.current = e.ambient

	return e, nil
}

// Load composes profile and returns its resolved name. An empty profile
// resolves to SENV, then to the default profile.
func (e *Engine) Load(ctx context.Context, profile string, opts LoadOptions) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	name, err := e.load(ctx, e.resolveProfile(profile), opts.Force)
	if errors.Is(err, ErrRecursionRefused) {
		return "", nil
	}
	return name, err
}

// LoadForce is Load with Force set.
func (e *Engine) LoadForce(ctx context.Context, profile string) (string, error) {
	return e.Load(ctx, profile, LoadOptions{Force: true})
}

// Environment returns a copy of the merged environment.
func (e *Engine) Environment() *tracker.Env {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.environment.Clone()
}

// Ledger returns a copy of the load ledger.
func (e *Engine) Ledger() *Ledger {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Clone()
}

// Ambient returns a copy of the ambient environment, including everything
// fragments set and the reuse markers. It is what a child process should
// inherit.
func (e *Engine) Ambient() *tracker.Env {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ambient.Clone()
}

// Profile returns the last resolved profile name (SENV), or "".
func (e *Engine) Profile() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ambient.Get(EnvProfile)
}

// Loading returns the profile currently being composed, or "" when idle.
func (e *Engine) Loading() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loading
}

func (e *Engine) resolveProfile(profile string) string {
	profile = strings.TrimSpace(profile)
	if profile == "" {
		profile = strings.TrimSpace(e.ambient.Get(EnvProfile))
	}
	if profile == "" {
		profile = e.opts.DefaultProfile
	}
	return profile
}

// load is the lock-free entry point shared by Load and fragment imports.
func (e *Engine) load(ctx context.Context, profile string, force bool) (string, error) {
	profile = strings.TrimSpace(profile)
	if err := e.validate.Var(profile, profileRule); err != nil {
		return "", wrapError("load", profile, "", fmt.Errorf("invalid profile name %q: %w", profile, err))
	}

	if e.loading == "" {
		return e.loadTopLevel(ctx, profile, force)
	}

	if e.loading == profile {
		e.logger.Debug().
			Str("senv", e.loading).
			Str("run_id", e.runID).
			Str("import", profile).
			Msg("refusing to recursively load profile")
		return "", ErrRecursionRefused
	}

	e.logger.Debug().
		Str("senv", e.loading).
		Str("run_id", e.runID).
		Str("import", profile).
		Msg("importing profile")

	if err := e.compose(ctx, profile); err != nil {
		return "", err
	}
	return profile, nil
}

func (e *Engine) loadTopLevel(ctx context.Context, profile string, force bool) (string, error) {
	timer := telemetry.NewTimer()
	ctx, span := e.tracer.Start(ctx, "senv.load",
		attribute.String("senv.profile", profile),
		attribute.Bool("senv.force", force),
	)
	defer span.End()

	if !force {
		reused, err := e.restore(profile)
		if err != nil {
			e.logger.Warn().Err(err).Str("senv", profile).Msg("ignoring unreadable inherited composition")
		}
		if reused {
			e.logger.Debug().Str("senv", profile).Int("fragments", e.ledger.Len()).Msg("reusing inherited composition")
			span.SetAttributes(attribute.Bool("senv.reused", true))
			telemetry.RecordSuccess(span)
			e.metrics.RecordLoad(telemetry.LoadReused, timer.Duration())
			return profile, nil
		}
	}

	e.loading = profile
	e.runID = uuid.NewString()
	defer func() {
		e.loading = ""
		e.runID = ""
	}()
	span.SetAttributes(attribute.String("senv.run_id", e.runID))

	e.ambient = e.baseline.Clone()
	e.current = e.ambient
	e.ledger.Reset()
	e.environment.Clear()

	if err := e.compose(ctx, profile); err != nil {
		err = wrapError("load", profile, "", err)
		telemetry.RecordError(span, err)
		e.metrics.RecordLoad(telemetry.LoadFailed, timer.Duration())
		return "", err
	}

	if err := e.publish(profile); err != nil {
		err = wrapError("load", profile, "", err)
		telemetry.RecordError(span, err)
		e.metrics.RecordLoad(telemetry.LoadFailed, timer.Duration())
		return "", err
	}

	e.logger.Debug().
		Str("senv", profile).
		Str("run_id", e.runID).
		Int("fragments", e.ledger.Len()).
		Int("keys", e.environment.Len()).
		Msg("profile loaded")
	telemetry.RecordSuccess(span)
	e.metrics.RecordLoad(telemetry.LoadComposed, timer.Duration())

	return profile, nil
}

// restore adopts a composition serialized into the ambient environment by
// an ancestor process (or an earlier Load in this one).
func (e *Engine) restore(profile string) (bool, error) {
	if e.ambient.Get(EnvProfile) != profile {
		return false, nil
	}
	loaded, ok := e.ambient.Lookup(EnvLoaded)
	if !ok {
		return false, nil
	}
	environment, ok := e.ambient.Lookup(EnvEnvironment)
	if !ok {
		return false, nil
	}

	ledger := NewLedger()
	if err := json.Unmarshal([]byte(loaded), ledger); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", EnvLoaded, err)
	}
	env := tracker.NewEnv()
	if err := json.Unmarshal([]byte(environment), env); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", EnvEnvironment, err)
	}

	e.ledger = ledger
	e.environment = env
	return true, nil
}

// publish serializes the composition into the ambient environment.
func (e *Engine) publish(profile string) error {
	loaded, err := json.Marshal(e.ledger)
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}
	environment, err := json.Marshal(e.environment)
	if err != nil {
		return fmt.Errorf("failed to encode environment: %w", err)
	}

	e.ambient.Set(EnvProfile, profile)
	e.ambient.Set(EnvLoaded, string(loaded))
	e.ambient.Set(EnvEnvironment, string(environment))
	return nil
}

// compose loads every fragment of profile in order.
func (e *Engine) compose(ctx context.Context, profile string) error {
	dir, err := e.dir()
	if err != nil {
		return err
	}

	fragments, err := paths.FragmentsFor(dir, profile)
	if err != nil {
		return fmt.Errorf("failed to discover fragments in %s: %w", dir, err)
	}
	if len(fragments) == 0 {
		e.logger.Warn().Str("senv", e.loading).Str("profile", profile).Str("dir", dir).Msg("no fragments found for profile")
	}

	for _, f := range fragments {
		if err := e.loadFragment(ctx, profile, f); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) loadFragment(ctx context.Context, profile string, f paths.Fragment) error {
	log := e.logger.With().
		Str("senv", e.loading).
		Str("run_id", e.runID).
		Str("path", f.Path).
		Logger()

	log.Debug().Str("kind", f.Kind.String()).Bool("encrypted", f.Encrypted).Msg("loading fragment")

	if changes, seen := e.ledger.Lookup(f.Path); seen {
		if changes == nil {
			log.Debug().Msg("skipping fragment that is still loading")
		} else {
			log.Debug().Msg("skipping fragment that is already loaded")
		}
		e.metrics.RecordSkip()
		return nil
	}

	ctx, span := e.tracer.Start(ctx, "senv.fragment",
		attribute.String("senv.path", f.Path),
		attribute.String("senv.kind", f.Kind.String()),
		attribute.Bool("senv.encrypted", f.Encrypted),
	)
	defer span.End()

	e.ledger.MarkPending(f.Path)

	content, err := e.readFragment(f)
	if err != nil {
		e.ledger.Forget(f.Path)
		telemetry.RecordError(span, err)
		return wrapError("load", profile, f.Path, err)
	}

	outer := e.current
	changes, err := tracker.Capture(outer, func(env tracker.Environ) error {
		e.current = env
		defer func() { e.current = outer }()

		switch f.Kind {
		case paths.KindExecutable:
			return e.scripts.Exec(ctx, f.Path, content, &fragmentHost{Environ: env, engine: e, profile: profile})
		default:
			_, err := e.data.Apply(f.Format, f.Path, content, env)
			return err
		}
	})
	if err != nil {
		e.ledger.Forget(f.Path)
		telemetry.RecordError(span, err)
		return wrapError("load", profile, f.Path, err)
	}

	e.ledger.Resolve(f.Path, changes)
	log.Debug().Interface("changes", changes).Msg("fragment loaded")
	changes.Apply(e.environment)
	telemetry.RecordSuccess(span)

	return nil
}

func (e *Engine) readFragment(f paths.Fragment) ([]byte, error) {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fragment: %w", err)
	}
	e.metrics.RecordFragmentRead(f.Kind.String())

	if !f.Encrypted {
		return raw, nil
	}
	return e.decrypt(f.Path, raw)
}

func (e *Engine) decrypt(path string, data []byte) ([]byte, error) {
	key, source, err := e.resolveKey()
	if err != nil {
		return nil, err
	}
	plain, err := crypt.Decrypt(key, data)
	if err != nil {
		e.metrics.RecordDecryptFailure()
		return nil, fmt.Errorf("could not decrypt `%s` with key from %s: %w", path, source, err)
	}
	return plain, nil
}

func (e *Engine) encrypt(path string, data []byte) ([]byte, error) {
	key, source, err := e.resolveKey()
	if err != nil {
		return nil, err
	}
	out, err := crypt.Encrypt(key, data)
	if err != nil {
		return nil, fmt.Errorf("could not encrypt `%s` with key from %s: %w", path, source, err)
	}
	return out, nil
}

// resolveRoot finds and memoizes the configuration root.
func (e *Engine) resolveRoot() (string, error) {
	if e.root != "" {
		return e.root, nil
	}

	root := e.opts.Root
	if root == "" {
		root = e.ambient.Get(EnvRoot)
	}
	searchPath := e.opts.SearchPath
	if searchPath == "" {
		searchPath = e.ambient.Get(EnvPath)
	}

	resolved, err := paths.ResolveRoot(paths.RootOptions{
		Root:       root,
		SearchPath: searchPath,
		WorkDir:    e.opts.WorkDir,
		ConfigDir:  e.opts.ConfigDir,
	})
	if err != nil {
		return "", err
	}
	e.root = resolved
	return resolved, nil
}

func (e *Engine) dir() (string, error) {
	root, err := e.resolveRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, e.opts.ConfigDir), nil
}

// resolveKey finds and memoizes the passphrase and its provenance.
func (e *Engine) resolveKey() (string, string, error) {
	if e.keySource != "" {
		return e.key, e.keySource, nil
	}

	if e.opts.Key != "" {
		e.key, e.keySource = e.opts.Key, "option"
		return e.key, e.keySource, nil
	}

	if key, ok := e.ambient.Lookup(EnvKey); ok {
		e.key, e.keySource = key, fmt.Sprintf("ENV['%s']", EnvKey)
		return e.key, e.keySource, nil
	}

	dir, err := e.dir()
	if err != nil {
		return "", "", fmt.Errorf("%w: %s is unset and %v", ErrNoKeyFound, EnvKey, err)
	}
	keyPath := filepath.Join(dir, e.opts.KeyFile)
	data, err := os.ReadFile(keyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", fmt.Errorf("%w: %s is unset and %s does not exist", ErrNoKeyFound, EnvKey, keyPath)
		}
		return "", "", fmt.Errorf("failed to read key file: %w", err)
	}

	e.key, e.keySource = strings.TrimSpace(string(data)), keyPath
	return e.key, e.keySource, nil
}

// fragmentHost is the capability surface handed to executable fragments.
type fragmentHost struct {
	tracker.Environ
	engine  *Engine
	profile string
}

func (h *fragmentHost) Profile() string {
	return h.profile
}

func (h *fragmentHost) ImportProfile(ctx context.Context, name string) (bool, error) {
	if _, err := h.engine.load(ctx, name, false); err != nil {
		if errors.Is(err, ErrRecursionRefused) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
