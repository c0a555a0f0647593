package senv

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/senvtool/senv/pkg/paths"
	"github.com/senvtool/senv/pkg/telemetry"
)

// Environment variables consumed and produced by the engine.
const (
	EnvProfile     = "SENV"
	EnvKey         = "SENV_KEY"
	EnvPath        = "SENV_PATH"
	EnvRoot        = "SENV_ROOT"
	EnvDebug       = "SENV_DEBUG"
	EnvLoaded      = "SENV_LOADED"
	EnvEnvironment = "SENV_ENVIRONMENT"
)

const (
	// DefaultProfile is loaded when neither the caller nor SENV names one.
	DefaultProfile = "development"

	// DefaultKeyFile is the key file name inside the config directory.
	DefaultKeyFile = ".key"

	profileRule = "required,printascii,excludesall=/\\*?[]"
)

// Options configures an Engine.
type Options struct {
	// DefaultProfile is used when Load gets an empty profile and SENV is unset.
	DefaultProfile string `validate:"required,printascii,excludesall=/\\*?[]"`

	// ConfigDir is the fragment directory name under the root.
	ConfigDir string `validate:"required,excludesall=/\\"`

	// KeyFile is the key file name inside the config directory.
	KeyFile string `validate:"required,excludesall=/\\"`

	// Root overrides SENV_ROOT.
	Root string

	// SearchPath overrides SENV_PATH.
	SearchPath string

	// WorkDir is where the upward root search starts. Defaults to the
	// process working directory.
	WorkDir string

	// Key is an explicit passphrase; it takes priority over SENV_KEY and the
	// key file.
	Key string

	// Environ is the ambient environment as KEY=VALUE entries. Nil means
	// os.Environ().
	Environ []string

	// Subprocess is the command, without the profile argument, that prints a
	// profile's composed environment as YAML. Defaults to the running
	// executable with "env --format yaml".
	Subprocess []string

	// MaxSteps bounds Starlark execution steps per fragment; zero is unbounded.
	MaxSteps uint64

	// WatchDebounce delays reloads after file changes in Watch.
	WatchDebounce time.Duration `validate:"gte=0"`

	// Telemetry defaults to a configuration derived from the ambient
	// environment, logging to stderr.
	Telemetry *telemetry.Telemetry `validate:"-"`
}

// LoadOptions controls a single Load call.
type LoadOptions struct {
	// Force recomposes even when the ambient environment already carries a
	// composition of the requested profile.
	Force bool
}

// IOOptions controls Read and Write.
type IOOptions struct {
	// Encrypted overrides the file name marker when non-nil.
	Encrypted *bool
}

// Encrypted returns an IOOptions pointer value for v.
func Encrypted(v bool) *bool {
	return &v
}

// DefaultOptions returns the options used when a field is left empty.
func DefaultOptions() Options {
	return Options{
		DefaultProfile: DefaultProfile,
		ConfigDir:      paths.DefaultConfigDir,
		KeyFile:        DefaultKeyFile,
		WatchDebounce:  200 * time.Millisecond,
	}
}

// OptionsFromEnviron returns DefaultOptions bound to environ, with Root and
// SearchPath taken from SENV_ROOT and SENV_PATH. SENV and SENV_KEY stay in
// the environment and are consulted when needed.
func OptionsFromEnviron(environ []string) Options {
	opts := DefaultOptions()
	opts.Environ = environ
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		switch k {
		case EnvRoot:
			opts.Root = v
		case EnvPath:
			opts.SearchPath = v
		}
	}
	return opts
}

// withDefaults fills empty fields from DefaultOptions.
func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.DefaultProfile == "" {
		o.DefaultProfile = def.DefaultProfile
	}
	if o.ConfigDir == "" {
		o.ConfigDir = def.ConfigDir
	}
	if o.KeyFile == "" {
		o.KeyFile = def.KeyFile
	}
	if o.WatchDebounce == 0 {
		o.WatchDebounce = def.WatchDebounce
	}
	if o.Environ == nil {
		o.Environ = os.Environ()
	}
	if o.Subprocess == nil {
		if exe, err := os.Executable(); err == nil {
			o.Subprocess = []string{exe, "env", "--format", "yaml"}
		}
	}
	return o
}

// Validate checks the options.
func (o Options) Validate() error {
	if err := validator.New().Struct(o); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}
