package senv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/senvtool/senv/pkg/tracker"
)

// ForProfile returns the environment profile composes to, evaluated in a
// child process so this engine's state is untouched. Results are cached per
// engine.
func (e *Engine) ForProfile(ctx context.Context, profile string) (*tracker.Env, error) {
	e.mu.Lock()
	profile = e.resolveProfile(profile)
	if env, ok := e.profiles[profile]; ok {
		e.mu.Unlock()
		return env.Clone(), nil
	}
	e.mu.Unlock()

	env, err := e.ForProfileFresh(ctx, profile)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.profiles[profile] = env.Clone()
	e.mu.Unlock()

	return env, nil
}

// ForProfileFresh is ForProfile without the cache.
func (e *Engine) ForProfileFresh(ctx context.Context, profile string) (*tracker.Env, error) {
	e.mu.Lock()
	profile = e.resolveProfile(profile)
	command := append([]string(nil), e.opts.Subprocess...)
	environ := e.ambient.Environ()
	dir := e.opts.WorkDir
	e.mu.Unlock()

	if err := e.validate.Var(profile, profileRule); err != nil {
		return nil, wrapError("for_profile", profile, "", fmt.Errorf("invalid profile name %q: %w", profile, err))
	}
	if len(command) == 0 {
		return nil, wrapError("for_profile", profile, "", errors.New("no subprocess command configured"))
	}

	ctx, span := e.tracer.Start(ctx, "senv.for_profile")
	defer span.End()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, command[0], append(command[1:], profile)...)
	cmd.Env = environ
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Debug().Str("profile", profile).Strs("command", command).Msg("evaluating profile in subprocess")

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return nil, wrapError("for_profile", profile, "", fmt.Errorf("subprocess failed: %w", err))
	}

	env := tracker.NewEnv()
	if err := yaml.Unmarshal(stdout.Bytes(), env); err != nil {
		return nil, wrapError("for_profile", profile, "", fmt.Errorf("failed to parse subprocess output: %w", err))
	}
	return env, nil
}

// Get returns one key of ForProfile(profile).
func (e *Engine) Get(ctx context.Context, profile, key string) (string, bool, error) {
	env, err := e.ForProfile(ctx, profile)
	if err != nil {
		return "", false, err
	}
	v, ok := env.Lookup(key)
	return v, ok, nil
}

// GetFresh returns one key of ForProfileFresh(profile).
func (e *Engine) GetFresh(ctx context.Context, profile, key string) (string, bool, error) {
	env, err := e.ForProfileFresh(ctx, profile)
	if err != nil {
		return "", false, err
	}
	v, ok := env.Lookup(key)
	return v, ok, nil
}
