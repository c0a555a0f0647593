package config

import (
	"context"
	"errors"

	"github.com/senvtool/senv/pkg/tracker"
)

var (
	// ErrUnknownFormat is returned for data fragments in no recognized format.
	ErrUnknownFormat = errors.New("unknown config format")

	// ErrInvalidFragment is returned when a data fragment does not parse to a
	// key/value mapping.
	ErrInvalidFragment = errors.New("invalid fragment")
)

// Host is what an executable fragment may touch: the tracked environment,
// the name of the profile being loaded, and imports of other profiles.
type Host interface {
	tracker.Environ

	// Profile returns the profile currently being loaded.
	Profile() string

	// ImportProfile composes another profile into the environment. It
	// returns false without error when the import was refused because the
	// profile is already loading.
	ImportProfile(ctx context.Context, name string) (bool, error)
}
